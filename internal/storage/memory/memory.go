// Package memory provides in-memory implementations of every storage
// port, used by the oauth/consent/client/user/session use-case tests in
// place of a real Postgres instance.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/google/uuid"
)

// core holds the shared, mutex-guarded state behind every repository
// facet below.
type core struct {
	mu sync.Mutex

	users    map[uuid.UUID]*domain.User
	clients  map[string]*domain.Client
	codes    map[string]*domain.AuthorizationCode
	sessions map[string]*domain.Session
	consents map[uuid.UUID]*domain.Consent
	scopes   []domain.ScopeDefinition
}

// Store bundles one in-memory repository per aggregate, each satisfying
// the matching internal/storage port.
type Store struct {
	*Users
	*Clients
	*Codes
	*Sessions
	*Consents
	*Scopes
}

// New builds an empty store seeded with the given scope catalogue.
func New(scopes []domain.ScopeDefinition) *Store {
	c := &core{
		users:    map[uuid.UUID]*domain.User{},
		clients:  map[string]*domain.Client{},
		codes:    map[string]*domain.AuthorizationCode{},
		sessions: map[string]*domain.Session{},
		consents: map[uuid.UUID]*domain.Consent{},
		scopes:   scopes,
	}
	return &Store{
		Users:    &Users{c},
		Clients:  &Clients{c},
		Codes:    &Codes{c},
		Sessions: &Sessions{c},
		Consents: &Consents{c},
		Scopes:   &Scopes{c},
	}
}

// Users implements storage.UserRepository.
type Users struct{ c *core }

func (u *Users) Create(_ context.Context, user *domain.User) error {
	u.c.mu.Lock()
	defer u.c.mu.Unlock()
	for _, existing := range u.c.users {
		if existing.Email == user.Email || (user.Username != "" && existing.Username == user.Username) {
			return storage.ErrConflict
		}
	}
	cp := *user
	u.c.users[user.ID] = &cp
	return nil
}

func (u *Users) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u.c.mu.Lock()
	defer u.c.mu.Unlock()
	user, ok := u.c.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (u *Users) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	u.c.mu.Lock()
	defer u.c.mu.Unlock()
	for _, user := range u.c.users {
		if user.Email == strings.ToLower(email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (u *Users) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	u.c.mu.Lock()
	defer u.c.mu.Unlock()
	for _, user := range u.c.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (u *Users) FindByEmailOrUsername(_ context.Context, identifier string) (*domain.User, error) {
	u.c.mu.Lock()
	defer u.c.mu.Unlock()
	for _, user := range u.c.users {
		if user.Email == strings.ToLower(identifier) || user.Username == identifier {
			cp := *user
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (u *Users) Update(_ context.Context, user *domain.User) error {
	u.c.mu.Lock()
	defer u.c.mu.Unlock()
	if _, ok := u.c.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *user
	u.c.users[user.ID] = &cp
	return nil
}

// Clients implements storage.ClientRepository.
type Clients struct{ c *core }

func (cl *Clients) Create(_ context.Context, client *domain.Client) error {
	cl.c.mu.Lock()
	defer cl.c.mu.Unlock()
	if _, exists := cl.c.clients[client.ClientID]; exists {
		return storage.ErrConflict
	}
	cp := *client
	cl.c.clients[client.ClientID] = &cp
	return nil
}

func (cl *Clients) FindByID(_ context.Context, id string) (*domain.Client, error) {
	cl.c.mu.Lock()
	defer cl.c.mu.Unlock()
	client, ok := cl.c.clients[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *client
	return &cp, nil
}

func (cl *Clients) FindByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.Client, error) {
	cl.c.mu.Lock()
	defer cl.c.mu.Unlock()
	var out []*domain.Client
	for _, client := range cl.c.clients {
		if client.UserID != nil && *client.UserID == ownerID && client.IsActive {
			cp := *client
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (cl *Clients) FindSystemClient(_ context.Context) (*domain.Client, error) {
	cl.c.mu.Lock()
	defer cl.c.mu.Unlock()
	for _, client := range cl.c.clients {
		if client.IsSystemClient {
			cp := *client
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (cl *Clients) Update(_ context.Context, client *domain.Client) error {
	cl.c.mu.Lock()
	defer cl.c.mu.Unlock()
	if _, ok := cl.c.clients[client.ClientID]; !ok {
		return storage.ErrNotFound
	}
	cp := *client
	cl.c.clients[client.ClientID] = &cp
	return nil
}

// Codes implements storage.AuthorizationCodeRepository.
type Codes struct{ c *core }

func (co *Codes) Create(_ context.Context, code *domain.AuthorizationCode) error {
	co.c.mu.Lock()
	defer co.c.mu.Unlock()
	if _, exists := co.c.codes[code.Code]; exists {
		return storage.ErrConflict
	}
	cp := *code
	co.c.codes[code.Code] = &cp
	return nil
}

func (co *Codes) FindByCode(_ context.Context, code string) (*domain.AuthorizationCode, error) {
	co.c.mu.Lock()
	defer co.c.mu.Unlock()
	c, ok := co.c.codes[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (co *Codes) MarkUsed(_ context.Context, code string, usedAt time.Time) error {
	co.c.mu.Lock()
	defer co.c.mu.Unlock()
	c, ok := co.c.codes[code]
	if !ok {
		return storage.ErrNotFound
	}
	if c.Used {
		return storage.ErrConflict
	}
	c.Used = true
	c.UsedAt = &usedAt
	return nil
}

func (co *Codes) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	co.c.mu.Lock()
	defer co.c.mu.Unlock()
	var n int64
	for k, c := range co.c.codes {
		if !c.ExpiresAt.After(before) {
			delete(co.c.codes, k)
			n++
		}
	}
	return n, nil
}

// Sessions implements storage.SessionRepository.
type Sessions struct{ c *core }

func (se *Sessions) Create(_ context.Context, sess *domain.Session) error {
	se.c.mu.Lock()
	defer se.c.mu.Unlock()
	cp := *sess
	se.c.sessions[sess.ID] = &cp
	return nil
}

func (se *Sessions) FindByID(_ context.Context, id string, now time.Time) (*domain.Session, error) {
	se.c.mu.Lock()
	defer se.c.mu.Unlock()
	sess, ok := se.c.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if sess.IsExpired(now) {
		delete(se.c.sessions, id)
		return nil, storage.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (se *Sessions) DeleteByID(_ context.Context, id string) error {
	se.c.mu.Lock()
	defer se.c.mu.Unlock()
	delete(se.c.sessions, id)
	return nil
}

func (se *Sessions) DeleteByUserID(_ context.Context, userID string) error {
	se.c.mu.Lock()
	defer se.c.mu.Unlock()
	for k, sess := range se.c.sessions {
		if sess.UserID == userID {
			delete(se.c.sessions, k)
		}
	}
	return nil
}

func (se *Sessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	se.c.mu.Lock()
	defer se.c.mu.Unlock()
	var n int64
	for k, sess := range se.c.sessions {
		if !sess.ExpiresAt.After(before) {
			delete(se.c.sessions, k)
			n++
		}
	}
	return n, nil
}

// Consents implements storage.ConsentRepository.
type Consents struct{ c *core }

func (cn *Consents) FindActive(_ context.Context, userID uuid.UUID, clientID string, now time.Time) (*domain.Consent, error) {
	cn.c.mu.Lock()
	defer cn.c.mu.Unlock()
	for _, consent := range cn.c.consents {
		if consent.UserID == userID && consent.ClientID == clientID && consent.IsActive(now) {
			cp := *consent
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (cn *Consents) FindAllByUser(_ context.Context, userID uuid.UUID) ([]*domain.Consent, error) {
	cn.c.mu.Lock()
	defer cn.c.mu.Unlock()
	var out []*domain.Consent
	for _, consent := range cn.c.consents {
		if consent.UserID == userID {
			cp := *consent
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.After(out[j].GrantedAt) })
	return out, nil
}

func (cn *Consents) FindByID(_ context.Context, id uuid.UUID) (*domain.Consent, error) {
	cn.c.mu.Lock()
	defer cn.c.mu.Unlock()
	consent, ok := cn.c.consents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *consent
	return &cp, nil
}

// Save revokes any existing active row for (c.UserID, c.ClientID) before
// inserting c, mirroring the Postgres implementation's transaction.
func (cn *Consents) Save(_ context.Context, consent *domain.Consent) error {
	cn.c.mu.Lock()
	defer cn.c.mu.Unlock()
	for _, existing := range cn.c.consents {
		if existing.UserID == consent.UserID && existing.ClientID == consent.ClientID && existing.RevokedAt == nil {
			revokedAt := consent.GrantedAt
			existing.RevokedAt = &revokedAt
		}
	}
	cp := *consent
	cn.c.consents[consent.ID] = &cp
	return nil
}

func (cn *Consents) Revoke(_ context.Context, id uuid.UUID, now time.Time) error {
	cn.c.mu.Lock()
	defer cn.c.mu.Unlock()
	consent, ok := cn.c.consents[id]
	if !ok {
		return storage.ErrNotFound
	}
	if consent.RevokedAt == nil {
		consent.RevokedAt = &now
	}
	return nil
}

// Scopes implements storage.ScopeRepository.
type Scopes struct{ c *core }

func (sc *Scopes) FindAll(_ context.Context) ([]domain.ScopeDefinition, error) {
	sc.c.mu.Lock()
	defer sc.c.mu.Unlock()
	return append([]domain.ScopeDefinition(nil), sc.c.scopes...), nil
}

func (sc *Scopes) FindByNames(_ context.Context, names []string) ([]domain.ScopeDefinition, error) {
	sc.c.mu.Lock()
	defer sc.c.mu.Unlock()
	want := map[string]struct{}{}
	for _, n := range names {
		want[n] = struct{}{}
	}
	var out []domain.ScopeDefinition
	for _, s := range sc.c.scopes {
		if _, ok := want[s.Name]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Package oauth implements the authorization endpoint state machine:
// /authorize's consent gating and system-client bypass, the consent
// decision transition, and the /token authorization-code exchange with
// its single-use and PKCE guarantees. The machine's state lives in
// persisted rows (sessions, consents, codes), not in memory; this
// service is stateless between calls.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/coreauth/oauthserver/internal/audit"
	"github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrInvalidClient        = errors.New("oauth: invalid client")
	ErrInvalidCode          = errors.New("oauth: invalid authorization code")
	ErrDenyConsent          = errors.New("oauth: consent denied by user")
	ErrUnsupportedGrantType = errors.New("oauth: unsupported grant_type")
)

// FieldError names one invalid request field, matching the
// ValidateRequestError taxonomy entry's {field, msg} shape.
type FieldError struct {
	Field string
	Msg   string
}

// ValidationError carries every field-level problem found while
// validating an /authorize, /consent/decision, or /token request.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Msg
	}
	return "oauth: invalid request (" + strings.Join(parts, "; ") + ")"
}

func validationErr(field, msg string) error {
	return &ValidationError{Errors: []FieldError{{Field: field, Msg: msg}}}
}

// ClientRepository is the subset of storage.ClientRepository this
// service depends on.
type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Client, error)
}

// CodeRepository is the subset of storage.AuthorizationCodeRepository
// this service depends on.
type CodeRepository interface {
	Create(ctx context.Context, code *domain.AuthorizationCode) error
	FindByCode(ctx context.Context, code string) (*domain.AuthorizationCode, error)
	MarkUsed(ctx context.Context, code string, usedAt time.Time) error
}

// ScopeRepository is the subset of storage.ScopeRepository this service
// depends on.
type ScopeRepository interface {
	FindAll(ctx context.Context) ([]domain.ScopeDefinition, error)
}

// UserRepository is the subset of storage.UserRepository this service
// depends on, used only to read the email claim embedded in the access
// token.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// ConsentService is the consent ledger surface the state machine needs:
// whether an active consent already covers a requested scope set, and
// granting (auto-revoke then insert) a newly approved one.
type ConsentService interface {
	CoversScopes(ctx context.Context, userID uuid.UUID, clientID string, requested map[string]struct{}) (bool, error)
	Grant(ctx context.Context, userID uuid.UUID, clientID string, scopes map[string]struct{}) (*domain.Consent, error)
}

// Service is the authorization state machine: BeginAuthorize (T0),
// DecideConsent (T1), and ExchangeToken (T3); code issuance (T2) is a
// private helper shared by the first two.
type Service struct {
	clients        ClientRepository
	codes          CodeRepository
	scopes         ScopeRepository
	users          UserRepository
	consents       ConsentService
	tokens         crypto.TokenProvider
	audit          audit.Service
	authCodeTTL    time.Duration
	accessTokenTTL time.Duration
	now            func() time.Time
}

func New(
	clients ClientRepository,
	codes CodeRepository,
	scopes ScopeRepository,
	users UserRepository,
	consents ConsentService,
	tokens crypto.TokenProvider,
	auditLog audit.Service,
	authCodeTTL, accessTokenTTL time.Duration,
) *Service {
	return &Service{
		clients:        clients,
		codes:          codes,
		scopes:         scopes,
		users:          users,
		consents:       consents,
		tokens:         tokens,
		audit:          auditLog,
		authCodeTTL:    authCodeTTL,
		accessTokenTTL: accessTokenTTL,
		now:            time.Now,
	}
}

// AuthorizeRequest is the validated input to /authorize and the input
// echoed back through /consent/decision.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	CodeChallenge       string
	CodeChallengeMethod string
	State               string
	Scope               string // space-delimited; empty means "use defaults"
}

// ConsentRequired is returned from BeginAuthorize when the user must be
// shown a consent prompt before a code can be issued.
type ConsentRequired struct {
	ClientID   string
	ClientName string
	Scopes     []domain.ScopeDefinition
	Request    AuthorizeRequest
}

// AuthorizeResult is the outcome of BeginAuthorize or DecideConsent:
// exactly one of RedirectURL or ConsentRequired is set.
type AuthorizeResult struct {
	RedirectURL     string
	ConsentRequired *ConsentRequired
}

// BeginAuthorize implements T0. userID is the caller authenticated via
// their login session cookie.
func (s *Service) BeginAuthorize(ctx context.Context, userID uuid.UUID, req AuthorizeRequest) (*AuthorizeResult, error) {
	client, scopeSet, scopeDefs, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if client.IsSystemClient {
		redirect, err := s.issueCode(ctx, userID, client, req, scopeSet)
		if err != nil {
			return nil, err
		}
		return &AuthorizeResult{RedirectURL: redirect}, nil
	}

	covers, err := s.consents.CoversScopes(ctx, userID, client.ClientID, scopeSet)
	if err != nil {
		return nil, fmt.Errorf("check consent: %w", err)
	}
	if covers {
		redirect, err := s.issueCode(ctx, userID, client, req, scopeSet)
		if err != nil {
			return nil, err
		}
		return &AuthorizeResult{RedirectURL: redirect}, nil
	}

	return &AuthorizeResult{ConsentRequired: &ConsentRequired{
		ClientID:   client.ClientID,
		ClientName: client.ClientName,
		Scopes:     scopeDefs,
		Request:    req,
	}}, nil
}

// DecideConsent implements T1. decision is "approve" or "deny"; req is
// the authorization request echoed back from the consent prompt.
func (s *Service) DecideConsent(ctx context.Context, userID uuid.UUID, decision string, req AuthorizeRequest) (*AuthorizeResult, error) {
	if decision != "approve" {
		return nil, ErrDenyConsent
	}

	client, scopeSet, _, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if _, err := s.consents.Grant(ctx, userID, client.ClientID, scopeSet); err != nil {
		return nil, fmt.Errorf("grant consent: %w", err)
	}
	s.audit.Log(ctx, audit.EventConsentGranted, audit.LogParams{ActorID: userID, ClientID: client.ClientID})

	redirect, err := s.issueCode(ctx, userID, client, req, scopeSet)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResult{RedirectURL: redirect}, nil
}

// issueCode implements T2: generate and persist a single-use code, then
// build the redirect target.
func (s *Service) issueCode(ctx context.Context, userID uuid.UUID, client *domain.Client, req AuthorizeRequest, scopeSet map[string]struct{}) (string, error) {
	codeVal, err := crypto.GenerateAuthCode()
	if err != nil {
		return "", fmt.Errorf("generate auth code: %w", err)
	}

	now := s.now()
	code := domain.NewAuthorizationCode(
		codeVal,
		userID.String(),
		client.ClientID,
		req.RedirectURI,
		domain.JoinScopes(scopeSet),
		domain.CodeChallengeMethod(req.CodeChallengeMethod),
		req.CodeChallenge,
		s.authCodeTTL,
		now,
	)
	if err := s.codes.Create(ctx, code); err != nil {
		return "", fmt.Errorf("persist auth code: %w", err)
	}

	return buildRedirect(req.RedirectURI, codeVal, req.State), nil
}

func buildRedirect(redirectURI, code, state string) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	out := redirectURI + sep + "code=" + code
	if state != "" {
		out += "&state=" + state
	}
	return out
}

// validate runs the shared preconditions of T0/T1 (spec §4.2, steps
// 1-5), returning the resolved client and the effective, validated
// scope set.
func (s *Service) validate(ctx context.Context, req AuthorizeRequest) (*domain.Client, map[string]struct{}, []domain.ScopeDefinition, error) {
	client, err := s.clients.FindByID(ctx, req.ClientID)
	if err != nil || !client.IsActive {
		return nil, nil, nil, ErrInvalidClient
	}

	if !client.HasExactRedirectURI(req.RedirectURI) {
		return nil, nil, nil, ErrInvalidClient
	}

	if req.ResponseType != "code" {
		return nil, nil, nil, validationErr("response_type", "must be \"code\"")
	}

	if err := validateCodeChallenge(req.CodeChallenge, req.CodeChallengeMethod); err != nil {
		return nil, nil, nil, err
	}

	allScopes, err := s.scopes.FindAll(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load scopes: %w", err)
	}
	known := domain.KnownScopeSet(allScopes)

	requestedNames := strings.Fields(req.Scope)
	if len(requestedNames) == 0 {
		requestedNames = domain.DefaultScopeNames(allScopes)
	}
	scopeSet := map[string]struct{}{}
	var scopeDefs []domain.ScopeDefinition
	for _, name := range requestedNames {
		if _, ok := known[name]; !ok {
			return nil, nil, nil, validationErr("scope", fmt.Sprintf("unknown scope %q", name))
		}
		scopeSet[name] = struct{}{}
	}
	for _, def := range allScopes {
		if _, ok := scopeSet[def.Name]; ok {
			scopeDefs = append(scopeDefs, def)
		}
	}

	return client, scopeSet, scopeDefs, nil
}

// validateCodeChallenge enforces the RFC 7636 challenge shape: 43-128
// unreserved URL characters, method in {S256, plain}.
func validateCodeChallenge(challenge, method string) error {
	if method != "S256" && method != "plain" {
		return validationErr("code_challenge_method", "must be S256 or plain")
	}
	if len(challenge) < 43 || len(challenge) > 128 {
		return validationErr("code_challenge", "length must be between 43 and 128 characters")
	}
	for _, r := range challenge {
		if !isUnreservedURLChar(r) {
			return validationErr("code_challenge", "must use only unreserved URL characters")
		}
	}
	return nil
}

func isUnreservedURLChar(r rune) bool {
	switch {
	case unicode.IsLetter(r) && r <= unicode.MaxASCII:
	case unicode.IsDigit(r) && r <= unicode.MaxASCII:
	case r == '-' || r == '.' || r == '_' || r == '~':
	default:
		return false
	}
	return true
}

// TokenRequest is the validated form body of POST /auth/token.
type TokenRequest struct {
	GrantType    string
	Code         string
	ClientID     string
	RedirectURI  string
	CodeVerifier string
}

// TokenResponse is the success body of POST /auth/token.
type TokenResponse struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
	Scope       string
}

// ExchangeToken implements T3: validate, atomically mark the code used
// (replay protection), and mint an access token.
func (s *Service) ExchangeToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.GrantType != "authorization_code" {
		return nil, validationErr("grant_type", "unsupported grant_type")
	}

	code, err := s.codes.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, ErrInvalidCode
	}

	if code.ClientID != req.ClientID || code.RedirectURI != req.RedirectURI {
		return nil, ErrInvalidCode
	}

	now := s.now()
	if !code.IsRedeemable(now) {
		return nil, ErrInvalidCode
	}

	if !crypto.VerifyPKCE(req.CodeVerifier, code.CodeChallenge, string(code.CodeChallengeMethod)) {
		return nil, ErrInvalidCode
	}

	client, err := s.clients.FindByID(ctx, req.ClientID)
	if err != nil || !client.IsActive {
		return nil, ErrInvalidClient
	}

	if err := s.codes.MarkUsed(ctx, code.Code, now); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("mark code used: %w", err)
	}

	userID, err := uuid.Parse(code.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse code user id: %w", err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load code user: %w", err)
	}

	accessToken, err := s.tokens.IssueAccessToken(code.UserID, user.Email, code.ClientID, code.Scope, s.accessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.audit.Log(ctx, audit.EventTokenIssued, audit.LogParams{ActorID: userID, ClientID: client.ClientID})

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTokenTTL.Seconds()),
		Scope:       code.Scope,
	}, nil
}

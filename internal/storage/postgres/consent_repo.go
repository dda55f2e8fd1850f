package postgres

import (
	"context"
	"time"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConsentRepo implements storage.ConsentRepository. Uniqueness of the
// active consent per (user_id, client_id) is additionally enforced at the
// schema level by a partial unique index on revoked_at IS NULL.
type ConsentRepo struct {
	pool *pgxpool.Pool
}

func NewConsentRepo(pool *pgxpool.Pool) *ConsentRepo {
	return &ConsentRepo{pool: pool}
}

const consentSelectColumns = `SELECT id, user_id, client_id, scopes, granted_at, expires_at, revoked_at`

func (r *ConsentRepo) FindActive(ctx context.Context, userID uuid.UUID, clientID string, now time.Time) (*domain.Consent, error) {
	row := r.pool.QueryRow(ctx, consentSelectColumns+`
		FROM consents
		WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL
			AND (expires_at IS NULL OR expires_at > $3)`, userID, clientID, now)
	return scanConsent(row)
}

func (r *ConsentRepo) FindAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Consent, error) {
	rows, err := r.pool.Query(ctx, consentSelectColumns+`
		FROM consents WHERE user_id = $1 ORDER BY granted_at DESC`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectConsents(rows)
}

func (r *ConsentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Consent, error) {
	row := r.pool.QueryRow(ctx, consentSelectColumns+` FROM consents WHERE id = $1`, id)
	return scanConsent(row)
}

// Save transactionally revokes any existing active row for
// (c.UserID, c.ClientID) and inserts c, so at most one active row per
// pair survives the transaction.
func (r *ConsentRepo) Save(ctx context.Context, c *domain.Consent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE consents SET revoked_at = $3
		WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL`,
		c.UserID, c.ClientID, c.GrantedAt); err != nil {
		return mapErr(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO consents (id, user_id, client_id, scopes, granted_at, expires_at, revoked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.UserID, c.ClientID, domain.JoinScopes(c.Scopes), c.GrantedAt, c.ExpiresAt, c.RevokedAt,
	); err != nil {
		return mapErr(err)
	}

	return mapErr(tx.Commit(ctx))
}

func (r *ConsentRepo) Revoke(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE consents SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, now)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM consents WHERE id = $1)`, id).Scan(&exists); err != nil {
			return mapErr(err)
		}
		if !exists {
			return errNotFoundUpdate
		}
	}
	return nil
}

func scanConsent(row rowScanner) (*domain.Consent, error) {
	var c domain.Consent
	var scopes string
	if err := row.Scan(&c.ID, &c.UserID, &c.ClientID, &scopes, &c.GrantedAt, &c.ExpiresAt, &c.RevokedAt); err != nil {
		return nil, mapErr(err)
	}
	c.Scopes = domain.ScopeSet(scopes)
	return &c, nil
}

func collectConsents(rows pgx.Rows) ([]*domain.Consent, error) {
	var out []*domain.Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

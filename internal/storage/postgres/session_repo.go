package postgres

import (
	"context"
	"time"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepo implements storage.SessionRepository.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1,$2,$3,$4)`,
		s.ID, s.UserID, s.ExpiresAt, s.CreatedAt,
	)
	return mapErr(err)
}

// FindByID deletes the row first if it is already expired, so the lookup
// never returns an expired session to the caller.
func (r *SessionRepo) FindByID(ctx context.Context, id string, now time.Time) (*domain.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	defer tx.Rollback(ctx)

	var s domain.Session
	err = tx.QueryRow(ctx, `SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	if s.IsExpired(now) {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
			return nil, mapErr(err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, mapErr(err)
		}
		return nil, storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *SessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return mapErr(err)
}

func (r *SessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return mapErr(err)
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

package postgres

import (
	"context"
	"time"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthorizationCodeRepo implements storage.AuthorizationCodeRepository.
type AuthorizationCodeRepo struct {
	pool *pgxpool.Pool
}

func NewAuthorizationCodeRepo(pool *pgxpool.Pool) *AuthorizationCodeRepo {
	return &AuthorizationCodeRepo{pool: pool}
}

func (r *AuthorizationCodeRepo) Create(ctx context.Context, code *domain.AuthorizationCode) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO authorization_codes (
			code, user_id, client_id, redirect_uri, scope,
			code_challenge, code_challenge_method, expires_at, used, used_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		code.Code, code.UserID, code.ClientID, code.RedirectURI, code.Scope,
		code.CodeChallenge, string(code.CodeChallengeMethod), code.ExpiresAt, code.Used, code.UsedAt, code.CreatedAt,
	)
	return mapErr(err)
}

func (r *AuthorizationCodeRepo) FindByCode(ctx context.Context, codeVal string) (*domain.AuthorizationCode, error) {
	var c domain.AuthorizationCode
	var method string
	err := r.pool.QueryRow(ctx, `
		SELECT code, user_id, client_id, redirect_uri, scope,
			code_challenge, code_challenge_method, expires_at, used, used_at, created_at
		FROM authorization_codes WHERE code = $1`, codeVal,
	).Scan(&c.Code, &c.UserID, &c.ClientID, &c.RedirectURI, &c.Scope,
		&c.CodeChallenge, &method, &c.ExpiresAt, &c.Used, &c.UsedAt, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	c.CodeChallengeMethod = domain.CodeChallengeMethod(method)
	return &c, nil
}

// MarkUsed flips used to true only if it is currently false, guaranteeing
// a code can be redeemed by at most one concurrent /token request.
func (r *AuthorizationCodeRepo) MarkUsed(ctx context.Context, codeVal string, usedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE authorization_codes SET used = true, used_at = $2
		WHERE code = $1 AND used = false`, codeVal, usedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

func (r *AuthorizationCodeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM authorization_codes WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

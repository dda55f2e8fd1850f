package postgres

import (
	"context"
	"sort"
	"strings"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo implements storage.UserRepository against Postgres.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, username, password_hash, full_name, roles,
			is_active, email_verified, is_developer, can_use_expenses,
			developer_enabled_at, expenses_enabled_at, mfa_secret, mfa_enabled,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		u.ID, u.Email, nullableText(u.Username), u.PasswordHash, u.FullName, rolesToSlice(u.Roles),
		u.IsActive, u.EmailVerified, u.IsDeveloper, u.CanUseExpenses,
		u.DeveloperEnabledAt, u.ExpensesEnabledAt, nullableText(u.MFASecret), u.MFAEnabled,
		u.CreatedAt, u.UpdatedAt,
	)
	return mapErr(err)
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, userSelectColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, userSelectColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, userSelectColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (r *UserRepo) FindByEmailOrUsername(ctx context.Context, identifier string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, userSelectColumns+` FROM users WHERE email = lower($1) OR username = $1`, identifier)
	return scanUser(row)
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			email = $2, username = $3, password_hash = $4, full_name = $5, roles = $6,
			is_active = $7, email_verified = $8, is_developer = $9, can_use_expenses = $10,
			developer_enabled_at = $11, expenses_enabled_at = $12, mfa_secret = $13, mfa_enabled = $14,
			updated_at = $15
		WHERE id = $1`,
		u.ID, u.Email, nullableText(u.Username), u.PasswordHash, u.FullName, rolesToSlice(u.Roles),
		u.IsActive, u.EmailVerified, u.IsDeveloper, u.CanUseExpenses,
		u.DeveloperEnabledAt, u.ExpensesEnabledAt, nullableText(u.MFASecret), u.MFAEnabled,
		u.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errNotFoundUpdate
	}
	return nil
}

const userSelectColumns = `SELECT
	id, email, username, password_hash, full_name, roles,
	is_active, email_verified, is_developer, can_use_expenses,
	developer_enabled_at, expenses_enabled_at, mfa_secret, mfa_enabled,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var username, mfaSecret *string
	var roles []string
	if err := row.Scan(
		&u.ID, &u.Email, &username, &u.PasswordHash, &u.FullName, &roles,
		&u.IsActive, &u.EmailVerified, &u.IsDeveloper, &u.CanUseExpenses,
		&u.DeveloperEnabledAt, &u.ExpensesEnabledAt, &mfaSecret, &u.MFAEnabled,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	if username != nil {
		u.Username = *username
	}
	if mfaSecret != nil {
		u.MFASecret = *mfaSecret
	}
	u.Roles = sliceToRoles(roles)
	return &u, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rolesToSlice(roles map[string]struct{}) []string {
	out := make([]string, 0, len(roles))
	for r := range roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func sliceToRoles(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

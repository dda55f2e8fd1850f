package postgres

import (
	"context"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScopeRepo implements storage.ScopeRepository.
type ScopeRepo struct {
	pool *pgxpool.Pool
}

func NewScopeRepo(pool *pgxpool.Pool) *ScopeRepo {
	return &ScopeRepo{pool: pool}
}

func (r *ScopeRepo) FindAll(ctx context.Context) ([]domain.ScopeDefinition, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, description, is_default FROM scopes ORDER BY name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.ScopeDefinition
	for rows.Next() {
		var s domain.ScopeDefinition
		if err := rows.Scan(&s.Name, &s.Description, &s.IsDefault); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ScopeRepo) FindByNames(ctx context.Context, names []string) ([]domain.ScopeDefinition, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, description, is_default FROM scopes WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.ScopeDefinition
	for rows.Next() {
		var s domain.ScopeDefinition
		if err := rows.Scan(&s.Name, &s.Description, &s.IsDefault); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

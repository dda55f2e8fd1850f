package postgres

import (
	"context"
	"sort"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientRepo implements storage.ClientRepository against Postgres.
type ClientRepo struct {
	pool *pgxpool.Pool
}

func NewClientRepo(pool *pgxpool.Pool) *ClientRepo {
	return &ClientRepo{pool: pool}
}

const clientSelectColumns = `SELECT
	id, client_id, client_secret_hash, client_secret_old, secret_expires_at,
	client_name, redirect_uris, grant_types, is_public, is_active,
	is_system_client, system_role, user_id, created_at, updated_at`

func (r *ClientRepo) Create(ctx context.Context, c *domain.Client) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (
			id, client_id, client_secret_hash, client_secret_old, secret_expires_at,
			client_name, redirect_uris, grant_types, is_public, is_active,
			is_system_client, system_role, user_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		c.ID, c.ClientID, c.ClientSecretHash, c.ClientSecretOld, c.SecretExpiresAt,
		c.ClientName, c.RedirectURIs, grantTypesToSlice(c.GrantTypes), c.IsPublic, c.IsActive,
		c.IsSystemClient, c.SystemRole, c.UserID, c.CreatedAt, c.UpdatedAt,
	)
	return mapErr(err)
}

func (r *ClientRepo) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	row := r.pool.QueryRow(ctx, clientSelectColumns+` FROM clients WHERE client_id = $1`, id)
	return scanClient(row)
}

func (r *ClientRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Client, error) {
	rows, err := r.pool.Query(ctx, clientSelectColumns+` FROM clients WHERE user_id = $1 AND is_active = true ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectClients(rows)
}

func (r *ClientRepo) FindSystemClient(ctx context.Context) (*domain.Client, error) {
	row := r.pool.QueryRow(ctx, clientSelectColumns+` FROM clients WHERE is_system_client = true LIMIT 1`)
	return scanClient(row)
}

func (r *ClientRepo) Update(ctx context.Context, c *domain.Client) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET
			client_secret_hash = $2, client_secret_old = $3, secret_expires_at = $4,
			client_name = $5, redirect_uris = $6, grant_types = $7, is_public = $8,
			is_active = $9, system_role = $10, updated_at = $11
		WHERE client_id = $1`,
		c.ClientID, c.ClientSecretHash, c.ClientSecretOld, c.SecretExpiresAt,
		c.ClientName, c.RedirectURIs, grantTypesToSlice(c.GrantTypes), c.IsPublic,
		c.IsActive, c.SystemRole, c.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errNotFoundUpdate
	}
	return nil
}

func scanClient(row rowScanner) (*domain.Client, error) {
	var c domain.Client
	var grantTypes []string
	if err := row.Scan(
		&c.ID, &c.ClientID, &c.ClientSecretHash, &c.ClientSecretOld, &c.SecretExpiresAt,
		&c.ClientName, &c.RedirectURIs, &grantTypes, &c.IsPublic, &c.IsActive,
		&c.IsSystemClient, &c.SystemRole, &c.UserID, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	c.GrantTypes = sliceToGrantTypes(grantTypes)
	return &c, nil
}

func collectClients(rows pgx.Rows) ([]*domain.Client, error) {
	var out []*domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func grantTypesToSlice(set map[domain.GrantType]struct{}) []string {
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, string(g))
	}
	sort.Strings(out)
	return out
}

func sliceToGrantTypes(names []string) map[domain.GrantType]struct{} {
	set := make(map[domain.GrantType]struct{}, len(names))
	for _, n := range names {
		set[domain.GrantType(n)] = struct{}{}
	}
	return set
}

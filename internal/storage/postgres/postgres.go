// Package postgres implements the storage ports directly against
// pgx/pgxpool, without a query-generation step.
package postgres

import (
	"errors"

	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// errNotFoundUpdate is returned by Update methods when the affected-rows
// count is zero, i.e. the target row doesn't exist.
var errNotFoundUpdate = storage.ErrNotFound

// mapErr normalizes pgx errors to the storage package's sentinel errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrConflict
	}
	return err
}

// Package bootstrap ensures the first-party system client exists before
// the HTTP server starts serving traffic. Failures here abort startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/google/uuid"
)

// MinSystemClientSecretLength is the minimum configured-secret length
// below which bootstrap fails fatally.
const MinSystemClientSecretLength = 32

// ErrSecretTooShort is returned when BFF_CLIENT_SECRET is shorter than
// MinSystemClientSecretLength; the caller should treat this as fatal.
var ErrSecretTooShort = errors.New("bootstrap: configured system client secret is too short")

// ClientRepository is the subset of storage.ClientRepository bootstrap
// depends on.
type ClientRepository interface {
	Create(ctx context.Context, c *domain.Client) error
	FindSystemClient(ctx context.Context) (*domain.Client, error)
}

// Config names the first-party system client to ensure exists.
type Config struct {
	ClientID     string
	ClientSecret string
	ClientName   string
	RedirectURIs []string
	SystemRole   string // defaults to "bff" if empty
}

// Ensure looks up the system client and creates one with the configured
// role if none exists. The role of an existing system client is not
// compared with the configured role; that at most one system client
// exists is enforced by the partial unique index on is_system_client in
// the clients migration, not here. If a system client already
// exists, its stored secret hash is checked against the configured
// secret; a mismatch is logged as a warning (rotation is assumed to
// have happened) rather than overwritten.
func Ensure(ctx context.Context, repo ClientRepository, hasher crypto.PasswordHasher, cfg Config, logger *slog.Logger) error {
	if len(cfg.ClientSecret) < MinSystemClientSecretLength {
		return ErrSecretTooShort
	}
	role := cfg.SystemRole
	if role == "" {
		role = "bff"
	}

	existing, err := repo.FindSystemClient(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("bootstrap: lookup system client: %w", err)
		}
		return createSystemClient(ctx, repo, hasher, cfg, role)
	}

	if err := hasher.Compare(existing.ClientSecretHash, cfg.ClientSecret); err != nil {
		logger.Warn("system_client_secret_mismatch",
			"client_id", existing.ClientID,
			"details", "stored hash does not match configured secret; assuming rotation already happened, not overwriting",
		)
	}
	return nil
}

func createSystemClient(ctx context.Context, repo ClientRepository, hasher crypto.PasswordHasher, cfg Config, role string) error {
	hash, err := hasher.Hash(cfg.ClientSecret)
	if err != nil {
		return fmt.Errorf("bootstrap: hash system client secret: %w", err)
	}

	c := domain.NewSystemClient(cfg.ClientID, cfg.ClientName, cfg.RedirectURIs, role, time.Now())
	if c.ClientID == "" {
		c.ClientID = uuid.NewString()
	}
	c.ClientSecretHash = hash

	if err := repo.Create(ctx, c); err != nil {
		return fmt.Errorf("bootstrap: create system client: %w", err)
	}
	return nil
}

// Package audit records security-relevant domain events: registrations,
// logins, consent grants/revocations, client secret rotations.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event names used across the server. Kept as typed constants so a
// typo in a call site is a compile error, not a silent no-op log line.
const (
	EventUserRegistered      = "user.registered"
	EventUserLoginSuccess    = "auth.login.success"
	EventUserLoginFailed     = "auth.login.failed"
	EventUserLogout          = "auth.logout"
	EventUserUpgraded        = "user.upgraded_to_developer"
	EventConsentGranted      = "consent.granted"
	EventConsentRevoked      = "consent.revoked"
	EventClientRegistered    = "client.registered"
	EventClientSecretRotated = "client.secret_rotated"
	EventClientDeleted       = "client.soft_deleted"
	EventTokenIssued         = "oauth.token_issued"
)

// LogParams carries the optional context around one audit event.
type LogParams struct {
	ActorID  uuid.UUID
	TargetID uuid.UUID
	ClientID string
	Metadata map[string]any
}

// Service records audit events.
type Service interface {
	Log(ctx context.Context, action string, params LogParams)
}

// PostgresLogger persists audit events to the audit_log table, falling
// back to an error-level slog line if the insert itself fails so the
// event is never silently lost.
type PostgresLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresLogger(pool *pgxpool.Pool, logger *slog.Logger) *PostgresLogger {
	return &PostgresLogger{pool: pool, logger: logger}
}

func (l *PostgresLogger) Log(ctx context.Context, action string, params LogParams) {
	metadata, err := json.Marshal(params.Metadata)
	if err != nil {
		l.logger.Error("audit metadata marshal failed", "error", err, "action", action)
		metadata = []byte("{}")
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, target_id, client_id, action, metadata, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, now())`,
		nullableUUID(params.ActorID), nullableUUID(params.TargetID), nullableString(params.ClientID), action, metadata,
	)
	if err != nil {
		l.logger.Error("audit insert failed", "error", err, "action", action, "actor", params.ActorID)
	}
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SlogLogger logs audit events through the application logger only, for
// contexts where no audit_log table is guaranteed to exist (most
// service-level unit tests use a bespoke no-op fake instead, but this is
// the implementation a dry-run or non-Postgres deployment would reach
// for).
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Log(_ context.Context, action string, params LogParams) {
	l.logger.Info("audit",
		"action", action,
		"actor_id", params.ActorID,
		"target_id", params.TargetID,
		"client_id", params.ClientID,
		"metadata", params.Metadata,
	)
}

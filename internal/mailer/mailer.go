// Package mailer sends transactional notifications triggered by account
// and client lifecycle events: a welcome email on registration, a
// rotation notice on client secret rotation, a confirmation on password
// change.
package mailer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Template names this server is willing to send. Restricting to a
// closed set prevents an arbitrary string reaching a template renderer.
type Template string

const (
	TemplateWelcome         Template = "welcome"
	TemplateSecretRotated   Template = "client_secret_rotated"
	TemplatePasswordChanged Template = "password_changed"
)

// Payload carries everything a Sender needs to deliver one notification.
type Payload struct {
	To       string
	Template Template
	Data     map[string]any
}

// Sender delivers transactional email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, payload Payload) error
}

// DevSender logs emails instead of delivering them, used outside
// production.
type DevSender struct {
	Logger *slog.Logger
}

func NewDevSender(logger *slog.Logger) *DevSender {
	return &DevSender{Logger: logger}
}

func (m *DevSender) Send(_ context.Context, payload Payload) error {
	m.Logger.Info("email_sent",
		"to_hash", HashRecipient(payload.To),
		"template", payload.Template,
		"data", payload.Data,
	)
	return nil
}

// OutboxSender enqueues email onto a caller-supplied outbox store
// instead of delivering synchronously, keeping SMTP out of the request
// path.
type OutboxSender struct {
	enqueue func(ctx context.Context, payload Payload) error
	logger  *slog.Logger
}

// NewOutboxSender builds a sender backed by enqueue, the storage-layer
// insert used to persist a pending outbox row.
func NewOutboxSender(logger *slog.Logger, enqueue func(ctx context.Context, payload Payload) error) *OutboxSender {
	return &OutboxSender{enqueue: enqueue, logger: logger}
}

func (m *OutboxSender) Send(ctx context.Context, payload Payload) error {
	if err := m.enqueue(ctx, payload); err != nil {
		m.logger.Error("email_enqueue_failed", "to_hash", HashRecipient(payload.To), "error", err)
		return fmt.Errorf("enqueue email: %w", err)
	}
	m.logger.Info("email_enqueued", "to_hash", HashRecipient(payload.To), "template", payload.Template)
	return nil
}

// HashRecipient fingerprints an email address for logging without
// exposing the address itself.
func HashRecipient(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

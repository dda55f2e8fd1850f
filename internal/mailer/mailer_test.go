package mailer_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/coreauth/oauthserver/internal/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevSender_LogsWithoutExposingRecipient(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sender := mailer.NewDevSender(logger)

	err := sender.Send(context.Background(), mailer.Payload{
		To:       "dev@example.com",
		Template: mailer.TemplateWelcome,
		Data:     map[string]any{"fullName": "Dev User"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, string(mailer.TemplateWelcome))
	assert.NotContains(t, out, "dev@example.com")
	assert.Contains(t, out, mailer.HashRecipient("dev@example.com"))
}

func TestOutboxSender_EnqueuesPayload(t *testing.T) {
	var enqueued mailer.Payload
	var calls int
	sender := mailer.NewOutboxSender(slog.Default(), func(_ context.Context, payload mailer.Payload) error {
		calls++
		enqueued = payload
		return nil
	})

	err := sender.Send(context.Background(), mailer.Payload{To: "owner@example.com", Template: mailer.TemplateSecretRotated})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, mailer.TemplateSecretRotated, enqueued.Template)
}

func TestOutboxSender_WrapsEnqueueError(t *testing.T) {
	sender := mailer.NewOutboxSender(slog.Default(), func(_ context.Context, _ mailer.Payload) error {
		return errors.New("db unavailable")
	})

	err := sender.Send(context.Background(), mailer.Payload{To: "owner@example.com", Template: mailer.TemplateWelcome})
	assert.Error(t, err)
}

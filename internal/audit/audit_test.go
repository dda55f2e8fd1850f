package audit_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/coreauth/oauthserver/internal/audit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSlogLogger_WritesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := audit.NewSlogLogger(logger)

	actor := uuid.New()
	svc.Log(context.Background(), audit.EventUserLoginSuccess, audit.LogParams{
		ActorID:  actor,
		TargetID: actor,
		Metadata: map[string]any{"ip": "127.0.0.1"},
	})

	out := buf.String()
	assert.Contains(t, out, audit.EventUserLoginSuccess)
	assert.Contains(t, out, actor.String())
}

func TestSlogLogger_SatisfiesService(t *testing.T) {
	var _ audit.Service = audit.NewSlogLogger(slog.Default())
	var _ audit.Service = (*audit.PostgresLogger)(nil)
}

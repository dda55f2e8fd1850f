package middleware

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

// Context keys populated by session.go/bearer.go once the caller is
// authenticated.
const (
	UserIDKey contextKey = "user_id"
)

// GetUserID extracts the authenticated caller's id from context.
func GetUserID(ctx context.Context) (uuid.UUID, error) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, fmt.Errorf("user_id not found in context")
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("user_id has wrong type: %T", val)
	}
	return id, nil
}

// WithUserID returns a context carrying the authenticated caller's id.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

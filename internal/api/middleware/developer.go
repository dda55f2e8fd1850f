package middleware

import (
	"context"
	"net/http"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/google/uuid"
)

// UserLookup is the user.Service surface this middleware needs.
type UserLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// RequireDeveloper rejects callers whose account has not upgraded to
// developer status. Must run after RequireSession/RequireBearer.
func RequireDeveloper(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := GetUserID(r.Context())
			if err != nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			u, err := users.Get(r.Context(), userID)
			if err != nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !u.IsDeveloper {
				http.Error(w, "developer access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

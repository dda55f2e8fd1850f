package middleware

import (
	"context"
	"net/http"

	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/google/uuid"
)

// SessionLookup is the session.Service surface this middleware needs.
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (*domain.Session, error)
}

// RequireSession reads the session_id cookie, looks it up, and injects
// the owning user's id into the request context. It is the cookie-based
// analogue of RequireBearer, used by the browser-facing authorize and
// self-service-upgrade endpoints.
func RequireSession(sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session_id")
			if err != nil || cookie.Value == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			sess, err := sessions.Lookup(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}

			userID, err := uuid.Parse(sess.UserID)
			if err != nil {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

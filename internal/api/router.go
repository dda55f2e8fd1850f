// Package api wires the HTTP surface: one chi router serving the
// login/authorize/token endpoints and the user/client self-service CRUD
// surface.
package api

import (
	"log/slog"
	"net/http"

	customMiddleware "github.com/coreauth/oauthserver/internal/api/middleware"
	"github.com/coreauth/oauthserver/internal/client"
	"github.com/coreauth/oauthserver/internal/consent"
	"github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/oauth"
	"github.com/coreauth/oauthserver/internal/session"
	"github.com/coreauth/oauthserver/internal/user"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Server bundles the chi router with the dependencies its health check
// and handlers need.
type Server struct {
	Router *chi.Mux
	Logger *slog.Logger
}

// Deps holds every use-case service the HTTP surface depends on.
type Deps struct {
	Users    *user.Service
	Clients  *client.Service
	Consents *consent.Service
	Sessions *session.Service
	OAuth    *oauth.Service
	Tokens   crypto.TokenProvider
	MFA      *user.MFAService

	CORSOrigins   []string
	SecureCookies bool
	Logger        *slog.Logger
}

// NewServer builds the fully wired router.
func NewServer(d Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(customMiddleware.RequestLogger)
	r.Use(customMiddleware.PanicRecovery)

	limiter := customMiddleware.NewIPRateLimiter(rate.Limit(5), 10)
	r.Use(limiter.Middleware)
	r.Use(customMiddleware.CORS(d.CORSOrigins))

	authHandler := NewAuthHandler(d.Users, d.Sessions, d.OAuth, d.Tokens, d.SecureCookies)
	userHandler := NewUserHandler(d.Users, d.Consents, d.Sessions, d.MFA)
	clientHandler := NewClientHandler(d.Clients)

	requireSession := customMiddleware.RequireSession(d.Sessions)
	requireBearer := customMiddleware.RequireBearer(d.Tokens)
	requireDeveloper := customMiddleware.RequireDeveloper(d.Users)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/auth/login", authHandler.LoginPage)
	r.Post("/auth/login", authHandler.Login)
	r.Post("/auth/token", authHandler.Token)
	r.Get("/auth/.well-known/jwks.json", authHandler.JWKS)
	r.Post("/user/", userHandler.Register)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Use(customMiddleware.CSRF)
		r.Get("/auth/authorize", authHandler.Authorize)
		r.Post("/auth/authorize/decision", authHandler.AuthorizeDecision)
		r.Put("/user/me/upgrade/developer", userHandler.UpgradeToDeveloper)
		r.Put("/user/me/upgrade/expenses", userHandler.EnableExpenses)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireBearer)
		r.Get("/user/me", userHandler.Me)
		r.Put("/user/me", userHandler.UpdateProfile)
		r.Put("/user/me/password", userHandler.ChangePassword)
		r.Get("/user/me/consents", userHandler.ListConsents)
		r.Delete("/user/me/consents/{id}", userHandler.RevokeConsent)
		r.Post("/user/me/mfa/setup", userHandler.SetupMFA)
		r.Post("/user/me/mfa/activate", userHandler.ActivateMFA)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Use(requireDeveloper)
		r.Post("/client", clientHandler.Create)
		r.Get("/client", clientHandler.List)
		r.Get("/client/{id}", clientHandler.Get)
		r.Put("/client/{id}", clientHandler.Update)
		r.Delete("/client/{id}", clientHandler.Delete)
		r.Post("/client/{id}/rotate-secret", clientHandler.RotateSecret)
	})

	return &Server{Router: r, Logger: d.Logger}
}

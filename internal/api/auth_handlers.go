package api

import (
	"net/http"

	"github.com/coreauth/oauthserver/internal/api/helpers"
	"github.com/coreauth/oauthserver/internal/api/middleware"
	"github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/oauth"
	"github.com/coreauth/oauthserver/internal/session"
	"github.com/coreauth/oauthserver/internal/user"
)

// AuthHandler serves the login, authorize, and token endpoints.
type AuthHandler struct {
	users         *user.Service
	sessions      *session.Service
	oauthSvc      *oauth.Service
	tokens        crypto.TokenProvider
	secureCookies bool
}

func NewAuthHandler(users *user.Service, sessions *session.Service, oauthSvc *oauth.Service, tokens crypto.TokenProvider, secureCookies bool) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, oauthSvc: oauthSvc, tokens: tokens, secureCookies: secureCookies}
}

const loginFormHTML = `<!DOCTYPE html>
<html><head><title>Sign in</title></head>
<body>
<form method="POST" action="/auth/login">
  <label>Email or username <input name="identifier" type="text" required></label>
  <label>Password <input name="password" type="password" required></label>
  <button type="submit">Sign in</button>
</form>
</body></html>`

// LoginPage renders the static sign-in form.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(loginFormHTML))
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

func (req *loginRequest) validate() error {
	if req.Identifier == "" || req.Password == "" {
		return oauthValidationErr("identifier/password", "both fields are required")
	}
	return nil
}

// Login authenticates a user and issues a session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		writeError(w, oauthValidationErr("body", "invalid JSON"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.sessions.Issue(r.Context(), u.ID.String(), req.RememberMe)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})

	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"user":      newUserDTO(u),
		"expiresAt": sess.ExpiresAt,
		"message":   "signed in",
	})
}

func authorizeRequestFromQuery(r *http.Request) oauth.AuthorizeRequest {
	q := r.URL.Query()
	return oauth.AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		State:               q.Get("state"),
		Scope:               q.Get("scope"),
	}
}

// Authorize begins the authorization-code flow. The caller must already
// hold a valid session cookie (enforced by middleware.RequireSession).
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.oauthSvc.BeginAuthorize(r.Context(), userID, authorizeRequestFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if result.ConsentRequired != nil {
		helpers.RespondJSON(w, http.StatusOK, map[string]any{"consentRequired": result.ConsentRequired})
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

type consentDecisionRequest struct {
	Decision            string `json:"decision"`
	ClientID            string `json:"clientId"`
	RedirectURI         string `json:"redirectUri"`
	ResponseType        string `json:"responseType"`
	CodeChallenge       string `json:"codeChallenge"`
	CodeChallengeMethod string `json:"codeChallengeMethod"`
	State               string `json:"state"`
	Scope               string `json:"scope"`
}

// AuthorizeDecision records the user's approve/deny response to a
// consent prompt and, on approval, redirects with a fresh code.
func (h *AuthHandler) AuthorizeDecision(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req consentDecisionRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		writeError(w, oauthValidationErr("body", "invalid JSON"))
		return
	}

	authReq := oauth.AuthorizeRequest{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		ResponseType:        req.ResponseType,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		State:               req.State,
		Scope:               req.Scope,
	}

	result, err := h.oauthSvc.DecideConsent(r.Context(), userID, req.Decision, authReq)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// Token exchanges an authorization code for an access token. Per the
// OAuth2 form-encoded convention, the request body is
// application/x-www-form-urlencoded, not JSON.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, oauthValidationErr("body", "invalid form body"))
		return
	}

	req := oauth.TokenRequest{
		GrantType:    r.FormValue("grant_type"),
		Code:         r.FormValue("code"),
		ClientID:     r.FormValue("client_id"),
		RedirectURI:  r.FormValue("redirect_uri"),
		CodeVerifier: r.FormValue("code_verifier"),
	}

	resp, err := h.oauthSvc.ExchangeToken(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"access_token": resp.AccessToken,
		"token_type":   resp.TokenType,
		"expires_in":   resp.ExpiresIn,
		"scope":        resp.Scope,
	})
}

// JWKS publishes the public signing keys used to verify access tokens.
func (h *AuthHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	helpers.RespondJSON(w, http.StatusOK, h.tokens.JWKS())
}

func oauthValidationErr(field, msg string) error {
	return &oauth.ValidationError{Errors: []oauth.FieldError{{Field: field, Msg: msg}}}
}

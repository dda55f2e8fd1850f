package api

import (
	"encoding/base64"
	"net/http"

	"github.com/coreauth/oauthserver/internal/api/helpers"
	"github.com/coreauth/oauthserver/internal/api/middleware"
	"github.com/coreauth/oauthserver/internal/consent"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/session"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/coreauth/oauthserver/internal/user"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserHandler serves the self-service account endpoints.
type UserHandler struct {
	users    *user.Service
	consents *consent.Service
	sessions *session.Service
	mfa      *user.MFAService
}

func NewUserHandler(users *user.Service, consents *consent.Service, sessions *session.Service, mfa *user.MFAService) *UserHandler {
	return &UserHandler{users: users, consents: consents, sessions: sessions, mfa: mfa}
}

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	AccountType string `json:"accountType"`
}

// Register creates a new account. accountType defaults to "user" when
// omitted; "developer" is the only other accepted value (§4.5 does not
// expose "hybrid" at registration — that state is reached later via the
// upgrade/enable-expenses use cases).
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		writeError(w, oauthValidationErr("body", "invalid JSON"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, oauthValidationErr("email/password", "both fields are required"))
		return
	}

	accountType := domain.AccountTypeUser
	switch req.AccountType {
	case "", string(domain.AccountTypeUser):
		accountType = domain.AccountTypeUser
	case string(domain.AccountTypeDeveloper):
		accountType = domain.AccountTypeDeveloper
	default:
		writeError(w, oauthValidationErr("accountType", "must be \"user\" or \"developer\""))
		return
	}

	u, err := h.users.Register(r.Context(), req.Email, req.Username, req.Password, req.FullName, accountType)
	if err != nil {
		writeError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, map[string]any{
		"user":    newUserDTO(u),
		"message": "account created",
	})
}

// Me returns the authenticated caller's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"user": newUserDTO(u)})
}

type updateProfileRequest struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

// UpdateProfile changes the caller's editable profile fields.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateProfileRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		writeError(w, oauthValidationErr("body", "invalid JSON"))
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), userID, req.FullName, req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"user": newUserDTO(u)})
}

type changePasswordRequest struct {
	CurrentPassword  string `json:"currentPassword"`
	NewPassword      string `json:"newPassword"`
	RevokeAllSessions bool  `json:"revokeAllSessions"`
}

// ChangePassword verifies the current password before setting a new
// one, optionally revoking every active session of the user, the
// current one included.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req changePasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		writeError(w, oauthValidationErr("body", "invalid JSON"))
		return
	}

	if err := h.users.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"message": "password changed"}
	if req.RevokeAllSessions {
		if err := h.sessions.RevokeAllForUser(r.Context(), userID.String()); err != nil {
			writeError(w, err)
			return
		}
		resp["sessionRevoked"] = true
	}
	helpers.RespondJSON(w, http.StatusOK, resp)
}

// UpgradeToDeveloper flips the developer flag for the caller.
func (h *UserHandler) UpgradeToDeveloper(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := h.users.UpgradeToDeveloper(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"user": newUserDTO(u), "message": "upgraded to developer"})
}

// EnableExpenses flips the expenses flag for the caller.
func (h *UserHandler) EnableExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := h.users.EnableExpenses(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"user": newUserDTO(u), "message": "expenses enabled"})
}

// SetupMFA generates a fresh TOTP secret and QR code for the caller. The
// secret is not active until confirmed via ActivateMFA.
func (h *UserHandler) SetupMFA(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	secret, qrPNG, err := h.mfa.BeginSetup(u.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"secret": secret,
		"qrCode": base64.StdEncoding.EncodeToString(qrPNG),
	})
}

type activateMFARequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// ActivateMFA validates the first code against the just-issued secret and,
// on success, persists it as the caller's active TOTP secret.
func (h *UserHandler) ActivateMFA(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req activateMFARequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		writeError(w, oauthValidationErr("body", "invalid JSON"))
		return
	}
	if req.Secret == "" || req.Code == "" {
		writeError(w, oauthValidationErr("secret/code", "both fields are required"))
		return
	}
	if err := h.mfa.ConfirmSetup(r.Context(), userID, req.Secret, req.Code); err != nil {
		writeError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"message": "mfa enabled"})
}

// ListConsents returns the caller's active consents. Revoked rows stay
// in the ledger as audit history and are never exposed here.
func (h *UserHandler) ListConsents(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	active, err := h.consents.ListActive(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]consentDTO, 0, len(active))
	for _, c := range active {
		dtos = append(dtos, newConsentDTO(c))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"consents": dtos})
}

// RevokeConsent revokes one consent owned by the caller.
func (h *UserHandler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, oauthValidationErr("id", "must be a UUID"))
		return
	}

	history, err := h.consents.History(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	owned := false
	for _, c := range history {
		if c.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, storage.ErrNotFound)
		return
	}

	if err := h.consents.Revoke(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

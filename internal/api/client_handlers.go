package api

import (
	"net/http"

	"github.com/coreauth/oauthserver/internal/api/helpers"
	"github.com/coreauth/oauthserver/internal/api/middleware"
	"github.com/coreauth/oauthserver/internal/client"
	"github.com/go-chi/chi/v5"
)

// ClientHandler serves the developer-owned OAuth client CRUD endpoints.
type ClientHandler struct {
	clients *client.Service
}

func NewClientHandler(clients *client.Service) *ClientHandler {
	return &ClientHandler{clients: clients}
}

type registerClientRequest struct {
	ClientName   string   `json:"clientName"`
	RedirectURIs []string `json:"redirectUris"`
	IsPublic     bool     `json:"isPublic"`
}

// Create registers a new client owned by the caller.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req registerClientRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		writeError(w, oauthValidationErr("body", "invalid JSON"))
		return
	}

	registered, err := h.clients.Register(r.Context(), ownerID, req.ClientName, req.RedirectURIs, req.IsPublic)
	if err != nil {
		writeError(w, err)
		return
	}

	dto := newClientDTO(registered.Client)
	dto.ClientSecret = registered.PlainSecret
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"client": dto})
}

// List returns every client owned by the caller.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	clients, err := h.clients.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]clientDTO, 0, len(clients))
	for _, c := range clients {
		dtos = append(dtos, newClientDTO(c))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"clients": dtos})
}

// Get returns one client owned by the caller.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.clients.Get(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"client": newClientDTO(c)})
}

type updateClientRequest struct {
	ClientName   string   `json:"clientName"`
	RedirectURIs []string `json:"redirectUris"`
	IsPublic     bool     `json:"isPublic"`
}

// Update changes a client's editable fields.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateClientRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		writeError(w, oauthValidationErr("body", "invalid JSON"))
		return
	}

	c, err := h.clients.UpdateProfile(r.Context(), chi.URLParam(r, "id"), ownerID, req.ClientName, req.RedirectURIs, req.IsPublic)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"client": newClientDTO(c)})
}

// mfaCodeHeader carries an optional TOTP code on operations the client
// package gates behind MFA when the owner has it enabled (X-Mfa-Code
// is canonicalized by net/http regardless of the case used here).
const mfaCodeHeader = "X-MFA-Code"

// Delete soft-deletes a client owned by the caller. If the owner has
// TOTP enabled, the X-MFA-Code header must carry a valid current code.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.clients.SoftDelete(r.Context(), chi.URLParam(r, "id"), ownerID, r.Header.Get(mfaCodeHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateSecret issues a new client secret with a grace-period overlap.
// If the owner has TOTP enabled, the X-MFA-Code header must carry a
// valid current code.
func (h *ClientHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.GetUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	clientID := chi.URLParam(r, "id")

	plainSecret, err := h.clients.RotateSecret(r.Context(), clientID, ownerID, r.Header.Get(mfaCodeHeader))
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := h.clients.Get(r.Context(), clientID, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"clientId":           c.ClientID,
		"clientSecret":       plainSecret,
		"oldSecretExpiresAt": c.SecretExpiresAt,
		"message":            "secret rotated",
	})
}

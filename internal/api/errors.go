package api

import (
	"errors"
	"net/http"

	"github.com/coreauth/oauthserver/internal/api/helpers"
	"github.com/coreauth/oauthserver/internal/client"
	"github.com/coreauth/oauthserver/internal/domain"
	"github.com/coreauth/oauthserver/internal/oauth"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/coreauth/oauthserver/internal/user"
)

// writeError maps a use-case error to the {error, message, errorList?}
// taxonomy from the error handling design and writes it as JSON. Unknown
// errors are logged and collapsed to a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var verr *oauth.ValidationError
	switch {
	case errors.As(err, &verr):
		helpers.RespondError(w, http.StatusBadRequest, "ValidateRequestError", verr.Error(), verr.Errors)
	case errors.Is(err, user.ErrInvalidCredentials):
		helpers.RespondError(w, http.StatusUnauthorized, "InvalidCredentialsError", "invalid credentials", nil)
	case errors.Is(err, user.ErrAccountInactive):
		helpers.RespondError(w, http.StatusUnauthorized, "InvalidUser", "account is inactive", nil)
	case errors.Is(err, user.ErrInvalidUser):
		helpers.RespondError(w, http.StatusUnauthorized, "InvalidUser", "operation does not apply to this account's current state", nil)
	case errors.Is(err, user.ErrSamePassword):
		helpers.RespondError(w, http.StatusBadRequest, "ValidateRequestError", "new password must differ from the current password", nil)
	case errors.Is(err, domain.ErrWeakPassword):
		helpers.RespondError(w, http.StatusBadRequest, "ValidateRequestError", "password must be at least 8 characters with a digit, an uppercase letter, and a symbol", nil)
	case errors.Is(err, domain.ErrInvalidEmail):
		helpers.RespondError(w, http.StatusBadRequest, "ValidateRequestError", "invalid email address", nil)
	case errors.Is(err, domain.ErrInvalidUsername):
		helpers.RespondError(w, http.StatusBadRequest, "ValidateRequestError", "username must be 3-32 characters of letters, digits, underscore, or hyphen", nil)
	case errors.Is(err, oauth.ErrInvalidClient):
		helpers.RespondError(w, http.StatusUnauthorized, "InvalidClientError", "invalid client", nil)
	case errors.Is(err, oauth.ErrInvalidCode):
		helpers.RespondError(w, http.StatusUnauthorized, "InvalidCodeError", "invalid authorization code", nil)
	case errors.Is(err, oauth.ErrDenyConsent):
		helpers.RespondError(w, http.StatusUnauthorized, "DenyConsentError", "consent denied", nil)
	case errors.Is(err, oauth.ErrUnsupportedGrantType):
		helpers.RespondError(w, http.StatusBadRequest, "ValidateRequestError", "unsupported grant_type", nil)
	case errors.Is(err, client.ErrForbidden):
		helpers.RespondError(w, http.StatusForbidden, "ForbiddenError", "not authorized for this resource", nil)
	case errors.Is(err, client.ErrInvalidSecret):
		helpers.RespondError(w, http.StatusUnauthorized, "InvalidClientError", "invalid client secret", nil)
	case errors.Is(err, client.ErrMFARequired):
		helpers.RespondError(w, http.StatusUnauthorized, "MFARequiredError", "a valid mfa code is required for this operation", nil)
	case errors.Is(err, user.ErrMFANotEnabled):
		helpers.RespondError(w, http.StatusBadRequest, "ValidateRequestError", "mfa is not enabled for this account", nil)
	case errors.Is(err, user.ErrInvalidMFACode):
		helpers.RespondError(w, http.StatusUnauthorized, "InvalidMFACodeError", "invalid mfa code", nil)
	case errors.Is(err, storage.ErrNotFound):
		helpers.RespondError(w, http.StatusNotFound, "NotFoundRecordError", "record not found", nil)
	case errors.Is(err, storage.ErrConflict):
		helpers.RespondError(w, http.StatusUnprocessableEntity, "ConflictError", "a conflicting record already exists", nil)
	default:
		helpers.RespondError(w, http.StatusInternalServerError, "InternalError", "an unexpected error occurred", nil)
	}
}

package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"workforce/backend/internal/identity/service"
	"workforce/backend/internal/security"
	"workforce/backend/internal/server/api"
)

// Client-facing messages.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgCurrentIncorrect   = "Current password is incorrect"
	msgAccountInactive    = "Your account is inactive. Please contact HR."
	msgSessionInvalid     = "Session is invalid or expired"
	msgEmployeeNotFound   = "Employee not found"
	msgInternal           = "An unexpected error occurred"
)

// writeError maps service errors to HTTP status codes. Unknown errors are logged and
// reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrCurrentPasswordIncorrect):
		api.Error(w, r, http.StatusUnauthorized, msgCurrentIncorrect, nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		api.Error(w, r, http.StatusUnauthorized, msgInvalidCredentials, nil)
	case errors.Is(err, service.ErrAccountInactive):
		api.Error(w, r, http.StatusUnauthorized, msgAccountInactive, nil)
	case errors.Is(err, service.ErrDuplicateSession):
		api.Error(w, r, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrSessionInvalid):
		api.Error(w, r, http.StatusUnauthorized, msgSessionInvalid, nil)
	case errors.Is(err, security.ErrPasswordPolicy):
		var pe *security.PolicyError
		if errors.As(err, &pe) {
			api.Error(w, r, http.StatusBadRequest, pe.Error(), pe.Violations)
			return
		}
		api.Error(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrPrincipalNotFound):
		api.Error(w, r, http.StatusNotFound, msgEmployeeNotFound, nil)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("auth: request failed")
		api.Error(w, r, http.StatusInternalServerError, msgInternal, nil)
	}
}

package httpx

import (
	"errors"
	"net/http"

	"github.com/epicevents/epicevents/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Anything unrecognised is a storage-layer failure and is reported without
// internal detail.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Authentication Failed", shared.ErrInvalidCredentials.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Permission Denied", shared.ErrPermissionDenied.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrPrecondition):
		Problem(w, http.StatusUnprocessableEntity, "Precondition Failed", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

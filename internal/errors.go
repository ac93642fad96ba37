package internal

import (
	"errors"
	"net/http"

	"erp-asset-api/internal/auth"
	"erp-asset-api/internal/lifecycle"

	"github.com/rs/zerolog/log"
)

// writeError maps a domain error onto the {error, code} response body.
// Unclassified errors are logged and hidden behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, lifecycle.ErrAlreadyAssigned):
		status, code = http.StatusBadRequest, "ALREADY_ASSIGNED"
	case errors.Is(err, lifecycle.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, lifecycle.ErrInvalidState):
		status, code = http.StatusBadRequest, "INVALID_STATE"
	case errors.Is(err, lifecycle.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, lifecycle.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, auth.ErrUnauthenticated):
		auth.WriteErrorResponse(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	case errors.Is(err, auth.ErrForbidden):
		auth.WriteErrorResponse(w, "Insufficient permissions", "FORBIDDEN", http.StatusForbidden)
		return
	default:
		log.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		auth.WriteErrorResponse(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	auth.WriteErrorResponse(w, lifecycle.Message(err), code, status)
}

// authorize writes 401/403 and returns false unless the caller holds one
// of roles.
func authorize(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	if err := auth.RequireRoles(r.Context(), roles...); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

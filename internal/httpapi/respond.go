// Package httpapi is the HTTP transport for the auth core. Handlers
// validate request shape, call services, and translate the service error
// taxonomy into status codes at this boundary only.
package httpapi

import (
	"net/http"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/pkg/httpx"
	"github.com/quillworks/inkwell/pkg/slogx"
)

type successEnvelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	httpx.WriteJSON(w, status, successEnvelope{Message: message, Data: data})
}

// writeError is the single translation point from the error taxonomy to
// HTTP. Handlers never pick status codes themselves, so a given error kind
// always maps the same way everywhere.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	msg := apperr.MessageOf(err)

	switch apperr.KindOf(err) {
	case apperr.KindBadRequest:
		httpx.WriteJSON(w, http.StatusBadRequest, errorEnvelope{Code: "BAD_REQUEST", Message: msg})
	case apperr.KindForbidden:
		httpx.WriteJSON(w, http.StatusForbidden, errorEnvelope{Code: "FORBIDDEN", Message: msg})
	case apperr.KindAuthFailure:
		httpx.WriteJSON(w, http.StatusUnauthorized, errorEnvelope{Code: "UNAUTHORIZED", Message: msg})
	case apperr.KindAccessTokenExpired:
		// Tells well-behaved clients to hit the refresh endpoint instead
		// of dropping the user back to login.
		w.Header().Set("Instruction", "refresh_token")
		httpx.WriteJSON(w, http.StatusUnauthorized, errorEnvelope{Code: "UNAUTHORIZED", Message: msg})
	case apperr.KindNotFound:
		httpx.WriteJSON(w, http.StatusNotFound, errorEnvelope{Code: "NOT_FOUND", Message: msg})
	default:
		slogx.FromContext(r.Context()).Error("internal error", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorEnvelope{Code: "INTERNAL", Message: msg})
	}
}

// ABOUTME: JSON response envelopes for success, denial, and error replies.
// ABOUTME: Maps identity and authz errors to stable 401/403 bodies; hides internals on 500.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/identity"
)

// Authentication failure codes returned alongside 401 responses.
const (
	codeCredentialMissing = "credential_missing"
	codeCredentialInvalid = "credential_invalid"
	codeCredentialExpired = "credential_expired"
	codeUnknownSubject    = "unknown_subject"
)

// dataBody wraps every successful JSON response.
type dataBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// errorBody is the shape of every failure response.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// apiError lets huma operations fail with the same body as chi handlers.
type apiError struct {
	status int
	errorBody
}

func (e *apiError) Error() string  { return e.Message }
func (e *apiError) GetStatus() int { return e.status }

func init() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if len(errs) > 0 && errs[0] != nil && status < http.StatusInternalServerError {
			msg += ": " + errs[0].Error()
		}
		return &apiError{status: status, errorBody: errorBody{Message: msg}}
	}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataBody{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

func writeInternal(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal error")
}

// authErrorCode maps an identity sentinel to its wire code.
func authErrorCode(err error) string {
	switch {
	case errors.Is(err, identity.ErrMissingCredential):
		return codeCredentialMissing
	case errors.Is(err, identity.ErrExpiredCredential):
		return codeCredentialExpired
	case errors.Is(err, identity.ErrUnknownSubject):
		return codeUnknownSubject
	default:
		return codeCredentialInvalid
	}
}

// writeAuthError writes a 401 for an identity sentinel error.
func writeAuthError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Message: err.Error(), Code: authErrorCode(err)})
}

// writeFailure writes a 403 for an authorization denial and a logged 500 for
// anything else. op names the failing operation in the log line.
func writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	if d, ok := authz.AsDenial(err); ok {
		writeError(w, http.StatusForbidden, d.Reason)
		return
	}
	slog.ErrorContext(r.Context(), op, "error", err)
	writeInternal(w)
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// uuidParam parses a UUID URL parameter already extracted from the route,
// writing a 400 naming the parameter on failure.
func uuidParam(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskfolio/autoassess/internal/domain"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
)

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, fieldName+" is required")
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeResolveError maps a resolver failure code to a status, keeping the
// code in the body so callers can branch on it.
func writeResolveError(w http.ResponseWriter, re *scoring.ResolveError) {
	status := http.StatusInternalServerError
	switch re.Code {
	case scoring.CodeInvalidParameters:
		status = http.StatusBadRequest
	case scoring.CodeRoleNotFound, scoring.CodeWorkflowNotFound:
		status = http.StatusNotFound
	case scoring.CodeTimeout:
		status = http.StatusGatewayTimeout
	case scoring.CodeAPIError:
		status = http.StatusBadGateway
	}
	if status >= 500 {
		slog.Error("resolve failed", "code", re.Code, "error", re)
	}
	writeJSON(w, status, errorResponse{Error: re.Message, Code: string(re.Code)})
}

func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	var re *scoring.ResolveError
	switch {
	case errors.As(err, &re):
		writeResolveError(w, re)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		writeError(w, http.StatusBadRequest, msg)
	case errors.Is(err, scoring.ErrReconciliation):
		slog.Error("reconciliation failed", "error", err)
		writeError(w, http.StatusBadGateway, "score reconciliation failed")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

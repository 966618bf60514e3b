package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"taskd/internal/adapter"
	"taskd/internal/registry"
	"taskd/internal/runner"
	"taskd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case adapter.IsInvalidInput(err):
		return http.StatusBadRequest
	case registry.IsUnknownTask(err):
		return http.StatusNotFound
	case adapter.IsConstruction(err):
		return http.StatusUnprocessableEntity
	case runner.IsClosed(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// rejectReason labels a refused run for metrics.
func rejectReason(err error) string {
	switch {
	case adapter.IsInvalidInput(err):
		return "invalid_input"
	case registry.IsUnknownTask(err):
		return "unknown_task"
	case adapter.IsConstruction(err):
		return "construction"
	case runner.IsClosed(err):
		return "closed"
	default:
		return "other"
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err.Error())
}

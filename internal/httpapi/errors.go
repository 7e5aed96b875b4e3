package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"sightspeak/internal/manager"
	"sightspeak/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps manager errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case manager.IsBusy(err):
		return http.StatusTooManyRequests
	case errors.Is(err, manager.ErrGenerationInFlight):
		return http.StatusConflict
	case errors.Is(err, manager.ErrClosed), manager.IsEngineInit(err), manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case manager.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

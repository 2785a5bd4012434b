package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rcastellanos/fareacl/internal/jobs"
	"github.com/rcastellanos/fareacl/internal/logging"
	"github.com/rcastellanos/fareacl/internal/version"
)

// ErrorResponse is the JSON body of every error the API returns.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError logs the technical error and writes a JSON error body.
// A zero status lets the error type pick the code.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

// statusFor maps sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, version.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrTooManyJobs):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

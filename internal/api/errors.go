package api

import (
	"errors"
	"net/http"

	"github.com/nugget/airspace-copilot/internal/airspace"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, airspace.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, airspace.ErrCorruptData):
		return http.StatusInternalServerError
	case errors.Is(err, airspace.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorFrom writes the error response for err. Not-found messages are
// passed through; server-side failures are logged and summarized.
func (s *Server) errorFrom(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	message := err.Error()
	switch code {
	case http.StatusNotFound:
	case http.StatusBadGateway:
		s.logger.Warn("upstream failure", "path", r.URL.Path, "error", err)
		message = "reasoning service unavailable: " + err.Error()
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		if errors.Is(err, airspace.ErrCorruptData) {
			message = "stored data is corrupted: " + err.Error()
		} else {
			message = "internal error"
		}
	}
	s.errorResponse(w, code, message)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

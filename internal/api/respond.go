package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/unalkalkan/narrator/internal/job"
	"github.com/unalkalkan/narrator/pkg/types"
)

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrConsistencyViolation):
		return http.StatusConflict
	case errors.Is(err, job.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// respondErr writes err with the matching status. Server errors are
// logged and their details withheld from the client.
func respondErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		respondError(w, "Internal server error", status)
		return
	}
	respondError(w, err.Error(), status)
}

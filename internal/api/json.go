package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/randpic/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps engine sentinels to status codes. Anything unknown is
// logged and reported as 500 without details.
func writeError(w http.ResponseWriter, op string, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrInvalidName), errors.Is(err, apperr.ErrInvalidImage):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNameConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrUnknownKeyword), errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrNoImages):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

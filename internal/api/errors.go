// Package api serves ingestion and query over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bull/docrag/internal/loader"
	"github.com/bull/docrag/internal/search"
	"github.com/bull/docrag/internal/storage"
)

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, loader.ErrNoFiles):
		return http.StatusNotFound
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, search.ErrInvalidTopK):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrSearchFailed), errors.Is(err, storage.ErrStoreUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// recoverPanic answers 500 instead of dropping the connection when a handler
// panics.
func recoverPanic(w http.ResponseWriter, logger *slog.Logger, route string) {
	if r := recover(); r != nil {
		logger.Error("handler panic", "route", route, "panic", r)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", r))
	}
}

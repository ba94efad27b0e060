// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/reconcile"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
)

// Kinds reported for failures that are not engine rejections.
const (
	kindNotFound    = "NotFound"
	kindConflict    = "Conflict"
	kindBadRequest  = "BadRequest"
	kindRateLimited = "RateLimited"
	kindInternal    = "InternalError"
)

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Kind: kind})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeBadBody(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, kindBadRequest, "invalid request body: "+err.Error())
}

// writeServiceError maps a service error onto a status code and error body.
// Store failures are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rerr *reconcile.Error
	switch {
	case errors.As(err, &rerr):
		writeError(w, statusFor(rerr), string(rerr.Kind), rerr.Detail)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "not found")
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, kindConflict, "already exists")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
	}
}

func statusFor(err *reconcile.Error) int {
	switch err.Category() {
	case reconcile.CategoryNotFound:
		return http.StatusNotFound
	case reconcile.CategoryAlreadyFinished, reconcile.CategoryDuplicate:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/service"
)

// RecordHandler holds the HTTP handlers for checkpoint records.
type RecordHandler struct {
	svc *service.RecordService
}

// NewRecordHandler constructs a RecordHandler.
func NewRecordHandler(svc *service.RecordService) *RecordHandler {
	return &RecordHandler{svc: svc}
}

// Submit handles POST /events/{id}/records
// Records one team passing a checkpoint, backfilling skipped checkpoints.
func (h *RecordHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// SubmitBatch handles POST /events/{id}/records/batch
// Per-team rejections are part of a 200 response; only failures that
// affect every team are returned as errors.
func (h *RecordHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req model.BatchSubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.svc.SubmitBatch(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// List handles GET /events/{id}/records
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// Delete handles DELETE /events/{id}/records/{recordID}
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "recordID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /events/{id}/reset
// Removes every record of the event.
func (h *RecordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Progress handles GET /events/{id}/progress
func (h *RecordHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Streak handles GET /api/streak/{profileID}.
func (h *Handler) Streak(w http.ResponseWriter, r *http.Request) {
	snap, err := h.tracker.Snapshot(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		fail(w, "streak", err)
		return
	}
	JSON(w, http.StatusOK, snap)
}

// Progress handles GET /api/progress/{profileID}.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	stats, err := h.progress.Progress(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		fail(w, "progress", err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

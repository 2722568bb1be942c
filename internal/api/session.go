package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/revisahub/internal/domain"
)

// ListSessions handles GET /api/sessions/{profileID}.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListSessions(r.Context(), chi.URLParam(r, "profileID"), SessionListLimit)
	if err != nil {
		fail(w, "list_sessions", err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	JSON(w, http.StatusOK, sessions)
}

// ListMessages handles GET /api/sessions/{profileID}/{sessionID}/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.repo.SessionMessages(r.Context(), chi.URLParam(r, "profileID"), chi.URLParam(r, "sessionID"), MessageListLimit)
	if err != nil {
		fail(w, "list_messages", err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	JSON(w, http.StatusOK, msgs)
}

package api

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the profile, session and continuity routes on r,
// which is expected to be mounted at /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)

	r.Post("/profiles", h.CreateProfile)
	r.Get("/profiles/{id}", h.GetProfile)
	r.Put("/profiles/{id}", h.UpdateProfile)

	r.Get("/sessions/{profileID}", h.ListSessions)
	r.Get("/sessions/{profileID}/{sessionID}/messages", h.ListMessages)

	r.Get("/streak/{profileID}", h.Streak)
	r.Get("/progress/{profileID}", h.Progress)
}

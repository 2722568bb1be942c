package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/revisahub/internal/domain"
)

// CreateProfile handles POST /api/profiles.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var in domain.ProfileCreate
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		Error(w, http.StatusBadRequest, "name é obrigatório")
		return
	}

	p := domain.NewProfile(uuid.NewString(), in, time.Now())
	if err := h.repo.CreateProfile(r.Context(), p); err != nil {
		fail(w, "create_profile", err)
		return
	}
	JSON(w, http.StatusCreated, p)
}

// GetProfile handles GET /api/profiles/{id}.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "get_profile", err)
		return
	}
	if p == nil {
		Error(w, http.StatusNotFound, detailProfileNotFound)
		return
	}
	JSON(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /api/profiles/{id}. Streak counters cannot be set here.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update domain.ProfileUpdate
	if !decode(w, r, &update) {
		return
	}
	if err := h.repo.UpdateProfile(r.Context(), chi.URLParam(r, "id"), update); err != nil {
		fail(w, "update_profile", err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Package api provides HTTP handlers for the RevisaHub API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/progress"
	"github.com/ashureev/revisahub/internal/store"
	"github.com/ashureev/revisahub/internal/streak"
)

// RootMessage is served on GET /api/.
const RootMessage = "REVISAHUB API - Tutor de IA com Analogias Personalizadas"

const (
	detailProfileNotFound = "Perfil não encontrado"
	detailInternal        = "erro interno"
	detailInvalidBody     = "corpo da requisição inválido"
)

// Default page sizes of the listing endpoints.
const (
	SessionListLimit = 20
	MessageListLimit = 100
)

// maxRequestBodySize bounds profile payloads (1MB).
const maxRequestBodySize = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	tracker  *streak.Tracker
	progress *progress.Aggregator
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, tracker *streak.Tracker, agg *progress.Aggregator) *Handler {
	return &Handler{
		repo:     repo,
		tracker:  tracker,
		progress: agg,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response under the "detail" key.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"detail": message})
}

// Root handles GET /api/.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"message": RootMessage})
}

// fail maps a domain or store error to a response.
func fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		Error(w, http.StatusNotFound, detailProfileNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Request failed", "op", op, "error", err)
		Error(w, http.StatusInternalServerError, detailInternal)
	}
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, detailInvalidBody)
		return false
	}
	return true
}

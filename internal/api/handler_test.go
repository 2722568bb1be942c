//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/progress"
	"github.com/ashureev/revisahub/internal/store"
	"github.com/ashureev/revisahub/internal/streak"
)

// fakeRepo is an in-memory repository with injectable failures.
type fakeRepo struct {
	*store.MemoryStore
	getErr  error
	pingErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{MemoryStore: store.NewMemory()}
}

func (f *fakeRepo) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.GetProfile(ctx, id)
}

func (f *fakeRepo) Ping(ctx context.Context) error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return f.MemoryStore.Ping(ctx)
}

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestRouter(repo *fakeRepo) chi.Router {
	tracker := streak.NewTracker(repo, streak.WithClock(func() time.Time { return fixedNow }))
	h := NewHandler(repo, tracker, progress.NewAggregator(repo, tracker))
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
		NewHealthHandler(repo, time.Second).RegisterHealth(r)
	})
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestErrorUsesDetailKey(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusNotFound, "Perfil não encontrado")

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	got := decodeBody[map[string]string](t, w)
	if got["detail"] != "Perfil não encontrado" {
		t.Fatalf("Unexpected body: %v", got)
	}
}

func TestRoot(t *testing.T) {
	rr := do(t, newTestRouter(newFakeRepo()), http.MethodGet, "/api/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if got := decodeBody[map[string]string](t, rr); got["message"] != RootMessage {
		t.Fatalf("Unexpected message: %v", got)
	}
}

func TestHealth(t *testing.T) {
	repo := newFakeRepo()
	r := newTestRouter(repo)

	rr := do(t, r, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	repo.pingErr = errors.New("connection refused")
	rr = do(t, r, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", rr.Code)
	}
	got := decodeBody[map[string]any](t, rr)
	if got["status"] != "degraded" {
		t.Fatalf("Expected degraded status, got %v", got["status"])
	}
}

func TestStoreFailureIsInternalError(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("disk I/O error")

	rr := do(t, newTestRouter(repo), http.MethodGet, "/api/profiles/p1", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}
	if got := decodeBody[map[string]string](t, rr); got["detail"] != "erro interno" {
		t.Fatalf("Unexpected body: %v", got)
	}
}

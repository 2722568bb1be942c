package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/progress"
	"github.com/ashureev/revisahub/internal/streak"
)

func seed(t *testing.T, repo *fakeRepo) {
	t.Helper()
	ctx := context.Background()
	p := domain.NewProfile("p1", domain.ProfileCreate{Name: "Ana"}, fixedNow)
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	base := fixedNow.Add(-time.Hour)
	for i := 0; i < 3; i++ {
		sid := fmt.Sprintf("s%d", i)
		at := base.Add(time.Duration(i) * time.Minute)
		if err := repo.UpsertSession(ctx, &domain.Session{
			ID: sid, ProfileID: "p1", Title: "sessão " + sid, Subject: "Biologia", CreatedAt: at, UpdatedAt: at,
		}); err != nil {
			t.Fatalf("UpsertSession failed: %v", err)
		}
	}

	turns := []struct {
		role    domain.Role
		subject string
	}{
		{domain.RoleUser, "Biologia"},
		{domain.RoleAssistant, "Biologia"},
		{domain.RoleUser, "Química"},
		{domain.RoleAssistant, "História"},
	}
	for i, turn := range turns {
		if err := repo.AppendMessage(ctx, &domain.Message{
			ID:        fmt.Sprintf("m%d", i),
			SessionID: "s0",
			ProfileID: "p1",
			Role:      turn.role,
			Content:   fmt.Sprintf("turno %d", i),
			Subject:   turn.subject,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}
}

func TestListSessions(t *testing.T) {
	repo := newFakeRepo()
	seed(t, repo)
	r := newTestRouter(repo)

	rr := do(t, r, http.MethodGet, "/api/sessions/p1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	sessions := decodeBody[[]domain.Session](t, rr)
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "s2" || sessions[2].ID != "s0" {
		t.Fatalf("Sessions must be newest first: %s, %s", sessions[0].ID, sessions[2].ID)
	}

	rr = do(t, r, http.MethodGet, "/api/sessions/nobody", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "[]\n" {
		t.Fatalf("Expected empty list, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestListMessages(t *testing.T) {
	repo := newFakeRepo()
	seed(t, repo)
	r := newTestRouter(repo)

	rr := do(t, r, http.MethodGet, "/api/sessions/p1/s0/messages", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	msgs := decodeBody[[]domain.Message](t, rr)
	if len(msgs) != 4 || msgs[0].ID != "m0" || msgs[3].ID != "m3" {
		t.Fatalf("Messages must be oldest first: %+v", msgs)
	}

	rr = do(t, r, http.MethodGet, "/api/sessions/other/s0/messages", "")
	if got := decodeBody[[]domain.Message](t, rr); len(got) != 0 {
		t.Fatalf("Messages of another profile must not leak, got %d", len(got))
	}
}

func TestStreakEndpoint(t *testing.T) {
	repo := newFakeRepo()
	seed(t, repo)
	r := newTestRouter(repo)

	rr := do(t, r, http.MethodGet, "/api/streak/p1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	snap := decodeBody[streak.Snapshot](t, rr)
	if len(snap.StreakCalendar) != streak.CalendarDays {
		t.Fatalf("Expected %d calendar days, got %d", streak.CalendarDays, len(snap.StreakCalendar))
	}
	if snap.StreakCalendar[6] != "2026-03-10" || snap.StreakCalendar[0] != "" {
		t.Fatalf("Unexpected calendar: %v", snap.StreakCalendar)
	}
	if snap.StudiedToday {
		t.Fatal("No streak was recorded, studied_today must be false")
	}

	if rr := do(t, r, http.MethodGet, "/api/streak/missing", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rr.Code)
	}
}

func TestProgressEndpoint(t *testing.T) {
	repo := newFakeRepo()
	seed(t, repo)
	r := newTestRouter(repo)

	rr := do(t, r, http.MethodGet, "/api/progress/p1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	stats := decodeBody[progress.Stats](t, rr)
	if stats.TotalSessions != 3 || stats.TotalMessages != 2 {
		t.Fatalf("Unexpected totals: %+v", stats)
	}
	want := []string{"Biologia", "História", "Química"}
	if fmt.Sprint(stats.SubjectsStudied) != fmt.Sprint(want) {
		t.Fatalf("Expected subjects %v, got %v", want, stats.SubjectsStudied)
	}
	if stats.FavoriteSubject == nil || *stats.FavoriteSubject != "Biologia" {
		t.Fatalf("Expected favorite Biologia, got %v", stats.FavoriteSubject)
	}
	if stats.LastActivity == nil {
		t.Fatal("Expected last_activity to be set")
	}

	if rr := do(t, r, http.MethodGet, "/api/progress/missing", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rr.Code)
	}
}

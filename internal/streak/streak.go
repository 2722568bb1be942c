// Package streak derives daily study continuity from dated activity.
package streak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/store"
)

// CalendarDays is the length of the activity calendar.
const CalendarDays = 7

const maxCASAttempts = 3

// Clock returns the current instant.
type Clock func() time.Time

// Snapshot is the continuity view returned to clients.
type Snapshot struct {
	CurrentStreak  int      `json:"current_streak"`
	LongestStreak  int      `json:"longest_streak"`
	TotalStudyDays int      `json:"total_study_days"`
	StudiedToday   bool     `json:"studied_today"`
	StreakCalendar []string `json:"streak_calendar"`
}

// Advance computes the streak state after activity on today, a UTC civil date.
// It reports false when today was already counted.
func Advance(today time.Time, s domain.StreakState) (domain.StreakState, bool) {
	today = domain.CivilDay(today)
	todayStr := domain.FormatDate(today)

	next := s
	last, ok := lastDate(s)
	switch {
	case ok && last.Equal(today):
		return s, false
	case ok && last.Equal(today.AddDate(0, 0, -1)):
		next.CurrentStreak++
	default:
		// Absent, unparsable, older than yesterday or in the future.
		next.CurrentStreak = 1
	}
	next.TotalStudyDays++
	next.LastActivityDate = &todayStr
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	return next, true
}

func lastDate(s domain.StreakState) (time.Time, bool) {
	if s.LastActivityDate == nil {
		return time.Time{}, false
	}
	t, err := domain.ParseDate(*s.LastActivityDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Tracker is the only writer of profile streak fields.
type Tracker struct {
	repo      store.Repository
	clock     Clock
	onAdvance func()
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithAdvanceHook registers a callback run after each persisted advance.
func WithAdvanceHook(fn func()) Option {
	return func(t *Tracker) { t.onAdvance = fn }
}

// NewTracker creates a Tracker backed by repo.
func NewTracker(repo store.Repository, opts ...Option) *Tracker {
	t := &Tracker{repo: repo, clock: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) today() time.Time {
	return domain.CivilDay(t.clock())
}

// Record marks today as a study day for the profile.
func (t *Tracker) Record(ctx context.Context, profileID string) (Snapshot, error) {
	today := t.today()

	var state domain.StreakState
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		p, err := t.repo.GetProfile(ctx, profileID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load profile: %w", err)
		}
		if p == nil {
			return Snapshot{}, domain.ErrProfileNotFound
		}
		state = p.StreakState

		next, changed := Advance(today, state)
		if !changed {
			break
		}
		ok, err := t.repo.AdvanceStreak(ctx, profileID, state.LastActivityDate, next)
		if err != nil {
			return Snapshot{}, fmt.Errorf("advance streak: %w", err)
		}
		if ok {
			state = next
			if t.onAdvance != nil {
				t.onAdvance()
			}
			break
		}
		// Another request moved last_activity_date; re-read.
		slog.Debug("streak compare-and-set missed", "profile_id", profileID, "attempt", attempt+1)
	}

	calendar, err := t.Calendar(ctx, profileID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		CurrentStreak:  state.CurrentStreak,
		LongestStreak:  state.LongestStreak,
		TotalStudyDays: state.TotalStudyDays,
		StudiedToday:   true,
		StreakCalendar: calendar,
	}, nil
}

// Snapshot returns the read-only continuity view for the profile.
func (t *Tracker) Snapshot(ctx context.Context, profileID string) (Snapshot, error) {
	p, err := t.repo.GetProfile(ctx, profileID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load profile: %w", err)
	}
	if p == nil {
		return Snapshot{}, domain.ErrProfileNotFound
	}
	return t.SnapshotOf(ctx, p)
}

// SnapshotOf builds the view for an already loaded profile.
func (t *Tracker) SnapshotOf(ctx context.Context, p *domain.Profile) (Snapshot, error) {
	calendar, err := t.Calendar(ctx, p.ID)
	if err != nil {
		return Snapshot{}, err
	}
	today := domain.FormatDate(t.today())
	return Snapshot{
		CurrentStreak:  p.CurrentStreak,
		LongestStreak:  p.LongestStreak,
		TotalStudyDays: p.TotalStudyDays,
		StudiedToday:   p.LastActivityDate != nil && *p.LastActivityDate == today,
		StreakCalendar: calendar,
	}, nil
}

// Calendar returns the last seven UTC days, oldest first. Each entry is the
// date when the profile sent at least one message that day, or "".
func (t *Tracker) Calendar(ctx context.Context, profileID string) ([]string, error) {
	today := t.today()
	from := today.AddDate(0, 0, -(CalendarDays - 1))
	times, err := t.repo.UserMessageTimes(ctx, profileID, from, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}

	active := make(map[string]bool, len(times))
	for _, ts := range times {
		active[domain.FormatDate(ts)] = true
	}

	calendar := make([]string, CalendarDays)
	for i := range calendar {
		day := domain.FormatDate(from.AddDate(0, 0, i))
		if active[day] {
			calendar[i] = day
		}
	}
	return calendar, nil
}

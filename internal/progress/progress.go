// Package progress computes read-side study statistics for a profile.
package progress

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/store"
	"github.com/ashureev/revisahub/internal/streak"
)

// Stats is the progress summary returned to clients.
type Stats struct {
	TotalSessions   int             `json:"total_sessions"`
	TotalMessages   int             `json:"total_messages"`
	SubjectsStudied []string        `json:"subjects_studied"`
	FavoriteSubject *string         `json:"favorite_subject"`
	LastActivity    *time.Time      `json:"last_activity"`
	Streak          streak.Snapshot `json:"streak"`
}

// Aggregator computes Stats on every call.
type Aggregator struct {
	repo    store.Repository
	tracker *streak.Tracker
}

// NewAggregator creates an Aggregator.
func NewAggregator(repo store.Repository, tracker *streak.Tracker) *Aggregator {
	return &Aggregator{repo: repo, tracker: tracker}
}

// Progress returns the statistics for profileID.
func (a *Aggregator) Progress(ctx context.Context, profileID string) (Stats, error) {
	p, err := a.repo.GetProfile(ctx, profileID)
	if err != nil {
		return Stats{}, fmt.Errorf("load profile: %w", err)
	}
	if p == nil {
		return Stats{}, domain.ErrProfileNotFound
	}

	sessions, err := a.repo.CountSessions(ctx, profileID)
	if err != nil {
		return Stats{}, err
	}
	messages, err := a.repo.CountUserMessages(ctx, profileID)
	if err != nil {
		return Stats{}, err
	}
	counts, err := a.repo.SubjectCounts(ctx, profileID)
	if err != nil {
		return Stats{}, err
	}
	last, err := a.repo.LastMessageAt(ctx, profileID)
	if err != nil {
		return Stats{}, err
	}
	snap, err := a.tracker.SnapshotOf(ctx, p)
	if err != nil {
		return Stats{}, err
	}

	subjects, favorite := Summarize(counts)
	return Stats{
		TotalSessions:   sessions,
		TotalMessages:   messages,
		SubjectsStudied: subjects,
		FavoriteSubject: favorite,
		LastActivity:    last,
		Streak:          snap,
	}, nil
}

// Summarize returns the sorted distinct subjects and the one with the most
// user messages. Ties go to the lexicographically smallest subject; nil when
// no subject has a user message.
func Summarize(counts []store.SubjectCount) ([]string, *string) {
	subjects := lo.Uniq(lo.FilterMap(counts, func(c store.SubjectCount, _ int) (string, bool) {
		return c.Subject, c.Subject != ""
	}))
	sort.Strings(subjects)
	if subjects == nil {
		subjects = []string{}
	}

	var favorite *string
	best := 0
	for _, c := range counts {
		if c.Subject == "" || c.UserMessages == 0 {
			continue
		}
		if c.UserMessages > best || (c.UserMessages == best && favorite != nil && c.Subject < *favorite) {
			best = c.UserMessages
			subject := c.Subject
			favorite = &subject
		}
	}
	return subjects, favorite
}

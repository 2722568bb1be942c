package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/ashureev/revisahub/internal/domain"
)

// MemoryStore is a process-local Repository used by tests and the CLI dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
	messages []domain.Message
	sessions map[string]domain.Session
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]domain.Profile),
		sessions: make(map[string]domain.Session),
	}
}

func copyDate(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CreateProfile stores a copy of p.
func (m *MemoryStore) CreateProfile(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return fmt.Errorf("insert profile: duplicate id %q", p.ID)
	}
	cp := *p
	cp.LastActivityDate = copyDate(p.LastActivityDate)
	m.profiles[p.ID] = cp
	return nil
}

// GetProfile returns a copy of the stored profile.
func (m *MemoryStore) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	p.LastActivityDate = copyDate(p.LastActivityDate)
	return &p, nil
}

// UpdateProfile applies the set fields of update.
func (m *MemoryStore) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	update.Apply(&p)
	m.profiles[id] = p
	return nil
}

// AdvanceStreak is a compare-and-set on last_activity_date.
func (m *MemoryStore) AdvanceStreak(_ context.Context, id string, expectedLast *string, next domain.StreakState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return false, nil
	}
	current := p.LastActivityDate
	if (current == nil) != (expectedLast == nil) || (current != nil && *current != *expectedLast) {
		return false, nil
	}
	p.StreakState = next
	p.LastActivityDate = copyDate(next.LastActivityDate)
	m.profiles[id] = p
	return true, nil
}

// AppendMessage appends a copy of msg.
func (m *MemoryStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

// sortedMessages returns matching messages in insertion-stable timestamp order.
func (m *MemoryStore) sortedMessages(keep func(domain.Message) bool) []domain.Message {
	out := lo.Filter(m.messages, func(msg domain.Message, _ int) bool { return keep(msg) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// RecentMessages returns the newest messages of a session first.
func (m *MemoryStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := lo.Reverse(m.sortedMessages(func(msg domain.Message) bool { return msg.SessionID == sessionID }))
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// SessionMessages returns a profile's session messages oldest first.
func (m *MemoryStore) SessionMessages(_ context.Context, profileID, sessionID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sortedMessages(func(msg domain.Message) bool {
		return msg.SessionID == sessionID && msg.ProfileID == profileID
	})
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// UserMessageTimes returns timestamps of user messages in [from, to).
func (m *MemoryStore) UserMessageTimes(_ context.Context, profileID string, from, to time.Time) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sortedMessages(func(msg domain.Message) bool {
		return msg.ProfileID == profileID && msg.Role == domain.RoleUser &&
			!msg.Timestamp.Before(from) && msg.Timestamp.Before(to)
	})
	return lo.Map(msgs, func(msg domain.Message, _ int) time.Time { return msg.Timestamp }), nil
}

// LastMessageAt returns the newest message timestamp of a profile.
func (m *MemoryStore) LastMessageAt(_ context.Context, profileID string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sortedMessages(func(msg domain.Message) bool { return msg.ProfileID == profileID })
	if len(msgs) == 0 {
		return nil, nil
	}
	t := msgs[len(msgs)-1].Timestamp
	return &t, nil
}

// CountUserMessages counts a profile's user messages.
func (m *MemoryStore) CountUserMessages(_ context.Context, profileID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.CountBy(m.messages, func(msg domain.Message) bool {
		return msg.ProfileID == profileID && msg.Role == domain.RoleUser
	}), nil
}

// SubjectCounts groups a profile's messages by subject.
func (m *MemoryStore) SubjectCounts(_ context.Context, profileID string) ([]SubjectCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, msg := range m.messages {
		if msg.ProfileID != profileID || msg.Subject == "" {
			continue
		}
		if _, ok := counts[msg.Subject]; !ok {
			counts[msg.Subject] = 0
		}
		if msg.Role == domain.RoleUser {
			counts[msg.Subject]++
		}
	}
	subjects := lo.Keys(counts)
	sort.Strings(subjects)
	return lo.Map(subjects, func(s string, _ int) SubjectCount {
		return SubjectCount{Subject: s, UserMessages: counts[s]}
	}), nil
}

// UpsertSession creates the session or bumps its updated_at.
func (m *MemoryStore) UpsertSession(_ context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[sess.ID]; ok {
		existing.UpdatedAt = sess.UpdatedAt
		m.sessions[sess.ID] = existing
		return nil
	}
	m.sessions[sess.ID] = *sess
	return nil
}

// ListSessions returns a profile's most recently updated sessions.
func (m *MemoryStore) ListSessions(_ context.Context, profileID string, limit int) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := lo.Filter(lo.Values(m.sessions), func(s domain.Session, _ int) bool { return s.ProfileID == profileID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountSessions counts a profile's sessions.
func (m *MemoryStore) CountSessions(_ context.Context, profileID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.CountBy(lo.Values(m.sessions), func(s domain.Session) bool { return s.ProfileID == profileID }), nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

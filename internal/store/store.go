// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/revisahub/internal/domain"
)

// Repository defines the interface for persisting profiles, messages and sessions.
type Repository interface {
	// CreateProfile inserts a new profile.
	CreateProfile(ctx context.Context, p *domain.Profile) error

	// GetProfile retrieves a profile by ID. It returns nil, nil when absent.
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)

	// UpdateProfile applies a partial update of the mutable profile fields.
	// It returns domain.ErrProfileNotFound when no profile matches.
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error

	// AdvanceStreak writes next only if last_activity_date still equals
	// expectedLast (nil meaning null). It reports whether the write happened.
	AdvanceStreak(ctx context.Context, id string, expectedLast *string, next domain.StreakState) (bool, error)

	// AppendMessage persists a chat message.
	AppendMessage(ctx context.Context, m *domain.Message) error

	// RecentMessages returns up to limit messages of a session, newest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// SessionMessages returns up to limit messages of a profile's session, oldest first.
	SessionMessages(ctx context.Context, profileID, sessionID string, limit int) ([]domain.Message, error)

	// UserMessageTimes returns timestamps of user messages in [from, to).
	UserMessageTimes(ctx context.Context, profileID string, from, to time.Time) ([]time.Time, error)

	// LastMessageAt returns the newest message timestamp of a profile, or nil.
	LastMessageAt(ctx context.Context, profileID string) (*time.Time, error)

	// CountUserMessages counts messages with role user.
	CountUserMessages(ctx context.Context, profileID string) (int, error)

	// SubjectCounts returns every distinct non-empty subject of a profile's
	// messages with the number of user messages carrying it.
	SubjectCounts(ctx context.Context, profileID string) ([]SubjectCount, error)

	// UpsertSession creates the session or, if it exists, bumps updated_at.
	UpsertSession(ctx context.Context, s *domain.Session) error

	// ListSessions returns up to limit sessions ordered by updated_at descending.
	ListSessions(ctx context.Context, profileID string, limit int) ([]domain.Session, error)

	// CountSessions counts the sessions of a profile.
	CountSessions(ctx context.Context, profileID string) (int, error)

	// Ping verifies connectivity and returns an error if the store is unreachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// SubjectCount is one row of the per-subject aggregation.
type SubjectCount struct {
	Subject      string
	UserMessages int
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	DBPath   string
	MongoURL string
	DBName   string
}

// Open constructs the repository named by opts.Backend.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLite(opts.DBPath)
	case BackendMongo:
		return NewMongo(ctx, opts.MongoURL, opts.DBName)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

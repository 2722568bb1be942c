package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/revisahub/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets readers proceed while a chat request writes.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		canal_sensorial TEXT NOT NULL DEFAULT '',
		formato_explicacao TEXT NOT NULL DEFAULT '',
		abordagem TEXT NOT NULL DEFAULT '',
		interacao_social TEXT NOT NULL DEFAULT '',
		estrutura_estudo TEXT NOT NULL DEFAULT '',
		duracao_sessao TEXT NOT NULL DEFAULT '',
		ambiente_estudo TEXT NOT NULL DEFAULT '',
		motivador_principal TEXT NOT NULL DEFAULT '',
		estrategia_dificuldade TEXT NOT NULL DEFAULT '',
		planejamento_estudos TEXT NOT NULL DEFAULT '',
		interesse_cultural TEXT NOT NULL DEFAULT '',
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_activity_date TEXT,
		total_study_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		profile_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		subject TEXT,
		has_image INTEGER NOT NULL DEFAULT 0,
		timestamp TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_messages_profile ON messages(profile_id, role, timestamp);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		title TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_profile ON sessions(profile_id, updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withRetry runs fn again with exponential backoff while SQLite reports lock contention.
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !isSQLiteConflict(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("sqlite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, maxRetries, err)
}

const profileColumns = `id, name, canal_sensorial, formato_explicacao, abordagem, interacao_social,
	estrutura_estudo, duracao_sessao, ambiente_estudo, motivador_principal,
	estrategia_dificuldade, planejamento_estudos, interesse_cultural,
	current_streak, longest_streak, last_activity_date, total_study_days, created_at`

// CreateProfile inserts a new profile.
func (s *SQLiteStore) CreateProfile(ctx context.Context, p *domain.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var last interface{}
	if p.LastActivityDate != nil {
		last = *p.LastActivityDate
	}

	return s.withRetry(ctx, "insert profile", func() error {
		_, err := s.db.ExecContext(ctx, query,
			p.ID, p.Name, p.CanalSensorial, p.FormatoExplicacao, p.Abordagem, p.InteracaoSocial,
			p.EstruturaEstudo, p.DuracaoSessao, p.AmbienteEstudo, p.MotivadorPrincipal,
			p.EstrategiaDificuldade, p.PlanejamentoEstudos, p.InteresseCultural,
			p.CurrentStreak, p.LongestStreak, last, p.TotalStudyDays,
			domain.FormatTimestamp(p.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
}

// GetProfile retrieves a profile by ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)

	var p domain.Profile
	var last sql.NullString
	var createdAt string
	err := row.Scan(
		&p.ID, &p.Name, &p.CanalSensorial, &p.FormatoExplicacao, &p.Abordagem, &p.InteracaoSocial,
		&p.EstruturaEstudo, &p.DuracaoSessao, &p.AmbienteEstudo, &p.MotivadorPrincipal,
		&p.EstrategiaDificuldade, &p.PlanejamentoEstudos, &p.InteresseCultural,
		&p.CurrentStreak, &p.LongestStreak, &last, &p.TotalStudyDays, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}

	if last.Valid {
		p.LastActivityDate = &last.String
	}
	if p.CreatedAt, err = domain.ParseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies the set fields of update.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error {
	fields := update.Fields()
	if len(fields) == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProfileNotFound
		}
		if err != nil {
			return fmt.Errorf("check profile: %w", err)
		}
		return nil
	}

	// Column names come from ProfileUpdate.Fields, never from the request body.
	names := domain.SortedFieldNames(fields)
	sets := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names)+1)
	for _, name := range names {
		sets = append(sets, name+" = ?")
		args = append(args, fields[name])
	}
	args = append(args, id)
	query := `UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	var rows int64
	err := s.withRetry(ctx, "update profile", func() error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// AdvanceStreak is a compare-and-set on last_activity_date.
func (s *SQLiteStore) AdvanceStreak(ctx context.Context, id string, expectedLast *string, next domain.StreakState) (bool, error) {
	query := `UPDATE profiles
		SET current_streak = ?, longest_streak = ?, last_activity_date = ?, total_study_days = ?
		WHERE id = ? AND last_activity_date IS ?`

	var expected, last interface{}
	if expectedLast != nil {
		expected = *expectedLast
	}
	if next.LastActivityDate != nil {
		last = *next.LastActivityDate
	}

	var rows int64
	err := s.withRetry(ctx, "advance streak", func() error {
		result, err := s.db.ExecContext(ctx, query,
			next.CurrentStreak, next.LongestStreak, last, next.TotalStudyDays, id, expected)
		if err != nil {
			return fmt.Errorf("advance streak: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if rows == 0 {
		slog.Debug("AdvanceStreak affected 0 rows", "profile_id", id)
	}
	return rows == 1, nil
}

// AppendMessage persists a chat message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, m *domain.Message) error {
	query := `INSERT INTO messages (id, session_id, profile_id, role, content, subject, has_image, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var subject interface{}
	if m.Subject != "" {
		subject = m.Subject
	}

	return s.withRetry(ctx, "insert message", func() error {
		_, err := s.db.ExecContext(ctx, query,
			m.ID, m.SessionID, m.ProfileID, string(m.Role), m.Content, subject, m.HasImage,
			domain.FormatTimestamp(m.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

const messageColumns = `id, session_id, profile_id, role, content, subject, has_image, timestamp`

// RecentMessages returns the newest messages of a session first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE session_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	return s.queryMessages(ctx, query, sessionID, limit)
}

// SessionMessages returns a profile's session messages oldest first.
func (s *SQLiteStore) SessionMessages(ctx context.Context, profileID, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE session_id = ? AND profile_id = ? ORDER BY timestamp ASC, rowid ASC LIMIT ?`
	return s.queryMessages(ctx, query, sessionID, profileID, limit)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var role, ts string
		var subject sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.ProfileID, &role, &m.Content, &subject, &m.HasImage, &ts); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = domain.Role(role)
		m.Subject = subject.String
		if m.Timestamp, err = domain.ParseTimestamp(ts); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// UserMessageTimes returns timestamps of user messages in [from, to).
func (s *SQLiteStore) UserMessageTimes(ctx context.Context, profileID string, from, to time.Time) ([]time.Time, error) {
	query := `SELECT timestamp FROM messages
		WHERE profile_id = ? AND role = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC`
	rows, err := s.db.QueryContext(ctx, query, profileID, string(domain.RoleUser),
		domain.FormatTimestamp(from), domain.FormatTimestamp(to))
	if err != nil {
		return nil, fmt.Errorf("query message times: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message time rows", "error", closeErr)
		}
	}()

	var out []time.Time
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan message time: %w", err)
		}
		t, err := domain.ParseTimestamp(ts)
		if err != nil {
			slog.Warn("skipping unparsable message timestamp", "profile_id", profileID, "timestamp", ts)
			continue
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message times: %w", err)
	}
	return out, nil
}

// LastMessageAt returns the newest message timestamp of a profile.
func (s *SQLiteStore) LastMessageAt(ctx context.Context, profileID string) (*time.Time, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM messages WHERE profile_id = ?`, profileID).Scan(&ts)
	if err != nil {
		return nil, fmt.Errorf("query last message: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	t, err := domain.ParseTimestamp(ts.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountUserMessages counts a profile's user messages.
func (s *SQLiteStore) CountUserMessages(ctx context.Context, profileID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE profile_id = ? AND role = ?`,
		profileID, string(domain.RoleUser)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return n, nil
}

// SubjectCounts groups a profile's messages by subject.
func (s *SQLiteStore) SubjectCounts(ctx context.Context, profileID string) ([]SubjectCount, error) {
	query := `SELECT subject, SUM(CASE WHEN role = ? THEN 1 ELSE 0 END)
		FROM messages
		WHERE profile_id = ? AND subject IS NOT NULL AND subject != ''
		GROUP BY subject ORDER BY subject ASC`
	rows, err := s.db.QueryContext(ctx, query, string(domain.RoleUser), profileID)
	if err != nil {
		return nil, fmt.Errorf("query subject counts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close subject rows", "error", closeErr)
		}
	}()

	var out []SubjectCount
	for rows.Next() {
		var c SubjectCount
		if err := rows.Scan(&c.Subject, &c.UserMessages); err != nil {
			return nil, fmt.Errorf("scan subject count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject counts: %w", err)
	}
	return out, nil
}

// UpsertSession creates the session or bumps its updated_at.
func (s *SQLiteStore) UpsertSession(ctx context.Context, sess *domain.Session) error {
	query := `
	INSERT INTO sessions (id, profile_id, title, subject, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		updated_at = excluded.updated_at`

	return s.withRetry(ctx, "upsert session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			sess.ID, sess.ProfileID, sess.Title, sess.Subject,
			domain.FormatTimestamp(sess.CreatedAt), domain.FormatTimestamp(sess.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// ListSessions returns a profile's most recently updated sessions.
func (s *SQLiteStore) ListSessions(ctx context.Context, profileID string, limit int) ([]domain.Session, error) {
	query := `SELECT id, profile_id, title, subject, created_at, updated_at
		FROM sessions WHERE profile_id = ? ORDER BY updated_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var out []domain.Session
	for rows.Next() {
		var sess domain.Session
		var createdAt, updatedAt string
		if err := rows.Scan(&sess.ID, &sess.ProfileID, &sess.Title, &sess.Subject, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if sess.CreatedAt, err = domain.ParseTimestamp(createdAt); err != nil {
			return nil, err
		}
		if sess.UpdatedAt, err = domain.ParseTimestamp(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// CountSessions counts a profile's sessions.
func (s *SQLiteStore) CountSessions(ctx context.Context, profileID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE profile_id = ?`, profileID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

package domain

import (
	"time"
	"unicode/utf8"
)

// Role identifies who authored a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single persisted chat turn. Messages are never modified.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	ProfileID string    `json:"profile_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Subject   string    `json:"subject,omitempty"`
	HasImage  bool      `json:"has_image"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation thread. Its ID is chosen by the client.
type Session struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TitleMaxRunes bounds the session title derived from the first message.
const TitleMaxRunes = 50

// SessionTitle derives a session title from the first user message.
func SessionTitle(firstMessage string) string {
	if utf8.RuneCountInString(firstMessage) <= TitleMaxRunes {
		return firstMessage
	}
	return string([]rune(firstMessage)[:TitleMaxRunes]) + "..."
}

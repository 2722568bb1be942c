// Package agent runs the tutoring chat pipeline and its transports.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/revisahub/internal/domain"
)

// FallbackResponse is returned to the student whenever the LLM call fails.
const FallbackResponse = "Desculpe, tive um problema ao processar sua pergunta. Pode tentar novamente?"

// ChatRequest is one student turn.
type ChatRequest struct {
	SessionID   string `json:"session_id"`
	ProfileID   string `json:"profile_id"`
	Message     string `json:"message"`
	Subject     string `json:"subject"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// Validate checks the required fields. An image-only turn may have an empty message.
func (r ChatRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return fmt.Errorf("%w: session_id é obrigatório", domain.ErrInvalidInput)
	case strings.TrimSpace(r.ProfileID) == "":
		return fmt.Errorf("%w: profile_id é obrigatório", domain.ErrInvalidInput)
	case r.Message == "" && r.ImageBase64 == "":
		return fmt.Errorf("%w: message é obrigatório", domain.ErrInvalidInput)
	}
	return nil
}

// ChatResponse is the tutor's answer to one turn.
type ChatResponse struct {
	Response  string `json:"response"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
}

// Config holds chat pipeline configuration.
type Config struct {
	// LLMTimeout bounds the single LLM attempt of a turn.
	LLMTimeout time.Duration
	// MaxTokens caps each completion.
	MaxTokens int
	// HistoryWindow is how many stored turns feed the context.
	HistoryWindow int
	// RateLimit is the number of chat turns allowed per profile per RateWindow. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// DefaultConfig returns default chat configuration.
func DefaultConfig() Config {
	return Config{
		LLMTimeout:    60 * time.Second,
		MaxTokens:     2048,
		HistoryWindow: 6,
		RateLimit:     30,
		RateWindow:    time.Minute,
	}
}

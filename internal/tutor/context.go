package tutor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/ashureev/revisahub/internal/domain"
)

const (
	// DefaultWindow is the number of stored turns fetched for context.
	DefaultWindow = 6

	// TurnMaxRunes bounds each history line.
	TurnMaxRunes = 150
)

// MessageSource reads recent session history, newest first.
type MessageSource interface {
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
}

// Input is one user turn to be sent to the LLM.
type Input struct {
	SessionID        string
	CurrentMessageID string
	Text             string
	Subject          string
	Interest         string
	ImageBase64      string
}

// Image is an inline image attachment.
type Image struct {
	MIMEType string
	Base64   string
}

// Turn is the fully formed user payload.
type Turn struct {
	Text  string
	Image *Image
}

// Builder assembles outbound turns from stored history.
type Builder struct {
	source MessageSource
	window int
}

// NewBuilder creates a Builder. A non-positive window uses DefaultWindow.
func NewBuilder(source MessageSource, window int) *Builder {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Builder{source: source, window: window}
}

// Build renders in as an outbound turn. Image turns carry no history.
func (b *Builder) Build(ctx context.Context, in Input) (Turn, error) {
	interest := in.Interest
	if strings.TrimSpace(interest) == "" {
		interest = defaultInterest
	}

	if in.ImageBase64 != "" {
		data := StripDataURL(in.ImageBase64)
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("[Matéria: %s]\n\n", in.Subject))
		sb.WriteString(fmt.Sprintf("QUESTÃO DO ALUNO: %s\n\n", in.Text))
		sb.WriteString("INSTRUÇÃO: \n")
		sb.WriteString("1. Analise a imagem cuidadosamente\n")
		sb.WriteString(fmt.Sprintf("2. COMECE com analogia de \"%s\" nas PRIMEIRAS 2 LINHAS\n", interest))
		sb.WriteString("3. Use estrutura: [ANALOGIA] → [EXPLICAÇÃO] → [VOLTA AO CONCEITO]\n")
		sb.WriteString("4. Seja específico e memorável!")
		return Turn{
			Text:  sb.String(),
			Image: &Image{MIMEType: SniffImageType(data), Base64: data},
		}, nil
	}

	history, err := b.source.RecentMessages(ctx, in.SessionID, b.window)
	if err != nil {
		return Turn{}, fmt.Errorf("load history: %w", err)
	}
	history = lo.Reverse(history)
	history = lo.Filter(history, func(m domain.Message, _ int) bool { return m.ID != in.CurrentMessageID })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Matéria: %s]\n\n", in.Subject))
	if len(history) > 0 {
		sb.WriteString("Contexto da conversa:\n")
		for _, m := range history {
			sb.WriteString(RenderTurn(m))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("QUESTÃO DO ALUNO: %s\n\n", in.Text))
	sb.WriteString("INSTRUÇÃO: \n")
	sb.WriteString(fmt.Sprintf("1. COMECE com analogia de \"%s\" nas PRIMEIRAS 2 LINHAS\n", interest))
	sb.WriteString("2. Use estrutura: [ANALOGIA] → [EXPLICAÇÃO] → [VOLTA AO CONCEITO]\n")
	sb.WriteString("3. Seja específico e memorável!")
	return Turn{Text: sb.String()}, nil
}

// RenderTurn formats one history line with its role label.
func RenderTurn(m domain.Message) string {
	label := "Tutor"
	if m.Role == domain.RoleUser {
		label = "Aluno"
	}
	return label + ": " + Truncate(m.Content, TurnMaxRunes)
}

// Truncate cuts s to max runes and appends "..." when it was longer.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

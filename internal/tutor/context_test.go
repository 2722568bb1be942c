package tutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/revisahub/internal/domain"
)

type fakeSource struct {
	msgs      []domain.Message // newest first
	err       error
	lastLimit int
}

func (f *fakeSource) RecentMessages(_ context.Context, _ string, limit int) ([]domain.Message, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := append([]domain.Message(nil), f.msgs...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func msg(id string, role domain.Role, content string, sec int) domain.Message {
	return domain.Message{ID: id, Role: role, Content: content, Timestamp: time.Unix(int64(sec), 0)}
}

func TestBuildTextWithHistory(t *testing.T) {
	src := &fakeSource{msgs: []domain.Message{
		msg("cur", domain.RoleUser, "O que é mitocôndria?", 3),
		msg("a1", domain.RoleAssistant, "Uma resposta", 2),
		msg("u1", domain.RoleUser, "Oi", 1),
	}}
	b := NewBuilder(src, 0)

	turn, err := b.Build(context.Background(), Input{
		SessionID:        "s1",
		CurrentMessageID: "cur",
		Text:             "O que é mitocôndria?",
		Subject:          "Biologia",
		Interest:         "Naruto",
	})
	require.NoError(t, err)
	assert.Nil(t, turn.Image)
	assert.Equal(t, DefaultWindow, src.lastLimit)

	want := "[Matéria: Biologia]\n\n" +
		"Contexto da conversa:\nAluno: Oi\nTutor: Uma resposta\n\n" +
		"QUESTÃO DO ALUNO: O que é mitocôndria?\n\n"
	assert.True(t, strings.HasPrefix(turn.Text, want), turn.Text)
	assert.Contains(t, turn.Text, `COMECE com analogia de "Naruto"`)
	assert.Equal(t, 1, strings.Count(turn.Text, "O que é mitocôndria?"))
}

func TestBuildOmitsEmptyContext(t *testing.T) {
	src := &fakeSource{msgs: []domain.Message{msg("cur", domain.RoleUser, "Primeira", 1)}}
	turn, err := NewBuilder(src, 6).Build(context.Background(), Input{CurrentMessageID: "cur", Text: "Primeira", Subject: "Física"})
	require.NoError(t, err)
	assert.NotContains(t, turn.Text, "Contexto da conversa")
	assert.True(t, strings.HasPrefix(turn.Text, "[Matéria: Física]\n\nQUESTÃO DO ALUNO: Primeira"))
	assert.Contains(t, turn.Text, `"cultura pop"`)
}

func TestBuildWindow(t *testing.T) {
	var msgs []domain.Message
	for i := 10; i > 0; i-- {
		msgs = append(msgs, msg(string(rune('a'+i)), domain.RoleUser, strings.Repeat("x", i), i))
	}
	src := &fakeSource{msgs: msgs}
	turn, err := NewBuilder(src, 3).Build(context.Background(), Input{CurrentMessageID: "none", Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, 3, src.lastLimit)
	assert.Contains(t, turn.Text, "Aluno: xxxxxxxx\nAluno: xxxxxxxxx\nAluno: xxxxxxxxxx\n")
}

func TestBuildHistoryError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	_, err := NewBuilder(src, 6).Build(context.Background(), Input{Text: "q"})
	assert.Error(t, err)
}

func TestBuildImageTurn(t *testing.T) {
	src := &fakeSource{msgs: []domain.Message{msg("old", domain.RoleUser, "histórico", 1)}}
	turn, err := NewBuilder(src, 6).Build(context.Background(), Input{
		Text:        "Resolve isso",
		Subject:     "Matemática",
		Interest:    "Futebol",
		ImageBase64: "data:image/png;base64,iVBORw0KGgo=",
	})
	require.NoError(t, err)
	require.NotNil(t, turn.Image)
	assert.Equal(t, MIMEPNG, turn.Image.MIMEType)
	assert.Equal(t, "iVBORw0KGgo=", turn.Image.Base64)
	assert.Contains(t, turn.Text, "Analise a imagem")
	assert.Contains(t, turn.Text, `"Futebol"`)
	assert.NotContains(t, turn.Text, "histórico")
	assert.Zero(t, src.lastLimit)
}

func TestTruncate(t *testing.T) {
	exact := strings.Repeat("á", TurnMaxRunes)
	assert.Equal(t, exact, Truncate(exact, TurnMaxRunes))

	long := strings.Repeat("é", TurnMaxRunes+1)
	got := Truncate(long, TurnMaxRunes)
	assert.Equal(t, strings.Repeat("é", TurnMaxRunes)+"...", got)

	assert.Equal(t, "Tutor: ok", RenderTurn(domain.Message{Role: domain.RoleAssistant, Content: "ok"}))
}

func TestSniffImageType(t *testing.T) {
	tests := map[string]string{
		"/9j/4AAQ":   MIMEJPEG,
		"iVBORw0KGg": MIMEPNG,
		"R0lGODlh":   MIMEGIF,
		"UklGRiQA":   MIMEWEBP,
		"AAAA":       MIMEJPEG,
		"":           MIMEJPEG,
	}
	for in, want := range tests {
		assert.Equal(t, want, SniffImageType(in), in)
	}
	assert.Equal(t, "abc", StripDataURL("abc"))
	assert.Equal(t, "b,c", StripDataURL("a,b,c"))
}

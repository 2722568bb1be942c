package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/llm"
	"github.com/ashureev/revisahub/internal/metrics"
	"github.com/ashureev/revisahub/internal/store"
	"github.com/ashureev/revisahub/internal/streak"
)

const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR4nGNgYGBgAAAABQABpfZFQAAAAABJRU5ErkJggg=="

type fixture struct {
	repo     store.Repository
	provider *llm.MockProvider
	metrics  *metrics.Metrics
	svc      *Service
}

func newFixture(t *testing.T, cfg Config, responses ...llm.MockResponse) *fixture {
	t.Helper()
	repo := store.NewMemory()
	return newFixtureWithRepo(t, repo, cfg, responses...)
}

func newFixtureWithRepo(t *testing.T, repo store.Repository, cfg Config, responses ...llm.MockResponse) *fixture {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	provider := llm.NewMockProvider(responses...)
	tracker := streak.NewTracker(repo, streak.WithAdvanceHook(m.StreakAdvanced))
	return &fixture{
		repo:     repo,
		provider: provider,
		metrics:  m,
		svc:      NewService(repo, tracker, provider, cfg, WithMetrics(m)),
	}
}

func seedProfile(t *testing.T, repo store.Repository, id, interest string) {
	t.Helper()
	p := domain.NewProfile(id, domain.ProfileCreate{
		Name: "Ana",
		Preferences: domain.Preferences{
			CanalSensorial:    "visual",
			InteresseCultural: interest,
		},
	}, time.Now())
	if err := repo.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
}

func TestChatEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig(), llm.MockResponse{Text: "Pense no chakra do Naruto..."})
	seedProfile(t, f.repo, "p1", "Naruto")
	ctx := context.Background()

	resp, err := f.svc.Chat(ctx, ChatRequest{
		SessionID: "s1",
		ProfileID: "p1",
		Message:   "O que é mitocôndria?",
		Subject:   "Biologia",
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Response != "Pense no chakra do Naruto..." {
		t.Fatalf("unexpected response: %q", resp.Response)
	}
	if resp.SessionID != "s1" || resp.MessageID == "" {
		t.Fatalf("unexpected ids: %+v", resp)
	}

	call, ok := f.provider.LastCall()
	if !ok {
		t.Fatal("expected an LLM call")
	}
	if !strings.Contains(call.System, "Naruto") || !strings.Contains(call.System, "Biologia") {
		t.Fatalf("system prompt lacks interest or subject")
	}
	if len(call.Messages) != 1 {
		t.Fatalf("expected one outbound message, got %d", len(call.Messages))
	}
	content := call.Messages[0].Content
	if !strings.HasPrefix(content, "[Matéria: Biologia]") {
		t.Fatalf("unexpected turn prefix: %q", content)
	}
	if !strings.Contains(content, "QUESTÃO DO ALUNO: O que é mitocôndria?") {
		t.Fatalf("turn lacks the question: %q", content)
	}
	if strings.Contains(content, "Contexto da conversa:") {
		t.Fatalf("first turn must not carry history: %q", content)
	}
	if call.SessionID != "s1" {
		t.Fatalf("unexpected request session: %q", call.SessionID)
	}

	msgs, err := f.repo.SessionMessages(ctx, "p1", "s1", 100)
	if err != nil {
		t.Fatalf("SessionMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].ID != resp.MessageID {
		t.Fatalf("message_id must be the assistant message id")
	}
	if msgs[0].Subject != "Biologia" || msgs[1].Subject != "Biologia" {
		t.Fatalf("subject not stored on both turns")
	}

	sessions, err := f.repo.ListSessions(ctx, "p1", 20)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "O que é mitocôndria?" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}

	p, err := f.repo.GetProfile(ctx, "p1")
	if err != nil || p == nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.CurrentStreak != 1 || p.TotalStudyDays != 1 {
		t.Fatalf("unexpected streak: %+v", p.StreakState)
	}
	if got := testutil.ToFloat64(f.metrics.StreakAdvances); got != 1 {
		t.Fatalf("expected one streak advance, got %v", got)
	}
}

func TestChatSecondTurnCarriesHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig(),
		llm.MockResponse{Text: "primeira resposta"},
		llm.MockResponse{Text: "segunda resposta"},
	)
	seedProfile(t, f.repo, "p1", "Naruto")
	ctx := context.Background()

	first := ChatRequest{SessionID: "s1", ProfileID: "p1", Message: "O que é mitocôndria?", Subject: "Biologia"}
	if _, err := f.svc.Chat(ctx, first); err != nil {
		t.Fatalf("first Chat failed: %v", err)
	}
	second := ChatRequest{SessionID: "s1", ProfileID: "p1", Message: "E o ribossomo?", Subject: "Biologia"}
	if _, err := f.svc.Chat(ctx, second); err != nil {
		t.Fatalf("second Chat failed: %v", err)
	}

	call, _ := f.provider.LastCall()
	content := call.Messages[0].Content
	if !strings.Contains(content, "Contexto da conversa:\nAluno: O que é mitocôndria?\nTutor: primeira resposta\n") {
		t.Fatalf("history missing or out of order: %q", content)
	}
	if strings.Contains(content, "Aluno: E o ribossomo?") {
		t.Fatalf("current message must not appear in history: %q", content)
	}

	sessions, _ := f.repo.ListSessions(ctx, "p1", 20)
	if len(sessions) != 1 || sessions[0].Title != "O que é mitocôndria?" {
		t.Fatalf("session title must come from the first message: %+v", sessions)
	}

	p, _ := f.repo.GetProfile(ctx, "p1")
	if p.CurrentStreak != 1 || p.TotalStudyDays != 1 {
		t.Fatalf("same-day turns must not advance the streak: %+v", p.StreakState)
	}
}

func TestChatImageTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig(), llm.MockResponse{Text: "vejo a imagem"})
	seedProfile(t, f.repo, "p1", "Naruto")
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, ChatRequest{
		SessionID:   "s1",
		ProfileID:   "p1",
		Message:     "Resolva",
		Subject:     "Matemática",
		ImageBase64: "data:image/png;base64," + pngBase64,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	call, _ := f.provider.LastCall()
	img := call.Messages[0].Image
	if img == nil {
		t.Fatal("expected an inline image")
	}
	if img.MIMEType != "image/png" || img.Base64 != pngBase64 {
		t.Fatalf("unexpected image: %s %q", img.MIMEType, img.Base64)
	}
	if !strings.Contains(call.Messages[0].Content, "Analise a imagem") {
		t.Fatalf("image instruction missing: %q", call.Messages[0].Content)
	}

	msgs, _ := f.repo.SessionMessages(ctx, "p1", "s1", 100)
	if !msgs[0].HasImage || msgs[1].HasImage {
		t.Fatalf("has_image must be set on the user turn only")
	}
}

func TestChatFallbackOnProviderError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig(), llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}})
	seedProfile(t, f.repo, "p1", "Naruto")

	resp, err := f.svc.Chat(context.Background(), ChatRequest{SessionID: "s1", ProfileID: "p1", Message: "oi", Subject: "Física"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Response != FallbackResponse {
		t.Fatalf("expected fallback, got %q", resp.Response)
	}
	if got := testutil.ToFloat64(f.metrics.LLMFailures.WithLabelValues(llm.KindRateLimit)); got != 1 {
		t.Fatalf("expected one rate_limit failure, got %v", got)
	}
	if f.provider.CallCount() != 1 {
		t.Fatalf("LLM must be called exactly once, got %d", f.provider.CallCount())
	}

	msgs, _ := f.repo.SessionMessages(context.Background(), "p1", "s1", 100)
	if len(msgs) != 2 || msgs[1].Content != FallbackResponse {
		t.Fatalf("fallback must be persisted as the assistant turn")
	}
}

type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) ModelID() string { return "blocking" }

func TestChatTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	seedProfile(t, repo, "p1", "Naruto")
	m := metrics.New(prometheus.NewRegistry())
	cfg := DefaultConfig()
	cfg.LLMTimeout = 20 * time.Millisecond
	svc := NewService(repo, streak.NewTracker(repo), blockingProvider{}, cfg, WithMetrics(m))

	resp, err := svc.Chat(context.Background(), ChatRequest{SessionID: "s1", ProfileID: "p1", Message: "oi", Subject: "Física"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Response != FallbackResponse {
		t.Fatalf("expected fallback, got %q", resp.Response)
	}
	if got := testutil.ToFloat64(m.LLMFailures.WithLabelValues(llm.KindTimeout)); got != 1 {
		t.Fatalf("expected one timeout failure, got %v", got)
	}
}

func TestChatUnknownProfile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	_, err := f.svc.Chat(context.Background(), ChatRequest{SessionID: "s1", ProfileID: "missing", Message: "oi"})
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if f.provider.CallCount() != 0 {
		t.Fatal("LLM must not be called for an unknown profile")
	}
	msgs, _ := f.repo.SessionMessages(context.Background(), "missing", "s1", 100)
	if len(msgs) != 0 {
		t.Fatalf("no message may be stored, got %d", len(msgs))
	}
}

func TestChatRejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	cases := []ChatRequest{
		{ProfileID: "p1", Message: "oi"},
		{SessionID: "s1", Message: "oi"},
		{SessionID: "s1", ProfileID: "p1"},
	}
	for _, req := range cases {
		if _, err := f.svc.Chat(context.Background(), req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
}

// failingAssistantRepo fails to persist assistant turns.
type failingAssistantRepo struct {
	store.Repository
}

func (r failingAssistantRepo) AppendMessage(ctx context.Context, m *domain.Message) error {
	if m.Role == domain.RoleAssistant {
		return errors.New("disk full")
	}
	return r.Repository.AppendMessage(ctx, m)
}

func TestChatAssistantPersistFailure(t *testing.T) {
	t.Parallel()

	repo := failingAssistantRepo{Repository: store.NewMemory()}
	f := newFixtureWithRepo(t, repo, DefaultConfig(), llm.MockResponse{Text: "ok"})
	seedProfile(t, repo, "p1", "Naruto")

	_, err := f.svc.Chat(context.Background(), ChatRequest{SessionID: "s1", ProfileID: "p1", Message: "oi", Subject: "Física"})
	if err == nil || !strings.Contains(err.Error(), "save assistant message") {
		t.Fatalf("expected assistant persistence error, got %v", err)
	}

	msgs, _ := repo.SessionMessages(context.Background(), "p1", "s1", 100)
	if len(msgs) != 1 || msgs[0].Role != domain.RoleUser {
		t.Fatalf("user turn stays persisted without compensation, got %+v", msgs)
	}
	sessions, _ := repo.ListSessions(context.Background(), "p1", 20)
	if len(sessions) != 0 {
		t.Fatal("session must not be created after a failed turn")
	}
}

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/llm"
	"github.com/ashureev/revisahub/internal/metrics"
	"github.com/ashureev/revisahub/internal/store"
	"github.com/ashureev/revisahub/internal/streak"
	"github.com/ashureev/revisahub/internal/tutor"
)

// Service runs chat turns: streak, persistence, prompt, context and the LLM call.
type Service struct {
	repo     store.Repository
	tracker  *streak.Tracker
	builder  *tutor.Builder
	provider llm.Provider
	cfg      Config
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records chat metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a chat service.
func NewService(repo store.Repository, tracker *streak.Tracker, provider llm.Provider, cfg Config, opts ...Option) *Service {
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = DefaultConfig().LLMTimeout
	}
	s := &Service{
		repo:     repo,
		tracker:  tracker,
		builder:  tutor.NewBuilder(repo, cfg.HistoryWindow),
		provider: provider,
		cfg:      cfg,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat processes one student turn and returns the tutor's answer.
// A failed LLM call is answered with FallbackResponse; store failures are returned.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	profile, err := s.repo.GetProfile(ctx, req.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}

	if _, err := s.tracker.Record(ctx, profile.ID); err != nil {
		return nil, fmt.Errorf("record streak: %w", err)
	}

	userMsg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		ProfileID: profile.ID,
		Role:      domain.RoleUser,
		Content:   req.Message,
		Subject:   req.Subject,
		HasImage:  req.ImageBase64 != "",
		Timestamp: s.now().UTC(),
	}
	if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	system := tutor.CompileFor(profile, req.Subject)
	turn, err := s.builder.Build(ctx, tutor.Input{
		SessionID:        req.SessionID,
		CurrentMessageID: userMsg.ID,
		Text:             req.Message,
		Subject:          req.Subject,
		Interest:         tutor.Interest(profile),
		ImageBase64:      req.ImageBase64,
	})
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	answer := s.generate(ctx, req, system, turn)

	assistantMsg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		ProfileID: profile.ID,
		Role:      domain.RoleAssistant,
		Content:   answer,
		Subject:   req.Subject,
		Timestamp: s.now().UTC(),
	}
	if err := s.repo.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	now := s.now().UTC()
	if err := s.repo.UpsertSession(ctx, &domain.Session{
		ID:        req.SessionID,
		ProfileID: profile.ID,
		Title:     domain.SessionTitle(req.Message),
		Subject:   req.Subject,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}

	return &ChatResponse{
		Response:  answer,
		MessageID: assistantMsg.ID,
		SessionID: req.SessionID,
	}, nil
}

// generate makes the single bounded LLM attempt of a turn.
func (s *Service) generate(ctx context.Context, req ChatRequest, system string, turn tutor.Turn) string {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	msg := llm.Message{Role: llm.RoleUser, Content: turn.Text}
	if turn.Image != nil {
		msg.Image = &llm.Image{MIMEType: turn.Image.MIMEType, Base64: turn.Image.Base64}
	}

	resp, err := s.provider.Generate(ctx, llm.Request{
		System:    system,
		Messages:  []llm.Message{msg},
		MaxTokens: s.cfg.MaxTokens,
		SessionID: req.SessionID,
	})
	if err != nil {
		kind := llm.Kind(err)
		s.metrics.LLMFailure(kind)
		s.log.Error("LLM call failed, answering with fallback",
			"profile_id", req.ProfileID,
			"session_id", req.SessionID,
			"kind", kind,
			"error", err,
		)
		return FallbackResponse
	}
	return resp.Text
}

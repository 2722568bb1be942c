// RevisaHub - AI tutor backend with personalized analogies
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/revisahub/internal/agent"
	"github.com/ashureev/revisahub/internal/api"
	"github.com/ashureev/revisahub/internal/config"
	"github.com/ashureev/revisahub/internal/health"
	"github.com/ashureev/revisahub/internal/llm"
	"github.com/ashureev/revisahub/internal/metrics"
	"github.com/ashureev/revisahub/internal/middleware"
	"github.com/ashureev/revisahub/internal/progress"
	"github.com/ashureev/revisahub/internal/store"
	"github.com/ashureev/revisahub/internal/streak"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.StoreBackend, "llm_provider", cfg.LLM.Provider)

	// Initialize dependencies.
	repo, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected")

	provider, err := llm.NewProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return err
	}
	slog.Info("LLM provider ready", "model", provider.ModelID())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize services.
	tracker := streak.NewTracker(repo, streak.WithAdvanceHook(m.StreakAdvanced))
	aggregator := progress.NewAggregator(repo, tracker)

	chatCfg := agent.DefaultConfig()
	chatCfg.LLMTimeout = cfg.LLM.Timeout
	chatCfg.MaxTokens = cfg.LLM.MaxTokens
	chatCfg.HistoryWindow = cfg.HistoryWindow
	chatCfg.RateLimit = cfg.ChatRateLimit
	chatService := agent.NewService(repo, tracker, provider, chatCfg,
		agent.WithMetrics(m),
		agent.WithLogger(logger),
	)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, tracker, aggregator)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck)
	chatHandler := agent.NewHandler(chatService, chatCfg, m, cfg.CORSOrigins)
	defer chatHandler.Close()

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Route("/api", func(r chi.Router) {
		baseHandler.RegisterRoutes(r)
		healthHandler.RegisterHealth(r)
		chatHandler.RegisterRoutes(r)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Create server.
	// WriteTimeout must exceed the LLM timeout. Hijacked WebSocket connections ignore it.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Optional gRPC health service.
	var healthServer *health.Server
	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			return err
		}
		healthServer = health.NewServer(repo, 10*time.Second, cfg.Timeout.HealthCheck)
		go healthServer.Run(ctx)
		go func() {
			if err := healthServer.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	if healthServer != nil {
		healthServer.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}

package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/revisahub/internal/llm"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"GOOGLE_AI_API_KEY": "legacy-key"})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.True(t, cfg.AllowsAnyOrigin())
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "./data/revisahub.db", cfg.DBPath)
	assert.Equal(t, 6, cfg.HistoryWindow)
	assert.Equal(t, 30, cfg.ChatRateLimit)
	assert.Empty(t, cfg.GRPCHealthPort)
	assert.Equal(t, 5*time.Second, cfg.Timeout.HealthCheck)

	assert.Equal(t, llm.ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "legacy-key", cfg.LLM.Gemini.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Gemini.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":              "9000",
		"CORS_ORIGINS":      "https://app.revisahub.com/, http://localhost:3000",
		"STORE_BACKEND":     "mongo",
		"MONGO_URL":         "mongodb://db:27017",
		"DB_NAME":           "tutor",
		"HISTORY_WINDOW":    "10",
		"GRPC_HEALTH_PORT":  "9090",
		"LLM_PROVIDER":      "openai",
		"OPENAI_API_KEY":    "sk-test",
		"LLM_TIMEOUT":       "15s",
		"LOG_LEVEL":         "debug",
		"GEMINI_API_KEY":    "primary",
		"GOOGLE_AI_API_KEY": "legacy",
	})
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"https://app.revisahub.com", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.AllowsAnyOrigin())
	assert.Equal(t, "tutor", cfg.StoreOptions().DBName)
	assert.Equal(t, "mongo", cfg.StoreOptions().Backend)
	assert.Equal(t, 10, cfg.HistoryWindow)
	assert.Equal(t, "9090", cfg.GRPCHealthPort)
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "primary", cfg.LLM.Gemini.APIKey, "GEMINI_API_KEY wins over the legacy alias")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"missing gemini key", map[string]string{}},
		{"unknown backend", map[string]string{"LLM_PROVIDER": "mock", "STORE_BACKEND": "redis"}},
		{"zero window", map[string]string{"LLM_PROVIDER": "mock", "HISTORY_WINDOW": "0"}},
		{"bad level", map[string]string{"LLM_PROVIDER": "mock", "LOG_LEVEL": "loud"}},
		{"bad duration", map[string]string{"LLM_PROVIDER": "mock", "LLM_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}

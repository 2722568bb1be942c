package llm

import (
	"fmt"
	"time"
)

// Provider names accepted by NewProvider.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config holds all LLM provider configuration. It is parsed from the
// environment by the config package.
type Config struct {
	// Provider selects which LLM provider to use.
	Provider string `env:"LLM_PROVIDER" envDefault:"gemini"`

	Gemini     GeminiConfig
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	OpenRouter OpenRouterConfig

	// Timeout bounds the single attempt made per chat turn.
	Timeout time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	// MaxTokens caps each completion.
	MaxTokens int `env:"LLM_MAX_TOKENS" envDefault:"2048"`
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string `env:"GEMINI_API_KEY"`
	// LegacyAPIKey is read from GOOGLE_AI_API_KEY when GEMINI_API_KEY is unset.
	LegacyAPIKey string `env:"GOOGLE_AI_API_KEY"`
	Model        string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	BaseURL      string `env:"GEMINI_BASE_URL"`
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string `env:"ANTHROPIC_API_KEY"`
	Model   string `env:"ANTHROPIC_MODEL" envDefault:"claude-haiku"`
	BaseURL string `env:"ANTHROPIC_BASE_URL"`
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string `env:"OPENROUTER_API_KEY"`
	Model   string `env:"OPENROUTER_MODEL" envDefault:"google/gemini-2.0-flash-001"`
	BaseURL string `env:"OPENROUTER_BASE_URL"`
}

// DefaultConfig returns a Config with the same defaults as the env tags.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderGemini,
		Gemini:     GeminiConfig{Model: "gemini-2.0-flash"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-001"},
		Timeout:    60 * time.Second,
		MaxTokens:  2048,
	}
}

// ApplyAliases fills keys from their legacy variable names.
func (c *Config) ApplyAliases() {
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = c.Gemini.LegacyAPIKey
	}
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY or GOOGLE_AI_API_KEY is required for the gemini provider")
		}
	case ProviderOpenRouter:
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case ProviderMock:
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	return nil
}

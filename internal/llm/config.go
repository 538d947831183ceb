package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/abhisek/examiz/internal/store"
)

// Provider names.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config selects and configures a provider. It is embedded in the
// application config file under [llm].
type Config struct {
	Provider string        `toml:"provider"`
	Timeout  time.Duration `toml:"timeout"`

	Anthropic  Endpoint    `toml:"anthropic"`
	OpenAI     Endpoint    `toml:"openai"`
	Gemini     Endpoint    `toml:"gemini"`
	OpenRouter Endpoint    `toml:"openrouter"`
	Retry      RetryConfig `toml:"retry"`
}

// Endpoint is the per-provider connection settings.
type Endpoint struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// RetryConfig is the backoff schedule for transient failures.
type RetryConfig struct {
	MaxAttempts int           `toml:"max_attempts"`
	InitialWait time.Duration `toml:"initial_wait"`
	MaxWait     time.Duration `toml:"max_wait"`
	Multiplier  float64       `toml:"multiplier"`
}

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// modelAliases maps short names to provider model IDs. Unknown names are
// passed through.
var modelAliases = map[string]string{
	"claude-haiku":  "claude-haiku-4-5-20251001",
	"claude-sonnet": "claude-sonnet-4-5-20250929",
	"gemini-flash":  "gemini-2.5-flash",
	"gemini-pro":    "gemini-2.5-pro",
}

func resolveModel(name string) string {
	if id, ok := modelAliases[name]; ok {
		return id
	}
	return name
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderAnthropic,
		Timeout:    60 * time.Second,
		Anthropic:  Endpoint{Model: "claude-haiku"},
		OpenAI:     Endpoint{Model: "gpt-4o-mini"},
		Gemini:     Endpoint{Model: "gemini-flash"},
		OpenRouter: Endpoint{Model: "google/gemini-2.5-flash", BaseURL: defaultOpenRouterBaseURL},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
	}
}

// envBindings lists the EXAMIZ_* variables that override config values.
func (c *Config) envBindings() map[string]*string {
	return map[string]*string{
		"EXAMIZ_LLM_PROVIDER":       &c.Provider,
		"EXAMIZ_ANTHROPIC_API_KEY":  &c.Anthropic.APIKey,
		"EXAMIZ_ANTHROPIC_MODEL":    &c.Anthropic.Model,
		"EXAMIZ_OPENAI_API_KEY":     &c.OpenAI.APIKey,
		"EXAMIZ_OPENAI_MODEL":       &c.OpenAI.Model,
		"EXAMIZ_OPENAI_BASE_URL":    &c.OpenAI.BaseURL,
		"EXAMIZ_GEMINI_API_KEY":     &c.Gemini.APIKey,
		"EXAMIZ_GEMINI_MODEL":       &c.Gemini.Model,
		"EXAMIZ_OPENROUTER_API_KEY": &c.OpenRouter.APIKey,
		"EXAMIZ_OPENROUTER_MODEL":   &c.OpenRouter.Model,
	}
}

// ApplyEnv overrides fields from set environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for name, field := range c.envBindings() {
		if v := getenv(name); v != "" {
			*field = v
		}
	}
}

// DiscoverConfig picks the first provider whose vendor API key variable
// is set, in the order Gemini, OpenAI, Anthropic, OpenRouter.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()
	for _, c := range []struct {
		env      string
		provider string
		key      *string
	}{
		{"GEMINI_API_KEY", ProviderGemini, &cfg.Gemini.APIKey},
		{"OPENAI_API_KEY", ProviderOpenAI, &cfg.OpenAI.APIKey},
		{"ANTHROPIC_API_KEY", ProviderAnthropic, &cfg.Anthropic.APIKey},
		{"OPENROUTER_API_KEY", ProviderOpenRouter, &cfg.OpenRouter.APIKey},
	} {
		if k := os.Getenv(c.env); k != "" {
			cfg.Provider = c.provider
			*c.key = k
			return cfg, true
		}
	}
	return Config{}, false
}

func (c Config) endpoint() (*Endpoint, bool) {
	switch c.Provider {
	case ProviderAnthropic:
		return &c.Anthropic, true
	case ProviderOpenAI:
		return &c.OpenAI, true
	case ProviderGemini:
		return &c.Gemini, true
	case ProviderOpenRouter:
		return &c.OpenRouter, true
	}
	return nil, false
}

// Validate checks that the selected provider has an API key.
func (c Config) Validate() error {
	if c.Provider == ProviderMock {
		return nil
	}
	ep, ok := c.endpoint()
	if !ok {
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if ep.APIKey == "" {
		return fmt.Errorf("EXAMIZ_%s_API_KEY is required for the %s provider",
			strings.ToUpper(c.Provider), c.Provider)
	}
	return nil
}

// NewProvider builds the configured provider wrapped as
// caller → retry → logging → provider. The mock provider is returned bare.
func NewProvider(ctx context.Context, cfg Config, events store.EventRepo, logger *slog.Logger) (Provider, error) {
	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	var p Provider = base
	if events != nil {
		p = WithLogging(p, cfg.Provider, events, logger)
	}
	return WithRetry(p, cfg.Retry), nil
}

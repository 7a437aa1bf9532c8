package models

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	DefaultProvider    = "gemini"
	DefaultGeminiModel = "gemini-2.0-flash-exp"
	DefaultTemperature = 0.9
)

var defaultModels = map[string]string{
	"gemini":    DefaultGeminiModel,
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-sonnet-latest",
	"ollama":    "llava",
	"dummy":     "dummy",
}

// Config selects and parameterizes a model connection.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	// Temperature is optional; nil means DefaultTemperature, so an explicit
	// zero is honored.
	Temperature *float32
	// Stop defaults to ObservationStop when nil.
	Stop      []string
	MaxTokens int
	// Host is the Ollama endpoint.
	Host string
}

// withDefaults resolves provider aliases and fills empty fields.
func (c Config) withDefaults() Config {
	c.Provider = normalizeProvider(c.Provider)
	if strings.TrimSpace(c.Model) == "" {
		c.Model = defaultModels[c.Provider]
	}
	if c.Temperature == nil {
		t := float32(DefaultTemperature)
		c.Temperature = &t
	}
	if c.Stop == nil {
		c.Stop = []string{ObservationStop}
	}
	return c
}

func (c Config) temperature() float32 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// Float32 returns a pointer to v, for optional fields such as
// Config.Temperature.
func Float32(v float32) *float32 { return &v }

func normalizeProvider(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "", "gemini", "google":
		return "gemini"
	case "anthropic", "claude":
		return "anthropic"
	default:
		return strings.ToLower(strings.TrimSpace(p))
	}
}

// NewLLMProvider returns a concrete Agent.
func NewLLMProvider(ctx context.Context, cfg Config) (Agent, error) {
	cfg = cfg.withDefaults()
	switch cfg.Provider {
	case "gemini":
		return NewGeminiLLM(ctx, cfg)
	case "openai":
		return NewOpenAILLM(cfg)
	case "anthropic":
		return NewAnthropicLLM(cfg)
	case "ollama":
		return NewOllamaLLM(cfg)
	case "dummy":
		return NewDummyLLM(""), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func envKey(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

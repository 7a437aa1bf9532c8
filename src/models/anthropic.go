package models

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLLM implements Agent using Anthropic's Messages API.
type AnthropicLLM struct {
	Client      *anthropic.Client
	Model       string
	MaxTokens   int
	Temperature float32
	Stop        []string
}

func NewAnthropicLLM(cfg Config) (*AnthropicLLM, error) {
	key := cfg.APIKey
	if key == "" {
		key = envKey("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, errors.New("missing ANTHROPIC_API_KEY")
	}
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(key),
	)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicLLM{
		Client:      &cl,
		Model:       cfg.Model, // e.g. "claude-3-5-sonnet-latest"
		MaxTokens:   maxTokens,
		Temperature: cfg.temperature(),
		Stop:        cfg.Stop,
	}, nil
}

// Generate performs a single-turn completion and returns concatenated text.
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string) (any, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		StopSequences: a.Stop,
	}
	// The Messages API accepts 0..1.
	params.Temperature = anthropic.Float(min(max(float64(a.Temperature), 0), 1))

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String(), nil
}

var _ Agent = (*AnthropicLLM)(nil)

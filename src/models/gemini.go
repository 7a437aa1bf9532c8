package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

type GeminiLLM struct {
	Client      *genai.Client
	Model       string
	Temperature float32
	Stop        []string
}

func NewGeminiLLM(ctx context.Context, cfg Config) (*GeminiLLM, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = envKey("GOOGLE_API_KEY", "GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiLLM{
		Client:      client,
		Model:       cfg.Model,
		Temperature: cfg.temperature(),
		Stop:        cfg.Stop,
	}, nil
}

func (g *GeminiLLM) model() *genai.GenerativeModel {
	model := g.Client.GenerativeModel(g.Model)
	model.SetTemperature(g.Temperature)
	if len(g.Stop) > 0 {
		model.StopSequences = g.Stop
	}
	return model
}

func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (any, error) {
	resp, err := g.model().GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// Verify fetches the model metadata, which fails fast on a bad key or an
// unknown model name.
func (g *GeminiLLM) Verify(ctx context.Context) error {
	if _, err := g.Client.GenerativeModel(g.Model).Info(ctx); err != nil {
		return fmt.Errorf("gemini verify %s: %w", g.Model, err)
	}
	return nil
}

func (g *GeminiLLM) Close() error {
	return g.Client.Close()
}

var (
	_ Agent    = (*GeminiLLM)(nil)
	_ Verifier = (*GeminiLLM)(nil)
)

package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// ---------------------------- Ollama -----------------------------------------

type OllamaLLM struct {
	Client      *ollama.Client
	Model       string
	Temperature float32
	Stop        []string
}

func NewOllamaLLM(cfg Config) (*OllamaLLM, error) {
	host := cfg.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &OllamaLLM{
		Client:      ollama.NewClient(u, httpClient),
		Model:       cfg.Model,
		Temperature: cfg.temperature(),
		Stop:        cfg.Stop,
	}, nil
}

// Generate collects the streamed response into a single string.
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (any, error) {
	options := map[string]any{"temperature": o.Temperature}
	if len(o.Stop) > 0 {
		options["stop"] = o.Stop
	}

	req := &ollama.GenerateRequest{
		Model:   o.Model,
		Prompt:  prompt,
		Options: options,
	}

	var text strings.Builder
	if err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	return text.String(), nil
}

// Verify checks that the model is available on the Ollama host.
func (o *OllamaLLM) Verify(ctx context.Context) error {
	if _, err := o.Client.Show(ctx, &ollama.ShowRequest{Model: o.Model}); err != nil {
		return fmt.Errorf("ollama verify %s: %w", o.Model, err)
	}
	return nil
}

var (
	_ Agent    = (*OllamaLLM)(nil)
	_ Verifier = (*OllamaLLM)(nil)
)

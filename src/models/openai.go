package models

import (
	"context"
	"errors"
	"math"

	"github.com/sashabaranov/go-openai"
)

type OpenAILLM struct {
	Client      *openai.Client
	Model       string
	Temperature float32
	Stop        []string
}

func NewOpenAILLM(cfg Config) (*OpenAILLM, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = envKey("OPENAI_API_KEY", "OPENAI_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	return &OpenAILLM{
		Client:      openai.NewClient(apiKey),
		Model:       cfg.Model,
		Temperature: cfg.temperature(),
		Stop:        cfg.Stop,
	}, nil
}

func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (any, error) {
	// go-openai omits a zero temperature, which the API reads as 1.
	temperature := o.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.Model,
		Temperature: temperature,
		Stop:        o.Stop,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Agent = (*OpenAILLM)(nil)

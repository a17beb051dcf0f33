// Package openai translates through an OpenAI compatible chat completion API.
package openai

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/mapsafe"
)

// BackendName is the provider name registered for this backend.
const BackendName = backend.BackendProviderOpenAI

const systemPrompt = "You translate Bengali text into English. " +
	"Respond with only the English translation, nothing else."

// Backend implements backend.Backend.
type Backend struct {
	client *openai.Client
	model  string
}

// NewBackend creates an OpenAI backend. The API key is read from the
// environment variable named in cfg.APIKeyEnv.
func NewBackend(cfg config.OpenAIConfig) (*Backend, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai backend: %s is not set", cfg.APIKeyEnv)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Backend{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return BackendName
}

// Infer implements backend.Backend.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	text, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	model := mapsafe.Get(req.Parameters, "model", b.model)

	start := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(text)},
		},
		MaxTokens:   mapsafe.Get(req.Parameters, "max_tokens", 512),
		Temperature: float32(mapsafe.Get(req.Parameters, "temperature", 0.0)),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, backend.ErrEmptyOutput
	}

	translation := strings.TrimSpace(resp.Choices[0].Message.Content)

	return &backend.Response{
		Output: strings.NewReader(translation),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           model,
			Timestamp:       time.Now(),
			DurationSeconds: time.Since(start).Seconds(),
			OutputBytes:     int64(len(translation)),
			BackendSpecific: map[string]any{
				"prompt_tokens":     resp.Usage.PromptTokens,
				"completion_tokens": resp.Usage.CompletionTokens,
			},
		},
	}, nil
}

// Close cleans up resources. The HTTP client needs none.
func (b *Backend) Close() error {
	return nil
}

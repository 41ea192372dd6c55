// Package openai adapts the OpenAI chat completion API to the
// reasoning.Engine interface.
package openai

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/kestrelab/memvault/pkg/log"
	"github.com/kestrelab/memvault/pkg/reasoning"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmptyResponse is returned when the API returns no choices.
	ErrEmptyResponse = errors.New("empty response from API")
)

// Config holds the configuration for the OpenAI adapter.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string

	// Model is the model to use for chat completions, e.g., "gpt-4o-mini".
	Model string

	// BaseURL is the base URL for the OpenAI API (for testing).
	BaseURL string
}

// OpenAIAdapter implements the reasoning.Engine interface using the OpenAI API.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(config Config) (*OpenAIAdapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
	}, nil
}

// Generate implements the reasoning.Engine interface.
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string, opts ...reasoning.Option) (string, error) {
	options := reasoning.DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	model := a.model
	if options.Model != "" {
		model = options.Model
	}

	log.Debug("Generating completion", "model", model, "prompt_length", len(prompt))

	response, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		log.Error("Chat completion failed", "error", err)
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return response.Choices[0].Message.Content, nil
}

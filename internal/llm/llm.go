package llm

import (
	"context"

	"github.com/comigor/nature-chat/internal/config"
	"github.com/sashabaranov/go-openai"
)

type openAIClient struct {
	client *openai.Client
}

func (c openAIClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (Stream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// NewClient creates a new OpenAI client. apiKey wins over the configured key.
func NewClient(cfg config.LLMConfig, apiKey string) Client {
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	config := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return openAIClient{client: openai.NewClientWithConfig(config)}
}

// NewFactory returns a Factory bound to cfg.
func NewFactory(cfg config.LLMConfig) Factory {
	return func(apiKey string) Client {
		return NewClient(cfg, apiKey)
	}
}

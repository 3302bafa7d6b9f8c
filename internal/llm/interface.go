package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Stream is the receiving end of a streamed chat completion. Recv returns
// io.EOF once the completion is finished.
type Stream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Client is minimal subset of openai.Client used by the agent; it is easy to mock in tests.
type Client interface {
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (Stream, error)
}

// Factory returns a client authenticated with apiKey.
type Factory func(apiKey string) Client

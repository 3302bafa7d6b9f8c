// Package api holds the JSON documents exchanged between the chat client and
// the backend.
package api

import "github.com/comigor/nature-chat/internal/history"

// Request defaults applied by the backend to absent fields.
const (
	DefaultModel               = "gpt-4o-mini"
	DefaultEnableReasoning     = true
	DefaultConfidenceThreshold = 0.7
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	DeveloperMessage    string            `json:"developer_message"`
	UserMessage         string            `json:"user_message"`
	ConversationHistory []history.Message `json:"conversation_history"`
	Model               string            `json:"model"`
	APIKey              string            `json:"api_key"`
	EnableReasoning     bool              `json:"enable_reasoning"`
	ConfidenceThreshold float64           `json:"confidence_threshold"`
}

// NewChatRequest returns a request pre-filled with backend defaults, ready to be
// decoded over so that absent fields keep their default.
func NewChatRequest() ChatRequest {
	return ChatRequest{
		Model:               DefaultModel,
		EnableReasoning:     DefaultEnableReasoning,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

// SummaryResponse is the body of POST /api/conversation/summary.
type SummaryResponse struct {
	TotalMessages     int    `json:"total_messages"`
	UserMessages      int    `json:"user_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	TopicsDiscussed   int    `json:"topics_discussed"`
	Summary           string `json:"summary"`
}

// ErrorResponse is the JSON body of a failed backend call.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

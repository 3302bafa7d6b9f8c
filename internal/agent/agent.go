package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/nature-chat/internal/api"
	"github.com/comigor/nature-chat/internal/config"
	"github.com/comigor/nature-chat/internal/history"
	"github.com/comigor/nature-chat/internal/llm"
	"github.com/comigor/nature-chat/internal/logger"
)

// ErrMissingAPIKey is returned when neither the request nor the config carries a key.
var ErrMissingAPIKey = errors.New("api key is required")

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1200
	defaultPenalty     = 0.1
	defaultHistory     = 15
)

const guidelines = `CRITICAL RESPONSE GUIDELINES:
1. MAIN RESPONSE: Write naturally and conversationally. Use bullet points ONLY where they genuinely make sense (like lists or steps). NO forced headings, supporting details sections, or conclusions.
2. FORMATTING: Use plain text only - NO markdown formatting
3. UNCERTAINTY: If unsure, say "I don't know" or "I'm not certain about this"
4. MEMORY: Build upon previous conversation context naturally`

const formatMain = `RESPONSE FORMAT:
[Write your main response naturally and conversationally. Use bullets only when listing items or steps makes genuine sense. Be helpful and informative but natural.]`

const formatReasoning = `REASONING:
[Explain your thought process, confidence level, and any assumptions you made]`

const formatQuestions = `FOLLOW-UP QUESTIONS:
1. [Engaging question 1]
2. [Engaging question 2]
3. [Engaging question 3]`

// Agent turns chat requests into streamed model completions.
type Agent struct {
	newClient llm.Factory
	cfg       config.LLMConfig
}

// New creates a new agent.
func New(newClient llm.Factory, cfg config.LLMConfig) *Agent {
	return &Agent{newClient: newClient, cfg: cfg}
}

// CanAuthenticate reports whether a request without its own key can be served.
func (a *Agent) CanAuthenticate(req *api.ChatRequest) bool {
	return strings.TrimSpace(req.APIKey) != "" || a.cfg.APIKey != ""
}

// SystemPrompt renders the instructions sent ahead of the conversation.
func SystemPrompt(req *api.ChatRequest) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(req.DeveloperMessage))
	sb.WriteString("\n\n")
	sb.WriteString(guidelines)
	if req.EnableReasoning {
		sb.WriteString("\n5. ANALYSIS SECTIONS: Always include separate reasoning and follow-up questions sections")
		fmt.Fprintf(&sb, "\n6. CONFIDENCE: State your confidence level in the reasoning and flag anything below %.0f%% as uncertain",
			req.ConfidenceThreshold*100)
	} else {
		sb.WriteString("\n5. ANALYSIS SECTIONS: Always include a separate follow-up questions section")
	}

	sb.WriteString("\n\nCONVERSATION CONTEXT: ")
	if n := len(req.ConversationHistory); n > 0 {
		fmt.Fprintf(&sb, "This conversation has %d earlier messages; the most recent ones follow.", n)
	} else {
		sb.WriteString("This is the start of our conversation.")
	}

	sb.WriteString("\n\n")
	sb.WriteString(formatMain)
	if req.EnableReasoning {
		sb.WriteString("\n\n")
		sb.WriteString(formatReasoning)
	}
	sb.WriteString("\n\n")
	sb.WriteString(formatQuestions)
	return sb.String()
}

func (a *Agent) messages(req *api.ChatRequest) []openai.ChatCompletionMessage {
	limit := a.cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistory
	}
	recent := req.ConversationHistory[max(len(req.ConversationHistory)-limit, 0):]

	msgs := make([]openai.ChatCompletionMessage, 0, len(recent)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(req)})
	for _, m := range recent {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := m.Role
		if role != history.RoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserMessage})
}

func (a *Agent) completionRequest(req *api.ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = a.cfg.Model
	}
	temperature := a.cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return openai.ChatCompletionRequest{
		Model:            model,
		Messages:         a.messages(req),
		Stream:           true,
		Temperature:      temperature,
		MaxTokens:        maxTokens,
		PresencePenalty:  defaultPenalty,
		FrequencyPenalty: defaultPenalty,
	}
}

// Stream opens a streamed completion for req and writes every content delta
// to w as it arrives, flushing after each one when w is an http.Flusher.
func (a *Agent) Stream(ctx context.Context, req *api.ChatRequest, w io.Writer) error {
	if !a.CanAuthenticate(req) {
		return ErrMissingAPIKey
	}
	client := a.newClient(strings.TrimSpace(req.APIKey))
	creq := a.completionRequest(req)
	logger.L.Debug("opening completion stream", "model", creq.Model, "messages", len(creq.Messages))

	stream, err := client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		logger.L.Error("LLM call failed", "error", err)
		return fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	flusher, _ := w.(http.Flusher)
	written := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			logger.L.Debug("completion stream finished", "bytes", written)
			return nil
		}
		if err != nil {
			logger.L.Error("completion stream broke", "error", err, "bytes", written)
			return fmt.Errorf("receive completion: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		n, err := io.WriteString(w, resp.Choices[0].Delta.Content)
		written += n
		if err != nil {
			return fmt.Errorf("write completion: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

const summaryText = "Conversation covers multiple topics with structured AI responses"

// Summarize counts messages per role and the distinct topics raised by the
// user, a topic being the first 50 characters of a user message.
func Summarize(msgs []history.Message) api.SummaryResponse {
	sum := api.SummaryResponse{TotalMessages: len(msgs), Summary: summaryText}
	topics := make(map[string]struct{})
	for _, m := range msgs {
		switch m.Role {
		case history.RoleUser:
			sum.UserMessages++
			topic := []rune(m.Content)
			topics[string(topic[:min(len(topic), 50)])] = struct{}{}
		case history.RoleAssistant:
			sum.AssistantMessages++
		}
	}
	sum.TopicsDiscussed = len(topics)
	return sum
}

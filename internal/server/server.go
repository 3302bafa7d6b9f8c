// Package server exposes the chat backend over HTTP: a streaming chat
// endpoint, a health check and a conversation summary.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/comigor/nature-chat/internal/agent"
	"github.com/comigor/nature-chat/internal/api"
	"github.com/comigor/nature-chat/internal/config"
	"github.com/comigor/nature-chat/internal/history"
	"github.com/comigor/nature-chat/internal/logger"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

var features = []string{
	"conversation_memory",
	"chain_of_thought_reasoning",
	"structured_responses",
	"confidence_indicators",
	"leading_questions",
}

// Streamer produces the streamed answer to a chat request.
type Streamer interface {
	CanAuthenticate(req *api.ChatRequest) bool
	Stream(ctx context.Context, req *api.ChatRequest, w io.Writer) error
}

type server struct {
	agent Streamer
}

// New returns the backend handler with CORS and rate limiting applied.
func New(cfg config.ServerConfig, a Streamer) http.Handler {
	s := &server{agent: a}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/conversation/summary", s.handleSummary)

	var h http.Handler = mux
	h = newRateLimiter(cfg.RateLimit, cfg.Burst).middleware(h)
	return cors(h)
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	req := api.NewChatRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	switch {
	case strings.TrimSpace(req.UserMessage) == "":
		writeError(w, http.StatusUnprocessableEntity, "user_message is required")
		return
	case !s.agent.CanAuthenticate(&req):
		writeError(w, http.StatusUnprocessableEntity, "api_key is required")
		return
	case req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1:
		writeError(w, http.StatusUnprocessableEntity, "confidence_threshold must be between 0 and 1")
		return
	}

	log := logger.L.With("request_id", r.Header.Get("X-Request-ID"), "model", req.Model)
	log.Info("inference request", "history", len(req.ConversationHistory), "reasoning", req.EnableReasoning)

	sw := &streamWriter{w: w}
	if err := s.agent.Stream(r.Context(), &req, sw); err != nil {
		if !sw.started {
			log.Error("process error", "error", err)
			writeError(w, http.StatusInternalServerError, "Enhanced Nature AI encountered an error: "+err.Error())
			return
		}
		// Status already sent; abort so the client sees a broken stream.
		log.Error("stream aborted", "error", err, "bytes", sw.written)
		panic(http.ErrAbortHandler)
	}
	sw.start()
	log.Info("inference complete", "bytes", sw.written)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "enhanced_ok", Version: Version, Features: features})
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var msgs []history.Message
	if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agent.Summarize(msgs))
}

// streamWriter commits a 200 text/plain response on the first write.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
	written int
}

func (s *streamWriter) start() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	s.w.Header().Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
}

func (s *streamWriter) Write(p []byte) (int, error) {
	s.start()
	n, err := s.w.Write(p)
	s.written += n
	return n, err
}

func (s *streamWriter) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}

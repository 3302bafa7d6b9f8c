// Package client runs chat turns against the chat service on behalf of one
// session: it composes the request, assembles the streamed answer, parses it
// and records the exchange in the conversation log.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/nature-chat/internal/composer"
	"github.com/comigor/nature-chat/internal/history"
	"github.com/comigor/nature-chat/internal/logger"
	"github.com/comigor/nature-chat/internal/parser"
	"github.com/comigor/nature-chat/internal/settings"
	"github.com/comigor/nature-chat/internal/store"
	"github.com/comigor/nature-chat/internal/stream"
)

// FallbackReply is recorded as the assistant's answer when a turn fails
// before any text arrived.
const FallbackReply = "Sorry, I encountered an error. Please check your API key and try again."

// Result describes one completed or interrupted turn.
type Result struct {
	TurnID   string
	Text     string
	Response parser.Response
	Stats    stream.Stats
	// PersistErr is set when the exchange could not be written to storage.
	// The in-memory log still holds it.
	PersistErr error
}

// Stats summarizes the session's conversation.
type Stats struct {
	Messages  int
	Bytes     int
	KB        float64
	StartedAt time.Time
	Age       time.Duration
}

// Session is the explicit context of one chat session.
type Session struct {
	ID        string
	Settings  *settings.Manager
	Memory    *history.Memory
	composer  *composer.Composer
	transport Transport
	started   time.Time
}

// NewSession loads settings and conversation from s.
func NewSession(s store.Store, defaults settings.Settings, t Transport, window int) *Session {
	mgr := settings.Load(s, defaults)
	mem := history.New(s)
	sess := &Session{
		ID:        uuid.NewString(),
		Settings:  mgr,
		Memory:    mem,
		composer:  composer.New(mgr, mem, window),
		transport: t,
		started:   time.Now(),
	}
	logger.L.Debug("session started", "session", sess.ID, "messages", mem.Len(), "configured", mgr.Get().Configured())
	return sess
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool { return s.composer.InFlight() }

// Send runs one turn. onSnapshot, if set, receives every cumulative snapshot
// unparsed in arrival order; the final text is parsed once.
//
// Configuration, empty-input and in-flight errors leave the log untouched. A
// transport failure records the user message with FallbackReply; if that
// record cannot be saved, the storage error is joined to the returned one. An
// interrupted stream records the partial text and returns it in the Result
// alongside the *stream.InterruptedError.
func (s *Session) Send(ctx context.Context, text string, onSnapshot func(string)) (*Result, error) {
	req, err := s.composer.Compose(text)
	if err != nil {
		return nil, err
	}
	defer s.composer.Release()

	turnID := uuid.NewString()
	log := logger.L.With("session", s.ID, "turn", turnID)
	user := history.NewMessage(history.RoleUser, req.UserMessage)

	body, err := s.transport.Send(WithRequestID(ctx, turnID), req)
	if err != nil {
		log.Error("chat request failed", "error", err)
		if perr := s.record(log, user, history.NewMessage(history.RoleAssistant, FallbackReply)); perr != nil {
			return nil, errors.Join(err, perr)
		}
		return nil, err
	}
	defer body.Close()

	asm := stream.New(stream.NewReaderSource(body))
	answer, err := asm.Run(ctx, onSnapshot)
	if err != nil {
		log.Error("response stream interrupted", "error", err, "received", len(answer))
		content := answer
		if strings.TrimSpace(content) == "" {
			content = FallbackReply
		}
		res := &Result{TurnID: turnID, Text: answer, Response: parser.Parse(answer), Stats: asm.Stats()}
		res.PersistErr = s.record(log, user, history.NewMessage(history.RoleAssistant, content))
		return res, err
	}

	res := &Result{TurnID: turnID, Text: answer, Response: parser.Parse(answer), Stats: asm.Stats()}
	res.PersistErr = s.record(log, user, history.NewMessage(history.RoleAssistant, answer))
	log.Debug("turn complete",
		"fragments", res.Stats.Fragments,
		"bytes", res.Stats.Bytes,
		"questions", len(res.Response.Questions),
		"reasoning", res.Response.Reasoning != nil,
	)
	return res, nil
}

func (s *Session) record(log *slog.Logger, msgs ...history.Message) error {
	if err := s.Memory.Append(msgs...); err != nil {
		log.Warn("message not recorded", "error", err)
		return err
	}
	if err := s.Memory.Persist(); err != nil {
		log.Warn("turn kept in memory only", "error", err)
		return err
	}
	return nil
}

// Stats returns counters about the conversation.
func (s *Session) Stats() Stats {
	bytes := s.Memory.Footprint()
	return Stats{
		Messages:  s.Memory.Len(),
		Bytes:     bytes,
		KB:        float64(bytes) / 1024,
		StartedAt: s.started,
		Age:       time.Since(s.started),
	}
}

// Clear forgets the whole conversation.
func (s *Session) Clear() error {
	if s.Busy() {
		return composer.ErrRequestInFlight
	}
	return s.Memory.Clear()
}

type export struct {
	Timestamp     time.Time         `json:"timestamp"`
	TotalMessages int               `json:"totalMessages"`
	Conversation  []history.Message `json:"conversation"`
	Settings      settings.Settings `json:"settings"`
}

// Export writes the conversation and settings as indented JSON. The API key is
// masked.
func (s *Session) Export(w io.Writer) error {
	msgs := s.Memory.Messages()
	cur := s.Settings.Get()
	cur.APIKey = cur.MaskedKey()
	doc := export{
		Timestamp:     time.Now().UTC().Truncate(time.Millisecond),
		TotalMessages: len(msgs),
		Conversation:  msgs,
		Settings:      cur,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export conversation: %w", err)
	}
	return nil
}

// IsConfigurationError reports whether err asks the user to configure the session.
func IsConfigurationError(err error) bool {
	return errors.Is(err, composer.ErrConfigurationRequired) || errors.Is(err, ErrValidation)
}

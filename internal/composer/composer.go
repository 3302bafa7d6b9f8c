// Package composer builds outbound chat requests and enforces one turn in
// flight per session.
package composer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/comigor/nature-chat/internal/api"
	"github.com/comigor/nature-chat/internal/history"
	"github.com/comigor/nature-chat/internal/logger"
	"github.com/comigor/nature-chat/internal/settings"
)

var (
	// ErrConfigurationRequired is returned when no API key is configured.
	ErrConfigurationRequired = errors.New("configuration required: set an API key before sending")
	// ErrRequestInFlight is returned while a previous turn has not finished.
	ErrRequestInFlight = errors.New("a request is already in flight")
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Turn states
const (
	StateIdle     = "Idle"
	StateInFlight = "InFlight"
)

// Turn triggers
const (
	TriggerSend    = "Send"
	TriggerRelease = "Release"
)

// Composer assembles requests from the session's settings and memory.
type Composer struct {
	mu       sync.Mutex
	fsm      *stateless.StateMachine
	settings *settings.Manager
	memory   *history.Memory
	window   int
}

// New returns a composer that attaches up to window recent messages to each
// request. A non-positive window means history.DefaultWindow.
func New(s *settings.Manager, m *history.Memory, window int) *Composer {
	if window <= 0 {
		window = history.DefaultWindow
	}
	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(TriggerSend, StateInFlight).
		Ignore(TriggerRelease)
	fsm.Configure(StateInFlight).
		Permit(TriggerRelease, StateIdle).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Debug("turn started")
			return nil
		}).
		OnExit(func(_ context.Context, _ ...any) error {
			logger.L.Debug("turn finished")
			return nil
		})
	fsm.OnUnhandledTrigger(func(_ context.Context, state stateless.State, trigger stateless.Trigger, _ []string) error {
		if state == StateInFlight && trigger == TriggerSend {
			return ErrRequestInFlight
		}
		return nil
	})
	return &Composer{fsm: fsm, settings: s, memory: m, window: window}
}

// Compose builds the request for userText and marks the turn in flight. The
// caller must call Release once the response stream completes or fails. On
// error nothing is marked in flight and memory is untouched.
func (c *Composer) Compose(userText string) (*api.ChatRequest, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight() {
		logger.L.Warn("send rejected: previous turn still streaming")
		return nil, ErrRequestInFlight
	}
	cur := c.settings.Get()
	if !cur.Configured() {
		return nil, ErrConfigurationRequired
	}
	if err := c.fsm.Fire(TriggerSend); err != nil {
		return nil, err
	}

	req := &api.ChatRequest{
		DeveloperMessage:    cur.DeveloperMessage,
		UserMessage:         text,
		ConversationHistory: c.memory.ContextWindow(c.window),
		Model:               cur.Model,
		APIKey:              cur.APIKey,
		EnableReasoning:     cur.EnableReasoning,
		ConfidenceThreshold: cur.ConfidenceThreshold,
	}
	logger.L.Debug("request composed", "model", req.Model, "history", len(req.ConversationHistory))
	return req, nil
}

// Release ends the current turn. Releasing an idle composer is a no-op.
func (c *Composer) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fsm.Fire(TriggerRelease); err != nil {
		logger.L.Warn("turn release failed", "error", err)
	}
}

// InFlight reports whether a turn is in progress.
func (c *Composer) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight()
}

func (c *Composer) inFlight() bool {
	ok, err := c.fsm.IsInState(StateInFlight)
	return err == nil && ok
}

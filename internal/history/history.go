// Package history owns the conversation log: an append-only, ordered list of
// messages persisted as a single JSON blob. Only a bounded window of the most
// recent entries accompanies outbound requests; the stored log is never evicted.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/comigor/nature-chat/internal/logger"
	"github.com/comigor/nature-chat/internal/store"
)

// DefaultWindow is the number of recent messages sent as request context.
const DefaultWindow = 20

// ErrInvalidMessage is returned by Append when a required field is missing.
var ErrInvalidMessage = errors.New("message requires a role and a timestamp")

// Memory is the authoritative conversation log for one session.
type Memory struct {
	mu    sync.Mutex
	store store.Store
	log   []Message
}

// New returns a memory backed by s and loaded from it.
func New(s store.Store) *Memory {
	m := &Memory{store: s}
	m.Reload()
	return m
}

// Append adds msg to the end of the log. It never touches storage; call Persist.
func (m *Memory) Append(msgs ...Message) error {
	for _, msg := range msgs {
		if msg.Role == "" || msg.Timestamp.IsZero() {
			return ErrInvalidMessage
		}
	}
	m.mu.Lock()
	m.log = append(m.log, msgs...)
	m.mu.Unlock()
	return nil
}

// ContextWindow returns a copy of the most recent maxEntries messages in
// chronological order, or the whole log when it is shorter.
func (m *Memory) ContextWindow(maxEntries int) []Message {
	if maxEntries <= 0 {
		return []Message{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	start := max(len(m.log)-maxEntries, 0)
	out := make([]Message, len(m.log)-start)
	copy(out, m.log[start:])
	return out
}

// Messages returns a copy of the full log.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.log))
	copy(out, m.log)
	return out
}

// Len returns the number of logged messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}

// Persist writes the full log under store.KeyConversation. A failure leaves the
// in-memory log untouched and is returned wrapped in store.ErrPersistence.
func (m *Memory) Persist() error {
	m.mu.Lock()
	data, err := m.encode()
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: encode conversation: %w", store.ErrPersistence, err)
	}
	if err := m.store.Put(store.KeyConversation, string(data)); err != nil {
		logger.L.Error("failed to persist conversation", "messages", m.Len(), "error", err)
		return fmt.Errorf("%w: save conversation: %w", store.ErrPersistence, err)
	}
	return nil
}

// Reload replaces the log with the persisted one. An absent, unreadable or
// malformed blob yields an empty log; the problem is logged, never returned.
func (m *Memory) Reload() {
	loaded := m.load()
	m.mu.Lock()
	m.log = loaded
	m.mu.Unlock()
}

func (m *Memory) load() []Message {
	raw, ok, err := m.store.Get(store.KeyConversation)
	if err != nil {
		logger.L.Warn("conversation read failed; starting empty", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		logger.L.Warn("conversation blob is malformed; starting empty", "error", err)
		return nil
	}
	return msgs
}

// Clear empties the log and persists the empty state.
func (m *Memory) Clear() error {
	m.mu.Lock()
	m.log = nil
	m.mu.Unlock()
	return m.Persist()
}

// Footprint is the serialized size of the full log in bytes.
func (m *Memory) Footprint() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := m.encode()
	if err != nil {
		return 0
	}
	return len(data)
}

func (m *Memory) encode() ([]byte, error) {
	if m.log == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.log)
}

// Package settings manages the user-editable chat configuration and the side
// panel visibility flag. Both are persisted as JSON blobs and merged over
// defaults on load; a missing or unreadable blob simply yields the defaults.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/comigor/nature-chat/internal/api"
	"github.com/comigor/nature-chat/internal/logger"
	"github.com/comigor/nature-chat/internal/store"
)

const defaultDeveloperMessage = "You are Enhanced Nature AI, an advanced conversational AI with memory, reasoning, and structured response capabilities. You provide transparent, engaging, and helpful responses while building upon conversation context."

// ErrInvalidThreshold is returned by Save for a threshold outside [0, 1] or NaN.
var ErrInvalidThreshold = errors.New("confidence threshold must be between 0 and 1")

// Settings is the persisted chat configuration.
type Settings struct {
	APIKey              string  `json:"apiKey"`
	Model               string  `json:"model"`
	DeveloperMessage    string  `json:"developerMessage"`
	EnableReasoning     bool    `json:"enableReasoning"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
}

// Defaults returns the built-in configuration.
func Defaults() Settings {
	return Settings{
		Model:               api.DefaultModel,
		DeveloperMessage:    defaultDeveloperMessage,
		EnableReasoning:     api.DefaultEnableReasoning,
		ConfidenceThreshold: api.DefaultConfidenceThreshold,
	}
}

// Configured reports whether a credential is present.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// MaskedKey renders the API key safe for display and export.
func (s Settings) MaskedKey() string {
	k := strings.TrimSpace(s.APIKey)
	switch {
	case k == "":
		return ""
	case len(k) <= 8:
		return "****"
	default:
		return k[:3] + "..." + k[len(k)-4:]
	}
}

// Manager owns the current settings of one session.
type Manager struct {
	mu        sync.RWMutex
	store     store.Store
	defaults  Settings
	current   Settings
	collapsed bool
}

// Load merges the persisted override over defaults. It never fails.
func Load(s store.Store, defaults Settings) *Manager {
	m := &Manager{store: s, defaults: defaults, current: defaults}
	m.current = loadSettings(s, defaults)
	m.collapsed = loadPanel(s)
	return m
}

func loadSettings(s store.Store, defaults Settings) Settings {
	raw, ok, err := s.Get(store.KeySettings)
	if err != nil {
		logger.L.Warn("settings read failed; using defaults", "error", err)
		return defaults
	}
	if !ok {
		return defaults
	}
	merged := defaults
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		logger.L.Warn("settings blob is malformed; using defaults", "error", err)
		return defaults
	}
	merged.ConfidenceThreshold = min(max(merged.ConfidenceThreshold, 0), 1)
	return merged
}

func loadPanel(s store.Store) bool {
	raw, ok, err := s.Get(store.KeyPanel)
	if err != nil || !ok {
		return false
	}
	var collapsed bool
	if err := json.Unmarshal([]byte(raw), &collapsed); err != nil {
		logger.L.Warn("panel flag is malformed; using default", "error", err)
		return false
	}
	return collapsed
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Save validates next, makes it current and persists it. A storage failure is
// returned wrapped in store.ErrPersistence; the new settings stay in effect.
func (m *Manager) Save(next Settings) error {
	if t := next.ConfidenceThreshold; math.IsNaN(t) || t < 0 || t > 1 {
		return ErrInvalidThreshold
	}
	next.APIKey = strings.TrimSpace(next.APIKey)
	next.DeveloperMessage = strings.TrimSpace(next.DeveloperMessage)

	m.mu.Lock()
	m.current = next
	m.mu.Unlock()

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("%w: encode settings: %w", store.ErrPersistence, err)
	}
	if err := m.store.Put(store.KeySettings, string(data)); err != nil {
		logger.L.Error("failed to persist settings", "error", err)
		return fmt.Errorf("%w: save settings: %w", store.ErrPersistence, err)
	}
	logger.L.Debug("settings saved", "model", next.Model, "configured", next.Configured())
	return nil
}

// Update applies fn to a copy of the current settings and saves the result.
func (m *Manager) Update(fn func(*Settings)) error {
	next := m.Get()
	fn(&next)
	return m.Save(next)
}

// PanelCollapsed reports whether the reasoning/questions panel is hidden.
func (m *Manager) PanelCollapsed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collapsed
}

// SetPanelCollapsed sets and persists the panel flag.
func (m *Manager) SetPanelCollapsed(collapsed bool) error {
	m.mu.Lock()
	m.collapsed = collapsed
	m.mu.Unlock()

	data, _ := json.Marshal(collapsed)
	if err := m.store.Put(store.KeyPanel, string(data)); err != nil {
		logger.L.Error("failed to persist panel flag", "error", err)
		return fmt.Errorf("%w: save panel flag: %w", store.ErrPersistence, err)
	}
	return nil
}

// TogglePanel flips the panel flag and returns the new value.
func (m *Manager) TogglePanel() (bool, error) {
	next := !m.PanelCollapsed()
	return next, m.SetPanelCollapsed(next)
}

// Reset drops the persisted settings and panel flag and returns to the
// defaults given to Load. Storage failures are joined into one error.
func (m *Manager) Reset() error {
	m.mu.Lock()
	m.current = m.defaults
	m.collapsed = false
	m.mu.Unlock()

	var errs []error
	for _, key := range []string{store.KeySettings, store.KeyPanel} {
		if err := m.store.Delete(key); err != nil {
			logger.L.Error("failed to delete stored setting", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("%w: delete %s: %w", store.ErrPersistence, key, err))
		}
	}
	return errors.Join(errs...)
}

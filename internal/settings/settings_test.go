package settings

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/nature-chat/internal/store"
)

type brokenStore struct{ *store.Memory }

func (brokenStore) Put(string, string) error { return errors.New("quota exceeded") }

func TestLoad_MissingBlobYieldsDefaults(t *testing.T) {
	m := Load(store.NewMemory(), Defaults())
	require.Equal(t, Defaults(), m.Get())
	require.False(t, m.Get().Configured())
	require.False(t, m.PanelCollapsed())
}

func TestLoad_MalformedBlobYieldsDefaults(t *testing.T) {
	for _, blob := range []string{"{{not json", `["array"]`, `{"model": 42}`} {
		s := store.NewMemory()
		require.NoError(t, s.Put(store.KeySettings, blob))
		require.NoError(t, s.Put(store.KeyPanel, "maybe"))

		require.NotPanics(t, func() {
			m := Load(s, Defaults())
			require.Equal(t, Defaults(), m.Get(), blob)
			require.False(t, m.PanelCollapsed())
		})
	}
}

func TestLoad_PartialOverrideMergesOverDefaults(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Put(store.KeySettings, `{"apiKey":"sk-test","enableReasoning":false,"darkMode":true}`))

	got := Load(s, Defaults()).Get()
	want := Defaults()
	want.APIKey = "sk-test"
	want.EnableReasoning = false
	require.Equal(t, want, got)
	require.True(t, got.Configured())
}

func TestLoad_ClampsThreshold(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Put(store.KeySettings, `{"confidenceThreshold": 3.5}`))
	require.Equal(t, 1.0, Load(s, Defaults()).Get().ConfidenceThreshold)
}

func TestSave_PersistsAndReloads(t *testing.T) {
	s := store.NewMemory()
	m := Load(s, Defaults())

	next := m.Get()
	next.APIKey = "  sk-abc  "
	next.Model = "gpt-4o"
	next.ConfidenceThreshold = 0.4
	require.NoError(t, m.Save(next))
	require.Equal(t, "sk-abc", m.Get().APIKey)

	reloaded := Load(s, Defaults()).Get()
	require.Equal(t, m.Get(), reloaded)
}

func TestSave_RejectsThresholdOutOfRange(t *testing.T) {
	m := Load(store.NewMemory(), Defaults())
	require.ErrorIs(t, m.Update(func(s *Settings) { s.ConfidenceThreshold = 1.2 }), ErrInvalidThreshold)
	require.Equal(t, Defaults(), m.Get())
}

func TestSave_RejectsNaNThreshold(t *testing.T) {
	s := store.NewMemory()
	m := Load(s, Defaults())
	require.ErrorIs(t, m.Update(func(s *Settings) { s.ConfidenceThreshold = math.NaN() }), ErrInvalidThreshold)
	require.Equal(t, Defaults(), m.Get())

	_, ok, err := s.Get(store.KeySettings)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReset_ForgetsStoredValues(t *testing.T) {
	s := store.NewMemory()
	defaults := Defaults()
	defaults.Model = "gpt-4.1"
	m := Load(s, defaults)
	require.NoError(t, m.Update(func(s *Settings) { s.APIKey = "sk-abc" }))
	require.NoError(t, m.SetPanelCollapsed(true))

	require.NoError(t, m.Reset())
	require.Equal(t, defaults, m.Get())
	require.False(t, m.PanelCollapsed())

	for _, key := range []string{store.KeySettings, store.KeyPanel} {
		_, ok, err := s.Get(key)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
	require.Equal(t, defaults, Load(s, defaults).Get())
}

func TestSave_StorageFailureKeepsNewSettings(t *testing.T) {
	m := Load(brokenStore{store.NewMemory()}, Defaults())
	err := m.Update(func(s *Settings) { s.Model = "gpt-4.1" })
	require.ErrorIs(t, err, store.ErrPersistence)
	require.Equal(t, "gpt-4.1", m.Get().Model)
}

func TestPanelFlag_TogglePersists(t *testing.T) {
	s := store.NewMemory()
	m := Load(s, Defaults())

	collapsed, err := m.TogglePanel()
	require.NoError(t, err)
	require.True(t, collapsed)
	require.True(t, Load(s, Defaults()).PanelCollapsed())

	collapsed, err = m.TogglePanel()
	require.NoError(t, err)
	require.False(t, collapsed)
	raw, _, _ := s.Get(store.KeyPanel)
	require.Equal(t, "false", raw)
}

func TestMaskedKey(t *testing.T) {
	require.Equal(t, "", Settings{}.MaskedKey())
	require.Equal(t, "****", Settings{APIKey: "short"}.MaskedKey())
	require.Equal(t, "sk-...wxyz", Settings{APIKey: "sk-abcdefghijklmnopqrstuvwxyz"}.MaskedKey())
}

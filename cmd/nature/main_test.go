package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/nature-chat/internal/api"
	"github.com/comigor/nature-chat/internal/client"
	"github.com/comigor/nature-chat/internal/composer"
	"github.com/comigor/nature-chat/internal/config"
	"github.com/comigor/nature-chat/internal/console"
	"github.com/comigor/nature-chat/internal/settings"
	"github.com/comigor/nature-chat/internal/store"
)

type mockTransport struct {
	SendFunc func(ctx context.Context, req *api.ChatRequest) (io.ReadCloser, error)
}

func (m *mockTransport) Send(ctx context.Context, req *api.ChatRequest) (io.ReadCloser, error) {
	return m.SendFunc(ctx, req)
}

func newREPL(t *testing.T, apiKey string, answer string) (*repl, *bytes.Buffer) {
	t.Helper()
	defaults := settings.Defaults()
	defaults.APIKey = apiKey
	tr := &mockTransport{SendFunc: func(context.Context, *api.ChatRequest) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(answer)), nil
	}}
	var out bytes.Buffer
	sess := client.NewSession(store.NewMemory(), defaults, tr, 0)
	return &repl{sess: sess, con: console.New(&out)}, &out
}

func TestSettingsDefaults(t *testing.T) {
	require.Equal(t, settings.Defaults(), settingsDefaults(nil))

	c := &config.Config{Defaults: config.DefaultsConfig{
		Model:               "gpt-4.1",
		DeveloperMessage:    "  Be brief.  ",
		EnableReasoning:     false,
		ConfidenceThreshold: 0.4,
	}}
	d := settingsDefaults(c)
	require.Equal(t, "gpt-4.1", d.Model)
	require.Equal(t, "Be brief.", d.DeveloperMessage)
	require.False(t, d.EnableReasoning)
	require.Equal(t, 0.4, d.ConfidenceThreshold)

	c.Defaults.DeveloperMessage = ""
	c.Defaults.ConfidenceThreshold = 7
	d = settingsDefaults(c)
	require.Equal(t, settings.Defaults().DeveloperMessage, d.DeveloperMessage)
	require.Equal(t, settings.Defaults().ConfidenceThreshold, d.ConfidenceThreshold)
}

func TestREPL_TurnRendersAnswerAndPanel(t *testing.T) {
	r, out := newREPL(t, "sk-test", "Hello.\nREASONING: because X.\nFOLLOW-UP QUESTIONS:\n1. Why?")
	require.NoError(t, r.turn(context.Background(), "question"))

	// the streamed text comes first, then the cleaned body, then the panel
	got := out.String()
	rawAt := strings.Index(got, "FOLLOW-UP QUESTIONS:")
	require.GreaterOrEqual(t, rawAt, 0)
	cleanAt := strings.LastIndex(got, "Hello.")
	require.Greater(t, cleanAt, rawAt)
	require.NotContains(t, got[cleanAt:], "REASONING:")
	require.Contains(t, got[cleanAt:], "because X.")
	require.Contains(t, got[cleanAt:], "1. Why?")

	out.Reset()
	require.True(t, r.slash("/panel"))
	require.True(t, r.sess.Settings.PanelCollapsed())
	out.Reset()
	require.NoError(t, r.turn(context.Background(), "again"))
	require.NotContains(t, out.String(), "1. Why?")
}

func TestRunAsk_FailureIsReturned(t *testing.T) {
	defaults := settings.Defaults()
	defaults.APIKey = "sk-test"
	tr := &mockTransport{SendFunc: func(context.Context, *api.ChatRequest) (io.ReadCloser, error) {
		return nil, &client.TransportError{Status: 500, Body: "oops"}
	}}
	sess := client.NewSession(store.NewMemory(), defaults, tr, 0)

	var out bytes.Buffer
	err := runAsk(context.Background(), sess, &out, "hi")
	require.ErrorIs(t, err, client.ErrServer)
	require.Contains(t, out.String(), "oops")

	r, _ := newREPL(t, "sk-test", "fine")
	require.NoError(t, runAsk(context.Background(), r.sess, &out, "hi"))
}

func TestREPL_MissingKeyPromptsAndSaves(t *testing.T) {
	r, out := newREPL(t, "", "ok")
	r.readSecret = func(string) (string, error) { return "sk-new", nil }

	require.ErrorIs(t, r.turn(context.Background(), "hello"), composer.ErrConfigurationRequired)
	require.Contains(t, out.String(), "No API key configured.")
	require.Equal(t, "sk-new", r.sess.Settings.Get().APIKey)
	require.Zero(t, r.sess.Memory.Len())

	require.NoError(t, r.turn(context.Background(), "hello"))
	require.Equal(t, 2, r.sess.Memory.Len())
}

func TestREPL_SlashCommands(t *testing.T) {
	r, out := newREPL(t, "sk-test", "pong")
	require.NoError(t, r.turn(context.Background(), "ping"))

	require.True(t, r.slash("/stats"))
	require.Contains(t, out.String(), "Messages")

	path := filepath.Join(t.TempDir(), "export.json")
	require.True(t, r.slash("/export "+path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.EqualValues(t, 2, doc["totalMessages"])

	require.True(t, r.slash("/clear"))
	require.Zero(t, r.sess.Memory.Len())

	out.Reset()
	require.True(t, r.slash("/bogus"))
	require.Contains(t, out.String(), "unknown command")

	require.False(t, r.slash("/quit"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
llm:
  provider: openai
  base_url: https://api.example.com
  api_key: dummy
  model: gpt-4o
  history_limit: 5
server:
  host: 127.0.0.1
  port: "9090"
  rate_limit: 2.5
client:
  api_url: http://backend:9090/api/chat
  timeout: 30s
storage:
  driver: bolt
  path: /tmp/nature.bolt
defaults:
  developer_message: Be brief.
  enable_reasoning: false
log:
  level: debug
  format: text
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoad_File verifies that Load reads the file named by CONFIG_PATH.
func TestLoad_File(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com", cfg.LLM.BaseURL)
	require.Equal(t, "dummy", cfg.LLM.APIKey)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, 5, cfg.LLM.HistoryLimit)
	require.Equal(t, 1200, cfg.LLM.MaxTokens)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	require.Equal(t, 2.5, cfg.Server.RateLimit)
	require.Equal(t, 10, cfg.Server.Burst)
	require.Equal(t, "http://backend:9090/api/chat", cfg.Client.APIURL)
	require.Equal(t, 30*time.Second, cfg.Client.Timeout)
	require.Equal(t, 20, cfg.Client.ContextWindow)
	require.Equal(t, "bolt", cfg.Storage.Driver)
	require.Equal(t, "Be brief.", cfg.Defaults.DeveloperMessage)
	require.False(t, cfg.Defaults.EnableReasoning)
	require.Equal(t, 0.7, cfg.Defaults.ConfidenceThreshold)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
}

// TestLoad_MissingFileUsesDefaults verifies that no config file is needed.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8001", cfg.Server.Addr())
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, 15, cfg.LLM.HistoryLimit)
	require.True(t, cfg.Defaults.EnableReasoning)
	require.Equal(t, "http://localhost:8001/api/chat", cfg.Client.APIURL)
}

// TestLoad_EnvOverrides verifies NATURE_* variables win over the file.
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))
	t.Setenv("NATURE_LLM_API_KEY", "from-env")
	t.Setenv("NATURE_SERVER_PORT", "7000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.LLM.APIKey)
	require.Equal(t, "7000", cfg.Server.Port)
}

// TestLoad_MalformedFile verifies that a broken file is reported.
func TestLoad_MalformedFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "llm: [unclosed"))
	_, err := Load()
	require.Error(t, err)
}

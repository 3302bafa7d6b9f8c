package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Client   ClientConfig   `mapstructure:"client"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds the backend HTTP server configuration
type ServerConfig struct {
	Host      string  `mapstructure:"host"`
	Port      string  `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst     int     `mapstructure:"burst"`
}

// LLMConfig holds the upstream model configuration used by the backend
type LLMConfig struct {
	Provider     string  `mapstructure:"provider"`
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	Temperature  float32 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	HistoryLimit int     `mapstructure:"history_limit"`
}

// ClientConfig holds the chat client configuration
type ClientConfig struct {
	APIURL        string        `mapstructure:"api_url"`
	ContextWindow int           `mapstructure:"context_window"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the blob store backend
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// DefaultsConfig seeds the chat settings used until the user saves their own
type DefaultsConfig struct {
	Model               string  `mapstructure:"model"`
	DeveloperMessage    string  `mapstructure:"developer_message"`
	EnableReasoning     bool    `mapstructure:"enable_reasoning"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8001")
	v.SetDefault("server.rate_limit", 5)
	v.SetDefault("server.burst", 10)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1200)
	v.SetDefault("llm.history_limit", 15)

	v.SetDefault("client.api_url", "http://localhost:8001/api/chat")
	v.SetDefault("client.context_window", 20)
	v.SetDefault("client.timeout", "0s")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "nature.db")

	v.SetDefault("defaults.model", "gpt-4o-mini")
	v.SetDefault("defaults.developer_message", "")
	v.SetDefault("defaults.enable_reasoning", true)
	v.SetDefault("defaults.confidence_threshold", 0.7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads the configuration from config.yaml, or from the file named by
// CONFIG_PATH, overlaid with NATURE_* environment variables. A missing config
// file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NATURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Addr returns the listen address of the server.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

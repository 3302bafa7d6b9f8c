package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/comigor/nature-chat/internal/client"
	"github.com/comigor/nature-chat/internal/config"
	"github.com/comigor/nature-chat/internal/logger"
	"github.com/comigor/nature-chat/internal/settings"
	"github.com/comigor/nature-chat/internal/store"
)

var (
	// Global flags
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nature",
	Short: "Nature AI - streaming chat with memory, reasoning and follow-up questions",
	Long: `Nature AI is a chat client and backend.

"nature serve" runs the backend that relays chat requests to the model.
"nature chat" opens an interactive session against it; the conversation and
settings persist between runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			os.Setenv("CONFIG_PATH", configPath)
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logger.SetLevel(level)
		// stdout belongs to the conversation everywhere but the server
		if cmd == serveCmd {
			logger.Setup(os.Stdout, cfg.Log.Format)
		} else {
			logger.Setup(os.Stderr, cfg.Log.Format)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./config.yaml, or CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(settingsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// settingsDefaults overlays the configured defaults on the built-in ones.
func settingsDefaults(c *config.Config) settings.Settings {
	d := settings.Defaults()
	if c == nil {
		return d
	}
	if c.Defaults.Model != "" {
		d.Model = c.Defaults.Model
	}
	if msg := strings.TrimSpace(c.Defaults.DeveloperMessage); msg != "" {
		d.DeveloperMessage = msg
	}
	d.EnableReasoning = c.Defaults.EnableReasoning
	if t := c.Defaults.ConfidenceThreshold; t >= 0 && t <= 1 {
		d.ConfidenceThreshold = t
	}
	return d
}

// openSession opens storage and a chat session over it. The caller closes the store.
func openSession(c *config.Config) (*client.Session, store.Store) {
	s := store.Open(c.Storage.Driver, c.Storage.Path)
	t := client.NewHTTPTransport(c.Client.APIURL, c.Client.Timeout)
	return client.NewSession(s, settingsDefaults(c), t, c.Client.ContextWindow), s
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/comigor/nature-chat/internal/console"
	"github.com/comigor/nature-chat/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change chat settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, s := openSession(cfg)
		defer s.Close()
		console.New(cmd.OutOrStdout()).Settings(sess.Settings.Get(), sess.Settings.PanelCollapsed())
		return nil
	},
}

var (
	setAPIKey           string
	setModel            string
	setDeveloperMessage string
	setReasoning        bool
	setThreshold        float64
	setPanelCollapsed   bool
)

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings; only the given flags are updated",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, s := openSession(cfg)
		defer s.Close()

		flags := cmd.Flags()
		err := sess.Settings.Update(func(cur *settings.Settings) {
			if flags.Changed("api-key") {
				cur.APIKey = setAPIKey
			}
			if flags.Changed("model") {
				cur.Model = setModel
			}
			if flags.Changed("developer-message") {
				cur.DeveloperMessage = setDeveloperMessage
			}
			if flags.Changed("reasoning") {
				cur.EnableReasoning = setReasoning
			}
			if flags.Changed("threshold") {
				cur.ConfidenceThreshold = setThreshold
			}
		})
		if err != nil {
			return err
		}
		if flags.Changed("panel-collapsed") {
			if err := sess.Settings.SetPanelCollapsed(setPanelCollapsed); err != nil {
				return err
			}
		}
		console.New(cmd.OutOrStdout()).Success("Settings saved.")
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget saved settings and return to the defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, s := openSession(cfg)
		defer s.Close()
		if err := sess.Settings.Reset(); err != nil {
			return err
		}
		console.New(cmd.OutOrStdout()).Success("Settings reset to defaults.")
		return nil
	},
}

func init() {
	f := settingsSetCmd.Flags()
	f.StringVar(&setAPIKey, "api-key", "", "API key sent with every request")
	f.StringVar(&setModel, "model", "", "Model id")
	f.StringVar(&setDeveloperMessage, "developer-message", "", "System instruction")
	f.BoolVar(&setReasoning, "reasoning", true, "Ask for a REASONING section")
	f.Float64Var(&setThreshold, "threshold", 0.7, "Confidence threshold between 0 and 1")
	f.BoolVar(&setPanelCollapsed, "panel-collapsed", false, "Hide the reasoning and follow-up panel")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}

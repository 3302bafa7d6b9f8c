package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/nature-chat/internal/console"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or reset the stored conversation",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, s := openSession(cfg)
		defer s.Close()
		out := cmd.OutOrStdout()
		for _, m := range sess.Memory.Messages() {
			fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format("2006-01-02 15:04:05"), m.Role, m.Content)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the whole conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, s := openSession(cfg)
		defer s.Close()
		if err := sess.Clear(); err != nil {
			return err
		}
		console.New(cmd.OutOrStdout()).Success("Conversation cleared.")
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the conversation as JSON (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, s := openSession(cfg)
		defer s.Close()
		if len(args) == 0 {
			return sess.Export(cmd.OutOrStdout())
		}
		if err := exportTo(sess, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "exported to", args[0])
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show conversation statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, s := openSession(cfg)
		defer s.Close()
		console.New(cmd.OutOrStdout()).Stats(sess.Stats())
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyStatsCmd)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/comigor/nature-chat/internal/client"
	"github.com/comigor/nature-chat/internal/composer"
	"github.com/comigor/nature-chat/internal/console"
	"github.com/comigor/nature-chat/internal/logger"
	"github.com/comigor/nature-chat/internal/settings"
	"github.com/comigor/nature-chat/internal/stream"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, s := openSession(cfg)
		defer s.Close()
		return runAsk(cmd.Context(), sess, cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

// runAsk renders one turn and reports its failure so the process exits non-zero.
func runAsk(ctx context.Context, sess *client.Session, out io.Writer, text string) error {
	r := &repl{sess: sess, con: console.New(out)}
	if err := r.turn(ctx, text); err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	return nil
}

const helpText = `/clear           forget the whole conversation
/export <file>   write the conversation as JSON
/stats           show conversation statistics
/panel           show or hide reasoning and follow-up questions
/settings        show the current settings
/key             set the API key
/quit            leave`

// repl drives one interactive session.
type repl struct {
	sess *client.Session
	con  *console.Console
	// readSecret asks for a value without echoing it; nil disables prompting.
	readSecret func(prompt string) (string, error)
}

// turn sends one message and renders it, failures included. The returned
// error is the turn's failure, already shown to the user. Ctrl+C interrupts
// the stream.
func (r *repl) turn(ctx context.Context, text string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	r.con.BeginTurn()
	res, err := r.sess.Send(ctx, text, r.con.Snapshot)
	r.con.EndTurn()

	switch {
	case errors.Is(err, composer.ErrConfigurationRequired):
		r.con.Warn("No API key configured.")
		r.promptKey()
		return err
	case errors.Is(err, stream.ErrInterrupted):
		r.con.Error(errors.New("the response was interrupted; the partial answer was kept"))
		return err
	case err != nil:
		r.con.Error(err)
		if client.IsConfigurationError(err) {
			r.con.Info("Use /key to update your API key.")
		}
		return err
	}
	if res.PersistErr != nil {
		r.con.Warn("Conversation could not be saved; it is kept for this session only.")
	}
	r.con.Final(res.Text, res.Response)
	r.con.Panel(res.Response, r.sess.Settings.PanelCollapsed())
	return nil
}

func (r *repl) promptKey() {
	if r.readSecret == nil {
		r.con.Info(`Run "nature settings set --api-key <key>" and try again.`)
		return
	}
	key, err := r.readSecret("API key: ")
	if err != nil || strings.TrimSpace(key) == "" {
		r.con.Info("API key unchanged.")
		return
	}
	if err := r.sess.Settings.Update(func(s *settings.Settings) { s.APIKey = key }); err != nil {
		r.con.Error(err)
		return
	}
	r.con.Success("API key saved. Send your message again.")
}

// slash runs a slash command and reports whether the session continues.
func (r *repl) slash(input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit":
		return false
	case "/help":
		r.con.Info(helpText)
	case "/clear":
		if err := r.sess.Clear(); err != nil {
			r.con.Error(err)
			break
		}
		r.con.Success("Conversation cleared.")
	case "/export":
		if len(fields) < 2 {
			r.con.Warn("usage: /export <file>")
			break
		}
		if err := exportTo(r.sess, fields[1]); err != nil {
			r.con.Error(err)
			break
		}
		r.con.Success("Conversation exported to " + fields[1])
	case "/stats":
		r.con.Stats(r.sess.Stats())
	case "/panel":
		collapsed, err := r.sess.Settings.TogglePanel()
		if err != nil {
			r.con.Warn("Panel preference could not be saved.")
		}
		if collapsed {
			r.con.Info("Side panel hidden.")
		} else {
			r.con.Info("Side panel shown.")
		}
	case "/settings":
		r.con.Settings(r.sess.Settings.Get(), r.sess.Settings.PanelCollapsed())
	case "/key":
		r.promptKey()
	default:
		r.con.Warn("unknown command " + fields[0] + ", try /help")
	}
	return true
}

func exportTo(sess *client.Session, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := sess.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "nature", "chat_history")
}

func runChat(cmd *cobra.Command, _ []string) error {
	sess, s := openSession(cfg)
	defer s.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := historyFile()
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if err := os.MkdirAll(filepath.Dir(histPath), 0o700); err != nil {
			return
		}
		if f, err := os.OpenFile(histPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	r := &repl{sess: sess, con: console.New(cmd.OutOrStdout()), readSecret: line.PasswordPrompt}
	st := sess.Stats()
	r.con.Info(fmt.Sprintf("Nature AI - %d messages remembered. Type /help for commands.", st.Messages))
	if !sess.Settings.Get().Configured() {
		r.con.Warn("No API key configured. Use /key to set one.")
	}

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				logger.L.Warn("prompt failed", "error", err)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if !r.slash(input) {
				return nil
			}
			continue
		}
		// failures are rendered by turn; the session carries on
		_ = r.turn(cmd.Context(), input)
	}
}

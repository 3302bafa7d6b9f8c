// Package console renders chat turns for a terminal: streamed text as it
// arrives, the reasoning / follow-up side panel once a turn completes, and
// notifications.
package console

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/nature-chat/internal/client"
	"github.com/comigor/nature-chat/internal/parser"
	"github.com/comigor/nature-chat/internal/settings"
)

var (
	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			MarginTop(1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	reasoningStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245"))

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")) // Yellow

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(20)

	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	ruleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Console writes to one terminal.
type Console struct {
	out     io.Writer
	printed int
}

// New returns a console writing to out.
func New(out io.Writer) *Console {
	return &Console{out: out}
}

// BeginTurn prints the assistant prompt marker.
func (c *Console) BeginTurn() {
	c.printed = 0
	fmt.Fprint(c.out, assistantStyle.Render("Nature AI")+" ")
}

// Snapshot prints the part of a cumulative snapshot not yet on screen.
func (c *Console) Snapshot(snapshot string) {
	if len(snapshot) <= c.printed {
		return
	}
	fmt.Fprint(c.out, snapshot[c.printed:])
	c.printed = len(snapshot)
}

// EndTurn terminates the streamed text.
func (c *Console) EndTurn() {
	if c.printed > 0 {
		fmt.Fprintln(c.out)
	}
	c.printed = 0
}

// Final re-renders the answer body when parsing cut labeled sections out of
// the streamed text. The sections themselves belong to the panel.
func (c *Console) Final(raw string, resp parser.Response) {
	if resp.MainContent == strings.TrimSpace(raw) {
		return
	}
	fmt.Fprintln(c.out, ruleStyle.Render(strings.Repeat("─", 40)))
	if resp.MainContent != "" {
		fmt.Fprintln(c.out, resp.MainContent)
	}
}

// Panel renders reasoning and follow-up questions. Nothing is printed when
// the panel is collapsed or the response has neither section.
func (c *Console) Panel(resp parser.Response, collapsed bool) {
	if collapsed || (resp.Reasoning == nil && len(resp.Questions) == 0) {
		return
	}
	var parts []string
	if resp.Reasoning != nil && *resp.Reasoning != "" {
		parts = append(parts, panelTitleStyle.Render("Reasoning"), reasoningStyle.Render(*resp.Reasoning))
	}
	if len(resp.Questions) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, panelTitleStyle.Render("You might ask"))
		for i, q := range resp.Questions {
			parts = append(parts, questionStyle.Render(fmt.Sprintf("%d. %s", i+1, q)))
		}
	}
	if len(parts) == 0 {
		return
	}
	fmt.Fprintln(c.out, panelStyle.Render(strings.Join(parts, "\n")))
}

// Error prints a failure notification.
func (c *Console) Error(err error) {
	fmt.Fprintln(c.out, errorStyle.Render("✗ "+err.Error()))
}

// Warn prints a warning notification.
func (c *Console) Warn(msg string) {
	fmt.Fprintln(c.out, warnStyle.Render("! "+msg))
}

// Success prints a confirmation.
func (c *Console) Success(msg string) {
	fmt.Fprintln(c.out, successStyle.Render("✓ "+msg))
}

// Info prints dimmed helper text.
func (c *Console) Info(msg string) {
	fmt.Fprintln(c.out, dimStyle.Render(msg))
}

func (c *Console) row(label, value string) {
	fmt.Fprintln(c.out, labelStyle.Render(label)+value)
}

// Stats prints conversation counters.
func (c *Console) Stats(st client.Stats) {
	c.row("Messages", fmt.Sprint(st.Messages))
	c.row("Memory", fmt.Sprintf("%.1f KB", st.KB))
	c.row("Session started", st.StartedAt.Format("15:04:05"))
	c.row("Session age", st.Age.Round(time.Second).String())
}

// Settings prints the current configuration with the API key masked.
func (c *Console) Settings(s settings.Settings, collapsed bool) {
	key := s.MaskedKey()
	if key == "" {
		key = warnStyle.Render("not set")
	}
	c.row("API key", key)
	c.row("Model", s.Model)
	c.row("Reasoning", fmt.Sprint(s.EnableReasoning))
	c.row("Confidence", fmt.Sprintf("%.2f", s.ConfidenceThreshold))
	c.row("Side panel", map[bool]string{true: "collapsed", false: "shown"}[collapsed])
	c.row("Developer message", s.DeveloperMessage)
}

// Package parser splits a finished assistant answer into its main content and
// the optional labeled sections the backend asks the model to append:
//
//	REASONING:
//	<free text>
//
//	FOLLOW-UP QUESTIONS:
//	1. <question>?
//
// Labels are matched case-insensitively and only at the start of a line. The
// scan finds label positions first and slices spans second, so section bounds
// do not depend on a backtracking pattern engine.
package parser

import (
	"slices"
	"strings"
)

const (
	reasoningLabel = "reasoning"
	followUpLabel  = "follow-up questions"
)

// Response is the parsed form of one assistant message. It is derived on demand
// and never persisted.
type Response struct {
	MainContent string
	// Reasoning is nil when the text has no REASONING label.
	Reasoning *string
	// Questions keeps source order; every entry is non-empty and contains '?'.
	Questions []string
}

// label is one located section header.
type label struct {
	start   int // offset of the line holding the label
	content int // offset of the first non-space byte after the label
}

// Parse extracts the structured sections of text. It is pure and deterministic.
//
// When both labels are present REASONING is expected to come first; the
// reasoning span always ends at the first FOLLOW-UP QUESTIONS label after it.
func Parse(text string) Response {
	resp := Response{Questions: []string{}}

	reasoning, hasReasoning := findLabel(text, reasoningLabel, 0)
	followUp, hasFollowUp := findLabel(text, followUpLabel, 0)
	if !hasReasoning && !hasFollowUp {
		resp.MainContent = strings.TrimSpace(text)
		return resp
	}

	var cuts [][2]int
	if hasReasoning {
		end := len(text)
		if next, ok := findLabel(text, followUpLabel, reasoning.content); ok {
			end = next.start
		}
		r := strings.TrimSpace(text[reasoning.content:end])
		resp.Reasoning = &r
		cuts = append(cuts, [2]int{reasoning.start, end})
	}
	if hasFollowUp {
		resp.Questions = questions(text[followUp.content:])
		cuts = append(cuts, [2]int{followUp.start, len(text)})
	}

	resp.MainContent = collapseBlankLines(cut(text, cuts))
	return resp
}

// findLabel returns the first line starting at or after from whose first word
// is name. The name must be followed by a colon, whitespace or the end of the
// text, so "REASONINGS" or "Follow-up questionnaire" do not match.
func findLabel(text, name string, from int) (label, bool) {
	for ls := from; ls < len(text); {
		if ls == 0 || text[ls-1] == '\n' {
			if l, ok := matchLabel(text, ls, name); ok {
				return l, true
			}
		}
		nl := strings.IndexByte(text[ls:], '\n')
		if nl < 0 {
			break
		}
		ls += nl + 1
	}
	return label{}, false
}

func matchLabel(text string, ls int, name string) (label, bool) {
	p := skipBlanks(text, ls)
	if !hasPrefixFold(text[p:], name) {
		return label{}, false
	}
	end := p + len(name)
	q := skipBlanks(text, end)
	switch {
	case q < len(text) && text[q] == ':':
		q++
	case q == len(text) || q > end || isSpace(text[q]):
	default:
		return label{}, false
	}
	return label{start: ls, content: skipSpace(text, q)}, true
}

// skipBlanks skips spaces and tabs.
func skipBlanks(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// skipSpace skips all ASCII whitespace, line breaks included.
func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// hasPrefixFold is an ASCII-only case-insensitive prefix test.
func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// questions keeps the lines of a follow-up section that read as questions.
func questions(section string) []string {
	out := []string{}
	for _, line := range strings.Split(section, "\n") {
		q := strings.TrimSpace(line)
		q = stripOrdinal(q)
		q = stripBullet(q)
		q = strings.TrimSpace(q)
		if q != "" && strings.Contains(q, "?") {
			out = append(out, q)
		}
	}
	return out
}

// stripOrdinal removes a leading "<digits>." marker followed by whitespace.
func stripOrdinal(s string) string {
	i := 0
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(s) || s[i] != '.' {
		return s
	}
	if i+1 < len(s) && !isSpace(s[i+1]) {
		return s
	}
	return strings.TrimLeft(s[i+1:], " \t")
}

// stripBullet removes a leading "-" or "•" marker followed by whitespace.
func stripBullet(s string) string {
	for _, marker := range []string{"-", "•"} {
		rest, ok := strings.CutPrefix(s, marker)
		if !ok {
			continue
		}
		if rest == "" || isSpace(rest[0]) {
			return strings.TrimLeft(rest, " \t")
		}
	}
	return s
}

// cut returns text without the given [start, end) spans.
func cut(text string, spans [][2]int) string {
	slices.SortFunc(spans, func(a, b [2]int) int { return a[0] - b[0] })
	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp[0] > pos {
			b.WriteString(text[pos:sp[0]])
		}
		pos = max(pos, sp[1])
	}
	if pos < len(text) {
		b.WriteString(text[pos:])
	}
	return b.String()
}

// collapseBlankLines drops whitespace-only lines and trims the result.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

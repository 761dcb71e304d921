package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/muesli/termenv"
)

// Transcript prints conversation messages for a terminal.
type Transcript struct {
	w       io.Writer
	profile termenv.Profile
	render  func(string) (string, error)
}

// NewTranscript creates a printer. A nil render prints assistant text as is;
// termenv.Ascii disables colors.
func NewTranscript(w io.Writer, profile termenv.Profile, render func(string) (string, error)) *Transcript {
	return &Transcript{w: w, profile: profile, render: render}
}

func (t *Transcript) label(text, color string) string {
	return t.profile.String(text).Foreground(t.profile.Color(color)).Bold().String()
}

// Print writes each message. User messages are skipped when echo is false,
// since the user just typed them.
func (t *Transcript) Print(msgs []domain.Message, echo bool) {
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser:
			if echo {
				fmt.Fprintf(t.w, "%s %s\n", t.label("you:", "#60a5fa"), m.Content)
			}
		case domain.RoleAssistant:
			if m.Content != "" {
				fmt.Fprintf(t.w, "%s\n%s\n", t.label("assistant:", "#a78bfa"), t.markdown(m.Content))
			}
			for _, c := range m.ToolCalls {
				fmt.Fprintf(t.w, "%s %s(%s)\n", t.label("  -> call", "#fbbf24"), c.Name, string(c.Arguments))
			}
		case domain.RoleTool:
			tag, color := "  <- result", "#34d399"
			if m.IsError {
				tag, color = "  <- error", "#f87171"
			}
			fmt.Fprintf(t.w, "%s %s\n", t.label(tag, color), oneLine(m.Content, 200))
		}
	}
}

// Error writes a failure line.
func (t *Transcript) Error(err error) {
	fmt.Fprintf(t.w, "%s %v\n", t.label("error:", "#f87171"), err)
}

func (t *Transcript) markdown(s string) string {
	if t.render == nil {
		return s
	}
	out, err := t.render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(out, "\n")
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

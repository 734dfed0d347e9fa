// Package sink delivers pipeline output to terminals, the systemd journal
// and other consumers.
package sink

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/modoterra/droidsym/pkg/core"
)

// Writer writes one output per line to w, optionally colored by severity.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[core.Severity]lipgloss.Style
	frame  lipgloss.Style
	color  bool
}

// NewWriter creates a writer sink. Colors are only applied when color is set,
// and then regardless of whether w is a terminal.
func NewWriter(w io.Writer, color bool) *Writer {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	}
	return &Writer{
		w:     w,
		color: color,
		styles: map[core.Severity]lipgloss.Style{
			core.SeverityVerbose: r.NewStyle().Foreground(lipgloss.Color("245")),
			core.SeverityDebug:   r.NewStyle().Foreground(lipgloss.Color("245")),
			core.SeverityInfo:    r.NewStyle().Foreground(lipgloss.Color("42")),
			core.SeverityWarn:    r.NewStyle().Foreground(lipgloss.Color("214")),
			core.SeverityError:   r.NewStyle().Foreground(lipgloss.Color("196")),
			core.SeverityFatal:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
		frame: r.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
	}
}

// IsTerminal reports whether w is a terminal, so callers can pick a default
// for colored output.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s *Writer) Emit(out core.Output) error {
	text := out.Text
	if s.color {
		if out.Resolved {
			text = s.frame.Render(text)
		} else if st, ok := s.styles[out.Severity]; ok {
			text = st.Render(text)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, text+"\n")
	return err
}

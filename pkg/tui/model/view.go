package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/modoterra/droidsym/pkg/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	frameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	severityStyles = map[core.Severity]lipgloss.Style{
		core.SeverityVerbose: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		core.SeverityDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		core.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		core.SeverityWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		core.SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		core.SeverityFatal:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}

	stateStyles = map[core.State]lipgloss.Style{
		core.StateIdle:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		core.StateStreaming:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		core.StateDraining:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		core.StateTerminated: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	header := a.renderHeader()
	logs := paneStyle.Width(a.width - 2).Render(titleStyle.Render(a.logTitle()) + "\n" + a.logs.View())

	var input string
	switch a.mode {
	case ModeSearch:
		input = a.search.View()
	case ModeResolve:
		input = a.prompt.View()
	default:
		input = a.renderStatusBar()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, logs, input)
}

func (a App) renderHeader() string {
	pkg := a.pkg
	if pkg == "" {
		pkg = dimStyle.Render("not connected")
	}
	state := a.stats.State
	badge := stateStyles[state].Render(state.String())
	if !a.connected {
		badge = dimStyle.Render("offline")
	}

	resolver := "resolver up"
	if !a.stats.ResolverAvailable {
		resolver = severityStyles[core.SeverityError].Render("resolver down")
	}

	counters := fmt.Sprintf("read %d  matched %d  frames %d/%d  failed %d",
		a.stats.LinesRead, a.stats.LinesMatched,
		a.stats.AddressesResolved, a.stats.AddressesFound, a.stats.ResolveFailures)

	return titleStyle.Render(" droidsym ") + pkg + "  " + badge + "  " + resolver + "  " + dimStyle.Render(counters)
}

func (a App) renderLines() string {
	lines := a.visibleLines()
	if len(lines) == 0 {
		return dimStyle.Render("no output yet")
	}

	var b strings.Builder
	for i, out := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(styleOutput(out))
	}
	return b.String()
}

func styleOutput(out core.Output) string {
	if out.Resolved {
		return frameStyle.Render(out.Text)
	}
	if st, ok := severityStyles[out.Severity]; ok {
		return st.Render(out.Text)
	}
	return out.Text
}

func (a App) logTitle() string {
	title := " Output "
	if a.framesOnly {
		title += dimStyle.Render("[FRAMES]") + " "
	}
	if q := a.search.Value(); q != "" {
		title += dimStyle.Render("[/"+q+"]") + " "
	}
	if a.paused {
		title += dimStyle.Render(fmt.Sprintf("[PAUSED +%d]", len(a.held))) + " "
	}
	return title
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	right := "space:pause f:frames /:filter R:resolve c:clear g/G:top/bottom q:quit"

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

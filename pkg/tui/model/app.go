// Package model is the Bubble Tea viewer attached to a served stream.
package model

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/droidsym/pkg/core"
	"github.com/modoterra/droidsym/pkg/transport/uds"
)

// maxLines bounds the scrollback.
const maxLines = 5000

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeResolve
)

// App is the root Bubble Tea model.
type App struct {
	// Connection
	client     *uds.Client
	socketPath string
	connected  bool
	events     chan tea.Msg
	pkg        string

	// State
	lines      []core.Output
	held       []core.Output
	paused     bool
	framesOnly bool
	stats      core.Stats

	// UI
	mode   Mode
	search textinput.Model
	prompt textinput.Model
	logs   viewport.Model
	width  int
	height int

	statusMsg string
}

// New creates a new viewer for the server at socketPath.
func New(socketPath string) App {
	si := textinput.New()
	si.Placeholder = "filter..."
	si.CharLimit = 64

	pi := textinput.New()
	pi.Placeholder = "0x0000000000001a2b"
	pi.Prompt = "resolve> "
	pi.CharLimit = 32

	return App{
		socketPath: socketPath,
		search:     si,
		prompt:     pi,
		logs:       viewport.New(0, 0),
		mode:       ModeNormal,
	}
}

// Init connects to the server.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(a.socketPath),
		tea.SetWindowTitle("droidsym"),
	)
}

// connectedMsg indicates a successful connection.
type connectedMsg struct {
	client *uds.Client
	pkg    string
	events chan tea.Msg
}

// outputMsg carries one pushed output line.
type outputMsg core.Output

// statsMsg carries pushed counters.
type statsMsg core.Stats

// statusResultMsg carries counters fetched on connect.
type statusResultMsg core.Stats

// resolvedMsg carries the answer to a Resolve request.
type resolvedMsg uds.ResolveResponse

// disconnectedMsg is sent once the server goes away.
type disconnectedMsg struct{}

// errorMsg carries an error to display.
type errorMsg struct{ err error }

func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := uds.Dial(socketPath)
		if err != nil {
			return errorMsg{err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Request(ctx, uds.MethodPing, nil)
		if err != nil {
			client.Close()
			return errorMsg{err}
		}
		var pong uds.PingResponse
		if err := resp.UnmarshalData(&pong); err != nil {
			client.Close()
			return errorMsg{err}
		}

		events := make(chan tea.Msg, 1024)
		client.OnEvent(func(m uds.Message) {
			var msg tea.Msg
			switch m.Method {
			case uds.EventLogsLine:
				var out core.Output
				if m.UnmarshalData(&out) != nil {
					return
				}
				msg = outputMsg(out)
			case uds.EventStats:
				var st core.Stats
				if m.UnmarshalData(&st) != nil {
					return
				}
				msg = statsMsg(st)
			default:
				return
			}
			select {
			case events <- msg:
			default:
				// Viewer is behind; drop rather than stall the read loop.
			}
		})
		go func() {
			<-client.Done()
			events <- disconnectedMsg{}
		}()

		return connectedMsg{client: client, pkg: pong.Package, events: events}
	}
}

func listenCmd(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func statusCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodStatus, nil)
		if err != nil {
			return errorMsg{err}
		}
		var st core.Stats
		if err := resp.UnmarshalData(&st); err != nil {
			return errorMsg{err}
		}
		return statusResultMsg(st)
	}
}

func resolveCmd(client *uds.Client, addr string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodResolve, uds.ResolveRequest{Address: addr})
		if err != nil {
			return errorMsg{err}
		}
		var out uds.ResolveResponse
		if err := resp.UnmarshalData(&out); err != nil {
			return errorMsg{err}
		}
		return resolvedMsg(out)
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.logs.Width = max(msg.Width-4, 0)
		a.logs.Height = max(msg.Height-6, 0)
		a.refresh(true)
		return a, nil

	case connectedMsg:
		a.client = msg.client
		a.pkg = msg.pkg
		a.events = msg.events
		a.connected = true
		a.statusMsg = "connected"
		return a, tea.Batch(listenCmd(a.events), statusCmd(a.client))

	case outputMsg:
		if a.paused {
			a.held = append(a.held, core.Output(msg))
		} else {
			a.append(core.Output(msg))
			a.refresh(false)
		}
		return a, listenCmd(a.events)

	case statsMsg:
		a.stats = core.Stats(msg)
		return a, listenCmd(a.events)

	case statusResultMsg:
		a.stats = core.Stats(msg)
		return a, nil

	case resolvedMsg:
		a.statusMsg = msg.Address + " → " + msg.Symbol
		return a, nil

	case disconnectedMsg:
		a.connected = false
		a.statusMsg = "disconnected: stream ended"
		return a, nil

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.logs, cmd = a.logs.Update(msg)
	return a, cmd
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case ModeSearch:
		switch msg.String() {
		case "esc":
			a.mode = ModeNormal
			a.search.SetValue("")
			a.search.Blur()
		case "enter":
			a.mode = ModeNormal
			a.search.Blur()
		default:
			var cmd tea.Cmd
			a.search, cmd = a.search.Update(msg)
			a.refresh(true)
			return a, cmd
		}
		a.refresh(true)
		return a, nil

	case ModeResolve:
		switch msg.String() {
		case "esc":
			a.mode = ModeNormal
			a.prompt.SetValue("")
			a.prompt.Blur()
			return a, nil
		case "enter":
			addr := strings.TrimSpace(a.prompt.Value())
			a.mode = ModeNormal
			a.prompt.SetValue("")
			a.prompt.Blur()
			if addr == "" {
				return a, nil
			}
			if a.client == nil || !a.connected {
				a.statusMsg = "not connected"
				return a, nil
			}
			a.statusMsg = "resolving " + addr + "..."
			return a, resolveCmd(a.client, addr)
		default:
			var cmd tea.Cmd
			a.prompt, cmd = a.prompt.Update(msg)
			return a, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if a.client != nil {
			a.client.Close()
		}
		return a, tea.Quit

	case " ":
		a.paused = !a.paused
		if !a.paused {
			for _, out := range a.held {
				a.append(out)
			}
			a.held = nil
			a.refresh(true)
		}

	case "f":
		a.framesOnly = !a.framesOnly
		a.refresh(true)

	case "c":
		a.lines = nil
		a.held = nil
		a.refresh(true)

	case "/":
		a.mode = ModeSearch
		a.search.Focus()
		return a, textinput.Blink

	case "R", ":":
		a.mode = ModeResolve
		a.prompt.Focus()
		return a, textinput.Blink

	case "g", "home":
		a.logs.GotoTop()
	case "G", "end":
		a.logs.GotoBottom()

	default:
		var cmd tea.Cmd
		a.logs, cmd = a.logs.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *App) append(out core.Output) {
	a.lines = append(a.lines, out)
	if len(a.lines) > maxLines {
		a.lines = a.lines[len(a.lines)-maxLines:]
	}
}

// refresh re-renders the scrollback, following the tail unless the user has
// scrolled up. force jumps to the tail regardless.
func (a *App) refresh(force bool) {
	follow := force || a.logs.AtBottom()
	a.logs.SetContent(a.renderLines())
	if follow {
		a.logs.GotoBottom()
	}
}

func (a App) visibleLines() []core.Output {
	q := strings.ToLower(a.search.Value())
	if q == "" && !a.framesOnly {
		return a.lines
	}
	var filtered []core.Output
	for _, out := range a.lines {
		if a.framesOnly && out.Address == "" {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(out.Text), q) {
			continue
		}
		filtered = append(filtered, out)
	}
	return filtered
}

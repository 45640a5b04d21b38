// Package tui provides the interactive terminal UI for tasknet. The UI
// is a thin projection of the engine's state: every keypress maps onto
// an engine operation and the screen re-reads the engine snapshot on a
// short repaint tick while the background poller keeps it fresh.
package tui

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/tasknet/internal/engine"
	"github.com/fentz26/tasknet/internal/graph"
	"github.com/fentz26/tasknet/internal/models"
	"github.com/fentz26/tasknet/internal/store"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#00F3FF")
	accentColor  = lipgloss.Color("#E91E63")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(lipgloss.Color("#111827")).
			Bold(true)

	dimmedStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Faint(true)

	pinStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

// dragStep is how far one keypress moves a grabbed node, in canvas units.
const dragStep = 20.0

// App is the main TUI application model.
type App struct {
	engine *engine.Engine
	poller *engine.Poller
	cache  *store.Store

	mode        string // "canvas", "inbox", "detail", "team", "notifications"
	nodes       []graph.Node
	edges       []graph.Edge
	inbox       []models.Task
	users       []models.User
	notifs      []models.Notification
	cursor      int
	inboxCursor int
	notifCursor int
	current     *models.Task
	message     string
	width       int
	height      int

	grabbed    string // node id being dragged, "" when idle
	connecting string // source node id while a wire is held

	showDashboard bool
	input         textinput.Model
	viewport      graph.Viewport
}

// New creates the TUI application around an authenticated engine.
func New(eng *engine.Engine, poller *engine.Poller, cache *store.Store) *App {
	ti := textinput.New()
	ti.Placeholder = "task title"
	ti.CharLimit = 120
	ti.Width = 60

	return &App{
		engine:   eng,
		poller:   poller,
		cache:    cache,
		mode:     "canvas",
		input:    ti,
		viewport: graph.Viewport{OffsetX: -40, OffsetY: -20, Zoom: 1},
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type repaintMsg time.Time

type statusMsg string

type errMsg struct{ err error }

func repaintCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return repaintMsg(t)
	})
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.poller.Start()

	if a.cache != nil {
		if show, err := a.cache.ShouldShowDashboard(a.engine.Viewer(), time.Now()); err == nil && show {
			a.showDashboard = true
			_ = a.cache.TouchDashboard(a.engine.Viewer(), time.Now())
		}
	}

	return tea.Batch(a.initialLoad(), repaintCmd())
}

func (a *App) initialLoad() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		a.engine.RefreshTasks(ctx)
		a.engine.RefreshDependencies(ctx)
		a.engine.RefreshUsers(ctx)
		a.engine.RefreshNotifications(ctx)
		return statusMsg("synced")
	}
}

func (a *App) pull() {
	a.nodes = a.engine.Nodes()
	a.edges = a.engine.Edges()
	a.inbox = a.engine.Inbox()
	a.users = a.engine.Users()
	a.notifs = a.engine.Notifications()
	if a.cursor >= len(a.taskNodes()) {
		a.cursor = maxInt(0, len(a.taskNodes())-1)
	}
}

// taskNodes returns the canvas nodes without the hub, in a stable
// top-to-bottom reading order.
func (a *App) taskNodes() []graph.Node {
	var out []graph.Node
	for _, n := range a.nodes {
		if !n.IsHub() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func (a *App) cursorNode() *graph.Node {
	nodes := a.taskNodes()
	if a.cursor < 0 || a.cursor >= len(nodes) {
		return nil
	}
	return &nodes[a.cursor]
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case repaintMsg:
		a.pull()
		return a, repaintCmd()

	case statusMsg:
		a.message = string(msg)
		a.pull()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
		a.pull()
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showDashboard {
		a.showDashboard = false
		return a, nil
	}

	if a.mode == "create" {
		switch msg.String() {
		case "esc":
			a.mode = "canvas"
			a.input.Reset()
			a.input.Blur()
			return a, nil
		case "enter":
			title := strings.TrimSpace(a.input.Value())
			a.mode = "canvas"
			a.input.Reset()
			a.input.Blur()
			if title == "" {
				return a, nil
			}
			x, y := a.viewport.ScreenToCanvas(float64(a.width)/2, float64(a.height)/2)
			return a, func() tea.Msg {
				if err := a.engine.CreateTask(context.Background(), title, x, y); err != nil {
					return errMsg{err}
				}
				return statusMsg("task created")
			}
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		a.poller.Stop()
		a.snapshotToCache()
		return a, tea.Quit

	case "esc":
		return a, a.handleEscape()

	case "up", "k":
		a.moveCursor(-1)
		return a, nil

	case "down", "j":
		a.moveCursor(1)
		return a, nil

	case "left", "h":
		if a.mode == "canvas" && a.grabbed != "" {
			a.nudge(-dragStep, 0)
		}
		return a, nil

	case "right", "l":
		if a.mode == "canvas" && a.grabbed != "" {
			a.nudge(dragStep, 0)
		}
		return a, nil

	case "enter":
		return a, a.handleEnter()

	case " ":
		if a.mode == "canvas" && a.grabbed == "" && a.connecting == "" {
			if n := a.cursorNode(); n != nil {
				a.engine.SelectNode(n.ID, !n.Selected)
				a.pull()
			}
		}
		return a, nil

	case "g":
		if a.mode == "canvas" && a.grabbed == "" && a.connecting == "" {
			if n := a.cursorNode(); n != nil {
				if !n.Draggable {
					a.message = "node is pinned"
					return a, nil
				}
				a.grabbed = n.ID
				a.engine.BeginDrag()
			}
		}
		return a, nil

	case "c":
		if a.mode == "canvas" && a.grabbed == "" && a.connecting == "" {
			if n := a.cursorNode(); n != nil {
				a.connecting = n.ID
				a.engine.BeginConnect(n.ID)
				a.pull()
			}
		}
		return a, nil

	case "p":
		if a.mode == "canvas" && a.grabbed == "" {
			if n := a.cursorNode(); n != nil {
				taskID := n.TaskID()
				return a, func() tea.Msg {
					if err := a.engine.TogglePin(context.Background(), taskID); err != nil {
						return errMsg{err}
					}
					return statusMsg("pin toggled")
				}
			}
		}
		return a, nil

	case "i":
		a.mode = "inbox"
		return a, nil

	case "t":
		a.mode = "team"
		return a, nil

	case "n":
		a.mode = "notifications"
		return a, nil

	case "a":
		if a.mode == "notifications" {
			return a, func() tea.Msg {
				a.engine.ReadAllNotifications(context.Background())
				return statusMsg("all notifications read")
			}
		}
		return a, nil

	case "x":
		if a.mode == "notifications" {
			return a, func() tea.Msg {
				a.engine.ClearNotifications(context.Background())
				return statusMsg("notifications cleared")
			}
		}
		return a, nil

	case "b":
		return a, a.setStatus(models.StatusBusy)

	case "o":
		return a, a.setStatus(models.StatusOnline)

	case "N":
		if a.mode == "canvas" && a.grabbed == "" && a.connecting == "" {
			a.mode = "create"
			a.input.Focus()
			return a, textinput.Blink
		}
		return a, nil

	case "r":
		return a, a.initialLoad()
	}

	return a, nil
}

func (a *App) moveCursor(delta int) {
	switch a.mode {
	case "canvas":
		if a.grabbed != "" {
			a.nudge(0, float64(delta)*dragStep)
			return
		}
		a.cursor = clamp(a.cursor+delta, 0, maxInt(0, len(a.taskNodes())-1))
	case "inbox":
		a.inboxCursor = clamp(a.inboxCursor+delta, 0, maxInt(0, len(a.inbox)-1))
	case "notifications":
		a.notifCursor = clamp(a.notifCursor+delta, 0, maxInt(0, len(a.notifs)-1))
	}
}

// nudge moves the grabbed node (or the whole selection with it) one
// step. Per-frame movement touches only the node set; persistence waits
// for the drop.
func (a *App) nudge(dx, dy float64) {
	moved := map[string]bool{a.grabbed: true}
	for _, n := range a.nodes {
		if n.Selected {
			moved[n.ID] = true
		}
	}
	for _, n := range a.nodes {
		if moved[n.ID] {
			a.engine.SetNodePosition(n.ID, n.X+dx, n.Y+dy)
		}
	}
	a.pull()
}

func (a *App) handleEscape() tea.Cmd {
	switch {
	case a.grabbed != "":
		// Drop where it stands; the engine persists from the live set.
		id := a.grabbed
		a.grabbed = ""
		return func() tea.Msg {
			a.engine.EndDrag(context.Background(), id)
			return statusMsg("positions saved")
		}
	case a.connecting != "":
		a.connecting = ""
		a.engine.EndConnect()
		a.pull()
		return nil
	case a.mode != "canvas":
		a.mode = "canvas"
		a.current = nil
		return nil
	}
	return nil
}

func (a *App) handleEnter() tea.Cmd {
	switch a.mode {
	case "canvas":
		switch {
		case a.grabbed != "":
			id := a.grabbed
			a.grabbed = ""
			return func() tea.Msg {
				a.engine.EndDrag(context.Background(), id)
				return statusMsg("positions saved")
			}
		case a.connecting != "":
			source := a.connecting
			target := ""
			if n := a.cursorNode(); n != nil {
				target = n.ID
			}
			a.connecting = ""
			return func() tea.Msg {
				defer a.engine.EndConnect()
				if target == "" {
					return statusMsg("")
				}
				if err := a.engine.Connect(context.Background(), source, target); err != nil {
					return errMsg{err}
				}
				return statusMsg("dependency created")
			}
		default:
			if n := a.cursorNode(); n != nil && n.Task != nil {
				// The node carries the full payload; no second fetch.
				task := *n.Task
				a.current = &task
				a.mode = "detail"
				taskID := task.ID
				return func() tea.Msg {
					a.engine.OpenTask(context.Background(), taskID)
					return statusMsg("")
				}
			}
		}

	case "inbox":
		if a.inboxCursor < len(a.inbox) {
			taskID := a.inbox[a.inboxCursor].ID
			// Drop next to the hub; the user drags it onward from there.
			x, y := a.viewport.ScreenToCanvas(float64(a.width)/2, float64(a.height)/2)
			return func() tea.Msg {
				a.engine.PlaceFromInbox(context.Background(), taskID, x, y)
				return statusMsg("task placed on canvas")
			}
		}

	case "notifications":
		if a.notifCursor < len(a.notifs) {
			notif := a.notifs[a.notifCursor]
			return func() tea.Msg {
				if !notif.IsRead {
					a.engine.ReadNotification(context.Background(), notif.ID)
				}
				return statusMsg("")
			}
		}
	}
	return nil
}

func (a *App) setStatus(status models.UserStatus) tea.Cmd {
	return func() tea.Msg {
		a.engine.SetStatus(context.Background(), status)
		return statusMsg("status: " + string(status))
	}
}

// snapshotToCache writes the current graph to the offline cache so the
// next launch has content before its first fetch.
func (a *App) snapshotToCache() {
	if a.cache == nil {
		return
	}
	tasks := a.engine.Tasks()
	deps := make([]models.Dependency, 0, len(a.edges))
	for _, e := range a.edges {
		src, err1 := strconv.Atoi(e.Source)
		tgt, err2 := strconv.Atoi(e.Target)
		if err1 != nil || err2 != nil {
			// Hub edges have no task on one end and no server record.
			continue
		}
		deps = append(deps, models.Dependency{SourceTask: src, TargetTask: tgt})
	}
	if err := a.cache.SaveSnapshot(tasks, deps); err != nil {
		a.message = "cache write failed"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package engine implements the client-side graph synchronization
// engine: it reconciles remotely fetched tasks and dependencies against
// the locally manipulated canvas, persists drag results, validates
// connections and keeps optimistic local state coherent across the
// 2-second background refresh.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/fentz26/tasknet/internal/api"
	"github.com/fentz26/tasknet/internal/graph"
	"github.com/fentz26/tasknet/internal/models"
)

// API is the remote-service surface the engine needs. *api.Client
// satisfies it; tests substitute a recorder.
type API interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, req api.CreateTaskRequest) (int, error)
	ListDependencies(ctx context.Context) ([]models.Dependency, error)
	CreateDependency(ctx context.Context, sourceTask, targetTask int) error
	UpdatePosition(ctx context.Context, taskID, x, y int) error
	SetPinned(ctx context.Context, placementID int, pinned bool) error
	CheckDeadlines(ctx context.Context) error
	MarkTaskRead(ctx context.Context, taskID int) error
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateStatus(ctx context.Context, status models.UserStatus) error
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int) error
	MarkAllNotificationsRead(ctx context.Context) error
	ClearNotifications(ctx context.Context) error
}

// RenderView answers the "snapshot now" query: the committed node set of
// the rendering engine at this instant. At a drag boundary the engine
// reads final positions from here, never from its own possibly lagging
// mirror. When no view is installed the engine falls back to its own
// node set.
type RenderView interface {
	LiveNodes() []graph.Node
}

// Engine owns the shared mutable client state: the node and edge sets,
// the task cache, presence, notifications and the interaction state.
// Every mutation is a reducer over the previous snapshot and runs under
// one mutex.
type Engine struct {
	api    API
	viewer string
	logger *log.Logger

	mu            sync.Mutex
	nodes         []graph.Node
	edges         []graph.Edge
	tasks         []models.Task
	users         []models.User
	notifications []models.Notification
	state         graph.InteractionState
	connecting    string
	myStatus      models.UserStatus
	view          RenderView

	// epoch guards against late-arriving responses being applied to
	// state that has since been reset (logout, account switch).
	epoch uint64
}

// New creates an engine for the given viewer.
func New(apiClient API, viewer string) *Engine {
	return &Engine{
		api:      apiClient,
		viewer:   viewer,
		logger:   log.Default(),
		nodes:    []graph.Node{graph.HubNode()},
		myStatus: models.StatusOnline,
	}
}

// SetLogger overrides the destination for background-sync log lines.
func (e *Engine) SetLogger(l *log.Logger) {
	e.logger = l
}

// SetRenderView installs the live render source queried at drag end.
func (e *Engine) SetRenderView(v RenderView) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = v
}

// Reset bumps the epoch and clears all cached state. In-flight fetches
// started before the reset are dropped when they return.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.nodes = []graph.Node{graph.HubNode()}
	e.edges = nil
	e.tasks = nil
	e.users = nil
	e.notifications = nil
	e.state = graph.Idle
	e.connecting = ""
}

// --- Snapshot accessors ---

// Nodes returns a copy of the current node set.
func (e *Engine) Nodes() []graph.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]graph.Node, len(e.nodes))
	copy(out, e.nodes)
	return out
}

// Edges returns a copy of the current edge set.
func (e *Engine) Edges() []graph.Edge {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]graph.Edge, len(e.edges))
	copy(out, e.edges)
	return out
}

// Tasks returns a copy of the task cache.
func (e *Engine) Tasks() []models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Task, len(e.tasks))
	copy(out, e.tasks)
	return out
}

// Users returns the colleague list.
func (e *Engine) Users() []models.User {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.User, len(e.users))
	copy(out, e.users)
	return out
}

// Notifications returns the notification list.
func (e *Engine) Notifications() []models.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Notification, len(e.notifications))
	copy(out, e.notifications)
	return out
}

// UnreadCount counts unread notifications.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, notif := range e.notifications {
		if !notif.IsRead {
			n++
		}
	}
	return n
}

// Inbox returns the viewer's unplaced tasks.
func (e *Engine) Inbox() []models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return graph.Inbox(e.tasks, e.viewer)
}

// State returns the current interaction state.
func (e *Engine) State() graph.InteractionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Suspended reports whether background refresh must stand down.
func (e *Engine) Suspended() bool {
	return e.State().Suspended()
}

// Viewer returns the username the engine merges for.
func (e *Engine) Viewer() string {
	return e.viewer
}

// --- Background refresh ---

// RefreshTasks fetches the task list and merges it into the node set. A
// fetch error is logged and the previous snapshot is left untouched; a
// response that arrives after a Reset is dropped.
func (e *Engine) RefreshTasks(ctx context.Context) {
	e.mu.Lock()
	started := e.epoch
	e.mu.Unlock()

	tasks, err := e.api.ListTasks(ctx)
	if err != nil {
		e.logger.Printf("task fetch failed: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != started {
		return
	}
	e.tasks = tasks
	e.nodes = graph.Merge(e.nodes, tasks, e.viewer)
	if e.state == graph.Connecting {
		e.nodes = graph.ApplyConnectDimming(e.nodes, e.connecting)
	}
}

// RefreshDependencies fetches dependencies and rebuilds the edge set
// wholesale.
func (e *Engine) RefreshDependencies(ctx context.Context) {
	e.mu.Lock()
	started := e.epoch
	e.mu.Unlock()

	deps, err := e.api.ListDependencies(ctx)
	if err != nil {
		e.logger.Printf("dependency fetch failed: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != started {
		return
	}
	e.edges = graph.BuildEdges(deps)
}

// RefreshUsers fetches the colleague list. The viewer's own presence is
// kept at its locally chosen value rather than the server echo, so a
// status change does not flicker back while the update is in flight.
func (e *Engine) RefreshUsers(ctx context.Context) {
	e.mu.Lock()
	started := e.epoch
	e.mu.Unlock()

	users, err := e.api.ListUsers(ctx)
	if err != nil {
		e.logger.Printf("user fetch failed: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != started {
		return
	}
	for i := range users {
		if users[i].Username == e.viewer {
			users[i].Status = e.myStatus
		}
	}
	e.users = users
}

// RefreshNotifications fetches the notification list.
func (e *Engine) RefreshNotifications(ctx context.Context) {
	e.mu.Lock()
	started := e.epoch
	e.mu.Unlock()

	notifs, err := e.api.ListNotifications(ctx)
	if err != nil {
		e.logger.Printf("notification fetch failed: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != started {
		return
	}
	e.notifications = notifs
}

// SweepDeadlines triggers the server-side deadline sweep. Failures are
// swallowed; the next tick retries from scratch.
func (e *Engine) SweepDeadlines(ctx context.Context) {
	if err := e.api.CheckDeadlines(ctx); err != nil {
		e.logger.Printf("deadline sweep failed: %v", err)
	}
}

// --- Drag ---

// BeginDrag marks a drag in progress, suspending background refresh.
func (e *Engine) BeginDrag() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = graph.Transition(e.state, graph.EvDragStart)
}

// SetNodePosition moves a node on the canvas without touching the task
// cache. This is the per-frame drag path; persistence happens in
// EndDrag.
func (e *Engine) SetNodePosition(id string, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.nodes {
		if e.nodes[i].ID == id && !e.nodes[i].IsHub() {
			e.nodes[i].X = x
			e.nodes[i].Y = y
			return
		}
	}
}

// SelectNode sets a node's selection flag.
func (e *Engine) SelectNode(id string, selected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.nodes {
		if e.nodes[i].ID == id && !e.nodes[i].IsHub() {
			e.nodes[i].Selected = selected
			return
		}
	}
}

// ClearSelection deselects every node.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.nodes {
		e.nodes[i].Selected = false
	}
}

// EndDrag completes a drag gesture. Final coordinates are read from the
// live render view at this instant, not from the engine's mirror. The
// target set is every selected node in the live set, falling back to the
// dragged node itself when nothing is selected. Each target gets one
// sequential update_position call with integer-rounded coordinates; a
// per-node failure is logged and does not abort the rest of the batch or
// roll back the optimistic cache patch. The drag suspension always
// clears, success or not.
func (e *Engine) EndDrag(ctx context.Context, draggedID string) {
	defer func() {
		e.mu.Lock()
		e.state = graph.Transition(e.state, graph.EvDragEnd)
		e.mu.Unlock()
	}()

	live := e.liveNodes()

	var targets []graph.Node
	for _, n := range live {
		if n.Selected && !n.IsHub() {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		for _, n := range live {
			if n.ID == draggedID && !n.IsHub() {
				targets = append(targets, n)
				break
			}
		}
	}

	for _, n := range targets {
		x := int(math.Round(n.X))
		y := int(math.Round(n.Y))
		if err := e.api.UpdatePosition(ctx, n.TaskID(), x, y); err != nil {
			e.logger.Printf("position update failed for task %d: %v", n.TaskID(), err)
		}
		// Success assumed: patch the local caches so the next merge
		// pass does not revert the node before the fetch lands.
		e.patchPlacement(n.TaskID(), float64(x), float64(y))
	}
}

// liveNodes queries the render view, falling back to the engine's own
// node set when none is installed.
func (e *Engine) liveNodes() []graph.Node {
	e.mu.Lock()
	view := e.view
	e.mu.Unlock()
	if view != nil {
		return view.LiveNodes()
	}
	return e.Nodes()
}

// patchPlacement writes coordinates into both the task cache and the
// node set.
func (e *Engine) patchPlacement(taskID int, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.tasks {
		if e.tasks[i].ID == taskID {
			e.tasks[i].Placement.X = x
			e.tasks[i].Placement.Y = y
		}
	}
	id := graph.NodeID(taskID)
	for i := range e.nodes {
		if e.nodes[i].ID == id {
			e.nodes[i].X = x
			e.nodes[i].Y = y
		}
	}
}

// --- Rubber-band selection ---

// BeginSelect marks a rubber-band selection open, suspending refresh.
func (e *Engine) BeginSelect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = graph.Transition(e.state, graph.EvSelectStart)
}

// EndSelect closes the rubber-band selection.
func (e *Engine) EndSelect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = graph.Transition(e.state, graph.EvSelectEnd)
}

// --- Connections ---

// BeginConnect starts a connection gesture from a source node and dims
// temporally invalid drop targets.
func (e *Engine) BeginConnect(sourceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = graph.Transition(e.state, graph.EvConnectStart)
	if e.state != graph.Connecting {
		return
	}
	e.connecting = sourceID
	e.nodes = graph.ApplyConnectDimming(e.nodes, sourceID)
}

// EndConnect releases the connection gesture and restores opacity.
func (e *Engine) EndConnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = graph.Transition(e.state, graph.EvConnectEnd)
	e.connecting = ""
	e.nodes = graph.ApplyConnectDimming(e.nodes, "")
}

// Connect validates and creates a dependency edge. Validation failures
// return before any remote call: self-loops silently, temporal
// paradoxes with ErrTemporalParadox for the UI to surface. On acceptance
// the edge renders immediately and the remote create is fire-and-forget;
// a failure is logged but the local edge stays (the poll loop
// re-synchronizes within seconds either way).
func (e *Engine) Connect(ctx context.Context, sourceID, targetID string) error {
	e.mu.Lock()
	if err := graph.ValidateConnection(e.nodes, sourceID, targetID); err != nil {
		e.mu.Unlock()
		return err
	}
	e.edges = append(e.edges, graph.Edge{
		ID:     "e" + sourceID + "-" + targetID,
		Source: sourceID,
		Target: targetID,
	})
	source := findTaskID(e.nodes, sourceID)
	target := findTaskID(e.nodes, targetID)
	e.mu.Unlock()

	if source == 0 || target == 0 {
		// Hub endpoints are rendered locally but have no dependency
		// record on the server.
		return nil
	}
	if err := e.api.CreateDependency(ctx, source, target); err != nil {
		e.logger.Printf("dependency create failed (%s -> %s): %v", sourceID, targetID, err)
	}
	return nil
}

func findTaskID(nodes []graph.Node, id string) int {
	for i := range nodes {
		if nodes[i].ID == id {
			return nodes[i].TaskID()
		}
	}
	return 0
}

// --- Pin toggling ---

// TogglePin flips a task's pin flag. The flip applies locally first;
// the remote patch follows. This is the one path that rolls back on
// failure: the error is returned for a user-facing alert and a full
// refetch restores ground truth.
func (e *Engine) TogglePin(ctx context.Context, taskID int) error {
	e.mu.Lock()
	var placementID int
	var newPinned bool
	found := false
	for i := range e.tasks {
		if e.tasks[i].ID == taskID {
			newPinned = !e.tasks[i].Placement.Pinned
			placementID = e.tasks[i].Placement.ID
			e.tasks[i].Placement.Pinned = newPinned
			found = true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return fmt.Errorf("task %d not in cache", taskID)
	}
	id := graph.NodeID(taskID)
	for i := range e.nodes {
		if e.nodes[i].ID == id {
			e.nodes[i].Draggable = !newPinned
			if e.nodes[i].Task != nil {
				e.nodes[i].Task.Placement.Pinned = newPinned
			}
		}
	}
	e.mu.Unlock()

	if err := e.api.SetPinned(ctx, placementID, newPinned); err != nil {
		e.logger.Printf("pin update failed for task %d: %v", taskID, err)
		e.RefreshTasks(ctx)
		return fmt.Errorf("pin update failed: %w", err)
	}
	return nil
}

// --- Inbox placement ---

// PlaceFromInbox drops an unplaced task onto the canvas at a position.
// The local caches update optimistically; the remote update is
// fire-and-forget like any other position write.
func (e *Engine) PlaceFromInbox(ctx context.Context, taskID int, x, y float64) {
	rx := math.Round(x)
	ry := math.Round(y)
	e.patchPlacement(taskID, rx, ry)

	e.mu.Lock()
	e.nodes = graph.Merge(e.nodes, e.tasks, e.viewer)
	e.mu.Unlock()

	if err := e.api.UpdatePosition(ctx, taskID, int(rx), int(ry)); err != nil {
		e.logger.Printf("inbox placement failed for task %d: %v", taskID, err)
	}
}

// CreateTask creates a task seeded with a canvas position, then
// refreshes so the new node appears with its server-assigned placement.
func (e *Engine) CreateTask(ctx context.Context, title string, x, y float64) error {
	req := api.CreateTaskRequest{
		Title:    title,
		Priority: models.PriorityNormal,
		X:        int(math.Round(x)),
		Y:        int(math.Round(y)),
	}
	id, err := e.api.CreateTask(ctx, req)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	e.logger.Printf("created task %d", id)
	e.RefreshTasks(ctx)
	return nil
}

// --- Task interactions ---

// OpenTask marks the viewer's assignment read when it is still unread,
// then refreshes so the badge clears.
func (e *Engine) OpenTask(ctx context.Context, taskID int) {
	e.mu.Lock()
	var unread bool
	for i := range e.tasks {
		if e.tasks[i].ID == taskID {
			if a := e.tasks[i].AssignmentFor(e.viewer); a != nil && !a.IsRead {
				unread = true
			}
			break
		}
	}
	e.mu.Unlock()

	if !unread {
		return
	}
	if err := e.api.MarkTaskRead(ctx, taskID); err != nil {
		e.logger.Printf("mark read failed for task %d: %v", taskID, err)
		return
	}
	e.RefreshTasks(ctx)
}

// SetStatus publishes the viewer's presence and remembers it locally so
// colleague merges do not overwrite it with a stale server echo.
func (e *Engine) SetStatus(ctx context.Context, status models.UserStatus) {
	e.mu.Lock()
	if status == models.StatusOnline || status == models.StatusBusy {
		e.myStatus = status
	}
	for i := range e.users {
		if e.users[i].Username == e.viewer {
			e.users[i].Status = status
		}
	}
	e.mu.Unlock()

	if err := e.api.UpdateStatus(ctx, status); err != nil {
		e.logger.Printf("status update failed: %v", err)
	}
}

// --- Notification actions ---

// ReadNotification marks one notification read, optimistically.
func (e *Engine) ReadNotification(ctx context.Context, id int) {
	e.mu.Lock()
	for i := range e.notifications {
		if e.notifications[i].ID == id {
			e.notifications[i].IsRead = true
		}
	}
	e.mu.Unlock()

	if err := e.api.MarkNotificationRead(ctx, id); err != nil {
		e.logger.Printf("notification read failed: %v", err)
	}
}

// ReadAllNotifications marks everything read, optimistically.
func (e *Engine) ReadAllNotifications(ctx context.Context) {
	e.mu.Lock()
	for i := range e.notifications {
		e.notifications[i].IsRead = true
	}
	e.mu.Unlock()

	if err := e.api.MarkAllNotificationsRead(ctx); err != nil {
		e.logger.Printf("notification read-all failed: %v", err)
	}
}

// ClearNotifications deletes everything, optimistically.
func (e *Engine) ClearNotifications(ctx context.Context) {
	e.mu.Lock()
	e.notifications = nil
	e.mu.Unlock()

	if err := e.api.ClearNotifications(ctx); err != nil {
		e.logger.Printf("notification clear failed: %v", err)
	}
}

// LoadSnapshot seeds the engine from a cached offline snapshot so the
// canvas has content before the first fetch completes.
func (e *Engine) LoadSnapshot(tasks []models.Task, deps []models.Dependency) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = tasks
	e.nodes = graph.Merge(e.nodes, tasks, e.viewer)
	e.edges = graph.BuildEdges(deps)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/tasknet/internal/api"
	"github.com/fentz26/tasknet/internal/graph"
	"github.com/fentz26/tasknet/internal/models"
)

// mockAPI records every remote call in order and can be told to fail
// individual operations.
type mockAPI struct {
	mu    sync.Mutex
	calls []string

	tasks  []models.Task
	deps   []models.Dependency
	users  []models.User
	notifs []models.Notification

	failTasks bool
	failPin   bool
	failDep   bool
	failPos   bool

	// inFlight trips the overlap flag when two position updates run
	// concurrently; the engine must issue them strictly sequentially.
	inFlight   bool
	overlapped bool

	// gate, when set, blocks ListTasks until closed.
	gate chan struct{}
}

func (m *mockAPI) record(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *mockAPI) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockAPI) ListTasks(ctx context.Context) ([]models.Task, error) {
	m.record("ListTasks")
	if m.gate != nil {
		<-m.gate
	}
	if m.failTasks {
		return nil, errors.New("boom")
	}
	out := make([]models.Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *mockAPI) CreateTask(ctx context.Context, req api.CreateTaskRequest) (int, error) {
	m.record("CreateTask(%s,%d,%d)", req.Title, req.X, req.Y)
	return 99, nil
}

func (m *mockAPI) ListDependencies(ctx context.Context) ([]models.Dependency, error) {
	m.record("ListDependencies")
	return m.deps, nil
}

func (m *mockAPI) CreateDependency(ctx context.Context, sourceTask, targetTask int) error {
	m.record("CreateDependency(%d,%d)", sourceTask, targetTask)
	if m.failDep {
		return errors.New("boom")
	}
	return nil
}

func (m *mockAPI) UpdatePosition(ctx context.Context, taskID, x, y int) error {
	m.mu.Lock()
	if m.inFlight {
		m.overlapped = true
	}
	m.inFlight = true
	m.calls = append(m.calls, fmt.Sprintf("UpdatePosition(%d,%d,%d)", taskID, x, y))
	m.mu.Unlock()

	time.Sleep(time.Millisecond)

	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
	if m.failPos {
		return errors.New("boom")
	}
	return nil
}

func (m *mockAPI) SetPinned(ctx context.Context, placementID int, pinned bool) error {
	m.record("SetPinned(%d,%v)", placementID, pinned)
	if m.failPin {
		return errors.New("boom")
	}
	return nil
}

func (m *mockAPI) CheckDeadlines(ctx context.Context) error {
	m.record("CheckDeadlines")
	return nil
}

func (m *mockAPI) MarkTaskRead(ctx context.Context, taskID int) error {
	m.record("MarkTaskRead(%d)", taskID)
	return nil
}

func (m *mockAPI) ListUsers(ctx context.Context) ([]models.User, error) {
	m.record("ListUsers")
	return m.users, nil
}

func (m *mockAPI) UpdateStatus(ctx context.Context, status models.UserStatus) error {
	m.record("UpdateStatus(%s)", status)
	return nil
}

func (m *mockAPI) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	m.record("ListNotifications")
	return m.notifs, nil
}

func (m *mockAPI) MarkNotificationRead(ctx context.Context, id int) error {
	m.record("MarkNotificationRead(%d)", id)
	return nil
}

func (m *mockAPI) MarkAllNotificationsRead(ctx context.Context) error {
	m.record("MarkAllNotificationsRead")
	return nil
}

func (m *mockAPI) ClearNotifications(ctx context.Context) error {
	m.record("ClearNotifications")
	return nil
}

func task(id int, creator string, x, y float64) models.Task {
	return models.Task{
		ID:        id,
		Title:     "Task",
		Status:    models.TaskStatusActive,
		Priority:  models.PriorityNormal,
		CreatedBy: models.User{Username: creator},
		Placement: models.Placement{ID: id * 100, X: x, Y: y},
	}
}

func newTestEngine(m *mockAPI) *Engine {
	e := New(m, "alice")
	e.SetLogger(log.New(io.Discard, "", 0))
	return e
}

func TestRefreshTasksMergesIntoNodes(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 20)}}
	e := newTestEngine(m)

	e.RefreshTasks(context.Background())

	nodes := e.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("expected hub + 1 task, got %d nodes", len(nodes))
	}
	if nodes[1].ID != "1" || nodes[1].X != 10 || nodes[1].Y != 20 {
		t.Errorf("merged node mismatch: %+v", nodes[1])
	}
}

func TestRefreshTasksErrorLeavesSnapshotUntouched(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 20)}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	m.failTasks = true
	m.tasks = nil
	e.RefreshTasks(context.Background())

	if len(e.Nodes()) != 2 {
		t.Error("a failed fetch must not touch the previous node set")
	}
	if len(e.Tasks()) != 1 {
		t.Error("a failed fetch must not touch the task cache")
	}
}

func TestDragSuspensionSkipsPollTick(t *testing.T) {
	m := &mockAPI{}
	e := newTestEngine(m)
	p := NewPoller(e, 0)

	e.BeginDrag()
	nodesBefore := e.Nodes()
	p.Tick(context.Background())

	if got := m.callCount(); got != 0 {
		t.Errorf("suspended tick must issue zero remote calls, got %d: %v", got, m.calls)
	}
	nodesAfter := e.Nodes()
	if len(nodesBefore) != len(nodesAfter) {
		t.Error("suspended tick must not mutate the node set")
	}

	// Same for a rubber-band selection.
	e.EndDrag(context.Background(), "")
	m.calls = nil
	e.BeginSelect()
	p.Tick(context.Background())
	if got := m.callCount(); got != 0 {
		t.Errorf("selecting tick must issue zero remote calls, got %d", got)
	}
}

func TestMultiSelectBatchOrder(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{
		task(1, "alice", 10, 10),
		task(2, "alice", 20, 20),
		task(3, "alice", 30, 30),
	}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	e.SelectNode("1", true)
	e.SelectNode("2", true)
	e.SelectNode("3", true)

	e.BeginDrag()
	e.SetNodePosition("1", 100.4, 100.6)
	e.SetNodePosition("2", 200.5, 200.2)
	e.SetNodePosition("3", 300.9, 300.1)
	m.calls = nil
	e.EndDrag(context.Background(), "1")

	want := []string{
		"UpdatePosition(1,100,101)",
		"UpdatePosition(2,201,200)",
		"UpdatePosition(3,301,300)",
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) != len(want) {
		t.Fatalf("expected %d position calls, got %v", len(want), m.calls)
	}
	for i := range want {
		if m.calls[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, m.calls[i], want[i])
		}
	}
	if m.overlapped {
		t.Error("position updates must be issued strictly sequentially")
	}
}

func TestEndDragFallsBackToDraggedNode(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10), task(2, "alice", 20, 20)}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	e.BeginDrag()
	e.SetNodePosition("2", 55, 66)
	m.calls = nil
	e.EndDrag(context.Background(), "2")

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) != 1 || m.calls[0] != "UpdatePosition(2,55,66)" {
		t.Errorf("expected single fallback update, got %v", m.calls)
	}
}

func TestEndDragPatchesCacheAndClearsStateOnFailure(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10)}, failPos: true}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	e.BeginDrag()
	e.SetNodePosition("1", 70, 80)
	e.EndDrag(context.Background(), "1")

	if e.State() != graph.Idle {
		t.Error("drag suspension must clear even when the remote update fails")
	}
	// Optimistic patch survives the failure: no rollback on this path.
	for _, tk := range e.Tasks() {
		if tk.ID == 1 && (tk.Placement.X != 70 || tk.Placement.Y != 80) {
			t.Errorf("optimistic placement patch missing: %+v", tk.Placement)
		}
	}
}

func TestEndDragFailureDoesNotAbortBatch(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10), task(2, "alice", 20, 20)}, failPos: true}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	e.SelectNode("1", true)
	e.SelectNode("2", true)
	e.BeginDrag()
	m.calls = nil
	e.EndDrag(context.Background(), "1")

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) != 2 {
		t.Errorf("a per-node failure must not abort the rest of the batch: %v", m.calls)
	}
}

// staleView feeds EndDrag positions the engine's own mirror never saw,
// standing in for the render engine being ahead of reactive state.
type staleView struct {
	nodes []graph.Node
}

func (v *staleView) LiveNodes() []graph.Node { return v.nodes }

func TestEndDragReadsLiveRenderView(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10)}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	tk := task(1, "alice", 10, 10)
	e.SetRenderView(&staleView{nodes: []graph.Node{
		graph.HubNode(),
		{ID: "1", X: 500, Y: 600, Opacity: graph.FullOpacity, Task: &tk},
	}})

	e.BeginDrag()
	// The engine mirror still says (10,10); the live view says (500,600).
	m.calls = nil
	e.EndDrag(context.Background(), "1")

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) != 1 || m.calls[0] != "UpdatePosition(1,500,600)" {
		t.Errorf("drag end must persist the live view's coordinates, got %v", m.calls)
	}
}

func TestConnectTemporalRejectionMakesNoRemoteCall(t *testing.T) {
	late := task(1, "alice", 10, 10)
	lateDue := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	late.DueDate = &lateDue
	early := task(2, "alice", 20, 20)
	earlyDue := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	early.DueDate = &earlyDue

	m := &mockAPI{tasks: []models.Task{late, early}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())
	m.calls = nil

	err := e.Connect(context.Background(), "1", "2")
	if !errors.Is(err, graph.ErrTemporalParadox) {
		t.Fatalf("expected ErrTemporalParadox, got %v", err)
	}
	if len(e.Edges()) != 0 {
		t.Error("rejected connection must not render an edge")
	}
	if got := m.callCount(); got != 0 {
		t.Errorf("rejected connection must not reach the network, got %v", m.calls)
	}
}

func TestConnectOptimisticWithoutRollback(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10), task(2, "alice", 20, 20)}, failDep: true}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	if err := e.Connect(context.Background(), "1", "2"); err != nil {
		t.Fatalf("accepted connection returned error: %v", err)
	}
	edges := e.Edges()
	if len(edges) != 1 {
		t.Fatalf("expected the optimistic edge to stay after remote failure, got %d", len(edges))
	}
	if edges[0].Source != "1" || edges[0].Target != "2" {
		t.Errorf("edge endpoints mismatch: %+v", edges[0])
	}
}

func TestConnectHubSkipsDependencyCreate(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10)}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())
	m.calls = nil

	if err := e.Connect(context.Background(), graph.HubID, "1"); err != nil {
		t.Fatalf("hub connection rejected: %v", err)
	}
	if len(e.Edges()) != 1 {
		t.Error("hub edge must render locally")
	}
	if got := m.callCount(); got != 0 {
		t.Errorf("hub edges have no dependency record, got calls %v", m.calls)
	}
}

func TestPinRollbackOnFailure(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10)}, failPin: true}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	err := e.TogglePin(context.Background(), 1)
	if err == nil {
		t.Fatal("failed pin confirmation must surface an error")
	}

	// The corrective refetch restored ground truth: unpinned.
	for _, tk := range e.Tasks() {
		if tk.ID == 1 && tk.Placement.Pinned {
			t.Error("pin flag must roll back after the corrective refetch")
		}
	}
	for _, n := range e.Nodes() {
		if n.ID == "1" && !n.Draggable {
			t.Error("draggable flag must roll back after the corrective refetch")
		}
	}
}

func TestPinOptimisticOnSuccess(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10)}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())
	m.calls = nil

	if err := e.TogglePin(context.Background(), 1); err != nil {
		t.Fatalf("pin toggle failed: %v", err)
	}

	m.mu.Lock()
	if len(m.calls) != 1 || m.calls[0] != "SetPinned(100,true)" {
		t.Errorf("expected one pin patch against the placement id, got %v", m.calls)
	}
	m.mu.Unlock()

	for _, n := range e.Nodes() {
		if n.ID == "1" && n.Draggable {
			t.Error("pinned node must lose draggability immediately")
		}
	}
}

func TestEpochGuardDropsStaleResponse(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10)}, gate: make(chan struct{})}
	e := newTestEngine(m)

	done := make(chan struct{})
	go func() {
		e.RefreshTasks(context.Background())
		close(done)
	}()

	// Logout while the fetch is in flight.
	time.Sleep(10 * time.Millisecond)
	e.Reset()
	close(m.gate)
	<-done

	if len(e.Tasks()) != 0 {
		t.Error("a response from before the reset must be dropped")
	}
	if len(e.Nodes()) != 1 {
		t.Error("node set must stay hub-only after a stale response")
	}
}

func TestConnectDimmingRecomputedOnRefresh(t *testing.T) {
	late := task(1, "alice", 10, 10)
	lateDue := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	late.DueDate = &lateDue

	m := &mockAPI{tasks: []models.Task{late}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())
	e.BeginConnect("1")

	// A new, temporally invalid task appears mid-gesture; the refresh
	// must dim it without the user re-grabbing the wire.
	early := task(2, "alice", 20, 20)
	earlyDue := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	early.DueDate = &earlyDue
	m.tasks = append(m.tasks, early)
	e.RefreshTasks(context.Background())

	for _, n := range e.Nodes() {
		if n.ID == "2" && n.Opacity != graph.DimmedOpacity {
			t.Errorf("new invalid target must be dimmed mid-gesture, opacity %v", n.Opacity)
		}
	}

	e.EndConnect()
	for _, n := range e.Nodes() {
		if n.Opacity != graph.FullOpacity {
			t.Errorf("node %s still dimmed after gesture end", n.ID)
		}
	}
}

func TestOpenTaskMarksUnreadAssignment(t *testing.T) {
	tk := task(1, "bob", 10, 10)
	tk.Assignments = []models.Assignment{{User: models.User{Username: "alice"}, IsRead: false}}
	m := &mockAPI{tasks: []models.Task{tk}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())
	m.calls = nil

	e.OpenTask(context.Background(), 1)

	m.mu.Lock()
	firstCall := ""
	if len(m.calls) > 0 {
		firstCall = m.calls[0]
	}
	m.mu.Unlock()
	if firstCall != "MarkTaskRead(1)" {
		t.Errorf("expected mark-read call first, got %q", firstCall)
	}

	// Already-read assignments stay silent.
	m.mu.Lock()
	m.tasks[0].Assignments[0].IsRead = true
	m.mu.Unlock()
	e.RefreshTasks(context.Background())

	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
	e.OpenTask(context.Background(), 1)
	if got := m.callCount(); got != 0 {
		t.Errorf("read assignment must not trigger a call, got %d", got)
	}
}

func TestPlaceFromInbox(t *testing.T) {
	tk := task(5, "bob", 0, 0)
	tk.Assignments = []models.Assignment{{User: models.User{Username: "alice"}}}
	m := &mockAPI{tasks: []models.Task{tk}}
	e := newTestEngine(m)
	e.RefreshTasks(context.Background())

	if len(e.Inbox()) != 1 {
		t.Fatal("task should start in the inbox")
	}
	m.calls = nil
	e.PlaceFromInbox(context.Background(), 5, 120.6, 80.2)

	m.mu.Lock()
	if len(m.calls) != 1 || m.calls[0] != "UpdatePosition(5,121,80)" {
		t.Errorf("expected rounded placement call, got %v", m.calls)
	}
	m.mu.Unlock()

	if len(e.Inbox()) != 0 {
		t.Error("placed task must leave the inbox immediately")
	}
	found := false
	for _, n := range e.Nodes() {
		if n.ID == "5" {
			found = true
			if n.X != 121 || n.Y != 80 {
				t.Errorf("placed node at (%v,%v)", n.X, n.Y)
			}
		}
	}
	if !found {
		t.Error("placed task must appear on the canvas immediately")
	}
}

func TestRefreshUsersKeepsLocalPresence(t *testing.T) {
	m := &mockAPI{users: []models.User{
		{Username: "alice", Status: models.StatusOffline},
		{Username: "bob", Status: models.StatusOnline},
	}}
	e := newTestEngine(m)

	e.SetStatus(context.Background(), models.StatusBusy)
	e.RefreshUsers(context.Background())

	for _, u := range e.Users() {
		if u.Username == "alice" && u.Status != models.StatusBusy {
			t.Errorf("server echo overwrote local presence: %s", u.Status)
		}
		if u.Username == "bob" && u.Status != models.StatusOnline {
			t.Errorf("colleague status mangled: %s", u.Status)
		}
	}
}

func TestCreateTaskSeedsRoundedPositionThenRefreshes(t *testing.T) {
	m := &mockAPI{}
	e := newTestEngine(m)

	if err := e.CreateTask(context.Background(), "ship release notes", 10.6, 20.4); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	m.mu.Lock()
	calls := append([]string(nil), m.calls...)
	m.mu.Unlock()

	if len(calls) < 2 {
		t.Fatalf("expected create followed by refresh, got %v", calls)
	}
	if calls[0] != "CreateTask(ship release notes,11,20)" {
		t.Errorf("unexpected create call %q", calls[0])
	}
	if calls[1] != "ListTasks" {
		t.Errorf("expected refresh after create, got %q", calls[1])
	}
}

package graph

import (
	"testing"
	"time"

	"github.com/fentz26/tasknet/internal/models"
)

func activeTask(id int, creator string, x, y float64) models.Task {
	return models.Task{
		ID:        id,
		Title:     "Task",
		Status:    models.TaskStatusActive,
		Priority:  models.PriorityNormal,
		CreatedBy: models.User{Username: creator},
		Placement: models.Placement{ID: id * 100, X: x, Y: y},
	}
}

func withAssignment(t models.Task, username string, completed, failed bool) models.Task {
	t.Assignments = append(t.Assignments, models.Assignment{
		User:        models.User{Username: username},
		IsCompleted: completed,
		IsFailed:    failed,
	})
	return t
}

func TestMergeHubAlwaysPresent(t *testing.T) {
	nodes := Merge(nil, nil, "alice")
	if len(nodes) != 1 {
		t.Fatalf("expected only the hub, got %d nodes", len(nodes))
	}
	hub := nodes[0]
	if !hub.IsHub() {
		t.Errorf("first node is not the hub: %q", hub.ID)
	}
	if hub.Draggable || hub.Selected {
		t.Error("hub must be non-draggable and non-selectable")
	}
	if hub.X != 0 || hub.Y != 0 {
		t.Errorf("hub must sit at origin, got (%v,%v)", hub.X, hub.Y)
	}
	if hub.ZIndex >= 0 {
		t.Errorf("hub must stack behind task nodes, got z=%d", hub.ZIndex)
	}

	// Still present, still first, after a merge with tasks.
	nodes = Merge(nodes, []models.Task{activeTask(1, "alice", 10, 20)}, "alice")
	if !nodes[0].IsHub() {
		t.Error("hub must stay first after merging tasks")
	}
}

func TestMergeIdempotence(t *testing.T) {
	tasks := []models.Task{
		activeTask(1, "alice", 10, 20),
		withAssignment(activeTask(2, "bob", 30, 40), "alice", false, false),
	}

	first := Merge(nil, tasks, "alice")
	first[1].Selected = true
	second := Merge(first, tasks, "alice")
	third := Merge(second, tasks, "alice")

	if len(second) != len(third) {
		t.Fatalf("node count changed between merges: %d vs %d", len(second), len(third))
	}
	for i := range second {
		a, b := second[i], third[i]
		if a.ID != b.ID || a.X != b.X || a.Y != b.Y || a.Selected != b.Selected || a.Draggable != b.Draggable {
			t.Errorf("node %s changed across identical merges: %+v vs %+v", a.ID, a, b)
		}
	}
}

func TestMergePositionCarryOver(t *testing.T) {
	task := activeTask(7, "alice", 0, 0)
	prev := []Node{HubNode(), {ID: "7", X: 50, Y: 50, Opacity: FullOpacity}}

	nodes := Merge(prev, []models.Task{task}, "alice")
	if len(nodes) != 2 {
		t.Fatalf("expected hub + 1 task, got %d nodes", len(nodes))
	}
	if nodes[1].X != 50 || nodes[1].Y != 50 {
		t.Errorf("previous position must win over persisted placement, got (%v,%v)", nodes[1].X, nodes[1].Y)
	}
}

func TestMergeSelectionCarryOver(t *testing.T) {
	tasks := []models.Task{
		activeTask(1, "alice", 10, 10),
		activeTask(2, "alice", 20, 20),
	}

	nodes := Merge(nil, tasks, "alice")
	for i := range nodes {
		if nodes[i].ID == "1" {
			nodes[i].Selected = true
		}
	}

	merged := Merge(nodes, tasks, "alice")
	for _, n := range merged {
		switch n.ID {
		case "1":
			if !n.Selected {
				t.Error("selection must carry over for surviving nodes")
			}
		case "2":
			if n.Selected {
				t.Error("unselected node gained selection")
			}
		}
	}

	// A newly appearing node defaults to unselected.
	tasks = append(tasks, activeTask(3, "alice", 30, 30))
	merged = Merge(merged, tasks, "alice")
	for _, n := range merged {
		if n.ID == "3" && n.Selected {
			t.Error("new node must default to unselected")
		}
	}
}

func TestMergeDraggableFollowsPin(t *testing.T) {
	task := activeTask(4, "alice", 10, 10)
	nodes := Merge(nil, []models.Task{task}, "alice")
	if !nodes[1].Draggable {
		t.Error("unpinned task must be draggable")
	}

	// Pin flag always comes from the fresh task, not the previous node.
	task.Placement.Pinned = true
	nodes = Merge(nodes, []models.Task{task}, "alice")
	if nodes[1].Draggable {
		t.Error("pinned task must not be draggable")
	}
}

func TestMergeVisibility(t *testing.T) {
	done := activeTask(1, "alice", 10, 10)
	done.Status = models.TaskStatusCompleted

	myPartDone := withAssignment(activeTask(2, "bob", 10, 10), "alice", true, false)
	myPartFailed := withAssignment(activeTask(3, "bob", 10, 10), "alice", false, true)
	othersOrigin := withAssignment(activeTask(4, "bob", 0, 0), "alice", false, false)
	placed := withAssignment(activeTask(5, "bob", 60, 60), "alice", false, false)

	tasks := []models.Task{done, myPartDone, myPartFailed, othersOrigin, placed}
	nodes := Merge(nil, tasks, "alice")

	if len(nodes) != 2 {
		t.Fatalf("expected hub + 1 visible task, got %d nodes", len(nodes))
	}
	if nodes[1].ID != "5" {
		t.Errorf("wrong surviving node: %s", nodes[1].ID)
	}
}

func TestMergeCarriesFullPayload(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	task := activeTask(9, "alice", 15, 25)
	task.DueDate = &due
	task.Description = "wire the panels"

	nodes := Merge(nil, []models.Task{task}, "alice")
	got := nodes[1].Task
	if got == nil {
		t.Fatal("node must carry the full task payload")
	}
	if got.Description != "wire the panels" || got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("payload mismatch: %+v", got)
	}
}

func TestInboxVisibilityAsymmetry(t *testing.T) {
	task := withAssignment(activeTask(6, "alice", 0, 0), "bob", false, false)
	tasks := []models.Task{task}

	// Creator sees the origin task as a placed canvas node.
	creatorNodes := Merge(nil, tasks, "alice")
	if len(creatorNodes) != 2 {
		t.Errorf("creator must see the origin task on canvas, got %d nodes", len(creatorNodes))
	}
	if len(Inbox(tasks, "alice")) != 0 {
		t.Error("creator must not see their own task in the inbox")
	}

	// An assignee sees it in the inbox tray instead.
	assigneeNodes := Merge(nil, tasks, "bob")
	if len(assigneeNodes) != 1 {
		t.Errorf("assignee must not see the unplaced task on canvas, got %d nodes", len(assigneeNodes))
	}
	inbox := Inbox(tasks, "bob")
	if len(inbox) != 1 || inbox[0].ID != 6 {
		t.Errorf("assignee inbox mismatch: %+v", inbox)
	}
}

func TestInboxExcludesTerminalTasks(t *testing.T) {
	done := activeTask(1, "alice", 0, 0)
	done.Status = models.TaskStatusCompleted
	failed := activeTask(2, "alice", 0, 0)
	failed.Status = models.TaskStatusFailed

	if got := Inbox([]models.Task{done, failed}, "bob"); len(got) != 0 {
		t.Errorf("terminal tasks must not appear in the inbox: %+v", got)
	}
}

func TestBuildEdgesWholesale(t *testing.T) {
	deps := []models.Dependency{
		{ID: 1, SourceTask: 1, TargetTask: 2},
		{ID: 2, SourceTask: 2, TargetTask: 3},
	}
	edges := BuildEdges(deps)
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	if edges[0].ID != "e1-2" || edges[0].Source != "1" || edges[0].Target != "2" {
		t.Errorf("edge projection mismatch: %+v", edges[0])
	}

	// A shrunken fetch replaces the set entirely.
	edges = BuildEdges(deps[:1])
	if len(edges) != 1 {
		t.Errorf("edge set must be rebuilt wholesale, got %d edges", len(edges))
	}
}

func TestPlacedActiveCount(t *testing.T) {
	tasks := []models.Task{
		activeTask(1, "alice", 10, 10),
		activeTask(2, "alice", 0, 0), // origin: not "in space"
		withAssignment(activeTask(3, "bob", 30, 30), "alice", true, false),
	}
	if got := PlacedActiveCount(tasks, "alice"); got != 1 {
		t.Errorf("expected 1 placed active task, got %d", got)
	}
}

package graph

import "github.com/fentz26/tasknet/internal/models"

// Merge reconciles a freshly fetched task list against the previous node
// snapshot and returns the new node set. The hub is always present and
// always first. For each visible task:
//
//   - position comes from the previous node with the same id when one
//     exists, so a fetch racing a pending drag does not make the node
//     jump back to its persisted coordinates;
//   - the selection flag carries over the same way, defaulting to
//     unselected for newly appeared nodes;
//   - draggable is the inverse of the placement pin flag, which is
//     always read from the fresh task, not the previous node.
//
// Merge never mutates prev or tasks.
func Merge(prev []Node, tasks []models.Task, viewer string) []Node {
	prevPos := make(map[string]Node, len(prev))
	for _, n := range prev {
		prevPos[n.ID] = n
	}

	nodes := make([]Node, 0, len(tasks)+1)
	nodes = append(nodes, HubNode())

	for i := range tasks {
		task := tasks[i]
		if !VisibleOnCanvas(&task, viewer) {
			continue
		}

		id := NodeID(task.ID)
		node := Node{
			ID:        id,
			X:         task.Placement.X,
			Y:         task.Placement.Y,
			Draggable: !task.Placement.Pinned,
			Opacity:   FullOpacity,
			Task:      &task,
		}
		if old, ok := prevPos[id]; ok {
			node.X = old.X
			node.Y = old.Y
			node.Selected = old.Selected
		}
		nodes = append(nodes, node)
	}

	return nodes
}

// VisibleOnCanvas decides whether a task appears as a graph node for the
// viewing user. A task shows iff it is active, the viewer's own
// assignment (if any) is neither completed nor failed, and it has a real
// placement. An origin placement counts as placed only for the task's
// creator; for everyone else origin means the task is still in the inbox
// tray.
func VisibleOnCanvas(t *models.Task, viewer string) bool {
	if t.Status != models.TaskStatusActive {
		return false
	}
	if a := t.AssignmentFor(viewer); a != nil && (a.IsCompleted || a.IsFailed) {
		return false
	}
	if t.Placement.AtOrigin() {
		return t.CreatedBy.Username == viewer
	}
	return true
}

// PlacedActiveCount counts the viewer's visible tasks that sit away from
// the origin. Feeds the network panel statistics.
func PlacedActiveCount(tasks []models.Task, viewer string) int {
	count := 0
	for i := range tasks {
		if VisibleOnCanvas(&tasks[i], viewer) && !tasks[i].Placement.AtOrigin() {
			count++
		}
	}
	return count
}

package graph

import "github.com/fentz26/tasknet/internal/models"

// Inbox returns the tasks that belong in the viewer's inbox tray: never
// placed (still at origin), not terminal, and created by someone else.
// Tasks the viewer created stay on the canvas even at origin, mirroring
// the visibility asymmetry in VisibleOnCanvas.
func Inbox(tasks []models.Task, viewer string) []models.Task {
	var out []models.Task
	for i := range tasks {
		t := tasks[i]
		if !t.Placement.AtOrigin() {
			continue
		}
		if t.Status == models.TaskStatusCompleted || t.Status == models.TaskStatusFailed {
			continue
		}
		if t.CreatedBy.Username == viewer {
			continue
		}
		out = append(out, t)
	}
	return out
}

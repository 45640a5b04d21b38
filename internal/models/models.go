// Package models defines the core domain types for tasknet.
package models

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityUrgent TaskPriority = "urgent"
)

// UserStatus is the presence state of a user.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusBusy    UserStatus = "busy"
	StatusAway    UserStatus = "away"
	StatusOffline UserStatus = "offline"
)

// User is a member of the workspace.
type User struct {
	ID          int        `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name,omitempty"`
	Department  string     `json:"department,omitempty"`
	Title       string     `json:"title,omitempty"`
	Status      UserStatus `json:"status,omitempty"`
}

// Assignment links a task to a user. Each assignment is independently
// completable; a task is eligible for archival only when every assignment
// is completed or the due date has elapsed.
type Assignment struct {
	ID          int    `json:"id"`
	User        User   `json:"user"`
	IsCompleted bool   `json:"is_completed"`
	IsRead      bool   `json:"is_read"`
	IsFailed    bool   `json:"is_failed"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Attachment is a file attached to a task.
type Attachment struct {
	ID         int    `json:"id"`
	File       string `json:"file"`
	FileType   string `json:"file_type"` // "instruction" or "delivery"
	UploadedBy User   `json:"uploaded_by"`
	CreatedAt  string `json:"created_at"`
}

// Placement is the persisted canvas record for a task: coordinates plus
// the pin flag that disables dragging. Placement is a required field on
// Task; the API layer substitutes DefaultPlacement when the service
// reports none.
type Placement struct {
	ID     int     `json:"id"`
	X      float64 `json:"position_x"`
	Y      float64 `json:"position_y"`
	Pinned bool    `json:"is_pinned"`
}

// DefaultPlacement returns the origin, unpinned placement used when a
// task has never been placed.
func DefaultPlacement() Placement {
	return Placement{}
}

// AtOrigin reports whether the placement sits at (0,0). Origin is the
// "unplaced / inbox" marker for assignees; the creator sees an origin
// placement as a normally placed node.
func (p Placement) AtOrigin() bool {
	return p.X == 0 && p.Y == 0
}

// Task is a unit of work in the graph.
type Task struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date"`
	CreatedBy   User         `json:"created_by"`
	Assignments []Assignment `json:"assignments"`
	Attachments []Attachment `json:"attachments"`
	Placement   Placement    `json:"node_data"`
}

// DueUnix returns the due date in unix milliseconds, or 0 when the task
// carries no deadline. Zero means "no temporal constraint" to the
// connection validator.
func (t *Task) DueUnix() int64 {
	if t.DueDate == nil {
		return 0
	}
	return t.DueDate.UnixMilli()
}

// AssignmentFor returns the assignment belonging to username, if any.
func (t *Task) AssignmentFor(username string) *Assignment {
	for i := range t.Assignments {
		if t.Assignments[i].User.Username == username {
			return &t.Assignments[i]
		}
	}
	return nil
}

// Dependency is an ordered pair: the source task should finish before
// the target task.
type Dependency struct {
	ID         int `json:"id"`
	SourceTask int `json:"source_task"`
	TargetTask int `json:"target_task"`
}

// Notification is a workspace event addressed to the current user.
type Notification struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"notification_type"`
	TaskID    *int   `json:"task"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// Comment is a chat message on a task.
type Comment struct {
	ID          int    `json:"id"`
	Username    string `json:"user_username"`
	DisplayName string `json:"user_display_name"`
	Content     string `json:"content"`
	CreatedAt   string `json:"created_at"`
	IsMine      bool   `json:"is_me"`
}

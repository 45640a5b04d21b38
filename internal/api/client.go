// Package api wraps HTTP calls to the remote task-graph service. The
// service is an opaque collaborator: every method here maps onto one
// endpoint, decodes at the boundary and hands back domain types.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fentz26/tasknet/internal/models"
	"github.com/google/uuid"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the tasknet API.
type Client struct {
	baseURL    string
	token      string
	clientID   string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout. The client ID is a
// per-process identity sent with every request so the service can tell
// concurrent clients apart.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:  baseURL,
		clientID: uuid.New().String(),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// SetToken installs the auth token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges credentials for an auth token and the tenant code of
// the workspace the user belongs to.
func (c *Client) Login(ctx context.Context, username, password string) (token, tenant string, err error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	resp, err := c.do(ctx, http.MethodPost, "/users/login/", body)
	if err != nil {
		return "", "", err
	}

	var result struct {
		Token  string `json:"token"`
		Tenant string `json:"tenant_code"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", "", err
	}
	return result.Token, result.Tenant, nil
}

// ListTasks fetches the full task list. A task the service reports with
// no node_data comes back with the default origin placement; callers
// never see a missing placement.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tasks/", nil)
	if err != nil {
		return nil, err
	}

	var wire []struct {
		models.Task
		NodeData *models.Placement `json:"node_data"`
	}
	if err := json.Unmarshal(resp, &wire); err != nil {
		return nil, err
	}

	tasks := make([]models.Task, len(wire))
	for i, w := range wire {
		tasks[i] = w.Task
		if w.NodeData != nil {
			tasks[i].Placement = *w.NodeData
		} else {
			tasks[i].Placement = models.DefaultPlacement()
		}
	}
	return tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id int) (*models.Task, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d/", id), nil)
	if err != nil {
		return nil, err
	}

	var wire struct {
		models.Task
		NodeData *models.Placement `json:"node_data"`
	}
	if err := json.Unmarshal(resp, &wire); err != nil {
		return nil, err
	}
	task := wire.Task
	if wire.NodeData != nil {
		task.Placement = *wire.NodeData
	} else {
		task.Placement = models.DefaultPlacement()
	}
	return &task, nil
}

// CreateTaskRequest is the payload for CreateTask. X and Y seed the
// initial placement when the task is created from a canvas position.
type CreateTaskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date,omitempty"`
	Assignees   []int               `json:"assignees,omitempty"`
	X           int                 `json:"position_x"`
	Y           int                 `json:"position_y"`
}

// CreateTask creates a new task and returns its id.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (int, error) {
	resp, err := c.do(ctx, http.MethodPost, "/tasks/", req)
	if err != nil {
		return 0, err
	}

	var result struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, err
	}
	return result.ID, nil
}

// ListDependencies fetches all dependency records.
func (c *Client) ListDependencies(ctx context.Context) ([]models.Dependency, error) {
	resp, err := c.do(ctx, http.MethodGet, "/dependencies/", nil)
	if err != nil {
		return nil, err
	}

	var deps []models.Dependency
	if err := json.Unmarshal(resp, &deps); err != nil {
		return nil, err
	}
	return deps, nil
}

// CreateDependency persists a source-precedes-target dependency.
func (c *Client) CreateDependency(ctx context.Context, sourceTask, targetTask int) error {
	body := map[string]int{
		"source_task": sourceTask,
		"target_task": targetTask,
	}
	_, err := c.do(ctx, http.MethodPost, "/dependencies/", body)
	return err
}

// UpdatePosition persists a task's canvas coordinates. Coordinates are
// integers; callers round before calling.
func (c *Client) UpdatePosition(ctx context.Context, taskID, x, y int) error {
	body := map[string]int{"x": x, "y": y}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/update_position/", taskID), body)
	return err
}

// SetPinned updates the pin flag on a placement record. Note the
// resource is the placement (node), not the task.
func (c *Client) SetPinned(ctx context.Context, placementID int, pinned bool) error {
	body := map[string]bool{"is_pinned": pinned}
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/nodes/%d/", placementID), body)
	return err
}

// CheckDeadlines triggers the server-side deadline sweep. Fire-and-forget.
func (c *Client) CheckDeadlines(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/tasks/check_deadlines/", nil)
	return err
}

// MarkTaskRead marks the viewer's assignment on a task as read.
func (c *Client) MarkTaskRead(ctx context.Context, taskID int) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/mark_as_read/", taskID), nil)
	return err
}

// ListUsers fetches the colleague/presence list.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users/", nil)
	if err != nil {
		return nil, err
	}

	var users []models.User
	if err := json.Unmarshal(resp, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateStatus publishes the viewer's presence state.
func (c *Client) UpdateStatus(ctx context.Context, status models.UserStatus) error {
	body := map[string]models.UserStatus{"status": status}
	_, err := c.do(ctx, http.MethodPost, "/users/update_status/", body)
	return err
}

// ListNotifications fetches the viewer's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	resp, err := c.do(ctx, http.MethodGet, "/notifications/", nil)
	if err != nil {
		return nil, err
	}

	var notifs []models.Notification
	if err := json.Unmarshal(resp, &notifs); err != nil {
		return nil, err
	}
	return notifs, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/notifications/%d/mark_read/", id), nil)
	return err
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/notifications/mark_all_read/", nil)
	return err
}

// ClearNotifications deletes every notification.
func (c *Client) ClearNotifications(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/notifications/clear_all/", nil)
	return err
}

// ListComments fetches the chat thread of a task.
func (c *Client) ListComments(ctx context.Context, taskID int) ([]models.Comment, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/comments/?task=%d", taskID), nil)
	if err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := json.Unmarshal(resp, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment posts a chat message on a task.
func (c *Client) CreateComment(ctx context.Context, taskID int, content string) error {
	body := map[string]interface{}{
		"task":    taskID,
		"content": content,
	}
	_, err := c.do(ctx, http.MethodPost, "/comments/", body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, data interface{}) ([]byte, error) {
	var reqBody io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", c.clientID)
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fentz26/tasknet/internal/api"
	"github.com/fentz26/tasknet/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskCommentCmd = &cobra.Command{
	Use:   "comment [task-id] [text]",
	Short: "Comment on a task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskComment,
}

var (
	taskTitle    string
	taskDesc     string
	taskPriority string
	taskDue      string
	taskStatus   string
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskCommentCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "normal", "Priority (low, normal, urgent)")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (RFC3339, e.g. 2026-09-01T17:00:00Z)")
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (active, completed, failed)")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	client, _, err := authedClient()
	if err != nil {
		return err
	}

	req := api.CreateTaskRequest{
		Title:       taskTitle,
		Description: taskDesc,
		Priority:    models.TaskPriority(taskPriority),
	}
	if taskDue != "" {
		due, err := time.Parse(time.RFC3339, taskDue)
		if err != nil {
			return fmt.Errorf("invalid --due: %w", err)
		}
		req.DueDate = &due
	}

	id, err := client.CreateTask(context.Background(), req)
	if err != nil {
		return err
	}

	fmt.Printf("Created task %d\n", id)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	client, creds, err := authedClient()
	if err != nil {
		return err
	}

	tasks, err := client.ListTasks(context.Background())
	if err != nil {
		return err
	}

	if taskStatus != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == taskStatus {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE\tPOSITION")
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02 15:04")
		}
		pos := fmt.Sprintf("(%.0f,%.0f)", t.Placement.X, t.Placement.Y)
		if t.Placement.AtOrigin() && t.CreatedBy.Username != creds.Username {
			pos = "inbox"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, truncate(t.Title, 40), t.Status, t.Priority, due, pos)
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	client, _, err := authedClient()
	if err != nil {
		return err
	}

	var id int
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}

	task, err := client.GetTask(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:          %d\n", task.ID)
	fmt.Printf("Title:       %s\n", task.Title)
	fmt.Printf("Description: %s\n", task.Description)
	fmt.Printf("Status:      %s\n", task.Status)
	fmt.Printf("Priority:    %s\n", task.Priority)
	if task.DueDate != nil {
		fmt.Printf("Due:         %s\n", task.DueDate.Format(time.RFC1123))
	}
	fmt.Printf("Creator:     %s\n", task.CreatedBy.Username)
	fmt.Printf("Position:    (%.0f,%.0f)", task.Placement.X, task.Placement.Y)
	if task.Placement.Pinned {
		fmt.Print("  [pinned]")
	}
	fmt.Println()
	for _, asg := range task.Assignments {
		state := "open"
		switch {
		case asg.IsCompleted:
			state = "completed"
		case asg.IsFailed:
			state = "failed"
		}
		fmt.Printf("Assignee:    %s (%s)\n", asg.User.Username, state)
	}

	comments, err := client.ListComments(context.Background(), id)
	if err == nil && len(comments) > 0 {
		fmt.Println("\nComments:")
		for _, c := range comments {
			fmt.Printf("  [%s] %s: %s\n", c.CreatedAt, c.Username, truncate(c.Content, 120))
		}
	}

	return nil
}

func runTaskComment(cmd *cobra.Command, args []string) error {
	client, _, err := authedClient()
	if err != nil {
		return err
	}

	var id int
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}

	if err := client.CreateComment(context.Background(), id, args[1]); err != nil {
		return err
	}
	fmt.Println("Comment posted")
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

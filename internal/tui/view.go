package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/tasknet/internal/graph"
	"github.com/fentz26/tasknet/internal/models"
)

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	if a.showDashboard {
		return a.renderDashboard()
	}

	var body string
	switch a.mode {
	case "canvas":
		body = a.renderCanvas()
	case "create":
		body = a.renderCreate()
	case "detail":
		body = a.renderDetail()
	case "inbox":
		body = a.renderInbox()
	case "team":
		body = a.renderTeam()
	case "notifications":
		body = a.renderNotifications()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		body,
		a.renderStatusBar(),
	)
}

func (a *App) renderHeader() string {
	title := titleStyle.Render("tasknet")
	who := helpStyle.Render("@" + a.engine.Viewer())

	badge := ""
	if n := a.engine.UnreadCount(); n > 0 {
		badge = lipgloss.NewStyle().Foreground(accentColor).Render(fmt.Sprintf("  %d unread", n))
	}
	tray := ""
	if len(a.inbox) > 0 {
		tray = lipgloss.NewStyle().Foreground(warningColor).Render(fmt.Sprintf("  inbox: %d", len(a.inbox)))
	}
	return title + " " + who + badge + tray
}

func (a *App) renderCanvas() string {
	nodes := a.taskNodes()
	if len(nodes) == 0 {
		return helpStyle.Render("\n  no tasks on the canvas — press i for the inbox, N to create one\n")
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, n := range nodes {
		b.WriteString(a.renderNodeRow(i, n))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("  %d dependencies", len(a.edges))))
	b.WriteString("\n")
	return b.String()
}

func (a *App) renderNodeRow(i int, n graph.Node) string {
	cursor := "  "
	if i == a.cursor {
		cursor = "▸ "
	}

	mark := "[ ]"
	if n.Selected {
		mark = "[x]"
	}

	pin := "  "
	if n.Task != nil && n.Task.Placement.Pinned {
		pin = pinStyle.Render("⚲ ")
	}

	title := "?"
	due := ""
	unread := ""
	if n.Task != nil {
		title = n.Task.Title
		if n.Task.DueDate != nil {
			due = helpStyle.Render("  due " + n.Task.DueDate.Format("Jan 02 15:04"))
		}
		if asg := n.Task.AssignmentFor(a.engine.Viewer()); asg != nil && !asg.IsRead {
			unread = lipgloss.NewStyle().Foreground(accentColor).Render(" ●")
		}
	}

	pos := helpStyle.Render(fmt.Sprintf("  (%.0f,%.0f)", n.X, n.Y))

	line := fmt.Sprintf("%s%s %s%s%s%s%s", cursor, mark, pin, title, unread, pos, due)

	switch {
	case n.ID == a.grabbed:
		return selectedStyle.Render(line + "  ⇕")
	case n.ID == a.connecting:
		return lipgloss.NewStyle().Foreground(primaryColor).Render(line + "  ⤳")
	case n.Opacity < graph.FullOpacity:
		return dimmedStyle.Render(line)
	case n.Selected:
		return lipgloss.NewStyle().Foreground(primaryColor).Render(line)
	default:
		return line
	}
}

func (a *App) renderCreate() string {
	return panelStyle.Render("New task\n\n" + a.input.View() + "\n\n" + helpStyle.Render("enter: create · esc: cancel"))
}

func (a *App) renderDetail() string {
	t := a.current
	if t == nil {
		return helpStyle.Render("\n  nothing open\n")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(t.Title))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  Status:   %s\n", renderTaskStatus(t.Status)))
	b.WriteString(fmt.Sprintf("  Priority: %s\n", renderPriority(t.Priority)))
	if t.DueDate != nil {
		b.WriteString(fmt.Sprintf("  Due:      %s\n", t.DueDate.Format("Mon Jan 02 15:04")))
	}
	b.WriteString(fmt.Sprintf("  Creator:  %s\n", t.CreatedBy.Username))
	if len(t.Assignments) > 0 {
		b.WriteString("  Assignees:\n")
		for _, asg := range t.Assignments {
			state := ""
			switch {
			case asg.IsCompleted:
				state = lipgloss.NewStyle().Foreground(successColor).Render(" ✓")
			case asg.IsFailed:
				state = lipgloss.NewStyle().Foreground(errorColor).Render(" ✗")
			}
			b.WriteString(fmt.Sprintf("    %s%s\n", asg.User.Username, state))
		}
	}
	if t.Description != "" {
		b.WriteString("\n  " + t.Description + "\n")
	}
	return panelStyle.Render(b.String())
}

func (a *App) renderInbox() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Inbox"))
	b.WriteString("\n\n")
	if len(a.inbox) == 0 {
		b.WriteString(helpStyle.Render("  nothing waiting\n"))
		return b.String()
	}
	for i, t := range a.inbox {
		cursor := "  "
		if i == a.inboxCursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%s  %s", cursor, t.Title, helpStyle.Render("from "+t.CreatedBy.Username))
		if i == a.inboxCursor {
			line = lipgloss.NewStyle().Foreground(primaryColor).Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("  enter: place on canvas · esc: back") + "\n")
	return b.String()
}

func (a *App) renderTeam() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Team"))
	b.WriteString("\n\n")
	for _, u := range a.users {
		name := u.Username
		if u.DisplayName != "" {
			name = u.DisplayName
		}
		b.WriteString(fmt.Sprintf("  %s %s  %s\n", renderPresence(u.Status), name, helpStyle.Render(u.Title)))
	}
	if len(a.users) == 0 {
		b.WriteString(helpStyle.Render("  nobody here yet\n"))
	}
	return b.String()
}

func (a *App) renderNotifications() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Notifications"))
	b.WriteString("\n\n")
	if len(a.notifs) == 0 {
		b.WriteString(helpStyle.Render("  all clear\n"))
		return b.String()
	}
	for i, n := range a.notifs {
		cursor := "  "
		if i == a.notifCursor {
			cursor = "▸ "
		}
		dot := "  "
		if !n.IsRead {
			dot = lipgloss.NewStyle().Foreground(accentColor).Render("● ")
		}
		line := cursor + dot + n.Title
		if n.Message != "" {
			line += helpStyle.Render("  " + n.Message)
		}
		if n.IsRead {
			line = dimmedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("  enter: mark read · a: read all · x: clear · esc: back") + "\n")
	return b.String()
}

func (a *App) renderDashboard() string {
	placed := graph.PlacedActiveCount(a.engine.Tasks(), a.engine.Viewer())
	urgent := 0
	for _, n := range a.taskNodes() {
		if n.Task != nil && n.Task.Priority == models.PriorityUrgent {
			urgent++
		}
	}
	content := titleStyle.Render("Daily overview") + "\n\n" +
		fmt.Sprintf("  %d tasks placed on your canvas\n", placed) +
		fmt.Sprintf("  %d urgent\n", urgent) +
		fmt.Sprintf("  %d waiting in the inbox\n", len(a.inbox)) +
		fmt.Sprintf("  %d unread notifications\n", a.engine.UnreadCount()) +
		"\n" + helpStyle.Render("  press any key to continue")

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
		panelStyle.Render(content))
}

func (a *App) renderStatusBar() string {
	var help string
	switch {
	case a.grabbed != "":
		help = "arrows: move · enter/esc: drop"
	case a.connecting != "":
		help = "↑/↓: pick target · enter: connect · esc: cancel"
	case a.mode == "canvas":
		help = "space: select · g: grab · c: connect · p: pin · i: inbox · n: notifs · t: team · N: new · q: quit"
	default:
		help = "esc: back · q: quit"
	}

	msg := a.message
	if msg != "" {
		msg += "  ·  "
	}
	return statusBarStyle.Width(maxInt(0, a.width)).Render(msg + help)
}

func renderTaskStatus(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusCompleted:
		return lipgloss.NewStyle().Foreground(successColor).Render(string(s))
	case models.TaskStatusFailed:
		return lipgloss.NewStyle().Foreground(errorColor).Render(string(s))
	default:
		return string(s)
	}
}

func renderPriority(p models.TaskPriority) string {
	switch p {
	case models.PriorityUrgent:
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render(string(p))
	case models.PriorityLow:
		return helpStyle.Render(string(p))
	default:
		return string(p)
	}
}

func renderPresence(s models.UserStatus) string {
	switch s {
	case models.StatusOnline:
		return lipgloss.NewStyle().Foreground(successColor).Render("●")
	case models.StatusBusy:
		return lipgloss.NewStyle().Foreground(errorColor).Render("●")
	case models.StatusAway:
		return lipgloss.NewStyle().Foreground(warningColor).Render("●")
	default:
		return dimmedStyle.Render("○")
	}
}

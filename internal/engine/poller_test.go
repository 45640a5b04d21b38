package engine

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/fentz26/tasknet/internal/models"
)

func TestTickRefreshOrder(t *testing.T) {
	m := &mockAPI{tasks: []models.Task{task(1, "alice", 10, 10)}}
	e := newTestEngine(m)
	p := NewPoller(e, 0)

	p.Tick(context.Background())

	want := []string{"ListUsers", "ListNotifications", "CheckDeadlines", "ListTasks"}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), m.calls)
	}
	for i := range want {
		if m.calls[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, m.calls[i], want[i])
		}
	}
}

func TestTickSwallowsFailures(t *testing.T) {
	m := &mockAPI{failTasks: true}
	e := newTestEngine(m)
	p := NewPoller(e, 0)

	// Must not panic and must still attempt every phase.
	p.Tick(context.Background())
	want := 4
	if got := m.callCount(); got != want {
		t.Errorf("expected %d best-effort calls, got %d", want, got)
	}
}

func TestPollerStartStop(t *testing.T) {
	m := &mockAPI{}
	e := newTestEngine(m)
	e.SetLogger(log.New(io.Discard, "", 0))
	p := NewPoller(e, 10*time.Millisecond)

	p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if m.callCount() == 0 {
		t.Error("poller never ticked")
	}

	// No further calls after Stop returns.
	count := m.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := m.callCount(); got != count {
		t.Errorf("poller ticked after Stop: %d -> %d", count, got)
	}
}

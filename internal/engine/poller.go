package engine

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the fixed background refresh period.
const DefaultPollInterval = 2 * time.Second

// Poller drives the background refresh loop: presence, notifications,
// the server-side deadline sweep and a task refetch, every interval.
// The timer keeps ticking while the user drags or rubber-band selects,
// but the tick body is skipped entirely so the merge cannot fight the
// in-flight gesture. Each tick is independent and best-effort; there is
// no backoff and no retry queue.
type Poller struct {
	engine   *Engine
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller for the engine. A zero interval means
// DefaultPollInterval.
func NewPoller(e *Engine, interval time.Duration) *Poller {
	if interval == 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		engine:   e,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the refresh loop. Called once on authentication.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.loop()
	p.engine.logger.Println("Background refresh started")
}

// Stop tears the loop down. Outstanding remote calls are not aborted;
// late responses are dropped by the engine's epoch guard.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
	p.engine.logger.Println("Background refresh stopped")
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Tick(p.ctx)
		}
	}
}

// Tick runs one refresh cycle. Exported so tests and the TUI can drive
// cycles directly.
func (p *Poller) Tick(ctx context.Context) {
	if p.engine.Suspended() {
		return
	}
	p.engine.RefreshUsers(ctx)
	p.engine.RefreshNotifications(ctx)
	p.engine.SweepDeadlines(ctx)
	p.engine.RefreshTasks(ctx)
}

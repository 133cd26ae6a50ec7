package clock

import (
	"sync"
	"time"

	"attendpanel/internal/domain/window"
)

// Clock drives a registration window's status label. It owns a single
// cancellable timer handle and reschedules itself at the adaptive cadence
// the window package derives; once the status is terminal the timer stops
// on its own. One Clock exists per mounted view, never a package-level
// timer, so multiple views can coexist without drifting schedules.
type Clock struct {
	mu       sync.Mutex
	start    *time.Time
	deadline *time.Time
	onTick   func(window.Status)
	now      func() time.Time
	timer    *time.Timer
	running  bool
}

// Options tunes a Clock.
type Options struct {
	Now func() time.Time // injectable for testing
}

// New creates a Clock for the given window boundaries. onTick is the
// caller-supplied render callback, invoked once per recomputation.
// PRE: onTick is non-nil
func New(start, deadline *time.Time, onTick func(window.Status), opts Options) *Clock {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Clock{start: start, deadline: deadline, onTick: onTick, now: now}
}

// Start begins the self-rescheduling tick loop. Calling Start on a
// running Clock is a no-op; there are never parallel ticks for one
// instance.
func (c *Clock) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()
	c.tick()
}

// Stop cancels the pending tick. Idempotent; safe to call from view
// unmount paths at any tick boundary.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Running reports whether the tick loop is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Status computes the window status at this instant without touching the
// tick loop.
func (c *Clock) Status() window.Status {
	return window.At(c.now(), c.start, c.deadline)
}

// tick recomputes the status, notifies the caller, and either reschedules
// at the new cadence or stops at a terminal status.
func (c *Clock) tick() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	status := window.At(c.now(), c.start, c.deadline)
	if status.NextRefresh <= 0 {
		c.running = false
		c.timer = nil
	} else {
		c.timer = time.AfterFunc(status.NextRefresh, c.tick)
	}
	c.mu.Unlock()

	// Render outside the lock so the callback may call Stop.
	c.onTick(status)
}

package web

import (
	"sync"
	"time"

	"attendpanel/internal/application/clock"
	"attendpanel/internal/domain/activity"
	"attendpanel/internal/domain/window"
)

// windowBoard owns one status clock per catalog activity and caches the
// most recent status each clock produced. Handlers read the cache; they
// never recompute labels themselves, so every reader of one activity
// sees the same phase at the same instant.
type windowBoard struct {
	mu     sync.Mutex
	clocks map[string]*clock.Clock
	status map[string]window.Status
	now    func() time.Time
}

func newWindowBoard(now func() time.Time) *windowBoard {
	if now == nil {
		now = time.Now
	}
	return &windowBoard{
		clocks: make(map[string]*clock.Clock),
		status: make(map[string]window.Status),
		now:    now,
	}
}

// Sync reconciles the board against the current catalog. New activities
// get a running clock, vanished ones get theirs stopped and dropped.
// POST: exactly one clock per given activity is running
func (b *windowBoard) Sync(activities []activity.Activity) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool, len(activities))
	for _, a := range activities {
		seen[a.ID] = true
		if _, ok := b.clocks[a.ID]; ok {
			continue
		}
		id := a.ID
		start, deadline := a.Window()
		c := clock.New(start, deadline, func(st window.Status) {
			b.mu.Lock()
			b.status[id] = st
			b.mu.Unlock()
		}, clock.Options{Now: b.now})
		b.clocks[id] = c
		b.status[id] = c.Status()
		go c.Start()
	}

	for id, c := range b.clocks {
		if !seen[id] {
			c.Stop()
			delete(b.clocks, id)
			delete(b.status, id)
		}
	}
}

// Status returns the cached status for an activity.
func (b *windowBoard) Status(activityID string) (window.Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.status[activityID]
	return st, ok
}

// Phase returns the cached phase for an activity. Unknown activities
// report closed, which fails safe for the toggle guard.
func (b *windowBoard) Phase(activityID string) window.Phase {
	st, ok := b.Status(activityID)
	if !ok {
		return window.PhaseClosed
	}
	return st.Phase
}

// Stop halts every clock. Used on shutdown.
func (b *windowBoard) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clocks {
		c.Stop()
		delete(b.clocks, id)
	}
}

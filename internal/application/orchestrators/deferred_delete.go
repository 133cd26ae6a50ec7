package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendpanel/internal/adapters/api"
	"attendpanel/internal/application/listview"
	"attendpanel/internal/domain/audit"
	"attendpanel/internal/domain/registration"
)

// ErrDeletionAlreadyPending is returned while an earlier deletion is
// still inside its undo window or committing. Only one deletion may be
// in flight system-wide.
var ErrDeletionAlreadyPending = errors.New("a deletion is already pending")

// Queue states.
const (
	deletionIdle = iota
	deletionPendingCommit
	deletionCommitting
)

// Defaults for the undo window and the removal animation delay.
const (
	DefaultGracePeriod  = 8 * time.Second
	DefaultRemovalDelay = 300 * time.Millisecond
)

// DeletionAPI is the upstream primitive used for the authoritative
// deletion commit.
type DeletionAPI interface {
	DeleteAttendance(ctx context.Context, recordID string) error
}

// DeletionQueueDeps holds dependencies for a DeletionQueue.
type DeletionQueueDeps struct {
	API   DeletionAPI
	Audit AuditRecorder    // optional
	Now   func() time.Time // injectable for testing

	// OnCountdown, when set, receives the remaining undo time once per
	// second while a deletion is pending.
	OnCountdown func(remaining time.Duration)

	// OnCommitFailure, when set, is the out-of-band channel for a failed
	// authoritative deletion. The row is never resurrected.
	OnCommitFailure func(rec registration.Registration, err error)

	GracePeriod  time.Duration // 0 means DefaultGracePeriod
	RemovalDelay time.Duration // 0 means DefaultRemovalDelay
}

// pendingDeletion is the record held between removal and commit.
type pendingDeletion struct {
	opID     string
	view     *listview.View            // the collection the record came from
	snapshot registration.Registration // deep copy taken at removal time
	index    int                       // original position for restore
	deadline time.Time
	removed  bool // whether the row already left the visible collection
}

// DeletionQueue removes a record from view immediately while delaying the
// authoritative delete long enough to allow cancellation. At most one
// deletion is pending at a time; the commit path runs exactly once per
// accepted request.
type DeletionQueue struct {
	mu      sync.Mutex
	deps    DeletionQueueDeps
	state   int
	pending *pendingDeletion

	removalTimer *time.Timer
	commitTimer  *time.Timer
	countdownEnd chan struct{}
}

// NewDeletionQueue creates an idle queue.
// PRE: deps.API is non-nil
func NewDeletionQueue(deps DeletionQueueDeps) *DeletionQueue {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.GracePeriod <= 0 {
		deps.GracePeriod = DefaultGracePeriod
	}
	if deps.RemovalDelay <= 0 {
		deps.RemovalDelay = DefaultRemovalDelay
	}
	return &DeletionQueue{deps: deps, state: deletionIdle}
}

// RequestDelete starts a deferred deletion of the given record.
// PRE: recordID refers to a visible record
// POST: The record leaves the visible collection after the removal delay
// and the undo countdown starts; or an error is returned and nothing
// changes
func (q *DeletionQueue) RequestDelete(view *listview.View, recordID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != deletionIdle {
		return ErrDeletionAlreadyPending
	}

	index := view.IndexOf(recordID)
	if index < 0 {
		return ErrRecordNotVisible
	}
	rec, _ := view.Get(recordID) // Get already deep-copies

	p := &pendingDeletion{
		opID:     uuid.NewString(),
		view:     view,
		snapshot: rec,
		index:    index,
		deadline: q.deps.Now().Add(q.deps.GracePeriod),
	}
	q.state = deletionPendingCommit
	q.pending = p

	// Let the removal animation play before the row disappears.
	q.removalTimer = time.AfterFunc(q.deps.RemovalDelay, func() { q.removeRow(p.opID) })
	q.commitTimer = time.AfterFunc(q.deps.GracePeriod, func() { q.commit(p.opID) })
	q.countdownEnd = make(chan struct{})
	if q.deps.OnCountdown != nil {
		go q.runCountdown(p.deadline, q.countdownEnd)
	}

	slog.Info("deletion_event", "event", "delete_requested", "record_id", recordID, "index", index)
	return nil
}

// Cancel aborts the pending deletion and restores the record at its
// original index, clamped to the current collection length.
// POST: Returns true if a pending deletion was cancelled; false when the
// queue was idle or the commit had already started
func (q *DeletionQueue) Cancel() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != deletionPendingCommit {
		return false
	}
	p := q.pending
	q.clearTimersLocked()
	q.state = deletionIdle
	q.pending = nil

	if p.removed {
		p.view.InsertAt(p.index, p.snapshot.Clone())
	}

	if q.deps.Audit != nil {
		event := audit.NewEvent(q.deps.Now(), audit.CategoryDeletion, audit.ActionDeleteCancel, audit.OutcomeSuccess).
			WithRecord(p.snapshot.ID, p.snapshot.ActivityID).
			WithMessage("Eliminación cancelada")
		if err := q.deps.Audit.Record(context.Background(), event); err != nil {
			slog.Warn("deletion_event", "event", "audit_write_failed", "err", err)
		}
	}
	slog.Info("deletion_event", "event", "delete_cancelled", "record_id", p.snapshot.ID)
	return true
}

// Remaining returns the time left in the undo window.
// POST: ok is false when no deletion is pending
func (q *DeletionQueue) Remaining() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != deletionPendingCommit {
		return 0, false
	}
	remaining := q.pending.deadline.Sub(q.deps.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Stop cancels all timers without restoring anything. For view unmount;
// leaves no leaked timers behind.
func (q *DeletionQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearTimersLocked()
	q.state = deletionIdle
	q.pending = nil
}

// removeRow takes the record out of the visible collection once the
// removal delay elapses.
func (q *DeletionQueue) removeRow(opID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil || q.pending.opID != opID {
		return
	}
	if _, _, ok := q.pending.view.RemoveByID(q.pending.snapshot.ID); ok {
		q.pending.removed = true
	}
}

// commit issues the authoritative deletion after the grace period. It
// runs at most once per accepted request; a cancellation that won the
// race leaves the state machine idle and commit backs off. Regardless of
// the network outcome the snapshot is discarded and the row does not
// reappear — failure is surfaced out-of-band instead.
func (q *DeletionQueue) commit(opID string) {
	q.mu.Lock()
	if q.state != deletionPendingCommit || q.pending == nil || q.pending.opID != opID {
		q.mu.Unlock()
		return
	}
	p := q.pending
	q.state = deletionCommitting
	q.clearTimersLocked()
	if !p.removed {
		// Removal delay raced with a very short grace period.
		if _, _, ok := p.view.RemoveByID(p.snapshot.ID); ok {
			p.removed = true
		}
	}
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := q.deps.API.DeleteAttendance(ctx, p.snapshot.ID)

	q.mu.Lock()
	q.state = deletionIdle
	q.pending = nil
	q.mu.Unlock()

	outcome := audit.OutcomeSuccess
	msg := "Registro eliminado"
	if err != nil {
		outcome = audit.OutcomeNetworkError
		if errors.Is(err, api.ErrServerRejected) {
			outcome = audit.OutcomeRejected
		}
		msg = err.Error()
		slog.Warn("deletion_event", "event", "commit_failed", "record_id", p.snapshot.ID, "err", err)
		if q.deps.OnCommitFailure != nil {
			q.deps.OnCommitFailure(p.snapshot.Clone(), err)
		}
	} else {
		slog.Info("deletion_event", "event", "delete_committed", "record_id", p.snapshot.ID)
	}

	if q.deps.Audit != nil {
		event := audit.NewEvent(q.deps.Now(), audit.CategoryDeletion, audit.ActionDeleteCommit, outcome).
			WithRecord(p.snapshot.ID, p.snapshot.ActivityID).
			WithMessage(msg)
		if auditErr := q.deps.Audit.Record(context.Background(), event); auditErr != nil {
			slog.Warn("deletion_event", "event", "audit_write_failed", "err", auditErr)
		}
	}
}

// runCountdown pushes the remaining undo time to the caller once per
// second until the window closes or the deletion resolves.
func (q *DeletionQueue) runCountdown(deadline time.Time, done chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			remaining := deadline.Sub(q.deps.Now())
			if remaining < 0 {
				remaining = 0
			}
			q.deps.OnCountdown(remaining)
			if remaining == 0 {
				return
			}
		}
	}
}

// clearTimersLocked stops all outstanding timers. Caller holds q.mu.
func (q *DeletionQueue) clearTimersLocked() {
	if q.removalTimer != nil {
		q.removalTimer.Stop()
		q.removalTimer = nil
	}
	if q.commitTimer != nil {
		q.commitTimer.Stop()
		q.commitTimer = nil
	}
	if q.countdownEnd != nil {
		close(q.countdownEnd)
		q.countdownEnd = nil
	}
}

package orchestrators_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"attendpanel/internal/adapters/api"
	"attendpanel/internal/application/listview"
	"attendpanel/internal/application/orchestrators"
	"attendpanel/internal/domain/registration"
	"attendpanel/internal/domain/window"
)

// stubToggleAPI counts calls and scripts responses.
type stubToggleAPI struct {
	calls   atomic.Int64
	updated *registration.Registration
	err     error
	release chan struct{} // when set, calls block until closed
}

func (s *stubToggleAPI) ConfirmAttendance(_ context.Context, _ api.ConfirmRequest) (*registration.Registration, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	return s.updated, s.err
}

func openPhase() window.Phase   { return window.PhaseOpen }
func closedPhase() window.Phase { return window.PhaseClosed }

func seededView() *listview.View {
	v := listview.NewView()
	v.Replace([]registration.Registration{
		{ID: "r-1", AttendeeID: "s-1", ActivityID: "a-1", Status: registration.StatusRegistered},
		{ID: "r-2", AttendeeID: "s-2", ActivityID: "a-1", Status: registration.StatusRegistered},
	})
	return v
}

func toggleDeps(v *listview.View, apiStub *stubToggleAPI, phase func() window.Phase, now time.Time) orchestrators.ToggleAttendanceDeps {
	return orchestrators.ToggleAttendanceDeps{
		View:  v,
		API:   apiStub,
		Guard: orchestrators.NewInFlightGuard(),
		Phase: phase,
		Now:   func() time.Time { return now },
	}
}

// TestToggle_WindowClosed: no network call, no mutation, ErrWindowNotOpen.
func TestToggle_WindowClosed(t *testing.T) {
	v := seededView()
	stub := &stubToggleAPI{}
	before := v.Records()

	_, err := orchestrators.ExecuteToggleAttendance(context.Background(),
		orchestrators.ToggleAttendanceInput{RecordID: "r-1", Checked: true},
		toggleDeps(v, stub, closedPhase, time.Now()))

	if !errors.Is(err, orchestrators.ErrWindowNotOpen) {
		t.Fatalf("error = %v, want ErrWindowNotOpen", err)
	}
	if stub.calls.Load() != 0 {
		t.Errorf("network calls = %d, want 0", stub.calls.Load())
	}
	if fmt.Sprintf("%+v", v.Records()) != fmt.Sprintf("%+v", before) {
		t.Errorf("collection changed on guard rejection")
	}
}

// TestToggle_DerivedFieldsOnEmptyResponse: the two changed fields are
// derived deterministically when the server returns no record.
func TestToggle_DerivedFieldsOnEmptyResponse(t *testing.T) {
	now := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	v := seededView()
	stub := &stubToggleAPI{}

	result, err := orchestrators.ExecuteToggleAttendance(context.Background(),
		orchestrators.ToggleAttendanceInput{RecordID: "r-1", Checked: true},
		toggleDeps(v, stub, openPhase, now))
	if err != nil {
		t.Fatalf("toggle error = %v", err)
	}

	rec, _ := v.Get("r-1")
	if !rec.Attended || rec.Status != registration.StatusConfirmed {
		t.Errorf("record = %+v, want attended/confirmed", rec)
	}
	if rec.ConfirmedAt == nil || !rec.ConfirmedAt.Equal(now) {
		t.Errorf("ConfirmedAt = %v, want %v", rec.ConfirmedAt, now)
	}
	if result.Message == "" {
		t.Errorf("result carries no notification message")
	}

	// Uncheck clears the derived fields again.
	_, err = orchestrators.ExecuteToggleAttendance(context.Background(),
		orchestrators.ToggleAttendanceInput{RecordID: "r-1", Checked: false},
		toggleDeps(v, stub, openPhase, now))
	if err != nil {
		t.Fatalf("uncheck error = %v", err)
	}
	rec, _ = v.Get("r-1")
	if rec.Attended || rec.Status != registration.StatusRegistered || rec.ConfirmedAt != nil {
		t.Errorf("after uncheck record = %+v", rec)
	}
}

// TestToggle_ServerRecordWins: a returned record replaces all local fields.
func TestToggle_ServerRecordWins(t *testing.T) {
	confirmed := time.Date(2025, 9, 10, 9, 5, 0, 0, time.UTC)
	v := seededView()
	stub := &stubToggleAPI{updated: &registration.Registration{
		ID: "r-1", AttendeeID: "s-1", ActivityID: "a-1",
		Status: registration.StatusAttended, Attended: true, ConfirmedAt: &confirmed,
	}}

	_, err := orchestrators.ExecuteToggleAttendance(context.Background(),
		orchestrators.ToggleAttendanceInput{RecordID: "r-1", Checked: true},
		toggleDeps(v, stub, openPhase, time.Now()))
	if err != nil {
		t.Fatalf("toggle error = %v", err)
	}
	rec, _ := v.Get("r-1")
	if rec.Status != registration.StatusAttended || !rec.ConfirmedAt.Equal(confirmed) {
		t.Errorf("record = %+v, want the server's version", rec)
	}
}

// TestToggle_FailureLeavesRecordUntouched: on rejection the previous
// committed state stays visible, busy is cleared, the error carries the
// server message.
func TestToggle_FailureLeavesRecordUntouched(t *testing.T) {
	v := seededView()
	before, _ := v.Get("r-1")
	stub := &stubToggleAPI{err: fmt.Errorf("%w: %s", api.ErrServerRejected, "La actividad está completa")}

	_, err := orchestrators.ExecuteToggleAttendance(context.Background(),
		orchestrators.ToggleAttendanceInput{RecordID: "r-1", Checked: true},
		toggleDeps(v, stub, openPhase, time.Now()))

	if !errors.Is(err, api.ErrServerRejected) {
		t.Fatalf("error = %v, want ErrServerRejected", err)
	}
	after, _ := v.Get("r-1")
	if fmt.Sprintf("%+v", after) != fmt.Sprintf("%+v", before) {
		t.Errorf("record changed on failure:\n got %+v\nwant %+v", after, before)
	}
	if v.IsBusy("r-1") {
		t.Errorf("busy flag not cleared after failure")
	}
}

// TestToggle_SingleInFlight: two concurrent toggles on the same record
// produce exactly one network call; the loser gets ErrToggleInProgress.
func TestToggle_SingleInFlight(t *testing.T) {
	v := seededView()
	stub := &stubToggleAPI{release: make(chan struct{})}
	deps := toggleDeps(v, stub, openPhase, time.Now())

	firstDone := make(chan error, 1)
	go func() {
		_, err := orchestrators.ExecuteToggleAttendance(context.Background(),
			orchestrators.ToggleAttendanceInput{RecordID: "r-1", Checked: true}, deps)
		firstDone <- err
	}()

	// Wait for the first call to reach the (blocked) API.
	for stub.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	_, err := orchestrators.ExecuteToggleAttendance(context.Background(),
		orchestrators.ToggleAttendanceInput{RecordID: "r-1", Checked: true}, deps)
	if !errors.Is(err, orchestrators.ErrToggleInProgress) {
		t.Errorf("second toggle error = %v, want ErrToggleInProgress", err)
	}

	close(stub.release)
	if err := <-firstDone; err != nil {
		t.Errorf("first toggle error = %v", err)
	}
	if stub.calls.Load() != 1 {
		t.Errorf("network calls = %d, want exactly 1", stub.calls.Load())
	}
}

// TestToggle_DifferentRecordsDoNotBlock: the guard is per record.
func TestToggle_DifferentRecordsDoNotBlock(t *testing.T) {
	v := seededView()
	stub := &stubToggleAPI{}
	deps := toggleDeps(v, stub, openPhase, time.Now())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"r-1", "r-2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = orchestrators.ExecuteToggleAttendance(context.Background(),
				orchestrators.ToggleAttendanceInput{RecordID: id, Checked: true}, deps)
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("toggle %d error = %v", i, err)
		}
	}
	if stub.calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2", stub.calls.Load())
	}
}

// TestToggle_RequestsRefreshAfterNetworkAttempt covers the deferred
// reconciliation hook on both outcomes.
func TestToggle_RequestsRefreshAfterNetworkAttempt(t *testing.T) {
	var refreshes atomic.Int64

	run := func(stub *stubToggleAPI) {
		v := seededView()
		deps := toggleDeps(v, stub, openPhase, time.Now())
		deps.RequestRefresh = func() { refreshes.Add(1) }
		orchestrators.ExecuteToggleAttendance(context.Background(),
			orchestrators.ToggleAttendanceInput{RecordID: "r-1", Checked: true}, deps)
	}

	run(&stubToggleAPI{})
	run(&stubToggleAPI{err: fmt.Errorf("%w: boom", api.ErrNetworkError)})

	if refreshes.Load() != 2 {
		t.Errorf("refresh requests = %d, want 2 (success and failure)", refreshes.Load())
	}
}

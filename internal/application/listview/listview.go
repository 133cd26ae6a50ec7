package listview

import (
	"sync"

	"attendpanel/internal/domain/registration"
)

// View owns the visible in-memory collection of registrations for one
// mounted panel. All reads hand out deep copies so callers can never
// observe or corrupt intermediate state; mutation happens only through
// the methods below.
type View struct {
	mu      sync.Mutex
	records []registration.Registration
	busy    map[string]bool // record ID -> spinner state, UI-only
}

// NewView creates an empty View.
func NewView() *View {
	return &View{busy: make(map[string]bool)}
}

// Replace swaps in a freshly-loaded collection, dropping all busy flags.
// PRE: records came wholesale from the upstream API
// POST: View holds deep copies of records
func (v *View) Replace(records []registration.Registration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = cloneAll(records)
	v.busy = make(map[string]bool)
}

// Records returns a deep copy of the visible collection in order.
func (v *View) Records() []registration.Registration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneAll(v.records)
}

// Len returns the number of visible records.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.records)
}

// Get returns a deep copy of the record with the given ID.
func (v *View) Get(id string) (registration.Registration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.records {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return registration.Registration{}, false
}

// IndexOf returns the position of the record with the given ID, or -1.
func (v *View) IndexOf(id string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, r := range v.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Set replaces the stored record with the same ID by a deep copy of rec.
// PRE: rec.ID is non-empty
// POST: Returns true if a record was replaced
func (v *View) Set(rec registration.Registration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, r := range v.records {
		if r.ID == rec.ID {
			v.records[i] = rec.Clone()
			return true
		}
	}
	return false
}

// Update applies fn to the stored record with the given ID in place.
// POST: Returns true if the record existed
func (v *View) Update(id string, fn func(*registration.Registration)) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.records {
		if v.records[i].ID == id {
			fn(&v.records[i])
			return true
		}
	}
	return false
}

// RemoveByID removes the record with the given ID, returning a deep copy
// and the index it occupied.
// POST: Returns ok=false if no such record is visible
func (v *View) RemoveByID(id string) (registration.Registration, int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, r := range v.records {
		if r.ID == id {
			removed := r.Clone()
			v.records = append(v.records[:i], v.records[i+1:]...)
			delete(v.busy, id)
			return removed, i, true
		}
	}
	return registration.Registration{}, -1, false
}

// InsertAt re-inserts a record at the given index, clamped to the current
// collection bounds. Used by the undo path to restore a removed row at
// its original position.
// POST: rec (deep-copied) is visible at min(index, len) after the call
func (v *View) InsertAt(index int, rec registration.Registration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index > len(v.records) {
		index = len(v.records)
	}
	v.records = append(v.records, registration.Registration{})
	copy(v.records[index+1:], v.records[index:])
	v.records[index] = rec.Clone()
}

// SetBusy flags a record as having an operation in flight, for spinner
// rendering. Busy state is not part of the record's visible fields.
func (v *View) SetBusy(id string, busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if busy {
		v.busy[id] = true
	} else {
		delete(v.busy, id)
	}
}

// IsBusy reports whether a record has an operation in flight.
func (v *View) IsBusy(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy[id]
}

func cloneAll(records []registration.Registration) []registration.Registration {
	out := make([]registration.Registration, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}

package listview

import (
	"sync"

	"attendpanel/internal/domain/activity"
	"attendpanel/internal/domain/session"
)

// Catalog holds the loaded activities and their derived daily sessions.
// Sessions are recomputed on every reload from the activities; they are
// never mutated in place.
type Catalog struct {
	mu         sync.Mutex
	activities []activity.Activity
	sessions   map[string][]session.Session // activity ID -> ordered sessions
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{sessions: make(map[string][]session.Session)}
}

// ReplaceAll swaps in a freshly-loaded set of activities and sessions.
func (c *Catalog) ReplaceAll(activities []activity.Activity, sessions map[string][]session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activities = append([]activity.Activity(nil), activities...)
	c.sessions = make(map[string][]session.Session, len(sessions))
	for id, s := range sessions {
		c.sessions[id] = append([]session.Session(nil), s...)
	}
}

// Activities returns a copy of the loaded activities in order.
func (c *Catalog) Activities() []activity.Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]activity.Activity(nil), c.activities...)
}

// Get returns the activity with the given ID.
func (c *Catalog) Get(id string) (activity.Activity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.activities {
		if a.ID == id {
			return a, true
		}
	}
	return activity.Activity{}, false
}

// SessionsFor returns the ordered daily sessions of an activity.
func (c *Catalog) SessionsFor(activityID string) []session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]session.Session(nil), c.sessions[activityID]...)
}

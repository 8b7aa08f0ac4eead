// Package session tracks web sessions in memory. Entries never expire on
// their own; they are only removed by explicit termination.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"
)

type Session struct {
	ID           string      `json:"session_id"`
	UserID       null.String `json:"user_id"` // null for anonymous sessions
	Username     string      `json:"username,omitempty"`
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`    // UTC
	LastActivity time.Time   `json:"last_activity"` // UTC
}

func (s *Session) IsAnonymous() bool {
	return !s.UserID.Valid
}

// Tracker is an unbounded in-memory session registry. There is no eviction,
// no TTL and no size bound.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]Session)}
}

// Touch records activity on a session, creating an anonymous entry on first
// sight. The IP address and last activity are overwritten on every call.
func (t *Tracker) Touch(id, ip string) Session {
	now := time.Now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		s = Session{ID: id, CreatedAt: now}
	}
	s.IPAddress = ip
	s.LastActivity = now
	t.sessions[id] = s
	return s
}

// Bind attaches a user to a tracked session at login time.
func (t *Tracker) Bind(id, userID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		now := time.Now().UTC()
		s = Session{ID: id, CreatedAt: now, LastActivity: now}
	}
	s.UserID = null.StringFrom(userID)
	s.Username = username
	t.sessions[id] = s
}

func (t *Tracker) Get(id string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// All returns every tracked session, most recently active first.
func (t *Tracker) All() []Session {
	t.mu.RLock()
	sessions := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})
	return sessions
}

// Terminate removes a session; reports whether it existed.
func (t *Tracker) Terminate(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.sessions[id]
	delete(t.sessions, id)
	return ok
}

// TerminateUser removes all of a user's sessions and returns how many were
// removed.
func (t *Tracker) TerminateUser(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	for id, s := range t.sessions {
		if s.UserID.Valid && s.UserID.String == userID {
			delete(t.sessions, id)
			n++
		}
	}
	return n
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

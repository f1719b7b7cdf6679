package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabancura/frontdesk/interfaces"
	"github.com/tabancura/frontdesk/metrics"
)

var _ interfaces.SessionCounter = (*Store)(nil)

// Store keeps open sessions by ID and expires the idle ones.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire after ttl without use.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a new session in the NoPatient state.
func (st *Store) Create() *Session {
	s := newSession(uuid.NewString(), st.now())

	st.mu.Lock()
	st.sessions[s.ID] = s
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return s
}

// Get returns the session and marks it as used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.touch(st.now())
	return s, true
}

// Delete ends a session. It reports whether the session existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return ok
}

// Len returns the number of open sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (st *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-st.ttl)

	st.mu.Lock()
	removed := 0
	for id, s := range st.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return removed
}

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager tracks the in-memory sessions by ID. Sessions idle longer than
// maxIdle are pruned; nothing is persisted across restarts.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	maxIdle  time.Duration
}

// NewManager creates a manager. maxIdle <= 0 disables pruning.
func NewManager(maxIdle time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		maxIdle:  maxIdle,
	}
}

// Get returns the session for id, refreshing its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.mu.Lock()
		s.lastSeen = time.Now()
		s.mu.Unlock()
	}
	return s, ok
}

// Create registers a new session and returns its ID.
func (m *Manager) Create() (string, *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(time.Now())

	id := uuid.NewString()
	s := newSession()
	m.sessions[id] = s
	return id, s
}

// Prune drops sessions idle past the limit and reports how many were removed.
func (m *Manager) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(now)
}

func (m *Manager) pruneLocked(now time.Time) int {
	if m.maxIdle <= 0 {
		return 0
	}
	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastSeen)
		s.mu.Unlock()
		if idle > m.maxIdle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

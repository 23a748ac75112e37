package sessions

import (
	"sync"

	"github.com/google/uuid"
)

// session is the local view of one agent conversation. The agent owns the
// history; locally only the activity ID that threads turns together is kept.
type session struct {
	activityID string
	turns      int
}

// Manager tracks activity IDs per session key for the life of the process.
// Safe for concurrent use.
type Manager struct {
	sessions map[string]*session
	mu       sync.RWMutex
	newID    func() string
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*session),
		newID:    NewID,
	}
}

// NewID returns a time-ordered unique ID (UUIDv7).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Touch returns the activity ID for key, creating the session on first use,
// and counts one turn against it.
func (m *Manager) Touch(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		s = &session{activityID: m.newID()}
		m.sessions[key] = s
	}
	s.turns++
	return s.activityID
}

// Reset drops the session so the next turn starts a fresh activity.
// Reports whether a session existed.
func (m *Manager) Reset(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[key]
	delete(m.sessions, key)
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Turns returns the number of agent turns across live sessions.
func (m *Manager) Turns() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		n += s.turns
	}
	return n
}

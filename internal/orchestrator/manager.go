package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dazdaz/gemini/internal/trace"
)

// Manager is the table of live sessions, keyed by session id.
type Manager struct {
	deps *Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session table.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     &deps,
		sessions: make(map[string]*Session),
	}
}

// Open registers a new session for a connection and sends connected.
func (m *Manager) Open(ctx context.Context, sink Sink) *Session {
	s := newSession(ctx, uuid.NewString(), m.deps, sink)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	trace.Logger(s.ctx).Info("client connected", "connections", m.Len())
	s.emit(Connected{Type: TypeConnected, SessionID: s.id})
	return s
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close stops the session's worker within the disconnect wait and drops the
// record.
func (m *Manager) Close(id string) {
	s, ok := m.Get(id)
	if !ok {
		return
	}
	s.active.Store(false)
	s.halt(m.deps.Config.DisconnectWait)

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	trace.Logger(s.ctx).Info("client disconnected", "connections", m.Len())
}

// ActiveCount returns the number of started, not yet stopped sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.Active() {
			n++
		}
	}
	return n
}

// Len returns the number of open connections.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

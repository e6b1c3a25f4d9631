package streaming

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nocsi/drip-api-sub008/internal/pipeline"
	"go.uber.org/zap"
)

// Manager owns the live streaming sessions
type Manager struct {
	orch     *pipeline.Orchestrator
	logger   *zap.Logger
	defaults Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions use defaults unless Open is
// given a config of its own
func NewManager(orch *pipeline.Orchestrator, logger *zap.Logger, defaults Config) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		orch:     orch,
		logger:   logger,
		defaults: defaults.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Open starts a session with the manager defaults
func (m *Manager) Open(emit Emitter) *Session {
	return m.OpenWithConfig(m.defaults, emit)
}

// OpenWithConfig starts a session with its own config
func (m *Manager) OpenWithConfig(cfg Config, emit Emitter) *Session {
	s := newSession(uuid.New().String(), m.orch, m.logger, cfg, emit)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Debug("Stream session opened",
		zap.String("session", s.ID()),
		zap.String("mode", string(s.cfg.Mode)))
	return s
}

// Get looks up a session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove forgets a session, cancelling it if still open
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok && !s.State().Terminal() {
		_ = s.Cancel()
	}
}

// Sweep drops every session in a terminal state and returns how many
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if s.State().Terminal() {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Debug("Swept stream sessions", zap.Int("removed", n))
	}
	return n
}

// Len returns the number of tracked sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Package session owns the per-session state of the builder: the action
// runner driving the session workspace and the artifact registry fed by
// parse events. Sessions outlive individual chat requests so long-running
// start processes keep serving between messages.
package session

import (
	"log/slog"
	"sync"

	"github.com/qcjiangqianchen/bolt.diy/internal/artifact"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/runner"
)

// Session is the state of one builder session.
type Session struct {
	ID        string
	Runner    *runner.Runner
	Artifacts *artifact.Registry
}

// Manager hands out sessions keyed by id, creating them lazily. A session
// stays alive until End or Close; only those stop its processes.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	newRunner func(sessionID string) (*runner.Runner, error)
	logger    log.Logger
}

// NewManager creates a manager. newRunner builds the workspace-scoped
// runner for a fresh session. A nil logger falls back to slog.Default().
func NewManager(newRunner func(sessionID string) (*runner.Runner, error), logger log.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		newRunner: newRunner,
		logger:    logger,
	}
}

// Get returns the session with the given id, creating it on first use.
// Repeated calls with the same id return the same session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	run, err := m.newRunner(id)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        id,
		Runner:    run,
		Artifacts: artifact.NewRegistry(m.logger),
	}
	m.sessions[id] = s
	m.logger.Debug("session created", "session_id", id)
	return s, nil
}

// End stops a session: its runner aborts all non-terminal actions, which
// kills any dev process. Ending an unknown session is a no-op.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	m.logger.Info("session ended", "session_id", id)
	return s.Runner.Close()
}

// Close ends every live session. Called on server shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Runner.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

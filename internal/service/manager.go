package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"docchat/internal/contextutil"
	"docchat/internal/rag"
)

// Manager hands out isolated sessions by id.
type Manager struct {
	deps Deps
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager whose sessions share deps and opts.
func NewManager(deps Deps, opts Options) *Manager {
	return &Manager{
		deps:     deps,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context) *Session {
	s := NewSession(uuid.NewString(), m.deps, m.opts)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "session created", "session_id", s.ID())
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, rag.ErrNotFound)
	}
	return s, nil
}

// Delete closes and removes the session with the given id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, rag.ErrNotFound)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "session deleted", "session_id", id)
	return s.Close(ctx)
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes every session.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}

package chat

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/assistants"
	"github.com/effective-security/seoagent/store"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

// DefaultMaxSessions is the number of sessions kept by Manager
const DefaultMaxSessions = 100

// Manager keeps the sessions of a multi-user surface.
// The oldest session is evicted when the limit is reached.
type Manager struct {
	agent   assistants.IAgent
	store   store.MessageStore
	surface string
	limit   int

	lock     sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewManager returns Manager.
// DefaultMaxSessions is used when limit is not positive.
func NewManager(agent assistants.IAgent, s store.MessageStore, surface string, limit int) *Manager {
	if limit <= 0 {
		limit = DefaultMaxSessions
	}
	return &Manager{
		agent:    agent,
		store:    s,
		surface:  surface,
		limit:    limit,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session
func (m *Manager) Create(ctx context.Context) *Session {
	s := NewSession(uuid.NewString(), m.agent, WithStore(m.store), WithSurface(m.surface))

	m.lock.Lock()
	defer m.lock.Unlock()

	for len(m.order) >= m.limit {
		oldest := m.order[0]
		m.order = m.order[1:]
		if old := m.sessions[oldest]; old != nil {
			m.evict(ctx, old)
		}
		delete(m.sessions, oldest)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "evicted",
			"session", oldest)
	}
	m.sessions[s.id] = s
	m.order = append(m.order, s.id)
	return s
}

// evict clears the history of the session.
// A busy session is cleared once its query completes,
// so the history written by that query is not left behind.
func (m *Manager) evict(ctx context.Context, s *Session) {
	err := s.Reset(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionBusy):
		logger.ContextKV(ctx, xlog.INFO,
			"status", "evict_deferred",
			"session", s.id)
		go s.resetWhenIdle(context.WithoutCancel(ctx))
	default:
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "evict_reset_failed",
			"session", s.id,
			"err", err.Error())
	}
}

// Get returns the session by ID
func (m *Manager) Get(id string) (*Session, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	return s, nil
}

// Delete resets and removes the session
func (m *Manager) Delete(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if err = s.Reset(ctx); err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.sessions, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return nil
}

// Len returns the number of sessions
func (m *Manager) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.sessions)
}

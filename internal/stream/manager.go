package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/tail"
	"github.com/kubelogx/kubelogx/internal/types"
)

var (
	// ErrSessionNotFound is returned for unknown or already-closed session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSource is returned when a source lacks namespace or pod.
	ErrInvalidSource = errors.New("invalid source")
)

// Manager owns the set of running sessions.
type Manager struct {
	source tail.Source
	opts   Options
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewManager creates a Manager that opens tails from source.
func NewManager(source tail.Source, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		source:   source,
		opts:     opts,
		logger:   opts.Logger.Named("stream-manager"),
		sessions: make(map[string]*Session),
	}
}

// StartOption adjusts the options of a single session.
type StartOption func(*Options)

// WithTailLines overrides how many trailing lines the first connect requests.
func WithTailLines(n int64) StartOption {
	return func(o *Options) { o.TailLines = n }
}

// Start creates a fresh session for src and runs it until ctx is done,
// Stop is called, or the session closes on its own.
func (m *Manager) Start(ctx context.Context, src types.SourceID, sink Sink, opts ...StartOption) (*Session, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	sessOpts := m.opts
	for _, o := range opts {
		o(&sessOpts)
	}
	s := NewSession(src, m.source, sink, sessOpts)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.Run(ctx)
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
	}()

	m.logger.Debug("Session registered", zap.String("session", s.ID()), zap.String("source", src.String()))
	return s, nil
}

// Stop closes the session with id and waits for it to release its source.
// Unknown ids are ignored, so repeated calls are harmless.
func (m *Manager) Stop(id string) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.Stop()
	}
}

// Get returns the running session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns info for every running session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len returns the number of running sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops every session and waits for all drivers to exit.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Stop()
	}
	m.wg.Wait()
	m.logger.Info("All sessions stopped", zap.Int("count", len(sessions)))
}

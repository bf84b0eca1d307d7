package session

import (
	"context"
	"log"
	"sync"
)

// Manager owns one engine per connection. Engines are created lazily on first
// use and live for the process lifetime unless removed.
type Manager struct {
	mu      sync.Mutex
	deps    Deps
	engines map[string]*Engine
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:    deps,
		engines: make(map[string]*Engine),
	}
}

// Engine returns the engine for a connection, creating it if needed.
func (m *Manager) Engine(connectionID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.engines[connectionID]; ok {
		return e
	}
	e := NewEngine(connectionID, m.deps)
	m.engines[connectionID] = e
	return e
}

// Remove drops a connection's engine, flushing any pending save first.
func (m *Manager) Remove(ctx context.Context, connectionID string) {
	m.mu.Lock()
	e, ok := m.engines[connectionID]
	delete(m.engines, connectionID)
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := e.Flush(ctx); err != nil {
		log.Printf("WARN: flush session for %s: %v", connectionID, err)
	}
}

// FlushAll writes every engine's pending save. Used on shutdown.
func (m *Manager) FlushAll(ctx context.Context) {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.engines))
	for _, e := range m.engines {
		engines = append(engines, e)
	}
	m.mu.Unlock()

	for _, e := range engines {
		if err := e.Flush(ctx); err != nil {
			log.Printf("WARN: flush session for %s: %v", e.ConnectionID(), err)
		}
	}
}

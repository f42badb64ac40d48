// Package connection owns the one live channel per admin identity and
// fans inbound events out to UI subscribers.
package connection

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/core"
	"github.com/iseeyou-platform/realtime/internal/domain"
)

// Manager is the identity-keyed registry of channel handles. Connect is
// idempotent per identity: a second call for the same identity returns
// the existing handle and never opens a second channel.
type Manager struct {
	factory core.TransportFactory

	mu      sync.RWMutex
	handles map[domain.UserID]*Handle
}

func NewManager(factory core.TransportFactory) *Manager {
	return &Manager{
		factory: factory,
		handles: make(map[domain.UserID]*Handle),
	}
}

func (m *Manager) Connect(ctx context.Context, identity domain.UserID) (*Handle, error) {
	m.mu.RLock()
	h, ok := m.handles[identity]
	m.mu.RUnlock()
	if ok {
		return h, nil
	}

	m.mu.Lock()
	if h, ok = m.handles[identity]; ok {
		m.mu.Unlock()
		return h, nil
	}

	transport, err := m.factory.Open(identity)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	h = newHandle(identity, transport)
	transport.OnMessage(h.dispatch)
	transport.OnStatus(h.onStatus)
	m.handles[identity] = h
	m.mu.Unlock()

	if err := transport.Connect(ctx); err != nil {
		// Channel never established. Keep the handle so the console
		// stays in degraded send-disabled mode; connectivity is read
		// off Handle.Status.
		log.Warn().Err(err).Str("module", "connection").Str("user", string(identity)).Msg("channel not established")
	}
	log.Info().Str("module", "connection").Str("user", string(identity)).Msg("bound channel handle")
	return h, nil
}

// Handle returns the existing handle without creating one.
func (m *Manager) Handle(identity domain.UserID) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[identity]
	return h, ok
}

// Disconnect tears the channel down and drops the handle. A later
// Connect for the same identity builds a fresh channel.
func (m *Manager) Disconnect(identity domain.UserID) {
	m.mu.Lock()
	h, ok := m.handles[identity]
	if ok {
		delete(m.handles, identity)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	h.close()
	log.Info().Str("module", "connection").Str("user", string(identity)).Msg("disconnected")
}

// DisconnectAll is used on daemon shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	handles := m.handles
	m.handles = make(map[domain.UserID]*Handle)
	m.mu.Unlock()
	for _, h := range handles {
		h.close()
	}
}

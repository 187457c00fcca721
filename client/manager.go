// Package client tracks the player connections of the gateway.
package client

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/lcx/gatesvr/logicserver"
	"github.com/lcx/gatesvr/metrics"
)

// Manager indexes live client sessions by runtime id.
type Manager struct {
	seq atomic.Int64

	mu       sync.RWMutex
	sessions map[int64]*Session
}

var _ logicserver.ClientRegistry = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*Session)}
}

// nextRuntimeID hands out ids starting at 1.
func (m *Manager) nextRuntimeID() int64 {
	return m.seq.Add(1)
}

func (m *Manager) add(s *Session) {
	m.mu.Lock()
	m.sessions[s.runtimeID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.UpdateGaugeWithGroup("client", "online", metrics.Value(n))
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.runtimeID]; ok && cur == s {
		delete(m.sessions, s.runtimeID)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.UpdateGaugeWithGroup("client", "online", metrics.Value(n))
}

// Find returns the concrete session.
func (m *Manager) Find(id int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) FindByRuntimeID(id int64) (logicserver.ClientSession, bool) {
	s, ok := m.Find(id)
	if !ok {
		return nil, false
	}
	return s, true
}

// KickByRuntimeID closes the client's connection. Unknown ids are ignored.
func (m *Manager) KickByRuntimeID(id int64) {
	s, ok := m.Find(id)
	if !ok {
		return
	}
	metrics.IncrCounterWithDimGroup("client", "kick_total", 1, metrics.Dimension{"reason": "kick"})
	s.Kick()
}

func (m *Manager) KickAllOfPrimary(logicServerID int64) {
	m.mu.RLock()
	var victims []*Session
	for _, s := range m.sessions {
		if s.PrimaryServerID() == logicServerID {
			victims = append(victims, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range victims {
		s.Kick()
	}
	metrics.IncrCounterWithDimGroup("client", "kick_total", metrics.Value(len(victims)), metrics.Dimension{"reason": "primary_lost"})
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RuntimeIDs returns the live ids in ascending order.
func (m *Manager) RuntimeIDs() []int64 {
	m.mu.RLock()
	ids := make([]int64, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

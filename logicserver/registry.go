package logicserver

import (
	"slices"
	"sync"

	"github.com/lcx/gatesvr/metrics"
)

// Registry indexes registered logic-server sessions by id, with primaries
// and slaves in separate namespaces. The same id may be registered once in
// each. It does not own the sessions.
type Registry struct {
	mu      sync.RWMutex
	primary map[int64]*Session
	slave   map[int64]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		primary: make(map[int64]*Session),
		slave:   make(map[int64]*Session),
	}
}

func (r *Registry) FindPrimary(id int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.primary[id]
	return s, ok
}

func (r *Registry) FindSlave(id int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slave[id]
	return s, ok
}

// AddPrimary inserts or replaces without checking for an existing entry.
// Login uses TryAddPrimary.
func (r *Registry) AddPrimary(id int64, s *Session) {
	r.add(r.primary, RolePrimary, id, s)
}

func (r *Registry) AddSlave(id int64, s *Session) {
	r.add(r.slave, RoleSlave, id, s)
}

// TryAddPrimary inserts s unless id is already registered as a primary.
func (r *Registry) TryAddPrimary(id int64, s *Session) bool {
	return r.tryAdd(r.primary, RolePrimary, id, s)
}

func (r *Registry) TryAddSlave(id int64, s *Session) bool {
	return r.tryAdd(r.slave, RoleSlave, id, s)
}

// RemovePrimary is a no-op when id is absent.
func (r *Registry) RemovePrimary(id int64) {
	r.remove(r.primary, RolePrimary, id)
}

func (r *Registry) RemoveSlave(id int64) {
	r.remove(r.slave, RoleSlave, id)
}

// PrimaryIDs returns the registered primary ids in ascending order.
func (r *Registry) PrimaryIDs() []int64 {
	return r.ids(r.primary)
}

func (r *Registry) SlaveIDs() []int64 {
	return r.ids(r.slave)
}

// Len is the number of entries over both namespaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.primary) + len(r.slave)
}

func (r *Registry) add(m map[int64]*Session, role Role, id int64, s *Session) {
	r.mu.Lock()
	m[id] = s
	n := len(m)
	r.mu.Unlock()
	updateRegistered(role, n)
}

func (r *Registry) tryAdd(m map[int64]*Session, role Role, id int64, s *Session) bool {
	r.mu.Lock()
	if _, ok := m[id]; ok {
		r.mu.Unlock()
		return false
	}
	m[id] = s
	n := len(m)
	r.mu.Unlock()
	updateRegistered(role, n)
	return true
}

func (r *Registry) remove(m map[int64]*Session, role Role, id int64) {
	r.mu.Lock()
	delete(m, id)
	n := len(m)
	r.mu.Unlock()
	updateRegistered(role, n)
}

func (r *Registry) ids(m map[int64]*Session) []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func updateRegistered(role Role, n int) {
	metrics.UpdateGaugeWithDimGroup("logicserver", "registered", metrics.Value(n), metrics.Dimension{"role": role.String()})
}

package workspace

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps workspaces in process memory. It serves single-instance
// deployments and runs when Redis is unreachable.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
	locks  map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: map[string]*State{},
		locks:  map[string]time.Time{},
		now:    time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[sessionID]; ok {
		return st.clone(), nil
	}
	return &State{}, nil
}

func (m *MemoryStore) Update(_ context.Context, sessionID string, fn func(*State)) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &State{}
	if cur, ok := m.states[sessionID]; ok {
		st = cur.clone()
	}
	fn(st)
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = m.now()
	}
	m.states[sessionID] = st.clone()
	return st, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

func (m *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, ok := m.locks[key]; ok && now.Before(until) {
		return false, nil
	}
	m.locks[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

// EvictIdle drops states last saved before cutoff and expired in-flight
// markers. It returns the number of states removed.
func (m *MemoryStore) EvictIdle(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, st := range m.states {
		if st.UpdatedAt.Before(cutoff) {
			delete(m.states, id)
			removed++
		}
	}
	now := m.now()
	for key, until := range m.locks {
		if !now.Before(until) {
			delete(m.locks, key)
		}
	}
	return removed, nil
}

func (m *MemoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

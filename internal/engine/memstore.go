// Package engine provides the key-value substrates the check-in stores persist to.
package engine

import (
	"sync"

	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// MemStore is a thread-safe in-memory Storage with optional snapshot persistence.
// With a persister, every mutation is written through before it returns; a failed
// write leaves both memory and disk unchanged.
type MemStore struct {
	mu        sync.RWMutex
	data      map[string]string
	version   uint64
	persister *Persistence
}

// NewMemStore initializes a store.
// It accepts existing data (from Persistence.Load) and an optional persister.
func NewMemStore(initialData map[string]string, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]string)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

// --- Interface Implementation ---

func (m *MemStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return "", sdk.ErrKeyNotFound
	}
	return val, nil
}

func (m *MemStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.data[key]
	m.data[key] = value
	if err := m.persistLocked(); err != nil {
		m.restore(key, prev, existed)
		return err
	}
	return nil
}

func (m *MemStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.data[key]
	if !existed {
		return nil
	}
	delete(m.data, key)
	if err := m.persistLocked(); err != nil {
		m.restore(key, prev, existed)
		return err
	}
	return nil
}

// Keys returns the keys currently held, in no particular order.
func (m *MemStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for k := range m.data {
		list = append(list, k)
	}
	return list
}

func (m *MemStore) restore(key, prev string, existed bool) {
	if existed {
		m.data[key] = prev
	} else {
		delete(m.data, key)
	}
}

// persistLocked writes a snapshot of the data. It MUST be called while holding m.mu.Lock.
func (m *MemStore) persistLocked() error {
	if m.persister == nil {
		return nil
	}

	m.version++
	snapshot := make(map[string]string, len(m.data))
	for k, v := range m.data {
		snapshot[k] = v
	}
	return m.persister.Save(m.version, snapshot)
}

package coverage

import (
	"sync"
)

// Store accumulates per-transaction coverage maps keyed by the transaction's
// content hash. Implementations must tolerate concurrent use: multiple
// confirmation watchers feed the same store.
type Store interface {
	// Has reports whether coverage for the hash was already recorded
	Has(hash string) bool

	// Add records the coverage map of one transaction
	Add(hash string, m Map) error

	// Flush persists buffered entries at a defined checkpoint
	Flush() error

	Close() error
}

// MemStore is an in-memory Store used by default and as a test substitute
// for the persistent one
type MemStore struct {
	lock sync.RWMutex
	data map[string]Map
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]Map),
	}
}

func (s *MemStore) Has(hash string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	_, ok := s.data[hash]

	return ok
}

func (s *MemStore) Add(hash string, m Map) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.data[hash] = m

	return nil
}

func (s *MemStore) Get(hash string) (Map, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	m, ok := s.data[hash]

	return m, ok
}

// Merged returns the union of all recorded maps
func (s *MemStore) Merged() Map {
	s.lock.RLock()
	defer s.lock.RUnlock()

	out := NewMap()
	for _, m := range s.data {
		out.Merge(m)
	}

	return out
}

func (s *MemStore) Flush() error {
	return nil
}

func (s *MemStore) Close() error {
	return nil
}

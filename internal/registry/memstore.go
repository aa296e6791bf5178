package registry

import (
	"sync"

	"github.com/wahke/ET-Masterserver/internal/wire"
)

// MemStore is an in-memory Store implementation used by tests; it mirrors
// BoltStore's semantics without touching disk.
type MemStore struct {
	mu      sync.RWMutex
	records map[wire.Endpoint]ServerRecord
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[wire.Endpoint]ServerRecord)}
}

func (s *MemStore) Get(ep wire.Endpoint) (ServerRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ep]
	return rec, ok, nil
}

func (s *MemStore) Put(rec ServerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Endpoint] = rec
	return nil
}

func (s *MemStore) All() ([]ServerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ServerRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemStore) Close() error { return nil }

package kb

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory knowledge base, used in tests and when no
// durable KB is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemory creates an empty in-memory knowledge base.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Append adds a record.
func (s *MemoryStore) Append(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *r
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.records = append(s.records, rec)
	return nil
}

// Exists reports whether any record with the given key exists.
func (s *MemoryStore) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.Key == key {
			return true, nil
		}
	}
	return false, nil
}

// Get returns all records for a key, oldest first.
func (s *MemoryStore) Get(key string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.Key == key {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListByTask returns all records appended under a task, oldest first.
func (s *MemoryStore) ListByTask(taskID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	return out, nil
}

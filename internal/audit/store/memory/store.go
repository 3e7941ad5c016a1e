package memory

import (
	"context"
	"sync"

	"phoneintel/internal/audit"
)

// Store keeps records in insertion order. Used in tests and single-process
// deployments that mirror to Kafka for retention.
type Store struct {
	mu      sync.RWMutex
	records []audit.Record
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) ListByCaller(_ context.Context, caller string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Record{}
	for _, r := range s.records {
		if r.Caller == caller {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(_ context.Context, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]audit.Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// All returns a copy of every record in insertion order.
func (s *Store) All() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Record{}, s.records...)
}

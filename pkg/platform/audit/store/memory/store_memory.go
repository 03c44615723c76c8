package memory

import (
	"context"
	"sync"
	"time"

	audit "enrollment/pkg/platform/audit"
)

// InMemoryStore keeps audit records in insertion order. IDs are assigned from
// a counter under the same lock as the append so they stay monotonic.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
	nextID  int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.nextID = 1
}

func (s *InMemoryStore) Append(_ context.Context, record audit.Record) (audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = s.nextID
	s.nextID++
	s.records = append(s.records, record)
	return record, nil
}

func (s *InMemoryStore) ListByEventType(_ context.Context, eventType audit.EventType) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool { return r.EventType == eventType }), nil
}

func (s *InMemoryStore) ListByUserID(_ context.Context, userID int64) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool { return r.UserID != nil && *r.UserID == userID }), nil
}

func (s *InMemoryStore) ListByUserEmail(_ context.Context, email string) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool { return r.UserEmail == email }), nil
}

func (s *InMemoryStore) ListByTimeRange(_ context.Context, start, end time.Time) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return !r.Timestamp.Before(start) && !r.Timestamp.After(end)
	}), nil
}

// ListAll returns every record (admin-only operation)
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Record, error) {
	return s.filter(func(audit.Record) bool { return true }), nil
}

func (s *InMemoryStore) filter(match func(audit.Record) bool) []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []audit.Record{}
	for _, r := range s.records {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	once    map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		records: make(map[string]Record),
		once:    make(map[string]time.Time),
		now:     now,
	}
}

func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Version = CurrentSchemaVersion
	m.records[rec.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Expired(m.now()) {
		delete(m.records, id)
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteSubject(_ context.Context, subjectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, rec := range m.records {
		if rec.SubjectID != subjectID {
			continue
		}
		if !rec.Expired(now) {
			n++
		}
		delete(m.records, id)
	}
	return n, nil
}

func (m *MemoryStore) ConsumeOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.once[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.once[key] = now.Add(ttl)
	return true, nil
}

// Len reports the number of records held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

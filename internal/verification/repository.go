package verification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository persists verification records.
type Repository interface {
	Create(ctx context.Context, r *Record) error

	// Latest returns the most recently created Pending record for email.
	Latest(ctx context.Context, email string) (*Record, error)

	// FindVerified returns the Verified record with the given id and email.
	FindVerified(ctx context.Context, id, email string) (*Record, error)

	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id string) error

	// CountSince counts records created for email at or after since.
	CountSince(ctx context.Context, email string, since time.Time) (int, error)
}

// MemoryRepository is an in-memory Repository for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*Record)}
}

// Create stores a copy of r.
func (m *MemoryRepository) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = copyRecord(r)
	return nil
}

// Latest returns the newest Pending record for email.
func (m *MemoryRepository) Latest(_ context.Context, email string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*Record
	for _, r := range m.records {
		if r.Email == email && r.State == StatePending {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.After(pending[j].CreatedAt) })
	return copyRecord(pending[0]), nil
}

// FindVerified returns the Verified record matching id and email.
func (m *MemoryRepository) FindVerified(_ context.Context, id, email string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok || r.Email != email || r.State != StateVerified {
		return nil, ErrNotFound
	}
	return copyRecord(r), nil
}

// Update replaces the stored record.
func (m *MemoryRepository) Update(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		return ErrNotFound
	}
	m.records[r.ID] = copyRecord(r)
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// CountSince counts records for email created at or after since.
func (m *MemoryRepository) CountSince(_ context.Context, email string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.records {
		if r.Email == email && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func copyRecord(r *Record) *Record {
	c := *r
	if r.VerifiedAt != nil {
		v := *r.VerifiedAt
		c.VerifiedAt = &v
	}
	return &c
}

package store

import (
	"context"
	"fmt"
	"sync"

	"signinguard/internal/signin/models"
)

// MemoryStore keeps the sign-in log in process memory. Suitable for tests
// and single-instance development.
type MemoryStore struct {
	mu        sync.RWMutex
	bySubject map[string][]*models.Record
	ids       map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySubject: make(map[string][]*models.Record),
		ids:       make(map[string]struct{}),
	}
}

func (s *MemoryStore) Append(ctx context.Context, record *models.Record) error {
	if err := validate(record); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[record.ID]; exists {
		return fmt.Errorf("append %s: %w", record.ID, ErrDuplicate)
	}
	s.ids[record.ID] = struct{}{}
	s.bySubject[record.SubjectID] = append(s.bySubject[record.SubjectID], cloneRecord(record))
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter models.ListFilter, page models.Page) (*models.ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize()

	s.mu.RLock()
	matched := make([]*models.Record, 0, len(s.bySubject[filter.SubjectID]))
	for _, r := range s.bySubject[filter.SubjectID] {
		if filter.Matches(r) {
			matched = append(matched, cloneRecord(r))
		}
	}
	s.mu.RUnlock()

	newestFirst(matched)
	return paginate(matched, page), nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

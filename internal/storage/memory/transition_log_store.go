package memory

import (
	"context"
	"sort"
	"sync"

	"position-core/internal/domain"
	"position-core/internal/storage"
)

// TransitionLogStore is an in-memory implementation of
// storage.TransitionLogStore.
type TransitionLogStore struct {
	mu      sync.RWMutex
	entries []*domain.TransitionLogEntry
}

// NewTransitionLogStore creates a new in-memory transition log store.
func NewTransitionLogStore() *TransitionLogStore {
	return &TransitionLogStore{}
}

var _ storage.TransitionLogStore = (*TransitionLogStore)(nil)

// cloneEntry copies an entry, including its metadata map.
func cloneEntry(e *domain.TransitionLogEntry) *domain.TransitionLogEntry {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Append adds one entry to the log.
func (s *TransitionLogStore) Append(_ context.Context, e *domain.TransitionLogEntry) error {
	if e == nil || e.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, cloneEntry(e))
	return nil
}

// GetByPositionID retrieves all entries for a position, creation time ASC.
func (s *TransitionLogStore) GetByPositionID(_ context.Context, positionID string) ([]*domain.TransitionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransitionLogEntry
	for _, e := range s.entries {
		if e.PositionID == positionID {
			result = append(result, cloneEntry(e))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

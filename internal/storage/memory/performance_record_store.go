package memory

import (
	"context"
	"sync"

	"position-core/internal/domain"
	"position-core/internal/storage"
)

// PerformanceRecordStore is an in-memory implementation of
// storage.PerformanceRecordStore.
type PerformanceRecordStore struct {
	mu sync.RWMutex
	// collection -> document id -> record
	data map[string]map[string]*domain.PerformanceRecord
}

// NewPerformanceRecordStore creates a new in-memory performance record store.
func NewPerformanceRecordStore() *PerformanceRecordStore {
	return &PerformanceRecordStore{
		data: make(map[string]map[string]*domain.PerformanceRecord),
	}
}

var _ storage.PerformanceRecordStore = (*PerformanceRecordStore)(nil)

// cloneRecord deep-copies a record so callers cannot mutate stored state.
func cloneRecord(r *domain.PerformanceRecord) *domain.PerformanceRecord {
	cp := *r
	if r.LiquidatedPositionIDs != nil {
		cp.LiquidatedPositionIDs = make([]string, len(r.LiquidatedPositionIDs))
		copy(cp.LiquidatedPositionIDs, r.LiquidatedPositionIDs)
	}
	if r.Stats.ProfitLossRatio != nil {
		v := *r.Stats.ProfitLossRatio
		cp.Stats.ProfitLossRatio = &v
	}
	if r.PeriodStart != nil {
		v := *r.PeriodStart
		cp.PeriodStart = &v
	}
	if r.PeriodEnd != nil {
		v := *r.PeriodEnd
		cp.PeriodEnd = &v
	}
	return &cp
}

// Get retrieves a record. Returns ErrNotFound if not exists.
func (s *PerformanceRecordStore) Get(_ context.Context, collection, documentID string) (*domain.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[collection][documentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(r), nil
}

// Create adds a new record. Returns ErrDuplicateKey if the document id exists.
func (s *PerformanceRecordStore) Create(_ context.Context, collection string, record *domain.PerformanceRecord) error {
	if record == nil || collection == "" || record.UserID == "" || record.PeriodKey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.data[collection]
	if !ok {
		docs = make(map[string]*domain.PerformanceRecord)
		s.data[collection] = docs
	}

	id := record.DocumentID()
	if _, exists := docs[id]; exists {
		return storage.ErrDuplicateKey
	}

	docs[id] = cloneRecord(record)
	return nil
}

// Update replaces an existing record. Returns ErrNotFound if absent.
func (s *PerformanceRecordStore) Update(_ context.Context, collection, documentID string, record *domain.PerformanceRecord) error {
	if record == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[collection][documentID]; !exists {
		return storage.ErrNotFound
	}

	s.data[collection][documentID] = cloneRecord(record)
	return nil
}

// CompareAndSwap replaces the record only if the stored version still
// equals expectedVersion, then bumps the version.
func (s *PerformanceRecordStore) CompareAndSwap(_ context.Context, collection, documentID string, expectedVersion int64, record *domain.PerformanceRecord) error {
	if record == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[collection][documentID]
	if !exists {
		return storage.ErrNotFound
	}
	if current.Version != expectedVersion {
		return storage.ErrConflict
	}

	cp := cloneRecord(record)
	cp.Version = expectedVersion + 1
	s.data[collection][documentID] = cp
	return nil
}

package storage

import (
	"context"
	"time"

	"position-core/internal/domain"
)

// PerformanceRecordStore is the keyed document store the performance
// aggregator reads and writes. Records live in per-period collections
// (default {period}_performance) under document id {userId}_{periodKey}.
//
// Plain Update exists for callers that own their concurrency; the
// aggregator itself only merges through CompareAndSwap so two
// concurrent liquidations resolving to the same bucket cannot silently
// drop an update.
type PerformanceRecordStore interface {
	// Get retrieves a record. Returns ErrNotFound if not exists.
	Get(ctx context.Context, collection, documentID string) (*domain.PerformanceRecord, error)

	// Create adds a new record. Returns ErrDuplicateKey if the document
	// id already exists; it never overwrites.
	Create(ctx context.Context, collection string, record *domain.PerformanceRecord) error

	// Update replaces an existing record unconditionally. Returns
	// ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, documentID string, record *domain.PerformanceRecord) error

	// CompareAndSwap replaces the record only if the stored version
	// still equals expectedVersion, then bumps the version. Returns
	// ErrConflict on version mismatch, ErrNotFound if absent.
	CompareAndSwap(ctx context.Context, collection, documentID string, expectedVersion int64, record *domain.PerformanceRecord) error
}

// PositionStore provides access to tracked positions for the
// reconciliation sweep.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if the
	// position id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// ListOpen retrieves all positions in a non-terminal lifecycle
	// status, ordered by position id ASC.
	ListOpen(ctx context.Context) ([]*domain.Position, error)

	// UpdateStatus moves a position from an expected current status to
	// a new one, stamping StatusChangedAt with at. Returns ErrConflict
	// if the stored status no longer matches from, so a racing writer
	// is surfaced instead of silently overwritten.
	UpdateStatus(ctx context.Context, positionID string, from, to domain.LifecycleStatus, at time.Time) error
}

// TransitionLogStore persists the append-only lifecycle audit log.
type TransitionLogStore interface {
	// Append adds one entry. Entries are never updated or deleted.
	Append(ctx context.Context, e *domain.TransitionLogEntry) error

	// GetByPositionID retrieves all entries for a position, ordered by
	// creation time ASC.
	GetByPositionID(ctx context.Context, positionID string) ([]*domain.TransitionLogEntry, error)
}

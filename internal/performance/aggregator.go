// Package performance folds closed-position results into five rolling
// statistics windows: daily, weekly, monthly, yearly and overall.
package performance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"position-core/internal/domain"
	"position-core/internal/observability"
	"position-core/internal/storage"
)

// defaultMergeRetries bounds compare-and-swap retries per period before
// the period counts as failed.
const defaultMergeRetries = 5

// Config configures an Aggregator.
type Config struct {
	// Store is the performance record store. Required.
	Store storage.PerformanceRecordStore

	// CollectionNames overrides the default {period}_performance
	// collection name per period.
	CollectionNames map[domain.Period]string

	// Clock supplies "now" for createdAt/updatedAt stamping. Defaults
	// to time.Now; injectable for deterministic tests.
	Clock func() time.Time

	// MergeRetries bounds CAS retries per period. Defaults to 5.
	MergeRetries int

	Logger *log.Logger
}

// Result reports the outcome of processing one liquidation event.
// Periods that failed are simply absent from the slices; only a failure
// before the per-period loop marks the whole call unsuccessful.
type Result struct {
	// UpdatedPeriods lists every period whose record was written,
	// whether created or merged, in processing order.
	UpdatedPeriods []domain.Period

	// CreatedRecords and UpdatedRecords hold collection-qualified
	// document ids ("daily_performance/u1_2025-01-02").
	CreatedRecords []string
	UpdatedRecords []string

	Success bool
	Error   string
}

// Aggregator folds liquidation events into per-period performance
// records. It owns no state; all records live in the injected store.
type Aggregator struct {
	store        storage.PerformanceRecordStore
	collections  map[domain.Period]string
	clock        func() time.Time
	mergeRetries int
	logger       *log.Logger
}

// New creates an aggregator from cfg.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("performance: store is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	retries := cfg.MergeRetries
	if retries <= 0 {
		retries = defaultMergeRetries
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[performance] ", log.LstdFlags)
	}

	collections := make(map[domain.Period]string, len(domain.AllPeriods))
	for _, p := range domain.AllPeriods {
		collections[p] = DefaultCollectionName(p)
	}
	for p, name := range cfg.CollectionNames {
		if !p.Valid() {
			return nil, fmt.Errorf("performance: collection override for unknown period %q", p)
		}
		if name == "" {
			return nil, fmt.Errorf("performance: empty collection override for period %q", p)
		}
		collections[p] = name
	}

	return &Aggregator{
		store:        cfg.Store,
		collections:  collections,
		clock:        clock,
		mergeRetries: retries,
		logger:       logger,
	}, nil
}

// Process folds one liquidation into all five period buckets. Each
// period is an independent read-modify-write; a store failure in one
// period is logged and skipped, never aborting the remaining periods.
// The caller always gets a Result, never a panic or error value:
// pre-loop validation failures surface as Success=false plus a message.
//
// Process does not deduplicate: replaying the same liquidation counts
// the trade twice. At-most-once delivery is the caller's contract.
func (a *Aggregator) Process(ctx context.Context, info domain.LiquidationInfo) *Result {
	result := &Result{}

	if err := info.Validate(); err != nil {
		result.Error = fmt.Sprintf("invalid liquidation info: %v", err)
		return result
	}

	for _, period := range domain.AllPeriods {
		created, docRef, err := a.processPeriod(ctx, &info, period)
		if err != nil {
			a.logger.Printf("period %s update failed for position %s: %v", period, info.PositionID, err)
			observability.RecordPeriodFailure(string(period))
			continue
		}

		result.UpdatedPeriods = append(result.UpdatedPeriods, period)
		if created {
			result.CreatedRecords = append(result.CreatedRecords, docRef)
			observability.RecordPeriodCreated(string(period))
		} else {
			result.UpdatedRecords = append(result.UpdatedRecords, docRef)
			observability.RecordPeriodMerged(string(period))
		}
	}

	result.Success = true
	observability.RecordLiquidationProcessed()
	return result
}

// processPeriod runs one read-modify-write cycle. Returns whether a new
// record was created and the collection-qualified document reference.
func (a *Aggregator) processPeriod(ctx context.Context, info *domain.LiquidationInfo, period domain.Period) (created bool, docRef string, err error) {
	collection := a.collections[period]
	periodKey := PeriodKey(period, info.ClosedAt)
	documentID := domain.PerformanceDocumentID(info.UserID, periodKey)
	docRef = collection + "/" + documentID

	for attempt := 0; attempt <= a.mergeRetries; attempt++ {
		existing, err := a.store.Get(ctx, collection, documentID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			record := a.newRecord(info, period, periodKey)
			err = a.store.Create(ctx, collection, record)
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Lost the create race; merge on the next attempt.
				continue
			}
			if err != nil {
				return false, docRef, fmt.Errorf("create record: %w", err)
			}
			return true, docRef, nil

		case err != nil:
			return false, docRef, fmt.Errorf("get record: %w", err)

		default:
			merged := a.mergeRecord(existing, info)
			err = a.store.CompareAndSwap(ctx, collection, documentID, existing.Version, merged)
			if errors.Is(err, storage.ErrConflict) {
				// A concurrent liquidation won; re-read and retry so
				// neither contribution is lost.
				observability.RecordMergeConflict()
				continue
			}
			if err != nil {
				return false, docRef, fmt.Errorf("merge record: %w", err)
			}
			return false, docRef, nil
		}
	}

	return false, docRef, fmt.Errorf("merge retries exhausted after %d attempts", a.mergeRetries+1)
}

// newRecord builds the initial record for a period bucket.
func (a *Aggregator) newRecord(info *domain.LiquidationInfo, period domain.Period, periodKey string) *domain.PerformanceRecord {
	now := a.clock()
	start, end := PeriodBounds(period, info.ClosedAt)

	return &domain.PerformanceRecord{
		UserID:                info.UserID,
		Period:                period,
		PeriodKey:             periodKey,
		Stats:                 initialStats(info),
		LiquidatedPositionIDs: []string{info.PositionID},
		PeriodStart:           start,
		PeriodEnd:             end,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// mergeRecord folds the liquidation into a copy of the existing record.
// The audit list is append-only; it is not consulted for deduplication.
func (a *Aggregator) mergeRecord(existing *domain.PerformanceRecord, info *domain.LiquidationInfo) *domain.PerformanceRecord {
	merged := *existing
	merged.Stats = mergeStats(existing.Stats, info)
	merged.LiquidatedPositionIDs = append(append([]string(nil), existing.LiquidatedPositionIDs...), info.PositionID)
	merged.UpdatedAt = a.clock()
	return &merged
}

package performance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position-core/internal/domain"
	"position-core/internal/storage"
	"position-core/internal/storage/memory"
)

// failingStore wraps a real store and fails every operation touching
// the configured collections.
type failingStore struct {
	storage.PerformanceRecordStore
	failCollections map[string]bool
}

var errStoreDown = errors.New("store unavailable")

func (s *failingStore) Get(ctx context.Context, collection, documentID string) (*domain.PerformanceRecord, error) {
	if s.failCollections[collection] {
		return nil, errStoreDown
	}
	return s.PerformanceRecordStore.Get(ctx, collection, documentID)
}

func (s *failingStore) Create(ctx context.Context, collection string, record *domain.PerformanceRecord) error {
	if s.failCollections[collection] {
		return errStoreDown
	}
	return s.PerformanceRecordStore.Create(ctx, collection, record)
}

func (s *failingStore) CompareAndSwap(ctx context.Context, collection, documentID string, expectedVersion int64, record *domain.PerformanceRecord) error {
	if s.failCollections[collection] {
		return errStoreDown
	}
	return s.PerformanceRecordStore.CompareAndSwap(ctx, collection, documentID, expectedVersion, record)
}

// conflictingStore forces the first n CompareAndSwap calls to conflict,
// mutating the underlying record so a retry sees fresh state.
type conflictingStore struct {
	storage.PerformanceRecordStore
	remaining  int
	interloper *domain.LiquidationInfo
	clock      func() time.Time
}

func (s *conflictingStore) CompareAndSwap(ctx context.Context, collection, documentID string, expectedVersion int64, record *domain.PerformanceRecord) error {
	if s.remaining > 0 {
		s.remaining--
		current, err := s.PerformanceRecordStore.Get(ctx, collection, documentID)
		if err != nil {
			return err
		}
		current.Stats = mergeStats(current.Stats, s.interloper)
		current.LiquidatedPositionIDs = append(current.LiquidatedPositionIDs, s.interloper.PositionID)
		current.UpdatedAt = s.clock()
		if err := s.PerformanceRecordStore.CompareAndSwap(ctx, collection, documentID, current.Version, current); err != nil {
			return err
		}
		return storage.ErrConflict
	}
	return s.PerformanceRecordStore.CompareAndSwap(ctx, collection, documentID, expectedVersion, record)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestAggregator(t *testing.T, store storage.PerformanceRecordStore) *Aggregator {
	t.Helper()
	agg, err := New(Config{
		Store: store,
		Clock: fixedClock(time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return agg
}

func testLiquidation() domain.LiquidationInfo {
	return domain.LiquidationInfo{
		UserID:     "u1",
		PositionID: "p1",
		Symbol:     "BTC",
		Name:       "Bitcoin",
		OpenPrice:  70000,
		ClosePrice: 74900,
		Amount:     10,
		OpenedAt:   time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		ClosedAt:   time.Date(2025, 1, 2, 11, 30, 0, 0, time.UTC),
		Fee:        1000,
		RealizedPL: 49000,
		PLRatio:    7.14,
	}
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_RejectsBadCollectionOverrides(t *testing.T) {
	store := memory.NewPerformanceRecordStore()

	_, err := New(Config{
		Store:           store,
		CollectionNames: map[domain.Period]string{domain.Period("hourly"): "hourly_performance"},
	})
	assert.Error(t, err)

	_, err = New(Config{
		Store:           store,
		CollectionNames: map[domain.Period]string{domain.PeriodDaily: ""},
	})
	assert.Error(t, err)
}

func TestProcess_CreatesAllFivePeriods(t *testing.T) {
	store := memory.NewPerformanceRecordStore()
	agg := newTestAggregator(t, store)

	result := agg.Process(context.Background(), testLiquidation())

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, domain.AllPeriods, result.UpdatedPeriods)
	assert.Len(t, result.CreatedRecords, 5)
	assert.Empty(t, result.UpdatedRecords)
	assert.Contains(t, result.CreatedRecords, "daily_performance/u1_2025-01-02")
	assert.Contains(t, result.CreatedRecords, "weekly_performance/u1_2025-W01")
	assert.Contains(t, result.CreatedRecords, "monthly_performance/u1_2025-01")
	assert.Contains(t, result.CreatedRecords, "yearly_performance/u1_2025")
	assert.Contains(t, result.CreatedRecords, "overall_performance/u1_overall")

	daily, err := store.Get(context.Background(), "daily_performance", "u1_2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, "u1", daily.UserID)
	assert.Equal(t, domain.PeriodDaily, daily.Period)
	assert.Equal(t, "2025-01-02", daily.PeriodKey)
	assert.Equal(t, 1, daily.Stats.TotalTrades)
	assert.Equal(t, 49000.0, daily.Stats.TotalRealizedPL)
	assert.Equal(t, []string{"p1"}, daily.LiquidatedPositionIDs)
	require.NotNil(t, daily.PeriodStart)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), *daily.PeriodStart)

	overall, err := store.Get(context.Background(), "overall_performance", "u1_overall")
	require.NoError(t, err)
	assert.Nil(t, overall.PeriodStart)
	assert.Nil(t, overall.PeriodEnd)
}

func TestProcess_MergesIntoExistingRecords(t *testing.T) {
	store := memory.NewPerformanceRecordStore()
	agg := newTestAggregator(t, store)

	first := testLiquidation()
	require.True(t, agg.Process(context.Background(), first).Success)

	second := testLiquidation()
	second.PositionID = "p2"
	second.OpenPrice = 50000
	second.ClosePrice = 48000
	second.Amount = 5
	second.Fee = 500
	second.RealizedPL = -10000
	second.PLRatio = -2.0

	result := agg.Process(context.Background(), second)

	assert.True(t, result.Success)
	assert.Empty(t, result.CreatedRecords)
	assert.Len(t, result.UpdatedRecords, 5)
	assert.Contains(t, result.UpdatedRecords, "daily_performance/u1_2025-01-02")

	daily, err := store.Get(context.Background(), "daily_performance", "u1_2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, 2, daily.Stats.TotalTrades)
	assert.Equal(t, 50.0, daily.Stats.WinRate)
	assert.Equal(t, 39000.0, daily.Stats.TotalRealizedPL)
	assert.Equal(t, 1500.0, daily.Stats.TotalFee)
	assert.Equal(t, 950000.0, daily.Stats.TotalInvestment)
	assert.InDelta(t, 2.57, daily.Stats.AveragePLRatio, 1e-9)
	require.NotNil(t, daily.Stats.ProfitLossRatio)
	assert.InDelta(t, 4.9, *daily.Stats.ProfitLossRatio, 1e-9)
	assert.Equal(t, []string{"p1", "p2"}, daily.LiquidatedPositionIDs)
	assert.Equal(t, int64(1), daily.Version)
}

func TestProcess_ReplayIsNotDeduplicated(t *testing.T) {
	store := memory.NewPerformanceRecordStore()
	agg := newTestAggregator(t, store)

	info := testLiquidation()
	require.True(t, agg.Process(context.Background(), info).Success)
	require.True(t, agg.Process(context.Background(), info).Success)

	daily, err := store.Get(context.Background(), "daily_performance", "u1_2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, 2, daily.Stats.TotalTrades)
	assert.Equal(t, []string{"p1", "p1"}, daily.LiquidatedPositionIDs)
}

func TestProcess_InvalidInfoFailsBeforeAnyWrite(t *testing.T) {
	store := memory.NewPerformanceRecordStore()
	agg := newTestAggregator(t, store)

	info := testLiquidation()
	info.Amount = 0

	result := agg.Process(context.Background(), info)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.UpdatedPeriods)

	_, err := store.Get(context.Background(), "daily_performance", "u1_2025-01-02")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcess_OneFailingPeriodDoesNotAbortOthers(t *testing.T) {
	store := &failingStore{
		PerformanceRecordStore: memory.NewPerformanceRecordStore(),
		failCollections:        map[string]bool{"weekly_performance": true},
	}
	agg := newTestAggregator(t, store)

	result := agg.Process(context.Background(), testLiquidation())

	assert.True(t, result.Success, "per-period failures do not mark the call unsuccessful")
	assert.Equal(t, []domain.Period{
		domain.PeriodDaily,
		domain.PeriodMonthly,
		domain.PeriodYearly,
		domain.PeriodOverall,
	}, result.UpdatedPeriods)
	assert.Len(t, result.CreatedRecords, 4)

	_, err := store.PerformanceRecordStore.Get(context.Background(), "weekly_performance", "u1_2025-W01")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcess_RetriesCompareAndSwapConflicts(t *testing.T) {
	interloper := testLiquidation()
	interloper.PositionID = "p-racer"

	inner := memory.NewPerformanceRecordStore()
	agg := newTestAggregator(t, inner)
	require.True(t, agg.Process(context.Background(), testLiquidation()).Success)

	store := &conflictingStore{
		PerformanceRecordStore: inner,
		remaining:              1,
		interloper:             &interloper,
		clock:                  fixedClock(time.Date(2025, 1, 2, 12, 0, 1, 0, time.UTC)),
	}
	racer, err := New(Config{
		Store: store,
		Clock: fixedClock(time.Date(2025, 1, 2, 12, 0, 2, 0, time.UTC)),
	})
	require.NoError(t, err)

	second := testLiquidation()
	second.PositionID = "p2"
	result := racer.Process(context.Background(), second)

	require.True(t, result.Success)
	assert.Contains(t, result.UpdatedRecords, "daily_performance/u1_2025-01-02")

	// Neither the interloper's write nor ours was lost.
	daily, err := inner.Get(context.Background(), "daily_performance", "u1_2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, 3, daily.Stats.TotalTrades)
	assert.ElementsMatch(t, []string{"p1", "p-racer", "p2"}, daily.LiquidatedPositionIDs)
}

func TestProcess_GivesUpAfterRetryBudget(t *testing.T) {
	interloper := testLiquidation()
	interloper.PositionID = "p-racer"

	inner := memory.NewPerformanceRecordStore()
	seed := newTestAggregator(t, inner)
	require.True(t, seed.Process(context.Background(), testLiquidation()).Success)

	store := &conflictingStore{
		PerformanceRecordStore: inner,
		remaining:              100, // never stops conflicting
		interloper:             &interloper,
		clock:                  fixedClock(time.Date(2025, 1, 2, 12, 0, 1, 0, time.UTC)),
	}
	racer, err := New(Config{
		Store:        store,
		Clock:        fixedClock(time.Date(2025, 1, 2, 12, 0, 2, 0, time.UTC)),
		MergeRetries: 2,
	})
	require.NoError(t, err)

	second := testLiquidation()
	second.PositionID = "p2"
	result := racer.Process(context.Background(), second)

	// Every period bucket keeps conflicting, so none succeed; the call
	// itself still completes.
	assert.True(t, result.Success)
	assert.Empty(t, result.UpdatedPeriods)
}

func TestProcess_CollectionOverrides(t *testing.T) {
	store := memory.NewPerformanceRecordStore()
	agg, err := New(Config{
		Store: store,
		Clock: fixedClock(time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)),
		CollectionNames: map[domain.Period]string{
			domain.PeriodDaily: "perf_daily_v2",
		},
	})
	require.NoError(t, err)

	result := agg.Process(context.Background(), testLiquidation())
	require.True(t, result.Success)
	assert.Contains(t, result.CreatedRecords, "perf_daily_v2/u1_2025-01-02")

	_, err = store.Get(context.Background(), "perf_daily_v2", "u1_2025-01-02")
	assert.NoError(t, err)
	_, err = store.Get(context.Background(), "daily_performance", "u1_2025-01-02")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

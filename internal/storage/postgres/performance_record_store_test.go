package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position-core/internal/domain"
	"position-core/internal/storage"
)

func testRecord(userID, periodKey string) *domain.PerformanceRecord {
	now := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	return &domain.PerformanceRecord{
		UserID:    userID,
		Period:    domain.PeriodDaily,
		PeriodKey: periodKey,
		Stats: domain.PerformanceStats{
			TotalTrades:     1,
			WinCount:        1,
			WinRate:         100,
			TotalRealizedPL: 49000,
			AveragePL:       49000,
			AveragePLRatio:  7.14,
			MaxProfit:       49000,
			TotalFee:        1000,
			TotalInvestment: 700000,
			TotalProfit:     49000,
		},
		LiquidatedPositionIDs: []string{"pos-001"},
		PeriodStart:           &start,
		PeriodEnd:             &end,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func TestPerformanceRecordStore_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceRecordStore(pool)
	ctx := context.Background()

	rec := testRecord("user-001", "2025-01-02")
	require.NoError(t, store.Create(ctx, "daily_performance", rec))

	retrieved, err := store.Get(ctx, "daily_performance", "user-001_2025-01-02")
	require.NoError(t, err)

	assert.Equal(t, rec.UserID, retrieved.UserID)
	assert.Equal(t, domain.PeriodDaily, retrieved.Period)
	assert.Equal(t, rec.PeriodKey, retrieved.PeriodKey)
	assert.Equal(t, rec.Stats.TotalTrades, retrieved.Stats.TotalTrades)
	assert.Equal(t, rec.Stats.WinRate, retrieved.Stats.WinRate)
	assert.Equal(t, rec.Stats.TotalInvestment, retrieved.Stats.TotalInvestment)
	assert.Nil(t, retrieved.Stats.ProfitLossRatio)
	assert.Equal(t, []string{"pos-001"}, retrieved.LiquidatedPositionIDs)
	require.NotNil(t, retrieved.PeriodStart)
	assert.True(t, rec.PeriodStart.Equal(*retrieved.PeriodStart))
	assert.Equal(t, int64(0), retrieved.Version)
}

func TestPerformanceRecordStore_CreateDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceRecordStore(pool)
	ctx := context.Background()

	rec := testRecord("user-001", "2025-01-02")
	require.NoError(t, store.Create(ctx, "daily_performance", rec))

	err := store.Create(ctx, "daily_performance", rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same document id in another collection is a distinct record.
	require.NoError(t, store.Create(ctx, "weekly_performance", rec))
}

func TestPerformanceRecordStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceRecordStore(pool)

	_, err := store.Get(context.Background(), "daily_performance", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPerformanceRecordStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceRecordStore(pool)
	ctx := context.Background()

	rec := testRecord("user-001", "2025-01-02")
	require.NoError(t, store.Create(ctx, "daily_performance", rec))

	ratio := 4.9
	rec.Stats.TotalTrades = 2
	rec.Stats.ProfitLossRatio = &ratio
	rec.LiquidatedPositionIDs = []string{"pos-001", "pos-002"}
	require.NoError(t, store.Update(ctx, "daily_performance", "user-001_2025-01-02", rec))

	retrieved, err := store.Get(ctx, "daily_performance", "user-001_2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, 2, retrieved.Stats.TotalTrades)
	require.NotNil(t, retrieved.Stats.ProfitLossRatio)
	assert.Equal(t, 4.9, *retrieved.Stats.ProfitLossRatio)
	assert.Equal(t, []string{"pos-001", "pos-002"}, retrieved.LiquidatedPositionIDs)

	err = store.Update(ctx, "daily_performance", "missing", rec)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPerformanceRecordStore_CompareAndSwap(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "daily_performance", testRecord("user-001", "2025-01-02")))

	retrieved, err := store.Get(ctx, "daily_performance", "user-001_2025-01-02")
	require.NoError(t, err)
	retrieved.Stats.TotalTrades = 2

	err = store.CompareAndSwap(ctx, "daily_performance", "user-001_2025-01-02", retrieved.Version, retrieved)
	require.NoError(t, err)

	bumped, err := store.Get(ctx, "daily_performance", "user-001_2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bumped.Version)
	assert.Equal(t, 2, bumped.Stats.TotalTrades)

	// Stale version loses.
	err = store.CompareAndSwap(ctx, "daily_performance", "user-001_2025-01-02", retrieved.Version, retrieved)
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = store.CompareAndSwap(ctx, "daily_performance", "missing", 0, retrieved)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

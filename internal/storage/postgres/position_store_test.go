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

func testPosition(id string, status domain.LifecycleStatus) *domain.Position {
	now := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	return &domain.Position{
		PositionID:      id,
		UserID:          "user-001",
		Symbol:          "BTC",
		Name:            "Bitcoin",
		OrderID:         "order-" + id,
		Status:          status,
		OpenPrice:       70000,
		Amount:          10,
		OpenedAt:        now,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPositionStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := testPosition("pos-001", domain.StatusConfirmed)
	require.NoError(t, store.Insert(ctx, p))

	retrieved, err := store.GetByID(ctx, "pos-001")
	require.NoError(t, err)

	assert.Equal(t, p.PositionID, retrieved.PositionID)
	assert.Equal(t, p.UserID, retrieved.UserID)
	assert.Equal(t, p.Symbol, retrieved.Symbol)
	assert.Equal(t, p.OrderID, retrieved.OrderID)
	assert.Equal(t, domain.StatusConfirmed, retrieved.Status)
	assert.Equal(t, p.OpenPrice, retrieved.OpenPrice)
	assert.Equal(t, p.Amount, retrieved.Amount)
	assert.True(t, p.StatusChangedAt.Equal(retrieved.StatusChangedAt))
}

func TestPositionStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := testPosition("pos-dup", domain.StatusConfirmed)
	require.NoError(t, store.Insert(ctx, p))

	err := store.Insert(ctx, p)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPositionStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_ListOpen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPosition("pos-c", domain.StatusExitOrderPending)))
	require.NoError(t, store.Insert(ctx, testPosition("pos-a", domain.StatusConfirmed)))
	require.NoError(t, store.Insert(ctx, testPosition("pos-b", domain.StatusLiquidated)))
	require.NoError(t, store.Insert(ctx, testPosition("pos-d", domain.StatusExpired)))

	open, err := store.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "pos-a", open[0].PositionID)
	assert.Equal(t, "pos-c", open[1].PositionID)
}

func TestPositionStore_UpdateStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPosition("pos-001", domain.StatusConfirmed)))

	at := time.Date(2025, 1, 2, 11, 0, 0, 0, time.UTC)
	err := store.UpdateStatus(ctx, "pos-001", domain.StatusConfirmed, domain.StatusExitOrderPending, at)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "pos-001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExitOrderPending, retrieved.Status)
	assert.True(t, at.Equal(retrieved.StatusChangedAt))
	assert.True(t, at.Equal(retrieved.UpdatedAt))
}

func TestPositionStore_UpdateStatusConflict(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPosition("pos-001", domain.StatusConfirmed)))

	at := time.Now().UTC()
	err := store.UpdateStatus(ctx, "pos-001", domain.StatusExitOrderPending, domain.StatusLiquidated, at)
	assert.ErrorIs(t, err, storage.ErrConflict)

	retrieved, err := store.GetByID(ctx, "pos-001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, retrieved.Status)
}

func TestPositionStore_UpdateStatusNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)

	err := store.UpdateStatus(context.Background(), "missing",
		domain.StatusConfirmed, domain.StatusExpired, time.Now().UTC())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

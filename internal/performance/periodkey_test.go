package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position-core/internal/domain"
)

func TestPeriodKey_CalendarPeriods(t *testing.T) {
	closedAt := time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-07", PeriodKey(domain.PeriodDaily, closedAt))
	assert.Equal(t, "2025-03", PeriodKey(domain.PeriodMonthly, closedAt))
	assert.Equal(t, "2025", PeriodKey(domain.PeriodYearly, closedAt))
	assert.Equal(t, "overall", PeriodKey(domain.PeriodOverall, closedAt))
}

func TestPeriodKey_ISOWeek(t *testing.T) {
	// 2025-01-01 is a Wednesday inside ISO week 1 of 2025.
	jan1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W01", PeriodKey(domain.PeriodWeekly, jan1))

	// 2024-12-31 is a Tuesday but already belongs to ISO week 1 of 2025.
	dec31 := time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W01", PeriodKey(domain.PeriodWeekly, dec31))

	// Single-digit weeks are zero-padded.
	feb := time.Date(2025, 2, 18, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W08", PeriodKey(domain.PeriodWeekly, feb))

	// A year-end date that stays in its own ISO year.
	late := time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC) // Monday of 2026-W53
	assert.Equal(t, "2026-W53", PeriodKey(domain.PeriodWeekly, late))
}

func TestPeriodBounds(t *testing.T) {
	// A Wednesday afternoon.
	closedAt := time.Date(2025, 1, 1, 15, 45, 0, 0, time.UTC)

	start, end := PeriodBounds(domain.PeriodDaily, closedAt)
	require.NotNil(t, start)
	require.NotNil(t, end)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *start)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), *end)

	// Weekly bounds start on the Monday (2024-12-30).
	start, end = PeriodBounds(domain.PeriodWeekly, closedAt)
	require.NotNil(t, start)
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), *start)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), *end)

	start, end = PeriodBounds(domain.PeriodMonthly, closedAt)
	require.NotNil(t, start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *start)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), *end)

	start, end = PeriodBounds(domain.PeriodYearly, closedAt)
	require.NotNil(t, start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *end)

	start, end = PeriodBounds(domain.PeriodOverall, closedAt)
	assert.Nil(t, start)
	assert.Nil(t, end)
}

func TestDefaultCollectionName(t *testing.T) {
	assert.Equal(t, "daily_performance", DefaultCollectionName(domain.PeriodDaily))
	assert.Equal(t, "overall_performance", DefaultCollectionName(domain.PeriodOverall))
}

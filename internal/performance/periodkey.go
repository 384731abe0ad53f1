package performance

import (
	"fmt"
	"time"

	"position-core/internal/domain"
)

// OverallKey is the constant period key of the overall bucket.
const OverallKey = "overall"

// PeriodKey derives the bucket key for a period from a close timestamp.
// Daily/monthly/yearly use the local calendar date of the close; weekly
// uses the ISO-8601 week (week 1 contains the year's first Thursday,
// weeks start on Monday), so a December close can land in the next
// year's W01.
func PeriodKey(p domain.Period, closedAt time.Time) string {
	switch p {
	case domain.PeriodDaily:
		return closedAt.Format("2006-01-02")
	case domain.PeriodWeekly:
		year, week := closedAt.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case domain.PeriodMonthly:
		return closedAt.Format("2006-01")
	case domain.PeriodYearly:
		return closedAt.Format("2006")
	case domain.PeriodOverall:
		return OverallKey
	default:
		return ""
	}
}

// PeriodBounds returns the [start, end) wall-clock bounds of the bucket
// containing closedAt. The overall bucket is unbounded: both nil.
func PeriodBounds(p domain.Period, closedAt time.Time) (start, end *time.Time) {
	loc := closedAt.Location()

	switch p {
	case domain.PeriodDaily:
		s := time.Date(closedAt.Year(), closedAt.Month(), closedAt.Day(), 0, 0, 0, 0, loc)
		e := s.AddDate(0, 0, 1)
		return &s, &e

	case domain.PeriodWeekly:
		// Walk back to Monday 00:00 of the ISO week.
		daysSinceMonday := (int(closedAt.Weekday()) + 6) % 7
		day := time.Date(closedAt.Year(), closedAt.Month(), closedAt.Day(), 0, 0, 0, 0, loc)
		s := day.AddDate(0, 0, -daysSinceMonday)
		e := s.AddDate(0, 0, 7)
		return &s, &e

	case domain.PeriodMonthly:
		s := time.Date(closedAt.Year(), closedAt.Month(), 1, 0, 0, 0, 0, loc)
		e := s.AddDate(0, 1, 0)
		return &s, &e

	case domain.PeriodYearly:
		s := time.Date(closedAt.Year(), 1, 1, 0, 0, 0, 0, loc)
		e := s.AddDate(1, 0, 0)
		return &s, &e

	default:
		return nil, nil
	}
}

// DefaultCollectionName returns the default store collection for a
// period, {period}_performance.
func DefaultCollectionName(p domain.Period) string {
	return string(p) + "_performance"
}

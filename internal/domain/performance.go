package domain

import "time"

// Period is one of the five rolling aggregation windows a closed trade's
// statistics are folded into.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodOverall Period = "overall"
)

// AllPeriods lists the periods in aggregation order. The aggregator
// processes them in exactly this order.
var AllPeriods = []Period{
	PeriodDaily,
	PeriodWeekly,
	PeriodMonthly,
	PeriodYearly,
	PeriodOverall,
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	for _, known := range AllPeriods {
		if p == known {
			return true
		}
	}
	return false
}

// PerformanceStats is the running aggregate for one period bucket.
//
// Invariants: WinCount + LoseCount == TotalTrades, and
// WinRate == WinCount / TotalTrades * 100.
//
// MaxLoss is a signed, non-positive number while TotalLoss accumulates
// loss magnitudes. The asymmetry is intentional; callers must not
// negate one to get the other.
type PerformanceStats struct {
	TotalTrades int
	WinCount    int
	LoseCount   int

	// WinRate is a percentage in [0, 100].
	WinRate float64

	TotalRealizedPL float64
	AveragePL       float64

	// AveragePLRatio is a trade-count-weighted running mean of the
	// per-trade P/L ratios.
	AveragePLRatio float64

	MaxProfit float64
	MaxLoss   float64

	TotalFee        float64
	TotalInvestment float64
	TotalProfit     float64
	TotalLoss       float64

	// ProfitLossRatio is average win size over average loss size. Nil
	// until the bucket holds at least one win and one loss.
	ProfitLossRatio *float64
}

// PerformanceRecord is one period bucket of performance statistics,
// keyed by (user, period, period key). Created on the first liquidation
// that maps to the bucket, mutated in place by every later one, never
// deleted by this core.
type PerformanceRecord struct {
	UserID    string
	Period    Period
	PeriodKey string

	Stats PerformanceStats

	// LiquidatedPositionIDs is an append-only audit list of the
	// positions folded into this record. It is not consulted for
	// deduplication.
	LiquidatedPositionIDs []string

	PeriodStart *time.Time
	PeriodEnd   *time.Time

	// Version guards compare-and-swap updates; incremented on every
	// successful write.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentID returns the store document id, {userID}_{periodKey}.
// One record per user per period bucket.
func (r *PerformanceRecord) DocumentID() string {
	return PerformanceDocumentID(r.UserID, r.PeriodKey)
}

// PerformanceDocumentID builds the document id for a user and period key.
func PerformanceDocumentID(userID, periodKey string) string {
	return userID + "_" + periodKey
}

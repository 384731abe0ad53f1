package domain

import (
	"fmt"
	"time"
)

// LiquidationInfo carries the facts of a closed position into
// performance aggregation. It is immutable input: the aggregator never
// writes back to it.
type LiquidationInfo struct {
	UserID     string
	PositionID string
	Symbol     string
	Name       string

	OpenPrice  float64
	ClosePrice float64
	Amount     float64

	OpenedAt time.Time
	ClosedAt time.Time

	Fee float64

	// RealizedPL is the fee-inclusive profit or loss of the position.
	RealizedPL float64

	// PLRatio is RealizedPL as a percentage of invested capital.
	PLRatio float64
}

// Validate checks the aggregation preconditions.
func (l *LiquidationInfo) Validate() error {
	if l.UserID == "" {
		return fmt.Errorf("user id is empty")
	}
	if l.PositionID == "" {
		return fmt.Errorf("position id is empty")
	}
	if l.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", l.Amount)
	}
	if l.OpenPrice < 0 {
		return fmt.Errorf("open price must be non-negative, got %v", l.OpenPrice)
	}
	if l.ClosePrice < 0 {
		return fmt.Errorf("close price must be non-negative, got %v", l.ClosePrice)
	}
	if l.ClosedAt.IsZero() {
		return fmt.Errorf("close timestamp is zero")
	}
	return nil
}

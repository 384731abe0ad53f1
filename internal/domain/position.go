package domain

import "time"

// LifecycleStatus is the phase of a trading position in its
// entry -> hold -> exit life story.
type LifecycleStatus string

// Lifecycle statuses, grouped by phase.
const (
	// Entry phase
	StatusEntryOrderPending   LifecycleStatus = "entry_order_pending"
	StatusEntryOrderFailed    LifecycleStatus = "entry_order_failed"
	StatusEntryOrderCancelled LifecycleStatus = "entry_order_cancelled"
	StatusEntryUnconfirmed    LifecycleStatus = "entry_unconfirmed"

	// Holding phase
	StatusConfirmed LifecycleStatus = "confirmed"

	// Exit phase
	StatusExitOrderPending   LifecycleStatus = "exit_order_pending"
	StatusExitOrderFailed    LifecycleStatus = "exit_order_failed"
	StatusExitOrderCancelled LifecycleStatus = "exit_order_cancelled"

	// Terminal phase. Liquidated is the only true terminal status;
	// expired positions may re-enter via a fresh entry order.
	StatusLiquidated LifecycleStatus = "liquidated"
	StatusExpired    LifecycleStatus = "expired"
)

// AllLifecycleStatuses lists every status in declaration order.
var AllLifecycleStatuses = []LifecycleStatus{
	StatusEntryOrderPending,
	StatusEntryOrderFailed,
	StatusEntryOrderCancelled,
	StatusEntryUnconfirmed,
	StatusConfirmed,
	StatusExitOrderPending,
	StatusExitOrderFailed,
	StatusExitOrderCancelled,
	StatusLiquidated,
	StatusExpired,
}

// Valid reports whether s is a known lifecycle status.
func (s LifecycleStatus) Valid() bool {
	for _, known := range AllLifecycleStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s belongs to the terminal phase.
// Terminal positions are excluded from reconciliation sweeps.
func (s LifecycleStatus) Terminal() bool {
	return s == StatusLiquidated || s == StatusExpired
}

// Position is a tracked trading position. The lifecycle status is only
// mutated through the reconciliation engine or an explicit user action;
// both validate against the transition matrix first.
type Position struct {
	PositionID string
	UserID     string
	Symbol     string
	Name       string

	// OrderID is the external order currently driving the lifecycle:
	// the entry order until confirmation, the exit order afterwards.
	OrderID string

	Status LifecycleStatus

	OpenPrice float64
	Amount    float64
	OpenedAt  time.Time

	// StatusChangedAt is when Status last changed; the reconciliation
	// engine measures staleness from it.
	StatusChangedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

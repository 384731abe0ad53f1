// Package lifecycle owns the set of valid position states and the legal
// transition matrix. Pure validation logic, no I/O.
package lifecycle

import "position-core/internal/domain"

// transitions is the authoritative matrix: for each status, the set of
// statuses directly reachable from it. Reachability only, not history.
// Treated as immutable configuration; validators on both sides of a
// state change consult the same matrix.
var transitions = map[domain.LifecycleStatus][]domain.LifecycleStatus{
	domain.StatusEntryOrderPending: {
		domain.StatusEntryUnconfirmed,
		domain.StatusEntryOrderFailed,
		domain.StatusEntryOrderCancelled,
		domain.StatusExpired,
	},
	domain.StatusEntryOrderFailed: {
		domain.StatusEntryOrderPending,
	},
	domain.StatusEntryOrderCancelled: {
		domain.StatusEntryOrderPending,
	},
	domain.StatusEntryUnconfirmed: {
		domain.StatusConfirmed,
		domain.StatusExpired,
	},
	domain.StatusConfirmed: {
		domain.StatusExitOrderPending,
	},
	domain.StatusExitOrderPending: {
		domain.StatusLiquidated,
		domain.StatusExitOrderFailed,
		domain.StatusExitOrderCancelled,
	},
	domain.StatusExitOrderFailed: {
		domain.StatusExitOrderPending,
		domain.StatusConfirmed,
	},
	domain.StatusExitOrderCancelled: {
		domain.StatusExitOrderPending,
		domain.StatusConfirmed,
	},
	// Liquidated is the true terminal status.
	domain.StatusLiquidated: {},
	domain.StatusExpired: {
		domain.StatusEntryOrderPending,
	},
}

// Machine validates position lifecycle transitions against the matrix.
// The zero value is not usable; construct with NewMachine.
type Machine struct {
	transitions map[domain.LifecycleStatus][]domain.LifecycleStatus
}

// NewMachine returns a machine over the authoritative transition matrix.
func NewMachine() *Machine {
	return &Machine{transitions: transitions}
}

// IsValidTransition reports whether to is directly reachable from from.
// Returns false, never an error, for unknown statuses or unreachable
// pairs. Callers must reject the attempted change when this is false.
func (m *Machine) IsValidTransition(from, to domain.LifecycleStatus) bool {
	allowed, ok := m.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transitions returns the statuses directly reachable from from. The
// returned slice is a copy; the matrix itself is immutable.
func (m *Machine) Transitions(from domain.LifecycleStatus) []domain.LifecycleStatus {
	allowed, ok := m.transitions[from]
	if !ok {
		return nil
	}
	out := make([]domain.LifecycleStatus, len(allowed))
	copy(out, allowed)
	return out
}

package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position-core/internal/domain"
)

// allowedPairs is the transition table from the design doc, restated
// independently so the test fails if the matrix drifts.
var allowedPairs = map[domain.LifecycleStatus][]domain.LifecycleStatus{
	domain.StatusEntryOrderPending:   {domain.StatusEntryUnconfirmed, domain.StatusEntryOrderFailed, domain.StatusEntryOrderCancelled, domain.StatusExpired},
	domain.StatusEntryOrderFailed:    {domain.StatusEntryOrderPending},
	domain.StatusEntryOrderCancelled: {domain.StatusEntryOrderPending},
	domain.StatusEntryUnconfirmed:    {domain.StatusConfirmed, domain.StatusExpired},
	domain.StatusConfirmed:           {domain.StatusExitOrderPending},
	domain.StatusExitOrderPending:    {domain.StatusLiquidated, domain.StatusExitOrderFailed, domain.StatusExitOrderCancelled},
	domain.StatusExitOrderFailed:     {domain.StatusExitOrderPending, domain.StatusConfirmed},
	domain.StatusExitOrderCancelled:  {domain.StatusExitOrderPending, domain.StatusConfirmed},
	domain.StatusLiquidated:          {},
	domain.StatusExpired:             {domain.StatusEntryOrderPending},
}

func TestIsValidTransition_FullMatrix(t *testing.T) {
	m := NewMachine()

	for _, from := range domain.AllLifecycleStatuses {
		allowed := make(map[domain.LifecycleStatus]bool)
		for _, to := range allowedPairs[from] {
			allowed[to] = true
		}

		// Every listed pair is valid, every unlisted pair is not.
		for _, to := range domain.AllLifecycleStatuses {
			got := m.IsValidTransition(from, to)
			if allowed[to] {
				assert.True(t, got, "%s -> %s should be valid", from, to)
			} else {
				assert.False(t, got, "%s -> %s should be invalid", from, to)
			}
		}
	}
}

func TestIsValidTransition_LiquidatedIsTerminal(t *testing.T) {
	m := NewMachine()

	for _, to := range domain.AllLifecycleStatuses {
		assert.False(t, m.IsValidTransition(domain.StatusLiquidated, to),
			"liquidated must have no outgoing transition (tried -> %s)", to)
	}
}

func TestIsValidTransition_UnknownStatuses(t *testing.T) {
	m := NewMachine()

	assert.False(t, m.IsValidTransition("bogus", domain.StatusConfirmed))
	assert.False(t, m.IsValidTransition(domain.StatusConfirmed, "bogus"))
	assert.False(t, m.IsValidTransition("", ""))
}

func TestMatrix_TotalOverStatusSet(t *testing.T) {
	m := NewMachine()

	// Every status has an entry, and every non-liquidated status has at
	// least one outgoing transition.
	for _, from := range domain.AllLifecycleStatuses {
		out := m.Transitions(from)
		if from == domain.StatusLiquidated {
			assert.Empty(t, out)
			continue
		}
		assert.NotEmpty(t, out, "%s must have at least one outgoing transition", from)
	}

	// No entries outside the known status set.
	require.Len(t, transitions, len(domain.AllLifecycleStatuses))
	for from, targets := range transitions {
		require.True(t, from.Valid(), "matrix key %s is not a known status", from)
		for _, to := range targets {
			require.True(t, to.Valid(), "matrix target %s is not a known status", to)
		}
	}
}

func TestTransitions_ReturnsCopy(t *testing.T) {
	m := NewMachine()

	out := m.Transitions(domain.StatusEntryOrderPending)
	require.NotEmpty(t, out)
	out[0] = "mutated"

	assert.True(t, m.IsValidTransition(domain.StatusEntryOrderPending, domain.StatusEntryUnconfirmed))
}

package reconcile

import (
	"fmt"

	"position-core/internal/domain"
	"position-core/internal/lifecycle"
)

// Action is what a matched rule tells the sweep to do.
type Action string

const (
	// ActionTransition moves the position to the rule's target status.
	ActionTransition Action = "transition"

	// ActionExpire moves the position to expired, but only once it has
	// sat in its current status past the staleness threshold.
	ActionExpire Action = "expire"

	// ActionMaintain leaves the position untouched.
	ActionMaintain Action = "maintain"
)

// Rule reconducts one (observed order status, current lifecycle status)
// pair into a reconciliation action. Rules are matched by exact pair;
// the rule set must hold at most one rule per pair.
type Rule struct {
	ObservedOrderStatus domain.OrderStatus
	CurrentStatus       domain.LifecycleStatus
	TargetStatus        domain.LifecycleStatus
	Action              Action
	Reason              string
}

// DefaultRules is the canonical reconciliation rule set. Loaded once at
// process start and validated against the transition matrix; treated as
// immutable configuration afterwards.
func DefaultRules() []Rule {
	return []Rule{
		{
			ObservedOrderStatus: domain.OrderStatusPending,
			CurrentStatus:       domain.StatusEntryOrderPending,
			TargetStatus:        domain.StatusExpired,
			Action:              ActionExpire,
			Reason:              "entry order still pending past the staleness threshold",
		},
		{
			ObservedOrderStatus: domain.OrderStatusCompleted,
			CurrentStatus:       domain.StatusEntryOrderPending,
			TargetStatus:        domain.StatusEntryUnconfirmed,
			Action:              ActionTransition,
			Reason:              "entry order filled, awaiting position confirmation",
		},
		{
			ObservedOrderStatus: domain.OrderStatusFailed,
			CurrentStatus:       domain.StatusEntryOrderPending,
			TargetStatus:        domain.StatusEntryOrderFailed,
			Action:              ActionTransition,
			Reason:              "entry order failed at the brokerage",
		},
		{
			ObservedOrderStatus: domain.OrderStatusCancelled,
			CurrentStatus:       domain.StatusEntryOrderPending,
			TargetStatus:        domain.StatusEntryOrderCancelled,
			Action:              ActionTransition,
			Reason:              "entry order cancelled at the brokerage",
		},
		{
			ObservedOrderStatus: domain.OrderStatusCompleted,
			CurrentStatus:       domain.StatusEntryUnconfirmed,
			TargetStatus:        domain.StatusExpired,
			Action:              ActionExpire,
			Reason:              "filled entry never confirmed within the staleness threshold",
		},
		{
			ObservedOrderStatus: domain.OrderStatusCompleted,
			CurrentStatus:       domain.StatusExitOrderPending,
			TargetStatus:        domain.StatusLiquidated,
			Action:              ActionTransition,
			Reason:              "exit order filled, position liquidated",
		},
		{
			ObservedOrderStatus: domain.OrderStatusFailed,
			CurrentStatus:       domain.StatusExitOrderPending,
			TargetStatus:        domain.StatusExitOrderFailed,
			Action:              ActionTransition,
			Reason:              "exit order failed at the brokerage",
		},
		{
			ObservedOrderStatus: domain.OrderStatusCancelled,
			CurrentStatus:       domain.StatusExitOrderPending,
			TargetStatus:        domain.StatusExitOrderCancelled,
			Action:              ActionTransition,
			Reason:              "exit order cancelled at the brokerage",
		},
	}
}

// ruleKey is the exact-match lookup key for the rule set.
type ruleKey struct {
	observed domain.OrderStatus
	current  domain.LifecycleStatus
}

// validateRules checks the two rule-set invariants: no duplicate
// (observed, current) keys, and every transition rule names a pair
// present in the transition matrix. A violation is a configuration
// defect and must fail startup.
func validateRules(rules []Rule, machine *lifecycle.Machine) (map[ruleKey]Rule, error) {
	indexed := make(map[ruleKey]Rule, len(rules))

	for _, r := range rules {
		if !r.ObservedOrderStatus.Valid() {
			return nil, fmt.Errorf("rule references unknown order status %q", r.ObservedOrderStatus)
		}
		if !r.CurrentStatus.Valid() {
			return nil, fmt.Errorf("rule references unknown lifecycle status %q", r.CurrentStatus)
		}

		key := ruleKey{observed: r.ObservedOrderStatus, current: r.CurrentStatus}
		if _, exists := indexed[key]; exists {
			return nil, fmt.Errorf("duplicate rule for (%s, %s)", r.ObservedOrderStatus, r.CurrentStatus)
		}

		switch r.Action {
		case ActionTransition:
			if !machine.IsValidTransition(r.CurrentStatus, r.TargetStatus) {
				return nil, fmt.Errorf("rule (%s, %s) targets %s, not reachable in the transition matrix",
					r.ObservedOrderStatus, r.CurrentStatus, r.TargetStatus)
			}
		case ActionExpire:
			if r.TargetStatus != domain.StatusExpired {
				return nil, fmt.Errorf("expire rule (%s, %s) must target %s, got %s",
					r.ObservedOrderStatus, r.CurrentStatus, domain.StatusExpired, r.TargetStatus)
			}
			if !machine.IsValidTransition(r.CurrentStatus, domain.StatusExpired) {
				return nil, fmt.Errorf("expire rule (%s, %s): %s cannot expire per the transition matrix",
					r.ObservedOrderStatus, r.CurrentStatus, r.CurrentStatus)
			}
		case ActionMaintain:
			// Nothing to cross-check.
		default:
			return nil, fmt.Errorf("rule (%s, %s) has unknown action %q",
				r.ObservedOrderStatus, r.CurrentStatus, r.Action)
		}

		indexed[key] = r
	}

	return indexed, nil
}

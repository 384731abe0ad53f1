// Package reconcile reduces externally observed order statuses into
// position lifecycle decisions. It is consumed by the periodic
// reconciliation sweep over all open positions.
package reconcile

import (
	"time"

	"position-core/internal/domain"
	"position-core/internal/lifecycle"
)

// DefaultStaleThreshold is how long a position may sit in a
// non-terminal state before an expire rule applies.
const DefaultStaleThreshold = 24 * time.Hour

// Decision is the outcome of reconciling one position.
//
// A maintain decision with RuleMatched=false means no rule covered the
// pair; with RuleMatched=true a rule explicitly said to do nothing (or
// an expire rule has not reached staleness yet). The two are
// distinguishable on purpose.
type Decision struct {
	Action Action

	// Target is set for transition and expire decisions.
	Target domain.LifecycleStatus

	Reason      string
	RuleMatched bool
}

// Engine matches observations against the rule set. It owns no
// persistent state; all inputs are caller-supplied.
type Engine struct {
	machine        *lifecycle.Machine
	rules          map[ruleKey]Rule
	staleThreshold time.Duration
}

// NewEngine builds an engine over the given rules, validating them
// against the transition matrix. Rule-set defects (duplicate keys,
// transitions absent from the matrix) are returned as errors so a bad
// configuration fails at startup rather than at sweep time.
func NewEngine(machine *lifecycle.Machine, rules []Rule, staleThreshold time.Duration) (*Engine, error) {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}

	indexed, err := validateRules(rules, machine)
	if err != nil {
		return nil, err
	}

	return &Engine{
		machine:        machine,
		rules:          indexed,
		staleThreshold: staleThreshold,
	}, nil
}

// NewDefaultEngine builds an engine over the canonical rule set.
func NewDefaultEngine(staleThreshold time.Duration) (*Engine, error) {
	return NewEngine(lifecycle.NewMachine(), DefaultRules(), staleThreshold)
}

// Machine exposes the transition matrix the engine validates against,
// so the apply side can re-check with the same configuration.
func (e *Engine) Machine() *lifecycle.Machine {
	return e.machine
}

// Decide reconciles one observation: the order status seen at the
// brokerage, the position's current lifecycle status, and how long the
// position has been in that status.
func (e *Engine) Decide(observed domain.OrderStatus, current domain.LifecycleStatus, inStatusFor time.Duration) Decision {
	rule, ok := e.rules[ruleKey{observed: observed, current: current}]
	if !ok {
		// No rule covers the pair: maintain. Confirmed positions, for
		// example, only change state via an exit order.
		return Decision{
			Action:      ActionMaintain,
			Reason:      "no reconciliation rule for observed status",
			RuleMatched: false,
		}
	}

	switch rule.Action {
	case ActionTransition:
		return Decision{
			Action:      ActionTransition,
			Target:      rule.TargetStatus,
			Reason:      rule.Reason,
			RuleMatched: true,
		}

	case ActionExpire:
		if inStatusFor < e.staleThreshold {
			return Decision{
				Action:      ActionMaintain,
				Reason:      "within staleness threshold",
				RuleMatched: true,
			}
		}
		return Decision{
			Action:      ActionExpire,
			Target:      domain.StatusExpired,
			Reason:      rule.Reason,
			RuleMatched: true,
		}

	default:
		return Decision{
			Action:      ActionMaintain,
			Reason:      rule.Reason,
			RuleMatched: true,
		}
	}
}

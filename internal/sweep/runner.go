// Package sweep drives the periodic reconciliation of open positions
// against externally observed order statuses.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"position-core/internal/domain"
	"position-core/internal/observability"
	"position-core/internal/performance"
	"position-core/internal/reconcile"
	"position-core/internal/storage"
)

// Observation is one externally observed order state. Liquidation is
// set when the observation carries the facts of a completed exit.
type Observation struct {
	OrderStatus domain.OrderStatus
	Liquidation *domain.LiquidationInfo
}

// OrderStatusSource supplies the externally observed order state for a
// position's driving order. A nil observation with nil error means the
// source has nothing for that order yet; the sweep skips the position.
type OrderStatusSource interface {
	Observe(ctx context.Context, orderID string) (*Observation, error)
}

// Summary reports the outcome of one sweep run.
type Summary struct {
	Swept       int
	Transitions int
	Expired     int
	Maintained  int
	Skipped     int // no observation available
	Rejected    int // decision target refused by the transition matrix
	Conflicts   int // status changed under the sweep
	Errors      int // per-position errors (store, source, aggregation)

	LiquidationsAggregated int
}

// Options configures a Runner.
type Options struct {
	Positions     storage.PositionStore
	TransitionLog storage.TransitionLogStore
	Source        OrderStatusSource
	Engine        *reconcile.Engine
	Aggregator    *performance.Aggregator

	// Clock supplies "now" for staleness measurement and status stamps.
	// Defaults to time.Now.
	Clock func() time.Time

	Logger *log.Logger
}

// Runner executes reconciliation sweeps. One Runner is safe for
// sequential reuse; runs are not concurrent with themselves.
type Runner struct {
	positions     storage.PositionStore
	transitionLog storage.TransitionLogStore
	source        OrderStatusSource
	engine        *reconcile.Engine
	aggregator    *performance.Aggregator
	clock         func() time.Time
	logger        *log.Logger
}

// NewRunner creates a sweep runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Positions == nil {
		return nil, fmt.Errorf("sweep: position store is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("sweep: order status source is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("sweep: reconciliation engine is required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[sweep] ", log.LstdFlags|log.Lshortfile)
	}

	return &Runner{
		positions:     opts.Positions,
		transitionLog: opts.TransitionLog,
		source:        opts.Source,
		engine:        opts.Engine,
		aggregator:    opts.Aggregator,
		clock:         clock,
		logger:        logger,
	}, nil
}

// Sweep reconciles every non-terminal position once. Per-position
// failures are counted and logged; only listing the open positions can
// fail the run as a whole.
func (r *Runner) Sweep(ctx context.Context) (*Summary, error) {
	started := r.clock()
	summary := &Summary{}

	open, err := r.positions.ListOpen(ctx)
	if err != nil {
		observability.RecordSweepRun("error", time.Since(started).Seconds())
		return nil, fmt.Errorf("list open positions: %w", err)
	}

	observability.DefaultMetrics.OpenPositions.Set(float64(len(open)))

	for _, p := range open {
		summary.Swept++
		observability.DefaultMetrics.PositionsSwept.Inc()

		if err := r.sweepOne(ctx, p, summary); err != nil {
			summary.Errors++
			observability.DefaultMetrics.SweepPositionErrors.Inc()
			r.logger.Printf("position %s: %v", p.PositionID, err)
		}
	}

	observability.RecordSweepRun("ok", time.Since(started).Seconds())
	observability.DefaultMetrics.LastSuccessfulSweep.Set(float64(r.clock().Unix()))

	r.logger.Printf("sweep done: swept=%d transitions=%d expired=%d maintained=%d skipped=%d rejected=%d conflicts=%d errors=%d",
		summary.Swept, summary.Transitions, summary.Expired, summary.Maintained,
		summary.Skipped, summary.Rejected, summary.Conflicts, summary.Errors)

	return summary, nil
}

// sweepOne reconciles a single position.
func (r *Runner) sweepOne(ctx context.Context, p *domain.Position, summary *Summary) error {
	obs, err := r.source.Observe(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("observe order %s: %w", p.OrderID, err)
	}
	if obs == nil {
		summary.Skipped++
		return nil
	}

	now := r.clock()
	decision := r.engine.Decide(obs.OrderStatus, p.Status, now.Sub(p.StatusChangedAt))
	observability.RecordSweepDecision(string(decision.Action))

	if decision.Action == reconcile.ActionMaintain {
		summary.Maintained++
		return nil
	}

	// The engine validated its rules at construction, but a transition
	// is re-checked against the matrix before it is applied. Both sides
	// share the same machine, so a rejection here is a defect worth
	// counting rather than a normal outcome.
	if !r.engine.Machine().IsValidTransition(p.Status, decision.Target) {
		summary.Rejected++
		observability.RecordTransitionRejected()
		r.logger.Printf("position %s: refusing %s -> %s (%s)",
			p.PositionID, p.Status, decision.Target, decision.Reason)
		return nil
	}

	err = r.positions.UpdateStatus(ctx, p.PositionID, p.Status, decision.Target, now)
	if errors.Is(err, storage.ErrConflict) {
		// Someone else moved the position first; the next sweep sees
		// the fresh status.
		summary.Conflicts++
		return nil
	}
	if err != nil {
		return fmt.Errorf("update status to %s: %w", decision.Target, err)
	}

	switch decision.Action {
	case reconcile.ActionExpire:
		summary.Expired++
	default:
		summary.Transitions++
	}

	r.appendLog(ctx, p, decision, obs, now)

	if decision.Target == domain.StatusLiquidated {
		r.aggregate(ctx, p, obs, summary)
	}

	return nil
}

// appendLog writes the audit entry for an applied transition. Log
// failures are logged but do not undo the transition.
func (r *Runner) appendLog(ctx context.Context, p *domain.Position, decision reconcile.Decision, obs *Observation, at time.Time) {
	if r.transitionLog == nil {
		return
	}

	entry := &domain.TransitionLogEntry{
		EntryID:    uuid.NewString(),
		PositionID: p.PositionID,
		UserID:     p.UserID,
		From:       p.Status,
		To:         decision.Target,
		Trigger:    decision.Reason,
		Actor:      domain.ActorScheduler,
		Metadata: map[string]string{
			"order_id":        p.OrderID,
			"observed_status": string(obs.OrderStatus),
		},
		CreatedAt: at,
	}

	if err := r.transitionLog.Append(ctx, entry); err != nil {
		r.logger.Printf("position %s: append transition log: %v", p.PositionID, err)
	}
}

// aggregate folds a liquidated position into the performance stats.
func (r *Runner) aggregate(ctx context.Context, p *domain.Position, obs *Observation, summary *Summary) {
	if r.aggregator == nil {
		return
	}
	if obs.Liquidation == nil {
		summary.Errors++
		observability.DefaultMetrics.SweepPositionErrors.Inc()
		r.logger.Printf("position %s: liquidated without liquidation facts, stats not updated", p.PositionID)
		return
	}

	result := r.aggregator.Process(ctx, *obs.Liquidation)
	if !result.Success {
		summary.Errors++
		observability.DefaultMetrics.SweepPositionErrors.Inc()
		r.logger.Printf("position %s: aggregate liquidation: %s", p.PositionID, result.Error)
		return
	}

	summary.LiquidationsAggregated++
}

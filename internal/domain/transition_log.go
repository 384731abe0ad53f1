package domain

import "time"

// Actor identifies who caused a lifecycle transition.
type Actor string

const (
	ActorSystem    Actor = "system"
	ActorUser      Actor = "user"
	ActorScheduler Actor = "scheduler"
)

// TransitionLogEntry is an append-only audit record of one lifecycle
// transition. Entries are never mutated after creation.
type TransitionLogEntry struct {
	EntryID    string
	PositionID string
	UserID     string

	From LifecycleStatus
	To   LifecycleStatus

	// Trigger names the event that caused the transition, e.g. the
	// observed order status or "staleness".
	Trigger string

	Actor    Actor
	Metadata map[string]string

	CreatedAt time.Time
}

package clickhouse

import (
	"context"
	"fmt"

	"position-core/internal/domain"
	"position-core/internal/storage"
)

// TransitionLogStore implements storage.TransitionLogStore using
// ClickHouse. The log is append-only, which fits the MergeTree model:
// entries are never updated or deleted, only inserted and range-read.
type TransitionLogStore struct {
	conn *Conn
}

// NewTransitionLogStore creates a new TransitionLogStore.
func NewTransitionLogStore(conn *Conn) *TransitionLogStore {
	return &TransitionLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransitionLogStore = (*TransitionLogStore)(nil)

// Append adds one entry to the log.
func (s *TransitionLogStore) Append(ctx context.Context, e *domain.TransitionLogEntry) error {
	if e == nil || e.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transition_log (
			entry_id, position_id, user_id,
			from_status, to_status, trigger, actor,
			metadata, created_at
		)
	`

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	err = batch.Append(
		e.EntryID, e.PositionID, e.UserID,
		string(e.From), string(e.To), e.Trigger, string(e.Actor),
		metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// AppendBulk adds multiple entries in one batch.
func (s *TransitionLogStore) AppendBulk(ctx context.Context, entries []*domain.TransitionLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO transition_log (
			entry_id, position_id, user_id,
			from_status, to_status, trigger, actor,
			metadata, created_at
		)
	`

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range entries {
		if e == nil || e.PositionID == "" {
			return storage.ErrInvalidInput
		}
		metadata := e.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		err = batch.Append(
			e.EntryID, e.PositionID, e.UserID,
			string(e.From), string(e.To), e.Trigger, string(e.Actor),
			metadata, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPositionID retrieves all entries for a position, creation time ASC.
func (s *TransitionLogStore) GetByPositionID(ctx context.Context, positionID string) ([]*domain.TransitionLogEntry, error) {
	query := `
		SELECT entry_id, position_id, user_id,
		       from_status, to_status, trigger, actor,
		       metadata, created_at
		FROM transition_log
		WHERE position_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.conn.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("query by position id: %w", err)
	}
	defer rows.Close()

	return scanTransitionLogEntries(rows)
}

// GetByUserID retrieves all entries for a user, creation time ASC.
func (s *TransitionLogStore) GetByUserID(ctx context.Context, userID string) ([]*domain.TransitionLogEntry, error) {
	query := `
		SELECT entry_id, position_id, user_id,
		       from_status, to_status, trigger, actor,
		       metadata, created_at
		FROM transition_log
		WHERE user_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query by user id: %w", err)
	}
	defer rows.Close()

	return scanTransitionLogEntries(rows)
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanTransitionLogEntries scans multiple rows into a slice.
func scanTransitionLogEntries(rows chRows) ([]*domain.TransitionLogEntry, error) {
	var entries []*domain.TransitionLogEntry

	for rows.Next() {
		var e domain.TransitionLogEntry
		var from, to, actor string

		err := rows.Scan(
			&e.EntryID, &e.PositionID, &e.UserID,
			&from, &to, &e.Trigger, &actor,
			&e.Metadata, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transition log row: %w", err)
		}

		e.From = domain.LifecycleStatus(from)
		e.To = domain.LifecycleStatus(to)
		e.Actor = domain.Actor(actor)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition log rows: %w", err)
	}

	return entries, nil
}

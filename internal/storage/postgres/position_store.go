package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"position-core/internal/domain"
	"position-core/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, user_id, symbol, name, order_id, status,
	open_price, amount, opened_at,
	status_changed_at, created_at, updated_at
`

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) (err error) {
	start := time.Now()
	defer func() { observe("positions", "insert", start, err) }()

	if p == nil || p.PositionID == "" || p.UserID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		p.PositionID, p.UserID, p.Symbol, p.Name, p.OrderID, string(p.Status),
		p.OpenPrice, p.Amount, p.OpenedAt,
		p.StatusChangedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// GetByID retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (p *domain.Position, err error) {
	start := time.Now()
	defer func() { observe("positions", "get_by_id", start, err) }()

	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE position_id = $1
	`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err = scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// ListOpen retrieves all non-terminal positions, ordered by id ASC.
func (s *PositionStore) ListOpen(ctx context.Context) (positions []*domain.Position, err error) {
	start := time.Now()
	defer func() { observe("positions", "list_open", start, err) }()

	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status NOT IN ($1, $2)
		ORDER BY position_id ASC
	`

	rows, err := s.pool.Query(ctx, query,
		string(domain.StatusLiquidated), string(domain.StatusExpired))
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// UpdateStatus moves a position from an expected status to a new one.
// Returns ErrConflict when the stored status no longer matches from,
// ErrNotFound when the position does not exist.
func (s *PositionStore) UpdateStatus(ctx context.Context, positionID string, from, to domain.LifecycleStatus, at time.Time) (err error) {
	start := time.Now()
	defer func() { observe("positions", "update_status", start, err) }()

	query := `
		UPDATE positions
		SET status = $1, status_changed_at = $2, updated_at = $2
		WHERE position_id = $3 AND status = $4
	`

	tag, err := s.pool.Exec(ctx, query, string(to), at, positionID, string(from))
	if err != nil {
		return fmt.Errorf("update position status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing row from a status race.
	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM positions WHERE position_id = $1)`,
		positionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check position exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var status string

	err := row.Scan(
		&p.PositionID, &p.UserID, &p.Symbol, &p.Name, &p.OrderID, &status,
		&p.OpenPrice, &p.Amount, &p.OpenedAt,
		&p.StatusChangedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.LifecycleStatus(status)
	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		var p domain.Position
		var status string

		err := rows.Scan(
			&p.PositionID, &p.UserID, &p.Symbol, &p.Name, &p.OrderID, &status,
			&p.OpenPrice, &p.Amount, &p.OpenedAt,
			&p.StatusChangedAt, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}

		p.Status = domain.LifecycleStatus(status)
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"position-core/internal/domain"
	"position-core/internal/storage"
)

// PerformanceRecordStore implements storage.PerformanceRecordStore
// using PostgreSQL. All per-period collections share one table, keyed
// by (collection, document_id); the optimistic version column backs
// CompareAndSwap.
type PerformanceRecordStore struct {
	pool *Pool
}

// NewPerformanceRecordStore creates a new PerformanceRecordStore.
func NewPerformanceRecordStore(pool *Pool) *PerformanceRecordStore {
	return &PerformanceRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PerformanceRecordStore = (*PerformanceRecordStore)(nil)

const performanceRecordColumns = `
	user_id, period, period_key,
	total_trades, win_count, lose_count, win_rate,
	total_realized_pl, average_pl, average_pl_ratio,
	max_profit, max_loss, total_fee, total_investment,
	total_profit, total_loss, profit_loss_ratio,
	liquidated_position_ids, period_start, period_end,
	version, created_at, updated_at
`

// Get retrieves a record. Returns ErrNotFound if not exists.
func (s *PerformanceRecordStore) Get(ctx context.Context, collection, documentID string) (r *domain.PerformanceRecord, err error) {
	start := time.Now()
	defer func() { observe("performance_records", "get", start, err) }()

	query := `
		SELECT ` + performanceRecordColumns + `
		FROM performance_records
		WHERE collection = $1 AND document_id = $2
	`

	row := s.pool.QueryRow(ctx, query, collection, documentID)
	r, err = scanPerformanceRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get performance record: %w", err)
	}
	return r, nil
}

// Create adds a new record at version 0. Returns ErrDuplicateKey if the
// document id already exists in the collection.
func (s *PerformanceRecordStore) Create(ctx context.Context, collection string, record *domain.PerformanceRecord) (err error) {
	start := time.Now()
	defer func() { observe("performance_records", "create", start, err) }()

	if record == nil || collection == "" || record.UserID == "" || record.PeriodKey == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO performance_records (
			collection, document_id, ` + performanceRecordColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19,
			$20, $21, $22,
			0, $23, $24
		)
	`

	st := record.Stats
	_, err = s.pool.Exec(ctx, query,
		collection, record.DocumentID(), record.UserID, string(record.Period), record.PeriodKey,
		st.TotalTrades, st.WinCount, st.LoseCount, st.WinRate,
		st.TotalRealizedPL, st.AveragePL, st.AveragePLRatio,
		st.MaxProfit, st.MaxLoss, st.TotalFee, st.TotalInvestment,
		st.TotalProfit, st.TotalLoss, st.ProfitLossRatio,
		record.LiquidatedPositionIDs, record.PeriodStart, record.PeriodEnd,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert performance record: %w", err)
	}
	return nil
}

// Update replaces an existing record unconditionally. Returns
// ErrNotFound if absent.
func (s *PerformanceRecordStore) Update(ctx context.Context, collection, documentID string, record *domain.PerformanceRecord) (err error) {
	start := time.Now()
	defer func() { observe("performance_records", "update", start, err) }()

	if record == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE performance_records SET
			total_trades = $1, win_count = $2, lose_count = $3, win_rate = $4,
			total_realized_pl = $5, average_pl = $6, average_pl_ratio = $7,
			max_profit = $8, max_loss = $9, total_fee = $10, total_investment = $11,
			total_profit = $12, total_loss = $13, profit_loss_ratio = $14,
			liquidated_position_ids = $15, updated_at = $16
		WHERE collection = $17 AND document_id = $18
	`

	st := record.Stats
	tag, err := s.pool.Exec(ctx, query,
		st.TotalTrades, st.WinCount, st.LoseCount, st.WinRate,
		st.TotalRealizedPL, st.AveragePL, st.AveragePLRatio,
		st.MaxProfit, st.MaxLoss, st.TotalFee, st.TotalInvestment,
		st.TotalProfit, st.TotalLoss, st.ProfitLossRatio,
		record.LiquidatedPositionIDs, record.UpdatedAt,
		collection, documentID,
	)
	if err != nil {
		return fmt.Errorf("update performance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CompareAndSwap replaces the record only if the stored version still
// equals expectedVersion, then bumps the version. Returns ErrConflict
// on version mismatch, ErrNotFound if the document is absent.
func (s *PerformanceRecordStore) CompareAndSwap(ctx context.Context, collection, documentID string, expectedVersion int64, record *domain.PerformanceRecord) (err error) {
	start := time.Now()
	defer func() { observe("performance_records", "compare_and_swap", start, err) }()

	if record == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE performance_records SET
			total_trades = $1, win_count = $2, lose_count = $3, win_rate = $4,
			total_realized_pl = $5, average_pl = $6, average_pl_ratio = $7,
			max_profit = $8, max_loss = $9, total_fee = $10, total_investment = $11,
			total_profit = $12, total_loss = $13, profit_loss_ratio = $14,
			liquidated_position_ids = $15, updated_at = $16,
			version = version + 1
		WHERE collection = $17 AND document_id = $18 AND version = $19
	`

	st := record.Stats
	tag, err := s.pool.Exec(ctx, query,
		st.TotalTrades, st.WinCount, st.LoseCount, st.WinRate,
		st.TotalRealizedPL, st.AveragePL, st.AveragePLRatio,
		st.MaxProfit, st.MaxLoss, st.TotalFee, st.TotalInvestment,
		st.TotalProfit, st.TotalLoss, st.ProfitLossRatio,
		record.LiquidatedPositionIDs, record.UpdatedAt,
		collection, documentID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("compare-and-swap performance record: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM performance_records WHERE collection = $1 AND document_id = $2)`,
		collection, documentID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check performance record exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

// scanPerformanceRecord scans a single row into a PerformanceRecord.
func scanPerformanceRecord(row pgx.Row) (*domain.PerformanceRecord, error) {
	var r domain.PerformanceRecord
	var period string

	err := row.Scan(
		&r.UserID, &period, &r.PeriodKey,
		&r.Stats.TotalTrades, &r.Stats.WinCount, &r.Stats.LoseCount, &r.Stats.WinRate,
		&r.Stats.TotalRealizedPL, &r.Stats.AveragePL, &r.Stats.AveragePLRatio,
		&r.Stats.MaxProfit, &r.Stats.MaxLoss, &r.Stats.TotalFee, &r.Stats.TotalInvestment,
		&r.Stats.TotalProfit, &r.Stats.TotalLoss, &r.Stats.ProfitLossRatio,
		&r.LiquidatedPositionIDs, &r.PeriodStart, &r.PeriodEnd,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Period = domain.Period(period)
	return &r, nil
}

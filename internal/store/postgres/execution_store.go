package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore backed by the given connection pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, portfolio_id, symbol, quantity, realized_loss, tax_savings,
	reinvest, sell_order_ref, buy_order_ref, alt_symbol, state, failure_reason,
	started_at, completed_at`

func scanExecution(row pgx.Row) (domain.HarvestExecution, error) {
	var e domain.HarvestExecution
	var state string
	var completedAt sql.NullTime

	err := row.Scan(
		&e.ID, &e.PortfolioID, &e.Symbol, &e.Quantity, &e.RealizedLoss, &e.TaxSavings,
		&e.Reinvest, &e.SellOrderRef, &e.BuyOrderRef, &e.AltSymbol, &state, &e.FailureReason,
		&e.StartedAt, &completedAt,
	)
	if err != nil {
		return domain.HarvestExecution{}, err
	}
	e.State = domain.ExecutionState(state)
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}
	return e, nil
}

// Create inserts a new harvest execution.
func (s *ExecutionStore) Create(ctx context.Context, e domain.HarvestExecution) error {
	const query = `
		INSERT INTO harvest_executions (
			id, portfolio_id, symbol, quantity, realized_loss, tax_savings,
			reinvest, sell_order_ref, buy_order_ref, alt_symbol, state, failure_reason,
			started_at, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.PortfolioID, e.Symbol, e.Quantity, e.RealizedLoss, e.TaxSavings,
		e.Reinvest, e.SellOrderRef, e.BuyOrderRef, e.AltSymbol, string(e.State), e.FailureReason,
		e.StartedAt, e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create execution %s: %w", e.ID, err)
	}
	return nil
}

// Update replaces all mutable fields of a harvest execution.
func (s *ExecutionStore) Update(ctx context.Context, e domain.HarvestExecution) error {
	const query = `
		UPDATE harvest_executions SET
			sell_order_ref = $2,
			buy_order_ref  = $3,
			alt_symbol     = $4,
			state          = $5,
			failure_reason = $6,
			completed_at   = $7,
			updated_at     = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		e.ID, e.SellOrderRef, e.BuyOrderRef, e.AltSymbol, string(e.State), e.FailureReason, e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update execution %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update execution %s: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID fetches one harvest execution.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.HarvestExecution, error) {
	query := `SELECT ` + executionSelectCols + ` FROM harvest_executions WHERE id = $1`

	e, err := scanExecution(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.HarvestExecution{}, fmt.Errorf("postgres: execution %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.HarvestExecution{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return e, nil
}

// ListByPortfolio returns executions for a portfolio, newest first.
func (s *ExecutionStore) ListByPortfolio(ctx context.Context, portfolioID string, opts domain.ListOpts) ([]domain.HarvestExecution, error) {
	query := `SELECT ` + executionSelectCols + `
		FROM harvest_executions
		WHERE portfolio_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, portfolioID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions %s: %w", portfolioID, err)
	}
	defer rows.Close()

	var execs []domain.HarvestExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// ListBefore returns executions started strictly before the cutoff, for
// archival.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.HarvestExecution, error) {
	query := `SELECT ` + executionSelectCols + `
		FROM harvest_executions
		WHERE started_at < $1
		ORDER BY started_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions before %s: %w", before, err)
	}
	defer rows.Close()

	var execs []domain.HarvestExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)

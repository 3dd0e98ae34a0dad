package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// TradeStore implements domain.TradeLedger using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// ListBuysSince returns BUY entries for the portfolio executed at or after the
// cutoff, newest first.
func (s *TradeStore) ListBuysSince(ctx context.Context, portfolioID string, since time.Time) ([]domain.TradeHistoryEntry, error) {
	const query = `
		SELECT id, portfolio_id, symbol, side, quantity, price, executed_at
		FROM trades
		WHERE portfolio_id = $1 AND side = 'buy' AND executed_at >= $2
		ORDER BY executed_at DESC`

	rows, err := s.pool.Query(ctx, query, portfolioID, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list buys %s: %w", portfolioID, err)
	}
	defer rows.Close()

	var entries []domain.TradeHistoryEntry
	for rows.Next() {
		var e domain.TradeHistoryEntry
		var side string
		if err := rows.Scan(&e.ID, &e.PortfolioID, &e.Symbol, &side, &e.Quantity, &e.Price, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		e.Side = domain.TradeSide(side)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Record appends an executed trade to the ledger.
func (s *TradeStore) Record(ctx context.Context, e domain.TradeHistoryEntry) error {
	const query = `
		INSERT INTO trades (portfolio_id, symbol, side, quantity, price, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		e.PortfolioID, e.Symbol, string(e.Side), e.Quantity, e.Price, e.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade %s/%s: %w", e.PortfolioID, e.Symbol, err)
	}
	return nil
}

// nullableTime maps the zero time onto SQL NULL.
func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Compile-time interface check.
var _ domain.TradeLedger = (*TradeStore)(nil)

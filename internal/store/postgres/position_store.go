package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// PositionStore implements domain.PositionProvider using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// ListByPortfolio returns the current holdings snapshot for a portfolio.
func (s *PositionStore) ListByPortfolio(ctx context.Context, portfolioID string) ([]domain.Position, error) {
	const query = `
		SELECT portfolio_id, symbol, asset_name, asset_class, sector,
		       quantity, avg_cost, current_price, acquired_at
		FROM positions
		WHERE portfolio_id = $1
		ORDER BY symbol`

	rows, err := s.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions %s: %w", portfolioID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var acquiredAt sql.NullTime

		if err := rows.Scan(
			&p.PortfolioID, &p.Symbol, &p.AssetName, &p.AssetClass, &p.Sector,
			&p.Quantity, &p.AvgCost, &p.Price, &acquiredAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		if acquiredAt.Valid {
			p.AcquiredAt = acquiredAt.Time
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ListPortfolios returns the distinct portfolio IDs present in the holdings
// snapshot. Used by scan mode to sweep every portfolio.
func (s *PositionStore) ListPortfolios(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT portfolio_id FROM positions ORDER BY portfolio_id")
	if err != nil {
		return nil, fmt.Errorf("postgres: list portfolios: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Upsert replaces a holding row. Used by snapshot synchronization, not by the
// decision engine itself.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			portfolio_id, symbol, asset_name, asset_class, sector,
			quantity, avg_cost, current_price, acquired_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (portfolio_id, symbol) DO UPDATE SET
			asset_name    = EXCLUDED.asset_name,
			asset_class   = EXCLUDED.asset_class,
			sector        = EXCLUDED.sector,
			quantity      = EXCLUDED.quantity,
			avg_cost      = EXCLUDED.avg_cost,
			current_price = EXCLUDED.current_price,
			acquired_at   = EXCLUDED.acquired_at,
			updated_at    = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.PortfolioID, p.Symbol, p.AssetName, p.AssetClass, p.Sector,
		p.Quantity, p.AvgCost, p.Price, nullableTime(p.AcquiredAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.PortfolioID, p.Symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PositionProvider = (*PositionStore)(nil)

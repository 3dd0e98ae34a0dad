package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// PositionProvider returns the caller's current holdings snapshot. Owned by
// the portfolio collaborator; read-only to the engine.
type PositionProvider interface {
	ListByPortfolio(ctx context.Context, portfolioID string) ([]Position, error)
}

// TradeLedger provides trade history for wash-sale evaluation and records
// trades executed by the orchestrator.
type TradeLedger interface {
	// ListBuysSince returns BUY entries for the portfolio executed at or after
	// the cutoff, newest first.
	ListBuysSince(ctx context.Context, portfolioID string, since time.Time) ([]TradeHistoryEntry, error)
	Record(ctx context.Context, entry TradeHistoryEntry) error
}

// ExecutionStore persists harvest executions and their state transitions.
type ExecutionStore interface {
	Create(ctx context.Context, exec HarvestExecution) error
	Update(ctx context.Context, exec HarvestExecution) error
	GetByID(ctx context.Context, id string) (HarvestExecution, error)
	ListByPortfolio(ctx context.Context, portfolioID string, opts ListOpts) ([]HarvestExecution, error)
	// ListBefore returns executions started strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]HarvestExecution, error)
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

package domain

import (
	"context"
	"time"
)

// OpportunityCache is a time-bounded read cache of computed analysis reports.
// Entries expire by TTL and are invalidated explicitly whenever the trade
// ledger changes for a portfolio.
type OpportunityCache interface {
	Set(ctx context.Context, report AnalysisReport, ttl time.Duration) error
	// Get returns ErrNotFound when no fresh report exists for the portfolio.
	Get(ctx context.Context, portfolioID string) (AnalysisReport, error)
	Invalidate(ctx context.Context, portfolioID string) error
}

// LockManager provides advisory locking. At most one harvest execution may be
// in flight per (portfolio, symbol) key at any time.
type LockManager interface {
	// Acquire returns ErrLockHeld when the key is already locked. On success
	// the returned unlock func must be called to release the lock; it is safe
	// to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// BlobWriter uploads serialized artifacts (archived executions, reports) to
// object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// OpportunityCache implements domain.OpportunityCache using JSON-serialized
// analysis reports under per-portfolio keys.
//
// Key schema:
//
//	harvest:report:{portfolioID} - string value containing the JSON report
type OpportunityCache struct {
	rdb *redis.Client
}

// NewOpportunityCache creates an OpportunityCache backed by the given Client.
func NewOpportunityCache(c *Client) *OpportunityCache {
	return &OpportunityCache{rdb: c.Underlying()}
}

func reportKey(portfolioID string) string {
	return "harvest:report:" + portfolioID
}

// Set stores an analysis report with the given TTL.
func (oc *OpportunityCache) Set(ctx context.Context, report domain.AnalysisReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("redis: marshal report %s: %w", report.PortfolioID, err)
	}

	if err := oc.rdb.Set(ctx, reportKey(report.PortfolioID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set report %s: %w", report.PortfolioID, err)
	}
	return nil
}

// Get retrieves the cached analysis report for a portfolio.
// It returns domain.ErrNotFound when no report is cached.
func (oc *OpportunityCache) Get(ctx context.Context, portfolioID string) (domain.AnalysisReport, error) {
	data, err := oc.rdb.Get(ctx, reportKey(portfolioID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AnalysisReport{}, domain.ErrNotFound
		}
		return domain.AnalysisReport{}, fmt.Errorf("redis: get report %s: %w", portfolioID, err)
	}

	var report domain.AnalysisReport
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("redis: unmarshal report %s: %w", portfolioID, err)
	}
	return report, nil
}

// Invalidate removes the cached report for a portfolio. Called after any
// trade executes so the next analysis sees fresh ledger state.
func (oc *OpportunityCache) Invalidate(ctx context.Context, portfolioID string) error {
	if err := oc.rdb.Del(ctx, reportKey(portfolioID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate report %s: %w", portfolioID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OpportunityCache = (*OpportunityCache)(nil)

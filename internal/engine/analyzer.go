package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// AnalyzerParams holds the configured thresholds used during a scan.
type AnalyzerParams struct {
	MinLossAmount float64
	MinLossPct    float64
	TaxRate       float64
	CacheTTL      time.Duration
	// ScanConcurrency bounds the number of lots analyzed in parallel.
	ScanConcurrency int
}

// Analyzer scans a portfolio snapshot for harvestable losses. Analysis is
// read-only and stateless per call: lots are evaluated independently (and in
// parallel) and the results merged only at the ranking step. Computed reports
// are cached with a TTL and invalidated whenever the trade ledger changes.
type Analyzer struct {
	positions domain.PositionProvider
	ledger    domain.TradeLedger
	washsale  *WashSaleChecker
	alts      *AlternativeSelector
	cache     domain.OpportunityCache
	params    AnalyzerParams
	logger    *slog.Logger
	now       func() time.Time
}

// NewAnalyzer creates an Analyzer with all collaborators injected.
func NewAnalyzer(
	positions domain.PositionProvider,
	ledger domain.TradeLedger,
	washsale *WashSaleChecker,
	alts *AlternativeSelector,
	cache domain.OpportunityCache,
	params AnalyzerParams,
	logger *slog.Logger,
) *Analyzer {
	if params.ScanConcurrency <= 0 {
		params.ScanConcurrency = 8
	}
	return &Analyzer{
		positions: positions,
		ledger:    ledger,
		washsale:  washsale,
		alts:      alts,
		cache:     cache,
		params:    params,
		logger:    logger.With(slog.String("component", "analyzer")),
		now:       time.Now,
	}
}

// SetClock replaces the analyzer's time source. For tests.
func (a *Analyzer) SetClock(now func() time.Time) { a.now = now }

// Analyze produces the harvest report for a portfolio. It is idempotent and
// safe to call repeatedly; a fresh cached report is served when available.
// Lots with bad data are skipped (and counted in the summary), never fatal.
func (a *Analyzer) Analyze(ctx context.Context, portfolioID string) (domain.AnalysisReport, error) {
	if cached, err := a.cache.Get(ctx, portfolioID); err == nil {
		a.logger.DebugContext(ctx, "serving cached report",
			slog.String("portfolio_id", portfolioID),
		)
		return cached, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		a.logger.WarnContext(ctx, "opportunity cache read failed",
			slog.String("portfolio_id", portfolioID),
			slog.String("error", err.Error()),
		)
	}

	positions, err := a.positions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("analyzer: list positions for %s: %w", portfolioID, err)
	}

	// One ledger fetch shared by every lot's wash-sale evaluation.
	now := a.now()
	cutoff := now.AddDate(0, 0, -a.washsale.WindowDays())
	buys, err := a.ledger.ListBuysSince(ctx, portfolioID, cutoff)
	if err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("analyzer: list recent buys for %s: %w", portfolioID, err)
	}

	var (
		mu      sync.Mutex
		opps    []domain.TaxLossOpportunity
		skipped []domain.SkippedLot
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.params.ScanConcurrency)
	for _, pos := range positions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			opp, skip := a.analyzeLot(ctx, pos, buys, now)
			mu.Lock()
			defer mu.Unlock()
			if skip != nil {
				skipped = append(skipped, *skip)
			} else if opp != nil {
				opps = append(opps, *opp)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("analyzer: scan %s: %w", portfolioID, err)
	}

	Rank(opps)

	report := domain.AnalysisReport{
		PortfolioID:   portfolioID,
		GeneratedAt:   now,
		Summary:       Summarize(opps, skipped),
		Opportunities: opps,
		Skipped:       skipped,
	}

	if err := a.cache.Set(ctx, report, a.params.CacheTTL); err != nil {
		a.logger.WarnContext(ctx, "opportunity cache write failed",
			slog.String("portfolio_id", portfolioID),
			slog.String("error", err.Error()),
		)
	}

	a.logger.InfoContext(ctx, "portfolio analyzed",
		slog.String("portfolio_id", portfolioID),
		slog.Int("positions", len(positions)),
		slog.Int("opportunities", len(opps)),
		slog.Int("skipped", len(skipped)),
		slog.Float64("total_savings", report.Summary.TotalSavings),
	)
	return report, nil
}

// analyzeLot evaluates one position. It returns an opportunity, a skip record,
// or neither (the lot is at a gain or under the thresholds).
func (a *Analyzer) analyzeLot(
	ctx context.Context,
	pos domain.Position,
	buys []domain.TradeHistoryEntry,
	now time.Time,
) (*domain.TaxLossOpportunity, *domain.SkippedLot) {
	lot, err := Normalize(pos, now)
	if err != nil {
		reason := "invalid_position"
		if errors.Is(err, domain.ErrMissingPriceData) {
			reason = "missing_price_data"
		}
		a.logger.WarnContext(ctx, "lot skipped",
			slog.String("symbol", pos.Symbol),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return nil, &domain.SkippedLot{Symbol: pos.Symbol, Reason: reason}
	}

	if !MeetsThresholds(lot, a.params.MinLossAmount, a.params.MinLossPct) {
		return nil, nil
	}

	opp := domain.TaxLossOpportunity{
		Symbol:           lot.Symbol,
		AssetName:        lot.AssetName,
		Quantity:         lot.Quantity,
		CostBasis:        lot.AvgCost,
		CurrentPrice:     lot.Price,
		CurrentValue:     lot.MarketValue,
		UnrealizedLoss:   lot.Unrealized,
		LossPct:          lot.LossPct,
		HoldingDays:      lot.HoldingDays,
		PotentialSavings: TaxSavings(lot.Unrealized, a.params.TaxRate),
		Alternatives:     a.alts.Select(lot.Symbol, lot.AssetClass, lot.Sector),
	}
	if opp.AssetName == "" {
		opp.AssetName = lot.Symbol
	}

	if st := a.washsale.CheckEntries(lot.Symbol, buys); st.AtRisk {
		opp.WashSaleRisk = true
		ends := st.WindowEnds
		opp.WashSaleWindowEnds = &ends
	}

	return &opp, nil
}

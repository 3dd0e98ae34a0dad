package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAnalyzer(positions *fakePositions, ledger *fakeLedger, cache *fakeCache, now time.Time) *Analyzer {
	washsale := NewWashSaleChecker(ledger, nil, 30)
	washsale.SetClock(func() time.Time { return now })

	a := NewAnalyzer(positions, ledger, washsale, testSelector(), cache, AnalyzerParams{
		MinLossAmount: 500,
		MinLossPct:    5,
		TaxRate:       0.27,
		CacheTTL:      5 * time.Minute,
	}, testLogger())
	a.SetClock(func() time.Time { return now })
	return a
}

func TestAnalyzePortfolio(t *testing.T) {
	now := timeDate(2026, 8, 31)

	positions := &fakePositions{positions: []domain.Position{
		// Qualifying loss: -$2500 and -10%.
		{PortfolioID: "pf-1", Symbol: "SPY", AssetName: "SPDR S&P 500 ETF Trust",
			Quantity: 50, AvgCost: 500, Price: 450, AcquiredAt: now.AddDate(0, 0, -120)},
		// Gain, never harvestable.
		{PortfolioID: "pf-1", Symbol: "AAPL", Quantity: 100, AvgCost: 150, Price: 175},
		// Loss below the dollar threshold.
		{PortfolioID: "pf-1", Symbol: "MSFT", Quantity: 10, AvgCost: 300, Price: 295},
		// Unpriceable lot, skipped.
		{PortfolioID: "pf-1", Symbol: "BAD", Quantity: 0, AvgCost: 100, Price: 90},
	}}
	ledger := &fakeLedger{}
	cache := newFakeCache()

	report, err := testAnalyzer(positions, ledger, cache, now).Analyze(context.Background(), "pf-1")
	require.NoError(t, err)

	require.Len(t, report.Opportunities, 1)
	opp := report.Opportunities[0]
	assert.Equal(t, "SPY", opp.Symbol)
	assert.InDelta(t, -2500.0, opp.UnrealizedLoss, 1e-9)
	assert.InDelta(t, -10.0, opp.LossPct, 1e-9)
	assert.InDelta(t, 675.0, opp.PotentialSavings, 1e-9)
	assert.Equal(t, 120, opp.HoldingDays)
	assert.False(t, opp.WashSaleRisk)
	require.NotEmpty(t, opp.Alternatives)
	assert.Equal(t, "VOO", opp.Alternatives[0].Symbol)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "BAD", report.Skipped[0].Symbol)
	assert.Equal(t, "invalid_position", report.Skipped[0].Reason)

	assert.Equal(t, 1, report.Summary.OpportunityCount)
	assert.InDelta(t, 675.0, report.Summary.TotalSavings, 1e-9)
	assert.Equal(t, 1, report.Summary.SkippedCount)
}

func TestAnalyzeFlagsWashSaleRisk(t *testing.T) {
	now := timeDate(2026, 8, 31)
	bought := now.AddDate(0, 0, -10)

	positions := &fakePositions{positions: []domain.Position{
		{PortfolioID: "pf-1", Symbol: "SPY", Quantity: 50, AvgCost: 500, Price: 450},
	}}
	ledger := &fakeLedger{buys: []domain.TradeHistoryEntry{buyEntry("SPY", bought)}}
	cache := newFakeCache()

	report, err := testAnalyzer(positions, ledger, cache, now).Analyze(context.Background(), "pf-1")
	require.NoError(t, err)

	require.Len(t, report.Opportunities, 1)
	opp := report.Opportunities[0]
	assert.True(t, opp.WashSaleRisk)
	require.NotNil(t, opp.WashSaleWindowEnds)
	assert.Equal(t, bought.AddDate(0, 0, 30), *opp.WashSaleWindowEnds)
	assert.Equal(t, 1, report.Summary.WashSaleCount)
}

func TestAnalyzeRanksBySavings(t *testing.T) {
	now := timeDate(2026, 8, 31)

	positions := &fakePositions{positions: []domain.Position{
		{PortfolioID: "pf-1", Symbol: "SPY", Quantity: 50, AvgCost: 500, Price: 450},  // -$2500
		{PortfolioID: "pf-1", Symbol: "VOO", Quantity: 100, AvgCost: 100, Price: 50},  // -$5000
		{PortfolioID: "pf-1", Symbol: "AAPL", Quantity: 100, AvgCost: 100, Price: 90}, // -$1000
	}}
	cache := newFakeCache()

	report, err := testAnalyzer(positions, &fakeLedger{}, cache, now).Analyze(context.Background(), "pf-1")
	require.NoError(t, err)

	require.Len(t, report.Opportunities, 3)
	assert.Equal(t, "VOO", report.Opportunities[0].Symbol)
	assert.Equal(t, "SPY", report.Opportunities[1].Symbol)
	assert.Equal(t, "AAPL", report.Opportunities[2].Symbol)
}

func TestAnalyzeServesCachedReport(t *testing.T) {
	now := timeDate(2026, 8, 31)

	positions := &fakePositions{positions: []domain.Position{
		{PortfolioID: "pf-1", Symbol: "SPY", Quantity: 50, AvgCost: 500, Price: 450},
	}}
	cache := newFakeCache()
	analyzer := testAnalyzer(positions, &fakeLedger{}, cache, now)

	first, err := analyzer.Analyze(context.Background(), "pf-1")
	require.NoError(t, err)

	// Change the snapshot; a cached report must still be served verbatim.
	positions.positions = nil

	second, err := analyzer.Analyze(context.Background(), "pf-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// After invalidation the fresh snapshot is visible.
	require.NoError(t, cache.Invalidate(context.Background(), "pf-1"))
	third, err := analyzer.Analyze(context.Background(), "pf-1")
	require.NoError(t, err)
	assert.Empty(t, third.Opportunities)
}

func TestAnalyzeDeterministicAcrossRuns(t *testing.T) {
	now := timeDate(2026, 8, 31)

	positions := &fakePositions{positions: []domain.Position{
		{PortfolioID: "pf-1", Symbol: "VEA", Quantity: 100, AvgCost: 60, Price: 40},
		{PortfolioID: "pf-1", Symbol: "SPY", Quantity: 8, AvgCost: 500, Price: 250},
		{PortfolioID: "pf-1", Symbol: "QQQ", Quantity: 10, AvgCost: 400, Price: 300},
	}}

	var prev domain.AnalysisReport
	for i := 0; i < 5; i++ {
		cache := newFakeCache()
		report, err := testAnalyzer(positions, &fakeLedger{}, cache, now).Analyze(context.Background(), "pf-1")
		require.NoError(t, err)
		if i > 0 {
			assert.Equal(t, prev, report)
		}
		prev = report
	}

	// VEA and SPY tie at -$2000; symbol order breaks the tie.
	require.Len(t, prev.Opportunities, 3)
	assert.Equal(t, "SPY", prev.Opportunities[0].Symbol)
	assert.Equal(t, "VEA", prev.Opportunities[1].Symbol)
	assert.Equal(t, "QQQ", prev.Opportunities[2].Symbol)
}

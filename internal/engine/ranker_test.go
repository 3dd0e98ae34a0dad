package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

func TestRankOrdersBySavingsDescending(t *testing.T) {
	opps := []domain.TaxLossOpportunity{
		{Symbol: "AAA", PotentialSavings: 100},
		{Symbol: "BBB", PotentialSavings: 675},
		{Symbol: "CCC", PotentialSavings: 300},
	}

	Rank(opps)

	assert.Equal(t, "BBB", opps[0].Symbol)
	assert.Equal(t, "CCC", opps[1].Symbol)
	assert.Equal(t, "AAA", opps[2].Symbol)
}

func TestRankBreaksTiesBySymbol(t *testing.T) {
	opps := []domain.TaxLossOpportunity{
		{Symbol: "ZZZ", PotentialSavings: 500},
		{Symbol: "AAA", PotentialSavings: 500},
		{Symbol: "MMM", PotentialSavings: 500},
	}

	Rank(opps)

	assert.Equal(t, "AAA", opps[0].Symbol)
	assert.Equal(t, "MMM", opps[1].Symbol)
	assert.Equal(t, "ZZZ", opps[2].Symbol)
}

func TestSummarizeAggregates(t *testing.T) {
	ends := timeDate(2026, 9, 15)
	opps := []domain.TaxLossOpportunity{
		{Symbol: "SPY", UnrealizedLoss: -2500, LossPct: -10, PotentialSavings: 675},
		{Symbol: "VEA", UnrealizedLoss: -1000, LossPct: -20, PotentialSavings: 270,
			WashSaleRisk: true, WashSaleWindowEnds: &ends},
	}
	skipped := []domain.SkippedLot{{Symbol: "BAD", Reason: "invalid_position"}}

	sum := Summarize(opps, skipped)

	assert.Equal(t, 2, sum.OpportunityCount)
	assert.InDelta(t, 945.0, sum.TotalSavings, 1e-9)
	assert.InDelta(t, 3500.0, sum.TotalLoss, 1e-9)
	assert.InDelta(t, -15.0, sum.AvgLossPct, 1e-9)
	assert.Equal(t, 1, sum.WashSaleCount)
	assert.Equal(t, 1, sum.SkippedCount)
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, nil)
	require.Zero(t, sum.OpportunityCount)
	require.Zero(t, sum.AvgLossPct)
}

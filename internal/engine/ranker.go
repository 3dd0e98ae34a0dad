package engine

import (
	"sort"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// Rank orders opportunities by potential tax savings descending. Ties are
// broken by symbol ascending so repeated analyses of the same snapshot always
// produce the same ordering.
func Rank(opps []domain.TaxLossOpportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].PotentialSavings != opps[j].PotentialSavings {
			return opps[i].PotentialSavings > opps[j].PotentialSavings
		}
		return opps[i].Symbol < opps[j].Symbol
	})
}

// Summarize aggregates ranked opportunities into the portfolio-level summary.
func Summarize(opps []domain.TaxLossOpportunity, skipped []domain.SkippedLot) domain.HarvestSummary {
	sum := domain.HarvestSummary{
		OpportunityCount: len(opps),
		SkippedCount:     len(skipped),
	}

	var totalLossPct float64
	for _, opp := range opps {
		sum.TotalSavings += opp.PotentialSavings
		sum.TotalLoss += -opp.UnrealizedLoss
		totalLossPct += opp.LossPct
		if opp.WashSaleRisk {
			sum.WashSaleCount++
		}
	}
	if len(opps) > 0 {
		sum.AvgLossPct = totalLossPct / float64(len(opps))
	}
	return sum
}

package engine

import (
	"context"
	"fmt"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// Service is the facade consumed by the API layer. It honors the engine
// contract: Analyze is read-only and idempotent; Execute is not idempotent and
// rejects a repeated call for a symbol whose harvest is still in flight.
type Service struct {
	analyzer     *Analyzer
	orchestrator *Orchestrator
}

// NewService bundles the analyzer and orchestrator behind one API.
func NewService(analyzer *Analyzer, orchestrator *Orchestrator) *Service {
	return &Service{analyzer: analyzer, orchestrator: orchestrator}
}

// Analyze produces the harvest report for a portfolio.
func (s *Service) Analyze(ctx context.Context, portfolioID string) (domain.AnalysisReport, error) {
	return s.analyzer.Analyze(ctx, portfolioID)
}

// Execute harvests the named symbol. The opportunity is resolved from a fresh
// analysis of the portfolio snapshot; a symbol that is not currently a
// harvestable opportunity is rejected with ErrNotFound.
func (s *Service) Execute(
	ctx context.Context,
	portfolioID, symbol, altSymbol string,
	reinvest bool,
) (domain.HarvestExecution, error) {
	report, err := s.analyzer.Analyze(ctx, portfolioID)
	if err != nil {
		return domain.HarvestExecution{}, err
	}

	for _, opp := range report.Opportunities {
		if opp.Symbol == symbol {
			return s.orchestrator.Execute(ctx, portfolioID, opp, altSymbol, reinvest)
		}
	}
	return domain.HarvestExecution{}, fmt.Errorf(
		"engine: no harvestable opportunity for %s in %s: %w", symbol, portfolioID, domain.ErrNotFound)
}

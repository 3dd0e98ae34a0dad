package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

func newTestService(t *testing.T, positions *fakePositions, ledger *fakeLedger) (*Service, *orchFixture) {
	t.Helper()
	f := newOrchFixture(t, ledger)
	analyzer := testAnalyzer(positions, ledger, newFakeCache(), timeDate(2026, 8, 31))
	return NewService(analyzer, f.orch), f
}

func TestServiceExecuteResolvesOpportunityBySymbol(t *testing.T) {
	positions := &fakePositions{positions: []domain.Position{
		{PortfolioID: "pf-1", Symbol: "SPY", Quantity: 50, AvgCost: 500, Price: 450},
	}}
	svc, f := newTestService(t, positions, &fakeLedger{})

	exec, err := svc.Execute(context.Background(), "pf-1", "SPY", "", true)
	require.NoError(t, err)

	assert.Equal(t, domain.ExecCompleted, exec.State)
	assert.Equal(t, "SPY", exec.Symbol)
	assert.Equal(t, 50.0, exec.Quantity)
	require.Len(t, f.broker.submitted, 2)
}

func TestServiceExecuteUnknownSymbol(t *testing.T) {
	positions := &fakePositions{positions: []domain.Position{
		{PortfolioID: "pf-1", Symbol: "SPY", Quantity: 50, AvgCost: 500, Price: 450},
	}}
	svc, f := newTestService(t, positions, &fakeLedger{})

	_, err := svc.Execute(context.Background(), "pf-1", "TSLA", "", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.broker.submitted)
}

func TestServiceExecuteRejectsNonQualifyingPosition(t *testing.T) {
	// AAPL is held at a gain; it shows up in the portfolio but never in the
	// opportunity list, so harvesting it must fail.
	positions := &fakePositions{positions: []domain.Position{
		{PortfolioID: "pf-1", Symbol: "AAPL", Quantity: 100, AvgCost: 150, Price: 175},
	}}
	svc, f := newTestService(t, positions, &fakeLedger{})

	_, err := svc.Execute(context.Background(), "pf-1", "AAPL", "", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.broker.submitted)
}

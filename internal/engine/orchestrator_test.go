package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

type orchFixture struct {
	orch   *Orchestrator
	broker *fakeBroker
	locks  *fakeLocks
	execs  *fakeExecStore
	ledger *fakeLedger
	cache  *fakeCache
	audit  *fakeAudit
	notes  *fakeNotifier
}

func newOrchFixture(t *testing.T, ledger *fakeLedger) *orchFixture {
	t.Helper()

	now := timeDate(2026, 8, 31)
	washsale := NewWashSaleChecker(ledger, nil, 30)
	washsale.SetClock(func() time.Time { return now })

	f := &orchFixture{
		broker: &fakeBroker{},
		locks:  newFakeLocks(),
		execs:  newFakeExecStore(),
		ledger: ledger,
		cache:  newFakeCache(),
		audit:  &fakeAudit{},
		notes:  &fakeNotifier{},
	}
	f.orch = NewOrchestrator(
		washsale, f.broker, f.locks, f.execs, f.ledger, f.cache, f.audit, f.notes,
		OrchestratorParams{
			OrderTimeout: 200 * time.Millisecond,
			PollInterval: time.Millisecond,
			LockTTL:      time.Minute,
		},
		testLogger(),
	)
	f.orch.SetClock(func() time.Time { return now })
	return f
}

func spyOpportunity() domain.TaxLossOpportunity {
	return domain.TaxLossOpportunity{
		Symbol:           "SPY",
		Quantity:         50,
		UnrealizedLoss:   -2500,
		LossPct:          -10,
		PotentialSavings: 675,
		Alternatives: []domain.Alternative{
			{Symbol: "VOO", Name: "Vanguard S&P 500 ETF"},
			{Symbol: "IVV", Name: "iShares Core S&P 500 ETF"},
		},
	}
}

func stateIndex(states []domain.ExecutionState, want domain.ExecutionState) int {
	for i, s := range states {
		if s == want {
			return i
		}
	}
	return -1
}

func TestExecuteHappyPath(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})

	exec, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	require.NoError(t, err)

	assert.Equal(t, domain.ExecCompleted, exec.State)
	assert.Equal(t, "VOO", exec.AltSymbol) // first alternative by default
	assert.NotEmpty(t, exec.SellOrderRef)
	assert.NotEmpty(t, exec.BuyOrderRef)
	require.NotNil(t, exec.CompletedAt)

	// The persisted state sequence never submits the buy before the sell fill.
	sellFilled := stateIndex(f.execs.states, domain.ExecSellFilled)
	buySubmitted := stateIndex(f.execs.states, domain.ExecBuySubmitted)
	require.GreaterOrEqual(t, sellFilled, 0)
	require.GreaterOrEqual(t, buySubmitted, 0)
	assert.Less(t, sellFilled, buySubmitted)

	// Both legs recorded, cache invalidated, operators notified.
	require.Len(t, f.ledger.recorded, 2)
	assert.Equal(t, domain.TradeSideSell, f.ledger.recorded[0].Side)
	assert.Equal(t, "SPY", f.ledger.recorded[0].Symbol)
	assert.Equal(t, domain.TradeSideBuy, f.ledger.recorded[1].Side)
	assert.Equal(t, "VOO", f.ledger.recorded[1].Symbol)
	assert.Contains(t, f.cache.invalidated, "pf-1")
	assert.Contains(t, f.notes.events, "harvest_completed")
}

func TestExecuteNoReinvestStopsAfterSell(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})

	exec, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", false)
	require.NoError(t, err)

	assert.Equal(t, domain.ExecSellFilled, exec.State)
	require.NotNil(t, exec.CompletedAt)
	assert.Empty(t, exec.BuyOrderRef)

	require.Len(t, f.ledger.recorded, 1)
	assert.Equal(t, domain.TradeSideSell, f.ledger.recorded[0].Side)
	assert.Equal(t, -1, stateIndex(f.execs.states, domain.ExecBuySubmitted))
}

func TestExecuteSellSubmitFailureIsSafeAbort(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})
	f.broker.sellErr = domain.ErrBrokerRejected

	exec, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBrokerRejected)

	assert.Equal(t, domain.ExecSellFailed, exec.State)
	assert.True(t, exec.State.Terminal())
	assert.Empty(t, f.ledger.recorded)
	assert.Equal(t, -1, stateIndex(f.execs.states, domain.ExecBuySubmitted))
}

func TestExecuteSellRejectionCancelsAndAborts(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})
	f.broker.sellStatus = domain.OrderStatusRejected

	exec, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBrokerRejected)

	assert.Equal(t, domain.ExecSellFailed, exec.State)
	assert.Contains(t, f.broker.cancelled, exec.SellOrderRef)
	assert.Empty(t, f.ledger.recorded)
}

func TestExecuteSellTimeoutAborts(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})
	f.broker.sellStatus = domain.OrderStatusAccepted // never fills

	exec, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBrokerTimeout)
	assert.Equal(t, domain.ExecSellFailed, exec.State)
	assert.Contains(t, f.broker.cancelled, exec.SellOrderRef)
}

func TestExecuteBuyFailureIsPartialExecution(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})
	f.broker.buyErr = domain.ErrBrokerRejected

	exec, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialExecution)

	assert.Equal(t, domain.ExecPartial, exec.State)
	assert.True(t, exec.State.Terminal())
	assert.NotEmpty(t, exec.FailureReason)

	// The sell leg is real and stays recorded; operators are alerted.
	require.Len(t, f.ledger.recorded, 1)
	assert.Equal(t, domain.TradeSideSell, f.ledger.recorded[0].Side)
	assert.Contains(t, f.notes.events, "partial_execution")
	assert.Contains(t, f.audit.events, "partial_execution")
}

func TestExecuteBuyTimeoutIsPartialNotRetried(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})
	f.broker.buyStatus = domain.OrderStatusAccepted // never fills

	exec, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialExecution)
	assert.Equal(t, domain.ExecPartial, exec.State)

	// Exactly one buy submission: a blind retry could double the position.
	var buys int
	for _, o := range f.broker.submitted {
		if o.Side == domain.TradeSideBuy {
			buys++
		}
	}
	assert.Equal(t, 1, buys)
}

func TestExecuteRejectsConcurrentHarvest(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})

	_, err := f.locks.Acquire(context.Background(), lockKey("pf-1", "SPY"), time.Minute)
	require.NoError(t, err)

	_, err = f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	assert.ErrorIs(t, err, domain.ErrHarvestInProgress)
	assert.Empty(t, f.broker.submitted)
}

func TestExecuteRechecksWashSaleBeforeSelling(t *testing.T) {
	now := timeDate(2026, 8, 31)
	ledger := &fakeLedger{buys: []domain.TradeHistoryEntry{
		buyEntry("SPY", now.AddDate(0, 0, -5)),
	}}
	f := newOrchFixture(t, ledger)

	_, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	assert.ErrorIs(t, err, domain.ErrWashSaleViolation)
	assert.Empty(t, f.broker.submitted)
	assert.Empty(t, f.ledger.recorded)
}

func TestExecuteHonorsExplicitAlternative(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})

	exec, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "IVV", true)
	require.NoError(t, err)
	assert.Equal(t, "IVV", exec.AltSymbol)
	assert.Equal(t, "IVV", f.ledger.recorded[1].Symbol)
}

func TestExecuteReleasesLockAfterCompletion(t *testing.T) {
	f := newOrchFixture(t, &fakeLedger{})

	_, err := f.orch.Execute(context.Background(), "pf-1", spyOpportunity(), "", true)
	require.NoError(t, err)

	// The same harvest can start again once the first one finished.
	unlock, err := f.locks.Acquire(context.Background(), lockKey("pf-1", "SPY"), time.Minute)
	require.NoError(t, err)
	unlock()
}

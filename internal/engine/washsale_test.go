package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

func buyEntry(symbol string, executedAt time.Time) domain.TradeHistoryEntry {
	return domain.TradeHistoryEntry{
		PortfolioID: "pf-1",
		Symbol:      symbol,
		Side:        domain.TradeSideBuy,
		Quantity:    10,
		ExecutedAt:  executedAt,
	}
}

func TestWashSaleBuyInsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	bought := now.AddDate(0, 0, -29)

	c := NewWashSaleChecker(&fakeLedger{buys: []domain.TradeHistoryEntry{
		buyEntry("VTI", bought),
	}}, nil, 30)
	c.SetClock(func() time.Time { return now })

	status, err := c.Check(context.Background(), "pf-1", "VTI")
	require.NoError(t, err)
	assert.True(t, status.AtRisk)
	assert.Equal(t, "VTI", status.TriggeringSymbol)
	assert.Equal(t, bought.AddDate(0, 0, 30), status.WindowEnds)
}

func TestWashSaleBuyOutsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	c := NewWashSaleChecker(&fakeLedger{buys: []domain.TradeHistoryEntry{
		buyEntry("VTI", now.AddDate(0, 0, -31)),
	}}, nil, 30)
	c.SetClock(func() time.Time { return now })

	status, err := c.Check(context.Background(), "pf-1", "VTI")
	require.NoError(t, err)
	assert.False(t, status.AtRisk)
}

func TestWashSaleIdenticalInstrumentTriggers(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	identical := map[string][]string{"VOO": {"VFIAX"}}

	c := NewWashSaleChecker(&fakeLedger{buys: []domain.TradeHistoryEntry{
		buyEntry("VFIAX", now.AddDate(0, 0, -10)),
	}}, identical, 30)
	c.SetClock(func() time.Time { return now })

	status, err := c.Check(context.Background(), "pf-1", "VOO")
	require.NoError(t, err)
	assert.True(t, status.AtRisk)
	assert.Equal(t, "VFIAX", status.TriggeringSymbol)
}

func TestWashSaleUnrelatedSymbolIgnored(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	c := NewWashSaleChecker(&fakeLedger{buys: []domain.TradeHistoryEntry{
		buyEntry("QQQ", now.AddDate(0, 0, -5)),
	}}, nil, 30)
	c.SetClock(func() time.Time { return now })

	status, err := c.Check(context.Background(), "pf-1", "VTI")
	require.NoError(t, err)
	assert.False(t, status.AtRisk)
}

func TestWashSaleMostRecentBuyWins(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	older := now.AddDate(0, 0, -25)
	newer := now.AddDate(0, 0, -3)

	c := NewWashSaleChecker(nil, nil, 30)
	c.SetClock(func() time.Time { return now })

	status := c.CheckEntries("VTI", []domain.TradeHistoryEntry{
		buyEntry("VTI", older),
		buyEntry("VTI", newer),
	})
	assert.True(t, status.AtRisk)
	assert.Equal(t, newer.AddDate(0, 0, 30), status.WindowEnds)
}

func TestWashSaleSellEntriesIgnored(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	c := NewWashSaleChecker(nil, nil, 30)
	c.SetClock(func() time.Time { return now })

	status := c.CheckEntries("VTI", []domain.TradeHistoryEntry{
		{Symbol: "VTI", Side: domain.TradeSideSell, ExecutedAt: now.AddDate(0, 0, -5)},
	})
	assert.False(t, status.AtRisk)
}

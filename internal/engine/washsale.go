package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// WashSaleStatus is the result of a wash-sale evaluation for one symbol.
type WashSaleStatus struct {
	AtRisk bool
	// WindowEnds is the most recent qualifying buy date plus the window
	// length. Only meaningful when AtRisk is true.
	WindowEnds time.Time
	// TriggeringSymbol is the bought symbol that caused the flag. It differs
	// from the checked symbol when a substantially-identical instrument was
	// bought.
	TriggeringSymbol string
}

// WashSaleChecker determines whether selling a symbol now would run afoul of
// the wash-sale rule: a BUY of the same or a substantially-identical security
// within the trailing window disallows the loss deduction. The check is
// conservative and backward-looking only; keeping the forward window clean is
// the alternative selector's job (it never proposes an identical instrument).
type WashSaleChecker struct {
	ledger     domain.TradeLedger
	identical  map[string][]string
	windowDays int
	now        func() time.Time
}

// NewWashSaleChecker creates a checker over the given ledger. identical maps
// each symbol to the symbols considered substantially identical to it.
func NewWashSaleChecker(ledger domain.TradeLedger, identical map[string][]string, windowDays int) *WashSaleChecker {
	return &WashSaleChecker{
		ledger:     ledger,
		identical:  identical,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// SetClock replaces the checker's time source. For tests.
func (c *WashSaleChecker) SetClock(now func() time.Time) { c.now = now }

// WindowDays returns the configured look-back window length.
func (c *WashSaleChecker) WindowDays() int { return c.windowDays }

// Check fetches the portfolio's recent buys from the ledger and evaluates the
// wash-sale status for symbol.
func (c *WashSaleChecker) Check(ctx context.Context, portfolioID, symbol string) (WashSaleStatus, error) {
	cutoff := c.now().AddDate(0, 0, -c.windowDays)
	buys, err := c.ledger.ListBuysSince(ctx, portfolioID, cutoff)
	if err != nil {
		return WashSaleStatus{}, fmt.Errorf("washsale: list buys for %s: %w", portfolioID, err)
	}
	return c.CheckEntries(symbol, buys), nil
}

// CheckEntries evaluates the wash-sale status for symbol against an already
// fetched set of ledger entries. Entries outside the trailing window and
// non-buy entries are ignored, so callers may pass a shared prefetched slice.
func (c *WashSaleChecker) CheckEntries(symbol string, entries []domain.TradeHistoryEntry) WashSaleStatus {
	cutoff := c.now().AddDate(0, 0, -c.windowDays)

	var status WashSaleStatus
	for _, e := range entries {
		if e.Side != domain.TradeSideBuy {
			continue
		}
		if e.ExecutedAt.Before(cutoff) {
			continue
		}
		if !c.sameOrIdentical(symbol, e.Symbol) {
			continue
		}
		windowEnds := e.ExecutedAt.AddDate(0, 0, c.windowDays)
		if !status.AtRisk || windowEnds.After(status.WindowEnds) {
			status.AtRisk = true
			status.WindowEnds = windowEnds
			status.TriggeringSymbol = e.Symbol
		}
	}
	return status
}

func (c *WashSaleChecker) sameOrIdentical(symbol, bought string) bool {
	if symbol == bought {
		return true
	}
	for _, id := range c.identical[symbol] {
		if id == bought {
			return true
		}
	}
	return false
}

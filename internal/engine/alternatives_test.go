package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconadvisor/taxharvest/internal/config"
)

func testSelector() *AlternativeSelector {
	return NewAlternativeSelector(config.AlternativesConfig{
		Symbols: map[string][]string{
			"SPY": {"VOO", "IVV", "SWPPX"},
			"VOO": {"SPY", "IVV", "VFIAX"},
		},
		Sectors: map[string][]string{
			"technology": {"XLK", "FTEC", "VGT"},
		},
		BroadMarket: []string{"VTI", "ITOT", "SCHB"},
		Identical:   map[string][]string{"VOO": {"VFIAX"}},
		Names:       map[string]string{"VOO": "Vanguard S&P 500 ETF"},
	})
}

func TestSelectSymbolMappingPreservesOrder(t *testing.T) {
	alts := testSelector().Select("SPY", "etf", "")
	require.Len(t, alts, 3)
	assert.Equal(t, "VOO", alts[0].Symbol)
	assert.Equal(t, "IVV", alts[1].Symbol)
	assert.Equal(t, "SWPPX", alts[2].Symbol)
	assert.Equal(t, "Vanguard S&P 500 ETF", alts[0].Name)
	assert.Equal(t, "IVV ETF", alts[1].Name)
}

func TestSelectFiltersIdenticalCandidates(t *testing.T) {
	alts := testSelector().Select("VOO", "etf", "")
	require.Len(t, alts, 2)
	for _, a := range alts {
		assert.NotEqual(t, "VFIAX", a.Symbol)
		assert.NotEqual(t, "VOO", a.Symbol)
	}
}

func TestSelectSectorFallback(t *testing.T) {
	alts := testSelector().Select("AAPL", "stock", "Technology")
	require.Len(t, alts, 3)
	assert.Equal(t, "XLK", alts[0].Symbol)
}

func TestSelectBroadMarketFallbackForStocks(t *testing.T) {
	alts := testSelector().Select("ZZZZ", "stock", "shipping")
	require.Len(t, alts, 3)
	assert.Equal(t, "VTI", alts[0].Symbol)
}

func TestSelectNoFallbackForUnknownNonStock(t *testing.T) {
	alts := testSelector().Select("MUNI1", "bond", "")
	assert.Empty(t, alts)
}

package engine

import (
	"strings"

	"github.com/falconadvisor/taxharvest/internal/config"
	"github.com/falconadvisor/taxharvest/internal/domain"
)

// AlternativeSelector maps a harvested symbol to an ordered list of substitute
// instruments that track similar exposure but are not substantially identical.
// It is a lookup against configured tables, not an algorithm: symbol-level
// mappings first, then sector defaults, then a broad-market set for plain
// stocks. An empty result means harvesting leaves a market-exposure gap; it is
// never an error.
type AlternativeSelector struct {
	symbols     map[string][]string
	sectors     map[string][]string
	broadMarket []string
	identical   map[string][]string
	names       map[string]string
}

// NewAlternativeSelector builds a selector from the configured mapping tables.
func NewAlternativeSelector(cfg config.AlternativesConfig) *AlternativeSelector {
	return &AlternativeSelector{
		symbols:     cfg.Symbols,
		sectors:     cfg.Sectors,
		broadMarket: cfg.BroadMarket,
		identical:   cfg.Identical,
		names:       cfg.Names,
	}
}

// Select returns the ordered substitute list for a symbol. Candidates equal to
// the symbol itself or substantially identical to it are filtered out, so a
// post-harvest repurchase through a suggested alternative can never re-trigger
// the wash-sale rule.
func (s *AlternativeSelector) Select(symbol, assetClass, sector string) []domain.Alternative {
	symbol = strings.ToUpper(symbol)

	candidates, ok := s.symbols[symbol]
	if !ok {
		candidates = s.sectors[strings.ToLower(sector)]
	}
	if len(candidates) == 0 && strings.EqualFold(assetClass, "stock") {
		candidates = s.broadMarket
	}

	out := make([]domain.Alternative, 0, len(candidates))
	for _, cand := range candidates {
		if cand == symbol || s.isIdentical(symbol, cand) {
			continue
		}
		out = append(out, domain.Alternative{Symbol: cand, Name: s.displayName(cand)})
	}
	return out
}

func (s *AlternativeSelector) isIdentical(symbol, candidate string) bool {
	for _, id := range s.identical[symbol] {
		if id == candidate {
			return true
		}
	}
	return false
}

func (s *AlternativeSelector) displayName(symbol string) string {
	if name, ok := s.names[symbol]; ok {
		return name
	}
	return symbol + " ETF"
}

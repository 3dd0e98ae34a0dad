package domain

import "time"

// TradeSide indicates whether a ledger entry is a buy or sell.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Position is a raw holding as reported by the portfolio provider: a quantity
// of a single instrument held at an average cost basis. Positions are owned by
// the provider and read-only to the engine.
type Position struct {
	PortfolioID string
	Symbol      string
	AssetName   string
	AssetClass  string // "etf", "stock", ...
	Sector      string
	Quantity    float64
	AvgCost     float64 // average cost basis per unit
	Price       float64 // current price per unit
	AcquiredAt  time.Time
}

// Lot is a normalized position with all derived loss metrics computed. It is
// the unit the decision engine operates on.
type Lot struct {
	Symbol      string
	AssetName   string
	AssetClass  string
	Sector      string
	Quantity    float64
	AvgCost     float64
	Price       float64
	MarketValue float64 // Quantity * Price
	CostBasis   float64 // Quantity * AvgCost
	Unrealized  float64 // MarketValue - CostBasis (negative for a loss)
	LossPct     float64 // Unrealized / CostBasis * 100
	HoldingDays int
}

// TradeHistoryEntry is a single executed trade from the ledger provider.
// Immutable once recorded.
type TradeHistoryEntry struct {
	ID          int64
	PortfolioID string
	Symbol      string
	Side        TradeSide
	Quantity    float64
	Price       float64
	ExecutedAt  time.Time
}

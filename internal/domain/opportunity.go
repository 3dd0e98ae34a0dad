package domain

import "time"

// Alternative is a substitute instrument that tracks similar exposure to a
// harvested symbol without being substantially identical to it.
type Alternative struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// TaxLossOpportunity is a harvestable unrealized loss. Opportunities are value
// objects: constructed fresh on every analysis call and never mutated after
// construction.
type TaxLossOpportunity struct {
	Symbol             string        `json:"symbol"`
	AssetName          string        `json:"asset_name"`
	Quantity           float64       `json:"quantity"`
	CostBasis          float64       `json:"cost_basis"` // per unit
	CurrentPrice       float64       `json:"current_price"`
	CurrentValue       float64       `json:"current_value"`
	UnrealizedLoss     float64       `json:"unrealized_loss"` // negative
	LossPct            float64       `json:"loss_percentage"` // negative
	HoldingDays        int           `json:"holding_period_days"`
	PotentialSavings   float64       `json:"potential_tax_savings"`
	Alternatives       []Alternative `json:"alternatives"`
	WashSaleRisk       bool          `json:"wash_sale_risk"`
	WashSaleWindowEnds *time.Time    `json:"wash_sale_window_ends,omitempty"`
}

// SkippedLot records a position omitted from a scan because its metrics could
// not be computed. The scan continues past it; the omission is surfaced in the
// report rather than failing the analysis.
type SkippedLot struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"` // "invalid_position" or "missing_price_data"
}

// HarvestSummary is the portfolio-level aggregate over all opportunities.
type HarvestSummary struct {
	OpportunityCount int     `json:"opportunities_count"`
	TotalSavings     float64 `json:"total_potential_savings"`
	TotalLoss        float64 `json:"total_realized_loss"` // absolute value
	AvgLossPct       float64 `json:"average_loss_percentage"`
	WashSaleCount    int     `json:"wash_sale_risks"`
	SkippedCount     int     `json:"skipped_lots"`
}

// AnalysisReport is the full result of one portfolio analysis pass.
type AnalysisReport struct {
	PortfolioID   string               `json:"portfolio_id"`
	GeneratedAt   time.Time            `json:"generated_at"`
	Summary       HarvestSummary       `json:"summary"`
	Opportunities []TaxLossOpportunity `json:"opportunities"`
	Skipped       []SkippedLot         `json:"skipped,omitempty"`
}

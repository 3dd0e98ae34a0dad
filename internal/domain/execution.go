package domain

import "time"

// ExecutionState tracks a harvest execution through its state machine.
type ExecutionState string

const (
	ExecPending       ExecutionState = "PENDING"
	ExecSellSubmitted ExecutionState = "SELL_SUBMITTED"
	ExecSellFilled    ExecutionState = "SELL_FILLED"
	ExecBuySubmitted  ExecutionState = "BUY_SUBMITTED"
	ExecBuyFilled     ExecutionState = "BUY_FILLED"
	ExecCompleted     ExecutionState = "COMPLETED"
	ExecSellFailed    ExecutionState = "SELL_FAILED"
	// ExecPartial means the sell leg filled but the buy leg did not. The
	// account is out of its prior market exposure and the execution needs
	// operator reconciliation. Never reported as success.
	ExecPartial ExecutionState = "PARTIAL_EXECUTION"
)

// Terminal reports whether the state machine stops at s. SELL_FILLED is
// terminal only for no-reinvest harvests.
func (s ExecutionState) Terminal() bool {
	switch s {
	case ExecCompleted, ExecSellFailed, ExecPartial:
		return true
	}
	return false
}

// HarvestExecution is one sell-then-buy harvest request and its outcome. One
// instance exists per execution request.
type HarvestExecution struct {
	ID            string         `json:"id"`
	PortfolioID   string         `json:"portfolio_id"`
	Symbol        string         `json:"symbol"`
	Quantity      float64        `json:"quantity"`
	RealizedLoss  float64        `json:"realized_loss"`
	TaxSavings    float64        `json:"tax_savings"`
	Reinvest      bool           `json:"reinvest"`
	SellOrderRef  string         `json:"sell_order_ref,omitempty"`
	BuyOrderRef   string         `json:"buy_order_ref,omitempty"` // empty until the buy leg runs
	AltSymbol     string         `json:"alternative_symbol,omitempty"`
	State         ExecutionState `json:"state"`
	FailureReason string         `json:"failure_reason,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

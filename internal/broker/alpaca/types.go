package alpaca

import (
	"strconv"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// --------------------------------------------------------------------------
// Alpaca API DTOs
// --------------------------------------------------------------------------

// orderRequest is the payload for POST /v2/orders. Alpaca encodes quantities
// as strings on the wire.
type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"` // "buy" or "sell"
	Type        string `json:"type"` // always "market" here
	TimeInForce string `json:"time_in_force"`
}

// orderResponse represents an order as returned by the Alpaca REST API.
type orderResponse struct {
	ID             string `json:"id"`
	ClientOrderID  string `json:"client_order_id"`
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	Status         string `json:"status"`
}

// errorResponse is Alpaca's error envelope.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toDomain converts an Alpaca order into the broker-neutral representation.
func (o orderResponse) toDomain() domain.BrokerOrder {
	return domain.BrokerOrder{
		Ref:            o.ID,
		Symbol:         o.Symbol,
		Side:           domain.TradeSide(o.Side),
		Status:         mapStatus(o.Status),
		FilledQty:      parseFloat(o.FilledQty),
		FilledAvgPrice: parseFloat(o.FilledAvgPrice),
	}
}

// mapStatus folds Alpaca's order statuses onto the domain lifecycle. Alpaca
// has more intermediate states than the engine cares about; anything not yet
// terminal and not filled reads as accepted.
func mapStatus(s string) domain.OrderStatus {
	switch s {
	case "new":
		return domain.OrderStatusNew
	case "filled":
		return domain.OrderStatusFilled
	case "rejected":
		return domain.OrderStatusRejected
	case "canceled", "pending_cancel", "done_for_day":
		return domain.OrderStatusCancelled
	case "expired":
		return domain.OrderStatusExpired
	default:
		// accepted, partially_filled, pending_new, calculated, ...
		return domain.OrderStatusAccepted
	}
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

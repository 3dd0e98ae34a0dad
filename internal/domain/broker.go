package domain

import "context"

// OrderStatus is the broker-side lifecycle state of a submitted order.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// TerminalOrder reports whether the broker will make no further progress on an
// order in this status.
func TerminalOrder(s OrderStatus) bool {
	switch s {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// BrokerOrder is the broker's view of a submitted order.
type BrokerOrder struct {
	Ref            string // broker-assigned order reference
	Symbol         string
	Side           TradeSide
	Status         OrderStatus
	FilledQty      float64
	FilledAvgPrice float64
}

// Brokerage is the execution API collaborator. All calls block with a bounded
// wait governed by the caller's context.
type Brokerage interface {
	SubmitMarketSell(ctx context.Context, symbol string, qty float64) (BrokerOrder, error)
	SubmitMarketBuy(ctx context.Context, symbol string, qty float64) (BrokerOrder, error)
	GetOrderStatus(ctx context.Context, ref string) (BrokerOrder, error)
	// CancelOrder is best-effort: the broker may have already filled the order.
	CancelOrder(ctx context.Context, ref string) error
}

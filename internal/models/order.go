package models

import "time"

// OrderSide represents the direction of an order
type OrderSide string

// Order sides
const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the opposing side
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType represents the execution type of an order
type OrderType string

// Order types
const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

// Order statuses. Filled, rejected, canceled and lost are terminal.
const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusOpen     OrderStatus = "OPEN"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusLost     OrderStatus = "LOST"
	OrderStatusError    OrderStatus = "ERROR"
	OrderStatusUnknown  OrderStatus = "UNKNOWN"
)

// IsTerminal reports whether the status ends the order lifecycle
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusCanceled, OrderStatusLost:
		return true
	}
	return false
}

// TimeInForce represents how long an order remains active
type TimeInForce string

// Time-in-force policies
const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
)

// Order represents a simulation-local order. Orders are created when a
// signal is processed and mutated only by the execution steps; terminal
// orders leave the active set but stay in history.
type Order struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	Qty         float64     `json:"qty"`
	Price       float64     `json:"price,omitempty"`
	TakeProfit  *float64    `json:"take_profit,omitempty"`
	StopLoss    *float64    `json:"stop_loss,omitempty"`
	TimeInForce TimeInForce `json:"time_in_force,omitempty"`
	Status      OrderStatus `json:"status"`
	FilledQty   float64     `json:"filled_qty,omitempty"`
	FilledPrice float64     `json:"filled_price,omitempty"`
	Commission  float64     `json:"commission,omitempty"`
	CreatedAt   time.Time   `json:"created_time"`
}

package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yourusername/tradeforge/internal/models"
)

// Position is the exchange's view of an open position
type Position struct {
	Symbol     string
	Side       models.OrderSide
	Size       float64
	EntryPrice float64
}

// Order is the exchange's view of an order
type Order struct {
	OrderID   string
	Symbol    string
	Side      models.OrderSide
	Type      models.OrderType
	Qty       float64
	Price     float64
	FilledQty float64
	AvgPrice  float64
	Status    models.OrderStatus
}

// Wire payloads. Exchange numbers arrive as strings so precision survives the
// trip; decimal parsing rejects garbage instead of silently reading zero.
type positionPayload struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Size     string `json:"size"`
	AvgPrice string `json:"avgPrice"`
}

type orderPayload struct {
	OrderID     string `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	CumExecQty  string `json:"cumExecQty"`
	AvgPrice    string `json:"avgPrice"`
	OrderStatus string `json:"orderStatus"`
}

type positionList struct {
	List []positionPayload `json:"list"`
}

type orderList struct {
	List []orderPayload `json:"list"`
}

func (p positionPayload) toPosition() (Position, error) {
	size, err := parseDecimal(p.Size, "size")
	if err != nil {
		return Position{}, err
	}
	entry, err := parseDecimal(p.AvgPrice, "avgPrice")
	if err != nil {
		return Position{}, err
	}
	return Position{
		Symbol:     p.Symbol,
		Side:       normalizeSide(p.Side),
		Size:       size,
		EntryPrice: entry,
	}, nil
}

func (o orderPayload) toOrder() (Order, error) {
	qty, err := parseDecimal(o.Qty, "qty")
	if err != nil {
		return Order{}, err
	}
	price := 0.0
	if o.Price != "" {
		if price, err = parseDecimal(o.Price, "price"); err != nil {
			return Order{}, err
		}
	}
	filledQty, err := parseDecimal(o.CumExecQty, "cumExecQty")
	if err != nil {
		return Order{}, err
	}
	avgPrice, err := parseDecimal(o.AvgPrice, "avgPrice")
	if err != nil {
		return Order{}, err
	}
	return Order{
		OrderID:   o.OrderID,
		Symbol:    o.Symbol,
		Side:      normalizeSide(o.Side),
		Type:      normalizeOrderType(o.OrderType),
		Qty:       qty,
		Price:     price,
		FilledQty: filledQty,
		AvgPrice:  avgPrice,
		Status:    normalizeStatus(o.OrderStatus),
	}, nil
}

func parseDecimal(s, field string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return d.InexactFloat64(), nil
}

func normalizeSide(s string) models.OrderSide {
	switch s {
	case "Buy", "BUY", "buy":
		return models.OrderSideBuy
	case "Sell", "SELL", "sell":
		return models.OrderSideSell
	}
	return models.OrderSide(s)
}

func normalizeOrderType(s string) models.OrderType {
	switch s {
	case "Market", "MARKET":
		return models.OrderTypeMarket
	case "Limit", "LIMIT":
		return models.OrderTypeLimit
	case "Stop", "STOP":
		return models.OrderTypeStop
	}
	return models.OrderType(s)
}

func normalizeStatus(s string) models.OrderStatus {
	switch s {
	case "New", "Created":
		return models.OrderStatusOpen
	case "PartiallyFilled":
		return models.OrderStatusOpen
	case "Filled":
		return models.OrderStatusFilled
	case "Cancelled", "Canceled":
		return models.OrderStatusCanceled
	case "Rejected":
		return models.OrderStatusRejected
	}
	if s == "" {
		return models.OrderStatusUnknown
	}
	return models.OrderStatus(s)
}

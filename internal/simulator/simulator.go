// Package simulator models order execution against the last known market
// tick: slippage, commission, limit favorability and simulated rejections.
package simulator

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/models"
)

// RejectReason classifies a non-fill outcome from ExecuteOrder
type RejectReason string

// Reject reasons
const (
	RejectNoMarketData       RejectReason = "NO_MARKET_DATA"
	RejectSimulated          RejectReason = "SIMULATED_REJECTION"
	RejectNotFilledIOC       RejectReason = "NOT_FILLED_IOC"
	RejectUnsupportedType    RejectReason = "UNSUPPORTED_ORDER_TYPE"
	RejectLimitPriceRequired RejectReason = "LIMIT_PRICE_REQUIRED"
)

// Execution is the structured result of submitting an order to the simulator.
// Failures are reported here, never as Go errors: the engine treats a
// non-filled execution as a recoverable event.
type Execution struct {
	Status     models.OrderStatus `json:"status"`
	OrderID    string             `json:"order_id"`
	Symbol     string             `json:"symbol"`
	Side       models.OrderSide   `json:"side"`
	Type       models.OrderType   `json:"type"`
	Qty        float64            `json:"qty"`
	Price      float64            `json:"price"`
	FilledQty  float64            `json:"filled_qty"`
	AvgPrice   float64            `json:"avg_price"`
	Commission float64            `json:"commission"`
	Reject     RejectReason       `json:"reject_reason,omitempty"`
	Message    string             `json:"message"`
}

// MarketSimulator holds the latest ticker per symbol plus a synthetic order
// book and answers "what happens if I submit this order right now".
type MarketSimulator struct {
	slippage   float64
	commission float64
	rejectProb float64
	liquidity  float64
	rng        *rand.Rand
	tickers    map[string]models.Candle
	books      map[string]OrderBook
	logger     *logrus.Logger
}

// NewMarketSimulator creates a simulator from percent-based config. The RNG
// is injected so rejection and book-volume draws are reproducible.
func NewMarketSimulator(cfg config.SimulatorConfig, rng *rand.Rand, logger *logrus.Logger) *MarketSimulator {
	if logger == nil {
		logger = logrus.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	liquidity := cfg.LiquidityFactor
	if liquidity <= 0 {
		liquidity = 1.0
	}

	return &MarketSimulator{
		slippage:   cfg.SlippagePct / 100,
		commission: cfg.CommissionPct / 100,
		rejectProb: cfg.RejectProbability,
		liquidity:  liquidity,
		rng:        rng,
		tickers:    make(map[string]models.Candle),
		books:      make(map[string]OrderBook),
		logger:     logger,
	}
}

// UpdateMarketData replaces the latest ticker for a symbol and rebuilds the
// synthetic order book from the close price. Always succeeds.
func (s *MarketSimulator) UpdateMarketData(symbol string, candle models.Candle) {
	s.tickers[symbol] = candle
	s.books[symbol] = s.buildOrderBook(candle)
}

// Ticker returns the most recent candle for a symbol
func (s *MarketSimulator) Ticker(symbol string) (models.Candle, bool) {
	candle, ok := s.tickers[symbol]
	return candle, ok
}

// OrderBookFor returns the synthetic book for a symbol. The ladder is
// informational only; fill logic works off the ticker close.
func (s *MarketSimulator) OrderBookFor(symbol string) (OrderBook, bool) {
	book, ok := s.books[symbol]
	return book, ok
}

// ExecuteOrder simulates submitting an order against the current ticker.
func (s *MarketSimulator) ExecuteOrder(order models.Order) Execution {
	ticker, ok := s.tickers[order.Symbol]
	if !ok {
		return s.reject(order, RejectNoMarketData, "no market data available for symbol")
	}

	// Simulated exchange-side fault. The draw happens before any price logic
	// so rejection probability is independent of order parameters.
	if s.rng.Float64() < s.rejectProb {
		return s.reject(order, RejectSimulated, "order rejected (simulated exchange issue)")
	}

	currentPrice := ticker.Close

	var executionPrice float64
	switch order.Type {
	case models.OrderTypeMarket:
		direction := 1.0
		if order.Side == models.OrderSideSell {
			direction = -1.0
		}
		executionPrice = currentPrice * (1 + s.slippage*direction)

	case models.OrderTypeLimit:
		if order.Price <= 0 {
			return s.reject(order, RejectLimitPriceRequired, "limit order must have a price")
		}
		// A buy limit below the close (or sell limit above) has not been
		// reached by the market yet and rests open; at or through the close
		// it fills at the limit price. Close-only granularity, so this is a
		// known simplification of intrabar crossing.
		resting := (order.Side == models.OrderSideBuy && order.Price < currentPrice) ||
			(order.Side == models.OrderSideSell && order.Price > currentPrice)
		if resting {
			if order.TimeInForce == models.TimeInForceIOC {
				return s.reject(order, RejectNotFilledIOC, "order not filled (price not favorable, IOC)")
			}
			return Execution{
				Status:  models.OrderStatusOpen,
				OrderID: s.orderID(),
				Symbol:  order.Symbol,
				Side:    order.Side,
				Type:    order.Type,
				Qty:     order.Qty,
				Price:   order.Price,
				Message: "order placed, waiting for execution",
			}
		}
		executionPrice = order.Price

	default:
		return s.reject(order, RejectUnsupportedType, fmt.Sprintf("unsupported order type: %s", order.Type))
	}

	commission := order.Qty * executionPrice * s.commission

	return Execution{
		Status:     models.OrderStatusFilled,
		OrderID:    s.orderID(),
		Symbol:     order.Symbol,
		Side:       order.Side,
		Type:       order.Type,
		Qty:        order.Qty,
		Price:      order.Price,
		FilledQty:  order.Qty,
		AvgPrice:   executionPrice,
		Commission: commission,
		Message:    "order filled successfully",
	}
}

// CheckOrderStatus is a placeholder: the simulator does not track order
// identity across calls. Order lifecycle is owned by the backtest engine.
func (s *MarketSimulator) CheckOrderStatus(orderID string) Execution {
	return Execution{
		Status:  models.OrderStatusUnknown,
		OrderID: orderID,
		Message: "order status unknown in simulation",
	}
}

// CancelOrder is a placeholder counterpart to CheckOrderStatus
func (s *MarketSimulator) CancelOrder(orderID string) Execution {
	return Execution{
		Status:  models.OrderStatusCanceled,
		OrderID: orderID,
		Message: "order canceled successfully",
	}
}

func (s *MarketSimulator) reject(order models.Order, reason RejectReason, message string) Execution {
	s.logger.WithFields(logrus.Fields{
		"symbol": order.Symbol,
		"side":   order.Side,
		"type":   order.Type,
		"reason": reason,
	}).Debug("Order not filled")

	return Execution{
		Status:  models.OrderStatusRejected,
		Symbol:  order.Symbol,
		Side:    order.Side,
		Type:    order.Type,
		Qty:     order.Qty,
		Price:   order.Price,
		Reject:  reason,
		Message: message,
	}
}

func (s *MarketSimulator) orderID() string {
	return "sim_" + uuid.NewString()
}

package backtest

import (
	"fmt"
	"time"

	"github.com/yourusername/tradeforge/internal/models"
)

// State is the single mutable store of one backtest run: capital, open
// positions, active orders, order history, closed trades and the equity
// curve. The engine mutates it only through the named operations below so
// every invariant (one position per symbol, terminal orders leave the active
// set, trades are append-only) is enforced in one place.
type State struct {
	InitialCapital float64
	Capital        float64

	positions map[string]*models.Position
	active    map[string]*models.Order
	history   []*models.Order
	trades    []models.Trade
	equity    EquityCurve
}

// NewState creates run state with the given starting capital
func NewState(initialCapital float64) *State {
	return &State{
		InitialCapital: initialCapital,
		Capital:        initialCapital,
		positions:      make(map[string]*models.Position),
		active:         make(map[string]*models.Order),
	}
}

// Position returns the open position for a symbol, if any
func (s *State) Position(symbol string) (*models.Position, bool) {
	pos, ok := s.positions[symbol]
	return pos, ok
}

// OpenPosition records a new position and applies the fill's cash effect:
// a buy spends quote currency, a sell (short) credits it, and commission is
// always deducted.
func (s *State) OpenPosition(pos *models.Position, commission float64) error {
	if _, exists := s.positions[pos.Symbol]; exists {
		return fmt.Errorf("position already open for %s", pos.Symbol)
	}
	notional := pos.Size * pos.EntryPrice
	if pos.Side == models.OrderSideBuy {
		s.Capital -= notional
	} else {
		s.Capital += notional
	}
	s.Capital -= commission
	s.positions[pos.Symbol] = pos
	return nil
}

// ClosePosition removes the position, settles its cash effect and appends
// the immutable trade record. Returns false if no position is open.
func (s *State) ClosePosition(symbol string, exitPrice float64, reason models.ExitReason, at time.Time) (models.Trade, bool) {
	pos, ok := s.positions[symbol]
	if !ok {
		return models.Trade{}, false
	}
	delete(s.positions, symbol)

	notional := pos.Size * exitPrice
	if pos.Side == models.OrderSideBuy {
		s.Capital += notional
	} else {
		s.Capital -= notional
	}

	pnl := pos.UnrealizedPnL(exitPrice)
	pnlPct := 0.0
	if pos.EntryPrice > 0 {
		pnlPct = pnl / (pos.EntryPrice * pos.Size) * 100
	}

	trade := models.Trade{
		Symbol:     symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Size:       pos.Size,
		EntryTime:  pos.EntryTime,
		ExitTime:   at,
		PnL:        pnl,
		PnLPct:     pnlPct,
		Duration:   models.FormatDurationHours(at.Sub(pos.EntryTime)),
		ExitReason: reason,
	}
	s.trades = append(s.trades, trade)
	return trade, true
}

// QueueOrder adds a pending order to the active set
func (s *State) QueueOrder(order *models.Order) {
	order.Status = models.OrderStatusPending
	s.active[order.ID] = order
}

// ActiveOrder looks up a non-terminal order by ID
func (s *State) ActiveOrder(id string) (*models.Order, bool) {
	order, ok := s.active[id]
	return order, ok
}

// ActiveOrders returns a stable snapshot of the active set for iteration;
// callers may complete orders while ranging over it.
func (s *State) ActiveOrders() []*models.Order {
	orders := make([]*models.Order, 0, len(s.active))
	for _, order := range s.active {
		orders = append(orders, order)
	}
	return orders
}

// CompleteOrder transitions an order to a terminal status, moving it from
// the active set to history.
func (s *State) CompleteOrder(id string, status models.OrderStatus, fillPrice, commission float64) {
	order, ok := s.active[id]
	if !ok {
		return
	}
	order.Status = status
	order.FilledPrice = fillPrice
	order.Commission = commission
	delete(s.active, id)
	s.history = append(s.history, order)
}

// RecordOrder appends a never-queued order (market fills, rejections)
// straight to history.
func (s *State) RecordOrder(order *models.Order) {
	s.history = append(s.history, order)
}

// RecordEquity appends one equity point
func (s *State) RecordEquity(at time.Time, equity float64) {
	s.equity = append(s.equity, EquityPoint{Timestamp: at, Equity: equity})
}

// Trades returns the closed trades in close order
func (s *State) Trades() []models.Trade { return s.trades }

// EquityCurve returns the per-bar equity series
func (s *State) EquityCurve() EquityCurve { return s.equity }

// OrderHistory returns all terminal orders in completion order
func (s *State) OrderHistory() []*models.Order { return s.history }

// OpenPositions returns the currently open positions
func (s *State) OpenPositions() []*models.Position {
	positions := make([]*models.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		positions = append(positions, pos)
	}
	return positions
}

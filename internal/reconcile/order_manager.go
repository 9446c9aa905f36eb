// Package reconcile keeps the bot's local view of positions and orders
// consistent with the exchange. The exchange is authoritative: on any
// disagreement the local state is corrected, never the other way around.
package reconcile

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/tradeforge/internal/exchange"
	"github.com/yourusername/tradeforge/internal/models"
)

// Store is the local-state surface the reconciler corrects
type Store interface {
	GetPositions() []*models.Position
	GetActiveOrders() []*models.Order
	UpdatePositionFromExchange(pos exchange.Position)
	RemovePosition(symbol, reason string)
	AddOrderFromExchange(order exchange.Order)
	UpdateOrderStatus(orderID string, status models.OrderStatus, filledQty, avgPrice float64)
}

// OrderManager is the in-memory local state of the live bot: open positions
// and non-terminal orders, keyed for fast reconciliation lookups.
type OrderManager struct {
	mu        sync.RWMutex
	positions map[string]*models.Position
	orders    map[string]*models.Order
	logger    *logrus.Logger
}

// NewOrderManager creates an empty local state store
func NewOrderManager(logger *logrus.Logger) *OrderManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &OrderManager{
		positions: make(map[string]*models.Position),
		orders:    make(map[string]*models.Order),
		logger:    logger,
	}
}

// GetPositions implements Store
func (m *OrderManager) GetPositions() []*models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	positions := make([]*models.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		positions = append(positions, pos)
	}
	return positions
}

// GetActiveOrders implements Store; only non-terminal orders are returned
func (m *OrderManager) GetActiveOrders() []*models.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orders := make([]*models.Order, 0, len(m.orders))
	for _, order := range m.orders {
		if !order.Status.IsTerminal() {
			orders = append(orders, order)
		}
	}
	return orders
}

// SetPosition records a locally opened position
func (m *OrderManager) SetPosition(pos *models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.Symbol] = pos
}

// TrackOrder records a locally submitted order
func (m *OrderManager) TrackOrder(order *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

// GetOrder looks up a tracked order by ID
func (m *OrderManager) GetOrder(orderID string) (*models.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	return order, ok
}

// UpdatePositionFromExchange implements Store: the exchange snapshot
// replaces whatever was held locally for that symbol.
func (m *OrderManager) UpdatePositionFromExchange(pos exchange.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.positions[pos.Symbol]
	if !ok {
		m.positions[pos.Symbol] = &models.Position{
			Symbol:     pos.Symbol,
			Side:       pos.Side,
			EntryPrice: pos.EntryPrice,
			Size:       pos.Size,
			EntryTime:  time.Now().UTC(),
		}
		m.logger.WithFields(logrus.Fields{
			"symbol": pos.Symbol,
			"side":   pos.Side,
			"size":   pos.Size,
		}).Warn("Adopted position from exchange")
		return
	}

	m.logger.WithFields(logrus.Fields{
		"symbol":     pos.Symbol,
		"local_size": existing.Size,
		"size":       pos.Size,
	}).Warn("Corrected position from exchange")
	existing.Side = pos.Side
	existing.Size = pos.Size
	existing.EntryPrice = pos.EntryPrice
}

// RemovePosition implements Store: the exchange no longer holds it
func (m *OrderManager) RemovePosition(symbol, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[symbol]; !ok {
		return
	}
	delete(m.positions, symbol)
	m.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"reason": reason,
	}).Warn("Removed stale local position")
}

// AddOrderFromExchange implements Store: an order the exchange knows about
// but we never tracked, usually placed before a restart.
func (m *OrderManager) AddOrderFromExchange(order exchange.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.OrderID]; ok {
		return
	}
	m.orders[order.OrderID] = &models.Order{
		ID:          order.OrderID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Type:        order.Type,
		Qty:         order.Qty,
		Price:       order.Price,
		FilledQty:   order.FilledQty,
		FilledPrice: order.AvgPrice,
		Status:      order.Status,
		CreatedAt:   time.Now().UTC(),
	}
	m.logger.WithField("order_id", order.OrderID).Warn("Adopted order from exchange")
}

// UpdateOrderStatus implements Store. The exchange's fill data replaces the
// local record when present; zero values leave it alone.
func (m *OrderManager) UpdateOrderStatus(orderID string, status models.OrderStatus, filledQty, avgPrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return
	}
	if filledQty > 0 {
		order.FilledQty = filledQty
	}
	if avgPrice > 0 {
		order.FilledPrice = avgPrice
	}
	if order.Status == status {
		return
	}
	m.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     order.Status,
		"to":       status,
	}).Info("Order status updated")
	order.Status = status
}

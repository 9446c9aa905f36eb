// Package metrics provides the centralized Prometheus registry for the
// trading system.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	ReconciliationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeforge",
		Name:      "reconciliations_total",
		Help:      "Total number of reconciliation runs by outcome",
	}, []string{"outcome"})
	PositionsCorrectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeforge",
		Name:      "positions_corrected_total",
		Help:      "Total number of local positions corrected from the exchange",
	})
	OrdersCorrectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeforge",
		Name:      "orders_corrected_total",
		Help:      "Total number of local orders corrected from the exchange",
	})
	OrdersLostTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeforge",
		Name:      "orders_lost_total",
		Help:      "Total number of orders marked LOST during reconciliation",
	})
	SimulatedOrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeforge",
		Name:      "simulated_orders_total",
		Help:      "Total number of simulated order executions by status",
	}, []string{"status"})
	StreamReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeforge",
		Name:      "stream_reconnects_total",
		Help:      "Total number of market stream reconnections",
	})
)

// Gauge metrics
var (
	CurrentEquity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeforge",
		Name:      "current_equity",
		Help:      "Current account equity in quote currency",
	})
	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeforge",
		Name:      "open_positions",
		Help:      "Number of currently open positions",
	})
	ActiveOrders = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeforge",
		Name:      "active_orders",
		Help:      "Number of currently active orders",
	})
)

// Histogram metrics
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tradeforge",
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
	ReconciliationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tradeforge",
		Name:      "reconciliation_duration_seconds",
		Help:      "Duration of reconciliation runs in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(ReconciliationsTotal)
		registry.MustRegister(PositionsCorrectedTotal)
		registry.MustRegister(OrdersCorrectedTotal)
		registry.MustRegister(OrdersLostTotal)
		registry.MustRegister(SimulatedOrdersTotal)
		registry.MustRegister(StreamReconnectsTotal)

		registry.MustRegister(CurrentEquity)
		registry.MustRegister(OpenPositions)
		registry.MustRegister(ActiveOrders)

		registry.MustRegister(BacktestDuration)
		registry.MustRegister(ReconciliationDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordReconciliation records one reconciliation run.
func RecordReconciliation(outcome string, positionsCorrected, ordersCorrected int, durationSeconds float64) {
	ReconciliationsTotal.WithLabelValues(outcome).Inc()
	PositionsCorrectedTotal.Add(float64(positionsCorrected))
	OrdersCorrectedTotal.Add(float64(ordersCorrected))
	ReconciliationDuration.Observe(durationSeconds)
}

// RecordOrderLost records an order marked LOST.
func RecordOrderLost() {
	OrdersLostTotal.Inc()
}

// RecordSimulatedOrder records a simulated order execution.
func RecordSimulatedOrder(status string) {
	SimulatedOrdersTotal.WithLabelValues(status).Inc()
}

// RecordStreamReconnect records a market stream reconnection.
func RecordStreamReconnect() {
	StreamReconnectsTotal.Inc()
}

// RecordBacktestDuration records backtest duration.
func RecordBacktestDuration(durationSeconds float64) {
	BacktestDuration.Observe(durationSeconds)
}

// UpdateEquity updates the current equity gauge.
func UpdateEquity(equity float64) {
	CurrentEquity.Set(equity)
}

// UpdateOpenState updates the open position and active order gauges.
func UpdateOpenState(positions, orders int) {
	OpenPositions.Set(float64(positions))
	ActiveOrders.Set(float64(orders))
}

package metrics

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
}

func TestRecordReconciliation(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name    string
		outcome string
	}{
		{"successful run", "SUCCESSFUL"},
		{"partial run", "PARTIAL"},
		{"failed run", "FAILED"},
		{"no action needed", "NO_ACTION_NEEDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordReconciliation(tt.outcome, 1, 2, 0.05)
			})
		})
	}
}

func TestRecordOrderLost(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordOrderLost()
	})
}

func TestRecordSimulatedOrder(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordSimulatedOrder("FILLED")
		RecordSimulatedOrder("REJECTED")
	})
}

func TestUpdateEquity(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name   string
		equity float64
	}{
		{"positive equity", 10000},
		{"zero equity", 0},
		{"negative equity", -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateEquity(tt.equity)
			})
		})
	}
}

func TestUpdateOpenState(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		UpdateOpenState(2, 5)
	})
}

func TestRecordBacktestDuration(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordBacktestDuration(12.5)
	})
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()

	handler := Handler()
	assert.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)
}

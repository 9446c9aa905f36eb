package simulator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/models"
)

func newTestSimulator(t *testing.T, cfg config.SimulatorConfig) *MarketSimulator {
	t.Helper()
	return NewMarketSimulator(cfg, rand.New(rand.NewSource(42)), nil)
}

func defaultConfig() config.SimulatorConfig {
	return config.SimulatorConfig{
		SlippagePct:     0.05,
		CommissionPct:   0.075,
		LiquidityFactor: 1.0,
	}
}

func tick(close, volume float64) models.Candle {
	return models.Candle{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      close, High: close, Low: close, Close: close,
		Volume: volume,
	}
}

func TestMarketOrderFill(t *testing.T) {
	sim := newTestSimulator(t, defaultConfig())
	sim.UpdateMarketData("BTCUSDT", tick(100, 1000))

	exec := sim.ExecuteOrder(models.Order{
		Symbol: "BTCUSDT",
		Side:   models.OrderSideBuy,
		Type:   models.OrderTypeMarket,
		Qty:    1,
	})

	if exec.Status != models.OrderStatusFilled {
		t.Fatalf("expected FILLED, got %s (%s)", exec.Status, exec.Message)
	}
	if math.Abs(exec.AvgPrice-100.05) > 1e-9 {
		t.Errorf("expected avg price 100.05, got %v", exec.AvgPrice)
	}
	wantCommission := 1 * 100.05 * 0.00075
	if math.Abs(exec.Commission-wantCommission) > 1e-9 {
		t.Errorf("expected commission %v, got %v", wantCommission, exec.Commission)
	}
	if exec.FilledQty != 1 {
		t.Errorf("expected filled qty 1, got %v", exec.FilledQty)
	}
}

func TestMarketSellSlippage(t *testing.T) {
	sim := newTestSimulator(t, defaultConfig())
	sim.UpdateMarketData("BTCUSDT", tick(100, 1000))

	exec := sim.ExecuteOrder(models.Order{
		Symbol: "BTCUSDT",
		Side:   models.OrderSideSell,
		Type:   models.OrderTypeMarket,
		Qty:    2,
	})

	if exec.Status != models.OrderStatusFilled {
		t.Fatalf("expected FILLED, got %s", exec.Status)
	}
	if math.Abs(exec.AvgPrice-99.95) > 1e-9 {
		t.Errorf("expected avg price 99.95, got %v", exec.AvgPrice)
	}
}

func TestNoMarketData(t *testing.T) {
	sim := newTestSimulator(t, defaultConfig())

	exec := sim.ExecuteOrder(models.Order{
		Symbol: "ETHUSDT",
		Side:   models.OrderSideBuy,
		Type:   models.OrderTypeMarket,
		Qty:    1,
	})

	if exec.Status != models.OrderStatusRejected || exec.Reject != RejectNoMarketData {
		t.Fatalf("expected NO_MARKET_DATA rejection, got %s/%s", exec.Status, exec.Reject)
	}
}

func TestSimulatedRejection(t *testing.T) {
	cfg := defaultConfig()
	cfg.RejectProbability = 1.0
	sim := newTestSimulator(t, cfg)
	sim.UpdateMarketData("BTCUSDT", tick(100, 1000))

	exec := sim.ExecuteOrder(models.Order{
		Symbol: "BTCUSDT",
		Side:   models.OrderSideBuy,
		Type:   models.OrderTypeMarket,
		Qty:    1,
	})

	if exec.Reject != RejectSimulated {
		t.Fatalf("expected SIMULATED_REJECTION, got %s", exec.Reject)
	}
}

// The crossing condition is a policy decision; this table pins it down.
func TestLimitOrderFillPolicy(t *testing.T) {
	cases := []struct {
		name       string
		side       models.OrderSide
		limitPrice float64
		tif        models.TimeInForce
		wantStatus models.OrderStatus
		wantReject RejectReason
		wantPrice  float64
	}{
		{"buy below close rests", models.OrderSideBuy, 95, models.TimeInForceGTC, models.OrderStatusOpen, "", 0},
		{"buy below close IOC fails", models.OrderSideBuy, 95, models.TimeInForceIOC, models.OrderStatusRejected, RejectNotFilledIOC, 0},
		{"buy at close fills", models.OrderSideBuy, 100, models.TimeInForceGTC, models.OrderStatusFilled, "", 100},
		{"buy above close fills at limit", models.OrderSideBuy, 105, models.TimeInForceGTC, models.OrderStatusFilled, "", 105},
		{"sell above close rests", models.OrderSideSell, 105, models.TimeInForceGTC, models.OrderStatusOpen, "", 0},
		{"sell above close IOC fails", models.OrderSideSell, 105, models.TimeInForceIOC, models.OrderStatusRejected, RejectNotFilledIOC, 0},
		{"sell at close fills", models.OrderSideSell, 100, models.TimeInForceGTC, models.OrderStatusFilled, "", 100},
		{"sell below close fills at limit", models.OrderSideSell, 95, models.TimeInForceGTC, models.OrderStatusFilled, "", 95},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := newTestSimulator(t, defaultConfig())
			sim.UpdateMarketData("BTCUSDT", tick(100, 1000))

			exec := sim.ExecuteOrder(models.Order{
				Symbol:      "BTCUSDT",
				Side:        tc.side,
				Type:        models.OrderTypeLimit,
				Qty:         1,
				Price:       tc.limitPrice,
				TimeInForce: tc.tif,
			})

			if exec.Status != tc.wantStatus {
				t.Fatalf("expected status %s, got %s (%s)", tc.wantStatus, exec.Status, exec.Message)
			}
			if exec.Reject != tc.wantReject {
				t.Errorf("expected reject %q, got %q", tc.wantReject, exec.Reject)
			}
			if tc.wantStatus == models.OrderStatusFilled && exec.AvgPrice != tc.wantPrice {
				t.Errorf("expected fill at %v, got %v", tc.wantPrice, exec.AvgPrice)
			}
			if tc.wantStatus == models.OrderStatusOpen && exec.FilledQty != 0 {
				t.Errorf("expected zero filled qty for resting order, got %v", exec.FilledQty)
			}
		})
	}
}

func TestLimitOrderWithoutPrice(t *testing.T) {
	sim := newTestSimulator(t, defaultConfig())
	sim.UpdateMarketData("BTCUSDT", tick(100, 1000))

	exec := sim.ExecuteOrder(models.Order{
		Symbol: "BTCUSDT",
		Side:   models.OrderSideBuy,
		Type:   models.OrderTypeLimit,
		Qty:    1,
	})

	if exec.Reject != RejectLimitPriceRequired {
		t.Fatalf("expected LIMIT_PRICE_REQUIRED, got %s", exec.Reject)
	}
}

func TestUnsupportedOrderType(t *testing.T) {
	sim := newTestSimulator(t, defaultConfig())
	sim.UpdateMarketData("BTCUSDT", tick(100, 1000))

	exec := sim.ExecuteOrder(models.Order{
		Symbol: "BTCUSDT",
		Side:   models.OrderSideBuy,
		Type:   models.OrderType("TRAILING_STOP"),
		Qty:    1,
	})

	if exec.Reject != RejectUnsupportedType {
		t.Fatalf("expected UNSUPPORTED_ORDER_TYPE, got %s", exec.Reject)
	}
}

func TestSyntheticOrderBook(t *testing.T) {
	sim := newTestSimulator(t, defaultConfig())
	sim.UpdateMarketData("BTCUSDT", tick(100, 1000))

	book, ok := sim.OrderBookFor("BTCUSDT")
	if !ok {
		t.Fatal("expected order book after market data update")
	}
	if len(book.Bids) != 10 || len(book.Asks) != 10 {
		t.Fatalf("expected 10 levels per side, got %d/%d", len(book.Bids), len(book.Asks))
	}
	if book.Spread() <= 0 {
		t.Errorf("expected positive spread, got %v", book.Spread())
	}
	for i := 1; i < len(book.Bids); i++ {
		if book.Bids[i].Price >= book.Bids[i-1].Price {
			t.Errorf("bids must step down: level %d", i)
		}
		if book.Asks[i].Price <= book.Asks[i-1].Price {
			t.Errorf("asks must step up: level %d", i)
		}
	}
	for _, lvl := range append(book.Bids, book.Asks...) {
		if lvl.Volume < 1000*math.Exp(-0.9)*0.8-1e-9 || lvl.Volume > 1000*1.2+1e-9 {
			t.Errorf("level volume %v outside expected envelope", lvl.Volume)
		}
	}
}

func TestDeterministicWithSeed(t *testing.T) {
	cfg := defaultConfig()
	cfg.RejectProbability = 0.5

	run := func() []models.OrderStatus {
		sim := NewMarketSimulator(cfg, rand.New(rand.NewSource(7)), nil)
		sim.UpdateMarketData("BTCUSDT", tick(100, 1000))
		statuses := make([]models.OrderStatus, 0, 20)
		for i := 0; i < 20; i++ {
			exec := sim.ExecuteOrder(models.Order{
				Symbol: "BTCUSDT",
				Side:   models.OrderSideBuy,
				Type:   models.OrderTypeMarket,
				Qty:    1,
			})
			statuses = append(statuses, exec.Status)
		}
		return statuses
	}

	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("seeded runs diverged at order %d: %s vs %s", i, first[i], second[i])
		}
	}
}

package strategy

import (
	"fmt"

	"github.com/yourusername/tradeforge/internal/models"
)

// MACrossStrategy is a reference dual moving-average strategy: a golden
// cross on the primary timeframe opens a long, a death cross opens a short.
// Each entry carries a stop loss a fixed percent away from the close.
type MACrossStrategy struct {
	primary     models.Timeframe
	fastPeriod  int
	slowPeriod  int
	stopLossPct float64
	closes      map[string][]float64
}

// NewMACrossStrategy creates the strategy. stopLossPct of 0 disables stops.
func NewMACrossStrategy(primary models.Timeframe, fastPeriod, slowPeriod int, stopLossPct float64) *MACrossStrategy {
	if fastPeriod <= 0 {
		fastPeriod = 9
	}
	if slowPeriod <= fastPeriod {
		slowPeriod = fastPeriod * 3
	}
	return &MACrossStrategy{
		primary:     primary,
		fastPeriod:  fastPeriod,
		slowPeriod:  slowPeriod,
		stopLossPct: stopLossPct,
		closes:      make(map[string][]float64),
	}
}

// Name implements Strategy
func (s *MACrossStrategy) Name() string { return "ma_cross" }

// Parameters implements Strategy
func (s *MACrossStrategy) Parameters() map[string]any {
	return map[string]any{
		"primary_timeframe": string(s.primary),
		"fast_period":       s.fastPeriod,
		"slow_period":       s.slowPeriod,
		"stop_loss_pct":     s.stopLossPct,
	}
}

// ProcessCandles implements Strategy
func (s *MACrossStrategy) ProcessCandles(symbol string, candles map[models.Timeframe]models.Candle) ([]Signal, error) {
	candle, ok := candles[s.primary]
	if !ok {
		// Primary timeframe not yet populated; nothing to do.
		return nil, nil
	}
	if candle.Close <= 0 {
		return nil, fmt.Errorf("non-positive close for %s", symbol)
	}

	history := append(s.closes[symbol], candle.Close)
	if len(history) > s.slowPeriod+1 {
		history = history[1:]
	}
	s.closes[symbol] = history

	if len(history) < s.slowPeriod+1 {
		return nil, nil
	}

	fast := sma(history, s.fastPeriod, 0)
	slow := sma(history, s.slowPeriod, 0)
	prevFast := sma(history, s.fastPeriod, 1)
	prevSlow := sma(history, s.slowPeriod, 1)

	var stop *float64
	switch {
	case prevFast <= prevSlow && fast > slow:
		if s.stopLossPct > 0 {
			stop = Float64(candle.Close * (1 - s.stopLossPct/100))
		}
		return []Signal{OpenLong{Type: models.OrderTypeMarket, StopLoss: stop}}, nil
	case prevFast >= prevSlow && fast < slow:
		if s.stopLossPct > 0 {
			stop = Float64(candle.Close * (1 + s.stopLossPct/100))
		}
		return []Signal{OpenShort{Type: models.OrderTypeMarket, StopLoss: stop}}, nil
	}

	return nil, nil
}

// sma averages the last period closes ending offset bars back
func sma(closes []float64, period, offset int) float64 {
	end := len(closes) - offset
	start := end - period
	if start < 0 {
		return 0
	}
	sum := 0.0
	for i := start; i < end; i++ {
		sum += closes[i]
	}
	return sum / float64(period)
}

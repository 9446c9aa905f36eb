package backtest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/yourusername/tradeforge/internal/models"
)

// tradingDaysPerYear annualizes the Calmar numerator; Sharpe and Sortino are
// reported per period, unannualized.
const tradingDaysPerYear = 252

// Metrics summarizes a completed run. All ratio fields are 0 when undefined
// except ProfitFactor, which goes to +Inf when there are profits but no
// losses; JSON renders that as the string "inf".
type Metrics struct {
	TotalTrades       int     `json:"total_trades"`
	WinningTrades     int     `json:"winning_trades"`
	LosingTrades      int     `json:"losing_trades"`
	BreakEvenTrades   int     `json:"break_even_trades"`
	WinRate           float64 `json:"win_rate"`
	ProfitFactor      float64 `json:"profit_factor"`
	TotalPnL          float64 `json:"total_pnl"`
	TotalPnLPct       float64 `json:"total_pnl_pct"`
	AvgProfitPerTrade float64 `json:"avg_profit_per_trade"`
	AvgWin            float64 `json:"avg_win"`
	AvgLoss           float64 `json:"avg_loss"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	MaxDrawdownPct    float64 `json:"max_drawdown_pct"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	SortinoRatio      float64 `json:"sortino_ratio"`
	CalmarRatio       float64 `json:"calmar_ratio"`
	AvgTradeDuration  float64 `json:"avg_trade_duration"`
	Expectancy        float64 `json:"expectancy"`
}

// MarshalJSON renders an infinite profit factor as "inf" since JSON numbers
// cannot carry infinity.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics
	return json.Marshal(struct {
		alias
		ProfitFactor any `json:"profit_factor"`
	}{
		alias:        alias(m),
		ProfitFactor: finiteOrInf(m.ProfitFactor),
	})
}

func finiteOrInf(v float64) any {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return v
}

// CalculateMetrics is a pure function of the closed trades and starting
// capital. An empty trade list yields all zeros.
func CalculateMetrics(trades []models.Trade, initialCapital float64) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}

	m := Metrics{TotalTrades: len(trades)}

	var grossProfit, grossLoss, totalDuration float64
	for _, trade := range trades {
		m.TotalPnL += trade.PnL
		totalDuration += parseDurationHours(trade.Duration)
		switch {
		case trade.PnL > 0:
			m.WinningTrades++
			grossProfit += trade.PnL
		case trade.PnL < 0:
			m.LosingTrades++
			grossLoss += -trade.PnL
		default:
			m.BreakEvenTrades++
		}
	}

	winRate := float64(m.WinningTrades) / float64(m.TotalTrades)
	m.WinRate = winRate * 100
	m.AvgProfitPerTrade = m.TotalPnL / float64(m.TotalTrades)
	m.AvgTradeDuration = totalDuration / float64(m.TotalTrades)
	if initialCapital > 0 {
		m.TotalPnLPct = m.TotalPnL / initialCapital * 100
	}

	if m.WinningTrades > 0 {
		m.AvgWin = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = -grossLoss / float64(m.LosingTrades)
	}

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	}

	// Expectancy uses the fractional win rate, not the reported percentage.
	m.Expectancy = winRate*m.AvgWin + (1-winRate)*m.AvgLoss

	equity := tradeEquitySeries(trades, initialCapital)
	m.MaxDrawdown, m.MaxDrawdownPct = equity.MaxDrawdown()

	returns := equity.Returns()
	mean := meanOf(returns)
	if sd := stddev(returns, mean); sd > 0 {
		m.SharpeRatio = mean / sd
	}
	m.SortinoRatio = sortino(returns, mean)
	if m.MaxDrawdownPct > 0 {
		m.CalmarRatio = mean * tradingDaysPerYear / (m.MaxDrawdownPct / 100)
	}

	return m
}

// tradeEquitySeries reconstructs equity from realized PnL only: the starting
// capital followed by one point per closed trade.
func tradeEquitySeries(trades []models.Trade, initialCapital float64) EquityCurve {
	curve := make(EquityCurve, 0, len(trades)+1)
	equity := initialCapital
	curve = append(curve, EquityPoint{Equity: equity})
	for _, trade := range trades {
		equity += trade.PnL
		curve = append(curve, EquityPoint{Timestamp: trade.ExitTime, Equity: equity})
	}
	return curve
}

// sortino divides the mean return by the deviation of the losing periods
// only. With no losing periods there is no downside risk to measure and the
// ratio is 0.
func sortino(returns []float64, mean float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	sd := stddev(downside, meanOf(downside))
	if sd == 0 {
		return 0
	}
	return mean / sd
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation
func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// parseDurationHours accepts either numeric hours ("4.5") or the legacy
// "2h 15m" text form found in imported trade logs.
func parseDurationHours(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	var hours float64
	for _, part := range strings.Fields(s) {
		switch {
		case strings.HasSuffix(part, "h"):
			if v, err := strconv.ParseFloat(strings.TrimSuffix(part, "h"), 64); err == nil {
				hours += v
			}
		case strings.HasSuffix(part, "m"):
			if v, err := strconv.ParseFloat(strings.TrimSuffix(part, "m"), 64); err == nil {
				hours += v / 60
			}
		}
	}
	return hours
}

package backtest

import "time"

// EquityPoint samples total account value after one bar was processed
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// EquityCurve is the ordered per-bar equity series of one run
type EquityCurve []EquityPoint

// Final returns the last recorded equity, or the fallback if empty
func (c EquityCurve) Final(fallback float64) float64 {
	if len(c) == 0 {
		return fallback
	}
	return c[len(c)-1].Equity
}

// Returns computes per-bar fractional returns between consecutive points.
// Points with zero equity contribute a zero return rather than dividing by
// zero.
func (c EquityCurve) Returns() []float64 {
	if len(c) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(c)-1)
	for i := 1; i < len(c); i++ {
		prev := c[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (c[i].Equity-prev)/prev)
	}
	return returns
}

// MaxDrawdown returns the largest peak-to-trough equity drop along the curve,
// in absolute terms and as a percentage of the peak where the drop bottomed.
func (c EquityCurve) MaxDrawdown() (abs float64, pct float64) {
	if len(c) == 0 {
		return 0, 0
	}
	peak := c[0].Equity
	for _, point := range c {
		if point.Equity > peak {
			peak = point.Equity
		}
		dd := peak - point.Equity
		if dd > abs {
			abs = dd
			if peak > 0 {
				pct = dd / peak * 100
			}
		}
	}
	return abs, pct
}

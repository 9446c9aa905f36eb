package strategy

import (
	"github.com/yourusername/tradeforge/internal/models"
)

// Strategy is the plug-in contract for the backtest engine: given a symbol
// and the latest candle per requested timeframe, produce zero or more
// signals. Timeframes with no data yet are absent from the snapshot.
type Strategy interface {
	Name() string
	ProcessCandles(symbol string, candles map[models.Timeframe]models.Candle) ([]Signal, error)
	Parameters() map[string]any
}

// SignalKind tags the intent of a signal
type SignalKind string

// Signal kinds
const (
	KindOpenLong  SignalKind = "OPEN_LONG"
	KindOpenShort SignalKind = "OPEN_SHORT"
	KindClose     SignalKind = "CLOSE"
	KindCancel    SignalKind = "CANCEL"
)

// Signal is a tagged variant; each concrete type carries only the fields
// relevant to its intent.
type Signal interface {
	Kind() SignalKind
}

// OpenLong requests a new long entry. Price is required for limit and stop
// entries; nil means "at market".
type OpenLong struct {
	Type        models.OrderType
	Price       *float64
	TakeProfit  *float64
	StopLoss    *float64
	TimeInForce models.TimeInForce
}

// Kind implements Signal
func (OpenLong) Kind() SignalKind { return KindOpenLong }

// OpenShort requests a new short entry
type OpenShort struct {
	Type        models.OrderType
	Price       *float64
	TakeProfit  *float64
	StopLoss    *float64
	TimeInForce models.TimeInForce
}

// Kind implements Signal
func (OpenShort) Kind() SignalKind { return KindOpenShort }

// Close requests closing the current position, if any
type Close struct{}

// Kind implements Signal
func (Close) Kind() SignalKind { return KindClose }

// Cancel requests cancellation of a pending order
type Cancel struct {
	OrderID string
}

// Kind implements Signal
func (Cancel) Kind() SignalKind { return KindCancel }

// Side maps an open signal to its order side
func Side(sig Signal) models.OrderSide {
	if sig.Kind() == KindOpenShort {
		return models.OrderSideSell
	}
	return models.OrderSideBuy
}

// Float64 returns a pointer to v, for optional signal fields
func Float64(v float64) *float64 {
	return &v
}

// Package backtest replays historical candles bar by bar through a strategy,
// simulating execution and accounting so a run is reproducible end to end.
package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/metrics"
	"github.com/yourusername/tradeforge/internal/models"
	"github.com/yourusername/tradeforge/internal/simulator"
	"github.com/yourusername/tradeforge/internal/strategy"
)

// Run statuses reported on Results
const (
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// Results is the full outcome of one run. A run that stops early reports
// StatusAborted with the cause in Error; partial trades and equity points up
// to the failure are preserved.
type Results struct {
	Strategy       string
	Parameters     map[string]any
	Symbol         string
	Timeframes     []models.Timeframe
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	FinalEquity    float64
	Trades         []models.Trade
	EquityCurve    EquityCurve
	Metrics        Metrics
	Status         string
	Error          string
}

// Engine drives one backtest run: load data once, then replay the primary
// timeframe bar by bar feeding the strategy a multi-timeframe snapshot.
type Engine struct {
	cfg        Config
	sim        *simulator.MarketSimulator
	loader     *Loader
	logger     *logrus.Logger
	commission float64

	data     map[models.Timeframe][]models.Candle
	cursors  map[models.Timeframe]int
	state    *State
	orderSeq int
}

// NewEngine wires an engine from backtest and simulator config. The
// simulator RNG is seeded from config so runs are reproducible.
func NewEngine(cfg Config, simCfg config.SimulatorConfig, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	rng := rand.New(rand.NewSource(simCfg.Seed))
	return &Engine{
		cfg:        cfg,
		sim:        simulator.NewMarketSimulator(simCfg, rng, logger),
		loader:     NewLoader(cfg.DataDir, logger),
		logger:     logger,
		commission: simCfg.CommissionPct / 100,
	}
}

// Simulator exposes the execution simulator, mainly for test setup
func (e *Engine) Simulator() *simulator.MarketSimulator { return e.sim }

// LoadData loads candles for every configured timeframe over the run window
func (e *Engine) LoadData() error {
	data := make(map[models.Timeframe][]models.Candle, len(e.cfg.Timeframes))
	// End date is inclusive through the whole final day.
	end := e.cfg.EndDate.Add(24*time.Hour - time.Nanosecond)
	for _, tf := range e.cfg.Timeframes {
		candles, err := e.loader.Load(e.cfg.Symbol, tf, e.cfg.StartDate, end)
		if err != nil {
			return fmt.Errorf("loading %s %s: %w", e.cfg.Symbol, tf, err)
		}
		data[tf] = candles
	}
	e.data = data
	return nil
}

// SetData injects pre-built candles, bypassing the CSV loader
func (e *Engine) SetData(data map[models.Timeframe][]models.Candle) {
	e.data = data
}

// RunBacktest replays the configured window through the strategy. The
// returned Results always carries whatever completed; a strategy error or
// panic aborts the run rather than failing it.
func (e *Engine) RunBacktest(ctx context.Context, strat strategy.Strategy) (*Results, error) {
	if e.data == nil {
		return nil, models.ErrDataNotLoaded
	}
	primary := e.cfg.PrimaryTimeframe()
	bars := e.data[primary]
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", e.cfg.Symbol, primary, models.ErrEmptyDateRange)
	}

	e.state = NewState(e.cfg.InitialCapital)
	e.cursors = make(map[models.Timeframe]int, len(e.cfg.Timeframes))
	e.orderSeq = 0

	e.logger.WithFields(logrus.Fields{
		"strategy": strat.Name(),
		"symbol":   e.cfg.Symbol,
		"bars":     len(bars),
		"capital":  e.cfg.InitialCapital,
	}).Info("Starting backtest")

	results := &Results{
		Strategy:       strat.Name(),
		Parameters:     strat.Parameters(),
		Symbol:         e.cfg.Symbol,
		Timeframes:     e.cfg.Timeframes,
		StartDate:      e.cfg.StartDate,
		EndDate:        e.cfg.EndDate,
		InitialCapital: e.cfg.InitialCapital,
		Status:         StatusCompleted,
	}

	if err := e.replay(ctx, strat, bars); err != nil {
		results.Status = StatusAborted
		results.Error = err.Error()
		e.logger.WithError(err).Error("Backtest aborted")
	} else {
		// Force-close whatever is still open at the final bar so every entry
		// has a matching trade record.
		last := bars[len(bars)-1]
		for _, pos := range e.state.OpenPositions() {
			e.state.ClosePosition(pos.Symbol, last.Close, models.ExitReasonEndOfTest, last.Timestamp)
		}
	}

	results.Trades = e.state.Trades()
	results.EquityCurve = e.state.EquityCurve()
	results.FinalEquity = e.state.EquityCurve().Final(e.state.Capital)
	if results.Status == StatusCompleted {
		results.FinalEquity = e.state.Capital
	}
	results.Metrics = CalculateMetrics(results.Trades, e.cfg.InitialCapital)

	e.logger.WithFields(logrus.Fields{
		"status":       results.Status,
		"trades":       len(results.Trades),
		"final_equity": results.FinalEquity,
	}).Info("Backtest finished")

	return results, nil
}

// replay is the bar loop; any panic from strategy code surfaces as an error
// so one bad strategy cannot take the process down.
func (e *Engine) replay(ctx context.Context, strat strategy.Strategy, bars []models.Candle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()

	for _, bar := range bars {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		now := bar.Timestamp

		e.sim.UpdateMarketData(e.cfg.Symbol, bar)
		snapshot := e.advanceSnapshot(now)

		e.checkPositionExits(bar, now)

		signals, sigErr := strat.ProcessCandles(e.cfg.Symbol, snapshot)
		if sigErr != nil {
			return fmt.Errorf("strategy %s: %w", strat.Name(), sigErr)
		}
		for _, sig := range signals {
			e.processSignal(sig, bar, now)
		}

		// Pending orders run after the signals so an order queued this bar can
		// still fill against this bar's range.
		e.processPendingOrders(bar, now)

		e.recordEquity(bar, now)
	}
	return nil
}

// advanceSnapshot moves each timeframe cursor up to now and returns the
// latest closed candle per timeframe. Timeframes with no candle yet are
// absent.
func (e *Engine) advanceSnapshot(now time.Time) map[models.Timeframe]models.Candle {
	snapshot := make(map[models.Timeframe]models.Candle, len(e.cfg.Timeframes))
	for _, tf := range e.cfg.Timeframes {
		candles := e.data[tf]
		i := e.cursors[tf]
		for i < len(candles) && !candles[i].Timestamp.After(now) {
			i++
		}
		e.cursors[tf] = i
		if i > 0 {
			snapshot[tf] = candles[i-1]
		}
	}
	return snapshot
}

func (e *Engine) processSignal(sig strategy.Signal, bar models.Candle, now time.Time) {
	switch s := sig.(type) {
	case strategy.Cancel:
		if order, ok := e.state.ActiveOrder(s.OrderID); ok {
			e.sim.CancelOrder(order.ID)
			e.state.CompleteOrder(order.ID, models.OrderStatusCanceled, 0, 0)
			return
		}
		e.logger.WithField("order_id", s.OrderID).Warn("Cancel signal for unknown order")

	case strategy.Close:
		if _, ok := e.state.Position(e.cfg.Symbol); ok {
			e.state.ClosePosition(e.cfg.Symbol, bar.Close, models.ExitReasonSignal, now)
		}

	case strategy.OpenLong:
		e.processOpen(strategy.Side(sig), s.Type, s.Price, s.TakeProfit, s.StopLoss, s.TimeInForce, bar, now)

	case strategy.OpenShort:
		e.processOpen(strategy.Side(sig), s.Type, s.Price, s.TakeProfit, s.StopLoss, s.TimeInForce, bar, now)
	}
}

func (e *Engine) processOpen(side models.OrderSide, orderType models.OrderType, price, takeProfit, stopLoss *float64, tif models.TimeInForce, bar models.Candle, now time.Time) {
	if orderType == "" {
		orderType = models.OrderTypeMarket
	}
	if orderType != models.OrderTypeMarket && price == nil {
		e.logger.WithField("type", orderType).Warn("Open signal without price, skipping")
		return
	}

	refPrice := bar.Close
	if price != nil {
		refPrice = *price
	}

	// An opposite-side signal reverses the position; a same-side one is a
	// duplicate and is dropped.
	if pos, ok := e.state.Position(e.cfg.Symbol); ok {
		if pos.Side == side {
			e.logger.WithField("side", side).Debug("Position already open, ignoring signal")
			return
		}
		e.state.ClosePosition(e.cfg.Symbol, bar.Close, models.ExitReasonReversal, now)
	}

	size := e.positionSize(refPrice, stopLoss)
	if size <= 0 {
		e.logger.WithField("capital", e.state.Capital).Warn("Computed position size is zero, skipping entry")
		return
	}

	e.orderSeq++
	order := &models.Order{
		ID:          fmt.Sprintf("backtest_%d", e.orderSeq),
		Symbol:      e.cfg.Symbol,
		Side:        side,
		Type:        orderType,
		Qty:         size,
		TakeProfit:  takeProfit,
		StopLoss:    stopLoss,
		TimeInForce: tif,
		CreatedAt:   now,
	}
	if price != nil {
		order.Price = *price
	}

	switch orderType {
	case models.OrderTypeMarket, models.OrderTypeLimit:
		exec := e.sim.ExecuteOrder(*order)
		metrics.RecordSimulatedOrder(string(exec.Status))
		switch exec.Status {
		case models.OrderStatusFilled:
			order.Status = models.OrderStatusFilled
			order.FilledPrice = exec.AvgPrice
			order.Commission = exec.Commission
			e.state.RecordOrder(order)
			e.openPosition(order, exec.AvgPrice, exec.Commission, now)
		case models.OrderStatusOpen:
			e.state.QueueOrder(order)
		default:
			order.Status = exec.Status
			e.state.RecordOrder(order)
			e.logger.WithFields(logrus.Fields{
				"reason":  exec.Reject,
				"message": exec.Message,
			}).Warn("Order rejected")
		}

	case models.OrderTypeStop:
		// The simulator has no stop support; stops trigger off bar extremes.
		e.state.QueueOrder(order)

	default:
		e.logger.WithField("type", orderType).Warn("Unsupported order type, skipping")
	}
}

func (e *Engine) openPosition(order *models.Order, fillPrice, commission float64, now time.Time) {
	pos := &models.Position{
		Symbol:     order.Symbol,
		Side:       order.Side,
		EntryPrice: fillPrice,
		Size:       order.Qty,
		EntryTime:  now,
		TakeProfit: order.TakeProfit,
		StopLoss:   order.StopLoss,
		OrderID:    order.ID,
	}
	if err := e.state.OpenPosition(pos, commission); err != nil {
		e.logger.WithError(err).Error("Failed to open position")
	}
}

// processPendingOrders fills queued limit and stop orders whose trigger price
// was touched by the bar's range. Fills happen at the order price.
func (e *Engine) processPendingOrders(bar models.Candle, now time.Time) {
	for _, order := range e.state.ActiveOrders() {
		if order.Symbol != e.cfg.Symbol {
			continue
		}
		if !pendingTriggered(order, bar) {
			continue
		}

		if pos, ok := e.state.Position(order.Symbol); ok {
			if pos.Side == order.Side {
				// Filling would double the exposure; drop the order instead.
				e.state.CompleteOrder(order.ID, models.OrderStatusCanceled, 0, 0)
				e.logger.WithField("order_id", order.ID).Debug("Canceled pending order, position already open")
				continue
			}
			e.state.ClosePosition(order.Symbol, order.Price, models.ExitReasonReversal, now)
		}

		commission := order.Qty * order.Price * e.commission
		e.state.CompleteOrder(order.ID, models.OrderStatusFilled, order.Price, commission)
		e.openPosition(order, order.Price, commission, now)
	}
}

func pendingTriggered(order *models.Order, bar models.Candle) bool {
	switch order.Type {
	case models.OrderTypeLimit:
		if order.Side == models.OrderSideBuy {
			return bar.Low <= order.Price
		}
		return bar.High >= order.Price
	case models.OrderTypeStop:
		if order.Side == models.OrderSideBuy {
			return bar.High >= order.Price
		}
		return bar.Low <= order.Price
	}
	return false
}

// checkPositionExits closes positions whose stop loss or take profit was
// touched within the bar. The stop is checked first: when both levels fall
// inside one bar the loss is assumed to have hit first.
func (e *Engine) checkPositionExits(bar models.Candle, now time.Time) {
	pos, ok := e.state.Position(e.cfg.Symbol)
	if !ok {
		return
	}

	if pos.Side == models.OrderSideBuy {
		if pos.StopLoss != nil && bar.Low <= *pos.StopLoss {
			e.state.ClosePosition(pos.Symbol, *pos.StopLoss, models.ExitReasonStopLoss, now)
			return
		}
		if pos.TakeProfit != nil && bar.High >= *pos.TakeProfit {
			e.state.ClosePosition(pos.Symbol, *pos.TakeProfit, models.ExitReasonTakeProfit, now)
		}
		return
	}

	if pos.StopLoss != nil && bar.High >= *pos.StopLoss {
		e.state.ClosePosition(pos.Symbol, *pos.StopLoss, models.ExitReasonStopLoss, now)
		return
	}
	if pos.TakeProfit != nil && bar.Low <= *pos.TakeProfit {
		e.state.ClosePosition(pos.Symbol, *pos.TakeProfit, models.ExitReasonTakeProfit, now)
	}
}

// positionSize applies risk-based sizing when a stop is present, always
// capped by the max position percentage of current capital.
func (e *Engine) positionSize(price float64, stop *float64) float64 {
	capital := e.state.Capital
	if capital <= 0 || price <= 0 {
		return 0
	}
	maxSize := capital * e.cfg.MaxPositionSizePct / 100 / price
	if stop != nil {
		if risk := math.Abs(price - *stop); risk > 0 {
			riskSize := capital * e.cfg.RiskPerTradePct / 100 / risk
			if riskSize < maxSize {
				return riskSize
			}
		}
	}
	return maxSize
}

// recordEquity samples capital plus unrealized PnL after the bar
func (e *Engine) recordEquity(bar models.Candle, now time.Time) {
	equity := e.state.Capital
	for _, pos := range e.state.OpenPositions() {
		mark := bar.Close
		if ticker, ok := e.sim.Ticker(pos.Symbol); ok {
			mark = ticker.Close
		}
		equity += pos.UnrealizedPnL(mark)
	}
	e.state.RecordEquity(now, equity)
	metrics.UpdateEquity(equity)
}

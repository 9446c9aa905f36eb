package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/exchange"
	"github.com/yourusername/tradeforge/internal/metrics"
	"github.com/yourusername/tradeforge/internal/models"
)

// Outcome classifies one reconciliation run
type Outcome string

// Run outcomes. NO_ACTION_NEEDED is reported only by the guards: a pass
// that executed reports SUCCESSFUL, PARTIAL or FAILED.
const (
	OutcomeSuccessful Outcome = "SUCCESSFUL"
	OutcomePartial    Outcome = "PARTIAL"
	OutcomeFailed     Outcome = "FAILED"
	OutcomeNoAction   Outcome = "NO_ACTION_NEEDED"
)

// Result reports what one reconciliation run did
type Result struct {
	Outcome            Outcome
	StartedAt          time.Time
	Duration           time.Duration
	PositionsCorrected int
	OrdersCorrected    int
	Errors             []string
}

// Stats accumulates over the process lifetime and is never reset
type Stats struct {
	Total              int
	Successful         int
	Failed             int
	Skipped            int
	PositionsCorrected int
	OrdersCorrected    int
	LastRun            time.Time
	LastOutcome        Outcome
}

// StateReconciler compares local state against the exchange and corrects the
// local side. Runs are serialized: a reconcile that starts while another is
// in flight is skipped, and non-forced runs are rate limited.
type StateReconciler struct {
	client      exchange.Client
	store       Store
	symbol      string
	minInterval time.Duration
	logger      *logrus.Logger

	mu         sync.Mutex
	inProgress bool
	lastRun    time.Time
	stats      Stats
}

// NewStateReconciler creates a reconciler for one symbol's state
func NewStateReconciler(client exchange.Client, store Store, symbol string, cfg config.ReconcileConfig, logger *logrus.Logger) *StateReconciler {
	if logger == nil {
		logger = logrus.New()
	}
	return &StateReconciler{
		client:      client,
		store:       store,
		symbol:      symbol,
		minInterval: time.Duration(cfg.MinIntervalSeconds) * time.Second,
		logger:      logger,
	}
}

// Stats returns a copy of the lifetime counters
func (r *StateReconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Reconcile runs one pass. force bypasses the rate limit but never the
// in-progress guard.
func (r *StateReconciler) Reconcile(ctx context.Context, force bool) Result {
	started := time.Now()

	r.mu.Lock()
	if r.inProgress {
		r.stats.Skipped++
		r.mu.Unlock()
		r.logger.Debug("Reconciliation already in progress, skipping")
		return Result{Outcome: OutcomeNoAction, StartedAt: started}
	}
	if !force && !r.lastRun.IsZero() && time.Since(r.lastRun) < r.minInterval {
		r.stats.Skipped++
		r.mu.Unlock()
		r.logger.Debug("Reconciliation rate limited, skipping")
		return Result{Outcome: OutcomeNoAction, StartedAt: started}
	}
	r.inProgress = true
	r.mu.Unlock()

	result := r.run(ctx)
	result.StartedAt = started
	result.Duration = time.Since(started)

	r.mu.Lock()
	r.inProgress = false
	r.lastRun = time.Now()
	r.stats.Total++
	r.stats.PositionsCorrected += result.PositionsCorrected
	r.stats.OrdersCorrected += result.OrdersCorrected
	r.stats.LastRun = r.lastRun
	r.stats.LastOutcome = result.Outcome
	switch result.Outcome {
	case OutcomeSuccessful:
		r.stats.Successful++
	default:
		r.stats.Failed++
	}
	r.mu.Unlock()

	metrics.RecordReconciliation(string(result.Outcome), result.PositionsCorrected, result.OrdersCorrected, result.Duration.Seconds())

	r.logger.WithFields(logrus.Fields{
		"outcome":             result.Outcome,
		"positions_corrected": result.PositionsCorrected,
		"orders_corrected":    result.OrdersCorrected,
		"duration":            result.Duration,
	}).Info("Reconciliation finished")

	return result
}

func (r *StateReconciler) run(ctx context.Context) Result {
	var result Result

	posCorrected, posErr := r.reconcilePositions(ctx)
	result.PositionsCorrected = posCorrected
	if posErr != nil {
		result.Errors = append(result.Errors, posErr.Error())
		r.logger.WithError(posErr).Error("Position reconciliation failed")
	}

	ordCorrected, ordErr := r.reconcileOrders(ctx)
	result.OrdersCorrected = ordCorrected
	if ordErr != nil {
		result.Errors = append(result.Errors, ordErr.Error())
		r.logger.WithError(ordErr).Error("Order reconciliation failed")
	}

	switch {
	case posErr != nil && ordErr != nil:
		result.Outcome = OutcomeFailed
	case posErr != nil || ordErr != nil:
		result.Outcome = OutcomePartial
	default:
		result.Outcome = OutcomeSuccessful
	}
	return result
}

// reconcilePositions plans all corrections from one exchange snapshot, then
// applies them. A fetch failure applies nothing.
func (r *StateReconciler) reconcilePositions(ctx context.Context) (int, error) {
	remote, err := r.client.GetPositions(ctx, r.symbol)
	if err != nil {
		return 0, fmt.Errorf("fetching positions: %w", err)
	}

	remoteBySymbol := make(map[string]exchange.Position, len(remote))
	for _, pos := range remote {
		remoteBySymbol[pos.Symbol] = pos
	}

	var plan []func()
	for _, local := range r.store.GetPositions() {
		ex, ok := remoteBySymbol[local.Symbol]
		if !ok {
			symbol := local.Symbol
			plan = append(plan, func() {
				r.store.RemovePosition(symbol, "RECONCILIATION")
			})
			continue
		}
		delete(remoteBySymbol, local.Symbol)
		if ex.Side != local.Side || !closeEnough(ex.Size, local.Size) || !closeEnough(ex.EntryPrice, local.EntryPrice) {
			ex := ex
			plan = append(plan, func() {
				r.store.UpdatePositionFromExchange(ex)
			})
		}
	}
	for _, ex := range remoteBySymbol {
		ex := ex
		plan = append(plan, func() {
			r.store.UpdatePositionFromExchange(ex)
		})
	}

	for _, apply := range plan {
		apply()
	}
	return len(plan), nil
}

// reconcileOrders aligns local active orders with the exchange. Local orders
// the exchange has no record of at all become LOST.
func (r *StateReconciler) reconcileOrders(ctx context.Context) (int, error) {
	remote, err := r.client.GetActiveOrders(ctx, r.symbol)
	if err != nil {
		return 0, fmt.Errorf("fetching orders: %w", err)
	}

	remoteByID := make(map[string]exchange.Order, len(remote))
	for _, order := range remote {
		remoteByID[order.OrderID] = order
	}

	var plan []func()
	for _, local := range r.store.GetActiveOrders() {
		ex, ok := remoteByID[local.ID]
		if ok {
			delete(remoteByID, local.ID)
			if ex.Status != local.Status {
				ex, id := ex, local.ID
				plan = append(plan, func() {
					r.store.UpdateOrderStatus(id, ex.Status, ex.FilledQty, ex.AvgPrice)
				})
			}
			continue
		}

		// Not in the active set; it may have reached a terminal state. An
		// order whose fate cannot be resolved to a terminal status is LOST,
		// lookup failures included.
		id := local.ID
		settled, err := r.client.GetOrder(ctx, local.Symbol, id)
		if err != nil {
			r.logger.WithError(err).WithField("order_id", id).Warn("Order fate lookup failed")
			settled = nil
		}
		if settled != nil && settled.Status.IsTerminal() {
			settled := settled
			plan = append(plan, func() {
				r.store.UpdateOrderStatus(id, settled.Status, settled.FilledQty, settled.AvgPrice)
			})
			continue
		}
		plan = append(plan, func() {
			r.store.UpdateOrderStatus(id, models.OrderStatusLost, 0, 0)
			metrics.RecordOrderLost()
		})
	}
	for _, ex := range remoteByID {
		ex := ex
		plan = append(plan, func() {
			r.store.AddOrderFromExchange(ex)
		})
	}

	for _, apply := range plan {
		apply()
	}
	return len(plan), nil
}

// closeEnough compares float quantities with a tolerance well below any
// instrument's step size.
func closeEnough(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}

package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/exchange"
	"github.com/yourusername/tradeforge/internal/models"
)

type fakeClient struct {
	mu        sync.Mutex
	positions []exchange.Position
	orders    []exchange.Order
	settled   map[string]*exchange.Order
	posErr    error
	ordErr    error
	getErr    error
	block     chan struct{}
	posCalls  int
}

func (f *fakeClient) GetPositions(ctx context.Context, symbol string) ([]exchange.Position, error) {
	f.mu.Lock()
	f.posCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.posErr != nil {
		return nil, f.posErr
	}
	return f.positions, nil
}

func (f *fakeClient) GetActiveOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	if f.ordErr != nil {
		return nil, f.ordErr
	}
	return f.orders, nil
}

func (f *fakeClient) GetOrder(ctx context.Context, symbol, orderID string) (*exchange.Order, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.settled[orderID], nil
}

func newReconciler(client exchange.Client, store Store) *StateReconciler {
	return NewStateReconciler(client, store, "BTCUSDT", config.ReconcileConfig{
		MinIntervalSeconds: 60,
		ScheduleSeconds:    300,
	}, nil)
}

func localPosition(symbol string, size, entry float64) *models.Position {
	return &models.Position{
		Symbol:     symbol,
		Side:       models.OrderSideBuy,
		Size:       size,
		EntryPrice: entry,
		EntryTime:  time.Now().UTC(),
	}
}

func TestExchangeWinsOnPositionMismatch(t *testing.T) {
	store := NewOrderManager(nil)
	store.SetPosition(localPosition("BTCUSDT", 1.0, 40000))

	client := &fakeClient{positions: []exchange.Position{
		{Symbol: "BTCUSDT", Side: models.OrderSideBuy, Size: 0.5, EntryPrice: 41000},
	}}

	result := newReconciler(client, store).Reconcile(context.Background(), true)

	if result.Outcome != OutcomeSuccessful {
		t.Fatalf("expected SUCCESSFUL, got %s", result.Outcome)
	}
	if result.PositionsCorrected != 1 {
		t.Fatalf("expected 1 position corrected, got %d", result.PositionsCorrected)
	}
	positions := store.GetPositions()
	if len(positions) != 1 || positions[0].Size != 0.5 || positions[0].EntryPrice != 41000 {
		t.Errorf("local position must match the exchange, got %+v", positions[0])
	}
}

func TestStaleLocalPositionRemoved(t *testing.T) {
	store := NewOrderManager(nil)
	store.SetPosition(localPosition("BTCUSDT", 1.0, 40000))

	client := &fakeClient{}

	result := newReconciler(client, store).Reconcile(context.Background(), true)

	if result.PositionsCorrected != 1 {
		t.Fatalf("expected 1 correction, got %d", result.PositionsCorrected)
	}
	if len(store.GetPositions()) != 0 {
		t.Error("position absent on exchange must be removed locally")
	}
}

// recordingStore captures the reasons passed to RemovePosition
type recordingStore struct {
	*OrderManager
	removeReasons []string
}

func (s *recordingStore) RemovePosition(symbol, reason string) {
	s.removeReasons = append(s.removeReasons, reason)
	s.OrderManager.RemovePosition(symbol, reason)
}

func TestStaleRemovalTaggedReconciliation(t *testing.T) {
	store := &recordingStore{OrderManager: NewOrderManager(nil)}
	store.SetPosition(localPosition("BTCUSDT", 1.0, 40000))

	newReconciler(&fakeClient{}, store).Reconcile(context.Background(), true)

	if len(store.removeReasons) != 1 || store.removeReasons[0] != "RECONCILIATION" {
		t.Fatalf("stale-position removal must be tagged RECONCILIATION, got %v", store.removeReasons)
	}
}

func TestUntrackedExchangePositionAdopted(t *testing.T) {
	store := NewOrderManager(nil)
	client := &fakeClient{positions: []exchange.Position{
		{Symbol: "BTCUSDT", Side: models.OrderSideSell, Size: 2, EntryPrice: 39000},
	}}

	result := newReconciler(client, store).Reconcile(context.Background(), true)

	if result.Outcome != OutcomeSuccessful {
		t.Fatalf("expected SUCCESSFUL, got %s", result.Outcome)
	}
	positions := store.GetPositions()
	if len(positions) != 1 || positions[0].Side != models.OrderSideSell {
		t.Fatalf("exchange position must be adopted locally, got %+v", positions)
	}
}

func TestOrderUnknownToExchangeMarkedLost(t *testing.T) {
	store := NewOrderManager(nil)
	store.TrackOrder(&models.Order{
		ID:     "local-1",
		Symbol: "BTCUSDT",
		Side:   models.OrderSideBuy,
		Status: models.OrderStatusOpen,
	})

	client := &fakeClient{settled: map[string]*exchange.Order{}}

	result := newReconciler(client, store).Reconcile(context.Background(), true)

	if result.OrdersCorrected != 1 {
		t.Fatalf("expected 1 order corrected, got %d", result.OrdersCorrected)
	}
	order, ok := store.GetOrder("local-1")
	if !ok || order.Status != models.OrderStatusLost {
		t.Fatalf("order unknown to exchange must become LOST, got %+v", order)
	}
	if len(store.GetActiveOrders()) != 0 {
		t.Error("LOST is terminal; order must leave the active set")
	}
}

func TestOrderSettledOnExchange(t *testing.T) {
	store := NewOrderManager(nil)
	store.TrackOrder(&models.Order{
		ID:     "local-2",
		Symbol: "BTCUSDT",
		Status: models.OrderStatusOpen,
	})

	client := &fakeClient{settled: map[string]*exchange.Order{
		"local-2": {
			OrderID:   "local-2",
			Symbol:    "BTCUSDT",
			Status:    models.OrderStatusFilled,
			FilledQty: 0.25,
			AvgPrice:  40100,
		},
	}}

	newReconciler(client, store).Reconcile(context.Background(), true)

	order, _ := store.GetOrder("local-2")
	if order.Status != models.OrderStatusFilled {
		t.Fatalf("expected FILLED from order history lookup, got %s", order.Status)
	}
	if order.FilledQty != 0.25 || order.FilledPrice != 40100 {
		t.Errorf("fill data must be copied from the exchange record, got qty=%v price=%v",
			order.FilledQty, order.FilledPrice)
	}
}

func TestStatusMismatchCopiesFillData(t *testing.T) {
	store := NewOrderManager(nil)
	store.TrackOrder(&models.Order{
		ID:     "local-3",
		Symbol: "BTCUSDT",
		Status: models.OrderStatusPending,
	})

	client := &fakeClient{orders: []exchange.Order{
		{
			OrderID:   "local-3",
			Symbol:    "BTCUSDT",
			Status:    models.OrderStatusOpen,
			FilledQty: 0.1,
			AvgPrice:  39950,
		},
	}}

	result := newReconciler(client, store).Reconcile(context.Background(), true)

	if result.OrdersCorrected != 1 {
		t.Fatalf("expected 1 order corrected, got %d", result.OrdersCorrected)
	}
	order, _ := store.GetOrder("local-3")
	if order.Status != models.OrderStatusOpen {
		t.Fatalf("local status must be overwritten from the exchange, got %s", order.Status)
	}
	if order.FilledQty != 0.1 || order.FilledPrice != 39950 {
		t.Errorf("partial-fill data must be copied on status mismatch, got qty=%v price=%v",
			order.FilledQty, order.FilledPrice)
	}
}

func TestNonTerminalLookupMarksLost(t *testing.T) {
	store := NewOrderManager(nil)
	store.TrackOrder(&models.Order{ID: "local-4", Symbol: "BTCUSDT", Status: models.OrderStatusOpen})

	// The history lookup answers, but never with a terminal status.
	client := &fakeClient{settled: map[string]*exchange.Order{
		"local-4": {OrderID: "local-4", Symbol: "BTCUSDT", Status: models.OrderStatusOpen},
	}}

	newReconciler(client, store).Reconcile(context.Background(), true)

	order, _ := store.GetOrder("local-4")
	if order.Status != models.OrderStatusLost {
		t.Fatalf("unresolvable order fate must become LOST, got %s", order.Status)
	}
}

func TestLookupFailureMarksLost(t *testing.T) {
	store := NewOrderManager(nil)
	store.TrackOrder(&models.Order{ID: "local-5", Symbol: "BTCUSDT", Status: models.OrderStatusOpen})

	client := &fakeClient{getErr: errors.New("history endpoint down")}

	result := newReconciler(client, store).Reconcile(context.Background(), true)

	if result.Outcome != OutcomeSuccessful {
		t.Fatalf("a per-order lookup failure must not fail the sub-step, got %s", result.Outcome)
	}
	order, _ := store.GetOrder("local-5")
	if order.Status != models.OrderStatusLost {
		t.Fatalf("order with a failed fate lookup must become LOST, got %s", order.Status)
	}
}

func TestCleanPassIsSuccessful(t *testing.T) {
	store := NewOrderManager(nil)
	store.SetPosition(localPosition("BTCUSDT", 1.0, 40000))
	store.TrackOrder(&models.Order{ID: "o1", Symbol: "BTCUSDT", Status: models.OrderStatusOpen})

	client := &fakeClient{
		positions: []exchange.Position{
			{Symbol: "BTCUSDT", Side: models.OrderSideBuy, Size: 1.0, EntryPrice: 40000},
		},
		orders: []exchange.Order{
			{OrderID: "o1", Symbol: "BTCUSDT", Status: models.OrderStatusOpen},
		},
	}

	result := newReconciler(client, store).Reconcile(context.Background(), true)

	if result.Outcome != OutcomeSuccessful {
		t.Fatalf("a clean pass reports SUCCESSFUL even with nothing to correct, got %s", result.Outcome)
	}
	if result.PositionsCorrected+result.OrdersCorrected != 0 {
		t.Errorf("matching state must not be touched: %+v", result)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := NewOrderManager(nil)
	client := &fakeClient{
		positions: []exchange.Position{
			{Symbol: "BTCUSDT", Side: models.OrderSideBuy, Size: 0.5, EntryPrice: 41000},
		},
		orders: []exchange.Order{
			{OrderID: "ex-1", Symbol: "BTCUSDT", Status: models.OrderStatusOpen, Qty: 0.1},
		},
	}
	r := newReconciler(client, store)

	first := r.Reconcile(context.Background(), true)
	second := r.Reconcile(context.Background(), true)

	if first.Outcome != OutcomeSuccessful || second.Outcome != OutcomeSuccessful {
		t.Fatalf("both runs must be SUCCESSFUL, got %s then %s", first.Outcome, second.Outcome)
	}
	if second.PositionsCorrected+second.OrdersCorrected != 0 {
		t.Errorf("second run over an unchanged snapshot must correct nothing: %+v", second)
	}
	positions := store.GetPositions()
	if len(positions) != 1 || positions[0].Size != 0.5 || positions[0].EntryPrice != 41000 {
		t.Errorf("reconciliation must not drift local positions, got %+v", positions)
	}
	if len(store.GetActiveOrders()) != 1 {
		t.Errorf("reconciliation must not drift local orders, got %+v", store.GetActiveOrders())
	}
}

func TestConcurrentReconcileRefused(t *testing.T) {
	store := NewOrderManager(nil)
	client := &fakeClient{block: make(chan struct{})}
	r := newReconciler(client, store)

	done := make(chan Result, 1)
	go func() {
		done <- r.Reconcile(context.Background(), true)
	}()

	// Wait until the first run is inside the exchange fetch.
	for {
		client.mu.Lock()
		started := client.posCalls > 0
		client.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	second := r.Reconcile(context.Background(), true)
	if second.Outcome != OutcomeNoAction {
		t.Fatalf("overlapping run must report NO_ACTION_NEEDED, got %s", second.Outcome)
	}

	close(client.block)
	first := <-done
	if first.Outcome != OutcomeSuccessful {
		t.Fatalf("first run must execute normally, got %s", first.Outcome)
	}
}

func TestRateLimitRespectedUnlessForced(t *testing.T) {
	store := NewOrderManager(nil)
	client := &fakeClient{}
	r := newReconciler(client, store)

	if got := r.Reconcile(context.Background(), false); got.Outcome != OutcomeSuccessful {
		t.Fatalf("first run must execute, got %s", got.Outcome)
	}
	if got := r.Reconcile(context.Background(), false); got.Outcome != OutcomeNoAction {
		t.Fatalf("second run within min interval must report NO_ACTION_NEEDED, got %s", got.Outcome)
	}
	if got := r.Reconcile(context.Background(), true); got.Outcome != OutcomeSuccessful {
		t.Fatalf("forced run must bypass the rate limit, got %s", got.Outcome)
	}
}

func TestPartialAndFailedOutcomes(t *testing.T) {
	store := NewOrderManager(nil)

	partial := &fakeClient{ordErr: errors.New("orders endpoint down")}
	r := newReconciler(partial, store)
	result := r.Reconcile(context.Background(), true)
	if result.Outcome != OutcomePartial {
		t.Fatalf("one failed sub-step must yield PARTIAL, got %s", result.Outcome)
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected the failure recorded, got %v", result.Errors)
	}
	if stats := r.Stats(); stats.Successful != 0 || stats.Failed != 1 {
		t.Errorf("PARTIAL must count as a failure, got %+v", stats)
	}

	failed := &fakeClient{
		posErr: errors.New("positions endpoint down"),
		ordErr: errors.New("orders endpoint down"),
	}
	result = newReconciler(failed, store).Reconcile(context.Background(), true)
	if result.Outcome != OutcomeFailed {
		t.Fatalf("both sub-steps failing must yield FAILED, got %s", result.Outcome)
	}
}

func TestFetchFailureLeavesStateUntouched(t *testing.T) {
	store := NewOrderManager(nil)
	store.SetPosition(localPosition("BTCUSDT", 1.0, 40000))
	store.TrackOrder(&models.Order{ID: "o1", Symbol: "BTCUSDT", Status: models.OrderStatusOpen})

	client := &fakeClient{
		posErr: errors.New("boom"),
		ordErr: errors.New("boom"),
	}

	newReconciler(client, store).Reconcile(context.Background(), true)

	if len(store.GetPositions()) != 1 {
		t.Error("failed fetch must not change local positions")
	}
	if len(store.GetActiveOrders()) != 1 {
		t.Error("failed fetch must not change local orders")
	}
}

func TestStatsAccumulateAcrossRuns(t *testing.T) {
	store := NewOrderManager(nil)
	client := &fakeClient{}
	r := newReconciler(client, store)

	r.Reconcile(context.Background(), true)

	store.SetPosition(localPosition("BTCUSDT", 1.0, 40000))
	r.Reconcile(context.Background(), true)
	r.Reconcile(context.Background(), false) // rate limited

	stats := r.Stats()
	if stats.Total != 2 {
		t.Errorf("expected 2 executed runs, got %d", stats.Total)
	}
	if stats.Successful != 2 {
		t.Errorf("expected 2 successful runs, got %d", stats.Successful)
	}
	if stats.Skipped != 1 {
		t.Errorf("expected 1 skipped run, got %d", stats.Skipped)
	}
	if stats.PositionsCorrected != 1 {
		t.Errorf("expected 1 lifetime position correction, got %d", stats.PositionsCorrected)
	}
	if stats.LastRun.IsZero() {
		t.Error("stats must record the last run time")
	}
	if stats.LastOutcome != OutcomeSuccessful {
		t.Errorf("expected last outcome SUCCESSFUL, got %s", stats.LastOutcome)
	}
}

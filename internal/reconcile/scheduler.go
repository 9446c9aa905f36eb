package reconcile

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/exchange"
	"github.com/yourusername/tradeforge/internal/metrics"
)

// Scheduler runs reconciliation on a fixed interval and forces an immediate
// run whenever the market stream reconnects, since state can drift while the
// connection is down.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *StateReconciler
	cfg        config.ReconcileConfig
	logger     *logrus.Logger
}

// NewScheduler creates a reconciliation scheduler
func NewScheduler(reconciler *StateReconciler, cfg config.ReconcileConfig, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:       cron.New(),
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start registers the periodic job and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %ds", s.cfg.ScheduleSeconds)
	_, err := s.cron.AddFunc(spec, func() {
		s.reconciler.Reconcile(ctx, false)
	})
	if err != nil {
		return fmt.Errorf("scheduling reconciliation: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", spec).Info("Reconciliation scheduler started")
	return nil
}

// BindStream forces a reconciliation after every stream reconnect
func (s *Scheduler) BindStream(ctx context.Context, stream *exchange.StreamClient) {
	stream.OnReconnect(func() {
		metrics.RecordStreamReconnect()
		s.logger.Info("Stream reconnected, forcing reconciliation")
		s.reconciler.Reconcile(ctx, true)
	})
}

// Stop stops the cron loop, waiting for a running job to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Reconciliation scheduler stopped")
}

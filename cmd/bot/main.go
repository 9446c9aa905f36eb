// Package main provides the live bot entry point: the market stream, the
// reconciliation scheduler and the metrics endpoint.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/exchange"
	"github.com/yourusername/tradeforge/internal/logger"
	"github.com/yourusername/tradeforge/internal/metrics"
	"github.com/yourusername/tradeforge/internal/reconcile"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	cfg        *config.Config
	appLogger  *logrus.Logger
	client     *exchange.RESTClient
	store      *reconcile.OrderManager
	reconciler *reconcile.StateReconciler
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(runCmd, reconcileCmd, statusCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "tradeforge-bot",
	Short: "Live trading bot with exchange state reconciliation",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return setupDependencies()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot: market stream, scheduled reconciliation, metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context())
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Force one reconciliation pass and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		result := reconciler.Reconcile(cmd.Context(), true)
		fmt.Printf("Outcome:             %s\n", result.Outcome)
		fmt.Printf("Positions corrected: %d\n", result.PositionsCorrected)
		fmt.Printf("Orders corrected:    %d\n", result.OrdersCorrected)
		fmt.Printf("Duration:            %s\n", result.Duration)
		for _, e := range result.Errors {
			fmt.Printf("Error:               %s\n", e)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the exchange's view of positions and active orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tradeforge-bot %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func setupDependencies() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLogger = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	client = exchange.NewRESTClient(&cfg.Exchange, appLogger)
	store = reconcile.NewOrderManager(appLogger)
	reconciler = reconcile.NewStateReconciler(client, store, cfg.Backtest.Symbol, cfg.Reconcile, appLogger)
	return nil
}

func runBot(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A fresh process starts with empty local state; adopt whatever the
	// exchange holds before reacting to the stream.
	reconciler.Reconcile(ctx, true)

	stream := exchange.NewStreamClient(cfg.Exchange.StreamURL, appLogger)
	scheduler := reconcile.NewScheduler(reconciler, cfg.Reconcile, appLogger)
	scheduler.BindStream(ctx, stream)

	if err := stream.Connect(ctx); err != nil {
		return fmt.Errorf("connecting market stream: %w", err)
	}
	defer stream.Close()

	topic := fmt.Sprintf("kline.1.%s", cfg.Backtest.Symbol)
	if err := stream.Subscribe(topic); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer()
		defer shutdownMetricsServer(metricsServer)
	}

	appLogger.WithFields(logrus.Fields{
		"symbol":  cfg.Backtest.Symbol,
		"version": Version,
	}).Info("Bot running")

	<-ctx.Done()
	appLogger.Info("Shutting down")
	return nil
}

func startMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		appLogger.WithField("addr", server.Addr).Info("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Error("Metrics server failed")
		}
	}()
	return server
}

func shutdownMetricsServer(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Metrics server shutdown failed")
	}
}

func showStatus(ctx context.Context) error {
	positions, err := client.GetPositions(ctx, cfg.Backtest.Symbol)
	if err != nil {
		return fmt.Errorf("fetching positions: %w", err)
	}
	orders, err := client.GetActiveOrders(ctx, cfg.Backtest.Symbol)
	if err != nil {
		return fmt.Errorf("fetching orders: %w", err)
	}

	fmt.Printf("Positions (%d):\n", len(positions))
	for _, pos := range positions {
		fmt.Printf("  %-10s %-4s size=%.8g entry=%.8g\n", pos.Symbol, pos.Side, pos.Size, pos.EntryPrice)
	}
	fmt.Printf("Active orders (%d):\n", len(orders))
	for _, order := range orders {
		fmt.Printf("  %-18s %-10s %-4s %-6s qty=%.8g price=%.8g status=%s\n",
			order.OrderID, order.Symbol, order.Side, order.Type, order.Qty, order.Price, order.Status)
	}
	return nil
}

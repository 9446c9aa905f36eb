// Package repository persists backtest runs so results survive beyond the
// JSON report files.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/tradeforge/internal/backtest"
	"github.com/yourusername/tradeforge/internal/database"
)

const errScanBacktestRun = "failed to scan backtest run: %w"

// BacktestRun is the persisted summary row for one run; the full results
// document is stored alongside as JSONB.
type BacktestRun struct {
	ID             uuid.UUID
	Strategy       string
	Symbol         string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	FinalEquity    float64
	TotalTrades    int
	WinRate        float64
	MaxDrawdownPct float64
	SharpeRatio    float64
	Status         string
	FullResults    []byte
	CreatedAt      time.Time
}

// BacktestRunRepository stores and retrieves backtest runs
type BacktestRunRepository interface {
	Save(ctx context.Context, results *backtest.Results) (uuid.UUID, error)
	GetLatest(ctx context.Context, limit int) ([]*BacktestRun, error)
	GetByStrategy(ctx context.Context, strategy string, limit int) ([]*BacktestRun, error)
}

// PostgresBacktestRunRepository implements BacktestRunRepository for PostgreSQL
type PostgresBacktestRunRepository struct {
	db *database.DB
}

// NewPostgresBacktestRunRepository creates a new backtest run repository
func NewPostgresBacktestRunRepository(db *database.DB) BacktestRunRepository {
	return &PostgresBacktestRunRepository{db: db}
}

// Save inserts one completed run
func (r *PostgresBacktestRunRepository) Save(ctx context.Context, results *backtest.Results) (uuid.UUID, error) {
	fullResults, err := json.Marshal(backtest.ResultsDocument(results))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode results: %w", err)
	}

	id := uuid.New()
	query := `
		INSERT INTO backtest_runs (
			id, strategy, symbol, start_date, end_date,
			initial_capital, final_equity, total_trades, win_rate,
			max_drawdown_pct, sharpe_ratio, status, full_results, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`

	_, err = r.db.GetPool().Exec(ctx, query,
		id, results.Strategy, results.Symbol, results.StartDate, results.EndDate,
		results.InitialCapital, results.FinalEquity, results.Metrics.TotalTrades, results.Metrics.WinRate,
		results.Metrics.MaxDrawdownPct, results.Metrics.SharpeRatio, results.Status, fullResults, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save backtest run: %w", err)
	}
	return id, nil
}

// GetLatest retrieves the most recent runs
func (r *PostgresBacktestRunRepository) GetLatest(ctx context.Context, limit int) ([]*BacktestRun, error) {
	query := selectBacktestRun + ` ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest backtest runs: %w", err)
	}
	defer rows.Close()
	return scanBacktestRuns(rows)
}

// GetByStrategy retrieves recent runs for one strategy
func (r *PostgresBacktestRunRepository) GetByStrategy(ctx context.Context, strategy string, limit int) ([]*BacktestRun, error) {
	query := selectBacktestRun + ` WHERE strategy = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.GetPool().Query(ctx, query, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs by strategy: %w", err)
	}
	defer rows.Close()
	return scanBacktestRuns(rows)
}

const selectBacktestRun = `
	SELECT id, strategy, symbol, start_date, end_date, initial_capital,
		final_equity, total_trades, win_rate, max_drawdown_pct, sharpe_ratio,
		status, full_results, created_at
	FROM backtest_runs`

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanBacktestRuns(rows rowScanner) ([]*BacktestRun, error) {
	var runs []*BacktestRun
	for rows.Next() {
		run := &BacktestRun{}
		if err := rows.Scan(
			&run.ID, &run.Strategy, &run.Symbol, &run.StartDate, &run.EndDate, &run.InitialCapital,
			&run.FinalEquity, &run.TotalTrades, &run.WinRate, &run.MaxDrawdownPct, &run.SharpeRatio,
			&run.Status, &run.FullResults, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf(errScanBacktestRun, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

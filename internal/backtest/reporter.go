package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourusername/tradeforge/internal/models"
)

const reportTimeLayout = "2006-01-02 15:04:05"

// resultsDocument is the serialized form of Results: timestamps rendered as
// plain date-time strings so reports stay greppable and diff-friendly.
type resultsDocument struct {
	Strategy       string             `json:"strategy"`
	Parameters     map[string]any     `json:"parameters,omitempty"`
	Symbol         string             `json:"symbol"`
	Timeframes     []models.Timeframe `json:"timeframes"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	InitialCapital float64            `json:"initial_capital"`
	FinalEquity    float64            `json:"final_equity"`
	Status         string             `json:"status"`
	Error          string             `json:"error,omitempty"`
	Metrics        Metrics            `json:"metrics"`
	Trades         []tradeDocument    `json:"trades"`
	EquityCurve    []equityDocument   `json:"equity_curve"`
}

type tradeDocument struct {
	Symbol     string            `json:"symbol"`
	Side       models.OrderSide  `json:"side"`
	EntryPrice float64           `json:"entry_price"`
	ExitPrice  float64           `json:"exit_price"`
	Size       float64           `json:"size"`
	EntryTime  string            `json:"entry_time"`
	ExitTime   string            `json:"exit_time"`
	PnL        float64           `json:"pnl"`
	PnLPct     float64           `json:"pnl_pct"`
	Duration   string            `json:"duration"`
	ExitReason models.ExitReason `json:"exit_reason"`
}

type equityDocument struct {
	Timestamp string  `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// ResultsDocument converts run results to their serializable form
func ResultsDocument(results *Results) any {
	doc := resultsDocument{
		Strategy:       results.Strategy,
		Parameters:     results.Parameters,
		Symbol:         results.Symbol,
		Timeframes:     results.Timeframes,
		StartDate:      results.StartDate.Format("2006-01-02"),
		EndDate:        results.EndDate.Format("2006-01-02"),
		InitialCapital: results.InitialCapital,
		FinalEquity:    results.FinalEquity,
		Status:         results.Status,
		Error:          results.Error,
		Metrics:        results.Metrics,
		Trades:         make([]tradeDocument, 0, len(results.Trades)),
		EquityCurve:    make([]equityDocument, 0, len(results.EquityCurve)),
	}
	for _, trade := range results.Trades {
		doc.Trades = append(doc.Trades, tradeDocument{
			Symbol:     trade.Symbol,
			Side:       trade.Side,
			EntryPrice: trade.EntryPrice,
			ExitPrice:  trade.ExitPrice,
			Size:       trade.Size,
			EntryTime:  trade.EntryTime.Format(reportTimeLayout),
			ExitTime:   trade.ExitTime.Format(reportTimeLayout),
			PnL:        trade.PnL,
			PnLPct:     trade.PnLPct,
			Duration:   trade.Duration,
			ExitReason: trade.ExitReason,
		})
	}
	for _, point := range results.EquityCurve {
		doc.EquityCurve = append(doc.EquityCurve, equityDocument{
			Timestamp: point.Timestamp.Format(reportTimeLayout),
			Equity:    point.Equity,
		})
	}
	return doc
}

// ReportFilename builds the canonical report name for a run
func ReportFilename(results *Results) string {
	return fmt.Sprintf("backtest_%s_%s_%s_%s.json",
		results.Strategy,
		results.Symbol,
		results.StartDate.Format("20060102"),
		results.EndDate.Format("20060102"))
}

// SaveResults writes the run report as indented JSON under resultsDir,
// creating the directory if needed. Returns the written path.
func SaveResults(results *Results, resultsDir string) (string, error) {
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating results dir: %w", err)
	}

	payload, err := json.MarshalIndent(ResultsDocument(results), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}

	path := filepath.Join(resultsDir, ReportFilename(results))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("writing results: %w", err)
	}
	return path, nil
}

package backtest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourusername/tradeforge/internal/models"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}

func TestLoadFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	// Rows deliberately out of order.
	writeCSV(t, dir, "BTCUSDT_1m.csv", `timestamp,open,high,low,close,volume
2024-01-01 00:02:00,101,102,100,101.5,10
2024-01-01 00:00:00,100,101,99,100.5,12
2024-01-01 00:01:00,100.5,101.5,100,101,11
2024-01-02 00:00:00,101,102,101,102,9
`)

	loader := NewLoader(dir, nil)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC)

	candles, err := loader.Load("BTCUSDT", models.Timeframe1m, start, end)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(candles) != 3 {
		t.Fatalf("expected 3 candles in range, got %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			t.Fatal("candles must come back sorted ascending")
		}
	}
	if candles[0].Close != 100.5 {
		t.Errorf("expected first close 100.5, got %v", candles[0].Close)
	}
}

func TestLoadMissingColumn(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BTCUSDT_1m.csv", `timestamp,open,high,low,volume
2024-01-01 00:00:00,100,101,99,12
`)

	loader := NewLoader(dir, nil)
	_, err := loader.Load("BTCUSDT", models.Timeframe1m, time.Time{}, time.Now())
	if !errors.Is(err, models.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestLoadEmptyRange(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BTCUSDT_1m.csv", `timestamp,open,high,low,close,volume
2024-01-01 00:00:00,100,101,99,100.5,12
`)

	loader := NewLoader(dir, nil)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	_, err := loader.Load("BTCUSDT", models.Timeframe1m, start, end)
	if !errors.Is(err, models.ErrEmptyDateRange) {
		t.Fatalf("expected ErrEmptyDateRange, got %v", err)
	}
}

func TestLoadEpochTimestamps(t *testing.T) {
	dir := t.TempDir()
	// First row epoch seconds, second epoch milliseconds.
	writeCSV(t, dir, "ETHUSDT_1h.csv", `time,open,high,low,close,volume
1704067200,100,101,99,100.5,12
1704070800000,100.5,102,100,101,10
`)

	loader := NewLoader(dir, nil)
	candles, err := loader.Load("ETHUSDT", models.Timeframe1h,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if !candles[0].Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected first timestamp %v", candles[0].Timestamp)
	}
}

func TestLoadUsesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BTCUSDT_1m.csv")
	writeCSV(t, dir, "BTCUSDT_1m.csv", `timestamp,open,high,low,close,volume
2024-01-01 00:00:00,100,101,99,100.5,12
`)

	loader := NewLoader(dir, nil)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	if _, err := loader.Load("BTCUSDT", models.Timeframe1m, start, end); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("removing fixture: %v", err)
	}
	// Second load must come from cache despite the file being gone.
	if _, err := loader.Load("BTCUSDT", models.Timeframe1m, start, end); err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
}

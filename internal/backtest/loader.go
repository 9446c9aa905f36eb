package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/tradeforge/internal/models"
)

// Loader reads historical candles from CSV files named <symbol>_<timeframe>.csv
// under the data directory. Parsed files are cached so repeated runs over the
// same data only hit the disk once.
type Loader struct {
	dataDir string
	cache   *cache.Cache
	logger  *logrus.Logger
}

// NewLoader creates a candle loader rooted at dataDir
func NewLoader(dataDir string, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{
		dataDir: dataDir,
		cache:   cache.New(cache.NoExpiration, cache.NoExpiration),
		logger:  logger,
	}
}

// Load returns the candles for one symbol and timeframe within [start, end],
// sorted ascending. An empty result is an error: a run over no data would
// silently produce an empty report.
func (l *Loader) Load(symbol string, timeframe models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	key := fmt.Sprintf("%s_%s", symbol, timeframe)

	var candles []models.Candle
	if cached, found := l.cache.Get(key); found {
		candles = cached.([]models.Candle)
	} else {
		path := filepath.Join(l.dataDir, key+".csv")
		parsed, err := l.readFile(path)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, parsed, cache.NoExpiration)
		candles = parsed

		l.logger.WithFields(logrus.Fields{
			"symbol":    symbol,
			"timeframe": timeframe,
			"candles":   len(parsed),
		}).Info("Loaded historical data")
	}

	filtered := make([]models.Candle, 0, len(candles))
	for _, candle := range candles {
		if candle.Timestamp.Before(start) || candle.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, candle)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%s %s between %s and %s: %w",
			symbol, timeframe, start.Format("2006-01-02"), end.Format("2006-01-02"), models.ErrEmptyDateRange)
	}
	return filtered, nil
}

func (l *Loader) readFile(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	columns, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	candles := make([]models.Candle, 0, len(records))
	for i, record := range records {
		candle, err := parseCandle(record, columns)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

type candleColumns struct {
	timestamp, open, high, low, close, volume int
}

func columnIndex(header []string) (candleColumns, error) {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[strings.ToLower(strings.TrimSpace(name))] = i
	}

	cols := candleColumns{timestamp: -1}
	if i, ok := byName["timestamp"]; ok {
		cols.timestamp = i
	} else if i, ok := byName["time"]; ok {
		cols.timestamp = i
	}
	if cols.timestamp < 0 {
		return cols, fmt.Errorf("column timestamp: %w", models.ErrMissingColumn)
	}

	for _, want := range []struct {
		name string
		dst  *int
	}{
		{"open", &cols.open},
		{"high", &cols.high},
		{"low", &cols.low},
		{"close", &cols.close},
		{"volume", &cols.volume},
	} {
		i, ok := byName[want.name]
		if !ok {
			return cols, fmt.Errorf("column %s: %w", want.name, models.ErrMissingColumn)
		}
		*want.dst = i
	}
	return cols, nil
}

func parseCandle(record []string, cols candleColumns) (models.Candle, error) {
	ts, err := parseTimestamp(record[cols.timestamp])
	if err != nil {
		return models.Candle{}, err
	}

	values := make([]float64, 5)
	for i, col := range []int{cols.open, cols.high, cols.low, cols.close, cols.volume} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parsing %q: %w", record[col], err)
		}
		values[i] = v
	}

	return models.Candle{
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// parseTimestamp accepts RFC 3339, the common space-separated form, a bare
// date, or unix epoch seconds/milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC(), nil
		}
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"tradepilot/internal/market"
)

// historyWindow is how many bars back each replayed snapshot sees when its
// features are computed. Matches the live candle window default.
const historyWindow = 120

// LoadCSV reads a historical candle series and turns it into replayable
// snapshots, one per bar, each carrying the feature set computed from the
// bars visible up to that point. Expected header:
// timestamp,symbol,open,high,low,close,volume (timestamp in unix seconds
// or RFC3339).
func LoadCSV(path string) ([]market.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: open data file: %w", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]market.Snapshot, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("backtest: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"timestamp", "symbol", "open", "high", "low", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("backtest: data file missing column %q", required)
		}
	}

	type series struct {
		candles []market.Candle
	}
	bySymbol := make(map[string]*series)
	var snapshots []market.Snapshot

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("backtest: line %d: %w", line+1, err)
		}
		line++

		at, err := parseTimestamp(record[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("backtest: line %d: %w", line, err)
		}
		symbol := strings.ToUpper(strings.TrimSpace(record[col["symbol"]]))
		candle := market.Candle{
			OpenTime:  at.UnixMilli(),
			CloseTime: at.UnixMilli(),
			Open:      parseField(record, col, "open"),
			High:      parseField(record, col, "high"),
			Low:       parseField(record, col, "low"),
			Close:     parseField(record, col, "close"),
			Volume:    parseField(record, col, "volume"),
		}

		s, ok := bySymbol[symbol]
		if !ok {
			s = &series{}
			bySymbol[symbol] = s
		}
		s.candles = append(s.candles, candle)
		window := s.candles
		if len(window) > historyWindow {
			window = window[len(window)-historyWindow:]
		}
		windowCopy := append([]market.Candle(nil), window...)
		snapshots = append(snapshots, market.Snapshot{
			Symbol:   symbol,
			Price:    candle.Close,
			At:       at,
			Candles:  windowCopy,
			Features: market.ComputeFeatures(windowCopy),
		})
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("backtest: data file contains no rows")
	}
	return snapshots, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
	}
	return at.UTC(), nil
}

func parseField(record []string, col map[string]int, name string) float64 {
	idx, ok := col[name]
	if !ok || idx >= len(record) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return 0
	}
	return v
}

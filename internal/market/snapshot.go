package market

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Snapshot is the per-instrument, per-cycle context handed to the decision
// pipeline. Features drive the cache-key fingerprint: any feature change
// must change the fingerprint.
type Snapshot struct {
	Symbol   string             `json:"symbol"`
	Price    float64            `json:"price"`
	At       time.Time          `json:"at"`
	Candles  []Candle           `json:"candles,omitempty"`
	Features map[string]float64 `json:"features,omitempty"`
}

// Fingerprint returns a deterministic digest of the snapshot's symbol and
// features. Candles are deliberately excluded: the feature set is the
// semantic identity of the snapshot, raw bars are just its raw material.
func (s Snapshot) Fingerprint() string {
	type entry struct {
		K string  `json:"k"`
		V float64 `json:"v"`
	}
	entries := make([]entry, 0, len(s.Features)+1)
	for k, v := range s.Features {
		entries = append(entries, entry{K: k, V: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].K < entries[j].K })
	payload := struct {
		Symbol   string  `json:"symbol"`
		Price    float64 `json:"price"`
		Features []entry `json:"features"`
	}{Symbol: s.Symbol, Price: s.Price, Features: entries}
	raw, err := json.Marshal(payload)
	if err != nil {
		// Marshal of plain floats/strings cannot fail; guard anyway.
		raw = []byte(s.Symbol)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Feed supplies snapshots. Live feeds hit an exchange; backtests and tests
// replay recorded series through the same interface.
type Feed interface {
	Snapshot(ctx context.Context, symbol string) (Snapshot, error)
}

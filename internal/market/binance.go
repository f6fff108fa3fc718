package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

const maxCandleLimit = 1500

// BinanceFeed builds snapshots from Binance futures klines.
type BinanceFeed struct {
	client   *futures.Client
	interval string
	limit    int
	nowFn    func() time.Time
}

type BinanceConfig struct {
	RESTBaseURL string
	Interval    string
	CandleLimit int
	HTTPTimeout time.Duration
}

func NewBinanceFeed(cfg BinanceConfig) *BinanceFeed {
	client := futures.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	interval := strings.ToLower(strings.TrimSpace(cfg.Interval))
	if interval == "" {
		interval = "15m"
	}
	limit := cfg.CandleLimit
	if limit <= 0 {
		limit = 120
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	return &BinanceFeed{client: client, interval: interval, limit: limit, nowFn: time.Now}
}

func (f *BinanceFeed) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Snapshot{}, fmt.Errorf("symbol is required")
	}
	// Binance wants symbols without slashes (ETH/USDT -> ETHUSDT).
	clean := strings.ReplaceAll(symbol, "/", "")
	kls, err := f.client.NewKlinesService().Symbol(clean).Interval(f.interval).Limit(f.limit).Do(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch klines for %s: %w", symbol, err)
	}
	candles := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		candles = append(candles, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	if len(candles) == 0 {
		return Snapshot{}, fmt.Errorf("no candles returned for %s", symbol)
	}
	last := candles[len(candles)-1]
	return Snapshot{
		Symbol:   symbol,
		Price:    last.Close,
		At:       f.nowFn().UTC(),
		Candles:  candles,
		Features: ComputeFeatures(candles),
	}, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

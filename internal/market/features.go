package market

import (
	"math"

	"github.com/markcheno/go-talib"
)

const (
	rsiPeriod = 14
	emaFast   = 20
	emaSlow   = 50
	atrPeriod = 14
)

// ComputeFeatures derives the indicator feature set used for cache-key
// fingerprinting from a candle window. Short windows yield a reduced set
// rather than an error.
func ComputeFeatures(candles []Candle) map[string]float64 {
	features := make(map[string]float64)
	n := len(candles)
	if n == 0 {
		return features
	}
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	features["close"] = round6(closes[n-1])

	if n > rsiPeriod {
		rsi := talib.Rsi(closes, rsiPeriod)
		features["rsi14"] = round6(rsi[n-1])
	}
	if n >= emaFast {
		ema := talib.Ema(closes, emaFast)
		features["ema20"] = round6(ema[n-1])
	}
	if n >= emaSlow {
		ema := talib.Ema(closes, emaSlow)
		features["ema50"] = round6(ema[n-1])
	}
	if n > atrPeriod {
		atr := talib.Atr(highs, lows, closes, atrPeriod)
		features["atr14"] = round6(atr[n-1])
	}
	return features
}

// round6 keeps fingerprints stable across float formatting noise.
func round6(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1e6) / 1e6
}

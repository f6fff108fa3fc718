package market

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	s := Snapshot{
		Symbol:   "BTCUSDT",
		Price:    100,
		Features: map[string]float64{"rsi14": 55.5, "ema20": 101.2, "close": 100},
	}
	assert.Equal(t, s.Fingerprint(), s.Fingerprint())

	// Map iteration order must not leak into the digest.
	other := Snapshot{
		Symbol:   "BTCUSDT",
		Price:    100,
		Features: map[string]float64{"close": 100, "ema20": 101.2, "rsi14": 55.5},
	}
	assert.Equal(t, s.Fingerprint(), other.Fingerprint())
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Snapshot{Symbol: "BTCUSDT", Price: 100, Features: map[string]float64{"rsi14": 55}}

	changedFeature := base
	changedFeature.Features = map[string]float64{"rsi14": 56}
	assert.NotEqual(t, base.Fingerprint(), changedFeature.Fingerprint())

	changedSymbol := base
	changedSymbol.Symbol = "ETHUSDT"
	assert.NotEqual(t, base.Fingerprint(), changedSymbol.Fingerprint())

	changedPrice := base
	changedPrice.Price = 101
	assert.NotEqual(t, base.Fingerprint(), changedPrice.Fingerprint())
}

func TestFingerprintIgnoresCandlesAndTime(t *testing.T) {
	a := Snapshot{Symbol: "BTCUSDT", Price: 100, At: time.Now(),
		Candles: []Candle{{Close: 99}}, Features: map[string]float64{"close": 100}}
	b := Snapshot{Symbol: "BTCUSDT", Price: 100, At: time.Now().Add(time.Hour),
		Features: map[string]float64{"close": 100}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func candleRamp(n int) []Candle {
	out := make([]Candle, n)
	for i := range out {
		px := 100 + float64(i)
		out[i] = Candle{Open: px, High: px + 1, Low: px - 1, Close: px, Volume: 10}
	}
	return out
}

func TestComputeFeaturesFullWindow(t *testing.T) {
	features := ComputeFeatures(candleRamp(120))
	for _, key := range []string{"close", "rsi14", "ema20", "ema50", "atr14"} {
		v, ok := features[key]
		require.True(t, ok, "missing feature %s", key)
		assert.False(t, math.IsNaN(v))
	}
	assert.Equal(t, 219.0, features["close"])
}

func TestComputeFeaturesShortWindow(t *testing.T) {
	features := ComputeFeatures(candleRamp(10))
	assert.Contains(t, features, "close")
	assert.NotContains(t, features, "rsi14")
	assert.NotContains(t, features, "ema50")

	assert.Empty(t, ComputeFeatures(nil))
}

func TestStaticFeed(t *testing.T) {
	feed := NewStaticFeed()
	feed.Set(Snapshot{Symbol: "btcusdt", Price: 100})

	snap, err := feed.Snapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, 100.0, snap.Price)

	_, err = feed.Snapshot(context.Background(), "ETHUSDT")
	assert.Error(t, err)
}

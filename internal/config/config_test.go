package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
trading:
  instruments: ["btcusdt", "ETHUSDT", " btcusdt "]
advisors:
  - id: deepseek
    api_url: https://api.example.com/v1
    model: deepseek-chat
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 180*time.Second, cfg.Trading.Interval())
	assert.Equal(t, 10000.0, cfg.Trading.InitialBalanceUSD)
	assert.Equal(t, 0.001, cfg.Trading.FeeRate)
	assert.Equal(t, 0.20, cfg.Risk.MaxPositionPct)
	assert.Equal(t, 0.80, cfg.Risk.MaxExposurePct)
	assert.Equal(t, 30, cfg.Risk.ConfidenceFloor)
	assert.Equal(t, 600*time.Second, cfg.Cache.TTL())
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "data/tradepilot.db", cfg.Store.Path)
}

func TestLoadNormalizesInstruments(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.NormalizedInstruments())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
risk:
  max_position_pct: 0.10
  confidence_floor: 50
cache:
  ttl_seconds: 120
`))
	require.NoError(t, err)
	assert.Equal(t, 0.10, cfg.Risk.MaxPositionPct)
	assert.Equal(t, 50, cfg.Risk.ConfidenceFloor)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL())
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no instruments", `
advisors:
  - id: a
    api_url: https://x
    model: m
    enabled: true
`},
		{"no enabled advisor", `
trading:
  instruments: ["BTCUSDT"]
advisors:
  - id: a
    api_url: https://x
    model: m
    enabled: false
`},
		{"duplicate advisor id", minimalYAML + `
  - id: deepseek
    api_url: https://y
    model: m
    enabled: true
`},
		{"exposure below position cap", minimalYAML + `
risk:
  max_position_pct: 0.50
  max_exposure_pct: 0.30
`},
		{"live mode unavailable", `
trading:
  instruments: ["BTCUSDT"]
  paper_mode: false
advisors:
  - id: a
    api_url: https://x
    model: m
    enabled: true
`},
		{"fee out of range", `
trading:
  instruments: ["BTCUSDT"]
  fee_rate: 1.5
advisors:
  - id: a
    api_url: https://x
    model: m
    enabled: true
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

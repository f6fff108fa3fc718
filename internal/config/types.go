package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration carrier for tradepilot.
type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Trading  TradingConfig   `mapstructure:"trading"`
	Risk     RiskConfig      `mapstructure:"risk"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Advisors []AdvisorConfig `mapstructure:"advisors"`
	Store    StoreConfig     `mapstructure:"store"`
	Backtest BacktestConfig  `mapstructure:"backtest"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// TradingConfig drives the live scheduling loop and the paper ledger.
type TradingConfig struct {
	Instruments         []string `mapstructure:"instruments"`
	IntervalSeconds     int      `mapstructure:"interval_seconds"`
	InitialBalanceUSD   float64  `mapstructure:"initial_balance_usd"`
	FeeRate             float64  `mapstructure:"fee_rate"`
	MaxConcurrent       int      `mapstructure:"max_concurrent"`
	TaskTimeoutSeconds  int      `mapstructure:"task_timeout_seconds"`
	StopGraceSeconds    int      `mapstructure:"stop_grace_seconds"`
	PaperMode           bool     `mapstructure:"paper_mode"`
	BinanceREST         string   `mapstructure:"binance_rest"`
	CandleLimit         int      `mapstructure:"candle_limit"`
	CandleInterval      string   `mapstructure:"candle_interval"`
	RunImmediately      bool     `mapstructure:"run_immediately"`
	PeriodsPerYearHint  float64  `mapstructure:"periods_per_year"`
}

func (t TradingConfig) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

func (t TradingConfig) TaskTimeout() time.Duration {
	return time.Duration(t.TaskTimeoutSeconds) * time.Second
}

func (t TradingConfig) StopGrace() time.Duration {
	return time.Duration(t.StopGraceSeconds) * time.Second
}

// RiskConfig holds the per-cycle read-only limits.
type RiskConfig struct {
	MaxPositionPct  float64 `mapstructure:"max_position_pct"`
	MaxExposurePct  float64 `mapstructure:"max_exposure_pct"`
	MaxLeverage     float64 `mapstructure:"max_leverage"`
	ConfidenceFloor int     `mapstructure:"confidence_floor"`
	VaRConfidence   float64 `mapstructure:"var_confidence"`
}

type CacheConfig struct {
	TTLSeconds   int `mapstructure:"ttl_seconds"`
	SweepSeconds int `mapstructure:"sweep_seconds"`
}

func (c CacheConfig) TTL() time.Duration   { return time.Duration(c.TTLSeconds) * time.Second }
func (c CacheConfig) Sweep() time.Duration { return time.Duration(c.SweepSeconds) * time.Second }

// AdvisorConfig describes one external advisory source. Each advisor backs
// its own account: own ledger, own scheduler, own cache namespace.
type AdvisorConfig struct {
	ID             string `mapstructure:"id"`
	APIURL         string `mapstructure:"api_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Enabled        bool   `mapstructure:"enabled"`
}

func (a AdvisorConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type BacktestConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	DataPath   string  `mapstructure:"data_path"`
	ReportPath string  `mapstructure:"report_path"`
	Balance    float64 `mapstructure:"balance"`
}

// NormalizedInstruments returns the configured instrument list upper-cased,
// trimmed and de-duplicated, preserving order.
func (t TradingConfig) NormalizedInstruments() []string {
	seen := make(map[string]bool, len(t.Instruments))
	out := make([]string, 0, len(t.Instruments))
	for _, sym := range t.Instruments {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

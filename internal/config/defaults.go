package config

import "github.com/spf13/viper"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9980"
	defaultIntervalSeconds = 180
	defaultInitialBalance  = 10000
	defaultFeeRate         = 0.001
	defaultMaxConcurrent   = 4
	defaultTaskTimeout     = 60
	defaultStopGrace       = 15
	defaultBinanceREST     = "https://fapi.binance.com"
	defaultCandleLimit     = 120
	defaultCandleInterval  = "15m"
	defaultPeriodsPerYear  = 365
	defaultMaxPositionPct  = 0.20
	defaultMaxExposurePct  = 0.80
	defaultMaxLeverage     = 10
	defaultConfidenceFloor = 30
	defaultVaRConfidence   = 0.05
	defaultCacheTTL        = 600
	defaultCacheSweep      = 120
	defaultStorePath       = "data/tradepilot.db"
	defaultReportPath      = "data/backtest"
)

func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.env", defaultAppEnv)
	v.SetDefault("app.log_level", defaultAppLogLevel)
	v.SetDefault("app.http_addr", defaultAppHTTPAddr)
	v.SetDefault("trading.interval_seconds", defaultIntervalSeconds)
	v.SetDefault("trading.initial_balance_usd", defaultInitialBalance)
	v.SetDefault("trading.fee_rate", defaultFeeRate)
	v.SetDefault("trading.max_concurrent", defaultMaxConcurrent)
	v.SetDefault("trading.task_timeout_seconds", defaultTaskTimeout)
	v.SetDefault("trading.stop_grace_seconds", defaultStopGrace)
	v.SetDefault("trading.paper_mode", true)
	v.SetDefault("trading.binance_rest", defaultBinanceREST)
	v.SetDefault("trading.candle_limit", defaultCandleLimit)
	v.SetDefault("trading.candle_interval", defaultCandleInterval)
	v.SetDefault("trading.run_immediately", true)
	v.SetDefault("trading.periods_per_year", defaultPeriodsPerYear)
	v.SetDefault("risk.max_position_pct", defaultMaxPositionPct)
	v.SetDefault("risk.max_exposure_pct", defaultMaxExposurePct)
	v.SetDefault("risk.max_leverage", defaultMaxLeverage)
	v.SetDefault("risk.confidence_floor", defaultConfidenceFloor)
	v.SetDefault("risk.var_confidence", defaultVaRConfidence)
	v.SetDefault("cache.ttl_seconds", defaultCacheTTL)
	v.SetDefault("cache.sweep_seconds", defaultCacheSweep)
	v.SetDefault("store.path", defaultStorePath)
	v.SetDefault("backtest.report_path", defaultReportPath)
}

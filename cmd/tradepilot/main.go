package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tradepilot/internal/advisor"
	"tradepilot/internal/app"
	"tradepilot/internal/config"
	"tradepilot/internal/logger"
)

func main() {
	cfgPath := os.Getenv("TRADEPILOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s, advisors=%d)", cfg.App.Env, len(cfg.Advisors))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Backtest.Enabled {
		runBacktest(ctx, cfg)
		return
	}

	service, err := app.New(cfg, cfgPath)
	if err != nil {
		log.Fatalf("initializing app failed: %v", err)
	}
	if err := service.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func runBacktest(ctx context.Context, cfg *config.Config) {
	providers := make(map[string]advisor.Provider)
	for _, advCfg := range cfg.Advisors {
		if !advCfg.Enabled {
			continue
		}
		providers[advCfg.ID] = advisor.NewOpenAIChatProvider(
			advCfg.ID, advCfg.APIURL, advCfg.APIKey, advCfg.Model, advCfg.Timeout())
	}
	if len(providers) == 0 {
		log.Fatalf("backtest requires at least one enabled advisor")
	}
	results, err := app.RunBacktest(ctx, cfg, providers)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
	for id, stats := range results {
		logger.Infof("backtest %s (%s): return=%.2f%% trades=%d winrate=%.0f%% maxdd=%.2f%% sharpe=%.2f",
			id, stats.RunID, stats.ReturnPct, stats.Trades, stats.WinRate*100, stats.MaxDrawdownPct, stats.Sharpe)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

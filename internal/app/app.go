package app

import (
	"context"
	"fmt"
	"time"

	"tradepilot/internal/advisor"
	"tradepilot/internal/backtest"
	"tradepilot/internal/config"
	"tradepilot/internal/decision"
	"tradepilot/internal/engine"
	"tradepilot/internal/ledger"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/risk"
	"tradepilot/internal/scheduler"
	"tradepilot/internal/store"
	httpapi "tradepilot/internal/transport/http"
)

// Account is one independent pipeline instance: one advisory source backing
// its own cache namespace, ledger, engine and scheduler. Accounts share only
// the data feed; cross-account comparison is a reporting concern.
type Account struct {
	ID        string
	Cache     *decision.Cache
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler
}

// App owns every live pipeline plus the query surface.
type App struct {
	cfg      *config.Config
	store    *store.Store
	feed     market.Feed
	accounts map[string]*Account
	order    []string
	httpSrv  *httpapi.Server
	watcher  *config.Watcher
	cfgPath  string
}

func New(cfg *config.Config, cfgPath string) (*App, error) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	feed := buildFeed(cfg)
	app := &App{
		cfg:      cfg,
		store:    st,
		feed:     feed,
		accounts: make(map[string]*Account),
		cfgPath:  cfgPath,
	}

	limits := risk.Limits{
		MaxPositionPct:  cfg.Risk.MaxPositionPct,
		MaxExposurePct:  cfg.Risk.MaxExposurePct,
		MaxLeverage:     cfg.Risk.MaxLeverage,
		ConfidenceFloor: cfg.Risk.ConfidenceFloor,
	}
	instruments := cfg.Trading.NormalizedInstruments()

	for _, advCfg := range cfg.Advisors {
		if !advCfg.Enabled {
			continue
		}
		account, err := buildAccount(cfg, advCfg, limits, instruments, feed, st)
		if err != nil {
			app.closeAccounts()
			return nil, err
		}
		app.accounts[account.ID] = account
		app.order = append(app.order, account.ID)
	}
	if len(app.accounts) == 0 {
		return nil, fmt.Errorf("no enabled advisors configured")
	}

	httpSrv, err := httpapi.NewServer(cfg.App.HTTPAddr, app, st)
	if err != nil {
		return nil, err
	}
	app.httpSrv = httpSrv
	return app, nil
}

func buildFeed(cfg *config.Config) market.Feed {
	return market.NewBinanceFeed(market.BinanceConfig{
		RESTBaseURL: cfg.Trading.BinanceREST,
		Interval:    cfg.Trading.CandleInterval,
		CandleLimit: cfg.Trading.CandleLimit,
	})
}

func buildAccount(cfg *config.Config, advCfg config.AdvisorConfig, limits risk.Limits, instruments []string, feed market.Feed, st *store.Store) (*Account, error) {
	provider := advisor.NewOpenAIChatProvider(
		advCfg.ID, advCfg.APIURL, advCfg.APIKey, advCfg.Model, advCfg.Timeout())

	cache := decision.NewCache(cfg.Cache.TTL(), cfg.Cache.Sweep())
	dispatcher := decision.NewDispatcher(provider, cache, "live-"+advCfg.ID, cfg.Cache.TTL(), advCfg.Timeout())

	var recorder ledger.Recorder
	if st != nil {
		recorder = st.AccountRecorder(advCfg.ID)
	}
	gateway := ledger.NewPaperGateway(cfg.Trading.FeeRate)
	led := ledger.New(advCfg.ID, cfg.Trading.InitialBalanceUSD, gateway, recorder)

	eng := engine.New(led, limits, cfg.Risk.VaRConfidence, cfg.Trading.PeriodsPerYearHint)
	if st != nil {
		eng.SetDecisionSink(st)
	}

	sched, err := scheduler.New(scheduler.Params{
		AccountID:      advCfg.ID,
		Feed:           feed,
		Dispatcher:     dispatcher,
		Engine:         eng,
		Instruments:    instruments,
		Interval:       cfg.Trading.Interval(),
		TaskTimeout:    cfg.Trading.TaskTimeout(),
		StopGrace:      cfg.Trading.StopGrace(),
		MaxConcurrent:  cfg.Trading.MaxConcurrent,
		RunImmediately: cfg.Trading.RunImmediately,
	})
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", advCfg.ID, err)
	}
	return &Account{ID: advCfg.ID, Cache: cache, Engine: eng, Scheduler: sched}, nil
}

// AccountIDs implements httpapi.Accounts.
func (a *App) AccountIDs() []string {
	return append([]string(nil), a.order...)
}

// Engine implements httpapi.Accounts.
func (a *App) Engine(accountID string) (*engine.Engine, bool) {
	account, ok := a.accounts[accountID]
	if !ok {
		return nil, false
	}
	return account.Engine, true
}

// CacheStats implements httpapi.Accounts.
func (a *App) CacheStats(accountID string) (decision.CacheStats, bool) {
	account, ok := a.accounts[accountID]
	if !ok {
		return decision.CacheStats{}, false
	}
	return account.Cache.Stats(), true
}

// Run starts every account's scheduler and the query surface, then blocks
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.cfgPath != "" {
		watcher, err := config.Watch(a.cfgPath, func(instruments []string) {
			for _, account := range a.accounts {
				account.Scheduler.SetInstruments(instruments)
			}
		})
		if err != nil {
			logger.Warnf("app: config watch disabled: %v", err)
		} else {
			a.watcher = watcher
		}
	}

	for _, id := range a.order {
		a.accounts[id].Scheduler.Start(ctx)
	}
	a.httpSrv.Start()
	logger.Infof("app: running %d accounts on %d instruments",
		len(a.accounts), len(a.cfg.Trading.NormalizedInstruments()))

	<-ctx.Done()
	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	logger.Infof("app: shutting down")
	for _, id := range a.order {
		a.accounts[id].Scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("app: http shutdown: %v", err)
	}
	a.closeAccounts()
	if err := a.store.Close(); err != nil {
		logger.Warnf("app: store close: %v", err)
	}
}

func (a *App) closeAccounts() {
	for _, account := range a.accounts {
		account.Cache.Close()
	}
}

// RunBacktest replays the configured historical series through a dedicated
// account per enabled advisor, reusing the exact live pipeline components.
func RunBacktest(ctx context.Context, cfg *config.Config, providers map[string]advisor.Provider) (map[string]backtest.RunStats, error) {
	series, err := backtest.LoadCSV(cfg.Backtest.DataPath)
	if err != nil {
		return nil, err
	}
	balance := cfg.Backtest.Balance
	if balance <= 0 {
		balance = cfg.Trading.InitialBalanceUSD
	}
	limits := risk.Limits{
		MaxPositionPct:  cfg.Risk.MaxPositionPct,
		MaxExposurePct:  cfg.Risk.MaxExposurePct,
		MaxLeverage:     cfg.Risk.MaxLeverage,
		ConfidenceFloor: cfg.Risk.ConfidenceFloor,
	}

	results := make(map[string]backtest.RunStats, len(providers))
	for id, provider := range providers {
		runID := backtest.NewNamespace()
		cache := decision.NewCache(cfg.Cache.TTL(), 0)
		dispatcher := decision.NewDispatcher(provider, cache, runID, cfg.Cache.TTL(), time.Minute)

		led := ledger.New(id, balance, ledger.NewPaperGateway(cfg.Trading.FeeRate), nil)
		eng := engine.New(led, limits, cfg.Risk.VaRConfidence, cfg.Trading.PeriodsPerYearHint)

		runner := backtest.NewRunner(runID, dispatcher, eng)
		perf, err := runner.Run(ctx, series)
		cache.Close()
		if err != nil {
			return nil, fmt.Errorf("backtest for advisor %s: %w", id, err)
		}

		stats := backtest.BuildStats(runID, balance, perf, led.EquityCurve(), len(series))
		if cfg.Backtest.ReportPath != "" {
			if path, rerr := backtest.WriteReport(cfg.Backtest.ReportPath, stats, led.EquityCurve()); rerr != nil {
				logger.Warnf("backtest %s: report failed: %v", runID, rerr)
			} else {
				logger.Infof("backtest %s: report written to %s", runID, path)
			}
		}
		results[id] = stats
	}
	return results, nil
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"tradepilot/internal/decision"
	"tradepilot/internal/engine"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
)

// Dispatcher is the decision side of the pipeline; satisfied by
// decision.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, snapshot market.Snapshot) decision.Decision
}

// Scheduler drives per-instrument cycles on a fixed interval for one
// account. All state is explicit and instance-owned so live and backtest
// pipelines coexist in one process.
type Scheduler struct {
	accountID  string
	feed       market.Feed
	dispatcher Dispatcher
	engine     *engine.Engine

	interval       time.Duration
	taskTimeout    time.Duration
	stopGrace      time.Duration
	maxConcurrent  int64
	runImmediately bool

	mu          sync.Mutex
	instruments []string
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}

	// busy guards per-instrument ordering across cycles: cycle N+1 for an
	// instrument never starts while cycle N is still in flight for it.
	busy sync.Map // symbol -> *sync.Mutex

	cycles uint64
	nowFn  func() time.Time
}

type Params struct {
	AccountID      string
	Feed           market.Feed
	Dispatcher     Dispatcher
	Engine         *engine.Engine
	Instruments    []string
	Interval       time.Duration
	TaskTimeout    time.Duration
	StopGrace      time.Duration
	MaxConcurrent  int
	RunImmediately bool
}

func New(p Params) (*Scheduler, error) {
	if p.Feed == nil || p.Dispatcher == nil || p.Engine == nil {
		return nil, fmt.Errorf("scheduler: feed, dispatcher and engine are required")
	}
	if p.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive")
	}
	if len(p.Instruments) == 0 {
		return nil, fmt.Errorf("scheduler: at least one instrument required")
	}
	maxConcurrent := int64(p.MaxConcurrent)
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	taskTimeout := p.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = time.Minute
	}
	stopGrace := p.StopGrace
	if stopGrace <= 0 {
		stopGrace = 15 * time.Second
	}
	return &Scheduler{
		accountID:      p.AccountID,
		feed:           p.Feed,
		dispatcher:     p.Dispatcher,
		engine:         p.Engine,
		instruments:    append([]string(nil), p.Instruments...),
		interval:       p.Interval,
		taskTimeout:    taskTimeout,
		stopGrace:      stopGrace,
		maxConcurrent:  maxConcurrent,
		runImmediately: p.RunImmediately,
		nowFn:          time.Now,
	}, nil
}

// SetInstruments swaps the tracked instrument list; takes effect next cycle.
func (s *Scheduler) SetInstruments(symbols []string) {
	s.mu.Lock()
	s.instruments = append([]string(nil), symbols...)
	s.mu.Unlock()
	logger.Infof("scheduler %s: instruments updated to %v", s.accountID, symbols)
}

// Start launches the cycle loop in its own goroutine. Idempotent while
// running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(runCtx)
}

// Stop cancels the loop, letting in-flight instrument tasks finish within
// the grace period before their contexts are force-cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(s.stopGrace + s.interval):
		logger.Warnf("scheduler %s: loop did not stop within grace window", s.accountID)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	logger.Infof("scheduler %s: started interval=%s concurrency=%d", s.accountID, s.interval, s.maxConcurrent)

	if s.runImmediately {
		s.runCycle(ctx)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("scheduler %s: stopping after %d cycles", s.accountID, s.cycles)
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle processes every instrument concurrently, bounded by the worker
// pool. The cycle completes when all tasks finish or individually time out;
// a slow or failed instrument never blocks the rest.
func (s *Scheduler) runCycle(parent context.Context) {
	s.mu.Lock()
	symbols := append([]string(nil), s.instruments...)
	s.cycles++
	cycle := s.cycles
	s.mu.Unlock()

	start := s.nowFn()
	logger.Debugf("scheduler %s: cycle %d start (%d instruments)", s.accountID, cycle, len(symbols))

	// The cycle context outlives parent cancellation by the grace period so
	// in-flight tasks can land their ledger mutation before force-cancel.
	cycleCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-parent.Done():
			timer := time.NewTimer(s.stopGrace)
			defer timer.Stop()
			select {
			case <-timer.C:
				cancel()
			case <-cycleCtx.Done():
			}
		case <-cycleCtx.Done():
		}
	}()

	sem := semaphore.NewWeighted(s.maxConcurrent)
	g := new(errgroup.Group)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			if err := sem.Acquire(cycleCtx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)
			s.processInstrument(cycleCtx, symbol)
			return nil
		})
	}
	_ = g.Wait()
	logger.Debugf("scheduler %s: cycle %d done in %s", s.accountID, cycle, s.nowFn().Sub(start).Truncate(time.Millisecond))
}

// processInstrument runs one instrument's pipeline. Every failure mode is
// contained here: a panic or error is logged and treated as an implicit
// hold for this cycle, never crashing the loop.
func (s *Scheduler) processInstrument(ctx context.Context, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("scheduler %s: %s cycle panic (implicit hold): %v", s.accountID, symbol, r)
		}
	}()

	guard := s.instrumentGuard(symbol)
	if !guard.TryLock() {
		logger.Warnf("scheduler %s: %s previous cycle still running, skipping", s.accountID, symbol)
		return
	}
	defer guard.Unlock()

	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	snapshot, err := s.feed.Snapshot(taskCtx, symbol)
	if err != nil {
		logger.Warnf("scheduler %s: %s snapshot failed (implicit hold): %v", s.accountID, symbol, err)
		return
	}

	d := s.dispatcher.Dispatch(taskCtx, snapshot)
	res, err := s.engine.Execute(taskCtx, d, snapshot.Price, s.nowFn().UTC())
	if err != nil {
		logger.Errorf("scheduler %s: %s execution failed, instrument skipped this cycle: %v", s.accountID, symbol, err)
		return
	}
	if res.Triggered != nil {
		logger.Infof("scheduler %s: %s %s exit pnl=%s", s.accountID, symbol, res.Triggered.ExitReason, res.Triggered.RealizedPnL)
	}
	logger.Debugf("scheduler %s: %s action=%s approved=%v size=%.2f%%",
		s.accountID, symbol, d.Action, res.Verdict.Approved, res.Verdict.SizePct)
}

func (s *Scheduler) instrumentGuard(symbol string) *sync.Mutex {
	val, _ := s.busy.LoadOrStore(symbol, &sync.Mutex{})
	return val.(*sync.Mutex)
}

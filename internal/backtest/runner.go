package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradepilot/internal/decision"
	"tradepilot/internal/engine"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/risk"
)

// OrderingError is fatal for the whole backtest run: snapshots must arrive
// in non-decreasing time globally and strictly increasing time per symbol,
// no look-ahead. Symbols sharing a bar timestamp are fine; the same symbol
// appearing twice at one timestamp is not.
type OrderingError struct {
	Index  int
	Symbol string
	Prev   time.Time
	Cur    time.Time
}

func (e *OrderingError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("backtest: snapshot %d out of order for %s: %s after %s",
			e.Index, e.Symbol, e.Cur.Format(time.RFC3339Nano), e.Prev.Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("backtest: snapshot %d out of order: %s after %s",
		e.Index, e.Cur.Format(time.RFC3339Nano), e.Prev.Format(time.RFC3339Nano))
}

// Runner replays an ordered historical series through the identical
// dispatcher -> risk -> ledger pipeline the live scheduler drives.
// Single-threaded by contract: determinism over throughput.
type Runner struct {
	runID      string
	dispatcher *decision.Dispatcher
	engine     *engine.Engine
}

// NewRunner wires a backtest around an engine and an advisory dispatcher.
// The dispatcher's cache namespace must be the run ID so replay never
// collides with a live run's entries; NewNamespace supplies one.
func NewRunner(runID string, dispatcher *decision.Dispatcher, eng *engine.Engine) *Runner {
	return &Runner{runID: runID, dispatcher: dispatcher, engine: eng}
}

// NewNamespace returns a fresh cache namespace for one backtest run.
func NewNamespace() string {
	return "backtest-" + uuid.NewString()
}

func (r *Runner) RunID() string { return r.runID }

// Run processes snapshots in order and returns the resulting performance
// snapshot. Bar-aligned series interleave multiple symbols at one timestamp;
// time must never go backwards, and each symbol sees strictly increasing
// timestamps. The first ordering violation aborts the whole run.
func (r *Runner) Run(ctx context.Context, series []market.Snapshot) (risk.PerformanceSnapshot, error) {
	var last time.Time
	lastBySymbol := make(map[string]time.Time)
	for i, snap := range series {
		if err := ctx.Err(); err != nil {
			return risk.PerformanceSnapshot{}, err
		}
		if i > 0 && snap.At.Before(last) {
			return risk.PerformanceSnapshot{}, &OrderingError{Index: i, Prev: last, Cur: snap.At}
		}
		if prev, ok := lastBySymbol[snap.Symbol]; ok && !snap.At.After(prev) {
			return risk.PerformanceSnapshot{}, &OrderingError{Index: i, Symbol: snap.Symbol, Prev: prev, Cur: snap.At}
		}
		last = snap.At
		lastBySymbol[snap.Symbol] = snap.At

		d := r.dispatcher.Dispatch(ctx, snap)
		if _, err := r.engine.Execute(ctx, d, snap.Price, snap.At); err != nil {
			// Ledger errors are contained per snapshot, like the live
			// scheduler contains them per instrument cycle.
			logger.Warnf("backtest %s: snapshot %d (%s) skipped: %v", r.runID, i, snap.Symbol, err)
		}
	}
	perf := r.engine.Performance()
	logger.Infof("backtest %s: done snapshots=%d trades=%d pnl=%.2f maxdd=%.2f%%",
		r.runID, len(series), perf.Trades, perf.TotalPnL, perf.MaxDrawdown*100)
	return perf, nil
}

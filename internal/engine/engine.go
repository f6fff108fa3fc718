package engine

import (
	"context"
	"sync"
	"time"

	"tradepilot/internal/decision"
	"tradepilot/internal/ledger"
	"tradepilot/internal/logger"
	"tradepilot/internal/risk"
)

// Engine owns the evaluate+apply critical section for one account. Risk
// evaluation needs a consistent whole-ledger read and the subsequent ledger
// mutation must see the same state, so both run under one lock: two
// concurrently processed instruments can never jointly exceed the aggregate
// exposure cap.
type Engine struct {
	mu        sync.Mutex
	ledger    *ledger.Ledger
	limits    risk.Limits
	varConf   float64
	periodsPY float64
	sink      DecisionSink
}

// DecisionSink receives every evaluated decision for audit. Best-effort:
// sink errors are logged, never surfaced.
type DecisionSink interface {
	LogDecision(accountID string, d decision.Decision, verdict risk.Verdict) error
}

func New(led *ledger.Ledger, limits risk.Limits, varConfidence, periodsPerYear float64) *Engine {
	if varConfidence <= 0 {
		varConfidence = 0.05
	}
	if periodsPerYear <= 0 {
		periodsPerYear = 365
	}
	return &Engine{ledger: led, limits: limits, varConf: varConfidence, periodsPY: periodsPerYear}
}

// SetDecisionSink attaches an audit sink; call before Start, not after.
func (e *Engine) SetDecisionSink(sink DecisionSink) {
	e.sink = sink
}

// CycleResult reports what one instrument's cycle did.
type CycleResult struct {
	Symbol    string
	Decision  decision.Decision
	Verdict   risk.Verdict
	Execution ledger.ExecutionResult
	Triggered *ledger.Trade
}

// Execute runs one instrument's cycle tail: trigger check against the latest
// price, then risk evaluation, then ledger application. Atomic with respect
// to other instruments of the same account.
func (e *Engine) Execute(ctx context.Context, d decision.Decision, price float64, now time.Time) (CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := CycleResult{Symbol: d.Symbol, Decision: d}

	// Stop/target breaches are polled at cycle boundaries only.
	triggered, err := e.ledger.CheckTriggers(ctx, d.Symbol, price, now)
	if err != nil {
		return res, err
	}
	res.Triggered = triggered

	res.Verdict = risk.Evaluate(d, e.ledger, e.limits)
	if e.sink != nil {
		if err := e.sink.LogDecision(e.ledger.AccountID(), d, res.Verdict); err != nil {
			logger.Warnf("engine %s: decision log failed: %v", e.ledger.AccountID(), err)
		}
	}
	if !res.Verdict.Approved {
		logger.Infof("engine %s: %s %s rejected: %s", e.ledger.AccountID(), d.Symbol, d.Action, res.Verdict.Reason)
		// A rejected decision still marks the equity curve for this cycle.
		held := decision.Hold(d.Symbol, d.Source, res.Verdict.Reason, now)
		exec, applyErr := e.ledger.Apply(ctx, held, 0, price, now)
		if applyErr != nil {
			return res, applyErr
		}
		res.Execution = exec
		return res, nil
	}

	exec, err := e.ledger.Apply(ctx, d, res.Verdict.SizePct, price, now)
	if err != nil {
		return res, err
	}
	res.Execution = exec
	return res, nil
}

// Ledger exposes the account ledger for read-only query surfaces.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Performance derives the account's performance snapshot on demand.
func (e *Engine) Performance() risk.PerformanceSnapshot {
	return risk.Performance(e.ledger.Trades(), e.ledger.EquityCurve(), e.varConf, e.periodsPY)
}

package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradepilot/internal/decision"
)

// Limits are read-only per cycle. Fractions are of total account equity.
type Limits struct {
	MaxPositionPct  float64
	MaxExposurePct  float64
	MaxLeverage     float64
	ConfidenceFloor int
}

// View is the consistent whole-ledger read the evaluator needs. The caller
// must hold the evaluate+apply critical section while using it.
type View interface {
	Equity() decimal.Decimal
	TotalOpenNotional() decimal.Decimal
	HasPosition(symbol string) bool
}

// Verdict is the outcome of evaluating one decision. A rejection is a normal
// outcome, never an error.
type Verdict struct {
	Approved bool
	SizePct  float64
	Reason   string
}

func approve(sizePct float64, reason string) Verdict {
	return Verdict{Approved: true, SizePct: sizePct, Reason: reason}
}

func reject(reason string) Verdict {
	return Verdict{Approved: false, Reason: reason}
}

// Evaluate applies hard rejects (malformed decision, confidence floor) and
// soft size clipping (per-instrument and aggregate exposure caps) to a
// decision. Directionally valid signals are resized, not discarded.
func Evaluate(d decision.Decision, view View, limits Limits) Verdict {
	if err := decision.Validate(&d); err != nil {
		return reject(fmt.Sprintf("invalid decision: %v", err))
	}
	switch d.Action {
	case decision.ActionHold:
		return approve(0, "hold")
	case decision.ActionExit:
		if !view.HasPosition(d.Symbol) {
			return reject("exit with no open position")
		}
		return approve(0, "exit approved")
	}

	// Entry path.
	if d.Confidence < limits.ConfidenceFloor {
		return reject(fmt.Sprintf("confidence %d below floor %d", d.Confidence, limits.ConfidenceFloor))
	}
	if view.HasPosition(d.Symbol) {
		return reject("position already open")
	}
	if limits.MaxLeverage > 0 && d.Leverage > limits.MaxLeverage {
		return reject(fmt.Sprintf("leverage %.1fx above limit %.1fx", d.Leverage, limits.MaxLeverage))
	}

	equity, _ := view.Equity().Float64()
	if equity <= 0 {
		return reject("no equity available")
	}

	requested := d.SizePct / 100
	clipped := requested
	reason := "approved"

	if limits.MaxPositionPct > 0 && clipped > limits.MaxPositionPct {
		clipped = limits.MaxPositionPct
		reason = fmt.Sprintf("size clipped to per-instrument cap %.0f%%", limits.MaxPositionPct*100)
	}

	if limits.MaxExposurePct > 0 {
		open, _ := view.TotalOpenNotional().Float64()
		headroom := limits.MaxExposurePct - open/equity
		if headroom <= 0 {
			return reject(fmt.Sprintf("aggregate exposure cap %.0f%% exhausted", limits.MaxExposurePct*100))
		}
		if clipped > headroom {
			clipped = headroom
			reason = fmt.Sprintf("size clipped to aggregate headroom %.2f%%", headroom*100)
		}
	}

	if clipped <= 0 {
		return reject("no permissible size")
	}
	return approve(clipped*100, reason)
}

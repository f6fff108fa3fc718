package risk

import (
	"math"
	"sort"

	"tradepilot/internal/ledger"
)

// PeriodReturns derives simple per-period returns from an equity curve.
func PeriodReturns(curve []ledger.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev, _ := curve[i-1].Equity.Float64()
		cur, _ := curve[i].Equity.Float64()
		if prev == 0 {
			continue
		}
		out = append(out, (cur-prev)/prev)
	}
	return out
}

// VaR returns the confidence-th percentile of the period-return distribution
// (linear interpolation between order statistics). For confidence=0.05 this
// is the loss level only 5% of periods fall below, typically negative.
func VaR(returns []float64, confidence float64) float64 {
	n := len(returns)
	if n == 0 {
		return 0
	}
	if confidence <= 0 {
		confidence = 0.05
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	rank := confidence * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Sharpe is mean(returns)/stdev(returns), annualized by sqrt(periodsPerYear).
// Zero when the series is empty or flat.
func Sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	if periodsPerYear <= 0 {
		periodsPerYear = 365
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// MaxDrawdown is the largest peak-to-trough equity decline as a fraction of
// the running peak.
func MaxDrawdown(curve []ledger.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	peak, _ := curve[0].Equity.Float64()
	maxDD := 0.0
	for _, p := range curve {
		eq, _ := p.Equity.Float64()
		if eq > peak {
			peak = eq
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - eq) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// PerformanceSnapshot is derived on demand from the ledger. Never a source
// of truth; always recomputable.
type PerformanceSnapshot struct {
	TotalPnL    float64 `json:"total_pnl"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Sharpe      float64 `json:"sharpe"`
	VaR         float64 `json:"var"`
	Trades      int     `json:"trades"`
}

// Performance folds trades and the equity curve into a snapshot.
func Performance(trades []ledger.Trade, curve []ledger.EquityPoint, varConfidence, periodsPerYear float64) PerformanceSnapshot {
	total := 0.0
	wins := 0
	for _, t := range trades {
		pnl, _ := t.RealizedPnL.Float64()
		total += pnl
		if pnl > 0 {
			wins++
		}
	}
	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades))
	}
	returns := PeriodReturns(curve)
	return PerformanceSnapshot{
		TotalPnL:    total,
		WinRate:     winRate,
		MaxDrawdown: MaxDrawdown(curve),
		Sharpe:      Sharpe(returns, periodsPerYear),
		VaR:         VaR(returns, varConfidence),
		Trades:      len(trades),
	}
}

package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"tradepilot/internal/ledger"
	"tradepilot/internal/risk"
)

// RunStats summarizes a finished run for reporting and storage.
type RunStats struct {
	RunID          string    `json:"run_id"`
	InitialBalance float64   `json:"initial_balance"`
	FinalBalance   float64   `json:"final_balance"`
	Profit         float64   `json:"profit"`
	ReturnPct      float64   `json:"return_pct"`
	WinRate        float64   `json:"win_rate"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	Sharpe         float64   `json:"sharpe"`
	VaR            float64   `json:"var"`
	Trades         int       `json:"trades"`
	Snapshots      int       `json:"snapshots"`
	FinishedAt     time.Time `json:"finished_at"`
}

// BuildStats folds the performance snapshot and the equity curve into stats.
func BuildStats(runID string, initialBalance float64, perf risk.PerformanceSnapshot, curve []ledger.EquityPoint, snapshots int) RunStats {
	final := initialBalance
	if n := len(curve); n > 0 {
		final, _ = curve[n-1].Equity.Float64()
	}
	returnPct := 0.0
	if initialBalance > 0 {
		returnPct = (final - initialBalance) / initialBalance * 100
	}
	return RunStats{
		RunID:          runID,
		InitialBalance: initialBalance,
		FinalBalance:   final,
		Profit:         final - initialBalance,
		ReturnPct:      returnPct,
		WinRate:        perf.WinRate,
		MaxDrawdownPct: perf.MaxDrawdown * 100,
		Sharpe:         perf.Sharpe,
		VaR:            perf.VaR,
		Trades:         perf.Trades,
		Snapshots:      snapshots,
		FinishedAt:     time.Now().UTC(),
	}
}

// WriteReport renders the equity curve and drawdown as a standalone HTML
// page under dir and returns the file path.
func WriteReport(dir string, stats RunStats, curve []ledger.EquityPoint) (string, error) {
	if len(curve) == 0 {
		return "", fmt.Errorf("backtest report: empty equity curve")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	xAxis := make([]string, 0, len(curve))
	equitySeries := make([]opts.LineData, 0, len(curve))
	drawdownSeries := make([]opts.LineData, 0, len(curve))
	peak := 0.0
	for _, p := range curve {
		eq, _ := p.Equity.Float64()
		if eq > peak {
			peak = eq
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - eq) / peak * 100
		}
		xAxis = append(xAxis, p.At.UTC().Format("2006-01-02 15:04"))
		equitySeries = append(equitySeries, opts.LineData{Value: eq})
		drawdownSeries = append(drawdownSeries, opts.LineData{Value: dd})
	}

	equity := charts.NewLine()
	equity.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Equity (run %s)", stats.RunID),
			Subtitle: fmt.Sprintf("return %.2f%%, %d trades, win rate %.0f%%", stats.ReturnPct, stats.Trades, stats.WinRate*100),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	equity.SetXAxis(xAxis).AddSeries("equity", equitySeries,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	drawdown := charts.NewLine()
	drawdown.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Drawdown %",
			Subtitle: fmt.Sprintf("max %.2f%%", stats.MaxDrawdownPct),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	drawdown.SetXAxis(xAxis).AddSeries("drawdown", drawdownSeries,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	page := components.NewPage()
	page.AddCharts(equity, drawdown)

	path := filepath.Join(dir, fmt.Sprintf("report-%s.html", stats.RunID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", err
	}
	return path, nil
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/decision"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func longEntry(symbol string) decision.Decision {
	return decision.Decision{
		ID:         "d-entry",
		Symbol:     symbol,
		Action:     decision.ActionEnterLong,
		Confidence: 80,
		EntryPrice: 100,
		StopLoss:   90,
		TakeProfit: 120,
		SizePct:    10,
	}
}

func newLedger(cash float64, feeRate float64) *Ledger {
	return New("acct", cash, NewPaperGateway(feeRate), nil)
}

func TestEnterLongReservesNotional(t *testing.T) {
	l := newLedger(10000, 0)

	res, err := l.Apply(context.Background(), longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)
	require.Equal(t, ResultOpened, res.Kind)

	pos, ok := l.OpenPosition("BTCUSDT")
	require.True(t, ok)
	// equity 10000 at 10% -> 1000 notional, 10 units at price 100.
	assert.True(t, pos.Notional.Equal(decimal.NewFromInt(1000)), "notional=%s", pos.Notional)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(10)), "quantity=%s", pos.Quantity)
	assert.True(t, l.Cash().Equal(decimal.NewFromInt(9000)))
	assert.True(t, l.Equity().Equal(decimal.NewFromInt(10000)), "entry itself realizes nothing")
	assert.NoError(t, l.Reconcile())
}

func TestRoundTripPnLWithFees(t *testing.T) {
	l := newLedger(10000, 0.001)
	ctx := context.Background()

	_, err := l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)

	exit := decision.Decision{ID: "d-exit", Symbol: "BTCUSDT", Action: decision.ActionExit}
	res, err := l.Apply(ctx, exit, 0, 110, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, ResultClosed, res.Kind)
	require.NotNil(t, res.Trade)

	// gross = (110-100)*10 = 100; entry fee 1, exit fee 1.1.
	wantPnL := decimal.NewFromFloat(97.9)
	assert.True(t, res.Trade.RealizedPnL.Equal(wantPnL), "pnl=%s", res.Trade.RealizedPnL)
	assert.Equal(t, ExitReasonDecision, res.Trade.ExitReason)

	// cash = 10000 - 1000 - 1 + 1000 + 100 - 1.1
	wantCash := decimal.NewFromFloat(10097.9)
	assert.True(t, l.Cash().Equal(wantCash), "cash=%s", l.Cash())
	assert.False(t, l.HasPosition("BTCUSDT"))
	assert.NoError(t, l.Reconcile())
}

func TestShortRoundTrip(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	short := decision.Decision{
		ID: "d-short", Symbol: "ETHUSDT", Action: decision.ActionEnterShort,
		Confidence: 80, EntryPrice: 200, StopLoss: 220, TakeProfit: 150, SizePct: 20,
	}
	_, err := l.Apply(ctx, short, 20, 200, t0)
	require.NoError(t, err)

	exit := decision.Decision{ID: "d-exit", Symbol: "ETHUSDT", Action: decision.ActionExit}
	res, err := l.Apply(ctx, exit, 0, 180, t0.Add(time.Hour))
	require.NoError(t, err)

	// 2000 notional at 200 -> 10 units; (180-200)*10*(-1) = +200.
	assert.True(t, res.Trade.RealizedPnL.Equal(decimal.NewFromInt(200)), "pnl=%s", res.Trade.RealizedPnL)
	assert.True(t, l.Cash().Equal(decimal.NewFromInt(10200)))
	assert.NoError(t, l.Reconcile())
}

func TestDoubleEntryFails(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	_, err := l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)

	_, err = l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0.Add(time.Minute))
	assert.ErrorIs(t, err, ErrNotFlat)

	// The failed entry must not corrupt state.
	assert.NoError(t, l.Reconcile())
	assert.Len(t, l.OpenPositions(), 1)
}

func TestExitWithoutPositionFails(t *testing.T) {
	l := newLedger(10000, 0)
	exit := decision.Decision{Symbol: "BTCUSDT", Action: decision.ActionExit}
	_, err := l.Apply(context.Background(), exit, 0, 100, t0)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestHoldMarksEquity(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	_, err := l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)

	hold := decision.Hold("BTCUSDT", "test", "no change", t0.Add(time.Hour))
	res, err := l.Apply(ctx, hold, 0, 105, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ResultHeld, res.Kind)

	// 10 units marked +5 each.
	assert.True(t, res.Equity.Equal(decimal.NewFromInt(10050)), "equity=%s", res.Equity)

	curve := l.EquityCurve()
	require.Len(t, curve, 2)
	assert.True(t, curve[1].At.After(curve[0].At))
}

func TestEquityCurveStaysStrictlyOrdered(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	hold := decision.Hold("BTCUSDT", "test", "", t0)
	_, err := l.Apply(ctx, hold, 0, 100, t0)
	require.NoError(t, err)
	_, err = l.Apply(ctx, hold, 0, 100, t0) // same timestamp
	require.NoError(t, err)
	_, err = l.Apply(ctx, hold, 0, 100, t0.Add(-time.Minute)) // going backwards
	require.NoError(t, err)

	assert.Len(t, l.EquityCurve(), 1)
}

func TestEquityCurveTieRevisesInPlace(t *testing.T) {
	// Two instruments marked at the same bar timestamp: the second mark must
	// not be lost, it replaces the point's equity value.
	l := newLedger(10000, 0)
	ctx := context.Background()

	_, err := l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)

	hold := decision.Hold("BTCUSDT", "test", "", t0.Add(time.Hour))
	_, err = l.Apply(ctx, hold, 0, 105, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = l.Apply(ctx, hold, 0, 110, t0.Add(time.Hour)) // same bar, later mark
	require.NoError(t, err)

	curve := l.EquityCurve()
	require.Len(t, curve, 2)
	assert.True(t, curve[1].Equity.Equal(decimal.NewFromInt(10100)),
		"tie keeps the latest mark, got %s", curve[1].Equity)
}

func TestStopLossTrigger(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	_, err := l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)

	// Above the stop: nothing fires.
	trade, err := l.CheckTriggers(ctx, "BTCUSDT", 95, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, trade)

	// At the stop: position closes.
	trade, err = l.CheckTriggers(ctx, "BTCUSDT", 90, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, ExitReasonStop, trade.ExitReason)
	assert.True(t, trade.RealizedPnL.Equal(decimal.NewFromInt(-100)), "pnl=%s", trade.RealizedPnL)
	assert.False(t, l.HasPosition("BTCUSDT"))
	assert.NoError(t, l.Reconcile())
}

func TestTakeProfitTrigger(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	_, err := l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)

	trade, err := l.CheckTriggers(ctx, "BTCUSDT", 121, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, ExitReasonTarget, trade.ExitReason)
	assert.True(t, trade.RealizedPnL.Equal(decimal.NewFromInt(210)), "closes at the observed price, not the target")
}

func TestShortStopTrigger(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	short := decision.Decision{
		ID: "d-short", Symbol: "ETHUSDT", Action: decision.ActionEnterShort,
		Confidence: 80, EntryPrice: 200, StopLoss: 220, TakeProfit: 150, SizePct: 10,
	}
	_, err := l.Apply(ctx, short, 10, 200, t0)
	require.NoError(t, err)

	trade, err := l.CheckTriggers(ctx, "ETHUSDT", 225, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, ExitReasonStop, trade.ExitReason)
	assert.True(t, trade.RealizedPnL.LessThan(decimal.Zero))
}

func TestNotionalClampedToCash(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	// First entry leaves 9000 cash but equity stays 10000, so a later 95%
	// request would ask for 9500. Cash is the hard floor.
	_, err := l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)

	eth := longEntry("ETHUSDT")
	eth.Symbol = "ETHUSDT"
	eth.SizePct = 95
	_, err = l.Apply(ctx, eth, 95, 50, t0.Add(time.Minute))
	require.NoError(t, err)

	pos, _ := l.OpenPosition("ETHUSDT")
	assert.True(t, pos.Notional.Equal(decimal.NewFromInt(9000)), "notional=%s", pos.Notional)
	assert.True(t, l.Cash().IsZero(), "cash=%s", l.Cash())
	assert.NoError(t, l.Reconcile())
}

type failingGateway struct{}

func (failingGateway) Submit(context.Context, Order) (Fill, error) {
	return Fill{}, errors.New("exchange unavailable")
}

func TestGatewayFailureLeavesLedgerUntouched(t *testing.T) {
	l := New("acct", 10000, failingGateway{}, nil)

	_, err := l.Apply(context.Background(), longEntry("BTCUSDT"), 10, 100, t0)
	require.Error(t, err)
	assert.True(t, l.Cash().Equal(decimal.NewFromInt(10000)))
	assert.False(t, l.HasPosition("BTCUSDT"))
	assert.Empty(t, l.Trades())
}

func TestTotalOpenNotionalAcrossSymbols(t *testing.T) {
	l := newLedger(10000, 0)
	ctx := context.Background()

	_, err := l.Apply(ctx, longEntry("BTCUSDT"), 10, 100, t0)
	require.NoError(t, err)

	eth := longEntry("ETHUSDT")
	eth.Symbol = "ETHUSDT"
	_, err = l.Apply(ctx, eth, 20, 50, t0.Add(time.Minute))
	require.NoError(t, err)

	// Second entry sizes off current equity (still 10000): 1000 + 2000.
	assert.True(t, l.TotalOpenNotional().Equal(decimal.NewFromInt(3000)),
		"total=%s", l.TotalOpenNotional())
	assert.NoError(t, l.Reconcile())
}

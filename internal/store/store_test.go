package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/decision"
	"tradepilot/internal/ledger"
	"tradepilot/internal/risk"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTrade(id string) ledger.Trade {
	return ledger.Trade{
		ID:          id,
		Symbol:      "BTCUSDT",
		Side:        ledger.SideLong,
		Quantity:    decimal.NewFromInt(10),
		Notional:    decimal.NewFromInt(1000),
		EntryPrice:  decimal.NewFromInt(100),
		ExitPrice:   decimal.NewFromInt(110),
		RealizedPnL: decimal.NewFromInt(100),
		Fees:        decimal.NewFromFloat(2.1),
		OpenedAt:    time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		ClosedAt:    time.Date(2026, 1, 10, 13, 0, 0, 0, time.UTC),
		DecisionID:  "d1",
		ExitReason:  ledger.ExitReasonDecision,
	}
}

func TestRecordTradeIdempotent(t *testing.T) {
	s := newTestStore(t)
	rec := s.AccountRecorder("acct-a")

	require.NoError(t, rec.RecordTrade(sampleTrade("t1")))
	require.NoError(t, rec.RecordTrade(sampleTrade("t1")), "replay must be a no-op")

	var count int64
	require.NoError(t, s.db.Model(&TradeModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPositionUpsertAndClear(t *testing.T) {
	s := newTestStore(t)
	rec := s.AccountRecorder("acct-a")

	pos := ledger.Position{
		Symbol:     "BTCUSDT",
		Side:       ledger.SideLong,
		Quantity:   decimal.NewFromInt(10),
		Notional:   decimal.NewFromInt(1000),
		EntryPrice: decimal.NewFromInt(100),
		StopLoss:   decimal.NewFromInt(90),
		TakeProfit: decimal.NewFromInt(120),
		OpenedAt:   time.Now().UTC(),
	}
	require.NoError(t, rec.UpsertPosition("acct-a", pos))

	pos.StopLoss = decimal.NewFromInt(95)
	require.NoError(t, rec.UpsertPosition("acct-a", pos))

	var rows []PositionModel
	require.NoError(t, s.db.Find(&rows).Error)
	require.Len(t, rows, 1, "same account+symbol upserts in place")
	assert.Equal(t, "95", rows[0].StopLoss)

	require.NoError(t, rec.ClearPosition("acct-a", "BTCUSDT"))
	require.NoError(t, s.db.Find(&rows).Error)
	assert.Empty(t, rows)
}

func TestDecisionLogRoundTrip(t *testing.T) {
	s := newTestStore(t)

	d := decision.Decision{
		ID:         "d1",
		Symbol:     "BTCUSDT",
		Action:     decision.ActionEnterLong,
		Confidence: 80,
		EntryPrice: 100,
		SizePct:    10,
		Source:     "deepseek",
		DecidedAt:  time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	verdict := risk.Verdict{Approved: true, SizePct: 10, Reason: "approved"}
	require.NoError(t, s.LogDecision("acct-a", d, verdict))

	older := d
	older.ID = "d0"
	older.DecidedAt = d.DecidedAt.Add(-time.Hour)
	require.NoError(t, s.LogDecision("acct-a", older, verdict))
	require.NoError(t, s.LogDecision("acct-b", d, verdict))

	rows, err := s.RecentDecisions("acct-a", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "d1", rows[0].DecisionID, "newest first")
	assert.True(t, rows[0].Approved)
	assert.Contains(t, string(rows[0].Payload), `"enter_long"`)
}

func TestEquitySince(t *testing.T) {
	s := newTestStore(t)
	rec := s.AccountRecorder("acct-a")

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.RecordEquity("acct-a", ledger.EquityPoint{
			At:     base.Add(time.Duration(i) * time.Hour),
			Equity: decimal.NewFromInt(int64(10000 + i*10)),
		}))
	}

	rows, err := s.EquitySince("acct-a", base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "10010", rows[0].Equity)
}

func TestStoreRejectsEmptyPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/decision"
	"tradepilot/internal/engine"
	"tradepilot/internal/ledger"
	"tradepilot/internal/market"
	"tradepilot/internal/risk"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type stubFeed struct {
	mu    sync.Mutex
	fail  map[string]bool
	panic map[string]bool
	calls map[string]int
}

func newStubFeed() *stubFeed {
	return &stubFeed{
		fail:  make(map[string]bool),
		panic: make(map[string]bool),
		calls: make(map[string]int),
	}
}

func (f *stubFeed) Snapshot(_ context.Context, symbol string) (market.Snapshot, error) {
	f.mu.Lock()
	f.calls[symbol]++
	calls := f.calls[symbol]
	f.mu.Unlock()
	if f.panic[symbol] {
		panic("feed exploded")
	}
	if f.fail[symbol] {
		return market.Snapshot{}, errors.New("feed unavailable")
	}
	return market.Snapshot{
		Symbol:   symbol,
		Price:    100,
		At:       t0.Add(time.Duration(calls) * time.Minute),
		Features: map[string]float64{"close": 100, "seq": float64(calls)},
	}, nil
}

func (f *stubFeed) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

type stubDispatcher struct {
	mu      sync.Mutex
	decided []string
	block   chan struct{}
}

func (d *stubDispatcher) Dispatch(_ context.Context, snap market.Snapshot) decision.Decision {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	d.decided = append(d.decided, snap.Symbol)
	d.mu.Unlock()
	return decision.Hold(snap.Symbol, "stub", "test", snap.At)
}

func (d *stubDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.decided)
}

func testEngine() *engine.Engine {
	led := ledger.New("acct", 10000, ledger.NewPaperGateway(0), nil)
	return engine.New(led, risk.Limits{
		MaxPositionPct: 0.20, MaxExposurePct: 0.80, MaxLeverage: 10, ConfidenceFloor: 30,
	}, 0.05, 365)
}

func newTestScheduler(t *testing.T, feed market.Feed, dsp Dispatcher, instruments ...string) *Scheduler {
	t.Helper()
	s, err := New(Params{
		AccountID:   "acct",
		Feed:        feed,
		Dispatcher:  dsp,
		Engine:      testEngine(),
		Instruments: instruments,
		Interval:    time.Hour, // cycles driven manually in tests
		TaskTimeout: time.Second,
		StopGrace:   50 * time.Millisecond,
	})
	require.NoError(t, err)
	return s
}

func TestNewValidatesParams(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)

	_, err = New(Params{
		Feed: newStubFeed(), Dispatcher: &stubDispatcher{}, Engine: testEngine(),
		Instruments: []string{"BTCUSDT"},
	})
	assert.Error(t, err, "zero interval rejected")

	_, err = New(Params{
		Feed: newStubFeed(), Dispatcher: &stubDispatcher{}, Engine: testEngine(),
		Interval: time.Minute,
	})
	assert.Error(t, err, "empty instrument list rejected")
}

func TestRunCycleProcessesAllInstruments(t *testing.T) {
	feed := newStubFeed()
	dsp := &stubDispatcher{}
	s := newTestScheduler(t, feed, dsp, "BTCUSDT", "ETHUSDT", "SOLUSDT")

	s.runCycle(context.Background())

	assert.Equal(t, 3, dsp.count())
	assert.Equal(t, 1, feed.callCount("BTCUSDT"))
	assert.Equal(t, 1, feed.callCount("ETHUSDT"))
	assert.Equal(t, 1, feed.callCount("SOLUSDT"))
}

func TestFeedFailureIsolatedPerInstrument(t *testing.T) {
	feed := newStubFeed()
	feed.fail["ETHUSDT"] = true
	dsp := &stubDispatcher{}
	s := newTestScheduler(t, feed, dsp, "BTCUSDT", "ETHUSDT", "SOLUSDT")

	s.runCycle(context.Background())

	// The failing instrument is an implicit hold; the others still decide.
	assert.Equal(t, 2, dsp.count())
}

func TestPanicContainedPerInstrument(t *testing.T) {
	feed := newStubFeed()
	feed.panic["BTCUSDT"] = true
	dsp := &stubDispatcher{}
	s := newTestScheduler(t, feed, dsp, "BTCUSDT", "ETHUSDT")

	assert.NotPanics(t, func() { s.runCycle(context.Background()) })
	assert.Equal(t, 1, dsp.count())
}

func TestSlowInstrumentSkippedNextCycle(t *testing.T) {
	feed := newStubFeed()
	dsp := &stubDispatcher{block: make(chan struct{})}
	s := newTestScheduler(t, feed, dsp, "BTCUSDT")

	first := make(chan struct{})
	go func() {
		s.runCycle(context.Background())
		close(first)
	}()

	// Wait until the first cycle holds the instrument guard.
	require.Eventually(t, func() bool { return feed.callCount("BTCUSDT") == 1 },
		time.Second, 5*time.Millisecond)

	// Second cycle must skip the busy instrument instead of queueing behind it.
	s.runCycle(context.Background())
	assert.Equal(t, 0, dsp.count())

	close(dsp.block)
	<-first
	assert.Equal(t, 1, dsp.count())
}

func TestSetInstrumentsTakesEffectNextCycle(t *testing.T) {
	feed := newStubFeed()
	dsp := &stubDispatcher{}
	s := newTestScheduler(t, feed, dsp, "BTCUSDT")

	s.runCycle(context.Background())
	s.SetInstruments([]string{"ETHUSDT"})
	s.runCycle(context.Background())

	assert.Equal(t, 1, feed.callCount("BTCUSDT"))
	assert.Equal(t, 1, feed.callCount("ETHUSDT"))
}

func TestStartStop(t *testing.T) {
	feed := newStubFeed()
	dsp := &stubDispatcher{}
	s, err := New(Params{
		AccountID:      "acct",
		Feed:           feed,
		Dispatcher:     dsp,
		Engine:         testEngine(),
		Instruments:    []string{"BTCUSDT"},
		Interval:       10 * time.Millisecond,
		TaskTimeout:    time.Second,
		StopGrace:      50 * time.Millisecond,
		RunImmediately: true,
	})
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return dsp.count() >= 2 },
		2*time.Second, 5*time.Millisecond)
	s.Stop()

	settled := dsp.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, dsp.count(), "no cycles after Stop returns")
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradepilot/internal/decision"
	"tradepilot/internal/logger"
)

var (
	// ErrNotFlat means an entry was applied while a position is already
	// open. A ledger invariant violation, fatal for that instrument's cycle.
	ErrNotFlat = errors.New("ledger: position already open")
	// ErrNoPosition means an exit was applied with nothing to close.
	ErrNoPosition = errors.New("ledger: no open position")
)

// Recorder receives ledger mutations for persistence. All methods are
// best-effort from the ledger's point of view: errors are logged, never
// allowed to block execution.
type Recorder interface {
	RecordTrade(trade Trade) error
	UpsertPosition(accountID string, pos Position) error
	ClearPosition(accountID, symbol string) error
	RecordEquity(accountID string, point EquityPoint) error
}

// ResultKind tags what an Apply call did.
type ResultKind string

const (
	ResultOpened    ResultKind = "opened"
	ResultClosed    ResultKind = "closed"
	ResultHeld      ResultKind = "held"
	ResultTriggered ResultKind = "triggered"
)

type ExecutionResult struct {
	Kind     ResultKind
	Position *Position
	Trade    *Trade
	Equity   decimal.Decimal
}

// Ledger is the sole owner of position, trade and equity state for one
// account. All mutation goes through Apply/CheckTriggers under one mutex;
// fills are instantaneous and atomic, never half-applied.
type Ledger struct {
	mu        sync.RWMutex
	accountID string
	cash      decimal.Decimal
	positions map[string]*Position
	trades    []Trade
	equity    []EquityPoint

	gateway  OrderGateway
	recorder Recorder
}

func New(accountID string, initialCash float64, gateway OrderGateway, recorder Recorder) *Ledger {
	return &Ledger{
		accountID: accountID,
		cash:      decimal.NewFromFloat(initialCash),
		positions: make(map[string]*Position),
		gateway:   gateway,
		recorder:  recorder,
	}
}

// Apply executes an approved decision against the ledger at the given price.
// sizePct is the risk-adjusted size (possibly clipped below the decision's
// own ask). Hold still records a mark-to-market equity point so performance
// metrics reflect continuous time, not only trade events.
func (l *Ledger) Apply(ctx context.Context, d decision.Decision, sizePct float64, price float64, now time.Time) (ExecutionResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	px := decimal.NewFromFloat(price)
	switch d.Action {
	case decision.ActionEnterLong, decision.ActionEnterShort:
		return l.enterLocked(ctx, d, sizePct, px, now)
	case decision.ActionExit:
		return l.exitLocked(ctx, d.Symbol, d.ID, px, now, ExitReasonDecision)
	case decision.ActionHold:
		equity := l.markEquityLocked(d.Symbol, px, now)
		return ExecutionResult{Kind: ResultHeld, Equity: equity}, nil
	default:
		return ExecutionResult{}, fmt.Errorf("ledger: unsupported action %q", d.Action)
	}
}

// CheckTriggers closes an open position whose stop or target was crossed by
// the latest price. Checked at cycle start only: an intra-cycle excursion
// through a stop is not seen until the next cycle.
func (l *Ledger) CheckTriggers(ctx context.Context, symbol string, price float64, now time.Time) (*Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sym := normalizeSymbol(symbol)
	pos, ok := l.positions[sym]
	if !ok {
		return nil, nil
	}
	px := decimal.NewFromFloat(price)
	var reason ExitReason
	switch {
	case pos.StopBreached(px):
		reason = ExitReasonStop
	case pos.TargetReached(px):
		reason = ExitReasonTarget
	default:
		return nil, nil
	}
	res, err := l.exitLocked(ctx, sym, pos.DecisionID, px, now, reason)
	if err != nil {
		return nil, err
	}
	logger.Infof("ledger %s: %s closed by %s at %s", l.accountID, sym, reason, px)
	return res.Trade, nil
}

func (l *Ledger) enterLocked(ctx context.Context, d decision.Decision, sizePct float64, px decimal.Decimal, now time.Time) (ExecutionResult, error) {
	sym := normalizeSymbol(d.Symbol)
	if _, open := l.positions[sym]; open {
		return ExecutionResult{}, fmt.Errorf("%w: %s", ErrNotFlat, sym)
	}
	if px.LessThanOrEqual(decimal.Zero) {
		return ExecutionResult{}, fmt.Errorf("ledger: invalid price %s for %s", px, sym)
	}

	equity := l.equityLocked(map[string]decimal.Decimal{sym: px})
	notional := equity.Mul(decimal.NewFromFloat(sizePct)).Div(decimal.NewFromInt(100))
	if notional.LessThanOrEqual(decimal.Zero) {
		return ExecutionResult{}, fmt.Errorf("ledger: non-positive notional for %s", sym)
	}
	if notional.GreaterThan(l.cash) {
		// Aggregate caps should prevent this; cash is the hard floor.
		notional = l.cash
	}
	qty := notional.Div(px)

	side := SideLong
	orderSide := OrderBuy
	if d.Action == decision.ActionEnterShort {
		side = SideShort
		orderSide = OrderSell
	}
	fill, err := l.gateway.Submit(ctx, Order{Symbol: sym, Side: orderSide, Quantity: qty, Price: px})
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("ledger: entry order for %s failed: %w", sym, err)
	}

	filledNotional := fill.Quantity.Mul(fill.Price)
	pos := &Position{
		Symbol:     sym,
		Side:       side,
		Quantity:   fill.Quantity,
		Notional:   filledNotional,
		EntryPrice: fill.Price,
		StopLoss:   decimal.NewFromFloat(d.StopLoss),
		TakeProfit: decimal.NewFromFloat(d.TakeProfit),
		EntryFee:   fill.Fee,
		OpenedAt:   now,
		DecisionID: d.ID,
	}
	// Reserve the notional and pay the entry fee. No PnL realized yet.
	l.cash = l.cash.Sub(filledNotional).Sub(fill.Fee)
	l.positions[sym] = pos

	equityNow := l.appendEquityLocked(now, l.equityLocked(map[string]decimal.Decimal{sym: fill.Price}))
	l.persistPositionLocked(*pos)

	return ExecutionResult{Kind: ResultOpened, Position: pos, Equity: equityNow}, nil
}

func (l *Ledger) exitLocked(ctx context.Context, symbol, decisionID string, px decimal.Decimal, now time.Time, reason ExitReason) (ExecutionResult, error) {
	sym := normalizeSymbol(symbol)
	pos, ok := l.positions[sym]
	if !ok {
		return ExecutionResult{}, fmt.Errorf("%w: %s", ErrNoPosition, sym)
	}

	orderSide := OrderSell
	if pos.Side == SideShort {
		orderSide = OrderBuy
	}
	fill, err := l.gateway.Submit(ctx, Order{Symbol: sym, Side: orderSide, Quantity: pos.Quantity, Price: px})
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("ledger: exit order for %s failed: %w", sym, err)
	}

	// realizedPnL = (exit - entry) * qty * direction - fees
	gross := fill.Price.Sub(pos.EntryPrice).Mul(pos.Quantity).Mul(pos.Side.Sign())
	fees := pos.EntryFee.Add(fill.Fee)
	trade := Trade{
		ID:          uuid.NewString(),
		Symbol:      sym,
		Side:        pos.Side,
		Quantity:    pos.Quantity,
		Notional:    pos.Notional,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   fill.Price,
		RealizedPnL: gross.Sub(fees),
		Fees:        fees,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    now,
		DecisionID:  decisionID,
		ExitReason:  reason,
	}

	// Free the reserved notional plus the gross PnL, minus the exit fee
	// (the entry fee already left cash at entry).
	l.cash = l.cash.Add(pos.Notional).Add(gross).Sub(fill.Fee)
	delete(l.positions, sym)
	l.trades = append(l.trades, trade)

	equityNow := l.appendEquityLocked(now, l.equityLocked(nil))
	l.persistTradeLocked(trade, sym)

	kind := ResultClosed
	if reason != ExitReasonDecision {
		kind = ResultTriggered
	}
	return ExecutionResult{Kind: kind, Trade: &trade, Equity: equityNow}, nil
}

// markEquityLocked records a mark-to-market equity point using price for the
// given symbol's open position (other positions mark at entry).
func (l *Ledger) markEquityLocked(symbol string, px decimal.Decimal, now time.Time) decimal.Decimal {
	marks := map[string]decimal.Decimal{normalizeSymbol(symbol): px}
	return l.appendEquityLocked(now, l.equityLocked(marks))
}

// equityLocked computes total equity: cash plus the mark value of every open
// position. marks overrides the mark price per symbol; absent symbols mark
// at their entry price (unrealized zero).
func (l *Ledger) equityLocked(marks map[string]decimal.Decimal) decimal.Decimal {
	equity := l.cash
	for sym, pos := range l.positions {
		px := pos.EntryPrice
		if m, ok := marks[sym]; ok && m.GreaterThan(decimal.Zero) {
			px = m
		}
		equity = equity.Add(pos.MarkValue(px))
	}
	return equity
}

// appendEquityLocked keeps the curve strictly ordered. Bar-aligned replays
// mark several instruments at one timestamp, so an equal timestamp revises
// the existing point in place; only a backwards timestamp is dropped.
func (l *Ledger) appendEquityLocked(now time.Time, equity decimal.Decimal) decimal.Decimal {
	if n := len(l.equity); n > 0 {
		last := &l.equity[n-1]
		if now.Before(last.At) {
			logger.Debugf("ledger %s: dropping backwards equity point at %s", l.accountID, now)
			return equity
		}
		if now.Equal(last.At) {
			last.Equity = equity
			l.persistEquityLocked(*last)
			return equity
		}
	}
	point := EquityPoint{At: now, Equity: equity}
	l.equity = append(l.equity, point)
	l.persistEquityLocked(point)
	return equity
}

func (l *Ledger) persistEquityLocked(point EquityPoint) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordEquity(l.accountID, point); err != nil {
		logger.Warnf("ledger %s: equity persist failed: %v", l.accountID, err)
	}
}

func (l *Ledger) persistPositionLocked(pos Position) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.UpsertPosition(l.accountID, pos); err != nil {
		logger.Warnf("ledger %s: position persist failed: %v", l.accountID, err)
	}
}

func (l *Ledger) persistTradeLocked(trade Trade, symbol string) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordTrade(trade); err != nil {
		logger.Warnf("ledger %s: trade persist failed: %v", l.accountID, err)
	}
	if err := l.recorder.ClearPosition(l.accountID, symbol); err != nil {
		logger.Warnf("ledger %s: position clear failed: %v", l.accountID, err)
	}
}

// --- read-only views ---

func (l *Ledger) AccountID() string {
	return l.accountID
}

func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Equity marks every open position at its entry price.
func (l *Ledger) Equity() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.equityLocked(nil)
}

func (l *Ledger) HasPosition(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[normalizeSymbol(symbol)]
	return ok
}

func (l *Ledger) OpenPosition(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[normalizeSymbol(symbol)]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// OpenNotional returns the reserved notional for one symbol, zero when flat.
func (l *Ledger) OpenNotional(symbol string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if pos, ok := l.positions[normalizeSymbol(symbol)]; ok {
		return pos.Notional
	}
	return decimal.Zero
}

// TotalOpenNotional sums reserved notionals across all open positions.
func (l *Ledger) TotalOpenNotional() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, pos := range l.positions {
		total = total.Add(pos.Notional)
	}
	return total
}

func (l *Ledger) OpenPositions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Ledger) Trades() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Trade(nil), l.trades...)
}

func (l *Ledger) EquityCurve() []EquityPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]EquityPoint(nil), l.equity...)
}

// Reconcile verifies the accounting identity: cash plus open notional plus
// unrealized-at-entry equals equity, and equity equals initial cash plus
// realized PnL net of entry fees still tied up in open positions.
func (l *Ledger) Reconcile() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lhs := l.cash
	for _, pos := range l.positions {
		lhs = lhs.Add(pos.Notional)
	}
	rhs := l.equityLocked(nil)
	if !lhs.Equal(rhs) {
		return fmt.Errorf("ledger %s: reconciliation failed: cash+notional=%s equity=%s", l.accountID, lhs, rhs)
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

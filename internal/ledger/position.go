package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func (s Side) Sign() decimal.Decimal {
	if s == SideShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Position is the single open exposure for an instrument. At most one open
// position per instrument at all times.
type Position struct {
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Notional   decimal.Decimal `json:"notional"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	EntryFee   decimal.Decimal `json:"entry_fee"`
	OpenedAt   time.Time       `json:"opened_at"`
	DecisionID string          `json:"decision_id"`
}

// UnrealizedPnL marks the position against price: (price-entry)*qty*dir.
func (p Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.EntryPrice).Mul(p.Quantity).Mul(p.Side.Sign())
}

// MarkValue is the capital the position represents at price: the reserved
// notional plus unrealized PnL. Equals Notional exactly at the entry price.
func (p Position) MarkValue(price decimal.Decimal) decimal.Decimal {
	return p.Notional.Add(p.UnrealizedPnL(price))
}

// StopBreached reports whether price has crossed the protective stop.
func (p Position) StopBreached(price decimal.Decimal) bool {
	if p.StopLoss.IsZero() {
		return false
	}
	if p.Side == SideLong {
		return price.LessThanOrEqual(p.StopLoss)
	}
	return price.GreaterThanOrEqual(p.StopLoss)
}

// TargetReached reports whether price has crossed the take-profit level.
func (p Position) TargetReached(price decimal.Decimal) bool {
	if p.TakeProfit.IsZero() {
		return false
	}
	if p.Side == SideLong {
		return price.GreaterThanOrEqual(p.TakeProfit)
	}
	return price.LessThanOrEqual(p.TakeProfit)
}

// ExitReason tags what closed a trade.
type ExitReason string

const (
	ExitReasonDecision ExitReason = "decision"
	ExitReasonStop     ExitReason = "stop_loss"
	ExitReasonTarget   ExitReason = "take_profit"
)

// Trade is the immutable record of a closed position. Append-only.
type Trade struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Notional    decimal.Decimal `json:"notional"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Fees        decimal.Decimal `json:"fees"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    time.Time       `json:"closed_at"`
	DecisionID  string          `json:"decision_id"`
	ExitReason  ExitReason      `json:"exit_reason"`
}

// EquityPoint is one sample of the equity curve, strictly ordered by time.
type EquityPoint struct {
	At     time.Time       `json:"at"`
	Equity decimal.Decimal `json:"equity"`
}

package decision

import (
	"time"
)

// Action is the normalized advisory action. External payloads are mapped to
// one of these four at the dispatcher boundary; nothing else flows past it.
type Action string

const (
	ActionEnterLong  Action = "enter_long"
	ActionEnterShort Action = "enter_short"
	ActionExit       Action = "exit"
	ActionHold       Action = "hold"
)

func (a Action) IsEntry() bool {
	return a == ActionEnterLong || a == ActionEnterShort
}

// DirectionSign returns +1 for long entries, -1 for short entries, 0 otherwise.
func (a Action) DirectionSign() float64 {
	switch a {
	case ActionEnterLong:
		return 1
	case ActionEnterShort:
		return -1
	default:
		return 0
	}
}

// Decision is one normalized advisory recommendation. Immutable once produced.
type Decision struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Confidence int       `json:"confidence"`
	EntryPrice float64   `json:"entry_price,omitempty"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	SizePct    float64   `json:"size_pct,omitempty"`
	Leverage   float64   `json:"leverage,omitempty"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Source     string    `json:"source"`
	DecidedAt  time.Time `json:"decided_at"`
}

// Hold builds the degraded fallback decision used whenever the advisory
// path fails. Confidence zero so risk evaluation can never act on it.
func Hold(symbol, source, reason string, at time.Time) Decision {
	return Decision{
		Symbol:     symbol,
		Action:     ActionHold,
		Confidence: 0,
		Reasoning:  reason,
		Source:     source,
		DecidedAt:  at,
	}
}

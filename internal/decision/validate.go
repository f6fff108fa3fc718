package decision

import (
	"fmt"
)

// Validate checks a normalized decision for internal consistency. A failing
// decision is malformed input, not a risk outcome; the risk evaluator rejects
// it without ever acting on its prices.
func Validate(d *Decision) error {
	switch d.Action {
	case ActionEnterLong, ActionEnterShort, ActionExit, ActionHold:
	default:
		return fmt.Errorf("invalid action: %s", d.Action)
	}
	if d.Confidence < 0 || d.Confidence > 100 {
		return fmt.Errorf("confidence out of range: %d", d.Confidence)
	}
	if !d.Action.IsEntry() {
		return nil
	}
	if d.SizePct <= 0 || d.SizePct > 100 {
		return fmt.Errorf("entry requires size_pct in (0,100], got %.2f", d.SizePct)
	}
	if d.EntryPrice <= 0 {
		return fmt.Errorf("entry requires entry_price > 0")
	}
	if d.StopLoss <= 0 || d.TakeProfit <= 0 {
		return fmt.Errorf("entry requires stop_loss and take_profit > 0")
	}
	switch d.Action {
	case ActionEnterLong:
		if !(d.StopLoss < d.EntryPrice && d.EntryPrice < d.TakeProfit) {
			return fmt.Errorf("long requires stop < entry < target (stop=%.4f entry=%.4f target=%.4f)",
				d.StopLoss, d.EntryPrice, d.TakeProfit)
		}
	case ActionEnterShort:
		if !(d.TakeProfit < d.EntryPrice && d.EntryPrice < d.StopLoss) {
			return fmt.Errorf("short requires target < entry < stop (target=%.4f entry=%.4f stop=%.4f)",
				d.TakeProfit, d.EntryPrice, d.StopLoss)
		}
	}
	return nil
}

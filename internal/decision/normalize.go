package decision

import "strings"

// NormalizeAction maps the synonyms advisory models actually emit onto the
// four canonical actions. Unknown input maps to hold.
func NormalizeAction(a string) Action {
	replacer := strings.NewReplacer(" ", "_", "-", "_")
	a = strings.ToLower(strings.TrimSpace(a))
	a = replacer.Replace(a)
	switch a {
	case "hold", "wait", "stay", "neutral", "none":
		return ActionHold
	case "buy", "long", "open", "enter_long", "go_long", "open_long", "buy_long":
		return ActionEnterLong
	case "sell", "short", "enter_short", "go_short", "open_short", "sell_short":
		return ActionEnterShort
	case "exit", "close", "flat", "close_position", "close_long", "close_short",
		"exit_long", "exit_short", "take_profit", "liquidate":
		return ActionExit
	default:
		return ActionHold
	}
}

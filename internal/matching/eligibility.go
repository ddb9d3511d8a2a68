package matching

import "context"

// Oracle is the eligibility predicate of §4.2: a pure function of the bot
// plus two remote checks, re-evaluated fresh on every call. It must not
// cache results across invocations — the caller is expected to call it
// again next tick.
type Oracle struct {
	Publicity InventoryPublicityChecker
	APIKeys   APIKeyValidator
}

// Eligible evaluates the five-step predicate in order with short-circuit
// semantics. Steps 4 and 5 (remote checks) report failure as false, not as
// an error — a transient remote failure just means "not eligible this
// tick", and the caller re-evaluates on the next one.
func (o *Oracle) Eligible(ctx context.Context, bot BotAccount) bool {
	if !bot.HasMobileAuth {
		return false
	}
	if !bot.TradeMatcherEnabled {
		return false
	}
	if bot.ConfiguredTypes.Intersect(AcceptedTypeSet()).Empty() {
		return false
	}
	if o.Publicity == nil {
		return false
	}
	public, err := o.Publicity.IsInventoryPublic(ctx, bot.SteamID)
	if err != nil || !public {
		return false
	}
	if o.APIKeys == nil {
		return false
	}
	valid, err := o.APIKeys.HasValidAPIKey(ctx, bot.SteamID)
	if err != nil || !valid {
		return false
	}
	return true
}

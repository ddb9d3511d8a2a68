package matching

import (
	"context"
	"errors"
	"testing"
)

type fakePublicity struct {
	public bool
	err    error
}

func (f fakePublicity) IsInventoryPublic(ctx context.Context, steamID uint64) (bool, error) {
	return f.public, f.err
}

type fakeAPIKeys struct {
	valid bool
	err   error
}

func (f fakeAPIKeys) HasValidAPIKey(ctx context.Context, steamID uint64) (bool, error) {
	return f.valid, f.err
}

func eligibleBot() BotAccount {
	return BotAccount{
		SteamID:             1,
		HasMobileAuth:       true,
		TradeMatcherEnabled: true,
		ConfiguredTypes:     NewTypeSet(TradingCard),
	}
}

func TestOracle_AllStepsPass(t *testing.T) {
	o := &Oracle{Publicity: fakePublicity{public: true}, APIKeys: fakeAPIKeys{valid: true}}
	if !o.Eligible(context.Background(), eligibleBot()) {
		t.Fatal("expected eligible")
	}
}

func TestOracle_NoMobileAuth(t *testing.T) {
	o := &Oracle{Publicity: fakePublicity{public: true}, APIKeys: fakeAPIKeys{valid: true}}
	bot := eligibleBot()
	bot.HasMobileAuth = false
	if o.Eligible(context.Background(), bot) {
		t.Fatal("expected ineligible without mobile auth")
	}
}

func TestOracle_NoTradeMatcherFlag(t *testing.T) {
	o := &Oracle{Publicity: fakePublicity{public: true}, APIKeys: fakeAPIKeys{valid: true}}
	bot := eligibleBot()
	bot.TradeMatcherEnabled = false
	if o.Eligible(context.Background(), bot) {
		t.Fatal("expected ineligible without SteamTradeMatcher flag")
	}
}

func TestOracle_TypesDoNotIntersect(t *testing.T) {
	o := &Oracle{Publicity: fakePublicity{public: true}, APIKeys: fakeAPIKeys{valid: true}}
	bot := eligibleBot()
	bot.ConfiguredTypes = NewTypeSet(Other)
	if o.Eligible(context.Background(), bot) {
		t.Fatal("expected ineligible with no matchable type overlap")
	}
}

func TestOracle_PrivacyCheckFailsReportsFalseNotError(t *testing.T) {
	o := &Oracle{Publicity: fakePublicity{err: errors.New("timeout")}, APIKeys: fakeAPIKeys{valid: true}}
	if o.Eligible(context.Background(), eligibleBot()) {
		t.Fatal("expected ineligible on transient publicity check failure")
	}
}

func TestOracle_APIKeyCheckFails(t *testing.T) {
	o := &Oracle{Publicity: fakePublicity{public: true}, APIKeys: fakeAPIKeys{valid: false}}
	if o.Eligible(context.Background(), eligibleBot()) {
		t.Fatal("expected ineligible with invalid api key")
	}
}

// The oracle must not cache results: flipping the underlying check changes
// the outcome on the very next call.
func TestOracle_DoesNotCacheAcrossInvocations(t *testing.T) {
	publicity := &mutablePublicity{public: true}
	o := &Oracle{Publicity: publicity, APIKeys: fakeAPIKeys{valid: true}}
	bot := eligibleBot()

	if !o.Eligible(context.Background(), bot) {
		t.Fatal("expected eligible on first call")
	}
	publicity.public = false
	if o.Eligible(context.Background(), bot) {
		t.Fatal("expected ineligible on second call after flipping publicity")
	}
}

type mutablePublicity struct{ public bool }

func (m *mutablePublicity) IsInventoryPublic(ctx context.Context, steamID uint64) (bool, error) {
	return m.public, nil
}

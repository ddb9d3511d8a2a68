package matching

import (
	"context"
	"errors"
	"testing"
)

type fakeConnection struct{ connected bool }

func (f fakeConnection) Connected() bool { return f.connected }

type fakeMultiInventory struct {
	byBot map[uint64][]Asset
	calls map[uint64]int
}

func (f *fakeMultiInventory) FetchInventory(ctx context.Context, steamID uint64, opts InventoryFetchOptions) ([]Asset, error) {
	if f.calls == nil {
		f.calls = make(map[uint64]int)
	}
	f.calls[steamID]++
	return f.byBot[steamID], nil
}

type fakeSubmitter struct {
	result TradeOfferResult
	err    error
	calls  int
}

func (f *fakeSubmitter) SubmitTradeOffer(ctx context.Context, req TradeOfferRequest) (TradeOfferResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeConfirmer struct {
	ok    bool
	err   error
	calls int
}

func (f *fakeConfirmer) AcceptConfirmations(ctx context.Context, req ConfirmationRequest) (bool, error) {
	f.calls++
	return f.ok, f.err
}

func makeCandidates(n int) []*ListedUser {
	out := make([]*ListedUser, n)
	for i := 0; i < n; i++ {
		out[i] = &ListedUser{
			SteamID:         uint64(1000 + i),
			TradeToken:      "t",
			MatchableTypes:  NewTypeSet(TradingCard),
			MatchEverything: true,
			Score:           float64(n - i), // descending, unique
		}
	}
	return out
}

// Boundary scenario 6 (§8): with 100 eligible entries, only the top 40 by
// score are visited.
func TestEngine_SelectCandidatesCapsAtHard(t *testing.T) {
	e := &Engine{}
	bots := makeCandidates(100)

	got := e.selectCandidates(context.Background(), bots, NewTypeSet(TradingCard))

	if len(got) != MaxMatchedBotsHard {
		t.Fatalf("expected %d candidates, got %d", MaxMatchedBotsHard, len(got))
	}
	if got[0].SteamID != bots[0].SteamID {
		t.Fatalf("expected highest-score candidate first, got %d", got[0].SteamID)
	}
}

func TestEngine_GuardFailureAbortsSilently(t *testing.T) {
	bot := BotAccount{SteamID: 1, MatchActively: false, HasMobileAuth: true, TradeMatcherEnabled: true, ConfiguredTypes: NewTypeSet(TradingCard)}
	e := &Engine{
		Account:    func() BotAccount { return bot },
		Connection: fakeConnection{connected: true},
		Oracle:     &Oracle{Publicity: fakePublicity{public: true}, APIKeys: fakeAPIKeys{valid: true}},
	}

	rounds, err := e.MatchActively(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rounds != 0 {
		t.Fatalf("expected zero rounds with a failed guard, got %d", rounds)
	}
}

func TestEngine_TryLockRefusesReentry(t *testing.T) {
	bot := BotAccount{
		SteamID:             1,
		MatchActively:       true,
		HasMobileAuth:       true,
		TradeMatcherEnabled: true,
		ConfiguredTypes:     NewTypeSet(TradingCard),
	}
	e := &Engine{
		Account:    func() BotAccount { return bot },
		Connection: fakeConnection{connected: true},
		Oracle:     &Oracle{Publicity: fakePublicity{public: true}, APIKeys: fakeAPIKeys{valid: true}},
	}

	e.matchActivelyMu.Lock()
	defer e.matchActivelyMu.Unlock()

	rounds, err := e.MatchActively(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rounds != 0 {
		t.Fatalf("expected re-entry to be refused silently, got %d rounds", rounds)
	}
}

// Soft-cap termination (§4.5 step 6): once emptyMatches reaches
// MAX_MATCHED_BOTS_SOFT, the round ends early without visiting the rest of
// the candidate list.
func TestEngine_EmptyMatchesSoftCapTerminatesRound(t *testing.T) {
	ownAssets := []Asset{
		{ClassID: 1, RealAppID: 730, Type: TradingCard, Amount: 3},
		{ClassID: 2, RealAppID: 730, Type: TradingCard, Amount: 1},
	}
	candidateCount := MaxMatchedBotsSoft + 5
	bots := make([]*ListedUser, candidateCount)
	inv := &fakeMultiInventory{byBot: map[uint64][]Asset{1: ownAssets}}
	for i := 0; i < candidateCount; i++ {
		steamID := uint64(2000 + i)
		bots[i] = &ListedUser{SteamID: steamID, TradeToken: "t", MatchableTypes: NewTypeSet(TradingCard), MatchEverything: true, Score: float64(i)}
		// A non-overlapping app id: never produces a common set key with ours.
		inv.byBot[steamID] = []Asset{{ClassID: 99, RealAppID: 999, Type: TradingCard, Amount: 1}}
	}

	e := &Engine{
		Account:             func() BotAccount { return BotAccount{SteamID: 1, ConfiguredTypes: NewTypeSet(TradingCard)} },
		Inventory:           inv,
		Directory:           &fakeDirectory{bots: bots},
		MaxTradesPerAccount: 3,
		MaxItemsPerTrade:    10,
	}

	_, err := e.runRound(context.Background(), NewTypeSet(TradingCard))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.calls[1] != 1 {
		t.Fatalf("expected exactly one fetch of our own inventory, got %d", inv.calls[1])
	}
	visited := 0
	for i := 0; i < candidateCount; i++ {
		if inv.calls[uint64(2000+i)] > 0 {
			visited++
		}
	}
	if visited > MaxMatchedBotsSoft {
		t.Fatalf("expected at most %d candidates visited before soft cap, got %d", MaxMatchedBotsSoft, visited)
	}
}

// Mobile-confirmation failure aborts the round (§4.5): a trade was already
// submitted, leaving an ambiguous state, so the round must not continue.
func TestEngine_MobileConfirmationFailureAbortsRound(t *testing.T) {
	ownAssets := []Asset{
		{ClassID: 10, RealAppID: 730, Type: TradingCard, Amount: 3},
		{ClassID: 11, RealAppID: 730, Type: TradingCard, Amount: 1},
	}
	theirAssets := []Asset{
		{ClassID: 11, RealAppID: 730, Type: TradingCard, Amount: 2},
		{ClassID: 12, RealAppID: 730, Type: TradingCard, Amount: 1},
	}
	inv := &fakeMultiInventory{byBot: map[uint64][]Asset{
		1: ownAssets,
		2: theirAssets,
	}}
	candidate := &ListedUser{SteamID: 2, TradeToken: "tok", MatchableTypes: NewTypeSet(TradingCard), MatchEverything: true, Score: 1}

	submitter := &fakeSubmitter{result: TradeOfferResult{OK: true, ConfirmationIDs: []string{"c1"}}}
	confirmer := &fakeConfirmer{ok: false, err: errors.New("confirmation failed")}

	e := &Engine{
		Account: func() BotAccount {
			return BotAccount{SteamID: 1, HasMobileAuth: true, ConfiguredTypes: NewTypeSet(TradingCard)}
		},
		Inventory:           inv,
		Directory:           &fakeDirectory{bots: []*ListedUser{candidate}},
		Submitter:           submitter,
		Confirmer:           confirmer,
		MaxTradesPerAccount: 3,
		MaxItemsPerTrade:    10,
	}

	progress, err := e.runRound(context.Background(), NewTypeSet(TradingCard))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress {
		t.Fatal("expected the round to report no further progress after a confirmation failure")
	}
	if submitter.calls != 1 {
		t.Fatalf("expected exactly one submission attempt, got %d", submitter.calls)
	}
	if confirmer.calls != 1 {
		t.Fatalf("expected exactly one confirmation attempt, got %d", confirmer.calls)
	}
}

// Rounds stop as soon as a round makes no progress, rather than always
// running MAX_MATCHING_ROUNDS.
func TestEngine_StopsAfterNoProgress(t *testing.T) {
	bot := BotAccount{SteamID: 1, MatchActively: true, HasMobileAuth: true, TradeMatcherEnabled: true, ConfiguredTypes: NewTypeSet(TradingCard)}
	inv := &fakeMultiInventory{byBot: map[uint64][]Asset{1: {
		{ClassID: 1, RealAppID: 730, Type: TradingCard, Amount: 1}, // no surplus
	}}}
	e2 := &Engine{
		Account:    func() BotAccount { return bot },
		Connection: fakeConnection{connected: true},
		Oracle:     &Oracle{Publicity: fakePublicity{public: true}, APIKeys: fakeAPIKeys{valid: true}},
		Inventory:  inv,
		Directory:  &fakeDirectory{},
	}
	rounds, err := e2.MatchActively(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rounds != 1 {
		t.Fatalf("expected exactly one round when the first makes no progress, got %d", rounds)
	}
}

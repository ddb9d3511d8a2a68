package matching

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Engine is the active-matching engine (C5): a bounded multi-round greedy
// duplicate exchange against the top-scored match_everything counterparties
// in the directory.
type Engine struct {
	Account     func() BotAccount
	Connection  ConnectionStatus
	Oracle      *Oracle
	Inventory   InventoryFetcher
	Directory   DirectoryClient
	Submitter   TradeOfferSubmitter
	Confirmer   ConfirmationAccepter
	Blacklist   TradeBlacklistQuerier
	TradingLock TradingLock
	Logger      *logrus.Logger

	// External constants consumed (§4.5): per-account and per-trade limits
	// set by the surrounding agent's configuration, not hardcoded here.
	MaxTradesPerAccount int
	MaxItemsPerTrade    int

	// Sleep overrides the inter-round delay for tests; nil uses a real,
	// cancelable timer.
	Sleep func(ctx context.Context, d time.Duration) error

	matchActivelyMu sync.Mutex // try-acquire, zero-wait (§5)

	countersMu sync.Mutex
	counters   RoundCounters
}

// RoundCounters tallies what actually happened during the most recently
// completed MatchActively call: how many counterparties were visited, how
// many offers were actually sent, and how many items changed hands. The
// surrounding agent's observability layer (internal/agent.Runtime) reads
// this after each call rather than mistaking the round count MatchActively
// returns for a trade count.
type RoundCounters struct {
	CandidatesVisited int
	TradesSent        int
	ItemsGiven        int
	ItemsTaken        int
}

// Counters returns the tallies of the latest MatchActively call that passed
// its guards and took the reentry lock (zero before the first such call).
// A call that returns early at a guard or at the lock leaves them
// unchanged, and while a call is running they are its running totals.
// Safe to read concurrently with a run in progress.
func (e *Engine) Counters() RoundCounters {
	e.countersMu.Lock()
	defer e.countersMu.Unlock()
	return e.counters
}

func (e *Engine) logger() *logrus.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

func (e *Engine) bot() BotAccount {
	if e.Account != nil {
		return e.Account()
	}
	return BotAccount{}
}

// MatchActively runs at most MaxMatchingRounds rounds, sleeping
// InterRoundSleep between them, stopping early on diminishing returns or a
// failed guard. It returns the number of rounds actually executed. Guard
// and lock failures are not errors — §4.5 specifies silent abort for a
// busy lock, and a failed guard simply means there was nothing to do this
// tick.
func (e *Engine) MatchActively(ctx context.Context) (int, error) {
	bot := e.bot()
	if !e.guardsOK(ctx, bot) {
		return 0, nil
	}
	accepted := bot.ConfiguredTypes.Intersect(AcceptedTypeSet())
	if accepted.Empty() {
		return 0, nil
	}

	if !e.matchActivelyMu.TryLock() {
		// Another active-matching pass is already running for this bot;
		// re-entry is refused silently.
		return 0, nil
	}
	defer e.matchActivelyMu.Unlock()

	e.countersMu.Lock()
	e.counters = RoundCounters{}
	e.countersMu.Unlock()

	roundsRun := 0
	for i := 0; i < MaxMatchingRounds; i++ {
		if !e.guardsOK(ctx, e.bot()) {
			break
		}
		madeProgress, err := e.runRoundWithLock(ctx, accepted)
		roundsRun++
		if err != nil {
			return roundsRun, err
		}
		if !madeProgress {
			break
		}
		if i < MaxMatchingRounds-1 {
			if err := e.sleep(ctx, InterRoundSleep); err != nil {
				// Cancellation; unwind cleanly, not an error.
				return roundsRun, nil
			}
		}
	}
	return roundsRun, nil
}

// guardsOK re-evaluates guards 1-4 of §4.5: connected, MatchActively set,
// MatchEverything not set, and C2 eligibility.
func (e *Engine) guardsOK(ctx context.Context, bot BotAccount) bool {
	if e.Connection != nil && !e.Connection.Connected() {
		return false
	}
	if !bot.MatchActively {
		return false
	}
	if bot.MatchEverything {
		return false
	}
	if e.Oracle == nil || !e.Oracle.Eligible(ctx, bot) {
		return false
	}
	return true
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// runRoundWithLock acquires the agent's shared trading lock for the
// duration of the round (§5: held for the duration of each matching round,
// shared with manual trade handling) and delegates to runRound.
func (e *Engine) runRoundWithLock(ctx context.Context, accepted TypeSet) (bool, error) {
	if e.TradingLock != nil {
		unlock, err := e.TradingLock.Lock(ctx)
		if err != nil {
			return false, nil
		}
		defer unlock()
	}
	return e.runRound(ctx, accepted)
}

// runRound is the round algorithm of §4.5.
func (e *Engine) runRound(ctx context.Context, acceptedTypes TypeSet) (bool, error) {
	bot := e.bot()

	if e.Inventory == nil {
		return false, nil
	}
	ownAssets, err := e.Inventory.FetchInventory(ctx, bot.SteamID, InventoryFetchOptions{
		TradableOnly: true,
		WantedTypes:  acceptedTypes,
	})
	if err != nil || len(ownAssets) == 0 {
		return false, nil
	}

	ourState := GroupInventory(ownAssets)
	if !ourState.HasSurplus() {
		return false, nil
	}

	if e.Directory == nil {
		return false, nil
	}
	bots, err := e.Directory.FetchBots(ctx)
	if err != nil || len(bots) == 0 {
		return false, nil
	}

	candidates := e.selectCandidates(ctx, bots, acceptedTypes)

	skippedSetsRound := make(map[SetKey]struct{})
	emptyMatches := 0

candidates:
	for _, u := range candidates {
		if emptyMatches >= MaxMatchedBotsSoft {
			return len(skippedSetsRound) > 0, nil
		}

		e.countersMu.Lock()
		e.counters.CandidatesVisited++
		e.countersMu.Unlock()

		theirAssets, err := e.Inventory.FetchInventory(ctx, u.SteamID, InventoryFetchOptions{
			TradableOnly: true,
			WantedSets:   remainingSetKeys(ourState, skippedSetsRound),
			SkippedSets:  skippedSetsRound,
		})
		if err != nil || len(theirAssets) == 0 {
			continue candidates
		}
		theirState := GroupInventory(theirAssets)
		skippedSetsUser := make(map[SetKey]struct{})

	offers:
		for attempt := 0; attempt < e.MaxTradesPerAccount; attempt++ {
			give := make(map[uint64]uint32)
			take := make(map[uint64]uint32)
			itemsInTrade := 0

			for _, key := range commonSetKeys(ourState, theirState, u.MatchableTypes) {
				if itemsInTrade >= e.MaxItemsPerTrade-1 {
					break
				}
				classes := ourState[key]
				if !hasSurplusInSet(classes) {
					continue
				}
				budget := e.MaxItemsPerTrade - 1 - itemsInTrade
				pairs := findPairsForSet(ourState[key], theirState[key], budget)
				if len(pairs) == 0 {
					continue
				}
				skippedSetsUser[key] = struct{}{}
				for _, p := range pairs {
					give[p.OurItem]++
					take[p.TheirItem]++
					itemsInTrade += 2
				}
			}

			if len(give) == 0 && len(take) == 0 {
				emptyMatches++
				if emptyMatches >= MaxMatchedBotsSoft {
					return len(skippedSetsRound) > 0, nil
				}
				break offers
			}
			emptyMatches = 0

			if e.Submitter == nil {
				break offers
			}
			result, err := e.Submitter.SubmitTradeOffer(ctx, TradeOfferRequest{
				RecipientSteamID:   u.SteamID,
				Give:               give,
				Take:               take,
				OwnAssets:          ownAssets,
				CounterpartyAssets: theirAssets,
				RecipientToken:     u.TradeToken,
			})
			if err != nil || !result.OK {
				// Submission failed for reasons other than confirmation;
				// retain the speculative state changes already applied to
				// ourState/theirState and try the next offer (§9 open
				// question — no snapshot/rollback, matching the source).
				continue offers
			}

			e.countersMu.Lock()
			e.counters.TradesSent++
			e.counters.ItemsGiven += itemsInTrade / 2
			e.counters.ItemsTaken += itemsInTrade / 2
			e.countersMu.Unlock()

			if len(result.ConfirmationIDs) > 0 {
				if !bot.HasMobileAuth || e.Confirmer == nil {
					return false, nil
				}
				ok, cerr := e.Confirmer.AcceptConfirmations(ctx, ConfirmationRequest{
					Accept:       true,
					Kind:         "trade",
					ActorSteamID: bot.SteamID,
					IDs:          result.ConfirmationIDs,
					WaitIfNeeded: true,
				})
				if cerr != nil || !ok {
					// Mobile confirmation failed after a trade was
					// submitted: the trade is in an ambiguous state,
					// fatal to the round.
					return false, nil
				}
			}
		}

		for key := range skippedSetsUser {
			skippedSetsRound[key] = struct{}{}
			delete(ourState, key)
		}
		if !ourState.HasSurplus() {
			break candidates
		}
	}

	return len(skippedSetsRound) > 0, nil
}

// selectCandidates implements §4.5 step 5: match_everything users whose
// matchable types intersect ours and who are not blacklisted, sorted by
// score descending, capped at MaxMatchedBotsHard.
func (e *Engine) selectCandidates(ctx context.Context, bots []*ListedUser, acceptedTypes TypeSet) []*ListedUser {
	candidates := make([]*ListedUser, 0, len(bots))
	for _, u := range bots {
		if !u.MatchEverything {
			continue
		}
		if u.MatchableTypes.Intersect(acceptedTypes).Empty() {
			continue
		}
		if e.Blacklist != nil {
			blacklisted, err := e.Blacklist.IsBlacklisted(ctx, u.SteamID)
			if err != nil {
				e.logger().WithError(err).WithField("steam_id", u.SteamID).Debug("blacklist query failed, assuming not blacklisted")
			} else if blacklisted {
				continue
			}
		}
		candidates = append(candidates, u)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > MaxMatchedBotsHard {
		candidates = candidates[:MaxMatchedBotsHard]
	}
	return candidates
}

// remainingSetKeys returns the keys of state not present in skipped, as a
// set suitable for InventoryFetchOptions.WantedSets.
func remainingSetKeys(state InventoryState, skipped map[SetKey]struct{}) map[SetKey]struct{} {
	out := make(map[SetKey]struct{}, len(state))
	for key := range state {
		if _, isSkipped := skipped[key]; !isSkipped {
			out[key] = struct{}{}
		}
	}
	return out
}

// commonSetKeys returns, in deterministic order, the set keys present in
// both states and whose type is in matchableTypes.
func commonSetKeys(ours, theirs InventoryState, matchableTypes TypeSet) []SetKey {
	var keys []SetKey
	for key := range ours {
		if _, ok := theirs[key]; !ok {
			continue
		}
		if !matchableTypes.Contains(key.Type) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RealAppID != keys[j].RealAppID {
			return keys[i].RealAppID < keys[j].RealAppID
		}
		return keys[i].Type < keys[j].Type
	})
	return keys
}

func hasSurplusInSet(classes map[uint64]uint32) bool {
	for _, count := range classes {
		if count > 1 {
			return true
		}
	}
	return false
}

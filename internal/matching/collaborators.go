package matching

import "context"

// This file declares the external collaborators the core module expects
// (§6). Concrete implementations (internal/directory, internal/steamweb)
// are wired in by the caller; the matching package never imports them,
// keeping the dependency arrow pointing inward.

// BotAccount is the minimal view of "this bot" the matching core needs from
// the surrounding agent: identity, trading preferences, and the few
// feature flags §4.2 and §4.5 gate on.
type BotAccount struct {
	SteamID             uint64
	Guid                string
	Nickname            string
	AvatarHash          string
	HasMobileAuth       bool
	TradeMatcherEnabled bool // "SteamTradeMatcher" trading preference
	MatchActively       bool
	MatchEverything     bool
	ConfiguredTypes     TypeSet
}

// InventoryFetcher retrieves a bot's (or a counterparty's) inventory,
// restricted to tradable items of the requested matchable types and set
// keys. "Absent" is reported as a non-nil error (ErrInventoryAbsent) and
// "empty" as a zero-length slice with a nil error — callers rely on this to
// tell apart "nothing to trade" from "couldn't find out".
type InventoryFetcher interface {
	FetchInventory(ctx context.Context, steamID uint64, opts InventoryFetchOptions) ([]Asset, error)
}

// InventoryFetchOptions narrows an inventory fetch. WantedTypes and
// WantedSets are both optional filters (nil/empty means "no filter on this
// axis"); SkippedSets excludes set keys the caller has already given up on
// for this round.
type InventoryFetchOptions struct {
	TradableOnly bool
	WantedTypes  TypeSet
	WantedSets   map[SetKey]struct{}
	SkippedSets  map[SetKey]struct{}
}

// ErrInventoryAbsent is returned by an InventoryFetcher when the fetch
// itself failed (network, malformed response, private inventory) — as
// opposed to succeeding with zero items. The callers in this package treat
// any non-nil error from FetchInventory as "absent", because §4.3 step 4
// and §4.5 step 1/7 react differently to "absent" than to "empty".
var ErrInventoryAbsent = inventoryAbsentError{}

type inventoryAbsentError struct{}

func (inventoryAbsentError) Error() string { return "inventory fetch: absent" }

// TradeOfferSubmitter sends a trade offer to a counterparty and reports
// whether mobile confirmation is required.
type TradeOfferSubmitter interface {
	SubmitTradeOffer(ctx context.Context, req TradeOfferRequest) (TradeOfferResult, error)
}

// TradeOfferRequest describes one offer: the class-id/count deltas from the
// round algorithm, plus the inventory snapshots the round already fetched
// for both sides (OwnAssets/CounterpartyAssets) so the submitter can resolve
// each class_id in Give/Take to a concrete, not-yet-offered asset id before
// talking to Steam — a trade offer's asset objects are keyed by the specific
// item instance, not its class.
type TradeOfferRequest struct {
	RecipientSteamID   uint64
	Give               map[uint64]uint32 // class_id -> count
	Take               map[uint64]uint32 // class_id -> count
	OwnAssets          []Asset           // this bot's fetched inventory, resolved against Give
	CounterpartyAssets []Asset           // the counterparty's fetched inventory, resolved against Take
	RecipientToken     string
	BypassEscrowChecks bool
}

// TradeOfferResult reports the outcome of a submission.
type TradeOfferResult struct {
	OK              bool
	ConfirmationIDs []string
}

// ConfirmationAccepter drives the mobile-authenticator confirmation flow
// for a set of pending confirmation ids.
type ConfirmationAccepter interface {
	AcceptConfirmations(ctx context.Context, req ConfirmationRequest) (bool, error)
}

// ConfirmationRequest describes which confirmations to act on.
type ConfirmationRequest struct {
	Accept       bool
	Kind         string // e.g. "trade"
	ActorSteamID uint64
	IDs          []string
	WaitIfNeeded bool
}

// DirectoryClient is the directory HTTP API family (§6): heartbeat,
// announce, and the bot listing.
type DirectoryClient interface {
	Heartbeat(ctx context.Context, req HeartbeatRequest) error
	Announce(ctx context.Context, req AnnounceRequest) error
	FetchBots(ctx context.Context) ([]*ListedUser, error)
}

// HeartbeatRequest is the {SteamID, Guid} form payload of POST /Api/HeartBeat.
type HeartbeatRequest struct {
	SteamID uint64
	Guid    string
}

// AnnounceRequest is the nine-field form payload of POST /Api/Announce.
type AnnounceRequest struct {
	SteamID         uint64
	Guid            string
	Nickname        string
	AvatarHash      string
	GamesCount      int
	ItemsCount      int
	MatchableTypes  TypeSet
	MatchEverything bool
	TradeToken      string
}

// Eligibility-supporting remote checks (§4.2 steps 4-5). These are kept as
// narrow, single-method interfaces so the oracle can be tested with trivial
// fakes without dragging in an HTTP client.
type InventoryPublicityChecker interface {
	IsInventoryPublic(ctx context.Context, steamID uint64) (bool, error)
}

type APIKeyValidator interface {
	HasValidAPIKey(ctx context.Context, steamID uint64) (bool, error)
}

// PersonaStateRequester asks the platform to push a fresh persona-state
// event for this bot (the eventual on_persona_state callback drives the
// announcement path — §4.3).
type PersonaStateRequester interface {
	RequestPersonaState(ctx context.Context, steamID uint64) error
}

// TradeBlacklistQuerier reports whether a counterparty is on the local
// trade blacklist (§4.5 step 5).
type TradeBlacklistQuerier interface {
	IsBlacklisted(ctx context.Context, steamID uint64) (bool, error)
}

// TradingLock is the agent's shared trading lock (§5), held for the
// duration of each matching round to serialize against manual trading.
type TradingLock interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// ConnectionStatus reports whether the bot is connected/logged in — guard 1
// of §4.5.
type ConnectionStatus interface {
	Connected() bool
}

// TradeTokenProvider obtains this bot's own trade token from the external
// collaborator (§4.3 step 2) — typically scraped from the bot's own trade
// settings page. An empty string is treated the same as an oracle failure:
// gate the announcement and retry next tick.
type TradeTokenProvider interface {
	TradeToken(ctx context.Context, steamID uint64) (string, error)
}

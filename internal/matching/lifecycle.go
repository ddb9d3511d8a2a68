package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// lifecycleClocks holds the per-bot timestamps §3 describes, plus the
// should-send-heartbeats flag. All zero epoch initially.
type lifecycleClocks struct {
	lastAnnouncementCheck  time.Time
	lastHeartbeat          time.Time
	lastPersonaStateRequest time.Time
	shouldSendHeartbeats   bool
}

// Controller is the announcement/heartbeat lifecycle state machine (C3). One
// Controller exists per bot. requests_lock (§5) is mu below: it serializes
// the announcement and heartbeat paths against each other and is never
// nested with any other lock in this package.
type Controller struct {
	SteamID    uint64
	Guid       string
	Account    func() BotAccount // current trading preferences/config, refreshed on each call
	Oracle     *Oracle
	Directory  DirectoryClient
	Inventory  InventoryFetcher
	TradeToken TradeTokenProvider
	Persona    PersonaStateRequester
	Now        func() time.Time
	Logger     *logrus.Logger

	mu     sync.Mutex
	clocks lifecycleClocks
	// latest persona fields known for the next announcement; updated by
	// OnPersonaState before the announcement path runs.
	nickname   string
	avatarHash string
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

// OnHeartbeatTick is invoked by the agent's periodic heartbeat (external
// cadence, minutes). It both drives the best-effort heartbeat POST and,
// independently, may request a persona-state refresh that eventually races
// an announcement check via OnPersonaState.
func (c *Controller) OnHeartbeatTick(ctx context.Context) {
	c.maybeRequestPersonaRefresh(ctx)
	c.maybeSendHeartbeat(ctx)
}

// maybeRequestPersonaRefresh implements the persona-refresh block of §4.3:
// a double-checked gate under requests_lock so two concurrent heartbeat
// ticks can't both fire the request.
func (c *Controller) maybeRequestPersonaRefresh(ctx context.Context) {
	now := c.now()
	if !c.personaRefreshDue(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.personaRefreshDue(now) {
		return
	}
	c.clocks.lastPersonaStateRequest = now

	if c.Persona == nil {
		return
	}
	if err := c.Persona.RequestPersonaState(ctx, c.SteamID); err != nil {
		c.logger().WithError(err).WithField("steam_id", c.SteamID).Debug("persona state request failed")
	}
}

func (c *Controller) personaRefreshDue(now time.Time) bool {
	return now.After(c.clocks.lastPersonaStateRequest.Add(MinPersonaStateTTL)) &&
		now.After(c.clocks.lastAnnouncementCheck.Add(MinAnnouncementCheckTTL))
}

// maybeSendHeartbeat implements §4.3's heartbeat path, with the same
// double-checked gate under requests_lock.
func (c *Controller) maybeSendHeartbeat(ctx context.Context) {
	now := c.now()
	if !c.heartbeatDue(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.heartbeatDue(now) {
		return
	}

	if c.Directory == nil {
		return
	}
	err := c.Directory.Heartbeat(ctx, HeartbeatRequest{SteamID: c.SteamID, Guid: c.Guid})
	if err != nil {
		// Best-effort: leave last_heartbeat unchanged, keep
		// should_send_heartbeats as-is, retry next tick.
		c.logger().WithError(err).WithField("steam_id", c.SteamID).Debug("heartbeat failed")
		return
	}
	c.clocks.lastHeartbeat = now
}

func (c *Controller) heartbeatDue(now time.Time) bool {
	return c.clocks.shouldSendHeartbeats && !now.Before(c.clocks.lastHeartbeat.Add(MinHeartbeatTTL))
}

// OnPersonaState is invoked when the platform reports a profile change for
// this bot. nickname and avatarHash are both optional (nil means
// "unchanged"). It drives the announcement path of §4.3.
func (c *Controller) OnPersonaState(ctx context.Context, nickname, avatarHash *string) {
	now := c.now()

	c.mu.Lock()
	if nickname != nil {
		c.nickname = *nickname
	}
	if avatarHash != nil {
		c.avatarHash = *avatarHash
	}
	c.mu.Unlock()

	// The new nickname/avatarHash are retained above regardless of gating,
	// so an out-of-cadence push isn't lost — runAnnouncement picks up
	// whatever is currently stored whenever the announcement actually runs.
	if !c.announcementDue(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.announcementDue(now) {
		return
	}
	c.runAnnouncement(ctx, now)
}

func (c *Controller) announcementDue(now time.Time) bool {
	return !now.Before(c.clocks.lastAnnouncementCheck.Add(MinAnnouncementCheckTTL))
}

// runAnnouncement executes §4.3 steps 1-7. Caller holds mu; this method
// does not release it (that's the caller's job), matching the double-
// checked single-flight discipline: the gate was already re-checked right
// before this call.
func (c *Controller) runAnnouncement(ctx context.Context, now time.Time) {
	bot := BotAccount{}
	if c.Account != nil {
		bot = c.Account()
	}

	if c.Oracle == nil || !c.Oracle.Eligible(ctx, bot) {
		c.clocks.lastAnnouncementCheck = now
		c.clocks.shouldSendHeartbeats = false
		return
	}

	var token string
	if c.TradeToken != nil {
		t, err := c.TradeToken.TradeToken(ctx, c.SteamID)
		if err != nil {
			t = ""
		}
		token = t
	}
	if token == "" {
		c.clocks.lastAnnouncementCheck = now
		c.clocks.shouldSendHeartbeats = false
		return
	}

	accepted := bot.ConfiguredTypes.Intersect(AcceptedTypeSet())
	if accepted.Empty() {
		c.logger().WithField("steam_id", c.SteamID).
			Warn("announcement: configured matchable types do not intersect the accepted set")
		c.clocks.lastAnnouncementCheck = now
		c.clocks.shouldSendHeartbeats = false
		return
	}

	if c.Inventory == nil {
		c.clocks.shouldSendHeartbeats = false
		return
	}
	assets, err := c.Inventory.FetchInventory(ctx, c.SteamID, InventoryFetchOptions{
		TradableOnly: true,
		WantedTypes:  accepted,
	})
	if err != nil {
		// Absent, not empty: preserve the TTL clock so we retry next tick.
		c.clocks.shouldSendHeartbeats = false
		return
	}

	state := GroupInventory(assets)
	itemsCount := state.TotalItems()
	if itemsCount < MinItemsCount {
		c.clocks.lastAnnouncementCheck = now
		c.clocks.shouldSendHeartbeats = false
		return
	}

	if c.Directory == nil {
		c.clocks.shouldSendHeartbeats = false
		return
	}
	err = c.Directory.Announce(ctx, AnnounceRequest{
		SteamID:         c.SteamID,
		Guid:            c.Guid,
		Nickname:        c.nickname,
		AvatarHash:      c.avatarHash,
		GamesCount:      DistinctApps(assets),
		ItemsCount:      itemsCount,
		MatchableTypes:  accepted,
		MatchEverything: bot.MatchEverything,
		TradeToken:      token,
	})
	if err != nil {
		// No retry within this call; leave the clock unchanged so the next
		// persona-state event retries from scratch.
		c.clocks.shouldSendHeartbeats = false
		return
	}

	c.clocks.lastAnnouncementCheck = now
	c.clocks.shouldSendHeartbeats = true
}

// MarshalMatchableTypes encodes a TypeSet as the JSON array of numeric
// category codes the wire format expects for MatchableTypes.
func MarshalMatchableTypes(types TypeSet) ([]byte, error) {
	codes := make([]int, 0, len(types))
	for _, t := range types.Slice() {
		codes = append(codes, int(t))
	}
	return json.Marshal(codes)
}

// UnmarshalMatchableTypes decodes data in the same JSON-array-of-numeric-
// codes form MarshalMatchableTypes produces, for callers that persist a
// bot's configured types rather than only sending them over the wire.
// An unrecognized code is skipped rather than rejecting the whole set.
func UnmarshalMatchableTypes(data []byte) (TypeSet, error) {
	if len(data) == 0 {
		return make(TypeSet), nil
	}
	var codes []int
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("decode matchable types: %w", err)
	}
	types := make(TypeSet)
	for _, code := range codes {
		t := AssetType(code)
		if t.IsMatchable() {
			types[t] = struct{}{}
		}
	}
	return types, nil
}

// Snapshot returns a copy of the current lifecycle clocks, for diagnostics.
func (c *Controller) Snapshot() (lastAnnouncementCheck, lastHeartbeat, lastPersonaStateRequest time.Time, shouldSendHeartbeats bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clocks.lastAnnouncementCheck, c.clocks.lastHeartbeat, c.clocks.lastPersonaStateRequest, c.clocks.shouldSendHeartbeats
}

package agent

import (
	"context"
	"sync"
	"time"

	"steammatch/internal/matching"
	"steammatch/internal/models"
)

// maxRoundStatsKept bounds the in-memory round history httpapi's report
// download can export; older rounds simply fall off, matching the
// not-a-history-store intent.
const maxRoundStatsKept = 200

// Runtime bundles one bot's lifecycle controller, active-matching engine,
// and periodic trigger with a small in-memory round-statistics ring, giving
// the surrounding daemon (main.go) and the HTTP layer
// (internal/httpapi) a single object per bot to hold onto.
type Runtime struct {
	SteamID    uint64
	Lifecycle  *matching.Controller
	Engine     *matching.Engine
	Trigger    *matching.PeriodicTrigger

	mu    sync.Mutex
	stats []models.RoundStat
}

// MatchActively satisfies httpapi.Controller, delegating to the engine and
// recording a round-stat entry — built from the engine's own tallies of
// what actually happened, not the round count MatchActively returns — so an
// operator hitting the manual trigger endpoint gets an accurate summary in
// the exported report.
func (r *Runtime) MatchActively(ctx context.Context) (int, error) {
	started := time.Now()
	rounds, err := r.Engine.MatchActively(ctx)
	// A call that ran no round (failed guard, refused reentry) did nothing,
	// and the engine's counters still belong to an earlier or concurrent call.
	var counters matching.RoundCounters
	if rounds > 0 {
		counters = r.Engine.Counters()
	}
	r.record(models.RoundStat{
		SteamID:       r.SteamID,
		StartedAt:     started,
		FinishedAt:    time.Now(),
		CandidatesHit: counters.CandidatesVisited,
		TradesSent:    counters.TradesSent,
		ItemsGiven:    counters.ItemsGiven,
		ItemsTaken:    counters.ItemsTaken,
		Aborted:       err != nil,
		AbortReason:   errString(err),
	})
	return rounds, err
}

// RecentRoundStats satisfies httpapi.Controller.
func (r *Runtime) RecentRoundStats() []models.RoundStat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RoundStat, len(r.stats))
	copy(out, r.stats)
	return out
}

func (r *Runtime) record(s models.RoundStat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, s)
	if len(r.stats) > maxRoundStatsKept {
		r.stats = r.stats[len(r.stats)-maxRoundStatsKept:]
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package matching

import "time"

// Lifecycle TTL gates (§4.3).
const (
	MinAnnouncementCheckTTL = 6 * time.Hour
	MinHeartbeatTTL         = 10 * time.Minute
	MinPersonaStateTTL      = 8 * time.Hour
	MinItemsCount           = 100
)

// Periodic trigger cadence (§4.4).
const (
	TriggerPeriod = 8 * time.Hour
	// TriggerBaseDelay is the fixed part of the initial delay; the variable
	// part is load_balancing_delay_seconds * number_of_bots_in_process,
	// computed by the caller at construction time.
	TriggerBaseDelay = 1 * time.Hour
)

// Active-matching bounds (§4.5).
const (
	MaxMatchingRounds   = 10
	MaxMatchedBotsHard  = 40
	MaxMatchedBotsSoft  = 20
	InterRoundSleep     = 5 * time.Minute
)

package models

import (
	"time"

	"gorm.io/gorm"
)

// BotAccount is the persisted registry row for one trading bot process under
// this agent's control. The in-memory matching.BotAccount is hydrated from
// this row alone; the TOML profile (internal/config) only supplies the
// engine's trade limits.
type BotAccount struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	SteamID             uint64         `json:"steam_id" gorm:"uniqueIndex;not null"`
	Guid                string         `json:"guid" gorm:"uniqueIndex;not null"`
	Nickname            string         `json:"nickname"`
	AvatarHash          string         `json:"avatar_hash"`
	HasMobileAuth       bool           `json:"has_mobile_auth" gorm:"default:false"`
	TradeMatcherEnabled bool           `json:"trade_matcher_enabled" gorm:"default:false"`
	MatchActively       bool           `json:"match_actively" gorm:"default:false"`
	MatchEverything     bool           `json:"match_everything" gorm:"default:false"`
	ConfiguredTypes     string         `json:"configured_types" gorm:"type:text"` // JSON array of numeric type codes
	LoadBalancingSlot   int            `json:"load_balancing_slot" gorm:"default:0"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"index"`
}

func (BotAccount) TableName() string { return "bot_accounts" }

// BlacklistEntry is a counterparty a bot must never match against, seeded in
// bulk from a spreadsheet (cmd/seed-blacklist) and queried through
// internal/blacklist's cache-aside layer.
type BlacklistEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SteamID   uint64    `json:"steam_id" gorm:"uniqueIndex;not null"`
	Reason    string    `json:"reason"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (BlacklistEntry) TableName() string { return "blacklist_entries" }

// RoundStat is the summary of one MatchActively call (all of its rounds
// together), kept only for the lifetime of
// the process (not a persisted history store — see Non-goals) and exported
// on demand through internal/report. It is never written to the database;
// the gorm tag-free shape here just keeps it next to the models it
// describes.
type RoundStat struct {
	SteamID       uint64
	StartedAt     time.Time
	FinishedAt    time.Time
	CandidatesHit int
	TradesSent    int
	ItemsGiven    int
	ItemsTaken    int
	Aborted       bool
	AbortReason   string
}

package models

import "time"

// SteamCredentials stores the per-bot mobile-authenticator and login
// material, mirroring what Steamauto keeps in its maFile: shared_secret
// drives the TOTP login code, identity_secret drives confirmation signing.
type SteamCredentials struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	BotAccountID   uint      `json:"bot_account_id" gorm:"uniqueIndex;not null"`
	SteamUsername  string    `json:"steam_username"`
	SteamPassword  string    `json:"-" gorm:"type:text"`
	SharedSecret   string    `json:"-" gorm:"type:text"`
	IdentitySecret string    `json:"-" gorm:"type:text"`
	APIKey         string    `json:"-" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (SteamCredentials) TableName() string { return "steam_credentials" }

package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process-wide configuration, populated from the environment
// (and .env, loaded by the caller via godotenv before Load runs). Unlike
// the per-bot matching profile (see Profile in profile.go), these values
// are fixed for the lifetime of the process.
type Config struct {
	DatabaseURL             string `envconfig:"DATABASE_URL" required:"true"`
	RedisAddr               string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	DirectoryBaseURL        string `envconfig:"DIRECTORY_BASE_URL" required:"true"`
	PersonaRelayURL         string `envconfig:"PERSONA_RELAY_URL"`
	SteamAPIKey             string `envconfig:"STEAM_API_KEY"`
	AdminTokenHash          string `envconfig:"ADMIN_TOKEN_HASH"`
	Port                    string `envconfig:"PORT" default:"8080"`
	Environment             string `envconfig:"ENVIRONMENT" default:"development"`
	ProfilePath             string `envconfig:"PROFILE_PATH" default:"./config/profile.toml"`
	Guid                    string `envconfig:"GUID"`
	LoadBalancingDelaySecs  int    `envconfig:"LOAD_BALANCING_DELAY_SECONDS" default:"60"`
	BotsInProcess           int    `envconfig:"BOTS_IN_PROCESS" default:"1"`
}

// Load reads Config from the environment, generating a random Guid when
// GUID is unset. The generated value is not stored anywhere, so each run
// without GUID gets a different one; the daemon announces each bot with the
// guid column of its bot_accounts row, not with this field.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("matchbot", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Guid == "" {
		cfg.Guid = uuid.NewString()
	}
	return &cfg, nil
}

// Command matchbotd is the daemon entrypoint: it loads configuration, wires
// up the matching lifecycle and engine for every registered bot account,
// and serves the operator HTTP API until signaled to stop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"steammatch/internal/agent"
	"steammatch/internal/blacklist"
	"steammatch/internal/config"
	"steammatch/internal/database"
	"steammatch/internal/directory"
	"steammatch/internal/httpapi"
	"steammatch/internal/matching"
	"steammatch/internal/models"
	"steammatch/internal/steamweb"
	"steammatch/internal/wsevents"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("loading configuration")
	}

	db, err := database.Initialize(cfg.DatabaseURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("initializing database")
	}

	profiles, err := config.NewProfileStore(cfg.ProfilePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("loading matching profile")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	blacklistQuerier := blacklist.New(db, rdb, time.Hour)
	dirClient := directory.New(cfg.DirectoryBaseURL, 2)
	dirClient.Logger = logger

	var accounts []models.BotAccount
	if err := db.Find(&accounts).Error; err != nil {
		logger.WithError(err).Fatal("loading bot accounts")
	}

	runtimes := make(map[uint64]*agent.Runtime, len(accounts))
	controllers := make(map[uint64]*matching.Controller, len(accounts))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, row := range accounts {
		row := row
		var creds models.SteamCredentials
		if err := db.Where("bot_account_id = ?", row.ID).First(&creds).Error; err != nil {
			logger.WithError(err).WithField("steam_id", row.SteamID).Warn("no steam credentials on file, skipping bot")
			continue
		}

		web := steamweb.New(creds.APIKey, creds.IdentitySecret)
		oracle := &matching.Oracle{Publicity: web, APIKeys: web}

		botRow := row
		configuredTypes, err := matching.UnmarshalMatchableTypes([]byte(botRow.ConfiguredTypes))
		if err != nil {
			logger.WithError(err).WithField("steam_id", botRow.SteamID).Warn("malformed configured_types, treating as empty")
			configuredTypes = make(matching.TypeSet)
		}
		accountFn := func() matching.BotAccount {
			return matching.BotAccount{
				SteamID:             botRow.SteamID,
				Guid:                botRow.Guid,
				Nickname:            botRow.Nickname,
				AvatarHash:          botRow.AvatarHash,
				HasMobileAuth:       botRow.HasMobileAuth,
				TradeMatcherEnabled: botRow.TradeMatcherEnabled,
				MatchActively:       botRow.MatchActively,
				MatchEverything:     botRow.MatchEverything,
				ConfiguredTypes:     configuredTypes,
			}
		}

		lifecycle := &matching.Controller{
			SteamID:    botRow.SteamID,
			Guid:       botRow.Guid,
			Account:    accountFn,
			Oracle:     oracle,
			Directory:  dirClient,
			Inventory:  web,
			TradeToken: web,
			Persona:    web,
			Logger:     logger,
		}

		engine := &matching.Engine{
			Account:             accountFn,
			Connection:          web,
			Oracle:              oracle,
			Inventory:           web,
			Directory:           dirClient,
			Submitter:           web,
			Confirmer:           web,
			Blacklist:           blacklistQuerier,
			Logger:              logger,
			MaxTradesPerAccount: profiles.Current().MaxTradesPerAccount,
			MaxItemsPerTrade:    profiles.Current().MaxItemsPerTrade,
		}

		trigger := &matching.PeriodicTrigger{Engine: engine, Logger: logger}
		trigger.Start(ctx, time.Duration(cfg.LoadBalancingDelaySecs)*time.Second, i)

		runtimes[botRow.SteamID] = &agent.Runtime{SteamID: botRow.SteamID, Lifecycle: lifecycle, Engine: engine, Trigger: trigger}
		controllers[botRow.SteamID] = lifecycle

		go heartbeatLoop(ctx, lifecycle)
	}

	if cfg.PersonaRelayURL != "" {
		listener := wsevents.New(cfg.PersonaRelayURL, controllers, logger)
		go listener.Run(ctx)
	}

	botControllers := make(map[uint64]httpapi.Controller, len(runtimes))
	for id, rt := range runtimes {
		botControllers[id] = rt
	}
	router := httpapi.NewRouter(botControllers, cfg.AdminTokenHash)
	server := &http.Server{Addr: ":" + cfg.Port, Handler: router.Build()}

	go func() {
		logger.WithField("port", cfg.Port).Info("matchbotd listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

// heartbeatLoop drives Controller.OnHeartbeatTick on a fixed external
// cadence; the controller's own TTL gates decide whether any given tick
// actually does anything.
func heartbeatLoop(ctx context.Context, ctrl *matching.Controller) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctrl.OnHeartbeatTick(ctx)
		}
	}
}

package config

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// Profile holds the process-wide matching tunables: the per-counterparty
// trade limit and the per-trade item limit from §4.5. Per-bot preferences
// (TradeMatcherEnabled, MatchActively, MatchEverything, configured types)
// live on the bot_accounts row instead (models.BotAccount) — they are
// inherently per-installation, not something every bot in the process
// shares. ProfileStore reloads it from TOML when the file changes, but
// main.go copies the values into each Engine once at startup, so a reload
// does not change the limits of engines already built.
type Profile struct {
	MaxTradesPerAccount int `toml:"max_trades_per_account"`
	MaxItemsPerTrade    int `toml:"max_items_per_trade"`
}

// ProfileStore keeps the last-loaded Profile and refreshes it whenever the
// backing file changes, matching the teacher's pattern of watching
// configuration in place rather than requiring a process restart.
type ProfileStore struct {
	path   string
	logger *logrus.Logger

	mu      sync.RWMutex
	current Profile
}

// NewProfileStore loads path once synchronously, then starts a watcher that
// reloads on every write. The returned store is safe to read concurrently
// from any goroutine via Current.
func NewProfileStore(path string, logger *logrus.Logger) (*ProfileStore, error) {
	s := &ProfileStore{path: path, logger: logger}
	if err := s.reload(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}
	go s.watch(watcher)
	return s, nil
}

func (s *ProfileStore) watch(watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.WithError(err).Warn("profile reload failed, keeping previous values")
			} else {
				s.logger.Info("profile reloaded")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("profile watcher error")
		}
	}
}

func (s *ProfileStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return nil
}

// Current returns a copy of the most recently loaded profile.
func (s *ProfileStore) Current() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

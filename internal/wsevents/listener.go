package wsevents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"steammatch/internal/matching"
)

// personaStateEvent is the push notification shape this agent expects from
// its upstream Steam session relay: a profile change for one of the bots
// this process controls.
type personaStateEvent struct {
	SteamID    uint64  `json:"steam_id"`
	Nickname   *string `json:"nickname"`
	AvatarHash *string `json:"avatar_hash"`
}

// Listener maintains a websocket connection to the session relay and routes
// each persona-state push to the matching.Controller for the matching
// SteamID, driving the announcement path of §4.3.
type Listener struct {
	URL         string
	Controllers map[uint64]*matching.Controller
	Logger      *logrus.Logger

	dialer *websocket.Dialer
}

func New(url string, controllers map[uint64]*matching.Controller, logger *logrus.Logger) *Listener {
	return &Listener{
		URL:         url,
		Controllers: controllers,
		Logger:      logger,
		dialer:      &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}
}

// Run dials the relay and processes events until ctx is canceled,
// reconnecting with a fixed backoff on any read error.
func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.runOnce(ctx); err != nil {
			l.Logger.WithError(err).Warn("wsevents: connection lost, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (l *Listener) runOnce(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var evt personaStateEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			l.Logger.WithError(err).Debug("wsevents: malformed persona-state event")
			continue
		}
		ctrl, ok := l.Controllers[evt.SteamID]
		if !ok {
			continue
		}
		ctrl.OnPersonaState(ctx, evt.Nickname, evt.AvatarHash)
	}
}

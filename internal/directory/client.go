package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"steammatch/internal/matching"
)

// Client talks to the directory service's HTTP API (§6): heartbeat,
// announce, and the bot listing that feeds active matching. It rate-limits
// itself so a flock of bots sharing one directory can't hammer it during a
// load-balanced startup burst.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	baseURL string
	Logger  *logrus.Logger
}

// New builds a Client capped at requestsPerSecond (a burst of 1), against
// baseURL (e.g. "https://bot.example.com").
func New(baseURL string, requestsPerSecond float64) *Client {
	return &Client{
		http:    resty.New().SetTimeout(15 * time.Second).SetBaseURL(baseURL),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		baseURL: baseURL,
	}
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// Heartbeat satisfies matching.DirectoryClient.
func (c *Client) Heartbeat(ctx context.Context, req matching.HeartbeatRequest) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"SteamID": fmt.Sprint(req.SteamID),
			"Guid":    req.Guid,
		}).
		Post("/Api/HeartBeat")
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("heartbeat: directory returned %s", resp.Status())
	}
	return nil
}

// Announce satisfies matching.DirectoryClient.
func (c *Client) Announce(ctx context.Context, req matching.AnnounceRequest) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	encodedTypes, err := matching.MarshalMatchableTypes(req.MatchableTypes)
	if err != nil {
		return fmt.Errorf("announce: encoding matchable types: %w", err)
	}
	matchEverything := "0"
	if req.MatchEverything {
		matchEverything = "1"
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"SteamID":         fmt.Sprint(req.SteamID),
			"Guid":            req.Guid,
			"Nickname":        req.Nickname,
			"AvatarHash":      req.AvatarHash,
			"GamesCount":      fmt.Sprint(req.GamesCount),
			"ItemsCount":      fmt.Sprint(req.ItemsCount),
			"MatchableTypes":  string(encodedTypes),
			"MatchEverything": matchEverything,
			"TradeToken":      req.TradeToken,
		}).
		Post("/Api/Announce")
	if err != nil {
		return fmt.Errorf("announce: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("announce: directory returned %s", resp.Status())
	}
	return nil
}

// FetchBots satisfies matching.DirectoryClient: it retrieves the raw bot
// listing and decodes each entry with matching.DecodeListedUser, skipping
// (and logging at debug level) entries that fail validation rather than
// failing the whole fetch.
func (c *Client) FetchBots(ctx context.Context) ([]*matching.ListedUser, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.http.R().SetContext(ctx).Get("/Api/Bots")
	if err != nil {
		return nil, fmt.Errorf("fetch bots: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("fetch bots: decoding listing: %w", err)
	}

	out := make([]*matching.ListedUser, 0, len(raw))
	for _, entry := range raw {
		u, err := matching.DecodeListedUser(entry, c.Logger)
		if err != nil {
			if c.Logger != nil {
				c.Logger.WithError(err).Debug("dropping malformed directory entry")
			}
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

package steamweb

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"steammatch/internal/matching"
)

var apiKeyPattern = regexp.MustCompile(`Key:\s*([0-9A-F]{32})`)
var tradeTokenPattern = regexp.MustCompile(`trade_offer_access_token=([A-Za-z0-9_-]+)`)

// Client is the steamcommunity.com/api.steampowered.com collaborator this
// agent wires into matching.InventoryFetcher, matching.APIKeyValidator,
// matching.InventoryPublicityChecker, matching.TradeTokenProvider,
// matching.TradeOfferSubmitter and matching.ConfirmationAccepter. Per-bot
// session state lives entirely in the resty client's cookie jar, so callers
// need one Client per bot account.
type Client struct {
	apiKey         string
	identitySecret string
	http           *resty.Client
}

// New builds a Client with its own cookie jar, ready for Login.
func New(apiKey, identitySecret string) *Client {
	jar, _ := cookiejar.New(nil)
	http := resty.New().
		SetTimeout(30 * time.Second).
		SetCookieJar(jar)
	return &Client{apiKey: apiKey, identitySecret: identitySecret, http: http}
}

func (c *Client) Connected() bool {
	return c.cookieValue("steamcommunity.com", "steamLoginSecure") != ""
}

// FetchInventory satisfies matching.InventoryFetcher. It distinguishes a
// failed fetch (matching.ErrInventoryAbsent) from a successful-but-empty
// one, per §6's contract. It applies TradableOnly and WantedTypes;
// WantedSets and SkippedSets are not applied.
func (c *Client) FetchInventory(ctx context.Context, steamID uint64, opts matching.InventoryFetchOptions) ([]matching.Asset, error) {
	url := fmt.Sprintf("https://steamcommunity.com/inventory/%d/730/2?l=english&count=5000", steamID)
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, matching.ErrInventoryAbsent
	}

	var raw struct {
		Assets []struct {
			AssetID    string `json:"assetid"`
			ClassID    string `json:"classid"`
			InstanceID string `json:"instanceid"`
			Amount     string `json:"amount"`
		} `json:"assets"`
		Descriptions []struct {
			ClassID    string    `json:"classid"`
			InstanceID string    `json:"instanceid"`
			Tradable   int       `json:"tradable"`
			Tags       []itemTag `json:"tags"`
		} `json:"descriptions"`
		Success int `json:"success"`
	}
	if err := unmarshalJSON(resp.Body(), &raw); err != nil {
		return nil, matching.ErrInventoryAbsent
	}
	if raw.Success != 1 {
		return nil, matching.ErrInventoryAbsent
	}

	descByKey := make(map[string]int, len(raw.Descriptions))
	for i, d := range raw.Descriptions {
		descByKey[d.ClassID+"_"+d.InstanceID] = i
	}

	assets := make([]matching.Asset, 0, len(raw.Assets))
	for _, a := range raw.Assets {
		idx, ok := descByKey[a.ClassID+"_"+a.InstanceID]
		if !ok {
			continue
		}
		desc := raw.Descriptions[idx]
		if opts.TradableOnly && desc.Tradable == 0 {
			continue
		}
		classID, err := strconv.ParseUint(a.ClassID, 10, 64)
		if err != nil {
			continue
		}
		amount, err := strconv.ParseUint(a.Amount, 10, 32)
		if err != nil || amount == 0 {
			continue
		}
		assetType := classifyTags(desc.Tags)
		if !opts.WantedTypes.Empty() && !opts.WantedTypes.Contains(assetType) {
			continue
		}
		assets = append(assets, matching.Asset{
			ClassID:    classID,
			RealAppID:  730,
			Type:       assetType,
			Amount:     uint32(amount),
			AssetID:    a.AssetID,
			InstanceID: a.InstanceID,
		})
	}
	return assets, nil
}

type itemTag struct {
	Category     string `json:"category"`
	InternalName string `json:"internal_name"`
}

// classifyTags maps Steam's item tags to the four matchable asset types
// §2 cares about; anything else falls into matching.Other.
func classifyTags(tags []itemTag) matching.AssetType {
	for _, tag := range tags {
		switch tag.Category {
		case "item_class":
			switch tag.InternalName {
			case "item_class_2": // trading card
				return matching.TradingCard
			case "item_class_2_foil":
				return matching.FoilTradingCard
			case "item_class_3": // emoticon
				return matching.Emoticon
			case "item_class_4": // profile background
				return matching.ProfileBackground
			}
		}
	}
	return matching.Other
}

// IsInventoryPublic satisfies matching.InventoryPublicityChecker.
func (c *Client) IsInventoryPublic(ctx context.Context, steamID uint64) (bool, error) {
	url := fmt.Sprintf("https://steamcommunity.com/inventory/%d/730/2?l=english&count=1", steamID)
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return false, err
	}
	var raw struct {
		Success int `json:"success"`
	}
	if err := unmarshalJSON(resp.Body(), &raw); err != nil {
		return false, err
	}
	return raw.Success == 1, nil
}

// HasValidAPIKey satisfies matching.APIKeyValidator.
func (c *Client) HasValidAPIKey(ctx context.Context, steamID uint64) (bool, error) {
	url := fmt.Sprintf("https://api.steampowered.com/ISteamUser/GetPlayerSummaries/v2/?key=%s&steamids=%d", c.apiKey, steamID)
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return false, err
	}
	return resp.StatusCode() == 200, nil
}

// RequestPersonaState satisfies matching.PersonaStateRequester by asking
// for a fresh player summary; the agent's websocket listener
// (internal/wsevents) is what actually observes the resulting push event.
func (c *Client) RequestPersonaState(ctx context.Context, steamID uint64) error {
	url := fmt.Sprintf("https://api.steampowered.com/ISteamUser/GetPlayerSummaries/v2/?key=%s&steamids=%d", c.apiKey, steamID)
	_, err := c.http.R().SetContext(ctx).Get(url)
	return err
}

// TradeToken satisfies matching.TradeTokenProvider by scraping the bot's
// own trade offer settings page for its trade_offer_access_token.
func (c *Client) TradeToken(ctx context.Context, steamID uint64) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get("https://steamcommunity.com/my/tradeoffers/privacy")
	if err != nil {
		return "", err
	}
	m := tradeTokenPattern.FindSubmatch(resp.Body())
	if len(m) < 2 {
		return "", nil
	}
	return string(m[1]), nil
}

// SubmitTradeOffer satisfies matching.TradeOfferSubmitter.
func (c *Client) SubmitTradeOffer(ctx context.Context, req matching.TradeOfferRequest) (matching.TradeOfferResult, error) {
	sessionID := c.cookieValue("steamcommunity.com", "sessionid")
	if sessionID == "" {
		return matching.TradeOfferResult{}, fmt.Errorf("steamweb: no session")
	}

	tradeOfferMessage := buildOfferJSON(req)
	params := map[string]string{"trade_offer_access_token": req.RecipientToken}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"sessionid":          sessionID,
			"serverid":           "1",
			"partner":            strconv.FormatUint(req.RecipientSteamID, 10),
			"tradeoffermessage":  "",
			"json_tradeoffer":    tradeOfferMessage,
			"trade_offer_create_params": jsonObject(params),
		}).
		Post("https://steamcommunity.com/tradeoffer/new/send")
	if err != nil {
		return matching.TradeOfferResult{}, err
	}

	var res struct {
		TradeOfferID            string `json:"tradeofferid"`
		NeedsMobileConfirmation bool   `json:"needs_mobile_confirmation"`
	}
	if err := unmarshalJSON(resp.Body(), &res); err != nil || res.TradeOfferID == "" {
		return matching.TradeOfferResult{OK: false}, nil
	}
	result := matching.TradeOfferResult{OK: true}
	if res.NeedsMobileConfirmation {
		result.ConfirmationIDs = []string{res.TradeOfferID}
	}
	return result, nil
}

func buildOfferJSON(req matching.TradeOfferRequest) string {
	give := resolveAssets(req.Give, req.OwnAssets)
	take := resolveAssets(req.Take, req.CounterpartyAssets)
	return fmt.Sprintf(`{"newversion":true,"version":1,"me":{"assets":[%s],"currency":[],"ready":false},"them":{"assets":[%s],"currency":[],"ready":false}}`, give, take)
}

// resolveAssets picks, per class_id, `count` concrete and not-yet-used
// assets out of snapshot and emits Steam's per-item asset object keyed by
// assetid. classid alone only names the item template; Steam needs the
// specific instance to give, which only the inventory snapshot carries.
func resolveAssets(counts map[uint64]uint32, snapshot []matching.Asset) string {
	var b strings.Builder
	used := make(map[string]bool, len(snapshot))
	first := true
	for classID, count := range counts {
		remaining := count
		for _, a := range snapshot {
			if remaining == 0 {
				break
			}
			if a.ClassID != classID || a.AssetID == "" || used[a.AssetID] {
				continue
			}
			used[a.AssetID] = true
			remaining--
			if !first {
				b.WriteString(",")
			}
			first = false
			fmt.Fprintf(&b, `{"appid":%d,"contextid":"6","amount":1,"assetid":"%s"}`, a.RealAppID, a.AssetID)
		}
	}
	return b.String()
}

func jsonObject(m map[string]string) string {
	var b strings.Builder
	b.WriteString("{")
	first := true
	for k, v := range m {
		if !first {
			b.WriteString(",")
		}
		first = false
		fmt.Fprintf(&b, `"%s":"%s"`, k, v)
	}
	b.WriteString("}")
	return b.String()
}

// AcceptConfirmations satisfies matching.ConfirmationAccepter, signing each
// mobile confirmation request with identity_secret the way the Steam
// mobile app does.
func (c *Client) AcceptConfirmations(ctx context.Context, req matching.ConfirmationRequest) (bool, error) {
	if c.identitySecret == "" {
		return false, fmt.Errorf("steamweb: no identity secret configured")
	}
	now := time.Now()
	op := "cancel"
	if req.Accept {
		op = "allow"
	}
	key, err := confirmationKey(c.identitySecret, now, "conf")
	if err != nil {
		return false, err
	}

	allOK := true
	for _, id := range req.IDs {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"p":   strconv.FormatUint(req.ActorSteamID, 10),
				"a":   strconv.FormatUint(req.ActorSteamID, 10),
				"k":   key,
				"t":   strconv.FormatInt(now.Unix(), 10),
				"m":   "react",
				"tag": "conf",
				"op":  op,
				"cid": id,
			}).
			Get("https://steamcommunity.com/mobileconf/ajaxop")
		if err != nil {
			return false, err
		}
		var res struct {
			Success bool `json:"success"`
		}
		if err := unmarshalJSON(resp.Body(), &res); err != nil || !res.Success {
			allOK = false
		}
	}
	return allOK, nil
}

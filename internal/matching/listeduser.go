package matching

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// rawListedUser is the on-the-wire shape of one /Api/Bots directory entry.
// Every field is a pointer so that "missing from the JSON" (nil) can be
// told apart from "present with the zero value" — the matchable_* flags and
// match_everything are legitimately 0 most of the time, and json.Unmarshal
// into a plain int would make an absent key indistinguishable from a
// present zero.
type rawListedUser struct {
	SteamID              *uint64 `json:"steam_id" validate:"required"`
	TradeToken           *string `json:"trade_token" validate:"required"`
	GamesCount           *uint16 `json:"games_count" validate:"required"`
	ItemsCount           *uint16 `json:"items_count" validate:"required"`
	MatchEverything      *int    `json:"match_everything" validate:"required"`
	MatchableBackgrounds *int    `json:"matchable_backgrounds" validate:"required"`
	MatchableCards       *int    `json:"matchable_cards" validate:"required"`
	MatchableEmoticons   *int    `json:"matchable_emoticons" validate:"required"`
	MatchableFoilCards   *int    `json:"matchable_foil_cards" validate:"required"`
}

// ListedUser is the parsed, validated view of one directory entry.
type ListedUser struct {
	SteamID         uint64
	TradeToken      string
	MatchableTypes  TypeSet
	MatchEverything bool
	Score           float64 // cached games_count / items_count
}

var listedUserValidate = validator.New()

// DecodeListedUser decodes one directory entry from its wire form. Missing
// required fields reject the whole entry (returns a non-nil error). A
// matchable_* field holding anything other than literal 0 or 1 drops that
// one type from the set and logs a warning, but does not reject the entry.
func DecodeListedUser(raw json.RawMessage, logger *logrus.Logger) (*ListedUser, error) {
	var entry rawListedUser
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode directory entry: %w", err)
	}
	if err := listedUserValidate.Struct(entry); err != nil {
		return nil, fmt.Errorf("decode directory entry: %w", err)
	}

	if *entry.ItemsCount == 0 {
		// §3: items_count must be > 0 for score to be valid; treat zero as
		// invalid and drop the record.
		return nil, fmt.Errorf("decode directory entry %d: items_count is zero", *entry.SteamID)
	}

	types := make(TypeSet)
	addBoolField(types, TradingCard, *entry.MatchableCards, *entry.SteamID, logger)
	addBoolField(types, FoilTradingCard, *entry.MatchableFoilCards, *entry.SteamID, logger)
	addBoolField(types, Emoticon, *entry.MatchableEmoticons, *entry.SteamID, logger)
	addBoolField(types, ProfileBackground, *entry.MatchableBackgrounds, *entry.SteamID, logger)

	matchEverything, err := boolLiteral(*entry.MatchEverything)
	if err != nil {
		if logger != nil {
			logger.WithField("steam_id", *entry.SteamID).Warnf("directory entry: match_everything %v", err)
		}
		matchEverything = false
	}

	return &ListedUser{
		SteamID:         *entry.SteamID,
		TradeToken:      *entry.TradeToken,
		MatchableTypes:  types,
		MatchEverything: matchEverything,
		Score:           float64(*entry.GamesCount) / float64(*entry.ItemsCount),
	}, nil
}

// addBoolField adds t to types when v is the literal 1. v == 0 simply means
// "not matchable", which is not an error. Anything else is tolerated with a
// warning and treated as absent.
func addBoolField(types TypeSet, t AssetType, v int, steamID uint64, logger *logrus.Logger) {
	switch v {
	case 1:
		types[t] = struct{}{}
	case 0:
		// intentionally absent
	default:
		if logger != nil {
			logger.WithFields(logrus.Fields{"steam_id": steamID, "type": t.String(), "value": v}).
				Warn("directory entry: non-boolean matchable flag, dropping type")
		}
	}
}

func boolLiteral(v int) (bool, error) {
	switch v {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("expected 0 or 1, got %d", v)
	}
}

package matching

import "testing"

func TestDecodeListedUser_Valid(t *testing.T) {
	raw := []byte(`{
		"steam_id": 76561197960435530,
		"trade_token": "ABC1",
		"games_count": 50,
		"items_count": 250,
		"match_everything": 1,
		"matchable_backgrounds": 1,
		"matchable_cards": 1,
		"matchable_emoticons": 0,
		"matchable_foil_cards": 1
	}`)

	u, err := DecodeListedUser(raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.SteamID != 76561197960435530 {
		t.Fatalf("unexpected steam id: %d", u.SteamID)
	}
	if !u.MatchEverything {
		t.Fatal("expected match_everything true")
	}
	if u.MatchableTypes.Contains(Emoticon) {
		t.Fatal("emoticon should not be in the set")
	}
	if !u.MatchableTypes.Contains(TradingCard) || !u.MatchableTypes.Contains(FoilTradingCard) || !u.MatchableTypes.Contains(ProfileBackground) {
		t.Fatal("expected cards/foil/background in the set")
	}
	if got, want := u.Score, 50.0/250.0; got != want {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestDecodeListedUser_MissingField(t *testing.T) {
	raw := []byte(`{
		"steam_id": 1,
		"games_count": 1,
		"items_count": 1,
		"match_everything": 0,
		"matchable_backgrounds": 0,
		"matchable_cards": 0,
		"matchable_emoticons": 0,
		"matchable_foil_cards": 0
	}`)
	if _, err := DecodeListedUser(raw, nil); err == nil {
		t.Fatal("expected error for missing trade_token")
	}
}

func TestDecodeListedUser_ZeroItemsCountRejected(t *testing.T) {
	raw := []byte(`{
		"steam_id": 1, "trade_token": "x", "games_count": 1, "items_count": 0,
		"match_everything": 0, "matchable_backgrounds": 0, "matchable_cards": 0,
		"matchable_emoticons": 0, "matchable_foil_cards": 0
	}`)
	if _, err := DecodeListedUser(raw, nil); err == nil {
		t.Fatal("expected error for items_count == 0")
	}
}

func TestDecodeListedUser_NonBooleanMatchableFlagDropsType(t *testing.T) {
	raw := []byte(`{
		"steam_id": 1, "trade_token": "x", "games_count": 1, "items_count": 1,
		"match_everything": 1, "matchable_backgrounds": 0, "matchable_cards": 7,
		"matchable_emoticons": 0, "matchable_foil_cards": 0
	}`)
	u, err := DecodeListedUser(raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.MatchableTypes.Contains(TradingCard) {
		t.Fatal("expected trading card dropped due to non-boolean flag")
	}
}

func TestDecodeListedUser_RoundTripMatchableTypes(t *testing.T) {
	raw := []byte(`{
		"steam_id": 1, "trade_token": "x", "games_count": 1, "items_count": 1,
		"match_everything": 1, "matchable_backgrounds": 1, "matchable_cards": 1,
		"matchable_emoticons": 1, "matchable_foil_cards": 1
	}`)
	u, err := DecodeListedUser(raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	encoded, err := MarshalMatchableTypes(u.MatchableTypes)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(encoded) != `[1,2,3,4]` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
}

package matching

import "testing"

func TestGroupInventory_DropsNonMatchableTypes(t *testing.T) {
	assets := []Asset{
		{ClassID: 1, RealAppID: 730, Type: TradingCard, Amount: 2},
		{ClassID: 2, RealAppID: 730, Type: Other, Amount: 5},
	}
	state := GroupInventory(assets)
	if len(state) != 1 {
		t.Fatalf("expected one set key, got %d", len(state))
	}
	key := SetKey{RealAppID: 730, Type: TradingCard}
	if state[key][1] != 2 {
		t.Fatalf("expected count 2, got %d", state[key][1])
	}
}

func TestGroupInventory_HasSurplus(t *testing.T) {
	noSurplus := GroupInventory([]Asset{{ClassID: 1, RealAppID: 1, Type: Emoticon, Amount: 1}})
	if noSurplus.HasSurplus() {
		t.Fatal("expected no surplus with all counts == 1")
	}
	surplus := GroupInventory([]Asset{{ClassID: 1, RealAppID: 1, Type: Emoticon, Amount: 2}})
	if !surplus.HasSurplus() {
		t.Fatal("expected surplus with count == 2")
	}
}

func TestTypeSet_Intersect(t *testing.T) {
	a := NewTypeSet(TradingCard, Emoticon)
	b := NewTypeSet(Emoticon, ProfileBackground)
	got := a.Intersect(b)
	if !got.Contains(Emoticon) || got.Contains(TradingCard) || got.Contains(ProfileBackground) {
		t.Fatalf("unexpected intersection: %v", got)
	}
}

func TestAssetType_IsMatchable(t *testing.T) {
	for _, want := range AcceptedTypes() {
		if !want.IsMatchable() {
			t.Fatalf("%v should be matchable", want)
		}
	}
	if Other.IsMatchable() {
		t.Fatal("Other should not be matchable")
	}
}

func TestDistinctApps(t *testing.T) {
	assets := []Asset{
		{RealAppID: 730}, {RealAppID: 730}, {RealAppID: 440},
	}
	if got := DistinctApps(assets); got != 2 {
		t.Fatalf("expected 2 distinct apps, got %d", got)
	}
}

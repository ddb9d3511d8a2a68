package matching

import "testing"

// Boundary scenario 4 (§8): no swap should be accepted when the imbalance
// isn't steep enough.
func TestFindPairsForSet_EmptyRound(t *testing.T) {
	ours := map[uint64]uint32{1: 3, 2: 1}
	theirs := map[uint64]uint32{1: 5}

	pairs := findPairsForSet(ours, theirs, 1000)

	if len(pairs) != 0 {
		t.Fatalf("expected no pairs, got %v", pairs)
	}
	if ours[1] != 3 || ours[2] != 1 {
		t.Fatalf("ours mutated unexpectedly: %v", ours)
	}
}

// Boundary scenario 5 (§8): a single accepted swap.
func TestFindPairsForSet_SingleSwap(t *testing.T) {
	ours := map[uint64]uint32{10: 3, 11: 1} // A=10, B=11
	theirs := map[uint64]uint32{11: 2, 12: 1} // B=11, C=12

	pairs := findPairsForSet(ours, theirs, 2) // budget for exactly one pair (2 items)

	if len(pairs) != 1 {
		t.Fatalf("expected exactly one pair, got %v", pairs)
	}
	if pairs[0].OurItem != 10 || pairs[0].TheirItem != 11 {
		t.Fatalf("expected (A,B)=(10,11), got %+v", pairs[0])
	}
	if ours[10] != 2 || ours[11] != 2 {
		t.Fatalf("unexpected ours after swap: %v", ours)
	}
	if theirs[11] != 1 || theirs[12] != 1 {
		t.Fatalf("unexpected theirs after swap: %v", theirs)
	}
}

// Distribution monotonicity (§8): once the finder reaches a fixpoint, no
// further pair passes the acceptance test — running it again is a no-op.
func TestFindPairsForSet_ReachesFixpoint(t *testing.T) {
	ours := map[uint64]uint32{1: 5, 2: 1, 3: 1}
	theirs := map[uint64]uint32{2: 1, 3: 3, 4: 2}

	first := findPairsForSet(ours, theirs, 1000)
	if len(first) == 0 {
		t.Fatal("expected at least one accepted pair from an imbalanced set")
	}

	second := findPairsForSet(ours, theirs, 1000)
	if len(second) != 0 {
		t.Fatalf("expected fixpoint after first call, got further pairs: %v", second)
	}
}

// No-regression (§8): post-swap count of theirItem < pre-swap count of
// ourItem, for every accepted pair.
func TestFindPairsForSet_NoRegression(t *testing.T) {
	ours := map[uint64]uint32{1: 4, 2: 1}
	theirs := map[uint64]uint32{2: 3}

	preOur1 := ours[1]
	pairs := findPairsForSet(ours, theirs, 1000)
	if len(pairs) == 0 {
		t.Fatal("expected at least one accepted pair")
	}
	p := pairs[0]
	if p.OurItem != 1 {
		t.Fatalf("expected our_item=1, got %d", p.OurItem)
	}
	if ours[p.TheirItem] >= preOur1 {
		t.Fatalf("post-swap count of %d (%d) is not below pre-swap count of our_item (%d)", p.TheirItem, ours[p.TheirItem], preOur1)
	}
}

// Same-class pairs are never accepted: our_item.count > ours[our_item]+1 is
// never true.
func TestFindPairsForSet_NoSelfSwap(t *testing.T) {
	ours := map[uint64]uint32{1: 10}
	theirs := map[uint64]uint32{1: 10}

	pairs := findPairsForSet(ours, theirs, 1000)
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs for identical single-class states, got %v", pairs)
	}
}

// Budget stops the finder even when more pairs would otherwise be accepted.
func TestFindPairsForSet_BudgetCap(t *testing.T) {
	ours := map[uint64]uint32{1: 10}
	theirs := map[uint64]uint32{2: 1, 3: 1, 4: 1, 5: 1}

	pairs := findPairsForSet(ours, theirs, 4) // budget allows exactly two pairs (2 items each)
	if len(pairs) != 2 {
		t.Fatalf("expected exactly 2 pairs under a 4-item budget, got %d: %v", len(pairs), pairs)
	}
}

// Deterministic tie-break: with equal counts/holdings, class_id ascending
// decides the order (§9).
func TestFindPairsForSet_DeterministicTieBreak(t *testing.T) {
	ours := map[uint64]uint32{20: 3, 10: 3}
	theirs := map[uint64]uint32{200: 1, 100: 1}

	pairs := findPairsForSet(ours, theirs, 2)
	if len(pairs) != 1 {
		t.Fatalf("expected exactly one pair, got %v", pairs)
	}
	if pairs[0].OurItem != 10 {
		t.Fatalf("expected lower class_id (10) to be picked first, got %d", pairs[0].OurItem)
	}
	if pairs[0].TheirItem != 100 {
		t.Fatalf("expected lower class_id (100) to be picked first, got %d", pairs[0].TheirItem)
	}
}

package matching

import (
	"math"
	"sort"
)

// pair is one accepted swap within a single set key: we give ourItem and
// receive theirItem.
type pair struct {
	OurItem   uint64
	TheirItem uint64
}

// findPairsForSet runs the greedy pair-finder (§4.5) for a single set key.
// ours and theirs are mutated in place to reflect every accepted swap.
// budgetItems bounds how many items (2 per accepted pair) this call may add:
// no further pair is taken once budgetItems items have been added, so with
// an odd budget the last pair overshoots it by one. The caller subtracts
// what's already spent elsewhere in the current trade offer so the
// MAX_ITEMS_PER_TRADE-1 cap is enforced across sets, not per set.
//
// Ordering beyond the spec's stated primary keys (our count descending,
// their-item-by-our-holdings ascending) is unspecified by the source; this
// implementation imposes class_id ascending as the secondary key on both,
// per §9's tie-break note, so results are deterministic across runs.
func findPairsForSet(ours, theirs map[uint64]uint32, budgetItems int) []pair {
	var result []pair
	used := 0

	for used < budgetItems {
		ourItem, their, found := nextAcceptedPair(ours, theirs)
		if !found {
			break
		}
		applySwap(ours, theirs, ourItem, their)
		result = append(result, pair{OurItem: ourItem, TheirItem: their})
		used += 2
	}
	return result
}

// nextAcceptedPair scans our dupes (count-descending, class-id-ascending)
// against their classes (our-holdings-ascending, class-id-ascending) and
// returns the first pair that passes the acceptance test.
func nextAcceptedPair(ours, theirs map[uint64]uint32) (ourItem, theirItem uint64, ok bool) {
	for _, candidateOurs := range sortedOurDupes(ours) {
		for _, candidateTheirs := range sortedTheirClasses(theirs, ours) {
			ourAmountOfTheirItem := ours[candidateTheirs]
			if ours[candidateOurs] > ourAmountOfTheirItem+1 {
				return candidateOurs, candidateTheirs, true
			}
		}
	}
	return 0, 0, false
}

func applySwap(ours, theirs map[uint64]uint32, ourItem, theirItem uint64) {
	ours[ourItem]--
	if ours[ourItem] == 0 {
		delete(ours, ourItem)
	}
	ours[theirItem] = ours[theirItem] + 1

	theirs[theirItem]--
	if theirs[theirItem] == 0 {
		delete(theirs, theirItem)
	}
}

// sortedOurDupes returns class-ids held with count > 1, ordered by count
// descending then class-id ascending.
func sortedOurDupes(ours map[uint64]uint32) []uint64 {
	classes := make([]uint64, 0, len(ours))
	for classID, count := range ours {
		if count > 1 {
			classes = append(classes, classID)
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if ours[classes[i]] != ours[classes[j]] {
			return ours[classes[i]] > ours[classes[j]]
		}
		return classes[i] < classes[j]
	})
	return classes
}

// sortedTheirClasses returns their held class-ids, ordered by our current
// holdings of the same class ascending then class-id ascending. A class we
// don't hold at all sorts last, not first: the map's zero-value for "absent"
// would otherwise look identical to "we hold exactly zero" and wrongly
// outrank a class we already partially hold.
func sortedTheirClasses(theirs, ours map[uint64]uint32) []uint64 {
	classes := make([]uint64, 0, len(theirs))
	for classID := range theirs {
		classes = append(classes, classID)
	}
	sort.Slice(classes, func(i, j int) bool {
		hi, hj := ourHoldings(ours, classes[i]), ourHoldings(ours, classes[j])
		if hi != hj {
			return hi < hj
		}
		return classes[i] < classes[j]
	})
	return classes
}

// ourHoldings reports our count of classID, treating a class absent from
// ours as "last priority" rather than zero.
func ourHoldings(ours map[uint64]uint32, classID uint64) uint64 {
	if count, ok := ours[classID]; ok {
		return uint64(count)
	}
	return math.MaxUint64
}

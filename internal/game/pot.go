package game

import "slices"

// SidePot is one level of the pot partition. Eligible players are listed in
// seat order. Pots are ordered main pot first; every later pot's eligible
// set is a subset of the one before it.
type SidePot struct {
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligiblePlayerIds"`
}

func (p SidePot) clone() SidePot {
	return SidePot{Amount: p.Amount, Eligible: append([]string(nil), p.Eligible...)}
}

// PotContribution is one seat's share of the input to the side-pot
// partition: its total contribution for the hand and whether it folded.
type PotContribution struct {
	PlayerID string
	Amount   int
	Folded   bool
}

// CalculateSidePots partitions hand contributions into a main pot and side
// pots by all-in level. For each distinct contribution level, every seat
// chips in what it contributed between the previous level and this one;
// seats that folded contribute dead money but are not eligible to win.
// Consecutive pots with identical eligible sets are merged; non-adjacent
// identical sets stay separate.
func CalculateSidePots(contribs []PotContribution) []SidePot {
	levels := make([]int, 0, len(contribs))
	for _, c := range contribs {
		if c.Amount > 0 && !slices.Contains(levels, c.Amount) {
			levels = append(levels, c.Amount)
		}
	}
	slices.Sort(levels)

	var pots []SidePot
	prev := 0
	for _, level := range levels {
		var pot SidePot
		for _, c := range contribs {
			pot.Amount += max(0, min(c.Amount, level)-min(c.Amount, prev))
			if c.Amount >= level && !c.Folded {
				pot.Eligible = append(pot.Eligible, c.PlayerID)
			}
		}
		if pot.Amount > 0 && len(pot.Eligible) > 0 {
			pots = append(pots, pot)
		}
		prev = level
	}

	return mergeAdjacentPots(pots)
}

// mergeAdjacentPots joins consecutive pots whose eligible sets are equal.
func mergeAdjacentPots(pots []SidePot) []SidePot {
	if len(pots) < 2 {
		return pots
	}
	merged := pots[:1]
	for _, pot := range pots[1:] {
		last := &merged[len(merged)-1]
		if slices.Equal(last.Eligible, pot.Eligible) {
			last.Amount += pot.Amount
			continue
		}
		merged = append(merged, pot)
	}
	return merged
}

// PotTotal sums the amounts across pots.
func PotTotal(pots []SidePot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

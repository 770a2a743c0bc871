package evaluator

import (
	"fmt"
	"math/bits"

	"github.com/lox/holdem-arena/internal/deck"
)

// Category enumerates hand categories from weakest to strongest.
type Category int

const (
	HighCard Category = iota + 1
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// HandValue is the result of evaluating the best five-card hand from 5-7 cards.
// Rank is a total order over all hands; a higher Rank always wins. Hands with
// equal Rank are exact ties.
type HandValue struct {
	Category    Category
	Rank        int
	Description string
}

// Compare returns 1 if a beats b, -1 if b beats a, 0 for a tie.
func Compare(a, b HandValue) int {
	switch {
	case a.Rank > b.Rank:
		return 1
	case a.Rank < b.Rank:
		return -1
	default:
		return 0
	}
}

// Distinct-hand counts per category. The sum is the size of the total order.
const (
	straightFlushCount = 10
	fourOfAKindCount   = 13 * 12
	fullHouseCount     = 13 * 12
	flushCount         = 1277
	straightCount      = 10
	threeOfAKindCount  = 13 * 66
	twoPairCount       = 78 * 11
	onePairCount       = 13 * 220
	highCardCount      = 1277
)

// Internal strength indices: 0 is the royal flush, larger is weaker.
// Public Rank inverts this so higher wins.
const (
	baseStraightFlush = 0
	baseFourOfAKind   = baseStraightFlush + straightFlushCount
	baseFullHouse     = baseFourOfAKind + fourOfAKindCount
	baseFlush         = baseFullHouse + fullHouseCount
	baseStraight      = baseFlush + flushCount
	baseThreeOfAKind  = baseStraight + straightCount
	baseTwoPair       = baseThreeOfAKind + threeOfAKindCount
	baseOnePair       = baseTwoPair + twoPairCount
	baseHighCard      = baseOnePair + onePairCount
	totalRanks        = baseHighCard + highCardCount
)

// evalResult carries the numeric strength plus the headline ranks needed to
// build a description. hi/lo are card values (2-14), zero when unused.
type evalResult struct {
	rank int
	cat  Category
	hi   deck.Rank
	lo   deck.Rank
}

// Evaluate finds the best five-card hand among 5-7 cards.
func Evaluate(cards []deck.Card) (HandValue, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return HandValue{}, fmt.Errorf("evaluate needs 5-7 cards, got %d", len(cards))
	}

	var seen CardSet
	var suitMasks [4]uint16
	var rankMask uint16
	for _, c := range cards {
		if seen.Contains(c) {
			return HandValue{}, fmt.Errorf("duplicate card %s", c)
		}
		seen.Add(c)
		bit := uint16(1) << rankBit(c.Rank)
		suitMasks[c.Suit] |= bit
		rankMask |= bit
	}

	r := evaluateMasks(suitMasks, rankMask)
	return HandValue{
		Category:    r.cat,
		Rank:        r.rank,
		Description: describe(r),
	}, nil
}

// rankOf is the allocation-free scoring path used by the equity estimator.
// Callers must pass 5-7 distinct cards.
func rankOf(cards []deck.Card) int {
	var suitMasks [4]uint16
	var rankMask uint16
	for _, c := range cards {
		bit := uint16(1) << rankBit(c.Rank)
		suitMasks[c.Suit] |= bit
		rankMask |= bit
	}
	return evaluateMasks(suitMasks, rankMask).rank
}

// rankBit maps a card rank to its bit position (deuce=0 .. ace=12).
func rankBit(r deck.Rank) int {
	return int(r) - 2
}

func bitRank(bit uint8) deck.Rank {
	return deck.Rank(int(bit) + 2)
}

func describe(r evalResult) string {
	switch r.cat {
	case RoyalFlush:
		return "Royal Flush"
	case StraightFlush:
		return fmt.Sprintf("Straight Flush, %s High", r.hi.Name())
	case FourOfAKind:
		return fmt.Sprintf("Four of a Kind, %s", r.hi.Plural())
	case FullHouse:
		return fmt.Sprintf("Full House, %s over %s", r.hi.Plural(), r.lo.Plural())
	case Flush:
		return fmt.Sprintf("Flush, %s High", r.hi.Name())
	case Straight:
		return fmt.Sprintf("Straight, %s High", r.hi.Name())
	case ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind, %s", r.hi.Plural())
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", r.hi.Plural(), r.lo.Plural())
	case Pair:
		return fmt.Sprintf("Pair of %s", r.hi.Plural())
	default:
		return fmt.Sprintf("%s High", r.hi.Name())
	}
}

// finish converts an internal ascending-weakness index into the public
// descending order where higher Rank wins.
func finish(cat Category, internal int, hi, lo deck.Rank) evalResult {
	return evalResult{rank: totalRanks - internal, cat: cat, hi: hi, lo: lo}
}

// evaluateMasks scores a hand from its per-suit rank masks. A flush found
// first excludes quads and full houses in at most seven cards, so the early
// return is safe.
func evaluateMasks(suitMasks [4]uint16, rankMask uint16) evalResult {
	bestFlush := evalResult{}
	for _, suitMask := range suitMasks {
		if bits.OnesCount16(suitMask) < 5 {
			continue
		}
		if high := straightHighMask(suitMask); high > 0 {
			idxAsc := straightIndex(high)
			detail := straightFlushCount - 1 - idxAsc
			cat := StraightFlush
			if high == 12 {
				cat = RoyalFlush
			}
			return finish(cat, baseStraightFlush+detail, bitRank(high), 0)
		}
		topCards := findOrderedKickers(suitMask, nil, 5)
		idxAdj := adjustFiveCardIndex(comboIndex13of5[maskFromRanks(topCards)])
		detail := flushCount - 1 - int(idxAdj)
		r := finish(Flush, baseFlush+detail, bitRank(topCards[0]), 0)
		if r.rank > bestFlush.rank {
			bestFlush = r
		}
	}
	if bestFlush.rank > 0 {
		return bestFlush
	}

	s0, s1, s2, s3 := suitMasks[0], suitMasks[1], suitMasks[2], suitMasks[3]

	quadsMask := s0 & s1 & s2 & s3
	tripCandidates := (s0 & s1 & s2) | (s0 & s1 & s3) | (s0 & s2 & s3) | (s1 & s2 & s3)
	tripsMask := tripCandidates &^ quadsMask
	pairsMask := ((s0 & s1) | (s0 & s2) | (s0 & s3) | (s1 & s2) | (s1 & s3) | (s2 & s3)) &^ tripCandidates

	if quad := highestRank(quadsMask); quad >= 0 {
		quadRank := uint8(quad)
		kicker := findKicker(rankMask, []uint8{quadRank})
		idxAsc := int(quadRank)*12 + int(rankOrdinalAsc(kicker, []uint8{quadRank}))
		detail := fourOfAKindCount - 1 - idxAsc
		return finish(FourOfAKind, baseFourOfAKind+detail, bitRank(quadRank), 0)
	}

	if tripRank := highestRank(tripsMask); tripRank >= 0 {
		trip := uint8(tripRank)
		pairCandidates := pairsMask | (tripsMask &^ (1 << tripRank))
		if pairRank := highestRank(pairCandidates); pairRank >= 0 {
			pair := uint8(pairRank)
			idxAsc := int(trip)*12 + int(rankOrdinalAsc(pair, []uint8{trip}))
			detail := fullHouseCount - 1 - idxAsc
			return finish(FullHouse, baseFullHouse+detail, bitRank(trip), bitRank(pair))
		}
	}

	if high := straightHighMask(rankMask); high > 0 {
		idxAsc := straightIndex(high)
		detail := straightCount - 1 - idxAsc
		return finish(Straight, baseStraight+detail, bitRank(high), 0)
	}

	if tripRank := highestRank(tripsMask); tripRank >= 0 {
		trip := uint8(tripRank)
		kickers := findOrderedKickers(rankMask, []uint8{trip}, 2)
		idxAsc := int(trip)*66 + int(comboIndex12of2[maskFromOrdinals(kickers, []uint8{trip})])
		detail := threeOfAKindCount - 1 - idxAsc
		return finish(ThreeOfAKind, baseThreeOfAKind+detail, bitRank(trip), 0)
	}

	if pair1 := highestRank(pairsMask); pair1 >= 0 {
		highPair := uint8(pair1)
		if pair2 := highestRank(pairsMask &^ (1 << pair1)); pair2 >= 0 {
			lowPair := uint8(pair2)
			if lowPair > highPair {
				highPair, lowPair = lowPair, highPair
			}
			pairIdxAsc := comboIndex13of2[(1<<lowPair)|(1<<highPair)]
			kicker := findKicker(rankMask, []uint8{highPair, lowPair})
			kickerOrd := rankOrdinalAsc(kicker, []uint8{highPair, lowPair})
			idxAsc := int(pairIdxAsc)*11 + int(kickerOrd)
			detail := twoPairCount - 1 - idxAsc
			return finish(TwoPair, baseTwoPair+detail, bitRank(highPair), bitRank(lowPair))
		}
		kickers := findOrderedKickers(rankMask, []uint8{highPair}, 3)
		idxAsc := int(highPair)*220 + int(comboIndex12of3[maskFromOrdinals(kickers, []uint8{highPair})])
		detail := onePairCount - 1 - idxAsc
		return finish(Pair, baseOnePair+detail, bitRank(highPair), 0)
	}

	kickers := findOrderedKickers(rankMask, nil, 5)
	idxAdj := adjustFiveCardIndex(comboIndex13of5[maskFromRanks(kickers)])
	detail := highCardCount - 1 - int(idxAdj)
	return finish(HighCard, baseHighCard+detail, bitRank(kickers[0]), 0)
}

// highestRank returns the highest rank bit present in the mask (or -1 when empty).
func highestRank(mask uint16) int {
	if mask == 0 {
		return -1
	}
	return bits.Len16(mask) - 1
}

// findKicker finds the highest kicker excluding used ranks.
func findKicker(mask uint16, used []uint8) uint8 {
	available := mask &^ ranksMask(used)
	if available == 0 {
		return 0
	}
	return uint8(bits.Len16(available) - 1)
}

// findOrderedKickers finds the top n kickers in descending order, excluding used ranks.
func findOrderedKickers(mask uint16, used []uint8, n int) []uint8 {
	available := mask &^ ranksMask(used)
	kickers := make([]uint8, 0, n)
	for len(kickers) < n {
		if available == 0 {
			kickers = append(kickers, 0)
			continue
		}
		top := uint8(bits.Len16(available) - 1)
		kickers = append(kickers, top)
		available &^= 1 << top
	}
	return kickers
}

func ranksMask(ranks []uint8) uint16 {
	var mask uint16
	for _, r := range ranks {
		mask |= 1 << r
	}
	return mask
}

var comboIndex13of5 = func() [1 << 13]uint16 {
	var table [1 << 13]uint16
	var idx uint16
	for a := 0; a <= 8; a++ {
		for b := a + 1; b <= 9; b++ {
			for c := b + 1; c <= 10; c++ {
				for d := c + 1; d <= 11; d++ {
					for e := d + 1; e <= 12; e++ {
						mask := (1 << a) | (1 << b) | (1 << c) | (1 << d) | (1 << e)
						table[mask] = idx
						idx++
					}
				}
			}
		}
	}
	return table
}()

var comboIndex13of2 = func() [1 << 13]uint16 {
	var table [1 << 13]uint16
	var idx uint16
	for a := 0; a <= 11; a++ {
		for b := a + 1; b <= 12; b++ {
			table[(1<<a)|(1<<b)] = idx
			idx++
		}
	}
	return table
}()

var comboIndex12of2 = func() [1 << 12]uint16 {
	var table [1 << 12]uint16
	var idx uint16
	for a := 0; a <= 10; a++ {
		for b := a + 1; b <= 11; b++ {
			table[(1<<a)|(1<<b)] = idx
			idx++
		}
	}
	return table
}()

var comboIndex12of3 = func() [1 << 12]uint16 {
	var table [1 << 12]uint16
	var idx uint16
	for a := 0; a <= 9; a++ {
		for b := a + 1; b <= 10; b++ {
			for c := b + 1; c <= 11; c++ {
				table[(1<<a)|(1<<b)|(1<<c)] = idx
				idx++
			}
		}
	}
	return table
}()

// straightComboIndices lists, in ascending order, the 5-of-13 combination
// indices that form straights; they are excluded from flush and high-card
// detail spaces.
var straightComboIndices = func() [10]uint16 {
	var arr [10]uint16
	idx := 0
	wheelMask := (1 << 0) | (1 << 1) | (1 << 2) | (1 << 3) | (1 << 12)
	arr[idx] = comboIndex13of5[wheelMask]
	idx++
	for high := 4; high <= 12; high++ {
		mask := uint16(0)
		for r := high - 4; r <= high; r++ {
			mask |= 1 << r
		}
		arr[idx] = comboIndex13of5[mask]
		idx++
	}
	sortSmallUint16(arr[:])
	return arr
}()

func straightIndex(high uint8) int {
	if high == 3 { // wheel
		return 0
	}
	return int(high - 3)
}

func rankOrdinalAsc(rank uint8, excludes []uint8) uint8 {
	var offset uint8
	for _, ex := range excludes {
		if ex < rank {
			offset++
		}
	}
	return rank - offset
}

func maskFromRanks(ranks []uint8) uint16 {
	var mask uint16
	for _, r := range ranks {
		mask |= 1 << r
	}
	return mask
}

func maskFromOrdinals(ranks []uint8, excludes []uint8) uint16 {
	var mask uint16
	for _, r := range ranks {
		mask |= 1 << rankOrdinalAsc(r, excludes)
	}
	return mask
}

func sortSmallUint16(vals []uint16) {
	for i := 1; i < len(vals); i++ {
		v := vals[i]
		j := i - 1
		for j >= 0 && vals[j] > v {
			vals[j+1] = vals[j]
			j--
		}
		vals[j+1] = v
	}
}

func adjustFiveCardIndex(idx uint16) uint16 {
	var adjust uint16
	for _, s := range straightComboIndices {
		if idx > s {
			adjust++
		} else {
			break
		}
	}
	return idx - adjust
}

// straightHighMask returns the high bit of the best straight in the mask
// (0 if none). Bit 3 signals the wheel (five high).
func straightHighMask(mask uint16) uint8 {
	const wheelMask = 0x100F // Ace + 2-3-4-5
	mask &= 0x1FFF

	seq := mask & (mask >> 1) & (mask >> 2) & (mask >> 3) & (mask >> 4)
	if seq != 0 {
		low := uint8(bits.Len16(seq) - 1)
		return low + 4
	}

	if mask&wheelMask == wheelMask {
		return 3
	}
	return 0
}

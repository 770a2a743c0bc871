package deck

import (
	rand "math/rand/v2"
)

// Deck represents a deck of playing cards
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a full ordered 52-card deck drawing randomness from rng
func New(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}
	d.Reset()
	return d
}

// Excluding creates a deck containing every card not in known.
// Used by the equity estimator to enumerate unseen cards.
func Excluding(rng *rand.Rand, known ...Card) *Deck {
	d := New(rng)
	d.Remove(known...)
	return d
}

// Stacked creates a deck holding exactly the given cards, dealt in the
// order given. Stacked decks carry no randomness source and must not be
// shuffled or reset.
func Stacked(cards ...Card) *Deck {
	return &Deck{cards: append([]Card(nil), cards...)}
}

// Reset restores the deck to the full 52 cards in canonical order
func (d *Deck) Reset() {
	d.cards = d.cards[:0]
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
}

// Shuffle randomizes the order of cards in the deck (Fisher-Yates)
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// DealOne removes and returns the top card from the deck
func (d *Deck) DealOne() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}

	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// Deal deals n cards from the deck, fewer if the deck runs out
func (d *Deck) Deal(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}

	cards := make([]Card, n)
	for i := 0; i < n; i++ {
		if card, ok := d.DealOne(); ok {
			cards[i] = card
		}
	}

	return cards
}

// Remove deletes the given cards from the deck wherever they sit,
// returning how many were actually present
func (d *Deck) Remove(cards ...Card) int {
	removed := 0
	for _, c := range cards {
		for i, have := range d.cards {
			if have == c {
				d.cards = append(d.cards[:i], d.cards[i+1:]...)
				removed++
				break
			}
		}
	}
	return removed
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Empty returns true if the deck has no cards left
func (d *Deck) Empty() bool {
	return len(d.cards) == 0
}

// Cards returns a copy of the cards currently in the deck, in order
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

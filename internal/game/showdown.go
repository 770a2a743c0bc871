package game

import (
	"fmt"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/evaluator"
)

// foldWinDescription is recorded when a hand ends without a showdown.
const foldWinDescription = "Opponents folded"

// resolveFoldWin awards everything contributed this hand to the lone seat
// still in it. No cards are revealed.
func (t *Table) resolveFoldWin() error {
	in := t.seatsInHand()
	if len(in) != 1 {
		return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber,
			Reason: fmt.Sprintf("fold win with %d seats in hand", len(in))}
	}
	winner := in[0]

	total := 0
	for _, s := range t.seats {
		total += s.BetThisHand
	}

	winners := []Winner{{
		PlayerID:    winner.PlayerID,
		PlayerName:  winner.PlayerName,
		SeatIndex:   winner.Index,
		Amount:      total,
		Description: foldWinDescription,
	}}
	payouts := map[int]int{winner.Index: total}
	return t.completeHand(winners, payouts, total, false)
}

// resolveShowdown evaluates every seat still in the hand against the full
// board and distributes each pot to its best eligible hands. Ties split the
// pot integer-equally; any remainder goes to the tied winner closest to
// seat zero.
func (t *Table) resolveShowdown() error {
	if len(t.community) != 5 {
		return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber,
			Reason: fmt.Sprintf("showdown with %d community cards", len(t.community))}
	}

	values := make(map[int]evaluator.HandValue)
	seatByPlayer := make(map[string]*Seat)
	for _, s := range t.seatsInHand() {
		if len(s.HoleCards) != 2 {
			return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber,
				Reason: fmt.Sprintf("seat %d at showdown with %d hole cards", s.Index, len(s.HoleCards))}
		}
		cards := make([]deck.Card, 0, 7)
		cards = append(cards, s.HoleCards...)
		cards = append(cards, t.community...)
		value, err := evaluator.Evaluate(cards)
		if err != nil {
			return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber,
				Reason: fmt.Sprintf("evaluating seat %d: %v", s.Index, err)}
		}
		values[s.Index] = value
		seatByPlayer[s.PlayerID] = s
	}

	payouts := make(map[int]int)
	total := 0
	for _, pot := range t.pots {
		total += pot.Amount

		// Pot eligibility is by player id; keep winners in seat order so
		// the remainder assignment is deterministic.
		var contenders []*Seat
		for _, s := range t.seats {
			if _, ok := values[s.Index]; !ok {
				continue
			}
			for _, pid := range pot.Eligible {
				if s.PlayerID == pid {
					contenders = append(contenders, s)
					break
				}
			}
		}
		if len(contenders) == 0 {
			continue
		}

		winners := contenders[:1]
		for _, s := range contenders[1:] {
			switch evaluator.Compare(values[s.Index], values[winners[0].Index]) {
			case 1:
				winners = []*Seat{s}
			case 0:
				winners = append(winners, s)
			}
		}

		share := pot.Amount / len(winners)
		remainder := pot.Amount % len(winners)
		for i, s := range winners {
			amount := share
			if i == 0 {
				amount += remainder
			}
			payouts[s.Index] += amount
		}
	}

	var winners []Winner
	for _, s := range t.seats {
		amount, ok := payouts[s.Index]
		if !ok || amount == 0 {
			continue
		}
		winners = append(winners, Winner{
			PlayerID:    s.PlayerID,
			PlayerName:  s.PlayerName,
			SeatIndex:   s.Index,
			Amount:      amount,
			Description: values[s.Index].Description,
		})
	}

	return t.completeHand(winners, payouts, total, true)
}

package game

import "fmt"

// validActionsFor derives the legal actions for a seat given the street's
// current bet and minimum raise. Raise bounds are raise-to levels: the
// minimum is a full min-raise (or the seat's all-in level when it cannot
// cover one) and the maximum is the seat's all-in level.
func validActionsFor(seat *Seat, currentBet, minRaise int) []ValidAction {
	if seat == nil || seat.Status != SeatActive {
		return nil
	}

	toCall := currentBet - seat.BetThisRound
	allInLevel := seat.BetThisRound + seat.Stack
	actions := []ValidAction{{Action: Fold}}

	switch {
	case toCall <= 0:
		actions = append(actions, ValidAction{Action: Check})
		if seat.Stack > 0 {
			actions = append(actions, ValidAction{
				Action:    Raise,
				MinAmount: min(currentBet+minRaise, allInLevel),
				MaxAmount: allInLevel,
			})
		}
	case toCall >= seat.Stack:
		// Can only call all-in short.
		actions = append(actions, ValidAction{Action: AllIn, MinAmount: seat.Stack, MaxAmount: seat.Stack})
	default:
		actions = append(actions, ValidAction{Action: Call, MinAmount: toCall, MaxAmount: toCall})
		if seat.Stack > toCall {
			actions = append(actions, ValidAction{
				Action:    Raise,
				MinAmount: min(currentBet+minRaise, allInLevel),
				MaxAmount: allInLevel,
			})
		}
		actions = append(actions, ValidAction{Action: AllIn, MinAmount: seat.Stack, MaxAmount: seat.Stack})
	}

	return actions
}

// actionAllowed reports whether action appears in the valid set.
func actionAllowed(valid []ValidAction, action Action) bool {
	for _, va := range valid {
		if va.Action == action {
			return true
		}
	}
	return false
}

// applyAction mutates the acting seat and the street betting state. The
// returned amount is what gets recorded: chips paid for CALL and ALL_IN, the
// final raise-to level for RAISE, zero otherwise. The caller has already
// checked that the action is in the seat's valid set.
func (t *Table) applyAction(seat *Seat, action Action, amount int) (int, error) {
	toCall := t.currentBet - seat.BetThisRound
	recorded := 0

	switch action {
	case Fold:
		seat.Status = SeatFolded

	case Check:
		if toCall > 0 {
			return 0, fmt.Errorf("%w: check facing a bet of %d", ErrInvalidAction, toCall)
		}

	case Call:
		pay := min(toCall, seat.Stack)
		seat.Stack -= pay
		seat.BetThisRound += pay
		seat.BetThisHand += pay
		recorded = pay

	case Raise:
		// Amount is the target raise-to level, clamped to a full min-raise
		// below and the seat's all-in level above. A raise capped below the
		// min-raise level is a short all-in and does not reopen betting.
		level := clamp(amount, t.currentBet+t.minRaise, seat.BetThisRound+seat.Stack)
		pay := level - seat.BetThisRound
		if pay <= 0 || pay > seat.Stack {
			return 0, fmt.Errorf("%w: raise to %d from bet %d with stack %d", ErrInvalidAction, level, seat.BetThisRound, seat.Stack)
		}
		seat.Stack -= pay
		seat.BetThisRound = level
		seat.BetThisHand += pay
		if increment := level - t.currentBet; increment >= t.minRaise {
			t.minRaise = increment
			t.reopenBetting(seat.Index)
		}
		if level > t.currentBet {
			t.currentBet = level
		}
		recorded = level

	case AllIn:
		pay := seat.Stack
		seat.Stack = 0
		seat.BetThisRound += pay
		seat.BetThisHand += pay
		if seat.BetThisRound > t.currentBet {
			// A short all-in moves the current bet without reopening.
			if increment := seat.BetThisRound - t.currentBet; increment >= t.minRaise {
				t.minRaise = increment
				t.reopenBetting(seat.Index)
			}
			t.currentBet = seat.BetThisRound
		}
		recorded = pay

	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}

	seat.HasActed = true
	if seat.Status == SeatActive && seat.Stack == 0 {
		seat.Status = SeatAllIn
	}
	return recorded, nil
}

// reopenBetting clears hasActed on every other active seat so each gets a
// chance to respond to a full raise.
func (t *Table) reopenBetting(raiserIndex int) {
	for _, s := range t.seats {
		if s.Index != raiserIndex && s.Status == SeatActive {
			s.HasActed = false
		}
	}
}

// activeSeats returns seats that can still make decisions this street.
func (t *Table) activeSeats() []*Seat {
	var active []*Seat
	for _, s := range t.seats {
		if s.Status == SeatActive {
			active = append(active, s)
		}
	}
	return active
}

// seatsInHand returns seats still contesting the pot (active or all-in).
func (t *Table) seatsInHand() []*Seat {
	var in []*Seat
	for _, s := range t.seats {
		if s.InHand() {
			in = append(in, s)
		}
	}
	return in
}

// nextActiveFrom scans clockwise starting at from (inclusive) for the next
// seat that can act. Returns -1 when none can.
func (t *Table) nextActiveFrom(from int) int {
	n := len(t.seats)
	for i := 0; i < n; i++ {
		idx := ((from+i)%n + n) % n
		if t.seats[idx].Status == SeatActive {
			return idx
		}
	}
	return -1
}

// firstToAct determines the seat that opens the current street. Preflop in
// heads-up play the dealer (who posted the small blind) acts first; with
// more players the first active seat clockwise from the big blind opens.
// Postflop the first active seat clockwise from the button opens.
func (t *Table) firstToAct() int {
	if t.phase == PhasePreflop {
		if t.dealtIn == 2 {
			return t.nextActiveFrom(t.button)
		}
		return t.nextActiveFrom(t.bbIndex + 1)
	}
	return t.nextActiveFrom(t.button + 1)
}

// roundComplete reports whether the current betting round is finished:
// every active seat has acted and matched the current bet. With one active
// seat the round ends once that seat has acted (any short excess comes back
// through the pot partition); with none it ends immediately.
func (t *Table) roundComplete() bool {
	active := t.activeSeats()
	switch len(active) {
	case 0:
		return true
	case 1:
		return active[0].HasActed
	}
	for _, s := range active {
		if !s.HasActed || s.BetThisRound < t.currentBet {
			return false
		}
	}
	return true
}

// handOverEarly reports whether at most one seat is still contesting.
func (t *Table) handOverEarly() bool {
	return len(t.seatsInHand()) <= 1
}

// shouldSkipToShowdown reports whether betting is exhausted: more than one
// seat contests the pot but at most one can still act.
func (t *Table) shouldSkipToShowdown() bool {
	return len(t.seatsInHand()) > 1 && len(t.activeSeats()) <= 1
}

// resetStreet clears per-street state ahead of the next betting round.
func (t *Table) resetStreet() {
	for _, s := range t.seats {
		if s.InHand() {
			s.BetThisRound = 0
			s.HasActed = false
		}
	}
	t.currentBet = 0
	t.minRaise = t.cfg.BigBlind
}

// clamp bounds v to [lo, hi]; when the range is inverted (an all-in short
// of a full raise) the upper bound wins.
func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

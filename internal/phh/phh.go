// Package phh archives completed hands in the poker hand history (PHH)
// interchange format, one flat TOML document per hand. The engine never
// discloses hole cards, so deals are recorded as unknown; everything public
// round-trips: blinds, the full betting sequence, board cards and the
// resulting stacks.
package phh

import (
	"fmt"
	"strings"
	"time"

	"github.com/lox/holdem-arena/internal/game"
)

// VariantNoLimitHoldem is the PHH variant code for no-limit Texas hold'em.
const VariantNoLimitHoldem = "NT"

// UnknownHoleCards is the PHH placeholder for a deal the recorder cannot
// see.
const UnknownHoleCards = "????"

// Meta describes the game a hand was dealt under. A HandResult records what
// happened; the variant and blind structure come from the table
// configuration.
type Meta struct {
	Variant    string
	SmallBlind int
	BigBlind   int
	Ante       int
}

// Hand is one completed hand in PHH format. Field order follows the
// serialized document.
type Hand struct {
	Variant           string   `toml:"variant"`
	Table             string   `toml:"table,omitempty"`
	SeatCount         int      `toml:"seat_count,omitempty"`
	Seats             []int    `toml:"seats,omitempty"`
	Antes             []int    `toml:"antes"`
	BlindsOrStraddles []int    `toml:"blinds_or_straddles"`
	MinBet            int      `toml:"min_bet"`
	StartingStacks    []int    `toml:"starting_stacks"`
	FinishingStacks   []int    `toml:"finishing_stacks,omitempty"`
	Winnings          []int    `toml:"winnings,omitempty"`
	Actions           []string `toml:"actions"`
	Players           []string `toml:"players,omitempty"`
	HandID            string   `toml:"hand"`
	Time              string   `toml:"time,omitempty"`
	TimeZone          string   `toml:"time_zone,omitempty"`
	Day               int      `toml:"day,omitempty"`
	Month             int      `toml:"month,omitempty"`
	Year              int      `toml:"year,omitempty"`
}

// street tracks per-player commitment on one betting round so actions the
// engine records as chips paid can be replayed as the raise-to levels PHH
// expects.
type street struct {
	committed map[string]int
	high      int
}

func newStreet(capacity int) *street {
	return &street{committed: make(map[string]int, capacity)}
}

// Build assembles the PHH document for one completed hand. Player numbering
// follows seat order, hole cards are recorded as unknown and board deals are
// inserted at street boundaries, including the runout after an all-in.
func Build(result game.HandResult, meta Meta, at time.Time) (Hand, error) {
	if len(result.Seats) == 0 {
		return Hand{}, fmt.Errorf("hand %d on table %s has no seats", result.HandNumber, result.TableID)
	}
	variant := meta.Variant
	if variant == "" {
		variant = VariantNoLimitHoldem
	}

	hand := Hand{
		Variant:   variant,
		Table:     result.TableID,
		SeatCount: len(result.Seats),
		MinBet:    meta.BigBlind,
		HandID:    fmt.Sprintf("%s-%05d", result.TableID, result.HandNumber),
	}
	if !at.IsZero() {
		utc := at.UTC()
		hand.Time = utc.Format("15:04:05")
		hand.TimeZone = "UTC"
		hand.Day = utc.Day()
		hand.Month = int(utc.Month())
		hand.Year = utc.Year()
	}

	// Player numbers are 1-based and follow seat order.
	numbers := make(map[int]int, len(result.Seats))
	wonBy := make(map[string]int, len(result.Winners))
	for _, w := range result.Winners {
		wonBy[w.PlayerID] += w.Amount
	}

	n := len(result.Seats)
	hand.Seats = make([]int, n)
	hand.Players = make([]string, n)
	hand.Antes = make([]int, n)
	hand.BlindsOrStraddles = make([]int, n)
	hand.StartingStacks = make([]int, n)
	hand.FinishingStacks = make([]int, n)
	hand.Winnings = make([]int, n)
	for i, s := range result.Seats {
		numbers[s.SeatIndex] = i + 1
		hand.Seats[i] = s.SeatIndex + 1
		hand.Players[i] = s.PlayerName
		hand.Antes[i] = meta.Ante
		hand.StartingStacks[i] = s.Stack
		hand.Winnings[i] = wonBy[s.PlayerID]
		hand.FinishingStacks[i] = s.Stack - result.Contributions[s.PlayerID] + wonBy[s.PlayerID]
	}
	// Forced bets are capped at the short stack, like the engine posts them.
	if i, ok := numbers[result.SmallBlindSeat]; ok {
		hand.BlindsOrStraddles[i-1] = min(meta.SmallBlind, hand.StartingStacks[i-1])
	}
	if i, ok := numbers[result.BigBlindSeat]; ok {
		hand.BlindsOrStraddles[i-1] = min(meta.BigBlind, hand.StartingStacks[i-1])
	}

	actions := make([]string, 0, n+len(result.Actions)+3)
	for i := range result.Seats {
		actions = append(actions, fmt.Sprintf("d dh p%d %s", i+1, UnknownHoleCards))
	}

	dealt := 0
	emitBoard := func(upto int) {
		if upto > len(result.CommunityCards) {
			upto = len(result.CommunityCards)
		}
		if upto <= dealt {
			return
		}
		var b strings.Builder
		b.WriteString("d db ")
		for _, c := range result.CommunityCards[dealt:upto] {
			b.WriteString(c.String())
		}
		actions = append(actions, b.String())
		dealt = upto
	}

	st := newStreet(n)
	st.high = meta.BigBlind
	for i, blind := range hand.BlindsOrStraddles {
		if blind > 0 {
			st.committed[result.Seats[i].PlayerID] = blind
		}
	}

	phase := game.PhasePreflop
	for _, rec := range result.Actions {
		if rec.Phase != phase && rec.Phase.Betting() {
			for _, upto := range []int{3, 4, 5} {
				if upto <= boardCount(rec.Phase) {
					emitBoard(upto)
				}
			}
			st = newStreet(n)
			phase = rec.Phase
		}
		num, ok := numbers[rec.SeatIndex]
		if !ok {
			return Hand{}, fmt.Errorf("hand %s: action by undealt seat %d", hand.HandID, rec.SeatIndex)
		}
		line, err := formatAction(num, rec, st)
		if err != nil {
			return Hand{}, fmt.Errorf("hand %s: %w", hand.HandID, err)
		}
		actions = append(actions, line)
	}
	// Streets revealed after the last action are the all-in runout.
	for _, upto := range []int{3, 4, 5} {
		emitBoard(upto)
	}

	hand.Actions = actions
	return hand, nil
}

// formatAction renders one record as a PHH action line and folds it into the
// street state. The engine records chips paid for calls and all-ins and the
// raise-to level for raises; PHH wants "cc" for any call and "cbr" with the
// round total for anything that sets a new price.
func formatAction(num int, rec game.ActionRecord, st *street) (string, error) {
	player := fmt.Sprintf("p%d", num)
	switch rec.Action {
	case game.Fold:
		return player + " f", nil
	case game.Check:
		return player + " cc", nil
	case game.Call:
		st.committed[rec.PlayerID] += rec.Amount
		return player + " cc", nil
	case game.Raise:
		st.committed[rec.PlayerID] = rec.Amount
		if rec.Amount > st.high {
			st.high = rec.Amount
		}
		return fmt.Sprintf("%s cbr %d", player, rec.Amount), nil
	case game.AllIn:
		level := st.committed[rec.PlayerID] + rec.Amount
		st.committed[rec.PlayerID] = level
		if level <= st.high {
			// Short all-in that only calls.
			return player + " cc", nil
		}
		st.high = level
		return fmt.Sprintf("%s cbr %d", player, level), nil
	default:
		return "", fmt.Errorf("unknown action %s", rec.Action)
	}
}

// boardCount is the number of community cards on the table once the given
// street is being bet.
func boardCount(phase game.Phase) int {
	switch phase {
	case game.PhaseFlop:
		return 3
	case game.PhaseTurn:
		return 4
	case game.PhaseRiver:
		return 5
	default:
		return 0
	}
}

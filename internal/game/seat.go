package game

import (
	"fmt"

	"github.com/lox/holdem-arena/internal/deck"
)

// SeatStatus tracks where a seat is in the hand lifecycle.
type SeatStatus int

const (
	SeatEmpty SeatStatus = iota
	SeatWaiting
	SeatActive
	SeatFolded
	SeatAllIn
	SeatSittingOut
)

var seatStatusNames = [...]string{"EMPTY", "WAITING", "ACTIVE", "FOLDED", "ALL_IN", "SITTING_OUT"}

func (s SeatStatus) String() string {
	if s < SeatEmpty || s > SeatSittingOut {
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
	return seatStatusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s SeatStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SeatStatus) UnmarshalText(text []byte) error {
	for i, name := range seatStatusNames {
		if name == string(text) {
			*s = SeatStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown seat status %q", string(text))
}

// Position is a seat's label relative to the dealer button.
type Position int

const (
	PositionNone Position = iota
	Button
	SmallBlind
	BigBlind
	UnderTheGun
	UnderTheGunPlusOne
	Cutoff
)

var positionNames = [...]string{"", "BTN", "SB", "BB", "UTG", "UTG1", "CO"}

func (p Position) String() string {
	if p < PositionNone || p > Cutoff {
		return fmt.Sprintf("POSITION(%d)", int(p))
	}
	return positionNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// positionsFor returns the position labels clockwise from the button for a
// hand with n dealt-in seats. In heads-up play the button also posts the
// small blind.
func positionsFor(n int) []Position {
	switch n {
	case 2:
		return []Position{Button, BigBlind}
	case 3:
		return []Position{Button, SmallBlind, BigBlind}
	case 4:
		return []Position{Button, SmallBlind, BigBlind, Cutoff}
	case 5:
		return []Position{Button, SmallBlind, BigBlind, UnderTheGun, Cutoff}
	case 6:
		return []Position{Button, SmallBlind, BigBlind, UnderTheGun, UnderTheGunPlusOne, Cutoff}
	}
	return nil
}

// Seat is one chair at a table. Seats are owned exclusively by their Table;
// everything outside the table reads them through snapshot copies.
type Seat struct {
	Index        int         `json:"index"`
	Status       SeatStatus  `json:"status"`
	PlayerID     string      `json:"playerId,omitempty"`
	PlayerName   string      `json:"playerName,omitempty"`
	Stack        int         `json:"stack"`
	Position     Position    `json:"position"`
	HoleCards    []deck.Card `json:"holeCards,omitempty"`
	BetThisRound int         `json:"betThisRound"`
	BetThisHand  int         `json:"betThisHand"`
	HasActed     bool        `json:"hasActed"`
}

// InHand reports whether the seat is still contesting the current hand.
func (s *Seat) InHand() bool {
	return s.Status == SeatActive || s.Status == SeatAllIn
}

// Occupied reports whether a player is sitting here.
func (s *Seat) Occupied() bool {
	return s.Status != SeatEmpty && s.PlayerID != ""
}

// resetForHand clears per-hand state ahead of a new deal.
func (s *Seat) resetForHand() {
	s.Position = PositionNone
	s.HoleCards = nil
	s.BetThisRound = 0
	s.BetThisHand = 0
	s.HasActed = false
}

// clone returns a deep copy for snapshots.
func (s *Seat) clone() Seat {
	out := *s
	if s.HoleCards != nil {
		out.HoleCards = append([]deck.Card(nil), s.HoleCards...)
	}
	return out
}

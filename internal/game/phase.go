package game

import "fmt"

// Phase is the stage a table is in. A hand runs PREFLOP through COMPLETE;
// between hands the table sits in WAITING or COMPLETE.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhasePreflop
	PhaseFlop
	PhaseTurn
	PhaseRiver
	PhaseShowdown
	PhaseComplete
)

var phaseNames = [...]string{"WAITING", "PREFLOP", "FLOP", "TURN", "RIVER", "SHOWDOWN", "COMPLETE"}

func (p Phase) String() string {
	if p < PhaseWaiting || p > PhaseComplete {
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
	return phaseNames[p]
}

// Betting reports whether the phase is a betting street.
func (p Phase) Betting() bool {
	return p >= PhasePreflop && p <= PhaseRiver
}

// communityCount is the number of community cards revealed at this phase.
func (p Phase) communityCount() int {
	switch p {
	case PhaseFlop:
		return 3
	case PhaseTurn:
		return 4
	case PhaseRiver, PhaseShowdown:
		return 5
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(text))
}

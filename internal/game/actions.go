package game

import (
	"fmt"
	"strings"
)

// Action represents a player action.
type Action int

const (
	Fold Action = iota
	Check
	Call
	Raise
	AllIn
)

var actionNames = [...]string{"FOLD", "CHECK", "CALL", "RAISE", "ALL_IN"}

func (a Action) String() string {
	if a < Fold || a > AllIn {
		return fmt.Sprintf("ACTION(%d)", int(a))
	}
	return actionNames[a]
}

// MarshalText implements encoding.TextMarshaler so actions serialise as
// their wire names ("FOLD", "ALL_IN", ...).
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction maps an action name to its enum value. Matching is
// case-insensitive and accepts both "ALL_IN" and "ALLIN".
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FOLD":
		return Fold, nil
	case "CHECK":
		return Check, nil
	case "CALL":
		return Call, nil
	case "RAISE", "BET":
		return Raise, nil
	case "ALL_IN", "ALLIN", "ALL-IN":
		return AllIn, nil
	}
	return Fold, fmt.Errorf("unknown action %q", s)
}

// Decision is what an agent returns when asked to act.
type Decision struct {
	Action    Action `json:"action"`
	Amount    int    `json:"amount"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ValidAction describes one action a player may legally take, with the
// amount bounds that apply to it. For RAISE the bounds are raise-to levels;
// for CALL both bounds equal the amount needed to call.
type ValidAction struct {
	Action    Action `json:"action"`
	MinAmount int    `json:"minAmount"`
	MaxAmount int    `json:"maxAmount"`
}

// ActionRecord is the per-action history entry kept for the hand and fed to
// the settlement action log.
type ActionRecord struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	Action      Action `json:"action"`
	Amount      int    `json:"amount"`
	Phase       Phase  `json:"phase"`
	SeatIndex   int    `json:"seatIndex"`
	TimestampMs int64  `json:"timestampMs"`
}

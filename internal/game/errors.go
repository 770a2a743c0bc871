package game

import (
	"errors"
	"fmt"
)

var (
	// ErrTableFull is returned when no empty seat remains.
	ErrTableFull = errors.New("table is full")

	// ErrNotSeated is returned for operations on players the table does not know.
	ErrNotSeated = errors.New("player is not seated")

	// ErrNotYourTurn is returned when a player acts out of turn.
	ErrNotYourTurn = errors.New("not your turn to act")

	// ErrInvalidAction is returned for actions outside the current valid set.
	// Illegal submissions never mutate table state.
	ErrInvalidAction = errors.New("action is not valid")

	// ErrHandInProgress is returned when dealNewHand is called mid-hand.
	ErrHandInProgress = errors.New("hand already in progress")

	// ErrNotEnoughPlayers is returned when fewer than two seats have chips.
	ErrNotEnoughPlayers = errors.New("not enough players with chips")

	// ErrNoActiveHand is returned for turn operations outside a betting phase.
	ErrNoActiveHand = errors.New("no hand in progress")

	// ErrTableHalted is returned once a table has tripped an invariant check.
	// A halted table accepts no further actions and should be destroyed.
	ErrTableHalted = errors.New("table halted after invariant violation")
)

// InvariantError reports an internal consistency failure such as a negative
// stack or a chip-conservation mismatch. It is fatal for the table that
// raised it; other tables are unaffected.
type InvariantError struct {
	TableID    string
	HandNumber int
	Reason     string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("table %s hand %d: invariant violated: %s", e.TableID, e.HandNumber, e.Reason)
}

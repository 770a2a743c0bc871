// Package game implements the core Texas Hold'em table state machine.
//
// The main type is Table, which owns a fixed vector of 2-6 seats and drives
// one hand at a time through the phases WAITING -> PREFLOP -> FLOP -> TURN ->
// RIVER -> SHOWDOWN -> COMPLETE. Betting logic, side-pot partitioning and
// showdown resolution are implemented as helpers that operate on snapshots of
// seat state; only the Table mutates seats.
//
// # Basic Usage
//
// Seat players, deal, and feed actions:
//
//	t, _ := game.NewTable(cfg)
//	t.SeatPlayer("p1", "Alice")
//	t.SeatPlayer("p2", "Bob")
//	t.DealNewHand()
//	t.SubmitAction("p1", game.Call, 0)
//
// Lifecycle events (HAND_START, PLAYER_TURN, HAND_COMPLETE, ...) are
// published on the table's event bus in emission order. Subscribe before
// calling DealNewHand to observe the full hand.
//
// # Deterministic Testing
//
// Inject a seeded RNG, a mock clock, a fixed dealer button, or a stacked
// deck through options:
//
//	rng := randutil.New(42)
//	t, _ := game.NewTable(cfg, game.WithRNG(rng), game.WithButton(0))
//
// Turn timeouts run on a quartz clock, so tests can advance time without
// sleeping.
package game

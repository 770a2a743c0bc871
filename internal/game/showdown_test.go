package game

import (
	"reflect"
	"testing"

	"github.com/lox/holdem-arena/internal/deck"
)

// Heads-up with the button on seat 0, hole cards go out one at a time
// starting left of the button: p1, p0, p1, p0. Then burn, flop x3, burn,
// turn, burn, river.
func TestShowdownBestHandWins(t *testing.T) {
	t.Parallel()

	cards := deck.MustParseCards("Ks Ah Kd Ad 2c Ac 7h 2h 3c 8d 4c 9s")
	collector := &eventCollector{}
	tbl := newTestTable(t, testConfig(), 2, WithDeck(deck.Stacked(cards...)))
	tbl.Events().Subscribe(collector)
	mustDeal(t, tbl)

	checkDown := func() {
		t.Helper()
		mustAct(t, tbl, "p0", Call, 0)
		mustAct(t, tbl, "p1", Check, 0)
		for tbl.Phase() != PhaseComplete {
			st := tbl.Snapshot()
			id := st.Seats[st.ActivePlayerIndex].PlayerID
			mustAct(t, tbl, id, Check, 0)
		}
	}
	checkDown()

	result := lastHandResult(t, tbl, collector)
	wantWinners := []Winner{{
		PlayerID:    "p0",
		PlayerName:  "Player 0",
		SeatIndex:   0,
		Amount:      20,
		Description: "Three of a Kind, Aces",
	}}
	if !reflect.DeepEqual(result.Winners, wantWinners) {
		t.Errorf("winners = %+v, want %+v", result.Winners, wantWinners)
	}
	if !result.WentToShowdown {
		t.Errorf("checked-down hand should reach showdown")
	}
	wantBoard := deck.MustParseCards("Ac 7h 2h 8d 9s")
	if !reflect.DeepEqual(result.CommunityCards, wantBoard) {
		t.Errorf("board = %v, want %v", result.CommunityCards, wantBoard)
	}

	want := map[string]int{"p0": 1010, "p1": 990}
	if got := stacks(tbl); !reflect.DeepEqual(got, want) {
		t.Errorf("stacks = %v, want %v", got, want)
	}
}

// Three-handed deal order from the button at seat 0: p1, p2, p0, p1, p2, p0,
// then the board. The board makes a royal flush that both remaining players
// play, so the 25-chip pot splits with the odd chip going to the seat
// closest to zero.
func TestShowdownSplitRemainderToLowestSeat(t *testing.T) {
	t.Parallel()

	cards := deck.MustParseCards("2c 2d 2h 3c 3d 3h 4c As Ks Qs 4d Js 4h Ts")
	collector := &eventCollector{}
	tbl := newTestTable(t, testConfig(), 3, WithDeck(deck.Stacked(cards...)))
	tbl.Events().Subscribe(collector)
	mustDeal(t, tbl)

	mustAct(t, tbl, "p0", Call, 10)
	mustAct(t, tbl, "p1", Fold, 0)
	mustAct(t, tbl, "p2", Check, 0)
	for tbl.Phase() != PhaseComplete {
		st := tbl.Snapshot()
		id := st.Seats[st.ActivePlayerIndex].PlayerID
		mustAct(t, tbl, id, Check, 0)
	}

	result := lastHandResult(t, tbl, collector)
	wantWinners := []Winner{
		{PlayerID: "p0", PlayerName: "Player 0", SeatIndex: 0, Amount: 13, Description: "Royal Flush"},
		{PlayerID: "p2", PlayerName: "Player 2", SeatIndex: 2, Amount: 12, Description: "Royal Flush"},
	}
	if !reflect.DeepEqual(result.Winners, wantWinners) {
		t.Errorf("winners = %+v, want %+v", result.Winners, wantWinners)
	}
	if result.PotTotal != 25 {
		t.Errorf("pot total = %d, want 25", result.PotTotal)
	}

	want := map[string]int{"p0": 1003, "p1": 995, "p2": 1002}
	if got := stacks(tbl); !reflect.DeepEqual(got, want) {
		t.Errorf("stacks = %v, want %v", got, want)
	}
}

// An all-in over a raise that leaves the raiser with chips behind layers the
// pot: the main pot goes to the best hand, the excess only its owner covered
// comes straight back through the side pot.
func TestShowdownSidePotLayers(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.StartingStack = 200
	cards := deck.MustParseCards("Ks Ah Kd Ad 2c Ac 7h 2h 3c 8d 4c 9s")

	collector := &eventCollector{}
	tbl := newTestTable(t, cfg, 2, WithDeck(deck.Stacked(cards...)))
	tbl.Events().Subscribe(collector)
	mustDeal(t, tbl)

	// p0 opens to 150 keeping 50 behind; p1 shoves 200. The extra 50 is
	// short of a full raise, so p0 never acts again and the board runs out
	// with pots of 300 (both) and 50 (p1 alone).
	mustAct(t, tbl, "p0", Raise, 150)
	mustAct(t, tbl, "p1", AllIn, 0)

	result := lastHandResult(t, tbl, collector)
	wantWinners := []Winner{
		{PlayerID: "p0", PlayerName: "Player 0", SeatIndex: 0, Amount: 300, Description: "Three of a Kind, Aces"},
		{PlayerID: "p1", PlayerName: "Player 1", SeatIndex: 1, Amount: 50, Description: "Pair of Kings"},
	}
	if !reflect.DeepEqual(result.Winners, wantWinners) {
		t.Errorf("winners = %+v, want %+v", result.Winners, wantWinners)
	}
	if result.PotTotal != 400 {
		t.Errorf("pot total = %d, want 400", result.PotTotal)
	}

	want := map[string]int{"p0": 350, "p1": 50}
	if got := stacks(tbl); !reflect.DeepEqual(got, want) {
		t.Errorf("stacks = %v, want %v", got, want)
	}
}

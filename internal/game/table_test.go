package game

import (
	"errors"
	"reflect"
	"testing"

	"github.com/coder/quartz"

	"github.com/lox/holdem-arena/internal/randutil"
)

func TestFoldWinAwardsBlinds(t *testing.T) {
	t.Parallel()

	collector := &eventCollector{}
	tbl := newTestTable(t, testConfig(), 6)
	tbl.Events().Subscribe(collector)
	mustDeal(t, tbl)

	// Button 0: blinds at seats 1 and 2, seat 3 opens.
	for _, id := range []string{"p3", "p4", "p5", "p0", "p1"} {
		mustAct(t, tbl, id, Fold, 0)
	}

	result := lastHandResult(t, tbl, collector)
	wantWinners := []Winner{{
		PlayerID:    "p2",
		PlayerName:  "Player 2",
		SeatIndex:   2,
		Amount:      15,
		Description: "Opponents folded",
	}}
	if !reflect.DeepEqual(result.Winners, wantWinners) {
		t.Errorf("winners = %+v, want %+v", result.Winners, wantWinners)
	}
	if result.WentToShowdown {
		t.Errorf("fold win marked as showdown")
	}
	if result.PotTotal != 15 {
		t.Errorf("pot total = %d, want 15", result.PotTotal)
	}

	want := map[string]int{"p0": 1000, "p1": 995, "p2": 1005, "p3": 1000, "p4": 1000, "p5": 1000}
	if got := stacks(tbl); !reflect.DeepEqual(got, want) {
		t.Errorf("stacks = %v, want %v", got, want)
	}
	if got := tbl.Phase(); got != PhaseComplete {
		t.Errorf("phase = %s, want COMPLETE", got)
	}
}

func TestPositionsSixHanded(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 6)
	mustDeal(t, tbl)

	want := []Position{Button, SmallBlind, BigBlind, UnderTheGun, UnderTheGunPlusOne, Cutoff}
	st := tbl.Snapshot()
	for i, pos := range want {
		if st.Seats[i].Position != pos {
			t.Errorf("seat %d position = %s, want %s", i, st.Seats[i].Position, pos)
		}
	}
	if st.DealerButtonIndex != 0 {
		t.Errorf("button = %d, want 0", st.DealerButtonIndex)
	}
	if st.Seats[1].BetThisRound != 5 || st.Seats[2].BetThisRound != 10 {
		t.Errorf("blinds = %d/%d, want 5/10", st.Seats[1].BetThisRound, st.Seats[2].BetThisRound)
	}
}

func TestHeadsUpButtonPostsSmallBlind(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)

	st := tbl.Snapshot()
	if st.Seats[0].Position != Button || st.Seats[1].Position != BigBlind {
		t.Errorf("positions = %s/%s, want BTN/BB", st.Seats[0].Position, st.Seats[1].Position)
	}
	if st.Seats[0].BetThisRound != 5 || st.Seats[1].BetThisRound != 10 {
		t.Errorf("blinds = %d/%d, want 5/10", st.Seats[0].BetThisRound, st.Seats[1].BetThisRound)
	}
	// Dealer opens preflop, big blind opens postflop.
	if st.ActivePlayerIndex != 0 {
		t.Errorf("preflop first to act = %d, want 0", st.ActivePlayerIndex)
	}
	mustAct(t, tbl, "p0", Call, 5)
	mustAct(t, tbl, "p1", Check, 0)
	st = tbl.Snapshot()
	if st.Phase != PhaseFlop {
		t.Fatalf("phase = %s, want FLOP", st.Phase)
	}
	if st.ActivePlayerIndex != 1 {
		t.Errorf("postflop first to act = %d, want 1", st.ActivePlayerIndex)
	}
}

func TestButtonRotatesBetweenHands(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 3)

	playFoldWin := func() {
		t.Helper()
		mustDeal(t, tbl)
		// Fold everyone down to the big blind, in turn order.
		for tbl.Phase() == PhasePreflop {
			st := tbl.Snapshot()
			id := st.Seats[st.ActivePlayerIndex].PlayerID
			mustAct(t, tbl, id, Fold, 0)
		}
	}

	playFoldWin()
	if got := tbl.Snapshot().DealerButtonIndex; got != 0 {
		t.Fatalf("hand 1 button = %d, want 0", got)
	}
	playFoldWin()
	if got := tbl.Snapshot().DealerButtonIndex; got != 1 {
		t.Errorf("hand 2 button = %d, want 1", got)
	}
	playFoldWin()
	if got := tbl.Snapshot().DealerButtonIndex; got != 2 {
		t.Errorf("hand 3 button = %d, want 2", got)
	}
}

func TestSeatPlayerIdempotent(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)

	idx, err := tbl.SeatPlayer("p0", "Player 0")
	if err != nil {
		t.Fatalf("reseat: %v", err)
	}
	if idx != 0 {
		t.Errorf("reseat index = %d, want 0", idx)
	}
	if got := len(stacks(tbl)); got != 2 {
		t.Errorf("seated players = %d, want 2", got)
	}
}

func TestSeatPlayerTableFull(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 6)
	if _, err := tbl.SeatPlayer("p6", "Player 6"); !errors.Is(err, ErrTableFull) {
		t.Errorf("error = %v, want ErrTableFull", err)
	}
}

func TestDealNewHandRequiresTwoFunded(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 1)
	if err := tbl.DealNewHand(); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Errorf("error = %v, want ErrNotEnoughPlayers", err)
	}
	if tbl.CanStartHand() {
		t.Errorf("CanStartHand = true with one player")
	}
}

func TestDealNewHandWhileHandInProgress(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)
	if err := tbl.DealNewHand(); !errors.Is(err, ErrHandInProgress) {
		t.Errorf("error = %v, want ErrHandInProgress", err)
	}
}

func TestBlindsCappedAtStack(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SmallBlind = 50
	cfg.BigBlind = 100
	cfg.StartingStack = 40

	collector := &eventCollector{}
	tbl := newTestTable(t, cfg, 2)
	tbl.Events().Subscribe(collector)

	// Both blinds post their entire 40; with nobody left to act the hand
	// runs out to showdown by itself.
	mustDeal(t, tbl)

	if got := tbl.Phase(); got != PhaseComplete {
		t.Fatalf("phase = %s, want COMPLETE", got)
	}
	result := lastHandResult(t, tbl, collector)
	if result.PotTotal != 80 {
		t.Errorf("pot total = %d, want 80", result.PotTotal)
	}
	if !result.WentToShowdown {
		t.Errorf("all-in blinds should reach showdown")
	}
	got := stacks(tbl)
	if got["p0"]+got["p1"] != 80 {
		t.Errorf("chips off the table: stacks = %v", got)
	}
}

func TestThreeWayAllInConservation(t *testing.T) {
	t.Parallel()

	collector := &eventCollector{}
	tbl := newTestTable(t, testConfig(), 3)
	tbl.Events().Subscribe(collector)

	// Hand 1 moves chips so the stacks differ going into hand 2.
	mustDeal(t, tbl)
	mustAct(t, tbl, "p0", Raise, 100)
	mustAct(t, tbl, "p1", Fold, 0)
	mustAct(t, tbl, "p2", Fold, 0)

	want := map[string]int{"p0": 1015, "p1": 995, "p2": 990}
	if got := stacks(tbl); !reflect.DeepEqual(got, want) {
		t.Fatalf("stacks after hand 1 = %v, want %v", got, want)
	}

	// Hand 2: button moves to seat 1 and all three shove at different
	// levels, forcing a layered pot.
	mustDeal(t, tbl)
	st := tbl.Snapshot()
	if st.DealerButtonIndex != 1 {
		t.Fatalf("hand 2 button = %d, want 1", st.DealerButtonIndex)
	}
	for i := 0; i < 3; i++ {
		st = tbl.Snapshot()
		id := st.Seats[st.ActivePlayerIndex].PlayerID
		mustAct(t, tbl, id, AllIn, 0)
	}

	if got := tbl.Phase(); got != PhaseComplete {
		t.Fatalf("phase = %s, want COMPLETE", got)
	}
	result := lastHandResult(t, tbl, collector)
	if result.PotTotal != 3000 {
		t.Errorf("pot total = %d, want 3000", result.PotTotal)
	}
	if !result.WentToShowdown {
		t.Errorf("three-way all-in should reach showdown")
	}
	total := 0
	for _, s := range stacks(tbl) {
		total += s
	}
	if total != 3000 {
		t.Errorf("stacks sum to %d, want 3000", total)
	}
	paid := 0
	for _, w := range result.Winners {
		paid += w.Amount
	}
	if paid != 3000 {
		t.Errorf("winner payouts sum to %d, want 3000", paid)
	}
}

func TestReplayFromHistoryReproducesState(t *testing.T) {
	t.Parallel()

	build := func() *Table {
		return newTestTable(t, testConfig(), 2,
			WithRNG(randutil.New(9)), WithButton(1), WithClock(quartz.NewMock(t)))
	}

	first := build()
	mustDeal(t, first)
	mustAct(t, first, "p1", Raise, 30)
	mustAct(t, first, "p0", Call, 0)
	mustAct(t, first, "p0", Check, 0)
	mustAct(t, first, "p1", Raise, 40)
	mustAct(t, first, "p0", Call, 0)
	mustAct(t, first, "p0", Check, 0)
	mustAct(t, first, "p1", Check, 0)
	mustAct(t, first, "p0", Raise, 50)
	mustAct(t, first, "p1", Fold, 0)

	wantState := first.Snapshot()
	if wantState.Phase != PhaseComplete {
		t.Fatalf("scripted hand ended in %s, want COMPLETE", wantState.Phase)
	}

	// Re-submitting the recorded history against an identically seeded table
	// must land on the same state.
	second := build()
	mustDeal(t, second)
	for _, rec := range wantState.ActionHistory {
		mustAct(t, second, rec.PlayerID, rec.Action, rec.Amount)
	}
	gotState := second.Snapshot()

	for i := range wantState.ActionHistory {
		wantState.ActionHistory[i].TimestampMs = 0
	}
	for i := range gotState.ActionHistory {
		gotState.ActionHistory[i].TimestampMs = 0
	}
	if !reflect.DeepEqual(gotState, wantState) {
		t.Errorf("replayed state differs:\n got: %+v\nwant: %+v", gotState, wantState)
	}
}

func TestRemovePlayerBetweenHands(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 3)
	if err := tbl.RemovePlayer("p1"); err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}
	if _, ok := stacks(tbl)["p1"]; ok {
		t.Errorf("p1 still seated after removal")
	}
	if err := tbl.RemovePlayer("p1"); !errors.Is(err, ErrNotSeated) {
		t.Errorf("second removal error = %v, want ErrNotSeated", err)
	}

	// The empty seat is reusable.
	idx, err := tbl.SeatPlayer("p9", "Player 9")
	if err != nil {
		t.Fatalf("SeatPlayer: %v", err)
	}
	if idx != 1 {
		t.Errorf("new player seat = %d, want 1", idx)
	}
}

func TestRemoveActivePlayerMidHandFolds(t *testing.T) {
	t.Parallel()

	collector := &eventCollector{}
	tbl := newTestTable(t, testConfig(), 3)
	tbl.Events().Subscribe(collector)
	mustDeal(t, tbl)

	// Seat 0 is acting; removing it folds immediately.
	if err := tbl.RemovePlayer("p0"); err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}
	st := tbl.Snapshot()
	if st.ActivePlayerIndex != 1 {
		t.Errorf("active seat = %d, want 1", st.ActivePlayerIndex)
	}
	if len(st.ActionHistory) != 1 || st.ActionHistory[0].Action != Fold {
		t.Errorf("history = %+v, want a single fold", st.ActionHistory)
	}

	// The seat is cleared once the hand completes.
	mustAct(t, tbl, "p1", Fold, 0)
	if got := tbl.Phase(); got != PhaseComplete {
		t.Fatalf("phase = %s, want COMPLETE", got)
	}
	if _, ok := stacks(tbl)["p0"]; ok {
		t.Errorf("p0 still seated after hand completion")
	}
	want := map[string]int{"p1": 995, "p2": 1005}
	if got := stacks(tbl); !reflect.DeepEqual(got, want) {
		t.Errorf("stacks = %v, want %v", got, want)
	}
}

func TestRemoveWaitingPlayerMidHand(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)

	// p2 joins mid-hand and leaves again before it is ever dealt in.
	if _, err := tbl.SeatPlayer("p2", "Player 2"); err != nil {
		t.Fatalf("SeatPlayer: %v", err)
	}
	if err := tbl.RemovePlayer("p2"); err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}

	// The running hand is unaffected.
	mustAct(t, tbl, "p0", Call, 0)
	mustAct(t, tbl, "p1", Check, 0)
	if got := tbl.Phase(); got != PhaseFlop {
		t.Errorf("phase = %s, want FLOP", got)
	}
}

func TestSubmitAfterCloseReturnsHalted(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)
	tbl.Close()

	if err := tbl.SubmitAction("p0", Call, 0); !errors.Is(err, ErrTableHalted) {
		t.Errorf("error = %v, want ErrTableHalted", err)
	}
	if err := tbl.DealNewHand(); !errors.Is(err, ErrTableHalted) {
		t.Errorf("error = %v, want ErrTableHalted", err)
	}
	if _, err := tbl.SeatPlayer("p9", "Player 9"); !errors.Is(err, ErrTableHalted) {
		t.Errorf("error = %v, want ErrTableHalted", err)
	}
}

func TestPlayerViewHidesOpponentCards(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)

	view, err := tbl.PlayerViewFor("p0")
	if err != nil {
		t.Fatalf("PlayerViewFor: %v", err)
	}
	if len(view.HoleCards) != 2 {
		t.Errorf("own hole cards = %d, want 2", len(view.HoleCards))
	}
	if !view.IsMyTurn {
		t.Errorf("IsMyTurn = false for the acting seat")
	}
	if view.CallAmount != 5 {
		t.Errorf("call amount = %d, want 5", view.CallAmount)
	}
	for _, s := range view.Seats {
		if s.PlayerID == "p1" {
			if len(s.HoleCards) != 0 {
				t.Errorf("opponent hole cards leaked: %v", s.HoleCards)
			}
			if !s.HasHoleCards {
				t.Errorf("opponent HasHoleCards = false, want true")
			}
		}
	}

	other, err := tbl.PlayerViewFor("p1")
	if err != nil {
		t.Fatalf("PlayerViewFor: %v", err)
	}
	if other.IsMyTurn {
		t.Errorf("IsMyTurn = true for the waiting seat")
	}
	if len(other.ValidActions) != 0 {
		t.Errorf("valid actions offered out of turn: %+v", other.ValidActions)
	}
}

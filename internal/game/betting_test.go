package game

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidActionsFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		seat       *Seat
		currentBet int
		minRaise   int
		want       []ValidAction
	}{
		{
			name:       "big blind free to check",
			seat:       &Seat{Status: SeatActive, Stack: 990, BetThisRound: 10},
			currentBet: 10,
			minRaise:   10,
			want: []ValidAction{
				{Action: Fold},
				{Action: Check},
				{Action: Raise, MinAmount: 20, MaxAmount: 1000},
			},
		},
		{
			name:       "unopened street",
			seat:       &Seat{Status: SeatActive, Stack: 500},
			currentBet: 0,
			minRaise:   10,
			want: []ValidAction{
				{Action: Fold},
				{Action: Check},
				{Action: Raise, MinAmount: 10, MaxAmount: 500},
			},
		},
		{
			name:       "facing a bet with a covering stack",
			seat:       &Seat{Status: SeatActive, Stack: 1000},
			currentBet: 50,
			minRaise:   40,
			want: []ValidAction{
				{Action: Fold},
				{Action: Call, MinAmount: 50, MaxAmount: 50},
				{Action: Raise, MinAmount: 90, MaxAmount: 1000},
				{Action: AllIn, MinAmount: 1000, MaxAmount: 1000},
			},
		},
		{
			name:       "stack short of the call",
			seat:       &Seat{Status: SeatActive, Stack: 30},
			currentBet: 50,
			minRaise:   40,
			want: []ValidAction{
				{Action: Fold},
				{Action: AllIn, MinAmount: 30, MaxAmount: 30},
			},
		},
		{
			name:       "stack exactly the call",
			seat:       &Seat{Status: SeatActive, Stack: 50},
			currentBet: 50,
			minRaise:   40,
			want: []ValidAction{
				{Action: Fold},
				{Action: AllIn, MinAmount: 50, MaxAmount: 50},
			},
		},
		{
			name:       "raise bounds capped at the all-in level",
			seat:       &Seat{Status: SeatActive, Stack: 60},
			currentBet: 50,
			minRaise:   40,
			want: []ValidAction{
				{Action: Fold},
				{Action: Call, MinAmount: 50, MaxAmount: 50},
				{Action: Raise, MinAmount: 60, MaxAmount: 60},
				{Action: AllIn, MinAmount: 60, MaxAmount: 60},
			},
		},
		{
			name:       "folded seat has no actions",
			seat:       &Seat{Status: SeatFolded, Stack: 100},
			currentBet: 10,
			minRaise:   10,
			want:       nil,
		},
		{
			name:       "all-in seat has no actions",
			seat:       &Seat{Status: SeatAllIn},
			currentBet: 10,
			minRaise:   10,
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := validActionsFor(tt.seat, tt.currentBet, tt.minRaise)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("validActionsFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHeadsUpMinRaiseDiscipline(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)

	// Heads-up the button posts the small blind and opens preflop.
	if got := tbl.Snapshot().ActivePlayerIndex; got != 0 {
		t.Fatalf("first to act = seat %d, want 0", got)
	}

	mustAct(t, tbl, "p0", Raise, 20)

	st := tbl.Snapshot()
	if st.CurrentBet != 20 {
		t.Errorf("current bet = %d, want 20", st.CurrentBet)
	}
	if st.MinRaise != 10 {
		t.Errorf("min raise = %d, want 10", st.MinRaise)
	}
	if st.ActivePlayerIndex != 1 {
		t.Errorf("active seat = %d, want 1", st.ActivePlayerIndex)
	}
	if st.Seats[1].HasActed {
		t.Errorf("big blind owes a response after the raise")
	}

	// A re-raise must reach at least 30.
	mustAct(t, tbl, "p1", Raise, 30)
	if got := tbl.Snapshot().CurrentBet; got != 30 {
		t.Errorf("current bet after re-raise = %d, want 30", got)
	}
}

func TestBigBlindOptionAfterLimps(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 3)
	mustDeal(t, tbl)

	// Button 0: blinds sit at seats 1 and 2, so the button opens.
	if got := tbl.Snapshot().ActivePlayerIndex; got != 0 {
		t.Fatalf("first to act = seat %d, want 0", got)
	}
	mustAct(t, tbl, "p0", Call, 10)
	mustAct(t, tbl, "p1", Call, 5)

	// All bets are matched but the big blind still has its option.
	st := tbl.Snapshot()
	if st.Phase != PhasePreflop {
		t.Fatalf("phase = %s, want PREFLOP", st.Phase)
	}
	if st.ActivePlayerIndex != 2 {
		t.Fatalf("active seat = %d, want 2 (big blind option)", st.ActivePlayerIndex)
	}

	mustAct(t, tbl, "p2", Check, 0)
	if got := tbl.Snapshot().Phase; got != PhaseFlop {
		t.Errorf("phase after option check = %s, want FLOP", got)
	}
}

func TestRaiseBelowMinimumClampsUp(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)

	// The minimum raise-to level over the 10 big blind is 20.
	mustAct(t, tbl, "p0", Raise, 12)

	st := tbl.Snapshot()
	if st.CurrentBet != 20 {
		t.Errorf("current bet = %d, want 20", st.CurrentBet)
	}
	if got := st.ActionHistory[len(st.ActionHistory)-1].Amount; got != 20 {
		t.Errorf("recorded amount = %d, want the clamped level 20", got)
	}
}

func TestRaiseAboveStackClampsToAllIn(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)

	mustAct(t, tbl, "p0", Raise, 999999)

	st := tbl.Snapshot()
	if st.CurrentBet != 1000 {
		t.Errorf("current bet = %d, want 1000", st.CurrentBet)
	}
	if got := st.Seats[0].Status; got != SeatAllIn {
		t.Errorf("seat 0 status = %s, want ALL_IN", got)
	}
	if got := st.ActionHistory[0].Amount; got != 1000 {
		t.Errorf("recorded amount = %d, want 1000", got)
	}
}

func TestShortAllInDoesNotReopenBetting(t *testing.T) {
	t.Parallel()

	collector := &eventCollector{}
	tbl := newTestTable(t, testConfig(), 3)
	tbl.Events().Subscribe(collector)
	mustDeal(t, tbl)

	mustAct(t, tbl, "p0", Raise, 990)
	mustAct(t, tbl, "p1", Fold, 0)
	// The big blind shoves to 1000, only 10 over the raise. That is short of
	// a full raise, so p0 gets no further turn and the hand runs out.
	mustAct(t, tbl, "p2", AllIn, 0)

	tbl.Events().Drain()
	if got := tbl.Phase(); got != PhaseComplete {
		t.Fatalf("phase = %s, want COMPLETE", got)
	}
	turns := collector.ofType(EventTypePlayerTurn)
	last := turns[len(turns)-1].(PlayerTurnEvent)
	if last.PlayerID != "p2" {
		t.Errorf("last turn belonged to %s, want p2", last.PlayerID)
	}

	// The 10 nobody could call comes back through the pot partition.
	got := stacks(tbl)
	if got["p0"]+got["p1"]+got["p2"] != 3000 {
		t.Errorf("chips off the table: stacks = %v", got)
	}
	result := lastHandResult(t, tbl, collector)
	var p2Won int
	for _, w := range result.Winners {
		if w.PlayerID == "p2" {
			p2Won += w.Amount
		}
	}
	if p2Won < 10 {
		t.Errorf("p2 won %d, want at least the uncalled 10 back", p2Won)
	}
}

func TestAllInByExactlyMinRaiseReopens(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.StartingStack = 30
	tbl := newTestTable(t, cfg, 3)
	mustDeal(t, tbl)

	mustAct(t, tbl, "p0", Raise, 20)
	mustAct(t, tbl, "p1", Fold, 0)
	// The big blind moves in for 30, a full raise increment over 20.
	mustAct(t, tbl, "p2", AllIn, 0)

	st := tbl.Snapshot()
	if st.ActivePlayerIndex != 0 {
		t.Fatalf("active seat = %d, want 0 (betting reopened)", st.ActivePlayerIndex)
	}
	view, err := tbl.PlayerViewFor("p0")
	if err != nil {
		t.Fatalf("PlayerViewFor(p0): %v", err)
	}
	want := []ValidAction{
		{Action: Fold},
		{Action: AllIn, MinAmount: 10, MaxAmount: 10},
	}
	if !reflect.DeepEqual(view.ValidActions, want) {
		t.Errorf("valid actions = %+v, want %+v", view.ValidActions, want)
	}

	mustAct(t, tbl, "p0", AllIn, 0)
	if got := tbl.Phase(); got != PhaseComplete {
		t.Errorf("phase = %s, want COMPLETE", got)
	}
}

func TestCheckFacingBetRejected(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 2)
	mustDeal(t, tbl)

	err := tbl.SubmitAction("p0", Check, 0)
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("error = %v, want ErrInvalidAction", err)
	}

	// Rejected submissions must not move the hand along.
	st := tbl.Snapshot()
	if st.ActivePlayerIndex != 0 {
		t.Errorf("active seat = %d, want 0", st.ActivePlayerIndex)
	}
	if len(st.ActionHistory) != 0 {
		t.Errorf("action history = %+v, want empty", st.ActionHistory)
	}
}

func TestSubmitActionOutOfTurn(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, testConfig(), 3)
	mustDeal(t, tbl)

	if err := tbl.SubmitAction("p1", Call, 5); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("error = %v, want ErrNotYourTurn", err)
	}
	if err := tbl.SubmitAction("ghost", Fold, 0); !errors.Is(err, ErrNotSeated) {
		t.Errorf("error = %v, want ErrNotSeated", err)
	}
	if err := tbl.SubmitAction("p0", Action(99), 0); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("error = %v, want ErrInvalidAction", err)
	}
}

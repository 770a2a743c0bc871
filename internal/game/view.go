package game

import (
	"github.com/lox/holdem-arena/internal/deck"
)

// SeatView is the public projection of a seat. Hole cards are included only
// for the viewer's own seat.
type SeatView struct {
	Index        int         `json:"index"`
	Status       SeatStatus  `json:"status"`
	PlayerID     string      `json:"playerId,omitempty"`
	PlayerName   string      `json:"playerName,omitempty"`
	Stack        int         `json:"stack"`
	Position     Position    `json:"position"`
	BetThisRound int         `json:"betThisRound"`
	BetThisHand  int         `json:"betThisHand"`
	HasHoleCards bool        `json:"hasHoleCards"`
	HoleCards    []deck.Card `json:"holeCards,omitempty"`
}

// TableState is a deep snapshot of a table, safe to hold across hands.
// Hole cards are included; sanitise through PlayerView before showing a
// participant.
type TableState struct {
	Config            TableConfig    `json:"config"`
	Seats             []Seat         `json:"seats"`
	DealerButtonIndex int            `json:"dealerButtonIndex"`
	Phase             Phase          `json:"phase"`
	CommunityCards    []deck.Card    `json:"communityCards"`
	Pots              []SidePot      `json:"pots"`
	CurrentBet        int            `json:"currentBet"`
	MinRaise          int            `json:"minRaise"`
	ActivePlayerIndex int            `json:"activePlayerIndex"`
	HandNumber        int            `json:"handNumber"`
	ActionHistory     []ActionRecord `json:"actionHistory"`
}

// PlayerView is the slice of table state one player is allowed to see, plus
// the action bounds for their turn. ValidActions is populated only when it
// is the viewer's turn to act.
type PlayerView struct {
	TableID        string        `json:"tableId"`
	TableName      string        `json:"tableName"`
	HandNumber     int           `json:"handNumber"`
	Phase          Phase         `json:"phase"`
	SeatIndex      int           `json:"seatIndex"`
	PlayerID       string        `json:"playerId"`
	PlayerName     string        `json:"playerName"`
	HoleCards      []deck.Card   `json:"holeCards,omitempty"`
	CommunityCards []deck.Card   `json:"communityCards"`
	Stack          int           `json:"stack"`
	PotTotal       int           `json:"potTotal"`
	CurrentBet     int           `json:"currentBet"`
	MinRaise       int           `json:"minRaise"`
	DealerButton   int           `json:"dealerButton"`
	ActiveSeat     int           `json:"activeSeat"`
	IsMyTurn       bool          `json:"isMyTurn"`
	ValidActions   []ValidAction `json:"validActions,omitempty"`
	CallAmount     int           `json:"callAmount"`
	MinRaiseAmount int           `json:"minRaiseAmount"`
	MaxRaiseAmount int           `json:"maxRaiseAmount"`
	Seats          []SeatView    `json:"seats"`
}

// Winner is one player's share of a completed hand.
type Winner struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	SeatIndex   int    `json:"seatIndex"`
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

// HandSeat is one player dealt into a hand and the stack they started it
// with. A player all-in from the blinds never acts, so the action log alone
// cannot recover the full lineup.
type HandSeat struct {
	SeatIndex  int    `json:"seatIndex"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Stack      int    `json:"stack"`
}

// HandResult summarises a completed hand for statistics and settlement.
// Contributions maps every dealt-in player to the chips they put in, so a
// player's net for the hand is winnings minus contribution. Seats lists the
// dealt-in players in seat order with their starting stacks.
type HandResult struct {
	TableID        string         `json:"tableId"`
	HandNumber     int            `json:"handNumber"`
	Winners        []Winner       `json:"winners"`
	PotTotal       int            `json:"potTotal"`
	CommunityCards []deck.Card    `json:"communityCards"`
	WentToShowdown bool           `json:"wentToShowdown"`
	Contributions  map[string]int `json:"contributions"`
	Actions        []ActionRecord `json:"actions"`
	Seats          []HandSeat     `json:"seats"`
	ButtonSeat     int            `json:"buttonSeat"`
	SmallBlindSeat int            `json:"smallBlindSeat"`
	BigBlindSeat   int            `json:"bigBlindSeat"`
}

// seatViewFor builds the public view of one seat, revealing hole cards only
// to their owner.
func seatViewFor(s *Seat, viewerID string) SeatView {
	view := SeatView{
		Index:        s.Index,
		Status:       s.Status,
		PlayerID:     s.PlayerID,
		PlayerName:   s.PlayerName,
		Stack:        s.Stack,
		Position:     s.Position,
		BetThisRound: s.BetThisRound,
		BetThisHand:  s.BetThisHand,
		HasHoleCards: len(s.HoleCards) == 2,
	}
	if viewerID != "" && s.PlayerID == viewerID {
		view.HoleCards = append([]deck.Card(nil), s.HoleCards...)
	}
	return view
}

// Snapshot returns a deep copy of the table state.
func (t *Table) Snapshot() TableState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Table) snapshotLocked() TableState {
	state := TableState{
		Config:            t.cfg,
		Seats:             make([]Seat, len(t.seats)),
		DealerButtonIndex: t.button,
		Phase:             t.phase,
		CommunityCards:    append([]deck.Card(nil), t.community...),
		Pots:              make([]SidePot, 0, len(t.pots)),
		CurrentBet:        t.currentBet,
		MinRaise:          t.minRaise,
		ActivePlayerIndex: t.activeIdx,
		HandNumber:        t.handNumber,
		ActionHistory:     append([]ActionRecord(nil), t.history...),
	}
	for i, s := range t.seats {
		state.Seats[i] = s.clone()
	}
	for _, p := range t.pots {
		state.Pots = append(state.Pots, p.clone())
	}
	return state
}

// PlayerViewFor builds the sanitised view for one seated player.
func (t *Table) PlayerViewFor(playerID string) (PlayerView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatByPlayerID(playerID)
	if seat == nil {
		return PlayerView{}, ErrNotSeated
	}
	return t.playerViewLocked(seat), nil
}

func (t *Table) playerViewLocked(seat *Seat) PlayerView {
	view := PlayerView{
		TableID:        t.cfg.TableID,
		TableName:      t.cfg.TableName,
		HandNumber:     t.handNumber,
		Phase:          t.phase,
		SeatIndex:      seat.Index,
		PlayerID:       seat.PlayerID,
		PlayerName:     seat.PlayerName,
		HoleCards:      append([]deck.Card(nil), seat.HoleCards...),
		CommunityCards: append([]deck.Card(nil), t.community...),
		Stack:          seat.Stack,
		PotTotal:       t.potTotalLocked(),
		CurrentBet:     t.currentBet,
		MinRaise:       t.minRaise,
		DealerButton:   t.button,
		ActiveSeat:     t.activeIdx,
		Seats:          make([]SeatView, len(t.seats)),
	}
	for i, s := range t.seats {
		view.Seats[i] = seatViewFor(s, seat.PlayerID)
	}

	view.CallAmount = min(max(t.currentBet-seat.BetThisRound, 0), seat.Stack)
	if t.phase.Betting() && t.activeIdx == seat.Index {
		view.IsMyTurn = true
		view.ValidActions = validActionsFor(seat, t.currentBet, t.minRaise)
		for _, va := range view.ValidActions {
			if va.Action == Raise {
				view.MinRaiseAmount = va.MinAmount
				view.MaxRaiseAmount = va.MaxAmount
			}
		}
	}
	return view
}

// potTotalLocked is everything in the middle: collected pots plus live bets.
func (t *Table) potTotalLocked() int {
	total := PotTotal(t.pots)
	for _, s := range t.seats {
		total += s.BetThisRound
	}
	return total
}


package game

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/randutil"
)

// Table runs hands for up to six seats. All state transitions happen under
// one mutex; events go out through a queued bus so subscribers can call
// back into the table without deadlocking.
type Table struct {
	mu sync.Mutex

	cfg    TableConfig
	logger *log.Logger
	clock  quartz.Clock
	rng    *rand.Rand
	bus    *EventBus
	timer  *turnTimer

	seats []*Seat

	phase      Phase
	handNumber int
	button     int
	dealtIn    int
	sbIndex    int
	bbIndex    int

	community    []deck.Card
	pendingFlop  []deck.Card
	pendingTurn  deck.Card
	pendingRiver deck.Card
	boardReady   bool

	pots       []SidePot
	currentBet int
	minRaise   int
	activeIdx  int
	history    []ActionRecord

	deck      *deck.Deck
	fixedDeck bool

	presetButton int
	handChips    int
	halted       bool
	leaving      map[int]bool
}

// TableOption adjusts a table at construction time.
type TableOption func(*Table)

// WithClock injects the clock used for turn deadlines and action timestamps.
func WithClock(clock quartz.Clock) TableOption {
	return func(t *Table) { t.clock = clock }
}

// WithRNG injects the RNG used for shuffling and the first-hand button draw.
func WithRNG(rng *rand.Rand) TableOption {
	return func(t *Table) { t.rng = rng }
}

// WithLogger injects the table's logger.
func WithLogger(logger *log.Logger) TableOption {
	return func(t *Table) { t.logger = logger }
}

// WithButton fixes the first hand's dealer button instead of drawing it at
// random. Later hands rotate normally.
func WithButton(index int) TableOption {
	return func(t *Table) { t.presetButton = index }
}

// WithDeck deals from the given deck in order, without shuffling. Intended
// for tests that need known cards.
func WithDeck(d *deck.Deck) TableOption {
	return func(t *Table) {
		t.deck = d
		t.fixedDeck = true
	}
}

// NewTable creates a table with empty seats.
func NewTable(cfg TableConfig, opts ...TableOption) (*Table, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid table config: %w", err)
	}

	t := &Table{
		cfg:          cfg,
		phase:        PhaseWaiting,
		button:       -1,
		activeIdx:    -1,
		presetButton: -1,
		leaving:      make(map[int]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.clock == nil {
		t.clock = quartz.NewReal()
	}
	if t.rng == nil {
		t.rng = randutil.New(time.Now().UnixNano())
	}
	if t.logger == nil {
		t.logger = log.New(io.Discard)
	}
	if t.deck == nil {
		t.deck = deck.New(t.rng)
	}
	t.timer = newTurnTimer(t.clock)
	t.bus = NewEventBus()

	t.seats = make([]*Seat, cfg.MaxPlayers)
	for i := range t.seats {
		t.seats[i] = &Seat{Index: i}
	}
	return t, nil
}

// ID returns the table identifier.
func (t *Table) ID() string { return t.cfg.TableID }

// Name returns the display name.
func (t *Table) Name() string { return t.cfg.TableName }

// Config returns the table configuration.
func (t *Table) Config() TableConfig { return t.cfg }

// Events returns the table's event bus.
func (t *Table) Events() *EventBus { return t.bus }

// HandNumber returns the number of the current or most recent hand.
func (t *Table) HandNumber() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handNumber
}

// Phase returns the current phase.
func (t *Table) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Close halts the table, disarms its timer and shuts down the event bus.
func (t *Table) Close() {
	t.mu.Lock()
	t.halted = true
	t.timer.cancel()
	t.mu.Unlock()
	t.bus.Close()
}

// SeatPlayer seats a player at the first empty seat with the configured
// starting stack. Seating an already-seated player returns their existing
// seat index and changes nothing.
func (t *Table) SeatPlayer(playerID, playerName string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.halted {
		return -1, ErrTableHalted
	}
	if playerID == "" {
		return -1, fmt.Errorf("%w: empty player id", ErrNotSeated)
	}
	if existing := t.seatByPlayerID(playerID); existing != nil {
		return existing.Index, nil
	}

	for _, s := range t.seats {
		if s.Status != SeatEmpty {
			continue
		}
		*s = Seat{
			Index:      s.Index,
			Status:     SeatWaiting,
			PlayerID:   playerID,
			PlayerName: playerName,
			Stack:      t.cfg.StartingStack,
		}
		if t.phase.Betting() {
			// Joined mid-hand: fold the new stack into the conservation total.
			t.handChips += s.Stack
		}
		t.logger.Debug("player seated", "player", playerID, "name", playerName, "seat", s.Index)
		if t.fundedCount() < 2 {
			t.publish(NewWaitingForPlayersEvent(t.cfg.TableID, t.occupiedCount(), t.fundedCount()))
		}
		return s.Index, nil
	}
	return -1, ErrTableFull
}

// RemovePlayer takes a player off the table. Mid-hand the seat folds and is
// cleared once the hand completes; between hands it is cleared immediately.
func (t *Table) RemovePlayer(playerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatByPlayerID(playerID)
	if seat == nil {
		return ErrNotSeated
	}

	if t.phase.Betting() && seat.InHand() {
		t.leaving[seat.Index] = true
		if seat.Index == t.activeIdx {
			return t.processActionLocked(seat, Fold, 0, false)
		}
		seat.Status = SeatFolded
		t.logger.Debug("player removed mid-hand", "player", playerID, "seat", seat.Index)
		var err error
		switch {
		case t.handOverEarly():
			err = t.resolveFoldWin()
		case t.roundComplete():
			err = t.advancePhase()
		}
		if err != nil {
			return t.fail(err)
		}
		if err := t.validateLocked(); err != nil {
			return t.fail(err)
		}
		return nil
	}

	if t.phase.Betting() {
		t.handChips -= seat.Stack
	}
	*seat = Seat{Index: seat.Index}
	t.logger.Debug("player removed", "player", playerID, "seat", seat.Index)
	return nil
}

// CanStartHand reports whether dealNewHand would succeed right now.
func (t *Table) CanStartHand() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.halted &&
		(t.phase == PhaseWaiting || t.phase == PhaseComplete) &&
		t.fundedCount() >= 2
}

// DealNewHand starts the next hand: it resets per-hand state, rotates the
// button, deals hole cards, precomputes the board, posts blinds and opens
// the preflop betting round. HAND_START is the first event emitted for the
// hand, so a subscriber added before this call observes the whole hand.
func (t *Table) DealNewHand() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.halted {
		return ErrTableHalted
	}
	if t.phase != PhaseWaiting && t.phase != PhaseComplete {
		return ErrHandInProgress
	}
	if t.fundedCount() < 2 {
		return ErrNotEnoughPlayers
	}

	t.handNumber++
	t.phase = PhasePreflop
	t.community = nil
	t.boardReady = false
	t.pots = nil
	t.history = nil
	t.currentBet = 0
	t.minRaise = t.cfg.BigBlind
	t.activeIdx = -1

	t.dealtIn = 0
	for _, s := range t.seats {
		if !s.Occupied() {
			continue
		}
		s.resetForHand()
		if s.Stack > 0 {
			s.Status = SeatActive
			t.dealtIn++
		} else {
			s.Status = SeatSittingOut
		}
	}

	t.handChips = 0
	for _, s := range t.seats {
		t.handChips += s.Stack
	}

	t.rotateButton()
	t.assignPositions()

	if err := t.dealCards(); err != nil {
		return t.fail(err)
	}
	t.postBlinds()

	t.logger.Debug("hand dealt",
		"hand", t.handNumber, "players", t.dealtIn, "button", t.button,
		"sb", t.sbIndex, "bb", t.bbIndex)

	seatViews := make([]SeatView, len(t.seats))
	for i, s := range t.seats {
		seatViews[i] = seatViewFor(s, "")
	}
	t.publish(NewHandStartEvent(t.cfg.TableID, t.handNumber, t.button, t.cfg.SmallBlind, t.cfg.BigBlind, seatViews))
	t.publish(NewPhaseChangeEvent(t.cfg.TableID, t.handNumber, PhasePreflop, t.community, t.potTotalLocked()))

	if idx := t.firstToAct(); idx >= 0 {
		t.beginTurn(idx)
	} else if err := t.advancePhase(); err != nil {
		// Every seat went all-in on the blinds.
		return t.fail(err)
	}

	if err := t.validateLocked(); err != nil {
		return t.fail(err)
	}
	return nil
}

// SubmitAction applies an action from the active player. Illegal
// submissions return an error without mutating state.
func (t *Table) SubmitAction(playerID string, action Action, amount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.halted {
		return ErrTableHalted
	}
	if !t.phase.Betting() || t.activeIdx < 0 {
		return ErrNoActiveHand
	}
	seat := t.seatByPlayerID(playerID)
	if seat == nil {
		return ErrNotSeated
	}
	if seat.Index != t.activeIdx {
		return fmt.Errorf("%w: seat %d is acting", ErrNotYourTurn, t.activeIdx)
	}
	return t.processActionLocked(seat, action, amount, false)
}

// processActionLocked validates and applies one action, then drives the
// hand forward: fold-win, next street, or next player's turn.
func (t *Table) processActionLocked(seat *Seat, action Action, amount int, timedOut bool) error {
	valid := validActionsFor(seat, t.currentBet, t.minRaise)
	if !actionAllowed(valid, action) {
		t.logger.Warn("rejected action", "player", seat.PlayerID, "action", action, "amount", amount)
		return fmt.Errorf("%w: %s is not available to seat %d", ErrInvalidAction, action, seat.Index)
	}

	t.timer.cancel()

	recorded, err := t.applyAction(seat, action, amount)
	if err != nil {
		return err
	}

	record := ActionRecord{
		PlayerID:    seat.PlayerID,
		PlayerName:  seat.PlayerName,
		Action:      action,
		Amount:      recorded,
		Phase:       t.phase,
		SeatIndex:   seat.Index,
		TimestampMs: t.clock.Now().UnixMilli(),
	}
	t.history = append(t.history, record)
	t.publish(NewPlayerActionEvent(t.cfg.TableID, t.handNumber, record, timedOut, t.potTotalLocked()))
	t.logger.Debug("player action",
		"player", seat.PlayerID, "action", action, "amount", recorded,
		"phase", t.phase, "timedOut", timedOut)

	switch {
	case t.handOverEarly():
		if err := t.resolveFoldWin(); err != nil {
			return t.fail(err)
		}
	case t.roundComplete():
		if err := t.advancePhase(); err != nil {
			return t.fail(err)
		}
	default:
		next := t.nextActiveFrom(t.activeIdx + 1)
		if next < 0 {
			if err := t.advancePhase(); err != nil {
				return t.fail(err)
			}
		} else {
			t.beginTurn(next)
		}
	}

	if err := t.validateLocked(); err != nil {
		return t.fail(err)
	}
	return nil
}

// advancePhase collects the street into the pot partition and either runs
// out the board, resolves the showdown, or opens the next betting round.
func (t *Table) advancePhase() error {
	t.activeIdx = -1
	t.recomputePots()
	t.resetStreet()

	if t.shouldSkipToShowdown() || len(t.activeSeats()) == 0 {
		return t.runOutAndShowdown()
	}

	if t.phase == PhaseRiver {
		t.phase = PhaseShowdown
		t.publish(NewPhaseChangeEvent(t.cfg.TableID, t.handNumber, PhaseShowdown, t.community, t.potTotalLocked()))
		return t.resolveShowdown()
	}

	if err := t.revealNextStreet(); err != nil {
		return err
	}
	idx := t.firstToAct()
	if idx < 0 {
		return t.advancePhase()
	}
	t.beginTurn(idx)
	return nil
}

// runOutAndShowdown reveals any remaining streets and resolves the hand.
func (t *Table) runOutAndShowdown() error {
	for t.phase != PhaseRiver {
		if err := t.revealNextStreet(); err != nil {
			return err
		}
	}
	t.phase = PhaseShowdown
	t.publish(NewPhaseChangeEvent(t.cfg.TableID, t.handNumber, PhaseShowdown, t.community, t.potTotalLocked()))
	return t.resolveShowdown()
}

// revealNextStreet appends the precomputed cards for the next street.
func (t *Table) revealNextStreet() error {
	if !t.boardReady {
		return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber, Reason: "community cards were not precomputed"}
	}
	switch t.phase {
	case PhasePreflop:
		t.community = append(t.community, t.pendingFlop...)
		t.phase = PhaseFlop
	case PhaseFlop:
		t.community = append(t.community, t.pendingTurn)
		t.phase = PhaseTurn
	case PhaseTurn:
		t.community = append(t.community, t.pendingRiver)
		t.phase = PhaseRiver
	default:
		return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber,
			Reason: fmt.Sprintf("cannot reveal a street from phase %s", t.phase)}
	}
	t.publish(NewPhaseChangeEvent(t.cfg.TableID, t.handNumber, t.phase, t.community, t.potTotalLocked()))
	return nil
}

// recomputePots rebuilds the pot partition from hand contributions.
func (t *Table) recomputePots() {
	contribs := make([]PotContribution, 0, len(t.seats))
	for _, s := range t.seats {
		if s.BetThisHand == 0 && !s.InHand() {
			continue
		}
		contribs = append(contribs, PotContribution{
			PlayerID: s.PlayerID,
			Amount:   s.BetThisHand,
			Folded:   s.Status == SeatFolded,
		})
	}
	t.pots = CalculateSidePots(contribs)
}

// completeHand distributes payouts, publishes HAND_COMPLETE and parks the
// table in COMPLETE until the next deal.
func (t *Table) completeHand(winners []Winner, payouts map[int]int, total int, showdown bool) error {
	t.timer.cancel()
	t.activeIdx = -1

	contributions := make(map[string]int)
	var handSeats []HandSeat
	for _, s := range t.seats {
		if len(s.HoleCards) == 2 {
			contributions[s.PlayerID] = s.BetThisHand
			// Payouts are not applied yet, so stack plus contribution is
			// the stack the seat was dealt with.
			handSeats = append(handSeats, HandSeat{
				SeatIndex:  s.Index,
				PlayerID:   s.PlayerID,
				PlayerName: s.PlayerName,
				Stack:      s.Stack + s.BetThisHand,
			})
		}
	}

	for idx, amount := range payouts {
		t.seats[idx].Stack += amount
	}
	for _, s := range t.seats {
		s.BetThisRound = 0
		s.BetThisHand = 0
	}
	t.pots = nil
	t.phase = PhaseComplete

	result := HandResult{
		TableID:        t.cfg.TableID,
		HandNumber:     t.handNumber,
		Winners:        winners,
		PotTotal:       total,
		CommunityCards: append([]deck.Card(nil), t.community...),
		WentToShowdown: showdown,
		Contributions:  contributions,
		Actions:        append([]ActionRecord(nil), t.history...),
		Seats:          handSeats,
		ButtonSeat:     t.button,
		SmallBlindSeat: t.sbIndex,
		BigBlindSeat:   t.bbIndex,
	}

	for _, s := range t.seats {
		if !s.Occupied() {
			continue
		}
		if t.leaving[s.Index] {
			t.handChips -= s.Stack
			*s = Seat{Index: s.Index}
			continue
		}
		if s.Stack == 0 {
			s.Status = SeatSittingOut
		} else {
			s.Status = SeatWaiting
		}
	}
	clear(t.leaving)

	t.publish(NewHandCompleteEvent(t.cfg.TableID, result))
	t.logger.Info("hand complete",
		"hand", t.handNumber, "pot", total,
		"winners", len(winners), "showdown", showdown)

	if t.fundedCount() < 2 {
		t.publish(NewWaitingForPlayersEvent(t.cfg.TableID, t.occupiedCount(), t.fundedCount()))
	}
	return nil
}

// beginTurn makes idx the active seat, announces the turn and arms the
// timer. The deadline fires CHECK when free, otherwise FOLD.
func (t *Table) beginTurn(idx int) {
	t.activeIdx = idx
	seat := t.seats[idx]
	timeout := time.Duration(t.cfg.ActionTimeoutMs) * time.Millisecond
	deadline := t.clock.Now().Add(timeout)
	toCall := min(max(t.currentBet-seat.BetThisRound, 0), seat.Stack)

	t.publish(NewPlayerTurnEvent(
		t.cfg.TableID, t.handNumber, idx, seat.PlayerID, seat.PlayerName,
		t.phase, toCall, t.cfg.ActionTimeoutMs, deadline))
	t.timer.arm(timeout, t.onTurnDeadline)
}

// onTurnDeadline runs on the clock goroutine when a turn times out. Stale
// fires that lost the race with a cancel are dropped by sequence check.
func (t *Table) onTurnDeadline(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.halted || seq != t.timer.current() || !t.phase.Betting() || t.activeIdx < 0 {
		return
	}
	seat := t.seats[t.activeIdx]
	action := Fold
	if t.currentBet-seat.BetThisRound <= 0 {
		action = Check
	}
	t.logger.Debug("turn timed out", "player", seat.PlayerID, "seat", seat.Index, "default", action)
	if err := t.processActionLocked(seat, action, 0, true); err != nil {
		t.logger.Error("timeout default action failed", "player", seat.PlayerID, "error", err)
	}
}

// rotateButton draws a random button on the first hand, then advances
// clockwise to the next dealt-in seat.
func (t *Table) rotateButton() {
	if t.presetButton >= 0 {
		t.button = t.nextActiveFrom(t.presetButton)
		t.presetButton = -1
		return
	}
	if t.button < 0 {
		var actives []int
		for _, s := range t.seats {
			if s.Status == SeatActive {
				actives = append(actives, s.Index)
			}
		}
		t.button = actives[t.rng.IntN(len(actives))]
		return
	}
	t.button = t.nextActiveFrom(t.button + 1)
}

// assignPositions labels dealt-in seats clockwise from the button and
// resolves the blind seats. Heads-up the button posts the small blind.
func (t *Table) assignPositions() {
	positions := positionsFor(t.dealtIn)
	idx := t.button
	for _, pos := range positions {
		t.seats[idx].Position = pos
		idx = t.nextActiveFrom(idx + 1)
	}

	if t.dealtIn == 2 {
		t.sbIndex = t.button
		t.bbIndex = t.nextActiveFrom(t.button + 1)
	} else {
		t.sbIndex = t.nextActiveFrom(t.button + 1)
		t.bbIndex = t.nextActiveFrom(t.sbIndex + 1)
	}
}

// dealCards deals two hole cards to each dealt-in seat, one at a time
// starting left of the button, then precomputes the burn-and-deal board.
func (t *Table) dealCards() error {
	if !t.fixedDeck {
		t.deck.Reset()
		t.deck.Shuffle()
	}

	for round := 0; round < 2; round++ {
		idx := t.nextActiveFrom(t.button + 1)
		for i := 0; i < t.dealtIn; i++ {
			card, ok := t.deck.DealOne()
			if !ok {
				return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber, Reason: "deck exhausted dealing hole cards"}
			}
			seat := t.seats[idx]
			seat.HoleCards = append(seat.HoleCards, card)
			idx = t.nextActiveFrom(idx + 1)
		}
	}

	burnAndDeal := func(n int) ([]deck.Card, bool) {
		if _, ok := t.deck.DealOne(); !ok {
			return nil, false
		}
		cards := t.deck.Deal(n)
		return cards, len(cards) == n
	}

	flop, ok := burnAndDeal(3)
	if !ok {
		return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber, Reason: "deck exhausted dealing flop"}
	}
	turn, ok := burnAndDeal(1)
	if !ok {
		return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber, Reason: "deck exhausted dealing turn"}
	}
	river, ok := burnAndDeal(1)
	if !ok {
		return &InvariantError{TableID: t.cfg.TableID, HandNumber: t.handNumber, Reason: "deck exhausted dealing river"}
	}

	t.pendingFlop = flop
	t.pendingTurn = turn[0]
	t.pendingRiver = river[0]
	t.boardReady = true
	return nil
}

// postBlinds posts forced bets capped at each seat's stack.
func (t *Table) postBlinds() {
	post := func(idx, amount int) {
		seat := t.seats[idx]
		pay := min(amount, seat.Stack)
		seat.Stack -= pay
		seat.BetThisRound += pay
		seat.BetThisHand += pay
		if seat.Status == SeatActive && seat.Stack == 0 {
			seat.Status = SeatAllIn
		}
	}
	post(t.sbIndex, t.cfg.SmallBlind)
	post(t.bbIndex, t.cfg.BigBlind)
	t.currentBet = t.cfg.BigBlind
}

// validateLocked checks the table's structural invariants. A non-nil
// return means the table state can no longer be trusted.
func (t *Table) validateLocked() error {
	inHand := t.phase.Betting() || t.phase == PhaseShowdown || t.phase == PhaseComplete
	chips := 0
	for _, s := range t.seats {
		if s.Stack < 0 {
			return t.invariantf("seat %d has negative stack %d", s.Index, s.Stack)
		}
		if s.BetThisRound < 0 || s.BetThisHand < s.BetThisRound {
			return t.invariantf("seat %d has bets round=%d hand=%d", s.Index, s.BetThisRound, s.BetThisHand)
		}
		if t.phase.Betting() && s.BetThisRound > t.currentBet {
			return t.invariantf("seat %d bet %d exceeds current bet %d", s.Index, s.BetThisRound, t.currentBet)
		}
		chips += s.Stack + s.BetThisHand
	}
	if inHand && t.handNumber > 0 && chips != t.handChips {
		return t.invariantf("chip conservation broken: have %d, want %d", chips, t.handChips)
	}
	if t.phase.Betting() && t.minRaise < t.cfg.BigBlind {
		return t.invariantf("minRaise %d below big blind %d", t.minRaise, t.cfg.BigBlind)
	}
	if t.phase.Betting() || t.phase == PhaseShowdown {
		if want := t.phase.communityCount(); len(t.community) != want {
			return t.invariantf("phase %s with %d community cards", t.phase, len(t.community))
		}
	}
	// Live bets must be consistent with the collected partition.
	live := 0
	for _, s := range t.seats {
		live += s.BetThisRound
	}
	contributed := 0
	for _, s := range t.seats {
		contributed += s.BetThisHand
	}
	if PotTotal(t.pots)+live != contributed {
		return t.invariantf("pots %d + live %d != contributed %d", PotTotal(t.pots), live, contributed)
	}
	return nil
}

func (t *Table) invariantf(format string, args ...any) error {
	return &InvariantError{
		TableID:    t.cfg.TableID,
		HandNumber: t.handNumber,
		Reason:     fmt.Sprintf(format, args...),
	}
}

// fail halts the table and returns err unchanged.
func (t *Table) fail(err error) error {
	t.halted = true
	t.timer.cancel()
	t.logger.Error("table halted", "error", err)
	return err
}

func (t *Table) publish(ev Event) {
	t.bus.Publish(ev)
}

func (t *Table) seatByPlayerID(playerID string) *Seat {
	for _, s := range t.seats {
		if s.Occupied() && s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (t *Table) fundedCount() int {
	n := 0
	for _, s := range t.seats {
		if s.Occupied() && s.Stack > 0 {
			n++
		}
	}
	return n
}

func (t *Table) occupiedCount() int {
	n := 0
	for _, s := range t.seats {
		if s.Occupied() {
			n++
		}
	}
	return n
}

package game

import (
	"slices"
	"sync"
	"time"

	"github.com/lox/holdem-arena/internal/deck"
)

// EventType identifies a table lifecycle event.
type EventType string

const (
	EventTypeHandStart         EventType = "HAND_START"
	EventTypePhaseChange       EventType = "PHASE_CHANGE"
	EventTypePlayerTurn        EventType = "PLAYER_TURN"
	EventTypePlayerAction      EventType = "PLAYER_ACTION"
	EventTypeHandComplete      EventType = "HAND_COMPLETE"
	EventTypeWaitingForPlayers EventType = "WAITING_FOR_PLAYERS"
)

func (et EventType) String() string { return string(et) }

// Event is a table lifecycle event. Events from one table are delivered to
// each subscriber in emission order.
type Event interface {
	EventType() EventType
	Table() string
	Timestamp() time.Time
}

// HandStartEvent is published when a new hand is dealt. It is always the
// first event of a hand.
type HandStartEvent struct {
	tableID     string
	HandNumber  int
	ButtonIndex int
	SmallBlind  int
	BigBlind    int
	Seats       []SeatView
	timestamp   time.Time
}

func (e HandStartEvent) EventType() EventType { return EventTypeHandStart }
func (e HandStartEvent) Table() string        { return e.tableID }
func (e HandStartEvent) Timestamp() time.Time { return e.timestamp }

// NewHandStartEvent creates a hand start event.
func NewHandStartEvent(tableID string, handNumber, button, smallBlind, bigBlind int, seats []SeatView) HandStartEvent {
	return HandStartEvent{
		tableID:     tableID,
		HandNumber:  handNumber,
		ButtonIndex: button,
		SmallBlind:  smallBlind,
		BigBlind:    bigBlind,
		Seats:       seats,
		timestamp:   time.Now(),
	}
}

// PhaseChangeEvent is published when the table moves to a new phase.
type PhaseChangeEvent struct {
	tableID        string
	HandNumber     int
	Phase          Phase
	CommunityCards []deck.Card
	PotTotal       int
	timestamp      time.Time
}

func (e PhaseChangeEvent) EventType() EventType { return EventTypePhaseChange }
func (e PhaseChangeEvent) Table() string        { return e.tableID }
func (e PhaseChangeEvent) Timestamp() time.Time { return e.timestamp }

// NewPhaseChangeEvent creates a phase change event with a copy of the board.
func NewPhaseChangeEvent(tableID string, handNumber int, phase Phase, community []deck.Card, potTotal int) PhaseChangeEvent {
	return PhaseChangeEvent{
		tableID:        tableID,
		HandNumber:     handNumber,
		Phase:          phase,
		CommunityCards: append([]deck.Card(nil), community...),
		PotTotal:       potTotal,
		timestamp:      time.Now(),
	}
}

// PlayerTurnEvent is published when a seat's turn begins. The deadline is
// the instant the turn timer fires a default action.
type PlayerTurnEvent struct {
	tableID    string
	HandNumber int
	SeatIndex  int
	PlayerID   string
	PlayerName string
	Phase      Phase
	CallAmount int
	TimeoutMs  int
	Deadline   time.Time
	timestamp  time.Time
}

func (e PlayerTurnEvent) EventType() EventType { return EventTypePlayerTurn }
func (e PlayerTurnEvent) Table() string        { return e.tableID }
func (e PlayerTurnEvent) Timestamp() time.Time { return e.timestamp }

// NewPlayerTurnEvent creates a player turn event.
func NewPlayerTurnEvent(tableID string, handNumber, seatIndex int, playerID, playerName string, phase Phase, callAmount, timeoutMs int, deadline time.Time) PlayerTurnEvent {
	return PlayerTurnEvent{
		tableID:    tableID,
		HandNumber: handNumber,
		SeatIndex:  seatIndex,
		PlayerID:   playerID,
		PlayerName: playerName,
		Phase:      phase,
		CallAmount: callAmount,
		TimeoutMs:  timeoutMs,
		Deadline:   deadline,
		timestamp:  time.Now(),
	}
}

// PlayerActionEvent is published after an action has been applied.
// TimedOut marks default actions synthesised by the turn timer.
type PlayerActionEvent struct {
	tableID    string
	HandNumber int
	Record     ActionRecord
	TimedOut   bool
	PotTotal   int
	timestamp  time.Time
}

func (e PlayerActionEvent) EventType() EventType { return EventTypePlayerAction }
func (e PlayerActionEvent) Table() string        { return e.tableID }
func (e PlayerActionEvent) Timestamp() time.Time { return e.timestamp }

// NewPlayerActionEvent creates a player action event.
func NewPlayerActionEvent(tableID string, handNumber int, record ActionRecord, timedOut bool, potTotal int) PlayerActionEvent {
	return PlayerActionEvent{
		tableID:    tableID,
		HandNumber: handNumber,
		Record:     record,
		TimedOut:   timedOut,
		PotTotal:   potTotal,
		timestamp:  time.Now(),
	}
}

// HandCompleteEvent is published once winnings have been distributed.
type HandCompleteEvent struct {
	tableID   string
	Result    HandResult
	timestamp time.Time
}

func (e HandCompleteEvent) EventType() EventType { return EventTypeHandComplete }
func (e HandCompleteEvent) Table() string        { return e.tableID }
func (e HandCompleteEvent) Timestamp() time.Time { return e.timestamp }

// NewHandCompleteEvent creates a hand complete event.
func NewHandCompleteEvent(tableID string, result HandResult) HandCompleteEvent {
	return HandCompleteEvent{tableID: tableID, Result: result, timestamp: time.Now()}
}

// WaitingForPlayersEvent is published when the table cannot start a hand.
type WaitingForPlayersEvent struct {
	tableID   string
	Seated    int
	Funded    int
	timestamp time.Time
}

func (e WaitingForPlayersEvent) EventType() EventType { return EventTypeWaitingForPlayers }
func (e WaitingForPlayersEvent) Table() string        { return e.tableID }
func (e WaitingForPlayersEvent) Timestamp() time.Time { return e.timestamp }

// NewWaitingForPlayersEvent creates a waiting-for-players event.
func NewWaitingForPlayersEvent(tableID string, seated, funded int) WaitingForPlayersEvent {
	return WaitingForPlayersEvent{tableID: tableID, Seated: seated, Funded: funded, timestamp: time.Now()}
}

// EventSubscriber receives table events. Handlers run on the bus dispatch
// goroutine and may call back into the table, but must not call Drain.
type EventSubscriber interface {
	OnGameEvent(Event)
}

// EventBus delivers table events to subscribers. Publishing never blocks on
// subscribers: events are queued and a single dispatch goroutine delivers
// them in order, so a handler that re-enters the table cannot deadlock it.
//
// A subscriber added before an event is published is guaranteed to receive
// it; the subscriber set is snapshotted per event at publish time.
type EventBus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	subs   []EventSubscriber
	queue  []queuedEvent
	idle   bool
	closed bool
}

type queuedEvent struct {
	event Event
	subs  []EventSubscriber
}

// NewEventBus creates a bus and starts its dispatch goroutine.
func NewEventBus() *EventBus {
	b := &EventBus{}
	b.cond = sync.NewCond(&b.mu)
	go b.dispatch()
	return b
}

// Subscribe registers a subscriber for events published from now on.
// Subscribers must be comparable (use pointer receivers).
func (b *EventBus) Subscribe(s EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Copy-on-write keeps per-event snapshots stable.
	subs := make([]EventSubscriber, 0, len(b.subs)+1)
	subs = append(subs, b.subs...)
	b.subs = append(subs, s)
}

// Unsubscribe removes a subscriber. Events already queued for it are still
// delivered.
func (b *EventBus) Unsubscribe(s EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == s {
			b.subs = slices.Delete(slices.Clone(b.subs), i, i+1)
			return
		}
	}
}

// Publish queues events for delivery. It never blocks on subscribers and is
// a no-op after Close.
func (b *EventBus) Publish(events ...Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ev := range events {
		b.queue = append(b.queue, queuedEvent{event: ev, subs: b.subs})
	}
	b.cond.Broadcast()
}

// Close drains the queue and stops the dispatch goroutine.
func (b *EventBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Drain blocks until every queued event has been delivered. It must not be
// called from an event handler.
func (b *EventBus) Drain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for !(len(b.queue) == 0 && b.idle) {
		b.cond.Wait()
	}
}

func (b *EventBus) dispatch() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.idle = true
			b.cond.Broadcast()
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.closed {
			b.idle = true
			b.cond.Broadcast()
			b.mu.Unlock()
			return
		}
		batch := b.queue
		b.queue = nil
		b.idle = false
		b.mu.Unlock()

		for _, qe := range batch {
			for _, sub := range qe.subs {
				sub.OnGameEvent(qe.event)
			}
		}
	}
}

package dashboard

import (
	"sync"
	"time"
)

// Topic names the arena publishes on.
const (
	TopicActions = "actions"
	TopicStats   = "stats"
	TopicWinRate = "winrate"
	TopicErrors  = "errors"
)

// Retention bounds per topic. The action log keeps the most recent 200
// entries; stats and win-rate history keep 500 points.
const (
	actionRetention  = 200
	statsRetention   = 500
	winRateRetention = 500
	errorRetention   = 100
	subscriberBuffer = 64
)

// Event is one published item, stamped at publish time.
type Event struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// ActionEntry is the action-log payload.
type ActionEntry struct {
	TableID    string `json:"tableId"`
	HandNumber int    `json:"handNumber"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Action     string `json:"action"`
	Amount     int    `json:"amount"`
	Phase      string `json:"phase"`
	PotTotal   int    `json:"potTotal"`
	TimedOut   bool   `json:"timedOut"`
}

// WinRatePoint is one player's running result after a hand.
type WinRatePoint struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	Hands      int     `json:"hands"`
	WinRate    float64 `json:"winRate"`
	NetChips   int     `json:"netChips"`
}

// ErrorEntry reports a component failure worth surfacing.
type ErrorEntry struct {
	Source  string `json:"source"`
	TableID string `json:"tableId,omitempty"`
	Message string `json:"message"`
}

// Bus is a named publish/subscribe hub with bounded retained buffers.
// Publishing never blocks: slow subscribers drop events, and new subscribers
// receive an initial-state snapshot synthesised from the retained buffers.
type Bus struct {
	mu       sync.Mutex
	retained map[string]*ring
	subs     map[int]*subscriber
	nextID   int
	closed   bool
}

type subscriber struct {
	topics map[string]bool
	ch     chan Event
}

func (s *subscriber) wants(topic string) bool {
	return len(s.topics) == 0 || s.topics[topic]
}

// Subscription is one subscriber's view of the bus. Initial holds the
// retained events at subscribe time, oldest first; C carries everything
// published afterwards.
type Subscription struct {
	Initial []Event
	C       <-chan Event

	bus *Bus
	id  int
}

// Close detaches the subscription. The channel is closed; pending events may
// still be read.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		retained: make(map[string]*ring),
		subs:     make(map[int]*subscriber),
	}
}

// Publish retains the event on its topic and fans it out. Never blocks; a
// subscriber whose buffer is full misses this event.
func (b *Bus) Publish(topic string, payload any) {
	ev := Event{Topic: topic, Payload: payload, At: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.ringFor(topic).add(ev)
	for _, sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Subscribe registers for the given topics; no topics means everything. The
// returned subscription's Initial slice replays the retained buffers of the
// subscribed topics, oldest first per topic, in topic-registration order.
func (b *Bus) Subscribe(topics ...string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	var initial []Event
	if len(topics) == 0 {
		topics = []string{TopicActions, TopicStats, TopicWinRate, TopicErrors}
	}
	for _, t := range topics {
		if r, ok := b.retained[t]; ok {
			initial = append(initial, r.snapshot()...)
		}
	}

	id := b.nextID
	b.nextID++
	if b.closed {
		close(sub.ch)
	} else {
		b.subs[id] = sub
	}

	return &Subscription{Initial: initial, C: sub.ch, bus: b, id: id}
}

// Retained returns the retained events for one topic, oldest first.
func (b *Bus) Retained(topic string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.retained[topic]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Close stops delivery and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

func (b *Bus) ringFor(topic string) *ring {
	if r, ok := b.retained[topic]; ok {
		return r
	}
	limit := errorRetention
	switch topic {
	case TopicActions:
		limit = actionRetention
	case TopicStats:
		limit = statsRetention
	case TopicWinRate:
		limit = winRateRetention
	}
	r := &ring{limit: limit}
	b.retained[topic] = r
	return r
}

// ring is a trim-oldest buffer of the last limit events.
type ring struct {
	limit int
	items []Event
}

func (r *ring) add(ev Event) {
	if len(r.items) == r.limit {
		copy(r.items, r.items[1:])
		r.items[r.limit-1] = ev
		return
	}
	r.items = append(r.items, ev)
}

func (r *ring) snapshot() []Event {
	out := make([]Event, len(r.items))
	copy(out, r.items)
	return out
}

package game

import (
	"fmt"
	"sync"
	"testing"

	"github.com/lox/holdem-arena/internal/randutil"
)

// testConfig returns a six-seat 5/10 table.
func testConfig() TableConfig {
	return TableConfig{
		TableID:         "table-1",
		TableName:       "Test Table",
		MaxPlayers:      6,
		SmallBlind:      5,
		BigBlind:        10,
		StartingStack:   1000,
		ActionTimeoutMs: 30000,
	}
}

// newTestTable builds a table with players p0..p(n-1) seated in order and the
// button pinned to seat 0 so positions and action order are predictable.
// Later options override the pinned defaults.
func newTestTable(t *testing.T, cfg TableConfig, players int, opts ...TableOption) *Table {
	t.Helper()

	opts = append([]TableOption{WithRNG(randutil.New(42)), WithButton(0)}, opts...)
	tbl, err := NewTable(cfg, opts...)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	t.Cleanup(tbl.Close)

	for i := 0; i < players; i++ {
		id := fmt.Sprintf("p%d", i)
		idx, err := tbl.SeatPlayer(id, fmt.Sprintf("Player %d", i))
		if err != nil {
			t.Fatalf("SeatPlayer(%s): %v", id, err)
		}
		if idx != i {
			t.Fatalf("SeatPlayer(%s) seat = %d, want %d", id, idx, i)
		}
	}
	return tbl
}

func mustDeal(t *testing.T, tbl *Table) {
	t.Helper()
	if err := tbl.DealNewHand(); err != nil {
		t.Fatalf("DealNewHand: %v", err)
	}
}

func mustAct(t *testing.T, tbl *Table, playerID string, action Action, amount int) {
	t.Helper()
	if err := tbl.SubmitAction(playerID, action, amount); err != nil {
		t.Fatalf("SubmitAction(%s, %s, %d): %v", playerID, action, amount, err)
	}
}

// stacks returns each seated player's stack keyed by player id.
func stacks(tbl *Table) map[string]int {
	out := make(map[string]int)
	for _, s := range tbl.Snapshot().Seats {
		if s.PlayerID != "" {
			out[s.PlayerID] = s.Stack
		}
	}
	return out
}

// eventCollector records every event it receives, in delivery order.
type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) OnGameEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *eventCollector) ofType(et EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.EventType() == et {
			out = append(out, ev)
		}
	}
	return out
}

// lastHandResult drains the bus and returns the most recent HAND_COMPLETE
// payload seen by the collector.
func lastHandResult(t *testing.T, tbl *Table, c *eventCollector) HandResult {
	t.Helper()
	tbl.Events().Drain()
	completes := c.ofType(EventTypeHandComplete)
	if len(completes) == 0 {
		t.Fatalf("no HAND_COMPLETE event observed")
	}
	return completes[len(completes)-1].(HandCompleteEvent).Result
}

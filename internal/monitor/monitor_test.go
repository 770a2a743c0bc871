package monitor

import (
	"fmt"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/dashboard"
)

// Plain-text rendering keeps view assertions independent of the terminal the
// tests run in.
func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// sized delivers a window size so View renders the full layout.
func sized(t *testing.T, m *Model) *Model {
	t.Helper()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 110, Height: 32})
	model, ok := updated.(*Model)
	require.True(t, ok)
	return model
}

func TestMonitorViewBeforeSizing(t *testing.T) {
	t.Parallel()

	m := New(dashboard.New(), WithLogger(testLogger()))
	assert.Equal(t, "Loading...", m.View())
}

func TestMonitorReplaysRetainedEvents(t *testing.T) {
	t.Parallel()

	bus := dashboard.New()
	bus.Publish(dashboard.TopicActions, dashboard.ActionEntry{
		TableID:    "table-1",
		HandNumber: 3,
		PlayerID:   "p1",
		PlayerName: "alice",
		Action:     "RAISE",
		Amount:     60,
		Phase:      "FLOP",
		PotTotal:   120,
	})
	bus.Publish(dashboard.TopicWinRate, dashboard.WinRatePoint{
		PlayerID: "p1", PlayerName: "alice", Hands: 10, WinRate: 0.4, NetChips: 250,
	})
	bus.Publish(dashboard.TopicStats, arena.Status{
		Running: true, HandsCompleted: 10, MaxHands: 100, Players: 6, HandsPerSecond: 2.5,
	})
	bus.Publish(dashboard.TopicErrors, dashboard.ErrorEntry{
		Source: "settlement", Message: "ledger write failed",
	})

	m := sized(t, New(bus, WithLogger(testLogger())))
	view := m.View()

	assert.Contains(t, view, "HOLD'EM ARENA")
	assert.Contains(t, view, "RUNNING")
	assert.Contains(t, view, "hands 10/100")
	assert.Contains(t, view, "players 6")
	assert.Contains(t, view, "2.5 hands/s")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "RAISE")
	assert.Contains(t, view, "ledger write failed")
}

func TestMonitorAppliesLiveEvents(t *testing.T) {
	t.Parallel()

	m := sized(t, New(dashboard.New(), WithLogger(testLogger())))
	assert.Contains(t, m.View(), "IDLE")
	assert.Contains(t, m.View(), "waiting for hands...")

	_, cmd := m.Update(eventMsg(dashboard.Event{
		Topic:   dashboard.TopicStats,
		Payload: arena.Status{Running: true, HandsCompleted: 1, MaxHands: 8, Players: 4},
	}))
	require.NotNil(t, cmd, "the event pump should re-arm after each event")

	m.Update(eventMsg(dashboard.Event{
		Topic: dashboard.TopicActions,
		Payload: dashboard.ActionEntry{
			TableID:    "table-2",
			HandNumber: 1,
			PlayerName: "bot-3",
			Action:     "ALL_IN",
			Amount:     980,
			Phase:      "TURN",
			PotTotal:   2000,
			TimedOut:   true,
		},
	}))
	m.Update(eventMsg(dashboard.Event{
		Topic:   dashboard.TopicWinRate,
		Payload: dashboard.WinRatePoint{PlayerID: "b3", PlayerName: "bot-3", Hands: 1, WinRate: 1, NetChips: 1020},
	}))

	view := m.View()
	assert.Contains(t, view, "RUNNING")
	assert.Contains(t, view, "hands 1/8")
	assert.Contains(t, view, "ALL_IN")
	assert.Contains(t, view, "(timeout)")
	assert.Contains(t, view, "bot-3")
	assert.NotContains(t, view, "waiting for hands...")
}

func TestMonitorShowsCompletionReason(t *testing.T) {
	t.Parallel()

	m := sized(t, New(dashboard.New(), WithLogger(testLogger())))
	m.apply(dashboard.Event{
		Topic:   dashboard.TopicStats,
		Payload: arena.Status{HandsCompleted: 100, MaxHands: 100, CompletionReason: "hand_limit_reached"},
	})

	view := m.View()
	assert.Contains(t, view, "FINISHED hand_limit_reached")
	assert.NotContains(t, view, "RUNNING")
}

func TestMonitorLeaderboardOrdering(t *testing.T) {
	t.Parallel()

	m := New(dashboard.New(), WithLogger(testLogger()))
	for _, p := range []dashboard.WinRatePoint{
		{PlayerID: "b1", PlayerName: "grinder", Hands: 5, WinRate: 0.2, NetChips: -40},
		{PlayerID: "b2", PlayerName: "shark", Hands: 5, WinRate: 0.6, NetChips: 300},
		{PlayerID: "b1", PlayerName: "grinder", Hands: 6, WinRate: 0.33, NetChips: 120},
	} {
		m.apply(dashboard.Event{Topic: dashboard.TopicWinRate, Payload: p})
	}

	sidebar := m.renderSidebar()
	shark := strings.Index(sidebar, "shark")
	grinder := strings.Index(sidebar, "grinder")
	require.NotEqual(t, -1, shark)
	require.NotEqual(t, -1, grinder)
	assert.Less(t, shark, grinder, "higher net chips should rank first")

	// The latest point for a player replaces the earlier one.
	assert.Contains(t, sidebar, "+120")
	assert.NotContains(t, sidebar, "-40")
}

func TestMonitorTableList(t *testing.T) {
	t.Parallel()

	m := New(dashboard.New(), WithLogger(testLogger()))
	m.apply(dashboard.Event{
		Topic: dashboard.TopicStats,
		Payload: arena.Status{
			Running: true,
			Tables: []arena.TableStatus{
				{TableID: "table-1", Name: "Table 1", HandNumber: 12, Phase: "FLOP", Players: 3},
				{TableID: "table-2", Name: "Table 2", HandNumber: 9, Phase: "RIVER", Players: 2},
			},
		},
	})

	sidebar := m.renderSidebar()
	assert.Contains(t, sidebar, "table-1 #12 FLOP (3 players)")
	assert.Contains(t, sidebar, "table-2 #9 RIVER (2 players)")
}

func TestMonitorErrorTail(t *testing.T) {
	t.Parallel()

	m := New(dashboard.New(), WithLogger(testLogger()))
	for i := 0; i < errorTail+2; i++ {
		m.apply(dashboard.Event{
			Topic:   dashboard.TopicErrors,
			Payload: dashboard.ErrorEntry{Source: "arena", Message: fmt.Sprintf("fault %d", i)},
		})
	}

	require.Len(t, m.errs, errorTail)
	sidebar := m.renderSidebar()
	assert.NotContains(t, sidebar, "fault 0")
	assert.Contains(t, sidebar, fmt.Sprintf("fault %d", errorTail+1))
}

func TestMonitorLogCap(t *testing.T) {
	t.Parallel()

	m := New(dashboard.New(), WithLogger(testLogger()))
	for i := 0; i < maxLogLines+25; i++ {
		m.apply(dashboard.Event{
			Topic:   dashboard.TopicActions,
			Payload: dashboard.ActionEntry{TableID: "table-1", HandNumber: i, Action: "CHECK"},
		})
	}

	assert.Len(t, m.actionLog, maxLogLines)
}

func TestMonitorQuitKeys(t *testing.T) {
	t.Parallel()

	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		t.Run(key.String(), func(t *testing.T) {
			m := sized(t, New(dashboard.New(), WithLogger(testLogger())))

			_, cmd := m.Update(key)
			require.NotNil(t, cmd)
			assert.True(t, m.quitting)
			assert.Equal(t, "", m.View())

			// Quitting detaches the subscription, so the pump sees a
			// closed channel instead of blocking forever.
			msg := waitForEvent(m.events)()
			assert.IsType(t, streamClosedMsg{}, msg)
		})
	}
}

func TestMonitorStreamClosed(t *testing.T) {
	t.Parallel()

	bus := dashboard.New()
	m := sized(t, New(bus, WithLogger(testLogger())))
	bus.Close()

	msg := waitForEvent(m.events)()
	require.IsType(t, streamClosedMsg{}, msg)

	_, cmd := m.Update(msg)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "event stream closed")
}

func TestFormatAction(t *testing.T) {
	t.Parallel()

	line := formatAction(dashboard.ActionEntry{
		TableID:    "table-1",
		HandNumber: 7,
		PlayerName: "bot-2",
		Action:     "RAISE",
		Amount:     60,
		Phase:      "FLOP",
		PotTotal:   150,
	})
	assert.Equal(t, "table-1 #7 bot-2 RAISE 60 | pot 150 | FLOP", line)

	folded := formatAction(dashboard.ActionEntry{
		TableID:    "table-1",
		HandNumber: 7,
		PlayerName: "bot-4",
		Action:     "FOLD",
		Phase:      "FLOP",
		PotTotal:   150,
		TimedOut:   true,
	})
	assert.Equal(t, "table-1 #7 bot-4 FOLD | pot 150 | FLOP (timeout)", folded)
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	withTable := formatError(dashboard.ErrorEntry{Source: "arena", TableID: "table-2", Message: "engine stalled"})
	assert.Equal(t, "[arena] table-2: engine stalled", withTable)

	withoutTable := formatError(dashboard.ErrorEntry{Source: "settlement", Message: "boom"})
	assert.Equal(t, "[settlement] boom", withoutTable)
}

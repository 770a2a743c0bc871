package agent

import (
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/holdem-arena/internal/game"
)

// timeoutReasoning is attached to decisions synthesised when an agent never
// answers within its deadline.
const timeoutReasoning = "auto-action timeout"

// pendingTurn is a one-shot slot for the decision expected from a push- or
// pull-mode agent. Exactly one resolution wins: an answer in time, the
// deadline firing the default action, or cancellation on unregister.
type pendingTurn struct {
	agentID   string
	playerID  string
	tableID   string
	view      game.PlayerView
	startedAt time.Time
	deadline  time.Time
	timeoutMs int

	timer *quartz.Timer

	mu       sync.Mutex
	done     chan struct{}
	resolved bool
	decision game.Decision
	timedOut bool
}

func newPendingTurn(agentID string, view game.PlayerView, now time.Time, timeout time.Duration) *pendingTurn {
	return &pendingTurn{
		agentID:   agentID,
		playerID:  view.PlayerID,
		tableID:   view.TableID,
		view:      view,
		startedAt: now,
		deadline:  now.Add(timeout),
		timeoutMs: int(timeout / time.Millisecond),
		done:      make(chan struct{}),
	}
}

// arm starts the deadline timer. No-op when the turn already resolved.
func (pt *pendingTurn) arm(clock quartz.Clock, onTimeout func()) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.resolved {
		return
	}
	pt.timer = clock.AfterFunc(pt.deadline.Sub(pt.startedAt), onTimeout)
}

// resolve settles the turn with dec. It reports whether this call won; later
// calls are rejected so duplicate or late submissions cannot overwrite the
// decision the table already received.
func (pt *pendingTurn) resolve(dec game.Decision, timedOut bool) bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.resolved {
		return false
	}
	pt.resolved = true
	pt.decision = dec
	pt.timedOut = timedOut
	if pt.timer != nil {
		pt.timer.Stop()
	}
	close(pt.done)
	return true
}

// result returns the settled decision. Only valid after done is closed.
func (pt *pendingTurn) result() (game.Decision, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.decision, pt.timedOut
}

func (pt *pendingTurn) isResolved() bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.resolved
}

// TurnSnapshot is the poll-endpoint payload describing an agent's pending
// turn, or the absence of one.
type TurnSnapshot struct {
	HasTurn         bool             `json:"hasTurn"`
	PlayerView      *game.PlayerView `json:"playerView,omitempty"`
	TimeoutMs       int              `json:"timeoutMs,omitempty"`
	TurnStartedAtMs int64            `json:"turnStartedAtMs,omitempty"`
	RemainingMs     int64            `json:"remainingMs,omitempty"`
	Status          string           `json:"status,omitempty"`
	PlayerID        string           `json:"playerId,omitempty"`
	TableID         string           `json:"tableId,omitempty"`
}

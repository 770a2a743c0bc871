package agent

import (
	"context"
	"errors"

	"github.com/lox/holdem-arena/internal/game"
)

// Mode is how an agent's decisions are obtained.
type Mode string

const (
	// ModeInternal agents run in-process: a registered function is invoked
	// synchronously for each decision.
	ModeInternal Mode = "internal"
	// ModeCallback agents are pushed each turn over HTTP and answer in the
	// response body.
	ModeCallback Mode = "callback"
	// ModePolling agents poll for a pending turn and submit their decision
	// through a separate call.
	ModePolling Mode = "polling"
)

var (
	ErrMaxAgents           = errors.New("agent limit reached")
	ErrUnknownAgent        = errors.New("unknown agent")
	ErrCallbackURLRequired = errors.New("callback mode requires a callback url")
	ErrNoPendingTurn       = errors.New("no pending turn")
	ErrTurnResolved        = errors.New("turn already resolved")
)

// DecideFunc produces a decision for an in-process agent. The context
// carries the turn deadline.
type DecideFunc func(ctx context.Context, view game.PlayerView) (game.Decision, error)

// Registration describes an agent being registered.
type Registration struct {
	Name          string            `json:"name"`
	Mode          Mode              `json:"mode"`
	CallbackURL   string            `json:"callbackUrl,omitempty"`
	WalletAddress string            `json:"walletAddress,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Info is the public snapshot of a registered agent.
type Info struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Mode          Mode              `json:"mode"`
	CallbackURL   string            `json:"callbackUrl,omitempty"`
	WalletAddress string            `json:"walletAddress,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	PlayerID      string            `json:"playerId,omitempty"`
	TableID       string            `json:"tableId,omitempty"`
	Decisions     int               `json:"decisions"`
	MeanLatencyMs float64           `json:"meanLatencyMs"`
}

// agent is the registry's internal record.
type agent struct {
	id            string
	name          string
	mode          Mode
	callbackURL   string
	walletAddress string
	metadata      map[string]string
	decide        DecideFunc

	playerID string
	tableID  string

	latency latencyTracker
}

func (a *agent) info() Info {
	count, mean := a.latency.snapshot()
	return Info{
		ID:            a.id,
		Name:          a.name,
		Mode:          a.mode,
		CallbackURL:   a.callbackURL,
		WalletAddress: a.walletAddress,
		Metadata:      a.metadata,
		PlayerID:      a.playerID,
		TableID:       a.tableID,
		Decisions:     count,
		MeanLatencyMs: mean,
	}
}

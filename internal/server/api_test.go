package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-arena/internal/agent"
	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/game"
	"github.com/lox/holdem-arena/internal/settlement"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// quietArena is a small bots-only configuration that is valid but not
// started until a test asks for it.
func quietArena() arena.Config {
	return arena.Config{BotCount: 3, MaxHands: 3, TableCount: 1, Seed: 11}
}

// testServer assembles a server over real components: a registry with the
// given limits, an arena that is not yet running, and a settler submitting
// to an in-memory ledger.
func testServer(t *testing.T, regCfg agent.Config, arenaCfg arena.Config, opts ...Option) (*Server, *agent.Registry, *arena.Arena) {
	t.Helper()
	logger := testLogger()
	registry := agent.NewRegistry(regCfg, agent.WithLogger(logger))
	settler := settlement.New(settlement.Config{}, settlement.NewMemoryLedger(), registry,
		settlement.WithLogger(logger))
	arn, err := arena.New(arenaCfg,
		arena.WithLogger(logger), arena.WithRegistry(registry), arena.WithSettler(settler))
	require.NoError(t, err)
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(registry, arn, settler, opts...), registry, arn
}

// doJSON performs one request against the handler, encoding body as JSON
// when present.
func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// doRaw sends a raw body, for malformed-payload cases.
func doRaw(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}

// facingBetView is a turn where the player owes 50 to call and can raise to
// between 100 and 1000.
func facingBetView(playerID string) game.PlayerView {
	return game.PlayerView{
		TableID:        "table-1",
		HandNumber:     7,
		Phase:          game.PhaseFlop,
		PlayerID:       playerID,
		Stack:          950,
		PotTotal:       150,
		CurrentBet:     50,
		CallAmount:     50,
		MinRaiseAmount: 100,
		MaxRaiseAmount: 1000,
		IsMyTurn:       true,
		ValidActions: []game.ValidAction{
			{Action: game.Fold},
			{Action: game.Call, MinAmount: 50, MaxAmount: 50},
			{Action: game.Raise, MinAmount: 100, MaxAmount: 1000},
			{Action: game.AllIn, MinAmount: 950, MaxAmount: 950},
		},
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{}, quietArena())
	w := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAgentLifecycle(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{}, quietArena())
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/agents", agent.Registration{
		Name:          "poller",
		Mode:          agent.ModePolling,
		WalletAddress: "0xabc",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var info agent.Info
	decodeBody(t, w, &info)
	require.NotEmpty(t, info.ID)
	assert.Equal(t, agent.ModePolling, info.Mode)
	assert.Equal(t, "0xabc", info.WalletAddress)

	w = doJSON(t, h, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Agents []agent.Info `json:"agents"`
		Count  int          `json:"count"`
	}
	decodeBody(t, w, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "poller", list.Agents[0].Name)

	w = doJSON(t, h, http.MethodGet, "/api/agents/"+info.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/api/agents/"+info.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	// Removal is idempotent.
	w = doJSON(t, h, http.MethodDelete, "/api/agents/"+info.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/agents/"+info.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterAgentRejectsBadInput(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{}, quietArena())
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/agents", agent.Registration{
		Name: "pigeon",
		Mode: "carrier-pigeon",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported mode")

	w = doJSON(t, h, http.MethodPost, "/api/agents", agent.Registration{
		Name: "pusher",
		Mode: agent.ModeCallback,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "callback url")

	w = doRaw(t, h, http.MethodPost, "/api/agents", `{"name":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterAgentLimit(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{MaxAgents: 1}, quietArena())
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/agents", agent.Registration{
		Name: "first", Mode: agent.ModePolling,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/agents", agent.Registration{
		Name: "second", Mode: agent.ModePolling,
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

// TestPollingTurnFlow walks the full polling transport over HTTP: register,
// poll while idle, poll once a turn is pending, answer it, and observe the
// duplicate answer conflict.
func TestPollingTurnFlow(t *testing.T) {
	t.Parallel()

	srv, registry, _ := testServer(t, agent.Config{}, quietArena())
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/agents", agent.Registration{
		Name: "poller", Mode: agent.ModePolling,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var info agent.Info
	decodeBody(t, w, &info)

	w = doJSON(t, h, http.MethodGet, "/api/agents/"+info.ID+"/turn", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap agent.TurnSnapshot
	decodeBody(t, w, &snap)
	assert.False(t, snap.HasTurn)
	assert.Equal(t, "waiting", snap.Status)

	type outcome struct {
		dec game.Decision
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		dec, err := registry.RequestDecision(context.Background(), info.ID, facingBetView("p1"))
		done <- outcome{dec, err}
	}()

	require.Eventually(t, func() bool {
		w := doJSON(t, h, http.MethodGet, "/api/agents/"+info.ID+"/turn", nil)
		if w.Code != http.StatusOK {
			return false
		}
		var snap agent.TurnSnapshot
		if json.Unmarshal(w.Body.Bytes(), &snap) != nil {
			return false
		}
		return snap.HasTurn
	}, 5*time.Second, 10*time.Millisecond, "turn never became visible")

	w = doJSON(t, h, http.MethodPost, "/api/agents/"+info.ID+"/action", actionSubmission{
		Action: "raise", Amount: 200, Reasoning: "pressure",
	})
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, game.Raise, out.dec.Action)
		assert.Equal(t, 200, out.dec.Amount)
		assert.Equal(t, "pressure", out.dec.Reasoning)
	case <-time.After(5 * time.Second):
		t.Fatal("decision never resolved")
	}

	// The turn is already resolved, so a second answer conflicts.
	w = doJSON(t, h, http.MethodPost, "/api/agents/"+info.ID+"/action", actionSubmission{
		Action: "fold",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitActionErrors(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{}, quietArena())
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/agents/nobody/action", actionSubmission{Action: "fold"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/agents/nobody/turn", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// A registered agent with no turn pending conflicts rather than 404s.
	reg := doJSON(t, h, http.MethodPost, "/api/agents", agent.Registration{
		Name: "idle", Mode: agent.ModePolling,
	})
	require.Equal(t, http.StatusCreated, reg.Code)
	var info agent.Info
	decodeBody(t, reg, &info)

	w = doJSON(t, h, http.MethodPost, "/api/agents/"+info.ID+"/action", actionSubmission{Action: "fold"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = doRaw(t, h, http.MethodPost, "/api/agents/"+info.ID+"/action", `{"action":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// TestArenaRunOverAPI drives a whole run through the HTTP surface: start
// with config overrides, watch status, block a second start, stop, and read
// the leaderboard once the run ends.
func TestArenaRunOverAPI(t *testing.T) {
	t.Parallel()

	// One house bot plus one silent polling agent: the first turn that
	// reaches the agent parks the run until the agent is removed.
	srv, _, arn := testServer(t,
		agent.Config{ActionTimeoutMs: 60000},
		arena.Config{BotCount: 1, MaxHands: 1000, TableCount: 1, Seed: 5, ActionTimeoutMs: 60000})
	h := srv.Handler()

	reg := doJSON(t, h, http.MethodPost, "/api/agents", agent.Registration{
		Name: "sitter", Mode: agent.ModePolling,
	})
	require.Equal(t, http.StatusCreated, reg.Code)
	var info agent.Info
	decodeBody(t, reg, &info)

	w := doJSON(t, h, http.MethodPost, "/api/arena/start", map[string]any{"maxHands": 500})
	require.Equal(t, http.StatusAccepted, w.Code)
	var status arena.Status
	decodeBody(t, w, &status)
	assert.True(t, status.Running)
	assert.Equal(t, 500, status.MaxHands, "start body must override the configured hand limit")
	assert.Equal(t, 2, status.Players)

	w = doJSON(t, h, http.MethodPost, "/api/arena/start", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/arena/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &status)
	assert.True(t, status.Running)
	require.Len(t, status.Tables, 1)

	// Stop, then free the parked hand by removing the silent agent; its
	// pending turn resolves to the default action and the run winds down.
	w = doJSON(t, h, http.MethodPost, "/api/arena/stop", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	w = doJSON(t, h, http.MethodDelete, "/api/agents/"+info.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	require.NoError(t, arn.Wait())

	w = doJSON(t, h, http.MethodGet, "/api/arena/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &status)
	assert.False(t, status.Running)
	assert.NotEmpty(t, status.CompletionReason)

	w = doJSON(t, h, http.MethodGet, "/api/arena/leaderboard?sortBy=profit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board struct {
		Standings []arena.PlayerStanding `json:"standings"`
	}
	decodeBody(t, w, &board)
	require.Len(t, board.Standings, 2)
	for i := 1; i < len(board.Standings); i++ {
		assert.GreaterOrEqual(t, board.Standings[i-1].NetChips, board.Standings[i].NetChips)
	}
}

func TestArenaStartRejectsBadConfig(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{}, quietArena())
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/arena/start", map[string]any{"tableCount": 9})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid arena config")

	w = doRaw(t, h, http.MethodPost, "/api/arena/start", `{"maxHands":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArenaStopIdempotent(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{}, quietArena())
	h := srv.Handler()

	// Stopping an arena that never ran is harmless.
	w := doJSON(t, h, http.MethodPost, "/api/arena/stop", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	w = doJSON(t, h, http.MethodPost, "/api/arena/stop", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestSettlementTrail(t *testing.T) {
	t.Parallel()

	logger := testLogger()
	registry := agent.NewRegistry(agent.Config{}, agent.WithLogger(logger))
	arn, err := arena.New(quietArena(), arena.WithLogger(logger), arena.WithRegistry(registry))
	require.NoError(t, err)
	settler := settlement.New(settlement.Config{BatchSize: 100}, settlement.NewMemoryLedger(), registry,
		settlement.WithLogger(logger))
	srv := New(registry, arn, settler, WithLogger(logger))
	h := srv.Handler()

	require.NoError(t, settler.PushHandResult("room-9", game.HandResult{
		TableID:    "room-9",
		HandNumber: 1,
		Winners:    []game.Winner{{PlayerID: "p1", Amount: 60}},
		Contributions: map[string]int{
			"p1": 30,
			"p2": 30,
		},
		Actions: []game.ActionRecord{
			{PlayerID: "p1", Action: game.Raise, Amount: 30, Phase: game.PhasePreflop},
			{PlayerID: "p2", Action: game.Call, Amount: 30, Phase: game.PhasePreflop},
		},
	}))

	w := doJSON(t, h, http.MethodGet, "/api/settlement/room-9/trail", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trail struct {
		Room    string              `json:"room"`
		Pending int                 `json:"pending"`
		Entries []game.ActionRecord `json:"entries"`
	}
	decodeBody(t, w, &trail)
	assert.Equal(t, "room-9", trail.Room)
	assert.Equal(t, 1, trail.Pending)
	require.Len(t, trail.Entries, 2)
	assert.Equal(t, game.Raise, trail.Entries[0].Action)

	// Unknown rooms answer with an empty trail, not a null.
	w = doJSON(t, h, http.MethodGet, "/api/settlement/ghost/trail", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entries":[]`)
}

package spawner

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-arena/internal/agent"
	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/server"
	"github.com/lox/holdem-arena/internal/settlement"
)

// arenaFixture assembles a full server over real components with no
// house bots, so every seat must be filled over the websocket.
func arenaFixture(t *testing.T, maxHands int) (*httptest.Server, *agent.Registry, *arena.Arena) {
	t.Helper()
	logger := log.New(io.Discard)
	registry := agent.NewRegistry(agent.Config{}, agent.WithLogger(logger))
	settler := settlement.New(settlement.Config{}, settlement.NewMemoryLedger(), registry,
		settlement.WithLogger(logger))
	arn, err := arena.New(arena.Config{MaxHands: maxHands, TableCount: 1, Seed: 23},
		arena.WithLogger(logger), arena.WithRegistry(registry), arena.WithSettler(settler))
	require.NoError(t, err)
	srv := server.New(registry, arn, settler, server.WithLogger(logger))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, registry, arn
}

// TestSpawnerPlaysFullRun spawns a flock against a real server and plays
// an arena run to completion over the websockets. The default action
// timeout is thirty seconds, so finishing inside the deadline means the
// bots really answered their turns.
func TestSpawnerPlaysFullRun(t *testing.T) {
	ts, registry, arn := arenaFixture(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sp := New(ts.URL, WithSeed(42))
	require.NoError(t, sp.Spawn(ctx, 3))

	require.Eventually(t, func() bool { return len(registry.ListAgents()) == 3 },
		5*time.Second, 10*time.Millisecond, "bots never registered")
	assert.Equal(t, 3, sp.ActiveCount())

	require.NoError(t, arn.Start(ctx))
	select {
	case <-arn.Done():
	case <-time.After(20 * time.Second):
		t.Fatal("arena run did not finish")
	}
	require.NoError(t, arn.Wait())
	assert.GreaterOrEqual(t, arn.HandsCompleted(), 1)
	assert.LessOrEqual(t, arn.HandsCompleted(), 3)

	cancel()
	require.NoError(t, sp.Wait())
	assert.Equal(t, 0, sp.ActiveCount())
}

func TestSpawnerReportsDialFailure(t *testing.T) {
	old := retryDelay
	retryDelay = 10 * time.Millisecond
	t.Cleanup(func() { retryDelay = old })

	sp := New("http://127.0.0.1:1", WithSeed(1))
	require.NoError(t, sp.Spawn(context.Background(), 1))

	err := sp.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot-1")
}

func TestSpawnerRejectsBadCount(t *testing.T) {
	sp := New("http://localhost:8080")
	require.Error(t, sp.Spawn(context.Background(), 0))
}

func TestSpawnerDoubleSpawn(t *testing.T) {
	ts, _, _ := arenaFixture(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sp := New(ts.URL, WithSeed(7), WithNamePrefix("dupe"))
	require.NoError(t, sp.Spawn(ctx, 2))
	require.Error(t, sp.Spawn(ctx, 2))

	cancel()
	require.NoError(t, sp.Wait())
}

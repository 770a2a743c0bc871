// Package spawner launches flocks of websocket bot agents against a
// running arena server, one goroutine per bot. Each bot plays a fixed
// archetype with its own deterministic rng, so a seeded flock is
// reproducible end to end.
package spawner

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdem-arena/internal/bot"
	"github.com/lox/holdem-arena/internal/client"
	"github.com/lox/holdem-arena/internal/randutil"
)

// dialRetries bounds reconnection attempts for a bot that has never
// managed to register; a server still starting up refuses the first
// few dials.
const dialRetries = 5

var retryDelay = 500 * time.Millisecond

// Spawner runs a group of bot clients against one server.
type Spawner struct {
	serverURL string
	prefix    string
	token     string
	seed      int64
	logger    *log.Logger

	group  *errgroup.Group
	active atomic.Int64
}

// Option configures a Spawner.
type Option func(*Spawner)

// WithLogger sets the logger shared by the spawner and its bots.
func WithLogger(logger *log.Logger) Option {
	return func(s *Spawner) {
		s.logger = logger
	}
}

// WithSeed pins the base seed the per-bot rngs are forked from.
func WithSeed(seed int64) Option {
	return func(s *Spawner) {
		s.seed = seed
	}
}

// WithNamePrefix sets the prefix bots register under, "bot" by default.
func WithNamePrefix(prefix string) Option {
	return func(s *Spawner) {
		s.prefix = prefix
	}
}

// WithToken sets the auth token every bot presents, for arenas running
// behind a verifier.
func WithToken(token string) Option {
	return func(s *Spawner) {
		s.token = token
	}
}

// New creates a spawner targeting the server at serverURL.
func New(serverURL string, opts ...Option) *Spawner {
	s := &Spawner{
		serverURL: serverURL,
		prefix:    "bot",
		seed:      time.Now().UnixNano(),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("spawner")
	return s
}

// Spawn launches count bots named prefix-1 through prefix-count, with
// archetypes assigned round-robin. It returns once every bot goroutine
// is underway; Wait observes their completion. Cancelling ctx stops the
// flock.
func (s *Spawner) Spawn(ctx context.Context, count int) error {
	if count < 1 {
		return fmt.Errorf("bot count must be positive, got %d", count)
	}
	if s.group != nil {
		return fmt.Errorf("spawner already started")
	}

	group, ctx := errgroup.WithContext(ctx)
	s.group = group

	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%s-%d", s.prefix, i+1)
		archetype := bot.ForIndex(i)
		decider := bot.New(archetype, randutil.Fork(s.seed, i), bot.WithLogger(s.logger))
		c := client.New(s.serverURL, name, decider.Decide,
			client.WithLogger(s.logger), client.WithToken(s.token))

		s.logger.Info("spawning bot", "name", name, "archetype", archetype)
		group.Go(func() error {
			s.active.Add(1)
			defer s.active.Add(-1)
			return s.runBot(ctx, c)
		})
	}
	return nil
}

// Run spawns count bots and blocks until the flock finishes.
func (s *Spawner) Run(ctx context.Context, count int) error {
	if err := s.Spawn(ctx, count); err != nil {
		return err
	}
	return s.Wait()
}

// Wait blocks until every bot has exited and returns the first error.
func (s *Spawner) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// ActiveCount returns the number of bots currently running.
func (s *Spawner) ActiveCount() int {
	return int(s.active.Load())
}

// runBot drives one client, redialling while registration has never
// succeeded. A bot that registered once is not restarted: the server
// has already seated it, and a replacement would register as a
// different agent.
func (s *Spawner) runBot(ctx context.Context, c *client.Client) error {
	for attempt := 0; ; attempt++ {
		err := c.Run(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if c.AgentID() != "" || attempt >= dialRetries {
			return fmt.Errorf("bot %s: %w", c.Name(), err)
		}
		s.logger.Debug("retrying connection", "name", c.Name(), "attempt", attempt+1, "error", err)
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

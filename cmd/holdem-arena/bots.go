package main

import (
	"github.com/lox/holdem-arena/internal/spawner"
)

// BotsCmd connects a flock of websocket bots to a running arena server.
type BotsCmd struct {
	Server string `short:"s" default:"http://localhost:8080" help:"Arena server URL"`
	Count  int    `short:"n" default:"5" help:"Number of bots to connect"`
	Seed   int64  `help:"Base seed for bot decision rngs (0 picks one from the clock)"`
	Prefix string `default:"bot" help:"Name prefix bots register under"`
	Token  string `help:"Auth token presented to arenas running behind a verifier"`
	Debug  bool   `help:"Enable debug logging"`
}

func (c *BotsCmd) Run() error {
	logger := newLogger("info", c.Debug)

	opts := []spawner.Option{
		spawner.WithLogger(logger),
		spawner.WithNamePrefix(c.Prefix),
		spawner.WithToken(c.Token),
	}
	if c.Seed != 0 {
		opts = append(opts, spawner.WithSeed(c.Seed))
	}
	sp := spawner.New(c.Server, opts...)

	logger.Info("connecting bots", "server", c.Server, "count", c.Count)
	return sp.Run(signalContext(logger), c.Count)
}

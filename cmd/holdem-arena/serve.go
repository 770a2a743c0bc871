package main

import (
	"fmt"

	"github.com/lox/holdem-arena/internal/auth"
	"github.com/lox/holdem-arena/internal/config"
	"github.com/lox/holdem-arena/internal/server"
)

// ServeCmd runs the HTTP server hosting the agent registry and the arena.
type ServeCmd struct {
	Config     string `short:"c" default:"holdem-arena.hcl" help:"Path to HCL configuration file"`
	Addr       string `short:"a" help:"Listen address (overrides config)"`
	HistoryDir string `help:"Write PHH hand transcripts to this directory (overrides config)"`
	Debug      bool   `help:"Enable debug logging"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.HistoryDir != "" {
		cfg.HistoryDir = c.HistoryDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Server.LogLevel, c.Debug)

	addr := cfg.Server.Address()
	if c.Addr != "" {
		addr = c.Addr
	}

	stack, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}

	srvOpts := []server.Option{server.WithLogger(logger)}
	if cfg.Server.AuthURL != "" {
		var authOpts []auth.ValidatorOption
		if cfg.Server.AuthSecret != "" {
			authOpts = append(authOpts, auth.WithSecret(cfg.Server.AuthSecret))
		}
		srvOpts = append(srvOpts, server.WithAuth(auth.NewHTTPValidator(cfg.Server.AuthURL, authOpts...)))
		logger.Info("agent auth enabled", "verifier", cfg.Server.AuthURL)
	}

	srv := server.New(stack.registry, stack.arena, stack.settler, srvOpts...)

	logger.Info("starting arena server",
		"addr", addr,
		"tables", cfg.Arena.TableCount,
		"bots", cfg.Arena.BotCount,
		"maxHands", cfg.Arena.MaxHands)

	return srv.Run(signalContext(logger), addr)
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/config"
	"github.com/lox/holdem-arena/internal/monitor"
)

// SimCmd runs a self-contained bot-vs-bot simulation and prints the final
// leaderboard.
type SimCmd struct {
	Config     string `short:"c" default:"holdem-arena.hcl" help:"Path to HCL configuration file"`
	Bots       int    `help:"House bots to seat (overrides config)"`
	Tables     int    `help:"Concurrent tables (overrides config)"`
	Hands      int    `help:"Hand limit for the run (overrides config)"`
	Seed       *int64 `help:"Deterministic RNG seed (overrides config)"`
	HistoryDir string `help:"Write PHH hand transcripts to this directory (overrides config)"`
	Monitor    bool   `short:"m" help:"Show the live dashboard during the run"`
	SortBy     string `default:"winRate" enum:"winRate,profit,hands" help:"Leaderboard ordering"`
	Debug      bool   `help:"Enable debug logging"`
}

func (c *SimCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Bots > 0 {
		cfg.Arena.BotCount = c.Bots
	}
	if c.Tables > 0 {
		cfg.Arena.TableCount = c.Tables
	}
	if c.Hands > 0 {
		cfg.Arena.MaxHands = c.Hands
	}
	if c.Seed != nil {
		cfg.Arena.Seed = *c.Seed
	}
	if c.HistoryDir != "" {
		cfg.HistoryDir = c.HistoryDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Server.LogLevel, c.Debug)
	if c.Monitor {
		// The dashboard owns the terminal, so log output has to stay off it.
		logger = log.New(io.Discard)
	}

	stack, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	arn := stack.arena

	ctx := signalContext(logger)
	if err := arn.Start(ctx); err != nil {
		return fmt.Errorf("start arena: %w", err)
	}

	if c.Monitor {
		if err := monitor.Run(ctx, stack.bus, monitor.WithLogger(logger)); err != nil {
			return err
		}
		// The dashboard was quit; end the run if it is still going.
		arn.Stop()
	}

	if err := arn.Wait(); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	status := arn.Status()
	fmt.Printf("\n%s %d hands, %.1f hands/s (%s)\n\n",
		headerStyle.Render("simulation complete:"),
		status.HandsCompleted,
		status.HandsPerSecond,
		status.CompletionReason)

	printStandings(os.Stdout, arn.Leaderboard(c.SortBy))
	return nil
}

// printStandings renders the final leaderboard.
func printStandings(out io.Writer, standings []arena.PlayerStanding) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("player"),
		headerStyle.Render("hands"),
		headerStyle.Render("wins"),
		headerStyle.Render("win%"),
		headerStyle.Render("net"),
		headerStyle.Render("bb/100"))

	for _, s := range standings {
		netStyle := winStyle
		if s.NetChips < 0 {
			netStyle = percentStyle
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
			handStyle.Render(s.Name),
			s.Hands,
			s.Wins,
			fmt.Sprintf("%.1f%%", s.WinRate*100),
			netStyle.Render(fmt.Sprintf("%+d", s.NetChips)),
			fmt.Sprintf("%+.1f", s.BB100))
	}

	w.Flush()
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/agent"
	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/config"
	"github.com/lox/holdem-arena/internal/dashboard"
	"github.com/lox/holdem-arena/internal/phh"
	"github.com/lox/holdem-arena/internal/settlement"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the arena server"`
	Sim     SimCmd           `cmd:"" help:"Run a bot-only simulation without the HTTP layer"`
	Bots    BotsCmd          `cmd:"" help:"Connect websocket bots to a running arena server"`
	Odds    OddsCmd          `cmd:"" help:"Estimate showdown odds for known hole cards"`
}

// Styles shared by the terminal output of sim and odds
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	handStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	tieStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	percentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("holdem-arena"),
		kong.Description("Multi-table Texas Hold'em arena for bot-vs-bot play"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// newLogger builds the root logger. The debug flag wins over the configured
// level.
func newLogger(level string, debug bool) *log.Logger {
	logger := log.New(os.Stderr)
	if debug {
		logger.SetLevel(log.DebugLevel)
		return logger
	}
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext(logger *log.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	return ctx
}

// arenaStack is the assembled core shared by serve and sim: the dashboard
// bus, the agent registry, the settlement pipeline and the arena wired
// together.
type arenaStack struct {
	bus      *dashboard.Bus
	registry *agent.Registry
	settler  *settlement.Settler
	arena    *arena.Arena
}

func buildStack(cfg *config.Config, logger *log.Logger) (*arenaStack, error) {
	bus := dashboard.New()
	registry := agent.NewRegistry(cfg.Registry, agent.WithLogger(logger))
	settler := settlement.New(cfg.Settlement, settlement.NewLogLedger(logger), registry,
		settlement.WithLogger(logger),
		settlement.WithDashboard(bus),
	)

	opts := []arena.Option{
		arena.WithLogger(logger),
		arena.WithRegistry(registry),
		arena.WithSettler(settler),
		arena.WithDashboard(bus),
	}
	if cfg.HistoryDir != "" {
		hist, err := phh.NewWriter(cfg.HistoryDir, phh.Meta{
			Variant:    phh.VariantNoLimitHoldem,
			SmallBlind: cfg.Arena.SmallBlind,
			BigBlind:   cfg.Arena.BigBlind,
		}, phh.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open history dir: %w", err)
		}
		opts = append(opts, arena.WithArchiver(hist))
	}

	arn, err := arena.New(cfg.Arena, opts...)
	if err != nil {
		return nil, fmt.Errorf("build arena: %w", err)
	}
	return &arenaStack{bus: bus, registry: registry, settler: settler, arena: arn}, nil
}

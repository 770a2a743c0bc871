// Package config loads the HCL configuration file. Every block and
// attribute is optional: missing pieces fall back to defaults, and the CLI
// applies flag overrides on top of the loaded value.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/holdem-arena/internal/agent"
	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/settlement"
)

// Config is the resolved configuration with defaults applied.
type Config struct {
	Server     Server
	Arena      arena.Config
	Registry   agent.Config
	Settlement settlement.Config

	// HistoryDir, when set, receives one PHH transcript file per completed
	// hand.
	HistoryDir string
}

// Server holds the HTTP listener settings. AuthURL, when set, points at
// an external verifier and makes websocket agents present a token.
type Server struct {
	Host       string
	Port       int
	LogLevel   string
	AuthURL    string
	AuthSecret string
}

// Address returns the host:port the server binds to.
func (s Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// file mirrors the HCL layout. Attribute pointers distinguish an absent
// value from an explicit zero where zero is meaningful.
type file struct {
	HistoryDir string           `hcl:"history_dir,optional"`
	Server     *serverBlock     `hcl:"server,block"`
	Arena      *arenaBlock      `hcl:"arena,block"`
	Registry   *registryBlock   `hcl:"registry,block"`
	Settlement *settlementBlock `hcl:"settlement,block"`
}

type serverBlock struct {
	Host       string `hcl:"host,optional"`
	Port       int    `hcl:"port,optional"`
	LogLevel   string `hcl:"log_level,optional"`
	AuthURL    string `hcl:"auth_url,optional"`
	AuthSecret string `hcl:"auth_secret,optional"`
}

type arenaBlock struct {
	BotCount        *int  `hcl:"bot_count,optional"`
	MaxHands        int   `hcl:"max_hands,optional"`
	TableCount      int   `hcl:"table_count,optional"`
	HandDelayMs     int   `hcl:"hand_delay_ms,optional"`
	ActionDelayMs   int   `hcl:"action_delay_ms,optional"`
	PhaseDelayMs    int   `hcl:"phase_delay_ms,optional"`
	SmallBlind      int   `hcl:"small_blind,optional"`
	BigBlind        int   `hcl:"big_blind,optional"`
	StartingStack   int   `hcl:"starting_stack,optional"`
	ActionTimeoutMs int   `hcl:"action_timeout_ms,optional"`
	Seed            int64 `hcl:"seed,optional"`
}

type registryBlock struct {
	ActionTimeoutMs   int `hcl:"action_timeout_ms,optional"`
	CallbackTimeoutMs int `hcl:"callback_timeout_ms,optional"`
	CallbackRetries   int `hcl:"callback_retries,optional"`
}

type settlementBlock struct {
	BatchSize       int    `hcl:"batch_size,optional"`
	FlushIntervalMs int    `hcl:"flush_interval_ms,optional"`
	RetryCount      int    `hcl:"retry_count,optional"`
	RetryDelayMs    int    `hcl:"retry_delay_ms,optional"`
	JournalDir      string `hcl:"journal_dir,optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:     "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Arena: arena.DefaultConfig(),
		Registry: agent.Config{
			ActionTimeoutMs:   agent.DefaultActionTimeoutMs,
			CallbackTimeoutMs: agent.DefaultCallbackTimeoutMs,
			CallbackRetries:   agent.DefaultCallbackRetries,
		},
		Settlement: settlement.Config{
			BatchSize:       settlement.DefaultBatchSize,
			FlushIntervalMs: settlement.DefaultFlushIntervalMs,
			RetryCount:      settlement.DefaultRetryCount,
			RetryDelayMs:    settlement.DefaultRetryDelayMs,
		},
	}
}

// Load reads path and resolves it over the defaults. A missing file is not
// an error: it yields Default().
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", path, diags.Error())
	}

	var f file
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", path, diags.Error())
	}

	cfg := Default()
	f.apply(cfg)
	return cfg, nil
}

// apply overlays the decoded file onto cfg. Zero attributes keep the
// default, except bot_count where an explicit 0 disables house bots.
func (f *file) apply(cfg *Config) {
	if b := f.Server; b != nil {
		if b.Host != "" {
			cfg.Server.Host = b.Host
		}
		if b.Port != 0 {
			cfg.Server.Port = b.Port
		}
		if b.LogLevel != "" {
			cfg.Server.LogLevel = b.LogLevel
		}
		if b.AuthURL != "" {
			cfg.Server.AuthURL = b.AuthURL
		}
		if b.AuthSecret != "" {
			cfg.Server.AuthSecret = b.AuthSecret
		}
	}
	if b := f.Arena; b != nil {
		if b.BotCount != nil {
			cfg.Arena.BotCount = *b.BotCount
		}
		if b.MaxHands != 0 {
			cfg.Arena.MaxHands = b.MaxHands
		}
		if b.TableCount != 0 {
			cfg.Arena.TableCount = b.TableCount
		}
		if b.HandDelayMs != 0 {
			cfg.Arena.HandDelayMs = b.HandDelayMs
		}
		if b.ActionDelayMs != 0 {
			cfg.Arena.ActionDelayMs = b.ActionDelayMs
		}
		if b.PhaseDelayMs != 0 {
			cfg.Arena.PhaseDelayMs = b.PhaseDelayMs
		}
		if b.SmallBlind != 0 {
			cfg.Arena.SmallBlind = b.SmallBlind
			// A small blind without a big blind implies the usual pairing.
			if b.BigBlind == 0 {
				cfg.Arena.BigBlind = 2 * b.SmallBlind
			}
		}
		if b.BigBlind != 0 {
			cfg.Arena.BigBlind = b.BigBlind
		}
		if b.StartingStack != 0 {
			cfg.Arena.StartingStack = b.StartingStack
		}
		if b.ActionTimeoutMs != 0 {
			cfg.Arena.ActionTimeoutMs = b.ActionTimeoutMs
		}
		if b.Seed != 0 {
			cfg.Arena.Seed = b.Seed
		}
	}
	if b := f.Registry; b != nil {
		if b.ActionTimeoutMs != 0 {
			cfg.Registry.ActionTimeoutMs = b.ActionTimeoutMs
		}
		if b.CallbackTimeoutMs != 0 {
			cfg.Registry.CallbackTimeoutMs = b.CallbackTimeoutMs
		}
		if b.CallbackRetries != 0 {
			cfg.Registry.CallbackRetries = b.CallbackRetries
		}
	}
	if b := f.Settlement; b != nil {
		if b.BatchSize != 0 {
			cfg.Settlement.BatchSize = b.BatchSize
		}
		if b.FlushIntervalMs != 0 {
			cfg.Settlement.FlushIntervalMs = b.FlushIntervalMs
		}
		if b.RetryCount != 0 {
			cfg.Settlement.RetryCount = b.RetryCount
		}
		if b.RetryDelayMs != 0 {
			cfg.Settlement.RetryDelayMs = b.RetryDelayMs
		}
		if b.JournalDir != "" {
			cfg.Settlement.JournalDir = b.JournalDir
		}
	}
	if f.HistoryDir != "" {
		cfg.HistoryDir = f.HistoryDir
	}
}

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate range-checks every field.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	if !logLevels[c.Server.LogLevel] {
		return fmt.Errorf("server: invalid log_level %q", c.Server.LogLevel)
	}
	if err := c.Arena.Validate(); err != nil {
		return fmt.Errorf("arena: %w", err)
	}
	if c.Registry.ActionTimeoutMs < 0 || c.Registry.CallbackTimeoutMs < 0 {
		return fmt.Errorf("registry: timeouts must not be negative")
	}
	if c.Registry.CallbackRetries < 0 {
		return fmt.Errorf("registry: callback_retries must not be negative")
	}
	if c.Settlement.BatchSize < 1 {
		return fmt.Errorf("settlement: batch_size must be at least 1, got %d", c.Settlement.BatchSize)
	}
	if c.Settlement.FlushIntervalMs < 1 {
		return fmt.Errorf("settlement: flush_interval_ms must be positive, got %d", c.Settlement.FlushIntervalMs)
	}
	if c.Settlement.RetryCount < 1 {
		return fmt.Errorf("settlement: retry_count must be at least 1, got %d", c.Settlement.RetryCount)
	}
	return nil
}

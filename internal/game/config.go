package game

import "fmt"

// Default table parameters, used when a config field is left zero.
const (
	DefaultMaxPlayers      = 6
	DefaultSmallBlind      = 5
	DefaultBigBlind        = 10
	DefaultStartingStack   = 1000
	DefaultActionTimeoutMs = 30000
)

// TableConfig describes one table. All chip amounts are integers.
type TableConfig struct {
	TableID         string `json:"tableId"`
	TableName       string `json:"tableName"`
	MaxPlayers      int    `json:"maxPlayers"`
	SmallBlind      int    `json:"smallBlind"`
	BigBlind        int    `json:"bigBlind"`
	StartingStack   int    `json:"startingStack"`
	ActionTimeoutMs int    `json:"actionTimeoutMs"`
}

// withDefaults fills zero fields with the package defaults.
func (c TableConfig) withDefaults() TableConfig {
	if c.MaxPlayers == 0 {
		c.MaxPlayers = DefaultMaxPlayers
	}
	if c.SmallBlind == 0 {
		c.SmallBlind = DefaultSmallBlind
	}
	if c.BigBlind == 0 {
		c.BigBlind = DefaultBigBlind
	}
	if c.StartingStack == 0 {
		c.StartingStack = DefaultStartingStack
	}
	if c.ActionTimeoutMs == 0 {
		c.ActionTimeoutMs = DefaultActionTimeoutMs
	}
	return c
}

// Validate checks the config ranges the table depends on.
func (c TableConfig) Validate() error {
	if c.TableID == "" {
		return fmt.Errorf("tableId is required")
	}
	if c.MaxPlayers < 2 || c.MaxPlayers > 6 {
		return fmt.Errorf("maxPlayers must be between 2 and 6, got %d", c.MaxPlayers)
	}
	if c.SmallBlind <= 0 {
		return fmt.Errorf("smallBlind must be positive, got %d", c.SmallBlind)
	}
	if c.BigBlind < 2*c.SmallBlind {
		return fmt.Errorf("bigBlind must be at least twice the small blind, got %d/%d", c.SmallBlind, c.BigBlind)
	}
	if c.StartingStack <= 0 {
		return fmt.Errorf("startingStack must be positive, got %d", c.StartingStack)
	}
	if c.ActionTimeoutMs <= 0 {
		return fmt.Errorf("actionTimeoutMs must be positive, got %d", c.ActionTimeoutMs)
	}
	return nil
}

package arena

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/game"
)

// ErrTableExists is returned when a table ID is already taken.
var ErrTableExists = fmt.Errorf("table already exists")

// ErrTableNotFound is returned for lookups of unknown tables.
var ErrTableNotFound = fmt.Errorf("table not found")

// Manager owns the live tables: creation with duplicate refusal, lookup,
// and removal that stops the table's timers.
type Manager struct {
	logger *log.Logger

	mu        sync.RWMutex
	tables    map[string]*game.Table
	practiceN int
}

// NewManager creates an empty table manager.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		logger: logger.WithPrefix("tables"),
		tables: make(map[string]*game.Table),
	}
}

// CreateTable builds a table from cfg and registers it. A duplicate ID is
// refused without touching the existing table.
func (m *Manager) CreateTable(cfg game.TableConfig, opts ...game.TableOption) (*game.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tables[cfg.TableID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, cfg.TableID)
	}

	tbl, err := game.NewTable(cfg, opts...)
	if err != nil {
		return nil, err
	}
	m.tables[tbl.ID()] = tbl
	m.logger.Info("table created", "table", tbl.ID(), "name", tbl.Name())
	return tbl, nil
}

// CreatePracticeTable creates a table under an auto-incremented practice ID.
func (m *Manager) CreatePracticeTable(cfg game.TableConfig, opts ...game.TableOption) (*game.Table, error) {
	m.mu.Lock()
	m.practiceN++
	n := m.practiceN
	m.mu.Unlock()

	cfg.TableID = fmt.Sprintf("practice-%d", n)
	if cfg.TableName == "" {
		cfg.TableName = fmt.Sprintf("Practice Table %d", n)
	}
	return m.CreateTable(cfg, opts...)
}

// Get returns the table with the given ID.
func (m *Manager) Get(id string) (*game.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tbl, ok := m.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	return tbl, nil
}

// List returns every table sorted by ID.
func (m *Manager) List() []*game.Table {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tables := make([]*game.Table, 0, len(m.tables))
	for _, tbl := range m.tables {
		tables = append(tables, tbl)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID() < tables[j].ID() })
	return tables
}

// Remove destroys a table: pending turn timers are stopped and its event bus
// is drained and closed.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	tbl, ok := m.tables[id]
	delete(m.tables, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	tbl.Close()
	m.logger.Info("table removed", "table", id)
	return nil
}

// RemoveAll destroys every table.
func (m *Manager) RemoveAll() {
	m.mu.Lock()
	tables := m.tables
	m.tables = make(map[string]*game.Table)
	m.mu.Unlock()

	for id, tbl := range tables {
		tbl.Close()
		m.logger.Info("table removed", "table", id)
	}
}

// Count returns the number of live tables.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}

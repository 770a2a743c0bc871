// Package arena orchestrates multi-table games. An Arena creates tables,
// seats registered agents and house bots, drives every turn through the
// agent registry or an in-process bot decider, and aggregates hand results
// into standings, dashboard feeds and settlement batches.
package arena

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdem-arena/internal/agent"
	"github.com/lox/holdem-arena/internal/bot"
	"github.com/lox/holdem-arena/internal/dashboard"
	"github.com/lox/holdem-arena/internal/game"
	"github.com/lox/holdem-arena/internal/randutil"
)

// ErrAlreadyRunning is returned when Start is called on a running arena.
var ErrAlreadyRunning = errors.New("arena is already running")

// Completion reasons reported once a run ends.
const (
	reasonHandLimitReached    = "hand_limit_reached"
	reasonStopped             = "stopped"
	reasonInsufficientPlayers = "insufficient_players"
)

// MaxTableCount bounds how many tables one arena runs concurrently.
const MaxTableCount = 4

// Registry is the slice of the agent registry the arena needs: seat
// bookkeeping and turn decisions. *agent.Registry satisfies it.
type Registry interface {
	ListAgents() []agent.Info
	SeatAgent(agentID, playerID, tableID string) error
	UnseatAgent(agentID string)
	AgentIDForPlayer(playerID string) (string, bool)
	RequestDecision(ctx context.Context, agentID string, view game.PlayerView) (game.Decision, error)
}

// HandSink receives completed hands for settlement. Errors are surfaced on
// the dashboard but never interrupt play.
type HandSink interface {
	PushHandResult(roomID string, result game.HandResult) error
	FinalizeRoom(ctx context.Context, roomID string) error
}

// Recorder persists per-player hand outcomes outside the process, one call
// per dealt-in player per hand.
type Recorder interface {
	RecordResult(playerID, name, playerType, style string, won bool, amount int) error
}

// HandArchiver persists full hand transcripts. Failures are logged and
// surfaced on the dashboard without interrupting play.
type HandArchiver interface {
	ArchiveHand(result game.HandResult) error
}

// Config controls one arena run. Zero fields take defaults; BotCount is
// used as given, so a zero means no house bots.
type Config struct {
	BotCount        int   `json:"botCount"`
	MaxHands        int   `json:"maxHands"`
	TableCount      int   `json:"tableCount"`
	HandDelayMs     int   `json:"handDelayMs"`
	ActionDelayMs   int   `json:"actionDelayMs"`
	PhaseDelayMs    int   `json:"phaseDelayMs"`
	SmallBlind      int   `json:"smallBlind"`
	BigBlind        int   `json:"bigBlind"`
	StartingStack   int   `json:"startingStack"`
	ActionTimeoutMs int   `json:"actionTimeoutMs"`
	Seed            int64 `json:"seed"`
}

// DefaultConfig returns the standard five-bot, single-table, hundred-hand
// arena.
func DefaultConfig() Config {
	return Config{
		BotCount:        5,
		MaxHands:        100,
		TableCount:      1,
		SmallBlind:      game.DefaultSmallBlind,
		BigBlind:        game.DefaultBigBlind,
		StartingStack:   game.DefaultStartingStack,
		ActionTimeoutMs: game.DefaultActionTimeoutMs,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxHands <= 0 {
		c.MaxHands = 100
	}
	if c.TableCount <= 0 {
		c.TableCount = 1
	}
	if c.SmallBlind <= 0 {
		c.SmallBlind = game.DefaultSmallBlind
	}
	if c.BigBlind <= 0 {
		c.BigBlind = 2 * c.SmallBlind
	}
	if c.StartingStack <= 0 {
		c.StartingStack = game.DefaultStartingStack
	}
	if c.ActionTimeoutMs <= 0 {
		c.ActionTimeoutMs = game.DefaultActionTimeoutMs
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Validate rejects configurations the arena cannot run.
func (c Config) Validate() error {
	if c.BotCount < 0 {
		return fmt.Errorf("botCount must not be negative, got %d", c.BotCount)
	}
	if c.TableCount < 1 || c.TableCount > MaxTableCount {
		return fmt.Errorf("tableCount must be between 1 and %d, got %d", MaxTableCount, c.TableCount)
	}
	if c.MaxHands < 1 {
		return fmt.Errorf("maxHands must be at least 1, got %d", c.MaxHands)
	}
	if c.BigBlind < 2*c.SmallBlind {
		return fmt.Errorf("big blind %d must be at least twice the small blind %d", c.BigBlind, c.SmallBlind)
	}
	return nil
}

// TableStatus is one table's line in a status report.
type TableStatus struct {
	TableID    string `json:"tableId"`
	Name       string `json:"name"`
	HandNumber int    `json:"handNumber"`
	Phase      string `json:"phase"`
	Players    int    `json:"players"`
}

// Status is a point-in-time report of an arena run.
type Status struct {
	Running          bool          `json:"running"`
	HandsCompleted   int           `json:"handsCompleted"`
	MaxHands         int           `json:"maxHands"`
	Players          int           `json:"players"`
	HandsPerSecond   float64       `json:"handsPerSecond"`
	CompletionReason string        `json:"completionReason,omitempty"`
	Tables           []TableStatus `json:"tables,omitempty"`
}

// Arena runs games across up to MaxTableCount tables until the hand limit
// is reached, no table can continue, or it is stopped.
type Arena struct {
	cfg      Config
	logger   *log.Logger
	clock    quartz.Clock
	registry Registry
	settler  HandSink
	recorder Recorder
	archiver HandArchiver
	dash     *dashboard.Bus
	manager  *Manager

	mu           sync.Mutex
	running      bool
	tables       []*game.Table
	deciders     map[string]*bot.Decider
	styles       map[string]string
	seatedAgents []string
	stats        *Stats
	group        *errgroup.Group
	done         chan struct{}
	startedAt    time.Time
	endedAt      time.Time
	runErr       error

	stopFlag  atomic.Bool
	handsDone atomic.Int64
	reason    atomic.Value
}

// Option adjusts an arena at construction time.
type Option func(*Arena)

// WithLogger injects the arena's logger.
func WithLogger(logger *log.Logger) Option {
	return func(a *Arena) { a.logger = logger }
}

// WithClock injects the clock used for pacing delays and run timing.
func WithClock(clock quartz.Clock) Option {
	return func(a *Arena) { a.clock = clock }
}

// WithRegistry connects the agent registry. Without one the arena seats
// bots only.
func WithRegistry(registry Registry) Option {
	return func(a *Arena) { a.registry = registry }
}

// WithSettler forwards completed hands to a settlement sink.
func WithSettler(settler HandSink) Option {
	return func(a *Arena) { a.settler = settler }
}

// WithRecorder mirrors per-player results to an external recorder.
func WithRecorder(recorder Recorder) Option {
	return func(a *Arena) { a.recorder = recorder }
}

// WithArchiver writes each completed hand's transcript to an archive.
func WithArchiver(archiver HandArchiver) Option {
	return func(a *Arena) { a.archiver = archiver }
}

// WithDashboard publishes on the given bus instead of a private one.
func WithDashboard(bus *dashboard.Bus) Option {
	return func(a *Arena) { a.dash = bus }
}

// WithManager registers arena tables with a shared table manager.
func WithManager(manager *Manager) Option {
	return func(a *Arena) { a.manager = manager }
}

// New creates an arena. The configuration is validated after defaults are
// applied.
func New(cfg Config, opts ...Option) (*Arena, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid arena config: %w", err)
	}

	a := &Arena{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard)
	}
	a.logger = a.logger.WithPrefix("arena")
	if a.clock == nil {
		a.clock = quartz.NewReal()
	}
	if a.dash == nil {
		a.dash = dashboard.New()
	}
	if a.manager == nil {
		a.manager = NewManager(a.logger)
	}
	a.stats = NewStats(cfg.BigBlind)
	a.reason.Store("")

	done := make(chan struct{})
	close(done)
	a.done = done
	return a, nil
}

// Config returns the effective configuration.
func (a *Arena) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Reconfigure replaces the configuration used by the next run. It fails
// while a run is active.
func (a *Arena) Reconfigure(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid arena config: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return ErrAlreadyRunning
	}
	a.cfg = cfg
	return nil
}

// Dashboard returns the bus the arena publishes on.
func (a *Arena) Dashboard() *dashboard.Bus { return a.dash }

// Tables returns the table manager holding the arena's tables.
func (a *Arena) Tables() *Manager { return a.manager }

// Start seats players and launches one run loop per table. It returns once
// the run is underway; Wait or Done observe completion. The context bounds
// the whole run: cancelling it abandons in-flight hands, unlike Stop which
// lets them finish.
func (a *Arena) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.stopFlag.Store(false)
	a.handsDone.Store(0)
	a.reason.Store("")
	a.done = make(chan struct{})
	a.startedAt = a.clock.Now()
	a.endedAt = time.Time{}
	a.runErr = nil
	a.stats = NewStats(a.cfg.BigBlind)
	a.deciders = make(map[string]*bot.Decider)
	a.styles = make(map[string]string)
	a.seatedAgents = nil
	a.tables = nil

	if err := a.setupLocked(); err != nil {
		a.running = false
		done := a.done
		a.mu.Unlock()
		close(done)
		return err
	}

	group, runCtx := errgroup.WithContext(ctx)
	a.group = group
	tables := a.tables
	a.mu.Unlock()

	caps := splitHands(a.cfg.MaxHands, len(tables))
	for i, tbl := range tables {
		group.Go(func() error {
			return a.runTable(runCtx, tbl, caps[i])
		})
	}
	go a.finish()

	a.logger.Info("arena started",
		"tables", len(tables),
		"bots", len(a.deciders),
		"agents", len(a.seatedAgents),
		"max_hands", a.cfg.MaxHands,
		"seed", a.cfg.Seed)
	return nil
}

// Run starts the arena and blocks until it finishes.
func (a *Arena) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Wait()
}

// Stop requests a graceful stop. Hands already dealt run to completion;
// no new hands are dealt. Stop never blocks.
func (a *Arena) Stop() {
	if a.stopFlag.CompareAndSwap(false, true) {
		a.logger.Info("arena stop requested")
	}
}

// Done is closed when the current run has fully finished. Before the first
// Start it is already closed.
func (a *Arena) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Wait blocks until the current run finishes and returns its error, if any.
func (a *Arena) Wait() error {
	<-a.Done()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runErr
}

// Running reports whether a run is in progress.
func (a *Arena) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// HandsCompleted returns the number of hands finished in the current run.
func (a *Arena) HandsCompleted() int {
	return int(a.handsDone.Load())
}

// CompletionReason returns why the last run ended, or "" while running.
func (a *Arena) CompletionReason() string {
	if v, ok := a.reason.Load().(string); ok {
		return v
	}
	return ""
}

// HandsPerSecond returns the completed-hand rate of the current or most
// recent run.
func (a *Arena) HandsPerSecond() float64 {
	a.mu.Lock()
	start, end := a.startedAt, a.endedAt
	a.mu.Unlock()

	if start.IsZero() {
		return 0
	}
	var elapsed float64
	if !end.IsZero() {
		elapsed = end.Sub(start).Seconds()
	} else {
		elapsed = a.clock.Now().Sub(start).Seconds()
	}
	hands := float64(a.handsDone.Load())
	if hands == 0 || elapsed <= 0 {
		return 0
	}
	return hands / elapsed
}

// Status reports the run's progress and per-table state.
func (a *Arena) Status() Status {
	a.mu.Lock()
	running := a.running
	tables := a.tables
	players := len(a.styles)
	a.mu.Unlock()

	st := Status{
		Running:          running,
		HandsCompleted:   int(a.handsDone.Load()),
		MaxHands:         a.cfg.MaxHands,
		Players:          players,
		HandsPerSecond:   a.HandsPerSecond(),
		CompletionReason: a.CompletionReason(),
	}
	for _, tbl := range tables {
		snap := tbl.Snapshot()
		seated := 0
		for _, s := range snap.Seats {
			if s.PlayerID != "" {
				seated++
			}
		}
		st.Tables = append(st.Tables, TableStatus{
			TableID:    tbl.ID(),
			Name:       tbl.Name(),
			HandNumber: snap.HandNumber,
			Phase:      snap.Phase.String(),
			Players:    seated,
		})
	}
	return st
}

// Leaderboard returns current standings ordered by sortBy (winRate, profit
// or hands).
func (a *Arena) Leaderboard(sortBy string) []PlayerStanding {
	a.mu.Lock()
	stats := a.stats
	a.mu.Unlock()
	return stats.Standings(sortBy)
}

// setupLocked creates the run's tables and seats agents then bots. Called
// with a.mu held.
func (a *Arena) setupLocked() error {
	for i := 0; i < a.cfg.TableCount; i++ {
		id := fmt.Sprintf("arena-%d", i+1)
		_ = a.manager.Remove(id) // clear a previous run's table
		tbl, err := a.manager.CreateTable(game.TableConfig{
			TableID:         id,
			TableName:       fmt.Sprintf("Arena Table %d", i+1),
			MaxPlayers:      game.DefaultMaxPlayers,
			SmallBlind:      a.cfg.SmallBlind,
			BigBlind:        a.cfg.BigBlind,
			StartingStack:   a.cfg.StartingStack,
			ActionTimeoutMs: a.cfg.ActionTimeoutMs,
		},
			game.WithLogger(a.logger),
			game.WithClock(a.clock),
			game.WithRNG(randutil.Fork(a.cfg.Seed, i)),
		)
		if err != nil {
			return fmt.Errorf("create table %s: %w", id, err)
		}
		a.tables = append(a.tables, tbl)
	}

	free := make([]int, len(a.tables))
	for i := range free {
		free[i] = game.DefaultMaxPlayers
	}

	if a.registry != nil {
		for i, info := range a.registry.ListAgents() {
			if !a.seatAt(free, i, func(tbl *game.Table) error {
				// Agents play under their registry ID.
				if _, err := tbl.SeatPlayer(info.ID, info.Name); err != nil {
					return err
				}
				if err := a.registry.SeatAgent(info.ID, info.ID, tbl.ID()); err != nil {
					_ = tbl.RemovePlayer(info.ID)
					return err
				}
				a.seatedAgents = append(a.seatedAgents, info.ID)
				a.styles[info.ID] = ""
				a.stats.RegisterPlayer(info.ID, info.Name)
				return nil
			}) {
				a.logger.Warn("no seat available for agent", "agent_id", info.ID, "name", info.Name)
			}
		}
	}

	for n := 0; n < a.cfg.BotCount; n++ {
		archetype := bot.ForIndex(n)
		playerID := fmt.Sprintf("bot-%d", n+1)
		name := fmt.Sprintf("Bot %d (%s)", n+1, archetype)
		// Bot RNG streams start past the table streams.
		rng := randutil.Fork(a.cfg.Seed, MaxTableCount+n)
		if !a.seatAt(free, n, func(tbl *game.Table) error {
			if _, err := tbl.SeatPlayer(playerID, name); err != nil {
				return err
			}
			a.deciders[playerID] = bot.New(archetype, rng, bot.WithLogger(a.logger))
			a.styles[playerID] = string(archetype)
			a.stats.RegisterPlayer(playerID, name)
			return nil
		}) {
			a.logger.Warn("tables are full, dropping remaining bots", "seated", n, "requested", a.cfg.BotCount)
			break
		}
	}
	return nil
}

// seatAt tries tables round-robin starting at index i%len and runs seat on
// the first one with a free seat. It reports whether anyone seated.
func (a *Arena) seatAt(free []int, i int, seat func(tbl *game.Table) error) bool {
	for off := 0; off < len(a.tables); off++ {
		ti := (i + off) % len(a.tables)
		if free[ti] <= 0 {
			continue
		}
		if err := seat(a.tables[ti]); err != nil {
			a.logger.Warn("seating failed", "table", a.tables[ti].ID(), "err", err)
			continue
		}
		free[ti]--
		return true
	}
	return false
}

// splitHands divides maxHands across n tables, front-loading the remainder
// so the per-table caps sum exactly to maxHands.
func splitHands(maxHands, n int) []int {
	caps := make([]int, n)
	for i := range caps {
		caps[i] = maxHands / n
		if i < maxHands%n {
			caps[i]++
		}
	}
	return caps
}

// runTable plays up to handCap hands on one table.
func (a *Arena) runTable(ctx context.Context, tbl *game.Table, handCap int) error {
	logger := a.logger.With("table", tbl.ID())
	for hand := 0; hand < handCap; hand++ {
		if a.stopFlag.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !tbl.CanStartHand() {
			logger.Info("table out of funded players", "hands_played", hand)
			return nil
		}

		// Subscribe before dealing so the watcher sees the first turn.
		w := newHandWatcher(ctx, a, tbl)
		tbl.Events().Subscribe(w)
		if err := tbl.DealNewHand(); err != nil {
			tbl.Events().Unsubscribe(w)
			if errors.Is(err, game.ErrNotEnoughPlayers) {
				logger.Info("not enough players to deal", "hands_played", hand)
				return nil
			}
			logger.Error("deal failed", "err", err)
			a.publishError(tbl.ID(), "arena", err)
			a.sleep(ctx, time.Second)
			continue
		}

		select {
		case <-w.done:
		case <-ctx.Done():
			tbl.Events().Unsubscribe(w)
			return ctx.Err()
		}
		tbl.Events().Unsubscribe(w)
		a.recordHand(tbl, w.result)

		a.sleep(ctx, msToDuration(a.cfg.HandDelayMs))
	}
	return nil
}

// finish waits for the table loops, settles outstanding batches, releases
// seats and publishes the final standings.
func (a *Arena) finish() {
	err := a.group.Wait()

	hands := int(a.handsDone.Load())
	reason := reasonHandLimitReached
	switch {
	case a.stopFlag.Load() || err != nil:
		reason = reasonStopped
	case hands < a.cfg.MaxHands:
		reason = reasonInsufficientPlayers
	}
	a.reason.Store(reason)

	a.mu.Lock()
	tables := a.tables
	seated := a.seatedAgents
	a.mu.Unlock()

	if a.settler != nil {
		for _, tbl := range tables {
			if ferr := a.settler.FinalizeRoom(context.Background(), tbl.ID()); ferr != nil {
				a.logger.Error("settlement finalize failed", "table", tbl.ID(), "err", ferr)
				a.publishError(tbl.ID(), "settlement", ferr)
			}
		}
	}
	for _, tbl := range tables {
		tbl.Close()
	}
	if a.registry != nil {
		for _, id := range seated {
			a.registry.UnseatAgent(id)
		}
	}

	a.mu.Lock()
	a.running = false
	a.endedAt = a.clock.Now()
	a.runErr = err
	done := a.done
	a.mu.Unlock()

	a.dash.Publish(dashboard.TopicStats, a.Status())
	a.logger.Info("arena finished",
		"reason", reason,
		"hands", hands,
		"hands_per_second", fmt.Sprintf("%.1f", a.HandsPerSecond()))
	close(done)
}

// recordHand folds one completed hand into stats, the dashboard, the
// settlement pipeline, the transcript archive and the external recorder.
func (a *Arena) recordHand(tbl *game.Table, result game.HandResult) {
	a.handsDone.Add(1)

	a.mu.Lock()
	stats := a.stats
	a.mu.Unlock()
	stats.RecordHand(result)

	wonBy := make(map[string]int, len(result.Winners))
	for _, w := range result.Winners {
		wonBy[w.PlayerID] += w.Amount
	}
	for playerID := range result.Contributions {
		standing, ok := stats.Standing(playerID)
		if !ok {
			continue
		}
		a.dash.Publish(dashboard.TopicWinRate, dashboard.WinRatePoint{
			PlayerID:   playerID,
			PlayerName: standing.Name,
			Hands:      standing.Hands,
			WinRate:    standing.WinRate,
			NetChips:   standing.NetChips,
		})
	}
	a.dash.Publish(dashboard.TopicStats, a.Status())

	if a.settler != nil {
		if err := a.settler.PushHandResult(tbl.ID(), result); err != nil {
			a.logger.Error("settlement push failed", "table", tbl.ID(), "err", err)
			a.publishError(tbl.ID(), "settlement", err)
		}
	}
	if a.archiver != nil {
		if err := a.archiver.ArchiveHand(result); err != nil {
			a.logger.Error("hand archive failed", "table", tbl.ID(), "err", err)
			a.publishError(tbl.ID(), "archive", err)
		}
	}
	if a.recorder != nil {
		a.recordExternally(stats, result, wonBy)
	}
}

// recordExternally mirrors the hand's per-player outcomes to the recorder.
// Recorder failures are logged and never interrupt play.
func (a *Arena) recordExternally(stats *Stats, result game.HandResult, wonBy map[string]int) {
	a.mu.Lock()
	styles := a.styles
	a.mu.Unlock()

	for playerID, contributed := range result.Contributions {
		style, known := styles[playerID]
		playerType := "agent"
		if known && style != "" {
			playerType = "bot"
		}
		standing, _ := stats.Standing(playerID)
		name := standing.Name
		if name == "" {
			name = playerID
		}
		won := wonBy[playerID]
		if err := a.recorder.RecordResult(playerID, name, playerType, style, won > 0, won-contributed); err != nil {
			a.logger.Warn("recorder failed", "player_id", playerID, "err", err)
		}
	}
}

func (a *Arena) publishError(tableID, source string, err error) {
	a.dash.Publish(dashboard.TopicErrors, dashboard.ErrorEntry{
		Source:  source,
		TableID: tableID,
		Message: err.Error(),
	})
}

// sleep pauses for d on the arena clock, returning early on cancellation.
func (a *Arena) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	woke := make(chan struct{})
	t := a.clock.AfterFunc(d, func() { close(woke) })
	defer t.Stop()
	select {
	case <-woke:
	case <-ctx.Done():
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// handWatcher subscribes to one table for the duration of one hand. Turn
// handling runs on the event bus dispatch goroutine, so decisions for a
// table are strictly sequential.
type handWatcher struct {
	arena  *Arena
	tbl    *game.Table
	ctx    context.Context
	done   chan struct{}
	once   sync.Once
	result game.HandResult
}

func newHandWatcher(ctx context.Context, a *Arena, tbl *game.Table) *handWatcher {
	return &handWatcher{arena: a, tbl: tbl, ctx: ctx, done: make(chan struct{})}
}

func (w *handWatcher) OnGameEvent(ev game.Event) {
	switch e := ev.(type) {
	case game.PlayerTurnEvent:
		w.arena.handleTurn(w.ctx, w.tbl, e)
	case game.PlayerActionEvent:
		w.arena.publishAction(e)
	case game.PhaseChangeEvent:
		w.arena.sleep(w.ctx, msToDuration(w.arena.cfg.PhaseDelayMs))
	case game.HandCompleteEvent:
		w.result = e.Result
		w.once.Do(func() { close(w.done) })
	}
}

// handleTurn obtains a decision for the seat on turn and submits it. The
// table's own timer is the backstop: if it acts first, the submission here
// loses the race and is dropped.
func (a *Arena) handleTurn(ctx context.Context, tbl *game.Table, ev game.PlayerTurnEvent) {
	if ev.PlayerID == "" {
		return
	}
	a.sleep(ctx, msToDuration(a.cfg.ActionDelayMs))

	view, err := tbl.PlayerViewFor(ev.PlayerID)
	if err != nil || !view.IsMyTurn || view.HandNumber != ev.HandNumber {
		return
	}
	dec := a.decideFor(ctx, view)

	// The turn timer may have acted for us while the decision was pending.
	// A changed street or bet level means this decision is stale and a
	// fresh turn event is already queued behind this one.
	cur, err := tbl.PlayerViewFor(ev.PlayerID)
	if err != nil || !cur.IsMyTurn || cur.HandNumber != ev.HandNumber ||
		cur.Phase != view.Phase || cur.CurrentBet != view.CurrentBet {
		return
	}
	if err := tbl.SubmitAction(ev.PlayerID, dec.Action, dec.Amount); err != nil {
		if errors.Is(err, game.ErrNotYourTurn) || errors.Is(err, game.ErrNoActiveHand) {
			return
		}
		a.logger.Warn("action rejected",
			"table", tbl.ID(),
			"player_id", ev.PlayerID,
			"action", dec.Action.String(),
			"amount", dec.Amount,
			"err", err)
	}
}

// decideFor routes the turn to the agent registry or the player's bot
// decider, falling back to check-else-fold.
func (a *Arena) decideFor(ctx context.Context, view game.PlayerView) game.Decision {
	if a.registry != nil {
		if agentID, ok := a.registry.AgentIDForPlayer(view.PlayerID); ok {
			dec, err := a.registry.RequestDecision(ctx, agentID, view)
			if err == nil {
				return dec
			}
			a.logger.Warn("agent decision failed", "player_id", view.PlayerID, "err", err)
		}
	}
	if d, ok := a.deciders[view.PlayerID]; ok {
		dec, err := d.Decide(ctx, view)
		if err == nil {
			return dec
		}
		a.logger.Warn("bot decision failed", "player_id", view.PlayerID, "err", err)
	}
	for _, va := range view.ValidActions {
		if va.Action == game.Check {
			return game.Decision{Action: game.Check, Reasoning: "no decider available"}
		}
	}
	return game.Decision{Action: game.Fold, Reasoning: "no decider available"}
}

// publishAction mirrors one applied action onto the dashboard action log.
func (a *Arena) publishAction(ev game.PlayerActionEvent) {
	rec := ev.Record
	a.dash.Publish(dashboard.TopicActions, dashboard.ActionEntry{
		TableID:    ev.Table(),
		HandNumber: ev.HandNumber,
		PlayerID:   rec.PlayerID,
		PlayerName: rec.PlayerName,
		Action:     rec.Action.String(),
		Amount:     rec.Amount,
		Phase:      rec.Phase.String(),
		PotTotal:   ev.PotTotal,
		TimedOut:   ev.TimedOut,
	})
}

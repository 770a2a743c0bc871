// Package settlement batches completed hands per room and submits them to a
// ledger under a Merkle commitment over their action logs. Batches flush
// when they reach the configured size, after a period of inactivity, or
// when a room is finalised.
package settlement

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdem-arena/internal/actionlog"
	"github.com/lox/holdem-arena/internal/dashboard"
	"github.com/lox/holdem-arena/internal/fileutil"
	"github.com/lox/holdem-arena/internal/game"
	"github.com/lox/holdem-arena/internal/gameid"
)

// WalletResolver maps internal player IDs to on-ledger wallet addresses.
// Players without an address (house bots) stay off the submission.
type WalletResolver interface {
	WalletFor(playerID string) (string, bool)
}

// Ledger receives finished submissions.
type Ledger interface {
	SubmitBatch(ctx context.Context, sub *Submission) error
}

// Submission is one settled batch for a room. BatchID is time-sortable, so
// a directory of journaled batches lists in submission order.
type Submission struct {
	BatchID         string           `json:"batchId"`
	SessionID       actionlog.Hash   `json:"sessionId"`
	RoomID          string           `json:"roomId"`
	HandNumbers     []int            `json:"handNumbers"`
	WinnersPerHand  [][]string       `json:"winnersPerHand"`
	AmountsPerHand  [][]int          `json:"amountsPerHand"`
	ActionLogHashes []actionlog.Hash `json:"actionLogHashes"`
	Players         []string         `json:"players"`
	ChipDeltas      []int            `json:"chipDeltas"`
	MerkleRoot      actionlog.Hash   `json:"merkleRoot"`
	SubmittedAtMs   int64            `json:"submittedAtMs"`
}

// Config controls batching and retry behaviour.
type Config struct {
	BatchSize       int    `json:"batchSize"`
	FlushIntervalMs int    `json:"flushIntervalMs"`
	RetryCount      int    `json:"retryCount"`
	RetryDelayMs    int    `json:"retryDelayMs"`
	JournalDir      string `json:"journalDir,omitempty"`
}

// Defaults applied to zero Config fields.
const (
	DefaultBatchSize       = 10
	DefaultFlushIntervalMs = 60000
	DefaultRetryCount      = 3
	DefaultRetryDelayMs    = 1000
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushIntervalMs <= 0 {
		c.FlushIntervalMs = DefaultFlushIntervalMs
	}
	if c.RetryCount <= 0 {
		c.RetryCount = DefaultRetryCount
	}
	if c.RetryDelayMs <= 0 {
		c.RetryDelayMs = DefaultRetryDelayMs
	}
	return c
}

// Settler accumulates hand results per room. Pushes may come from
// concurrent table loops; rooms are independent and each room's operations
// are serialised.
type Settler struct {
	cfg     Config
	logger  *log.Logger
	clock   quartz.Clock
	ledger  Ledger
	wallets WalletResolver
	dash    *dashboard.Bus
	store   *actionlog.Store

	mu    sync.Mutex
	rooms map[string]*roomBatch
}

type roomBatch struct {
	mu    sync.Mutex
	hands []game.HandResult
	timer *quartz.Timer
}

// Option adjusts a settler at construction time.
type Option func(*Settler)

// WithLogger injects the settler's logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Settler) { s.logger = logger }
}

// WithClock injects the clock driving flush timers and retry backoff.
func WithClock(clock quartz.Clock) Option {
	return func(s *Settler) { s.clock = clock }
}

// WithDashboard publishes settlement errors on the given bus.
func WithDashboard(bus *dashboard.Bus) Option {
	return func(s *Settler) { s.dash = bus }
}

// New creates a settler submitting to ledger with wallet lookups from
// wallets. A nil ledger logs submissions instead; a nil resolver maps no
// players.
func New(cfg Config, ledger Ledger, wallets WalletResolver, opts ...Option) *Settler {
	s := &Settler{
		cfg:     cfg.withDefaults(),
		ledger:  ledger,
		wallets: wallets,
		rooms:   make(map[string]*roomBatch),
		store:   actionlog.NewStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.logger = s.logger.WithPrefix("settlement")
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.ledger == nil {
		s.ledger = NewLogLedger(s.logger)
	}
	if s.wallets == nil {
		s.wallets = noWallets{}
	}
	return s
}

// Store returns the unsettled action trail, for auditing endpoints.
func (s *Settler) Store() *actionlog.Store { return s.store }

// Pending returns the number of hands accumulated for a room.
func (s *Settler) Pending(roomID string) int {
	s.mu.Lock()
	rb, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.hands)
}

// PushHandResult adds a completed hand to its room's batch. Reaching
// BatchSize flushes immediately; otherwise the inactivity timer restarts.
func (s *Settler) PushHandResult(roomID string, result game.HandResult) error {
	rb := s.roomFor(roomID)

	rb.mu.Lock()
	rb.hands = append(rb.hands, result)
	s.store.Append(roomID, result.Actions...)

	if len(rb.hands) >= s.cfg.BatchSize {
		batch := s.takeLocked(roomID, rb)
		rb.mu.Unlock()
		return s.submit(context.Background(), roomID, batch)
	}

	if rb.timer != nil {
		rb.timer.Stop()
	}
	rb.timer = s.clock.AfterFunc(msToDuration(s.cfg.FlushIntervalMs), func() {
		s.flushRoom(roomID)
	})
	rb.mu.Unlock()
	return nil
}

// FinalizeRoom flushes any residue for the room and evicts it.
func (s *Settler) FinalizeRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	rb, ok := s.rooms[roomID]
	delete(s.rooms, roomID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	rb.mu.Lock()
	batch := s.takeLocked(roomID, rb)
	rb.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return s.submit(ctx, roomID, batch)
}

// flushRoom is the inactivity-timer path.
func (s *Settler) flushRoom(roomID string) {
	s.mu.Lock()
	rb, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		return
	}

	rb.mu.Lock()
	batch := s.takeLocked(roomID, rb)
	rb.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	if err := s.submit(context.Background(), roomID, batch); err != nil {
		s.logger.Error("inactivity flush failed", "room", roomID, "err", err)
	}
}

func (s *Settler) roomFor(roomID string) *roomBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	rb, ok := s.rooms[roomID]
	if !ok {
		rb = &roomBatch{}
		s.rooms[roomID] = rb
	}
	return rb
}

// takeLocked empties the room's batch and disarms its timer. Caller holds
// rb.mu; the store is cleared in the same critical section so the trail
// matches the unflushed hands.
func (s *Settler) takeLocked(roomID string, rb *roomBatch) []game.HandResult {
	batch := rb.hands
	rb.hands = nil
	if rb.timer != nil {
		rb.timer.Stop()
		rb.timer = nil
	}
	s.store.Clear(roomID)
	return batch
}

// submit builds the submission and pushes it to the ledger with retries.
func (s *Settler) submit(ctx context.Context, roomID string, hands []game.HandResult) error {
	sub := s.buildSubmission(roomID, hands)
	return s.submitWithRetry(ctx, sub)
}

func (s *Settler) buildSubmission(roomID string, hands []game.HandResult) *Submission {
	nowMs := s.clock.Now().UnixMilli()
	sub := &Submission{
		BatchID:       gameid.New(),
		SessionID:     actionlog.Sum([]byte(fmt.Sprintf("%s%d", roomID, nowMs))),
		RoomID:        roomID,
		SubmittedAtMs: nowMs,
	}

	deltas := make(map[string]int)
	var leaves []actionlog.Hash
	for _, hand := range hands {
		sub.HandNumbers = append(sub.HandNumbers, hand.HandNumber)

		wonBy := make(map[string]int, len(hand.Winners))
		winners := []string{}
		amounts := []int{}
		for _, w := range hand.Winners {
			wonBy[w.PlayerID] += w.Amount
			addr, ok := s.wallets.WalletFor(w.PlayerID)
			if !ok {
				continue
			}
			winners = append(winners, addr)
			amounts = append(amounts, w.Amount)
		}
		sub.WinnersPerHand = append(sub.WinnersPerHand, winners)
		sub.AmountsPerHand = append(sub.AmountsPerHand, amounts)

		leaf := actionlog.LeafHash(hand.Actions)
		sub.ActionLogHashes = append(sub.ActionLogHashes, leaf)
		if len(hand.Actions) > 0 {
			leaves = append(leaves, leaf)
		}

		for playerID, contributed := range hand.Contributions {
			addr, ok := s.wallets.WalletFor(playerID)
			if !ok {
				continue
			}
			deltas[addr] += wonBy[playerID] - contributed
		}
	}
	sub.MerkleRoot = actionlog.MerkleRoot(leaves)

	players := make([]string, 0, len(deltas))
	for addr := range deltas {
		players = append(players, addr)
	}
	sort.Strings(players)
	sub.Players = players
	sub.ChipDeltas = make([]int, len(players))
	for i, addr := range players {
		sub.ChipDeltas[i] = deltas[addr]
	}
	return sub
}

// submitWithRetry attempts the submission up to RetryCount times with
// linear backoff. An exhausted batch is journaled and reported lost; there
// is no automatic reconciliation.
func (s *Settler) submitWithRetry(ctx context.Context, sub *Submission) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		err := s.ledger.SubmitBatch(ctx, sub)
		if err == nil {
			s.logger.Info("batch submitted",
				"batch", sub.BatchID,
				"room", sub.RoomID,
				"hands", len(sub.HandNumbers),
				"session", sub.SessionID.Hex(),
				"merkle_root", sub.MerkleRoot.Hex())
			return nil
		}
		lastErr = err
		s.logger.Warn("batch submit failed",
			"room", sub.RoomID,
			"attempt", attempt,
			"of", s.cfg.RetryCount,
			"err", err)
		if attempt < s.cfg.RetryCount {
			s.sleep(ctx, msToDuration(s.cfg.RetryDelayMs*attempt))
		}
	}

	if s.dash != nil {
		s.dash.Publish(dashboard.TopicErrors, dashboard.ErrorEntry{
			Source:  "settlement",
			TableID: sub.RoomID,
			Message: fmt.Sprintf("batch of %d hands lost: %v", len(sub.HandNumbers), lastErr),
		})
	}
	s.journal(sub)
	return fmt.Errorf("batch lost after %d attempts: %w", s.cfg.RetryCount, lastErr)
}

// journal writes a lost submission to disk so it can be replayed by hand.
func (s *Settler) journal(sub *Submission) {
	if s.cfg.JournalDir == "" {
		return
	}
	path := filepath.Join(s.cfg.JournalDir, sub.BatchID+".json")
	if err := fileutil.WriteJSON(path, sub); err != nil {
		s.logger.Error("journal write failed", "path", path, "err", err)
		return
	}
	s.logger.Info("lost batch journaled", "path", path)
}

// sleep pauses on the settler clock, returning early on cancellation.
func (s *Settler) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	woke := make(chan struct{})
	t := s.clock.AfterFunc(d, func() { close(woke) })
	defer t.Stop()
	select {
	case <-woke:
	case <-ctx.Done():
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

type noWallets struct{}

func (noWallets) WalletFor(string) (string, bool) { return "", false }

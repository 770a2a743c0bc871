package settlement

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// LogLedger records submissions to the log and accepts them all. It stands
// in for a real chain connection during local play.
type LogLedger struct {
	logger *log.Logger
}

// NewLogLedger returns a ledger that only logs.
func NewLogLedger(logger *log.Logger) *LogLedger {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LogLedger{logger: logger.WithPrefix("ledger")}
}

// SubmitBatch implements Ledger.
func (l *LogLedger) SubmitBatch(_ context.Context, sub *Submission) error {
	l.logger.Info("accepted batch",
		"batch", sub.BatchID,
		"room", sub.RoomID,
		"hands", len(sub.HandNumbers),
		"players", len(sub.Players),
		"merkle_root", sub.MerkleRoot.Hex())
	return nil
}

// MemoryLedger keeps accepted submissions in memory so simulations and
// tests can inspect what was settled.
type MemoryLedger struct {
	mu      sync.Mutex
	batches []*Submission
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// SubmitBatch implements Ledger.
func (l *MemoryLedger) SubmitBatch(_ context.Context, sub *Submission) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, sub)
	return nil
}

// Batches returns the accepted submissions in arrival order.
func (l *MemoryLedger) Batches() []*Submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Submission, len(l.batches))
	copy(out, l.batches)
	return out
}

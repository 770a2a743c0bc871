package phh

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdem-arena/internal/fileutil"
	"github.com/lox/holdem-arena/internal/game"
)

// Writer archives completed hands as .phh files under a single directory,
// one file per hand. Each hand goes to its own file via an atomic rename,
// so concurrent tables never interleave.
type Writer struct {
	dir    string
	meta   Meta
	logger *log.Logger
	clock  quartz.Clock
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(logger *log.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger }
}

// WithClock sets the clock used to stamp hands. Defaults to the real clock.
func WithClock(clock quartz.Clock) WriterOption {
	return func(w *Writer) { w.clock = clock }
}

// NewWriter creates dir if needed and returns a writer that archives hands
// into it.
func NewWriter(dir string, meta Meta, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		dir:    dir,
		meta:   meta,
		logger: log.New(io.Discard),
		clock:  quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithPrefix("phh")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return w, nil
}

// Dir returns the directory hands are written to.
func (w *Writer) Dir() string { return w.dir }

// ArchiveHand writes the transcript for one completed hand.
func (w *Writer) ArchiveHand(result game.HandResult) error {
	hand, err := Build(result, w.meta, w.clock.Now())
	if err != nil {
		return err
	}
	data, err := Marshal(hand)
	if err != nil {
		return err
	}
	path := filepath.Join(w.dir, hand.HandID+".phh")
	if err := fileutil.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write hand history: %w", err)
	}
	w.logger.Debug("archived hand", "table", result.TableID, "hand", result.HandNumber, "file", filepath.Base(path))
	return nil
}

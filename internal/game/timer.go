package game

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// turnTimer arms at most one deadline per table. Every arm or cancel bumps
// a sequence number; a fire callback carries the sequence it was armed with
// so late fires after a cancel race can be recognised and dropped.
type turnTimer struct {
	clock quartz.Clock

	mu    sync.Mutex
	timer *quartz.Timer
	seq   uint64
}

func newTurnTimer(clock quartz.Clock) *turnTimer {
	return &turnTimer{clock: clock}
}

// arm schedules fire after d, cancelling any previous deadline.
func (tt *turnTimer) arm(d time.Duration, fire func(seq uint64)) uint64 {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.timer != nil {
		tt.timer.Stop()
	}
	tt.seq++
	seq := tt.seq
	tt.timer = tt.clock.AfterFunc(d, func() {
		fire(seq)
	})
	return seq
}

// cancel disarms the pending deadline, if any.
func (tt *turnTimer) cancel() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.timer != nil {
		tt.timer.Stop()
		tt.timer = nil
	}
	tt.seq++
}

// current returns the live sequence number.
func (tt *turnTimer) current() uint64 {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.seq
}

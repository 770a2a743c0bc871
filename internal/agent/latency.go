package agent

import (
	"sync"
	"time"
)

const latencyWindow = 50

// latencyTracker keeps a ring of recent decision latencies and a running
// total so the mean is O(1) to read.
type latencyTracker struct {
	mu      sync.Mutex
	samples [latencyWindow]time.Duration
	next    int
	filled  int
	sum     time.Duration
	total   int
}

func (lt *latencyTracker) record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lt.filled == latencyWindow {
		lt.sum -= lt.samples[lt.next]
	} else {
		lt.filled++
	}
	lt.samples[lt.next] = d
	lt.sum += d
	lt.next = (lt.next + 1) % latencyWindow
	lt.total++
}

// snapshot returns the lifetime decision count and the mean latency in
// milliseconds over the retained window.
func (lt *latencyTracker) snapshot() (count int, meanMs float64) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lt.filled == 0 {
		return lt.total, 0
	}
	mean := float64(lt.sum.Microseconds()) / float64(lt.filled) / 1000.0
	return lt.total, mean
}

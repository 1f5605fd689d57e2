package stream

import (
	"gonum.org/v1/gonum/stat"
	"sort"
	"sync"
	"time"
)

// LatencySummary describes the per frame processing time over the recent
// window
type LatencySummary struct {
	Count  int
	Mean   time.Duration
	StdDev time.Duration
	P95    time.Duration
	Max    time.Duration
}

// LatencyStats keeps a rolling window of frame processing times.  It is safe
// for concurrent use.
type LatencyStats struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewLatencyStats returns a LatencyStats keeping the last size samples
func NewLatencyStats(size int) *LatencyStats {

	if size < 1 {
		size = 1
	}

	return &LatencyStats{
		samples: make([]float64, size),
	}
}

// Add records a sample, replacing the oldest once the window is full
func (l *LatencyStats) Add(d time.Duration) {

	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = float64(d)
	l.next++

	if l.next == len(l.samples) {
		l.next = 0
		l.full = true
	}
}

// Reset discards all samples
func (l *LatencyStats) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next = 0
	l.full = false
}

// Summary computes the statistics of the samples in the window
func (l *LatencyStats) Summary() LatencySummary {

	l.mu.Lock()

	n := l.next

	if l.full {
		n = len(l.samples)
	}

	xs := make([]float64, n)
	copy(xs, l.samples[:n])

	l.mu.Unlock()

	if n == 0 {
		return LatencySummary{}
	}

	sort.Float64s(xs)

	sum := LatencySummary{
		Count: n,
		Mean:  time.Duration(stat.Mean(xs, nil)),
		P95:   time.Duration(stat.Quantile(0.95, stat.Empirical, xs, nil)),
		Max:   time.Duration(xs[n-1]),
	}

	if n > 1 {
		sum.StdDev = time.Duration(stat.StdDev(xs, nil))
	}

	return sum
}

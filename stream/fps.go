package stream

import (
	"github.com/benbjohnson/clock"
	"time"
)

// FPSCounter measures the frame rate over consecutive windows of wall clock
// time.  It is not safe for concurrent use.
type FPSCounter struct {
	clk    clock.Clock
	window time.Duration
	start  time.Time
	frames int
	fps    float64
}

// NewFPSCounter returns a counter recomputing the rate every window
func NewFPSCounter(clk clock.Clock, window time.Duration) *FPSCounter {
	return &FPSCounter{
		clk:    clk,
		window: window,
		start:  clk.Now(),
	}
}

// Tick records a frame and returns the current rate.  The rate stays at the
// value of the last completed window, zero before the first one completes.
func (f *FPSCounter) Tick() float64 {

	f.frames++
	elapsed := f.clk.Since(f.start)

	if elapsed >= f.window {
		f.fps = float64(f.frames) / elapsed.Seconds()
		f.frames = 0
		f.start = f.clk.Now()
	}

	return f.fps
}

// FPS returns the rate of the last completed window
func (f *FPSCounter) FPS() float64 {
	return f.fps
}

// Reset clears the counter and starts a new window
func (f *FPSCounter) Reset() {
	f.frames = 0
	f.fps = 0
	f.start = f.clk.Now()
}

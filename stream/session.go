// Package stream runs the capture, detect and render loop that feeds a
// presentation layer with annotated frames at a steady frame rate.
package stream

import (
	"context"
	"errors"
	"fmt"
	"github.com/benbjohnson/clock"
	"github.com/swdee/go-yolocam"
	"github.com/swdee/go-yolocam/capture"
	"github.com/swdee/go-yolocam/detector"
	"github.com/swdee/go-yolocam/postprocess/result"
	"github.com/swdee/go-yolocam/render"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"os"
	"sync"
	"time"
)

var (
	// ErrNotIdle is returned when starting a Session that is already running
	ErrNotIdle = errors.New("session is not idle")
	// ErrStopTimeout is returned when the capture loop did not exit within
	// the stop timeout.  The loop still releases its resources when it does.
	ErrStopTimeout = errors.New("timed out waiting for capture loop to stop")
)

// Detector is the part of detector.Detector the capture loop uses
type Detector interface {
	DetectThreshold(img gocv.Mat, conf float32) ([]result.Detection, error)
	Render(img *gocv.Mat, dets []result.Detection)
	LastTiming() detector.Timing
	Close() error
}

// Options configure a Session
type Options struct {
	// ModelPath is the model file, it must exist before the detector is
	// loaded
	ModelPath string
	// LoadDetector creates the detector for the model at path
	LoadDetector func(path string) (Detector, error)
	// OpenCapture opens the video source
	OpenCapture func() (capture.Source, error)
	// TargetFPS is the frame rate the loop is paced to
	TargetFPS float64
	// StopTimeout bounds how long Stop waits for the loop to exit
	StopTimeout time.Duration
	// MaxInferenceFailures is the number of consecutive failed detections
	// that end the session, zero for no limit
	MaxInferenceFailures int
	// LatencyWindow is the number of frames kept for latency statistics
	LatencyWindow int
	// Clock drives pacing and FPS measurement
	Clock clock.Clock
	// Controls hold the live settings, shared with whoever adjusts them
	Controls *Controls
}

// DefaultOptions returns Options with the default pacing and limits
func DefaultOptions() Options {
	return Options{
		TargetFPS:            30,
		StopTimeout:          2 * time.Second,
		MaxInferenceFailures: 5,
		LatencyWindow:        120,
	}
}

// withDefaults fills in unset values
func (o Options) withDefaults() Options {

	def := DefaultOptions()

	if o.TargetFPS <= 0 {
		o.TargetFPS = def.TargetFPS
	}

	if o.StopTimeout <= 0 {
		o.StopTimeout = def.StopTimeout
	}

	if o.MaxInferenceFailures < 0 {
		o.MaxInferenceFailures = 0
	}

	if o.LatencyWindow <= 0 {
		o.LatencyWindow = def.LatencyWindow
	}

	if o.Clock == nil {
		o.Clock = clock.New()
	}

	if o.Controls == nil {
		o.Controls = NewControls(0.5, true, false)
	}

	return o
}

// Stats are counters of the current or last Session run
type Stats struct {
	State   State
	Frames  uint64
	FPS     float64
	Latency LatencySummary
}

// run holds the state of a single Start to stop cycle
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session owns the capture loop.  It moves from Idle to Running on Start and
// back to Idle through Stopping on Stop, or directly when the loop ends by
// itself on a fault.
type Session struct {
	opts      Options
	presenter Presenter
	log       *zap.SugaredLogger
	font      render.Font
	latency   *LatencyStats

	frames atomic.Uint64
	fps    atomic.Float64

	mu      sync.Mutex
	state   State
	current *run
	lastErr error
}

// NewSession returns an idle Session posting frames to presenter
func NewSession(opts Options, presenter Presenter, logger *zap.SugaredLogger) *Session {

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	opts = opts.withDefaults()

	return &Session{
		opts:      opts,
		presenter: presenter,
		log:       logger,
		font:      render.OverlayFont(),
		latency:   NewLatencyStats(opts.LatencyWindow),
	}
}

// Controls returns the live settings of the Session
func (s *Session) Controls() *Controls {
	return s.opts.Controls
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done returns a channel closed when the current run has ended and released
// its resources.  With no run it returns a closed channel.
func (s *Session) Done() <-chan struct{} {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}

	return s.current.done
}

// Err returns the fault that ended the last run by itself, if any.  The
// error is cleared once returned.
func (s *Session) Err() error {

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.lastErr
	s.lastErr = nil

	return err
}

// Stats returns the counters of the current or last run
func (s *Session) Stats() Stats {
	return Stats{
		State:   s.State(),
		Frames:  s.frames.Load(),
		FPS:     s.fps.Load(),
		Latency: s.latency.Summary(),
	}
}

// Start checks the model file, loads the detector and opens the capture
// source, then starts the capture loop.  The Session is Starting while these
// load and its state can be read meanwhile.  If any step fails, or Stop is
// called or ctx is cancelled before loading completes, whatever was opened is
// released and the Session returns to Idle.  Cancelling ctx ends the run like
// Stop does.
func (s *Session) Start(ctx context.Context) error {

	s.mu.Lock()

	if s.state != Idle {
		s.mu.Unlock()
		return ErrNotIdle
	}

	runCtx, cancel := context.WithCancel(ctx)

	r := &run{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.current = r
	s.state = Starting
	s.lastErr = nil
	s.mu.Unlock()

	det, src, err := s.open()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil && runCtx.Err() != nil {
		if cerr := multierr.Combine(src.Close(), det.Close()); cerr != nil {
			s.log.Warnw("error releasing resources", "error", cerr)
		}

		err = fmt.Errorf("session start aborted: %w", runCtx.Err())
	}

	if err != nil {
		cancel()
		close(r.done)
		s.current = nil
		s.state = Idle
		return err
	}

	s.state = Running
	s.frames.Store(0)
	s.fps.Store(0)
	s.latency.Reset()

	s.log.Infow("session started", "model", s.opts.ModelPath,
		"source", src.Name(), "fps", s.opts.TargetFPS)

	go s.loop(runCtx, r, det, src)

	return nil
}

// open loads the detector and opens the capture source, on failure nothing
// is left open
func (s *Session) open() (Detector, capture.Source, error) {

	if _, err := os.Stat(s.opts.ModelPath); err != nil {
		return nil, nil, &yolocam.ModelLoadError{Path: s.opts.ModelPath, Err: err}
	}

	det, err := s.opts.LoadDetector(s.opts.ModelPath)

	if err != nil {
		var loadErr *yolocam.ModelLoadError

		if errors.As(err, &loadErr) {
			return nil, nil, err
		}

		return nil, nil, &yolocam.ModelLoadError{Path: s.opts.ModelPath, Err: err}
	}

	src, err := s.opts.OpenCapture()

	if err != nil {
		if cerr := det.Close(); cerr != nil {
			s.log.Warnw("error closing detector", "error", cerr)
		}

		var capErr *yolocam.CaptureError

		if errors.As(err, &capErr) {
			return nil, nil, err
		}

		return nil, nil, &yolocam.CaptureError{Err: err}
	}

	return det, src, nil
}

// Stop ends the running capture loop and waits up to the stop timeout for
// it to release the capture source and detector.  Stopping a Starting
// Session makes Start abort once loading completes.  Stopping an idle
// Session does nothing.
func (s *Session) Stop() error {

	s.mu.Lock()

	if s.state == Starting {
		s.current.cancel()
		s.mu.Unlock()
		return nil
	}

	if s.state != Running {
		s.mu.Unlock()
		return nil
	}

	r := s.current
	s.state = Stopping
	s.mu.Unlock()

	r.cancel()

	var err error

	select {
	case <-r.done:
	case <-s.opts.Clock.After(s.opts.StopTimeout):
		s.log.Warnw("capture loop did not stop in time, abandoning it",
			"timeout", s.opts.StopTimeout)
		err = ErrStopTimeout
	}

	s.mu.Lock()

	if s.current == r {
		s.current = nil
		s.state = Idle
	}

	s.mu.Unlock()

	return err
}

// finish moves the Session back to Idle when the loop of r ends.  A run that
// ends while still Running ended by itself and its error is kept.
func (s *Session) finish(r *run, err error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != r {
		// abandoned by Stop
		return
	}

	if s.state == Running && err != nil {
		s.lastErr = err
	}

	s.current = nil
	s.state = Idle
}

// loop runs the capture loop until it is cancelled or faults, releasing the
// capture source and detector on the way out
func (s *Session) loop(ctx context.Context, r *run, det Detector, src capture.Source) {

	var err error

	defer func() {
		r.cancel()

		if cerr := multierr.Combine(src.Close(), det.Close()); cerr != nil {
			s.log.Warnw("error releasing resources", "error", cerr)
		}

		if err != nil {
			s.log.Errorw("session ended", "error", err)
		} else {
			s.log.Infow("session stopped", "frames", s.frames.Load())
		}

		s.finish(r, err)
		close(r.done)
	}()

	err = s.process(ctx, det, src)
}

// process is the body of the capture loop
func (s *Session) process(ctx context.Context, det Detector, src capture.Source) error {

	clk := s.opts.Clock
	controls := s.opts.Controls
	interval := time.Duration(float64(time.Second) / s.opts.TargetFPS)
	counter := NewFPSCounter(clk, time.Second)

	failures := 0
	seq := uint64(0)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		start := clk.Now()
		frame := gocv.NewMat()

		if err := src.Read(&frame); err != nil {
			frame.Close()

			if !errors.Is(err, capture.ErrNoFrame) {
				return &yolocam.CaptureError{Device: src.Name(), Err: err}
			}

			if !s.pace(ctx, start, interval) {
				return nil
			}

			continue
		}

		if controls.Mirror() {
			gocv.Flip(frame, &frame, 1)
		}

		var (
			dets   []result.Detection
			timing detector.Timing
		)

		if controls.Detection() {
			var err error
			dets, err = det.DetectThreshold(frame, controls.Confidence())

			if err != nil {
				failures++

				if failures == 1 {
					s.log.Warnw("detection failed", "error", err)
				} else {
					s.log.Debugw("detection failed", "error", err, "consecutive", failures)
				}

				if s.opts.MaxInferenceFailures > 0 && failures >= s.opts.MaxInferenceFailures {
					frame.Close()
					return fmt.Errorf("%d consecutive detection failures: %w", failures, err)
				}

				dets = nil

			} else {
				if failures > 0 {
					s.log.Infow("detection recovered", "failures", failures)
					failures = 0
				}

				det.Render(&frame, dets)
				timing = det.LastTiming()
			}
		}

		fps := counter.Tick()
		render.FPS(&frame, fps, s.font)

		seq++
		s.frames.Store(seq)
		s.fps.Store(fps)
		s.latency.Add(clk.Since(start))

		err := s.presenter.Post(Update{
			Seq:        seq,
			Time:       start,
			Frame:      frame,
			FPS:        fps,
			Detections: dets,
			Timing:     timing,
		})

		if err != nil {
			frame.Close()

			if errors.Is(err, ErrPresenterClosed) {
				s.log.Infow("presenter closed, stopping")
				return nil
			}

			return fmt.Errorf("error posting frame: %w", err)
		}

		if !s.pace(ctx, start, interval) {
			return nil
		}
	}
}

// pace sleeps out the rest of the frame interval started at start, at least
// a millisecond so a stalled source can not spin the loop.  It returns false
// when ctx was cancelled while waiting.
func (s *Session) pace(ctx context.Context, start time.Time, interval time.Duration) bool {

	wait := interval - s.opts.Clock.Since(start)

	if wait < time.Millisecond {
		wait = time.Millisecond
	}

	select {
	case <-ctx.Done():
		return false
	case <-s.opts.Clock.After(wait):
		return true
	}
}

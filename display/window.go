package display

import (
	"context"
	"fmt"
	"github.com/swdee/go-yolocam/postprocess/result"
	"github.com/swdee/go-yolocam/stream"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"strings"
)

const (
	keyEsc = 27
	keyQ   = 'q'
	// keys adjusting the live controls
	keyDetection = 'd'
	keyMirror    = 'm'
	keyConfUp    = '+'
	keyConfDown  = '-'

	confidenceStep = 0.05
)

// Window shows frames in an OpenCV window.  OpenCV requires the window to be
// driven from the main goroutine so Run must be called from there.
type Window struct {
	title   string
	updates <-chan stream.Update
	limit   int
	log     *zap.SugaredLogger
	win     *gocv.Window
	// controls toggled from the keyboard, may be nil
	controls *stream.Controls
}

// NewWindow opens a window named title.  When controls is given the keys d
// and m toggle detection and mirroring and + and - step the confidence.
func NewWindow(title string, updates <-chan stream.Update, summaryLimit int,
	controls *stream.Controls, logger *zap.SugaredLogger) *Window {

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Window{
		title:    title,
		updates:  updates,
		limit:    summaryLimit,
		log:      logger,
		win:      gocv.NewWindow(title),
		controls: controls,
	}
}

// Run shows updates until the updates channel is closed, ctx is done or the
// user presses ESC or q in the window.  It returns true when the user closed
// the window.
func (w *Window) Run(ctx context.Context) bool {

	for {
		select {
		case <-ctx.Done():
			return false

		case u, ok := <-w.updates:
			if !ok {
				return false
			}

			w.win.IMShow(u.Frame)
			w.win.SetWindowTitle(windowTitle(w.title, u.FPS, u.Detections, w.limit))
			u.Release()

		default:
		}

		// keeps the window responsive while no frames arrive
		key := w.win.WaitKey(10)

		if key == keyEsc || key == keyQ {
			w.log.Infow("window closed by user")
			return true
		}

		if w.controls != nil {
			handleKey(w.controls, key, w.log)
		}
	}
}

// Close destroys the window
func (w *Window) Close() error {
	return w.win.Close()
}

// windowTitle formats the title bar text, the detection summary is folded
// onto one line
func windowTitle(base string, fps float64, dets []result.Detection, limit int) string {

	summary := result.Summarize(dets, limit)
	summary = strings.ReplaceAll(summary, "\n* ", " | ")
	summary = strings.ReplaceAll(summary, "\n", " ")

	return fmt.Sprintf("%s - FPS: %.1f - %s", base, fps, summary)
}

// handleKey applies a control key, other keys are ignored
func handleKey(c *stream.Controls, key int, log *zap.SugaredLogger) {

	switch key {
	case keyDetection:
		c.SetDetection(!c.Detection())
		log.Infow("detection toggled", "enabled", c.Detection())

	case keyMirror:
		c.SetMirror(!c.Mirror())
		log.Infow("mirror toggled", "enabled", c.Mirror())

	case keyConfUp, keyConfDown:
		step := float32(confidenceStep)

		if key == keyConfDown {
			step = -step
		}

		// out of range steps are refused so the value sticks at the ends
		if err := c.SetConfidence(c.Confidence() + step); err == nil {
			log.Infow("confidence changed", "threshold", c.Confidence())
		}
	}
}

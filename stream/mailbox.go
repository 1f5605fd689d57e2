package stream

import (
	"errors"
	"github.com/swdee/go-yolocam/detector"
	"github.com/swdee/go-yolocam/postprocess/result"
	"go.uber.org/atomic"
	"gocv.io/x/gocv"
	"sync"
	"time"
)

var (
	// ErrPresenterClosed is returned by Post once the presenter has shut
	// down, the Session treats it as a stop request
	ErrPresenterClosed = errors.New("presenter closed")
)

// Update is a rendered frame handed to the presentation side.  The receiver
// owns the Frame and must Release the Update when done with it.
type Update struct {
	// Seq numbers the updates of a Session run from 1
	Seq uint64
	// Time the frame was captured
	Time time.Time
	// Frame is the rendered BGR frame
	Frame gocv.Mat
	// FPS is the capture loop frame rate
	FPS float64
	// Detections found in the frame, nil when detection is off
	Detections []result.Detection
	// Timing of the detector stages for this frame
	Timing detector.Timing
}

// Release frees the frame
func (u Update) Release() {
	u.Frame.Close()
}

// Presenter receives updates from the capture loop.  Post is called from the
// capture goroutine and must not block.
type Presenter interface {
	Post(u Update) error
}

// Mailbox is a Presenter that queues updates for a presentation goroutine.
// When the queue is full the oldest update is dropped so the presentation
// always gets the most recent frames and the capture loop never waits.
type Mailbox struct {
	mu      sync.Mutex
	ch      chan Update
	closed  bool
	posted  atomic.Uint64
	dropped atomic.Uint64
}

// NewMailbox returns a Mailbox holding up to size updates
func NewMailbox(size int) *Mailbox {

	if size < 1 {
		size = 1
	}

	return &Mailbox{
		ch: make(chan Update, size),
	}
}

// Post queues the update, dropping the oldest queued update if needed
func (m *Mailbox) Post(u Update) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrPresenterClosed
	}

	for {
		select {
		case m.ch <- u:
			m.posted.Inc()
			return nil

		default:
			// full, make room.  The receiver may have emptied it meanwhile
			select {
			case old := <-m.ch:
				old.Release()
				m.dropped.Inc()
			default:
			}
		}
	}
}

// Updates returns the channel the presentation goroutine receives from, it
// is closed by Close
func (m *Mailbox) Updates() <-chan Update {
	return m.ch
}

// Posted returns the number of updates accepted
func (m *Mailbox) Posted() uint64 {
	return m.posted.Load()
}

// Dropped returns the number of updates discarded unseen
func (m *Mailbox) Dropped() uint64 {
	return m.dropped.Load()
}

// Close rejects further updates and releases those still queued
func (m *Mailbox) Close() {

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true

	for {
		select {
		case old := <-m.ch:
			old.Release()
		default:
			close(m.ch)
			return
		}
	}
}

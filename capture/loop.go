package capture

import (
	"errors"
	"fmt"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
	"sync"
	"time"
)

// Loop is a Source replaying buffered frames over and over at a fixed frame
// rate, simulating a camera
type Loop struct {
	name     string
	frames   []gocv.Mat
	interval time.Duration
	clk      clock.Clock

	mu     sync.Mutex
	pos    int
	next   time.Time
	closed bool
}

// NewLoop returns a Loop over frames delivered at fps.  The Loop takes
// ownership of the frames and closes them on Close.
func NewLoop(name string, frames []gocv.Mat, fps float64, clk clock.Clock) (*Loop, error) {

	if len(frames) == 0 {
		return nil, errors.New("no frames to loop")
	}

	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}

	if clk == nil {
		clk = clock.New()
	}

	return &Loop{
		name:     name,
		frames:   frames,
		interval: time.Duration(float64(time.Second) / fps),
		clk:      clk,
	}, nil
}

// OpenLoop buffers the video file and returns a Loop replaying it
func OpenLoop(vidFile string, fps float64) (*Loop, error) {

	frames, err := BufferFile(vidFile)

	if err != nil {
		return nil, err
	}

	loop, err := NewLoop(vidFile, frames, fps, nil)

	if err != nil {
		closeAll(frames)
		return nil, err
	}

	return loop, nil
}

// Name returns the name the Loop was created with
func (l *Loop) Name() string {
	return l.name
}

// Read waits for the next frame time and copies the next frame into dst
func (l *Loop) Read(dst *gocv.Mat) error {

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrDeviceUnusable
	}

	now := l.clk.Now()

	// a reader that fell behind does not get a burst of frames
	if l.next.IsZero() || now.Sub(l.next) > l.interval {
		l.next = now
	}

	if wait := l.next.Sub(now); wait > 0 {
		l.clk.Sleep(wait)
	}

	l.next = l.next.Add(l.interval)

	l.frames[l.pos].CopyTo(dst)
	l.pos = (l.pos + 1) % len(l.frames)

	return nil
}

// Close frees the buffered frames
func (l *Loop) Close() error {

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true

	return closeAll(l.frames)
}

// BufferFile reads all frames of the video file into memory
func BufferFile(vidFile string) ([]gocv.Mat, error) {

	// open handle to read frames of video file
	video, err := gocv.VideoCaptureFile(vidFile)

	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", vidFile, err)
	}

	defer video.Close()

	frames := make([]gocv.Mat, 0)

	for {
		img := gocv.NewMat()

		// read the next frame from the video
		if ok := video.Read(&img); !ok {
			// reached last video frame
			img.Close()
			break
		}

		if img.Empty() {
			img.Close()
			continue
		}

		frames = append(frames, img)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames read from %s", vidFile)
	}

	return frames, nil
}

func closeAll(mats []gocv.Mat) error {

	var err error

	for i := range mats {
		err = multierr.Append(err, mats[i].Close())
	}

	return err
}

// Package capture provides the video frame sources the stream reads from.
package capture

import (
	"errors"
	"gocv.io/x/gocv"
)

var (
	// ErrNoFrame is returned when no frame was available on this read.  The
	// caller should try again on the next iteration.
	ErrNoFrame = errors.New("no frame available")
	// ErrDeviceUnusable is returned once a source can no longer produce
	// frames, eg: the camera was unplugged or the source was closed
	ErrDeviceUnusable = errors.New("capture device unusable")
)

// Source produces BGR video frames
type Source interface {
	// Read reads the next frame into dst
	Read(dst *gocv.Mat) error
	// Name identifies the source in logs and errors
	Name() string
	// Close releases the device
	Close() error
}

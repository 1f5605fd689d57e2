package capture

import (
	"fmt"
	"gocv.io/x/gocv"
	"strconv"
	"sync"
)

// maxFailedReads is the number of reads in a row that may fail before the
// device is considered gone
const maxFailedReads = 30

// Device is a Source reading from a camera, video file or stream URL through
// OpenCV
type Device struct {
	name   string
	vc     *gocv.VideoCapture
	mu     sync.Mutex
	failed int
}

// OpenDevice opens the named device.  A numeric name is taken as a camera
// index, anything else as a file or URL.  Width and height request a capture
// resolution from cameras, zero keeps the device default.
func OpenDevice(device string, width, height int) (*Device, error) {

	var (
		vc  *gocv.VideoCapture
		err error
	)

	if id, perr := strconv.Atoi(device); perr == nil {
		vc, err = gocv.VideoCaptureDevice(id)
	} else {
		vc, err = gocv.VideoCaptureFile(device)
	}

	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", device, err)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("error opening %s: %w", device, ErrDeviceUnusable)
	}

	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	return &Device{
		name: device,
		vc:   vc,
	}, nil
}

// Name returns the device name it was opened with
func (d *Device) Name() string {
	return d.name
}

// FPS returns the frame rate the device reports
func (d *Device) FPS() float64 {
	return d.vc.Get(gocv.VideoCaptureFPS)
}

// Read grabs the next frame.  Individual failed reads are reported as
// ErrNoFrame, too many in a row as ErrDeviceUnusable.
func (d *Device) Read(dst *gocv.Mat) error {

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return ErrDeviceUnusable
	}

	if ok := d.vc.Read(dst); !ok || dst.Empty() {
		d.failed++

		if d.failed >= maxFailedReads {
			return fmt.Errorf("%d reads failed: %w", d.failed, ErrDeviceUnusable)
		}

		return ErrNoFrame
	}

	d.failed = 0

	return nil
}

// Close releases the device
func (d *Device) Close() error {

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil
	}

	err := d.vc.Close()
	d.vc = nil

	return err
}

package yolocam

import (
	"fmt"
)

// InvalidFrameError is returned when a frame is empty or has non-positive
// dimensions.  It is recoverable, the frame is skipped
type InvalidFrameError struct {
	Width  int
	Height int
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("invalid frame of size %dx%d", e.Width, e.Height)
}

// ModelLoadError is returned when the model file is missing or the inference
// engine rejects it.  It aborts the start of a session
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// InferenceError is returned when the inference engine faults while running
// the model on a frame
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// CaptureError is returned when the capture device can not be opened or has
// become unusable.  It ends the running session
type CaptureError struct {
	Device string
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture device %q: %v", e.Device, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

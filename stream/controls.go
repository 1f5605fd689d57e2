package stream

import (
	"fmt"
	"go.uber.org/atomic"
)

// Controls are the settings that can be changed while a Session is running.
// The capture loop reads them once per frame.
type Controls struct {
	confidence atomic.Float32
	detection  atomic.Bool
	mirror     atomic.Bool
}

// NewControls returns Controls with the given initial values
func NewControls(confidence float32, detection, mirror bool) *Controls {

	c := &Controls{}
	c.confidence.Store(confidence)
	c.detection.Store(detection)
	c.mirror.Store(mirror)

	return c
}

// SetConfidence changes the minimum score of detections, it must lie
// between 0 and 1
func (c *Controls) SetConfidence(conf float32) error {

	if !(conf > 0 && conf < 1) {
		return fmt.Errorf("confidence threshold %v must be between 0 and 1", conf)
	}

	c.confidence.Store(conf)

	return nil
}

func (c *Controls) Confidence() float32 {
	return c.confidence.Load()
}

// SetDetection turns object detection on or off, frames are still shown when
// it is off
func (c *Controls) SetDetection(on bool) {
	c.detection.Store(on)
}

func (c *Controls) Detection() bool {
	return c.detection.Load()
}

// SetMirror turns horizontal flipping of frames on or off
func (c *Controls) SetMirror(on bool) {
	c.mirror.Store(on)
}

func (c *Controls) Mirror() bool {
	return c.mirror.Load()
}

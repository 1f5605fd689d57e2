package detector

import (
	"fmt"
	"github.com/swdee/go-yolocam"
	"github.com/swdee/go-yolocam/render"
)

// Config holds the settings of a Detector, it can not be changed once the
// Detector is created
type Config struct {
	// InputWidth and InputHeight are the spatial size of the model input
	InputWidth  int
	InputHeight int
	// ConfThreshold is the default minimum class score for a detection
	ConfThreshold float32
	// NMSThreshold is the IoU above which the lower scoring of two boxes is
	// suppressed
	NMSThreshold float32
	// Labels are the class names the Model was trained on, the number of
	// classes is taken from its length
	Labels []string
	// MaxDetections caps the detections returned per frame, zero for no cap
	MaxDetections int
	// ClassAwareNMS only suppresses overlapping boxes of the same class
	ClassAwareNMS bool
	// Font and LineThickness are used by Render
	Font          render.Font
	LineThickness int
}

// DefaultConfig returns the settings for a 640x640 COCO trained YOLOv8 model
func DefaultConfig() Config {
	return Config{
		InputWidth:    640,
		InputHeight:   640,
		ConfThreshold: 0.5,
		NMSThreshold:  0.45,
		Labels:        yolocam.COCOLabels,
		Font:          render.DefaultFont(),
		LineThickness: 2,
	}
}

// Validate checks the settings are usable
func (c Config) Validate() error {

	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("invalid input size %dx%d", c.InputWidth, c.InputHeight)
	}

	if !(c.ConfThreshold > 0 && c.ConfThreshold < 1) {
		return fmt.Errorf("confidence threshold %v must be between 0 and 1", c.ConfThreshold)
	}

	if !(c.NMSThreshold > 0 && c.NMSThreshold < 1) {
		return fmt.Errorf("NMS threshold %v must be between 0 and 1", c.NMSThreshold)
	}

	if len(c.Labels) == 0 {
		return fmt.Errorf("no class labels given")
	}

	if c.MaxDetections < 0 {
		return fmt.Errorf("invalid max detections %d", c.MaxDetections)
	}

	if c.LineThickness <= 0 {
		return fmt.Errorf("invalid line thickness %d", c.LineThickness)
	}

	return nil
}

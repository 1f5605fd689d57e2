// Package config loads the yolocam YAML configuration file.
package config

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

// Config is the complete yolocam configuration
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Camera  CameraConfig  `yaml:"camera"`
	Stream  StreamConfig  `yaml:"stream"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`
}

// ModelConfig contains the model and detector settings
type ModelConfig struct {
	Path          string  `yaml:"path"`
	LabelFile     string  `yaml:"label_file"` // optional, COCO labels when empty
	InputWidth    int     `yaml:"input_width"`
	InputHeight   int     `yaml:"input_height"`
	Confidence    float32 `yaml:"confidence"`
	NMS           float32 `yaml:"nms"`
	MaxDetections int     `yaml:"max_detections"` // 0 is unlimited
	ClassAwareNMS bool    `yaml:"class_aware_nms"`
	// ONNX Runtime settings
	RuntimeLib string `yaml:"onnxruntime_lib"`
	CUDA       bool   `yaml:"cuda"`
	DeviceID   int    `yaml:"device_id"`
	Threads    int    `yaml:"threads"`
}

// CameraConfig contains the capture source settings
type CameraConfig struct {
	Device string `yaml:"device"` // camera index, file or URL
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// Loop buffers a video file and replays it at the stream fps
	Loop bool `yaml:"loop"`
}

// StreamConfig contains the capture loop settings
type StreamConfig struct {
	FPS                  float64       `yaml:"fps"`
	StopTimeout          time.Duration `yaml:"stop_timeout"`
	MaxInferenceFailures int           `yaml:"max_inference_failures"`
	Detection            bool          `yaml:"detection"`
	Mirror               bool          `yaml:"mirror"`
	MailboxSize          int           `yaml:"mailbox_size"`
}

// DisplayConfig contains the presentation settings
type DisplayConfig struct {
	Mode         string `yaml:"mode"` // http or window
	HTTPAddr     string `yaml:"http_addr"`
	JPEGQuality  int    `yaml:"jpeg_quality"`
	SummaryLimit int    `yaml:"summary_limit"`
}

// LogConfig contains the logger settings
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

const (
	DisplayHTTP   = "http"
	DisplayWindow = "window"
)

// Default returns the configuration used for anything the file leaves out
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path:        "yolov8n.onnx",
			InputWidth:  640,
			InputHeight: 640,
			Confidence:  0.5,
			NMS:         0.45,
		},
		Camera: CameraConfig{
			Device: "0",
			Width:  640,
			Height: 480,
		},
		Stream: StreamConfig{
			FPS:                  30,
			StopTimeout:          2 * time.Second,
			MaxInferenceFailures: 5,
			Detection:            true,
			MailboxSize:          2,
		},
		Display: DisplayConfig{
			Mode:         DisplayHTTP,
			HTTPAddr:     ":8080",
			JPEGQuality:  80,
			SummaryLimit: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a YAML configuration file over the defaults
func Load(path string) (*Config, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values that can not work
func (c *Config) Validate() error {

	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}

	if c.Model.InputWidth <= 0 || c.Model.InputHeight <= 0 {
		return fmt.Errorf("model input size %dx%d must be positive",
			c.Model.InputWidth, c.Model.InputHeight)
	}

	if !(c.Model.Confidence > 0 && c.Model.Confidence < 1) {
		return fmt.Errorf("model.confidence %v must be between 0 and 1", c.Model.Confidence)
	}

	if !(c.Model.NMS > 0 && c.Model.NMS < 1) {
		return fmt.Errorf("model.nms %v must be between 0 and 1", c.Model.NMS)
	}

	if c.Model.MaxDetections < 0 {
		return fmt.Errorf("model.max_detections must not be negative")
	}

	if c.Camera.Device == "" {
		return fmt.Errorf("camera.device is required")
	}

	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("camera size %dx%d must not be negative",
			c.Camera.Width, c.Camera.Height)
	}

	if !(c.Stream.FPS > 0 && c.Stream.FPS <= 240) {
		return fmt.Errorf("stream.fps %v must be between 0 and 240", c.Stream.FPS)
	}

	if c.Stream.StopTimeout <= 0 {
		return fmt.Errorf("stream.stop_timeout must be positive")
	}

	if c.Stream.MaxInferenceFailures < 0 {
		return fmt.Errorf("stream.max_inference_failures must not be negative")
	}

	if c.Stream.MailboxSize < 1 {
		return fmt.Errorf("stream.mailbox_size must be at least 1")
	}

	switch c.Display.Mode {
	case DisplayHTTP:
		if c.Display.HTTPAddr == "" {
			return fmt.Errorf("display.http_addr is required for http mode")
		}
	case DisplayWindow:
	default:
		return fmt.Errorf("unknown display.mode %q, expected %s or %s",
			c.Display.Mode, DisplayHTTP, DisplayWindow)
	}

	if c.Display.JPEGQuality < 1 || c.Display.JPEGQuality > 100 {
		return fmt.Errorf("display.jpeg_quality %d must be between 1 and 100",
			c.Display.JPEGQuality)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}

	return nil
}

// Package detector runs a YOLOv8 model over video frames and draws the
// results back onto them.
package detector

import (
	"fmt"
	"github.com/swdee/go-yolocam"
	"github.com/swdee/go-yolocam/postprocess"
	"github.com/swdee/go-yolocam/postprocess/result"
	"github.com/swdee/go-yolocam/preprocess"
	"github.com/swdee/go-yolocam/render"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"image"
	"sync"
	"time"
)

// Timing records how long each stage of the last Detect call took
type Timing struct {
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
}

// Total returns the time taken by all stages
func (t Timing) Total() time.Duration {
	return t.Preprocess + t.Inference + t.Postprocess
}

// Detector turns frames into detections using a Runtime.  Calls are
// serialized as the preprocessing buffers are shared.
type Detector struct {
	cfg    Config
	rt     yolocam.Runtime
	packer *preprocess.Packer
	yolo   *postprocess.YOLOv8
	idGen  *result.IDGenerator
	log    *zap.SugaredLogger

	mu     sync.Mutex
	timing Timing
	closed bool
}

// New returns a Detector running inference on rt.  The Detector takes
// ownership of rt and closes it on Close.
func New(rt yolocam.Runtime, cfg Config, logger *zap.SugaredLogger) (*Detector, error) {

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	want := yolocam.Shape{1, 3, int64(cfg.InputHeight), int64(cfg.InputWidth)}

	if shape := rt.InputShape(); len(shape) > 0 && !shapeMatches(shape, want) {
		return nil, fmt.Errorf("model input shape %s does not match configured %s",
			shape, want)
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	params := postprocess.YOLOv8Params{
		BoxThreshold:    cfg.ConfThreshold,
		NMSThreshold:    cfg.NMSThreshold,
		ObjectClassNum:  len(cfg.Labels),
		MaxObjectNumber: cfg.MaxDetections,
		ClassAware:      cfg.ClassAwareNMS,
	}

	logger.Debugw("detector created", "input", want.String(),
		"classes", len(cfg.Labels), "conf", cfg.ConfThreshold, "nms", cfg.NMSThreshold)

	return &Detector{
		cfg:    cfg,
		rt:     rt,
		packer: preprocess.NewPacker(cfg.InputWidth, cfg.InputHeight, preprocess.BGR),
		yolo:   postprocess.NewYOLOv8(params),
		idGen:  result.NewIDGenerator(),
		log:    logger,
	}, nil
}

// shapeMatches compares a reported model input shape against the expected
// one, dynamic dimensions (zero or negative) match anything
func shapeMatches(got, want yolocam.Shape) bool {

	if len(got) != len(want) {
		return false
	}

	for i := range got {
		if got[i] > 0 && got[i] != want[i] {
			return false
		}
	}

	return true
}

// Config returns the settings the Detector was created with
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect finds objects in the BGR frame using the configured confidence
// threshold
func (d *Detector) Detect(img gocv.Mat) ([]result.Detection, error) {
	return d.DetectThreshold(img, d.cfg.ConfThreshold)
}

// DetectThreshold finds objects in the BGR frame keeping those scoring at
// least conf.  An empty frame gives no detections and no error, these turn up
// now and then from live cameras.
func (d *Detector) DetectThreshold(img gocv.Mat, conf float32) ([]result.Detection, error) {

	if img.Empty() || img.Cols() <= 0 || img.Rows() <= 0 {
		return []result.Detection{}, nil
	}

	return d.detect(func() (*yolocam.Tensor, preprocess.Letterbox, error) {
		return d.packer.PackMat(img)
	}, conf)
}

// DetectImage finds objects in a still image with the configured threshold.
// Scaling is done in pure Go so no Mat is needed.
func (d *Detector) DetectImage(img image.Image) ([]result.Detection, error) {

	if img.Bounds().Empty() {
		return []result.Detection{}, nil
	}

	return d.detect(func() (*yolocam.Tensor, preprocess.Letterbox, error) {
		return d.packer.PackImage(img)
	}, d.cfg.ConfThreshold)
}

// detect runs inference on the tensor produced by pack and decodes the
// output
func (d *Detector) detect(pack func() (*yolocam.Tensor, preprocess.Letterbox, error),
	conf float32) ([]result.Detection, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, &yolocam.InferenceError{Err: fmt.Errorf("detector is closed")}
	}

	var timing Timing

	start := time.Now()
	tensor, lb, err := pack()

	if err != nil {
		return nil, fmt.Errorf("error preprocessing frame: %w", err)
	}

	timing.Preprocess = time.Since(start)

	start = time.Now()
	out, err := d.rt.Inference(tensor)

	if err != nil {
		return nil, &yolocam.InferenceError{Err: err}
	}

	timing.Inference = time.Since(start)

	start = time.Now()
	cands, err := d.yolo.DetectObjects(out, lb, conf)

	if err != nil {
		return nil, &yolocam.InferenceError{Err: err}
	}

	dets := make([]result.Detection, 0, len(cands))

	for _, c := range cands {
		dets = append(dets, result.Detection{
			ID:          d.idGen.GetNext(),
			Class:       c.Class,
			Label:       yolocam.ClassName(d.cfg.Labels, c.Class),
			Probability: c.Score,
			Box: result.Box{
				X:      int(c.X),
				Y:      int(c.Y),
				Width:  int(c.Width),
				Height: int(c.Height),
			},
		})
	}

	timing.Postprocess = time.Since(start)
	d.timing = timing

	return dets, nil
}

// LastTiming returns the stage timings of the last successful Detect call
func (d *Detector) LastTiming() Timing {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timing
}

// Render draws the detections onto the frame in place
func (d *Detector) Render(img *gocv.Mat, dets []result.Detection) {

	if img.Empty() || len(dets) == 0 {
		return
	}

	render.DetectionBoxes(img, dets, d.cfg.Font, d.cfg.LineThickness)
}

// Close frees the preprocessing buffers and the Runtime, calling it more
// than once is safe
func (d *Detector) Close() error {

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true

	return multierr.Combine(d.packer.Close(), d.rt.Close())
}

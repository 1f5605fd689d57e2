package detector

import (
	"errors"
	"github.com/swdee/go-yolocam"
	"github.com/swdee/go-yolocam/postprocess/result"
	"github.com/swdee/go-yolocam/render"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"gocv.io/x/gocv"
	"image"
	"math"
	"testing"
)

// fakeRuntime returns a canned output for every inference
type fakeRuntime struct {
	shape  yolocam.Shape
	out    *yolocam.Tensor
	err    error
	calls  int
	input  *yolocam.Tensor
	closed int
}

func (f *fakeRuntime) InputShape() yolocam.Shape {
	return f.shape
}

func (f *fakeRuntime) Inference(in *yolocam.Tensor) (*yolocam.Tensor, error) {
	f.calls++
	f.input = in
	return f.out, f.err
}

func (f *fakeRuntime) Close() error {
	f.closed++
	return nil
}

// singleObject returns an output holding one class 0 object centered on the
// model input with a score of 0.9
func singleObject() *yolocam.Tensor {

	n := 2
	out := yolocam.NewEmptyTensor(yolocam.Shape{1, 84, int64(n)})

	out.Data[0] = 320     // cx
	out.Data[n] = 320     // cy
	out.Data[2*n] = 100   // w
	out.Data[3*n] = 100   // h
	out.Data[4*n] = 0.9   // class 0
	out.Data[5*n+1] = 0.3 // second anchor, class 1 below threshold

	return out
}

func newFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
}

func TestDetectSingleObject(t *testing.T) {

	rt := &fakeRuntime{shape: yolocam.Shape{1, 3, 640, 640}, out: singleObject()}

	det, err := New(rt, DefaultConfig(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	defer det.Close()

	img := newFrame()
	defer img.Close()

	dets, err := det.Detect(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)

	d := dets[0]
	test.That(t, d.Class, test.ShouldEqual, 0)
	test.That(t, d.Label, test.ShouldEqual, "person")
	test.That(t, d.Probability, test.ShouldAlmostEqual, 0.9, 1e-6)
	test.That(t, d.Box.X, test.ShouldEqual, 270)
	test.That(t, d.Box.Y, test.ShouldEqual, 190)
	test.That(t, d.Box.Width, test.ShouldEqual, 100)
	test.That(t, d.Box.Height, test.ShouldEqual, 100)
	test.That(t, d.Box.Right(), test.ShouldBeLessThanOrEqualTo, 640)
	test.That(t, d.Box.Bottom(), test.ShouldBeLessThanOrEqualTo, 480)

	test.That(t, rt.calls, test.ShouldEqual, 1)
	test.That(t, rt.input.Shape, test.ShouldResemble, yolocam.Shape{1, 3, 640, 640})

	// raising the threshold drops the object without a new detector
	dets, err = det.DetectThreshold(img, 0.95)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldBeEmpty)
}

func TestDetectImage(t *testing.T) {

	rt := &fakeRuntime{out: singleObject()}

	det, err := New(rt, DefaultConfig(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	defer det.Close()

	dets, err := det.DetectImage(image.NewRGBA(image.Rect(0, 0, 640, 480)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Label, test.ShouldEqual, "person")
	test.That(t, dets[0].Box, test.ShouldResemble, result.Box{X: 270, Y: 190, Width: 100, Height: 100})
	test.That(t, rt.input.Shape, test.ShouldResemble, yolocam.Shape{1, 3, 640, 640})

	// letterbox border is the pad gray
	test.That(t, rt.input.Data[0], test.ShouldAlmostEqual, 114.0/255, 1e-6)

	dets, err = det.DetectImage(image.NewRGBA(image.Rectangle{}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldBeEmpty)
	test.That(t, rt.calls, test.ShouldEqual, 1)
}

func TestDetectEmptyFrame(t *testing.T) {

	rt := &fakeRuntime{out: singleObject()}

	det, err := New(rt, DefaultConfig(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	defer det.Close()

	img := gocv.NewMat()
	defer img.Close()

	dets, err := det.Detect(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldNotBeNil)
	test.That(t, dets, test.ShouldBeEmpty)
	test.That(t, rt.calls, test.ShouldEqual, 0)
}

func TestDetectInferenceError(t *testing.T) {

	backendErr := errors.New("backend failure")

	tests := []struct {
		name string
		rt   *fakeRuntime
	}{
		{"runtime fault", &fakeRuntime{err: backendErr}},
		{"output shape", &fakeRuntime{out: yolocam.NewEmptyTensor(yolocam.Shape{1, 10, 5})}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			det, err := New(tc.rt, DefaultConfig(), zaptest.NewLogger(t).Sugar())
			test.That(t, err, test.ShouldBeNil)
			defer det.Close()

			img := newFrame()
			defer img.Close()

			_, err = det.Detect(img)

			var infErr *yolocam.InferenceError
			test.That(t, errors.As(err, &infErr), test.ShouldBeTrue)
		})
	}

	det, err := New(&fakeRuntime{err: backendErr}, DefaultConfig(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	defer det.Close()

	img := newFrame()
	defer img.Close()

	_, err = det.Detect(img)
	test.That(t, errors.Is(err, backendErr), test.ShouldBeTrue)
}

func TestNewValidation(t *testing.T) {

	logger := zaptest.NewLogger(t).Sugar()

	tests := []struct {
		name   string
		shape  yolocam.Shape
		modify func(*Config)
	}{
		{"zero width", nil, func(c *Config) { c.InputWidth = 0 }},
		{"conf too high", nil, func(c *Config) { c.ConfThreshold = 1 }},
		{"conf zero", nil, func(c *Config) { c.ConfThreshold = 0 }},
		{"nms negative", nil, func(c *Config) { c.NMSThreshold = -0.1 }},
		{"conf nan", nil, func(c *Config) { c.ConfThreshold = float32(math.NaN()) }},
		{"nms nan", nil, func(c *Config) { c.NMSThreshold = float32(math.NaN()) }},
		{"no labels", nil, func(c *Config) { c.Labels = nil }},
		{"negative max", nil, func(c *Config) { c.MaxDetections = -1 }},
		{"zero line", nil, func(c *Config) { c.LineThickness = 0 }},
		{"shape mismatch", yolocam.Shape{1, 3, 320, 320}, func(c *Config) {}},
		{"shape rank", yolocam.Shape{3, 640, 640}, func(c *Config) {}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)

			_, err := New(&fakeRuntime{shape: tc.shape}, cfg, logger)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	// dynamic dimensions are accepted
	det, err := New(&fakeRuntime{shape: yolocam.Shape{-1, 3, -1, -1}}, DefaultConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, det.Close(), test.ShouldBeNil)
}

func TestCustomLabels(t *testing.T) {

	cfg := DefaultConfig()
	cfg.Labels = []string{"cat", "dog"}

	n := 1
	out := yolocam.NewEmptyTensor(yolocam.Shape{1, 6, int64(n)})
	out.Data[0], out.Data[1], out.Data[2], out.Data[3] = 320, 320, 50, 50
	out.Data[5] = 0.8

	det, err := New(&fakeRuntime{out: out}, cfg, zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	defer det.Close()

	img := newFrame()
	defer img.Close()

	dets, err := det.Detect(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Label, test.ShouldEqual, "dog")
}

func TestRender(t *testing.T) {

	det, err := New(&fakeRuntime{out: singleObject()}, DefaultConfig(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	defer det.Close()

	img := newFrame()
	defer img.Close()

	dets, err := det.Detect(img)
	test.That(t, err, test.ShouldBeNil)

	det.Render(&img, dets)

	clr := render.ClassColor(0)
	px := img.GetVecbAt(240, 270)
	test.That(t, px[2], test.ShouldEqual, clr.R)

	timing := det.LastTiming()
	test.That(t, timing.Total(), test.ShouldBeGreaterThan, 0)
}

func TestClose(t *testing.T) {

	rt := &fakeRuntime{out: singleObject()}

	det, err := New(rt, DefaultConfig(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, det.Close(), test.ShouldBeNil)
	test.That(t, det.Close(), test.ShouldBeNil)
	test.That(t, rt.closed, test.ShouldEqual, 1)

	img := newFrame()
	defer img.Close()

	_, err = det.Detect(img)

	var infErr *yolocam.InferenceError
	test.That(t, errors.As(err, &infErr), test.ShouldBeTrue)
}

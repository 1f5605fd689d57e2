package postprocess

import (
	"errors"
	"github.com/swdee/go-yolocam"
	"github.com/swdee/go-yolocam/preprocess"
	"go.viam.com/test"
	"math"
	"math/rand/v2"
	"testing"
)

// anchor is a single prediction column of the raw model output
type anchor struct {
	cx, cy, w, h float32
	class        int
	score        float32
}

// makeOutput builds a [1, 4+classes, len(anchors)] tensor
func makeOutput(classes int, anchors []anchor) *yolocam.Tensor {

	n := len(anchors)
	out := yolocam.NewEmptyTensor(yolocam.Shape{1, int64(4 + classes), int64(n)})

	for i, a := range anchors {
		out.Data[i] = a.cx
		out.Data[n+i] = a.cy
		out.Data[2*n+i] = a.w
		out.Data[3*n+i] = a.h
		out.Data[(4+a.class)*n+i] = a.score
	}

	return out
}

func TestDecodeSingleObject(t *testing.T) {

	yolo := NewYOLOv8(YOLOv8COCOParams())
	lb := preprocess.NewLetterbox(640, 480, 640, 640)

	out := makeOutput(80, []anchor{
		{320, 320, 100, 100, 0, 0.9},
		{100, 100, 50, 50, 3, 0.2},
		{0, 0, 0, 0, 0, 0},
	})

	cands, err := yolo.DetectObjects(out, lb, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cands, test.ShouldHaveLength, 1)

	c := cands[0]
	test.That(t, c.Class, test.ShouldEqual, 0)
	test.That(t, c.Score, test.ShouldAlmostEqual, 0.9, 1e-6)
	test.That(t, c.X, test.ShouldAlmostEqual, 270)
	test.That(t, c.Y, test.ShouldAlmostEqual, 190)
	test.That(t, c.Width, test.ShouldAlmostEqual, 100)
	test.That(t, c.Height, test.ShouldAlmostEqual, 100)
}

func TestDecodeOverlappingPair(t *testing.T) {

	yolo := NewYOLOv8(YOLOv8COCOParams())
	lb := preprocess.NewLetterbox(640, 480, 640, 640)

	out := makeOutput(80, []anchor{
		{330, 320, 100, 100, 0, 0.6},
		{320, 320, 100, 100, 0, 0.9},
	})

	cands, err := yolo.DetectObjects(out, lb, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cands, test.ShouldHaveLength, 1)
	test.That(t, cands[0].Score, test.ShouldAlmostEqual, 0.9, 1e-6)
}

func TestDecodeClipsToFrame(t *testing.T) {

	yolo := NewYOLOv8(YOLOv8COCOParams())
	lb := preprocess.NewLetterbox(1280, 720, 640, 640)

	out := makeOutput(80, []anchor{
		// hangs off the top left corner into the padding
		{10, 100, 100, 100, 2, 0.8},
		// hangs off the bottom right corner
		{630, 530, 100, 100, 5, 0.7},
	})

	cands, err := yolo.DecodeCandidates(out, lb, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cands, test.ShouldHaveLength, 2)

	for _, c := range cands {
		test.That(t, c.X, test.ShouldBeGreaterThanOrEqualTo, 0)
		test.That(t, c.Y, test.ShouldBeGreaterThanOrEqualTo, 0)
		test.That(t, c.X+c.Width, test.ShouldBeLessThanOrEqualTo, 1280)
		test.That(t, c.Y+c.Height, test.ShouldBeLessThanOrEqualTo, 720)
	}

	test.That(t, cands[0].X, test.ShouldEqual, float32(0))
	test.That(t, cands[0].Y, test.ShouldEqual, float32(0))
}

func TestDecodeTiesPickLowestClass(t *testing.T) {

	yolo := NewYOLOv8(YOLOv8Params{BoxThreshold: 0.5, NMSThreshold: 0.45, ObjectClassNum: 3})
	lb := preprocess.NewLetterbox(640, 640, 640, 640)

	out := makeOutput(3, []anchor{{100, 100, 20, 20, 1, 0.7}})
	out.Data[(4+2)*1] = 0.7

	cands, err := yolo.DecodeCandidates(out, lb, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cands, test.ShouldHaveLength, 1)
	test.That(t, cands[0].Class, test.ShouldEqual, 1)
}

func TestDecodeSkipsNaNScores(t *testing.T) {

	yolo := NewYOLOv8(YOLOv8Params{BoxThreshold: 0.5, NMSThreshold: 0.45, ObjectClassNum: 3})
	lb := preprocess.NewLetterbox(640, 640, 640, 640)

	// class 0 is NaN, the real best score is class 2
	out := makeOutput(3, []anchor{
		{100, 100, 20, 20, 2, 0.8},
		{300, 300, 20, 20, 1, float32(math.NaN())},
	})
	out.Data[4*2] = float32(math.NaN())
	out.Data[4*2+1] = float32(math.NaN())

	cands, err := yolo.DecodeCandidates(out, lb, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cands, test.ShouldHaveLength, 1)
	test.That(t, cands[0].Class, test.ShouldEqual, 2)
	test.That(t, cands[0].Score, test.ShouldEqual, float32(0.8))
}

func TestArgmax(t *testing.T) {

	nan := float32(math.NaN())

	tests := []struct {
		name  string
		data  []float32
		idx   int
		score float32
	}{
		{"plain", []float32{0.1, 0.9, 0.3}, 1, 0.9},
		{"tie", []float32{0.4, 0.7, 0.7}, 1, 0.7},
		{"leading nan", []float32{nan, 0.2, 0.6}, 2, 0.6},
		{"trailing nan", []float32{0.3, nan}, 0, 0.3},
		{"zeros", []float32{0, 0}, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx, score := argmax(tc.data, 0, 1, len(tc.data))
			test.That(t, idx, test.ShouldEqual, tc.idx)
			test.That(t, score, test.ShouldEqual, tc.score)
		})
	}

	idx, score := argmax([]float32{nan, nan}, 0, 1, 2)
	test.That(t, idx, test.ShouldEqual, 0)
	test.That(t, score < 0.01, test.ShouldBeTrue)
}

func TestDecodeRandomOutput(t *testing.T) {

	yolo := NewYOLOv8(YOLOv8COCOParams())
	rng := rand.New(rand.NewPCG(7, 11))

	sizes := [][2]int{{640, 480}, {1920, 1080}, {480, 640}, {17, 3}}

	for _, sz := range sizes {
		lb := preprocess.NewLetterbox(sz[0], sz[1], 640, 640)
		out := yolocam.NewEmptyTensor(yolocam.Shape{1, 84, 500})

		for i := range out.Data {
			out.Data[i] = rng.Float32()
		}

		// box channels span beyond the model input
		for i := 0; i < 4*500; i++ {
			out.Data[i] = rng.Float32()*800 - 80
		}

		for _, conf := range []float32{0.25, 0.5, 0.95} {
			cands, err := yolo.DetectObjects(out, lb, conf)
			test.That(t, err, test.ShouldBeNil)

			for i, c := range cands {
				test.That(t, c.Score, test.ShouldBeGreaterThanOrEqualTo, conf)
				test.That(t, c.X, test.ShouldBeBetweenOrEqual, 0, float32(sz[0]-1))
				test.That(t, c.Y, test.ShouldBeBetweenOrEqual, 0, float32(sz[1]-1))
				test.That(t, c.X+c.Width, test.ShouldBeLessThanOrEqualTo, float32(sz[0])+1e-3)
				test.That(t, c.Y+c.Height, test.ShouldBeLessThanOrEqualTo, float32(sz[1])+1e-3)

				if i > 0 {
					test.That(t, c.Score, test.ShouldBeLessThanOrEqualTo, cands[i-1].Score)
				}
			}
		}
	}
}

func TestDecodeMaxObjects(t *testing.T) {

	params := YOLOv8COCOParams()
	params.MaxObjectNumber = 2
	yolo := NewYOLOv8(params)
	lb := preprocess.NewLetterbox(640, 640, 640, 640)

	out := makeOutput(80, []anchor{
		{50, 50, 20, 20, 0, 0.6},
		{150, 150, 20, 20, 0, 0.9},
		{250, 250, 20, 20, 0, 0.7},
	})

	cands, err := yolo.DetectObjects(out, lb, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cands, test.ShouldHaveLength, 2)
	test.That(t, cands[0].Score, test.ShouldAlmostEqual, 0.9, 1e-6)
	test.That(t, cands[1].Score, test.ShouldAlmostEqual, 0.7, 1e-6)
}

func TestDecodeEmpty(t *testing.T) {

	yolo := NewYOLOv8(YOLOv8COCOParams())
	lb := preprocess.NewLetterbox(640, 640, 640, 640)

	cands, err := yolo.DetectObjects(makeOutput(80, nil), lb, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cands, test.ShouldBeEmpty)

	cands, err = yolo.DetectObjects(makeOutput(80, []anchor{{10, 10, 5, 5, 0, 0.1}}), lb, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cands, test.ShouldBeEmpty)
}

func TestDecodeBadShape(t *testing.T) {

	yolo := NewYOLOv8(YOLOv8COCOParams())
	lb := preprocess.NewLetterbox(640, 640, 640, 640)

	tests := []struct {
		name string
		out  *yolocam.Tensor
	}{
		{"nil", nil},
		{"wrong classes", yolocam.NewEmptyTensor(yolocam.Shape{1, 85, 10})},
		{"batch of two", yolocam.NewEmptyTensor(yolocam.Shape{2, 84, 10})},
		{"two dims", yolocam.NewEmptyTensor(yolocam.Shape{84, 10})},
		{"short data", &yolocam.Tensor{Shape: yolocam.Shape{1, 84, 10}, Data: make([]float32, 10)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := yolo.DecodeCandidates(tc.out, lb, 0.5)
			test.That(t, errors.Is(err, ErrOutputShape), test.ShouldBeTrue)
		})
	}
}

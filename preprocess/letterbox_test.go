package preprocess

import (
	"go.viam.com/test"
	"testing"
)

func TestNewLetterbox(t *testing.T) {

	tests := []struct {
		name          string
		srcWidth      int
		srcHeight     int
		dstWidth      int
		dstHeight     int
		expectedXPad  int
		expectedYPad  int
		expectedScale float64
		expectedW     int
		expectedH     int
	}{
		{"landscape hd", 1280, 720, 640, 640, 0, 140, 0.50, 640, 360},
		{"portrait", 800, 1000, 640, 640, 64, 0, 0.64, 512, 640},
		{"square", 800, 800, 640, 640, 0, 0, 0.8, 640, 640},
		{"vga", 640, 480, 640, 640, 0, 80, 1, 640, 480},
		{"upscale", 320, 240, 640, 640, 0, 80, 2, 640, 480},
		{"odd padding", 1000, 999, 640, 640, 0, 0, 0.64, 640, 639},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lb := NewLetterbox(tc.srcWidth, tc.srcHeight, tc.dstWidth, tc.dstHeight)

			test.That(t, lb.XPad(), test.ShouldEqual, tc.expectedXPad)
			test.That(t, lb.YPad(), test.ShouldEqual, tc.expectedYPad)
			test.That(t, lb.ScaleFactor(), test.ShouldAlmostEqual, tc.expectedScale, 1e-6)
			test.That(t, lb.ResizeWidth(), test.ShouldEqual, tc.expectedW)
			test.That(t, lb.ResizeHeight(), test.ShouldEqual, tc.expectedH)
			test.That(t, lb.SrcWidth(), test.ShouldEqual, tc.srcWidth)
			test.That(t, lb.SrcHeight(), test.ShouldEqual, tc.srcHeight)
			test.That(t, lb.DstWidth(), test.ShouldEqual, tc.dstWidth)
			test.That(t, lb.DstHeight(), test.ShouldEqual, tc.dstHeight)
		})
	}
}

func TestLetterboxRoundTrip(t *testing.T) {

	sizes := [][2]int{{640, 480}, {1280, 720}, {800, 1000}, {333, 777}}

	for _, sz := range sizes {
		lb := NewLetterbox(sz[0], sz[1], 640, 640)

		for _, pt := range [][2]float32{{0, 0}, {10.5, 20.25}, {float32(sz[0]) / 2, float32(sz[1]) / 3}, {float32(sz[0] - 1), float32(sz[1] - 1)}} {
			nx, ny := lb.Forward(pt[0], pt[1])
			x, y := lb.Inverse(nx, ny)

			test.That(t, x, test.ShouldAlmostEqual, pt[0], 1e-3)
			test.That(t, y, test.ShouldAlmostEqual, pt[1], 1e-3)
		}
	}
}

func TestLetterboxForward(t *testing.T) {

	lb := NewLetterbox(640, 480, 640, 640)

	nx, ny := lb.Forward(100, 100)
	test.That(t, nx, test.ShouldAlmostEqual, 100)
	test.That(t, ny, test.ShouldAlmostEqual, 180)
}

func TestLetterboxInverseClamps(t *testing.T) {

	lb := NewLetterbox(640, 480, 640, 640)

	// points inside the padding map outside the frame
	x, y := lb.Inverse(-20, 10)
	test.That(t, x, test.ShouldEqual, float32(0))
	test.That(t, y, test.ShouldEqual, float32(0))

	x, y = lb.Inverse(700, 630)
	test.That(t, x, test.ShouldEqual, float32(639))
	test.That(t, y, test.ShouldEqual, float32(479))
}

package preprocess

import (
	"math"
)

// Letterbox holds the parameters used to fit a source image into the fixed
// model input size without distorting it.  The image is scaled by the same
// factor on both axes and centered with padding.
type Letterbox struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// dstWidth is the width to scale to
	dstWidth int
	// dstHeight is the height to scale to
	dstHeight int
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// NewLetterbox calculates the letterbox parameters to fit an image of
// srcWidth x srcHeight into dstWidth x dstHeight.  All dimensions must be
// positive, empty frames have to be rejected before getting here.
func NewLetterbox(srcWidth, srcHeight, dstWidth, dstHeight int) Letterbox {

	l := Letterbox{
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		dstWidth:  dstWidth,
		dstHeight: dstHeight,
	}

	scaleW := float64(dstWidth) / float64(srcWidth)
	scaleH := float64(dstHeight) / float64(srcHeight)
	scale := math.Min(scaleW, scaleH)

	l.scale = float32(scale)
	l.resizeW = min(int(math.Round(float64(srcWidth)*scale)), dstWidth)
	l.resizeH = min(int(math.Round(float64(srcHeight)*scale)), dstHeight)

	l.xPad = (dstWidth - l.resizeW) / 2  // padding width / 2
	l.yPad = (dstHeight - l.resizeH) / 2 // padding height / 2

	return l
}

// Forward maps a point in the source image into the model input space
func (l Letterbox) Forward(x, y float32) (float32, float32) {
	return x*l.scale + float32(l.xPad), y*l.scale + float32(l.yPad)
}

// Inverse maps a point in the model input space back into the source image.
// The result is clamped to the source image bounds.
func (l Letterbox) Inverse(nx, ny float32) (float32, float32) {

	x := (nx - float32(l.xPad)) / l.scale
	y := (ny - float32(l.yPad)) / l.scale

	return clampf(x, 0, float32(l.srcWidth-1)), clampf(y, 0, float32(l.srcHeight-1))
}

// ScaleFactor returns the scale factor used in letterbox resize
func (l Letterbox) ScaleFactor() float32 {
	return l.scale
}

// XPad returns the x padding used in letterbox resize
func (l Letterbox) XPad() int {
	return l.xPad
}

// YPad returns the y padding used in letterbox resize
func (l Letterbox) YPad() int {
	return l.yPad
}

// ResizeWidth returns the width of the scaled image before padding
func (l Letterbox) ResizeWidth() int {
	return l.resizeW
}

// ResizeHeight returns the height of the scaled image before padding
func (l Letterbox) ResizeHeight() int {
	return l.resizeH
}

// SrcWidth returns the width of the source image
func (l Letterbox) SrcWidth() int {
	return l.srcWidth
}

// SrcHeight returns the height of the source image
func (l Letterbox) SrcHeight() int {
	return l.srcHeight
}

// DstWidth returns the width of the model input
func (l Letterbox) DstWidth() int {
	return l.dstWidth
}

// DstHeight returns the height of the model input
func (l Letterbox) DstHeight() int {
	return l.dstHeight
}

// clampf restricts val to be within the range lo and hi
func clampf(val, lo, hi float32) float32 {

	if val < lo {
		return lo
	}

	if val > hi {
		return hi
	}

	return val
}

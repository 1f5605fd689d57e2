package preprocess

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// Resizer defines the struct used for handling letterbox resizing of frames
// with OpenCV
type Resizer struct {
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// interpolation used when scaling
	interpolation gocv.InterpolationFlags
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer() *Resizer {
	return &Resizer{
		tempMat:       gocv.NewMat(),
		interpolation: gocv.InterpolationLinear,
	}
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// LetterBoxResize resizes the input image to the dimensions needed for the input
// tensor size whilst maintaining image aspect.  Color is that used for letter
// box padding.
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, lb Letterbox,
	color color.RGBA) {

	gocv.Resize(src, &r.tempMat, image.Pt(lb.ResizeWidth(), lb.ResizeHeight()),
		0, 0, r.interpolation)

	gocv.CopyMakeBorder(r.tempMat, dest,
		lb.YPad(), lb.DstHeight()-lb.ResizeHeight()-lb.YPad(),
		lb.XPad(), lb.DstWidth()-lb.ResizeWidth()-lb.XPad(),
		gocv.BorderConstant, color)
}

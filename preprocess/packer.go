package preprocess

import (
	"fmt"
	"github.com/swdee/go-yolocam"
	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
	"image"
	"image/color"
)

// ChannelOrder is the order of the color channels of frames given to the
// Packer
type ChannelOrder int

const (
	// BGR is the order OpenCV captures frames in
	BGR ChannelOrder = 0
	// RGB is the order the network was trained with
	RGB ChannelOrder = 1
)

var (
	// PadColor is the mid gray used to fill the letterbox border
	PadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}
)

// Packer converts frames into the normalized [1, 3, H, W] float32 tensor the
// network consumes.  A Packer reuses its intermediate Mats so it must not be
// used from multiple goroutines at once.
type Packer struct {
	// width and height of the model input
	width  int
	height int
	// order of the channels in the Mats passed to PackMat
	order ChannelOrder
	// resizer performs the letterbox resize
	resizer *Resizer
	// three channel copy of the source frame when it is not already BGR/RGB
	src gocv.Mat
	// letterboxed frame in source channel order
	padded gocv.Mat
	// letterboxed frame in RGB order
	rgb gocv.Mat
}

// NewPacker returns a Packer producing tensors for a model input of
// width x height from frames in the given channel order
func NewPacker(width, height int, order ChannelOrder) *Packer {
	return &Packer{
		width:   width,
		height:  height,
		order:   order,
		resizer: NewResizer(),
		src:     gocv.NewMat(),
		padded:  gocv.NewMat(),
		rgb:     gocv.NewMat(),
	}
}

// Close frees the Mats allocated by the Packer
func (p *Packer) Close() error {

	err := p.resizer.Close()

	for _, m := range []*gocv.Mat{&p.src, &p.padded, &p.rgb} {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}

// Shape returns the shape of the tensors produced
func (p *Packer) Shape() yolocam.Shape {
	return yolocam.Shape{1, 3, int64(p.height), int64(p.width)}
}

// PackMat letterboxes the frame into the model input size and returns it as
// a tensor along with the letterbox used.  The frame is not modified.
func (p *Packer) PackMat(img gocv.Mat) (*yolocam.Tensor, Letterbox, error) {

	if img.Empty() || img.Cols() <= 0 || img.Rows() <= 0 {
		return nil, Letterbox{}, &yolocam.InvalidFrameError{
			Width:  img.Cols(),
			Height: img.Rows(),
		}
	}

	src := img

	switch img.Type() {
	case gocv.MatTypeCV8UC3:
		// already three channel
	case gocv.MatTypeCV8UC4:
		gocv.CvtColor(img, &p.src, gocv.ColorBGRAToBGR)
		src = p.src
	case gocv.MatTypeCV8UC1:
		gocv.CvtColor(img, &p.src, gocv.ColorGrayToBGR)
		src = p.src
	default:
		return nil, Letterbox{}, fmt.Errorf("unsupported frame type %d", int(img.Type()))
	}

	lb := NewLetterbox(img.Cols(), img.Rows(), p.width, p.height)

	p.resizer.LetterBoxResize(src, &p.padded, lb, PadColor)

	packed := p.padded

	if p.order == BGR {
		gocv.CvtColor(p.padded, &p.rgb, gocv.ColorBGRToRGB)
		packed = p.rgb
	}

	data, err := packed.DataPtrUint8()

	if err != nil {
		return nil, Letterbox{}, fmt.Errorf("error getting data pointer to Mat: %w", err)
	}

	return p.toTensor(data, 3), lb, nil
}

// PackImage is the PackMat equivalent for Go images, scaling is done with
// bilinear interpolation in pure Go
func (p *Packer) PackImage(img image.Image) (*yolocam.Tensor, Letterbox, error) {

	bounds := img.Bounds()

	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, Letterbox{}, &yolocam.InvalidFrameError{
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		}
	}

	lb := NewLetterbox(bounds.Dx(), bounds.Dy(), p.width, p.height)

	canvas := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(PadColor), image.Point{}, draw.Src)

	target := image.Rect(lb.XPad(), lb.YPad(),
		lb.XPad()+lb.ResizeWidth(), lb.YPad()+lb.ResizeHeight())
	draw.ApproxBiLinear.Scale(canvas, target, img, bounds, draw.Src, nil)

	return p.toTensor(canvas.Pix, 4), lb, nil
}

// toTensor writes interleaved RGB pixels into a channel first tensor, each
// sample scaled to [0, 1]
func (p *Packer) toTensor(pix []uint8, stride int) *yolocam.Tensor {

	tensor := yolocam.NewEmptyTensor(p.Shape())
	plane := p.width * p.height

	for i := 0; i < plane; i++ {
		idx := i * stride
		tensor.Data[i] = float32(pix[idx]) / 255
		tensor.Data[plane+i] = float32(pix[idx+1]) / 255
		tensor.Data[2*plane+i] = float32(pix[idx+2]) / 255
	}

	return tensor
}

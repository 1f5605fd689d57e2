package postprocess

import (
	"errors"
	"fmt"
	"github.com/swdee/go-yolocam"
	"github.com/swdee/go-yolocam/preprocess"
)

var (
	// ErrOutputShape is returned when the model output is not laid out as
	// [1, 4+classes, anchors]
	ErrOutputShape = errors.New("unexpected model output shape")
)

// YOLOv8 defines the struct for YOLOv8 model inference post processing
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// BoxThreshold is the minimum probability score required for a bounding box
	// region to be considered for processing
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept
	NMSThreshold float32
	// ObjectClassNum is the number of different object classes the Model has
	// been trained with
	ObjectClassNum int
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned, zero for no limit
	MaxObjectNumber int
	// ClassAware restricts suppression to boxes of the same class
	ClassAware bool
}

// YOLOv8COCOParams returns an instance of YOLOv8Params configured with
// default values for a Model trained on the COCO dataset featuring:
// - Object Classes: 80
// - Box Threshold: 0.5
// - NMS Threshold: 0.45
// - Maximum Object Number: unlimited
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:   0.5,
		NMSThreshold:   0.45,
		ObjectClassNum: 80,
	}
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params) *YOLOv8 {
	return &YOLOv8{
		Params: p,
	}
}

// Candidate is a decoded box in original frame coordinates that has not been
// through NMS yet
type Candidate struct {
	Rect
	Class int
	Score float32
}

// DecodeCandidates reads the raw [1, 4+classes, anchors] output into
// candidate boxes.  Each anchor column holds cx, cy, w, h in model input
// pixels followed by one score per class.  Anchors whose best class score is
// below conf are dropped, the rest are mapped back through the letterbox and
// clipped to the source frame.
func (y *YOLOv8) DecodeCandidates(out *yolocam.Tensor, lb preprocess.Letterbox,
	conf float32) ([]Candidate, error) {

	if out == nil {
		return nil, fmt.Errorf("%w: no output tensor", ErrOutputShape)
	}

	if y.Params.ObjectClassNum <= 0 {
		return nil, fmt.Errorf("%w: model has %d classes", ErrOutputShape,
			y.Params.ObjectClassNum)
	}

	rows := int64(4 + y.Params.ObjectClassNum)

	if len(out.Shape) != 3 || out.Shape[0] != 1 || out.Shape[1] != rows ||
		out.Shape[2] < 0 {
		return nil, fmt.Errorf("%w: got %s, expected [1, %d, N]",
			ErrOutputShape, out.Shape, rows)
	}

	anchors := int(out.Shape[2])

	if len(out.Data) < int(rows)*anchors {
		return nil, fmt.Errorf("%w: %d values for shape %s",
			ErrOutputShape, len(out.Data), out.Shape)
	}

	data := out.Data
	scale := lb.ScaleFactor()
	xPad := float32(lb.XPad())
	yPad := float32(lb.YPad())
	srcW := float32(lb.SrcWidth())
	srcH := float32(lb.SrcHeight())

	cands := make([]Candidate, 0)

	for i := 0; i < anchors; i++ {

		class, score := argmax(data, 4*anchors+i, anchors, y.Params.ObjectClassNum)

		// negated so NaN scores are dropped too
		if !(score >= conf) {
			continue
		}

		cx := data[i]
		cy := data[anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		x1 := clamp((cx-w/2-xPad)/scale, 0, srcW-1)
		y1 := clamp((cy-h/2-yPad)/scale, 0, srcH-1)
		bw := clamp(w/scale, 0, srcW-x1)
		bh := clamp(h/scale, 0, srcH-y1)

		cands = append(cands, Candidate{
			Rect:  Rect{X: x1, Y: y1, Width: bw, Height: bh},
			Class: class,
			Score: score,
		})
	}

	return cands, nil
}

// DetectObjects decodes the output and runs NMS over the candidates,
// returning the kept ones in descending score order
func (y *YOLOv8) DetectObjects(out *yolocam.Tensor, lb preprocess.Letterbox,
	conf float32) ([]Candidate, error) {

	cands, err := y.DecodeCandidates(out, lb, conf)

	if err != nil {
		return nil, err
	}

	if len(cands) == 0 {
		return cands, nil
	}

	boxes := make([]Rect, len(cands))
	scores := make([]float32, len(cands))
	classes := make([]int, len(cands))

	for i, c := range cands {
		boxes[i] = c.Rect
		scores[i] = c.Score
		classes[i] = c.Class
	}

	var keep []int

	if y.Params.ClassAware {
		keep = NMSByClass(boxes, scores, classes, y.Params.NMSThreshold)
	} else {
		keep = NMS(boxes, scores, y.Params.NMSThreshold)
	}

	if y.Params.MaxObjectNumber > 0 && len(keep) > y.Params.MaxObjectNumber {
		keep = keep[:y.Params.MaxObjectNumber]
	}

	group := make([]Candidate, 0, len(keep))

	for _, n := range keep {
		group = append(group, cands[n])
	}

	return group, nil
}

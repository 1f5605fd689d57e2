package postprocess

import (
	"cmp"
	"slices"
)

// Rect is an axis aligned box in corner form, X and Y are the top left
// corner
type Rect struct {
	X      float32
	Y      float32
	Width  float32
	Height float32
}

// Area returns the area of the box, boxes with a non-positive side have
// zero area
func (r Rect) Area() float32 {

	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}

	return r.Width * r.Height
}

// IoU works out the Intersection over Union of two boxes.  Zero area boxes
// overlap nothing.
func IoU(a, b Rect) float32 {

	areaA := a.Area()
	areaB := b.Area()

	if areaA == 0 || areaB == 0 {
		return 0
	}

	w := min(a.X+a.Width, b.X+b.Width) - max(a.X, b.X)
	h := min(a.Y+a.Height, b.Y+b.Height) - max(a.Y, b.Y)

	if w <= 0 || h <= 0 {
		return 0
	}

	inter := w * h
	union := areaA + areaB - inter

	if union <= 0 {
		return 0
	}

	return inter / union
}

// NMS implements class agnostic Non-Maximum Suppression.  Boxes are visited
// in descending score order (stable for equal scores) and any later box whose
// IoU with a kept box is strictly greater than threshold is suppressed.  The
// indices of the kept boxes are returned in descending score order.
func NMS(boxes []Rect, scores []float32, threshold float32) []int {
	return nms(boxes, scores, nil, threshold)
}

// NMSByClass is NMS that only lets boxes of the same class suppress each
// other
func NMSByClass(boxes []Rect, scores []float32, classes []int,
	threshold float32) []int {
	return nms(boxes, scores, classes, threshold)
}

func nms(boxes []Rect, scores []float32, classes []int, threshold float32) []int {

	order := make([]int, len(boxes))

	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	suppressed := make([]bool, len(boxes))
	keep := make([]int, 0, len(boxes))

	for i, n := range order {

		if suppressed[n] {
			continue
		}

		keep = append(keep, n)

		for _, m := range order[i+1:] {

			if suppressed[m] {
				continue
			}

			if classes != nil && classes[m] != classes[n] {
				continue
			}

			if IoU(boxes[n], boxes[m]) > threshold {
				suppressed[m] = true
			}
		}
	}

	return keep
}

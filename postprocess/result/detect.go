package result

import (
	"fmt"
	"image"
	"strings"
)

// Box is the bounding box of a detected object in original frame pixels
type Box struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Right returns the x coordinate one past the right edge of the box
func (b Box) Right() int {
	return b.X + b.Width
}

// Bottom returns the y coordinate one past the bottom edge of the box
func (b Box) Bottom() int {
	return b.Y + b.Height
}

// Rect returns the box as an image.Rectangle for drawing
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.Right(), b.Bottom())
}

// Detection defines the attributes of a single object detected
type Detection struct {
	// ID is a unique number assigned to the detection for log correlation
	ID int64
	// Class is the index into the label table the Model was trained on
	Class int
	// Label is the class name
	Label string
	// Probability is the confidence score of the object detected, 0 to 1
	Probability float32
	// Box is the location of the object in the frame
	Box Box
}

// String returns the detection in the form "person (91.2%) [x, y, w, h]"
func (d Detection) String() string {
	return fmt.Sprintf("%s (%.1f%%) [%d, %d, %d, %d]", d.Label,
		d.Probability*100, d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height)
}

// Summarize returns a short multi line text listing the detections in the
// order given, at most limit of them.  A limit of zero or less lists all.
func Summarize(dets []Detection, limit int) string {

	var sb strings.Builder

	fmt.Fprintf(&sb, "Detections (%d):", len(dets))

	if len(dets) == 0 {
		sb.WriteString("\nnone")
		return sb.String()
	}

	n := len(dets)

	if limit > 0 && n > limit {
		n = limit
	}

	for _, d := range dets[:n] {
		fmt.Fprintf(&sb, "\n* %s (%.0f%%)", d.Label, d.Probability*100)
	}

	if n < len(dets) {
		fmt.Fprintf(&sb, "\n... +%d more", len(dets)-n)
	}

	return sb.String()
}

package render

import (
	"fmt"
	"github.com/swdee/go-yolocam/postprocess/result"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// labelMargin is the gap kept between the label strip and the box top, and
// between the strip and the top of the image
const labelMargin = 5

// boxLabel holds the details of a label to draw on top of a box
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// DetectionBoxes renders a rectangle around each detected object and a
// filled label strip with the class name and confidence.  The strip sits
// above the box, or is pushed down when the box touches the top of the image.
func DetectionBoxes(img *gocv.Mat, dets []result.Detection, font Font,
	lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(dets))

	for _, det := range dets {

		useClr := ClassColor(det.Class)

		// draw rectangle around detected object
		gocv.Rectangle(img, det.Box.Rect(), useClr, lineThickness)

		text := fmt.Sprintf("%s %.2f", det.Label, det.Probability)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		boxLabels = append(boxLabels, layoutLabel(det.Box, text, textSize, useClr, font))
	}

	// labels are drawn last so neighbouring boxes don't cross them
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// layoutLabel works out where the label strip and its text go for a box
func layoutLabel(box result.Box, text string, textSize image.Point,
	clr color.RGBA, font Font) boxLabel {

	baseline := max(box.Y-labelMargin, textSize.Y+labelMargin)
	width := font.LeftPad + textSize.X + font.RightPad

	var left int

	switch font.Alignment {
	case Center:
		left = box.X + (box.Width-width)/2

	case Right:
		left = box.Right() - width

	case Left:
		fallthrough
	default:
		left = box.X
	}

	return boxLabel{
		rect: image.Rect(left, baseline-textSize.Y-font.TopPad,
			left+width, baseline+font.BottomPad),
		clr:     clr,
		text:    text,
		textPos: image.Pt(left+font.LeftPad, baseline),
	}
}

// FPS draws the frame rate in the top left corner of the image
func FPS(img *gocv.Mat, fps float64, font Font) {
	gocv.PutTextWithParams(img, fmt.Sprintf("FPS: %.1f", fps), image.Pt(10, 30),
		font.Face, font.Scale, font.Color, font.Thickness, font.LineType, false)
}

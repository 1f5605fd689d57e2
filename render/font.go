package render

import (
	"gocv.io/x/gocv"
	"image/color"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns the font used for detection labels, white Hershey
// Simplex text
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.6,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.Line8,
		LeftPad:   2,
		RightPad:  3,
		TopPad:    5,
		BottomPad: 5,
		Alignment: Left,
	}
}

// OverlayFont returns the font used for the FPS overlay
func OverlayFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     1.0,
		Color:     Green,
		Thickness: 2,
		LineType:  gocv.Line8,
		Alignment: Left,
	}
}

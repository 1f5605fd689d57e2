package render

import (
	"image/color"
	"math/rand/v2"
)

const (
	// paletteSize is the number of distinct box colors, one per COCO class
	paletteSize = 80
	// paletteSeed fixes the colors so a class keeps its color between runs
	paletteSeed = 42
)

var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}
)

// ClassColor returns the box color for the class id.  The color is derived
// from a generator seeded with the class id, every channel lies in [50, 255)
// so boxes never come out near black.  Ids wrap around the palette size.
func ClassColor(id int) color.RGBA {

	idx := id % paletteSize

	if idx < 0 {
		idx += paletteSize
	}

	rng := rand.New(rand.NewPCG(paletteSeed, uint64(idx)))

	return color.RGBA{
		R: uint8(50 + rng.IntN(205)),
		G: uint8(50 + rng.IntN(205)),
		B: uint8(50 + rng.IntN(205)),
		A: 255,
	}
}

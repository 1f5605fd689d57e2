package main

import (
	"go.viam.com/test"
	"golang.org/x/image/bmp"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeImage(t *testing.T, name string, encode func(io.Writer, image.Image) error) string {

	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	img.Set(3, 4, color.RGBA{R: 200, A: 255})

	path := filepath.Join(t.TempDir(), name)

	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()

	test.That(t, encode(f, img), test.ShouldBeNil)

	return path
}

func TestDecodeImage(t *testing.T) {

	tests := []struct {
		name   string
		encode func(io.Writer, image.Image) error
	}{
		{"frame.png", png.Encode},
		{"frame.bmp", bmp.Encode},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := decodeImage(writeImage(t, tc.name, tc.encode))
			test.That(t, err, test.ShouldBeNil)
			test.That(t, img.Bounds().Dx(), test.ShouldEqual, 32)
			test.That(t, img.Bounds().Dy(), test.ShouldEqual, 24)

			r, _, _, _ := img.At(3, 4).RGBA()
			test.That(t, r>>8, test.ShouldEqual, uint32(200))
		})
	}
}

func TestDecodeImageErrors(t *testing.T) {

	_, err := decodeImage(filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)

	path := filepath.Join(t.TempDir(), "notes.txt")
	test.That(t, os.WriteFile(path, []byte("not an image"), 0o644), test.ShouldBeNil)

	_, err = decodeImage(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "notes.txt")
}

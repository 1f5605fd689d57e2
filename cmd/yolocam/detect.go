package main

import (
	"fmt"
	"github.com/swdee/go-yolocam/postprocess/result"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// detectImages runs the detector over each image argument and prints what
// was found
func detectImages(c *cli.Context) error {

	if c.NArg() == 0 {
		return fmt.Errorf("no images given")
	}

	cfg, err := loadConfig(c)

	if err != nil {
		return err
	}

	logger, err := loggerFor(cfg)

	if err != nil {
		return err
	}

	defer logger.Sync()

	labels, err := loadLabels(cfg)

	if err != nil {
		return err
	}

	det, err := newDetector(cfg.Model.Path, cfg, labels, logger)

	if err != nil {
		return err
	}

	defer det.Close()

	var errs error

	for _, file := range c.Args().Slice() {
		img, err := decodeImage(file)

		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		dets, err := det.DetectImage(img)

		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}

		fmt.Fprintf(c.App.Writer, "%s: %s\n", file, result.Summarize(dets, 0))

		for _, d := range dets {
			fmt.Fprintf(c.App.Writer, "  %s\n", d)
		}

		logger.Debugw("image processed", "file", file,
			"time", det.LastTiming().Total())
	}

	return errs
}

// decodeImage reads a JPEG, PNG, BMP or WebP file
func decodeImage(file string) (image.Image, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening image: %w", err)
	}

	defer f.Close()

	img, _, err := image.Decode(f)

	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", file, err)
	}

	return img, nil
}

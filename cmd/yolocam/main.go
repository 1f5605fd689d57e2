// Command yolocam runs YOLOv8 object detection on a live camera feed and
// presents the annotated frames as an MJPEG stream or in a desktop window.
package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/swdee/go-yolocam"
	"github.com/swdee/go-yolocam/capture"
	"github.com/swdee/go-yolocam/config"
	"github.com/swdee/go-yolocam/detector"
	"github.com/swdee/go-yolocam/display"
	"github.com/swdee/go-yolocam/logging"
	"github.com/swdee/go-yolocam/onnx"
	"github.com/swdee/go-yolocam/stream"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

const (
	flagConfig     = "config"
	flagModel      = "model"
	flagLabels     = "labels"
	flagDevice     = "device"
	flagLoop       = "loop"
	flagFPS        = "fps"
	flagConfidence = "confidence"
	flagNMS        = "nms"
	flagCUDA       = "cuda"
	flagDisplay    = "display"
	flagAddr       = "addr"
	flagLogLevel   = "log-level"
)

func init() {
	// OpenCV windows must be driven from the main thread
	runtime.LockOSThread()
}

func main() {

	app := &cli.App{
		Name:  "yolocam",
		Usage: "detect objects in a live camera feed with a YOLOv8 model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagModel,
				Aliases: []string{"m"},
				Usage:   "ONNX model `FILE`",
			},
			&cli.StringFlag{
				Name:  flagLabels,
				Usage: "label `FILE`, one class name per line",
			},
			&cli.StringFlag{
				Name:    flagDevice,
				Aliases: []string{"d"},
				Usage:   "camera index, video file or stream URL",
			},
			&cli.BoolFlag{
				Name:  flagLoop,
				Usage: "buffer the video file and replay it as a camera",
			},
			&cli.Float64Flag{
				Name:  flagFPS,
				Usage: "target frame rate of the capture loop",
			},
			&cli.Float64Flag{
				Name:  flagConfidence,
				Usage: "minimum detection confidence",
			},
			&cli.Float64Flag{
				Name:  flagNMS,
				Usage: "non maximum suppression IoU threshold",
			},
			&cli.BoolFlag{
				Name:  flagCUDA,
				Usage: "run inference with the CUDA execution provider",
			},
			&cli.StringFlag{
				Name:  flagDisplay,
				Usage: "presentation mode, http or window",
			},
			&cli.StringFlag{
				Name:  flagAddr,
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level, debug, info, warn or error",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "detect objects in still images and print them",
				ArgsUsage: "IMAGE...",
				Action:    detectImages,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file when given and applies the flags over it
func loadConfig(c *cli.Context) (*config.Config, error) {

	cfg := config.Default()

	if path := c.String(flagConfig); path != "" {
		var err error

		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet(flagModel) {
		cfg.Model.Path = c.String(flagModel)
	}

	if c.IsSet(flagLabels) {
		cfg.Model.LabelFile = c.String(flagLabels)
	}

	if c.IsSet(flagDevice) {
		cfg.Camera.Device = c.String(flagDevice)
	}

	if c.IsSet(flagLoop) {
		cfg.Camera.Loop = c.Bool(flagLoop)
	}

	if c.IsSet(flagFPS) {
		cfg.Stream.FPS = c.Float64(flagFPS)
	}

	if c.IsSet(flagConfidence) {
		cfg.Model.Confidence = float32(c.Float64(flagConfidence))
	}

	if c.IsSet(flagNMS) {
		cfg.Model.NMS = float32(c.Float64(flagNMS))
	}

	if c.IsSet(flagCUDA) {
		cfg.Model.CUDA = c.Bool(flagCUDA)
	}

	if c.IsSet(flagDisplay) {
		cfg.Display.Mode = c.String(flagDisplay)
	}

	if c.IsSet(flagAddr) {
		cfg.Display.HTTPAddr = c.String(flagAddr)
	}

	if c.IsSet(flagLogLevel) {
		cfg.Log.Level = c.String(flagLogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func run(c *cli.Context) error {

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

	controls := stream.NewControls(cfg.Model.Confidence, cfg.Stream.Detection,
		cfg.Stream.Mirror)

	opts := stream.DefaultOptions()
	opts.ModelPath = cfg.Model.Path
	opts.TargetFPS = cfg.Stream.FPS
	opts.StopTimeout = cfg.Stream.StopTimeout
	opts.MaxInferenceFailures = cfg.Stream.MaxInferenceFailures
	opts.Controls = controls
	opts.LoadDetector = detectorLoader(cfg, labels, logger)
	opts.OpenCapture = captureOpener(cfg)

	mailbox := stream.NewMailbox(cfg.Stream.MailboxSize)
	defer mailbox.Close()

	session := stream.NewSession(opts, mailbox, logger.Named("session"))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		return err
	}

	if cfg.Display.Mode == config.DisplayWindow {
		err = runWindow(ctx, cfg, session, mailbox, logger)
	} else {
		err = runHTTP(ctx, cfg, session, mailbox, logger)
	}

	if serr := session.Stop(); serr != nil {
		logger.Warnw("error stopping session", "error", serr)
	}

	if err == nil {
		err = session.Err()
	}

	st := session.Stats()
	logger.Infow("finished", "frames", st.Frames, "dropped", mailbox.Dropped(),
		"latency_mean", st.Latency.Mean, "latency_p95", st.Latency.P95)

	return err
}

// loggerFor builds the logger from the log settings
func loggerFor(cfg *config.Config) (*zap.SugaredLogger, error) {
	return logging.New("yolocam", cfg.Log.Level, cfg.Log.JSON)
}

// loadLabels returns the label file entries or the COCO labels
func loadLabels(cfg *config.Config) ([]string, error) {

	if cfg.Model.LabelFile == "" {
		return yolocam.COCOLabels, nil
	}

	labels, err := yolocam.LoadLabels(cfg.Model.LabelFile)

	if err != nil {
		return nil, fmt.Errorf("error loading labels: %w", err)
	}

	return labels, nil
}

// newDetector loads the model at path into an ONNX Runtime session
func newDetector(path string, cfg *config.Config, labels []string,
	logger *zap.SugaredLogger) (*detector.Detector, error) {

	rt, err := onnx.NewRuntime(path, onnx.Options{
		SharedLibraryPath: cfg.Model.RuntimeLib,
		UseCUDA:           cfg.Model.CUDA,
		DeviceID:          cfg.Model.DeviceID,
		IntraOpThreads:    cfg.Model.Threads,
		Logger:            logger.Named("onnx"),
	})

	if err != nil {
		return nil, err
	}

	dcfg := detector.DefaultConfig()
	dcfg.InputWidth = cfg.Model.InputWidth
	dcfg.InputHeight = cfg.Model.InputHeight
	dcfg.ConfThreshold = cfg.Model.Confidence
	dcfg.NMSThreshold = cfg.Model.NMS
	dcfg.Labels = labels
	dcfg.MaxDetections = cfg.Model.MaxDetections
	dcfg.ClassAwareNMS = cfg.Model.ClassAwareNMS

	det, err := detector.New(rt, dcfg, logger.Named("detector"))

	if err != nil {
		rt.Close()
		return nil, &yolocam.ModelLoadError{Path: path, Err: err}
	}

	logger.Infow("model loaded", "path", path, "provider", rt.Provider(),
		"classes", len(labels))

	return det, nil
}

// detectorLoader returns the function the Session uses to load the model
func detectorLoader(cfg *config.Config, labels []string,
	logger *zap.SugaredLogger) func(string) (stream.Detector, error) {

	return func(path string) (stream.Detector, error) {

		det, err := newDetector(path, cfg, labels, logger)

		if err != nil {
			return nil, err
		}

		return det, nil
	}
}

// captureOpener returns the function the Session uses to open the source
func captureOpener(cfg *config.Config) func() (capture.Source, error) {

	return func() (capture.Source, error) {

		if cfg.Camera.Loop {
			return capture.OpenLoop(cfg.Camera.Device, cfg.Stream.FPS)
		}

		return capture.OpenDevice(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height)
	}
}

// runHTTP serves the stream until interrupted or the session ends
func runHTTP(ctx context.Context, cfg *config.Config, session *stream.Session,
	mailbox *stream.Mailbox, logger *zap.SugaredLogger) error {

	presenter := display.NewHTTP(mailbox.Updates(), display.HTTPOptions{
		JPEGQuality:  cfg.Display.JPEGQuality,
		SummaryLimit: cfg.Display.SummaryLimit,
		Stats:        session.Stats,
		Controls:     session.Controls(),
	}, logger.Named("http"))

	srv := &http.Server{
		Addr:              cfg.Display.HTTPAddr,
		Handler:           presenter.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(presenter.Close)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return presenter.Run(gctx)
	})

	g.Go(func() error {
		logger.Infow("open browser to view video", "url", "http://"+cfg.Display.HTTPAddr)

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-session.Done():
			cancel()
		}

		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err := g.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// runWindow shows frames on the main goroutine until the window is closed,
// interrupted or the session ends
func runWindow(ctx context.Context, cfg *config.Config, session *stream.Session,
	mailbox *stream.Mailbox, logger *zap.SugaredLogger) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
		case <-session.Done():
			cancel()
		}
	}()

	win := display.NewWindow("yolocam", mailbox.Updates(), cfg.Display.SummaryLimit,
		session.Controls(), logger.Named("window"))
	defer win.Close()

	win.Run(ctx)

	return nil
}

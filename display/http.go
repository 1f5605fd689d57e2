// Package display presents the rendered frames of a stream.Session, either
// as an MJPEG stream over HTTP or in an OpenCV window.
package display

import (
	"context"
	"fmt"
	"github.com/swdee/go-yolocam/postprocess/result"
	"github.com/swdee/go-yolocam/stream"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

const indexPage = `<html><head><title>yolocam</title></head>
<body><img src="/stream"/><pre id="status"></pre></body></html>
`

// HTTPOptions configure the HTTP presenter
type HTTPOptions struct {
	// JPEGQuality is the encoding quality, 1 to 100
	JPEGQuality int
	// SummaryLimit is the number of detections listed on /status
	SummaryLimit int
	// Stats reports the session counters on /status, may be nil
	Stats func() stream.Stats
	// Controls are adjusted through /controls, may be nil
	Controls *stream.Controls
}

// frame is the latest encoded frame and what was detected in it
type frame struct {
	seq  uint64
	jpeg []byte
	fps  float64
	dets []result.Detection
}

// HTTP serves the latest frame as MJPEG.  Run consumes the updates in its
// own goroutine, the handlers only ever see encoded copies.
type HTTP struct {
	updates <-chan stream.Update
	opts    HTTPOptions
	log     *zap.SugaredLogger

	mu     sync.RWMutex
	latest frame
	// notify is closed and replaced each time a new frame arrives
	notify chan struct{}

	// done is closed by Close, it ends the open /stream responses
	done      chan struct{}
	closeOnce sync.Once
}

// NewHTTP returns an HTTP presenter reading from updates
func NewHTTP(updates <-chan stream.Update, opts HTTPOptions, logger *zap.SugaredLogger) *HTTP {

	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 80
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &HTTP{
		updates: updates,
		opts:    opts,
		log:     logger,
		notify:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run encodes each update until the updates channel is closed or ctx is
// done.  The open streams are ended when it returns.
func (h *HTTP) Run(ctx context.Context) error {

	defer h.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case u, ok := <-h.updates:
			if !ok {
				return nil
			}

			h.present(u)
		}
	}
}

// present encodes the update frame and publishes it to the handlers
func (h *HTTP) present(u stream.Update) {

	defer u.Release()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, u.Frame,
		[]int{gocv.IMWriteJpegQuality, h.opts.JPEGQuality})

	if err != nil {
		h.log.Warnw("error encoding frame", "seq", u.Seq, "error", err)
		return
	}

	jpeg := buf.GetBytes()
	buf.Close()

	h.mu.Lock()
	h.latest = frame{
		seq:  u.Seq,
		jpeg: jpeg,
		fps:  u.FPS,
		dets: u.Detections,
	}
	close(h.notify)
	h.notify = make(chan struct{})
	h.mu.Unlock()
}

// Close ends the open /stream responses, it is safe to call more than once.
// Register it with http.Server.RegisterOnShutdown as Shutdown does not
// interrupt streaming handlers.
func (h *HTTP) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// snapshot returns the latest frame and the channel signalling the next
func (h *HTTP) snapshot() (frame, <-chan struct{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.notify
}

// Handler returns the HTTP handler serving /, /stream and /status
func (h *HTTP) Handler() http.Handler {

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.index)
	mux.HandleFunc("/stream", h.Stream)
	mux.HandleFunc("/status", h.Status)
	mux.HandleFunc("/controls", h.Controls)

	return mux
}

func (h *HTTP) index(w http.ResponseWriter, r *http.Request) {

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, indexPage)
}

// Stream is the HTTP handler function used to stream video frames to browser
func (h *HTTP) Stream(w http.ResponseWriter, r *http.Request) {

	h.log.Debugw("client connected", "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	flusher, _ := w.(http.Flusher)
	sent := uint64(0)

	for {
		latest, next := h.snapshot()

		if latest.seq != sent && latest.jpeg != nil {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
				len(latest.jpeg))

			if _, err := w.Write(latest.jpeg); err != nil {
				h.log.Debugw("client write failed", "remote", r.RemoteAddr, "error", err)
				return
			}

			w.Write([]byte("\r\n"))

			if flusher != nil {
				flusher.Flush()
			}

			sent = latest.seq
		}

		select {
		case <-r.Context().Done():
			h.log.Debugw("client disconnected", "remote", r.RemoteAddr)
			return
		case <-h.done:
			return
		case <-next:
		}
	}
}

// Status reports the frame rate and the detections of the latest frame as
// plain text
func (h *HTTP) Status(w http.ResponseWriter, r *http.Request) {

	latest, _ := h.snapshot()

	var sb strings.Builder

	fmt.Fprintf(&sb, "FPS: %.1f\n", latest.fps)
	fmt.Fprintf(&sb, "Frame: %d\n", latest.seq)

	if h.opts.Stats != nil {
		st := h.opts.Stats()
		fmt.Fprintf(&sb, "State: %s\n", st.State)
		fmt.Fprintf(&sb, "Latency: mean %s p95 %s\n", st.Latency.Mean, st.Latency.P95)
	}

	sb.WriteString(result.Summarize(latest.dets, h.opts.SummaryLimit))
	sb.WriteString("\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, sb.String())
}

// Controls reports the live settings, a POST with any of the form values
// confidence, detection or mirror changes them first
func (h *HTTP) Controls(w http.ResponseWriter, r *http.Request) {

	c := h.opts.Controls

	if c == nil {
		http.Error(w, "controls not available", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if err := applyControls(c, r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "confidence: %.2f\ndetection: %t\nmirror: %t\n",
		c.Confidence(), c.Detection(), c.Mirror())
}

// applyControls validates every submitted value before changing any
func applyControls(c *stream.Controls, r *http.Request) error {

	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("invalid form: %w", err)
	}

	var (
		conf              float64
		detection, mirror bool
		err               error
	)

	setConf := r.Form.Has("confidence")
	setDetection := r.Form.Has("detection")
	setMirror := r.Form.Has("mirror")

	if setConf {
		if conf, err = strconv.ParseFloat(r.Form.Get("confidence"), 32); err != nil {
			return fmt.Errorf("invalid confidence: %w", err)
		}

		if !(conf > 0 && conf < 1) {
			return fmt.Errorf("confidence %v must be between 0 and 1", conf)
		}
	}

	if setDetection {
		if detection, err = strconv.ParseBool(r.Form.Get("detection")); err != nil {
			return fmt.Errorf("invalid detection: %w", err)
		}
	}

	if setMirror {
		if mirror, err = strconv.ParseBool(r.Form.Get("mirror")); err != nil {
			return fmt.Errorf("invalid mirror: %w", err)
		}
	}

	if setConf {
		if err := c.SetConfidence(float32(conf)); err != nil {
			return err
		}
	}

	if setDetection {
		c.SetDetection(detection)
	}

	if setMirror {
		c.SetMirror(mirror)
	}

	return nil
}

package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// GstConfig configures the GStreamer V4L2 provider
type GstConfig struct {
	// RearDevice is the V4L2 path for the environment-facing tier
	// (e.g. /dev/video0). Empty disables the tier.
	RearDevice string
	// FrontDevice is the V4L2 path for the user-facing tier. Empty
	// disables the tier.
	FrontDevice string
}

// GstProvider opens V4L2 capture devices through a GStreamer pipeline.
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGB) → appsink
//
// v4l2src has static pads, so elements are linked at creation time.
type GstProvider struct {
	cfg GstConfig
}

// NewGstProvider creates a provider with fail-fast GStreamer validation
func NewGstProvider(cfg GstConfig) (*GstProvider, error) {
	if cfg.RearDevice == "" && cfg.FrontDevice == "" {
		return nil, fmt.Errorf("camera: at least one V4L2 device path is required")
	}
	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("camera: GStreamer not available: %w", err)
	}
	return &GstProvider{cfg: cfg}, nil
}

// Open implements Provider.Open
func (p *GstProvider) Open(ctx context.Context, facing Facing, res Resolution) (Device, error) {
	var path string
	switch facing {
	case FacingEnvironment:
		path = p.cfg.RearDevice
	case FacingUser:
		path = p.cfg.FrontDevice
	}
	if path == "" {
		return nil, fmt.Errorf("camera: no V4L2 device configured for %s facing", facing)
	}

	width, height := res.Dimensions()

	elements, err := createV4L2Pipeline(path, width, height)
	if err != nil {
		return nil, fmt.Errorf("camera: failed to create pipeline for %s: %w", path, err)
	}

	d := &gstDevice{
		facing:   facing,
		width:    width,
		height:   height,
		frames:   make(chan Frame, 10),
		ready:    make(chan struct{}),
		elements: elements,
	}

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: d.onNewSample,
	})

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		_ = elements.Pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("camera: failed to start pipeline for %s: %w", path, err)
	}

	// Wait briefly for the pipeline to reach PLAYING; readiness itself is
	// signalled by the first sample (see onNewSample).
	bus := elements.Pipeline.GetPipelineBus()
	if msg := bus.TimedPop(3 * time.Second); msg != nil && msg.Type() == gst.MessageError {
		gerr := msg.ParseError()
		_ = elements.Pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("camera: pipeline error on %s: %s", path, gerr.Error())
	}

	slog.Info("camera: v4l2 device opened",
		"device", path,
		"facing", facing.String(),
		"resolution", fmt.Sprintf("%dx%d", width, height),
	)

	return d, nil
}

type gstElements struct {
	Pipeline *gst.Pipeline
	AppSink  *app.Sink
}

// createV4L2Pipeline builds the capture pipeline in the NULL state.
// Caller starts it with SetState(gst.StatePlaying).
func createV4L2Pipeline(devicePath string, width, height int) (*gstElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("failed to create v4l2src: %w", err)
	}
	src.SetProperty("device", devicePath)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsStr := fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", width, height)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (live preview)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames

	pipeline.AddMany(src, converter, scaler, capsfilter, appsink.Element)

	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	return &gstElements{Pipeline: pipeline, AppSink: appsink}, nil
}

type gstDevice struct {
	facing Facing
	width  int
	height int

	frames chan Frame
	ready  chan struct{}

	elements *gstElements

	seq          uint64
	readyOnce    sync.Once
	released     atomic.Bool
	framesClosed atomic.Bool
}

func (d *gstDevice) Facing() Facing         { return d.facing }
func (d *gstDevice) Frames() <-chan Frame   { return d.frames }
func (d *gstDevice) Ready() <-chan struct{} { return d.ready }
func (d *gstDevice) Resolution() (int, int) { return d.width, d.height }

// Release stops the pipeline and closes the frame channel. Idempotent.
func (d *gstDevice) Release() error {
	if !d.released.CompareAndSwap(false, true) {
		return nil
	}

	if err := d.elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("camera: failed to stop pipeline: %w", err)
	}

	if d.framesClosed.CompareAndSwap(false, true) {
		close(d.frames)
	}

	slog.Debug("camera: v4l2 device released", "facing", d.facing.String())
	return nil
}

// onNewSample is called by GStreamer when a new preview frame is available.
// The first sample closes the ready channel: at that point the stream format
// has been negotiated and frames are flowing.
func (d *gstDevice) onNewSample(sink *app.Sink) gst.FlowReturn {
	if d.released.Load() {
		return gst.FlowEOS
	}

	sample := sink.PullSample()
	if sample == nil {
		// A single corrupted frame should not kill the pipeline
		slog.Warn("camera: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("camera: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("camera: empty buffer received")
		return gst.FlowOK
	}

	// Copy frame data (GStreamer will reuse the buffer)
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	d.readyOnce.Do(func() { close(d.ready) })

	frame := Frame{
		Seq:       atomic.AddUint64(&d.seq, 1),
		Timestamp: time.Now(),
		Width:     d.width,
		Height:    d.height,
		Data:      frameData,
	}

	select {
	case d.frames <- frame:
	default:
		// Channel full: preview frames are disposable, drop rather than queue
	}

	return gst.FlowOK
}

// checkGStreamerAvailable verifies GStreamer is installed and usable.
// Fail-fast validation run at provider construction time.
func checkGStreamerAvailable() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)

	return nil
}

package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
)

const (
	// DefaultSettleDelay is the minimum wait after the device reports
	// readiness before a fallback-path grab, avoiding black/partial frames.
	DefaultSettleDelay = 500 * time.Millisecond
	// DefaultMetadataTimeout bounds the wait for device readiness.
	DefaultMetadataTimeout = 5 * time.Second
	// stillQuality is the fixed JPEG encoding quality for captured pages.
	stillQuality = 90
)

// ErrCaptureInFlight is returned when a capture is requested while another
// capture on the same unit is still pending. Calls are rejected, not queued.
var ErrCaptureInFlight = errors.New("camera: capture already in flight")

// FrameCapture turns a held device into one encoded still image per call.
//
// A capture outcome is terminal for that invocation: no silent retries. The
// caller decides whether to prompt the operator again.
type FrameCapture struct {
	clk             clock.Clock
	settle          time.Duration
	metadataTimeout time.Duration

	inFlight atomic.Bool
}

// NewFrameCapture creates a capture unit. Zero durations select the defaults
// (500ms settle, 5s metadata timeout); a nil clock selects the wall clock.
func NewFrameCapture(clk clock.Clock, settle, metadataTimeout time.Duration) *FrameCapture {
	if clk == nil {
		clk = clock.WallClock
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if metadataTimeout <= 0 {
		metadataTimeout = DefaultMetadataTimeout
	}
	return &FrameCapture{
		clk:             clk,
		settle:          settle,
		metadataTimeout: metadataTimeout,
	}
}

// Capture produces one encoded still from the device.
//
// Primary path: the device's still-capture primitive, when implemented.
// Fallback path: wait for readiness (metadata timeout), settle, grab one
// preview frame, encode JPEG at fixed quality.
//
// Returns ErrCaptureInFlight if another capture is pending.
func (f *FrameCapture) Capture(ctx context.Context, dev Device) ([]byte, error) {
	if dev == nil {
		return nil, fmt.Errorf("camera: no device held")
	}
	if !f.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCaptureInFlight
	}
	defer f.inFlight.Store(false)

	if sc, ok := dev.(StillCapturer); ok {
		data, err := sc.CaptureStill(ctx)
		if err == nil {
			slog.Debug("camera: still captured via primitive", "size_bytes", len(data))
			return data, nil
		}
		slog.Warn("camera: still-capture primitive failed, using preview fallback",
			"error", err,
		)
	}

	return f.grabPreviewFrame(ctx, dev)
}

// grabPreviewFrame implements the fallback path: readiness wait, settle
// delay, single frame grab, JPEG encode.
func (f *FrameCapture) grabPreviewFrame(ctx context.Context, dev Device) ([]byte, error) {
	// Wait for the device to report stream metadata (hard timeout). The
	// timer is only armed when readiness is still outstanding, and stopped
	// as soon as it is satisfied, so no timer outlives this wait.
	select {
	case <-dev.Ready():
	default:
		timeout := f.clk.NewTimer(f.metadataTimeout)
		select {
		case <-dev.Ready():
			timeout.Stop()
		case <-timeout.Chan():
			return nil, fmt.Errorf("camera: device metadata not ready after %s", f.metadataTimeout)
		case <-ctx.Done():
			timeout.Stop()
			return nil, ctx.Err()
		}
	}

	// Settle: the first frames after playback starts may be black or partial
	settle := f.clk.NewTimer(f.settle)
	select {
	case <-settle.Chan():
	case <-ctx.Done():
		settle.Stop()
		return nil, ctx.Err()
	}

	grab := f.clk.NewTimer(f.metadataTimeout)
	defer grab.Stop()
	select {
	case frame, ok := <-dev.Frames():
		if !ok {
			return nil, fmt.Errorf("camera: device stream closed during capture")
		}
		return f.encodeStill(frame, dev)
	case <-grab.Chan():
		return nil, fmt.Errorf("camera: no preview frame within %s", f.metadataTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// encodeStill converts a raw RGB frame to JPEG at the fixed quality.
// Frame dimensions win; the device's negotiated resolution is the fallback,
// then the 720p default.
func (f *FrameCapture) encodeStill(frame Frame, dev Device) ([]byte, error) {
	width, height := frame.Width, frame.Height
	if width <= 0 || height <= 0 {
		width, height = dev.Resolution()
	}
	if width <= 0 || height <= 0 {
		width, height = Res720p.Dimensions()
	}

	if len(frame.Data) < width*height*3 {
		return nil, fmt.Errorf("camera: short frame: got %d bytes, need %d for %dx%d RGB",
			len(frame.Data), width*height*3, width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = frame.Data[i*3+0] // R
		img.Pix[i*4+1] = frame.Data[i*3+1] // G
		img.Pix[i*4+2] = frame.Data[i*3+2] // B
		img.Pix[i*4+3] = 255               // A (opaque)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: stillQuality}); err != nil {
		return nil, fmt.Errorf("camera: jpeg encode failed: %w", err)
	}

	slog.Debug("camera: preview frame encoded",
		"seq", frame.Seq,
		"resolution", fmt.Sprintf("%dx%d", width, height),
		"size_bytes", buf.Len(),
	)

	return buf.Bytes(), nil
}

package camera

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

// stillDevice implements the still-capture primitive on top of fakeDevice
type stillDevice struct {
	*fakeDevice
	still    []byte
	stillErr error
	block    chan struct{} // when set, CaptureStill blocks until closed
	calls    atomic.Int32
}

func (d *stillDevice) CaptureStill(ctx context.Context) ([]byte, error) {
	d.calls.Add(1)
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.stillErr != nil {
		return nil, d.stillErr
	}
	return d.still, nil
}

func rgbFrame(width, height int) Frame {
	data := make([]byte, width*height*3)
	for i := range data {
		data[i] = 0x42
	}
	return Frame{Seq: 1, Timestamp: time.Now(), Width: width, Height: height, Data: data}
}

// TestCapturePrefersStillPrimitive verifies the primitive short-circuits
// the preview path entirely.
func TestCapturePrefersStillPrimitive(t *testing.T) {
	dev := &stillDevice{
		fakeDevice: newFakeDevice(FacingEnvironment),
		still:      []byte("encoded-still"),
	}

	fc := NewFrameCapture(nil, time.Millisecond, time.Second)
	data, err := fc.Capture(context.Background(), dev)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if !bytes.Equal(data, dev.still) {
		t.Errorf("expected primitive output, got %d bytes", len(data))
	}
	if got := dev.calls.Load(); got != 1 {
		t.Errorf("expected 1 primitive call, got %d", got)
	}
}

// TestCaptureFallsBackOnPrimitiveFailure verifies a failing primitive
// degrades to the preview grab instead of failing the capture.
func TestCaptureFallsBackOnPrimitiveFailure(t *testing.T) {
	dev := &stillDevice{
		fakeDevice: newFakeDevice(FacingEnvironment),
		stillErr:   errors.New("primitive unsupported by driver"),
	}
	dev.frames <- rgbFrame(8, 6)

	fc := NewFrameCapture(nil, time.Millisecond, time.Second)
	data, err := fc.Capture(context.Background(), dev)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	// JPEG SOI marker
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("expected JPEG output, got % x...", data[:min(len(data), 4)])
	}
}

// TestPreviewFallbackEncodesJPEG verifies the plain preview path produces
// a JPEG from raw RGB frames.
func TestPreviewFallbackEncodesJPEG(t *testing.T) {
	dev := newFakeDevice(FacingUser)
	dev.frames <- rgbFrame(8, 6)

	fc := NewFrameCapture(nil, time.Millisecond, time.Second)
	data, err := fc.Capture(context.Background(), dev)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("expected JPEG output, got % x...", data[:min(len(data), 4)])
	}
}

// TestCaptureMetadataTimeout verifies a device that never reports readiness
// fails after the metadata timeout, not the capture caller's patience.
func TestCaptureMetadataTimeout(t *testing.T) {
	dev := newFakeDevice(FacingEnvironment)
	dev.ready = make(chan struct{}) // never closed

	clk := testclock.NewClock(time.Now())
	fc := NewFrameCapture(clk, 500*time.Millisecond, 5*time.Second)

	errCh := make(chan error, 1)
	go func() {
		_, err := fc.Capture(context.Background(), dev)
		errCh <- err
	}()

	// One waiter: the metadata timeout timer
	if err := clk.WaitAdvance(5*time.Second, time.Second, 1); err != nil {
		t.Fatalf("clock advance failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected metadata timeout error")
		}
	case <-time.After(time.Second):
		t.Fatal("capture did not return after the timeout fired")
	}
}

// TestCaptureSettleBeforeGrab verifies the grab waits out the settle delay
// after readiness.
func TestCaptureSettleBeforeGrab(t *testing.T) {
	dev := newFakeDevice(FacingEnvironment)
	dev.frames <- rgbFrame(8, 6)

	clk := testclock.NewClock(time.Now())
	fc := NewFrameCapture(clk, 500*time.Millisecond, 5*time.Second)

	type result struct {
		data []byte
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		data, err := fc.Capture(context.Background(), dev)
		resCh <- result{data, err}
	}()

	// Readiness is immediate (closed channel); the capture must now be
	// parked on the settle timer, not grabbing early
	if err := clk.WaitAdvance(499*time.Millisecond, time.Second, 1); err != nil {
		t.Fatalf("clock advance failed: %v", err)
	}
	select {
	case r := <-resCh:
		t.Fatalf("capture finished before the settle elapsed: %v", r.err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := clk.WaitAdvance(time.Millisecond, time.Second, 1); err != nil {
		t.Fatalf("clock advance failed: %v", err)
	}

	select {
	case r := <-resCh:
		if r.err != nil {
			t.Fatalf("Capture failed: %v", r.err)
		}
		if len(r.data) == 0 {
			t.Error("expected encoded frame")
		}
	case <-time.After(time.Second):
		t.Fatal("capture did not finish after the settle elapsed")
	}
}

// TestCaptureRejectsConcurrent verifies the in-flight guard rejects a
// second capture instead of queueing it.
func TestCaptureRejectsConcurrent(t *testing.T) {
	release := make(chan struct{})
	dev := &stillDevice{
		fakeDevice: newFakeDevice(FacingEnvironment),
		still:      []byte("x"),
		block:      release,
	}

	fc := NewFrameCapture(nil, time.Millisecond, time.Second)

	firstDone := make(chan error, 1)
	go func() {
		_, err := fc.Capture(context.Background(), dev)
		firstDone <- err
	}()

	// Wait until the first capture is inside the primitive
	deadline := time.After(time.Second)
	for dev.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first capture never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := fc.Capture(context.Background(), dev); !errors.Is(err, ErrCaptureInFlight) {
		t.Errorf("expected ErrCaptureInFlight, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first capture failed: %v", err)
	}

	// Guard must clear once the first capture completes
	if _, err := fc.Capture(context.Background(), dev); err != nil {
		t.Errorf("capture after completion failed: %v", err)
	}
}

// TestCaptureNilDevice verifies capture without a held device fails fast.
func TestCaptureNilDevice(t *testing.T) {
	fc := NewFrameCapture(nil, time.Millisecond, time.Second)
	if _, err := fc.Capture(context.Background(), nil); err == nil {
		t.Error("expected error for nil device")
	}
}

// TestEncodeStillShortFrame verifies truncated frame data is rejected
// rather than read out of bounds.
func TestEncodeStillShortFrame(t *testing.T) {
	dev := newFakeDevice(FacingEnvironment)
	frame := rgbFrame(8, 6)
	frame.Data = frame.Data[:10]
	dev.frames <- frame

	fc := NewFrameCapture(nil, time.Millisecond, time.Second)
	if _, err := fc.Capture(context.Background(), dev); err == nil {
		t.Error("expected error for short frame data")
	}
}

package camera

import (
	"context"
	"time"
)

// Facing identifies which way a capture device points
type Facing int

const (
	// FacingEnvironment is the rear, document-facing device (preferred tier)
	FacingEnvironment Facing = iota
	// FacingUser is the front-facing device (fallback tier)
	FacingUser
)

// String returns a human-readable facing name
func (f Facing) String() string {
	switch f {
	case FacingEnvironment:
		return "environment"
	case FacingUser:
		return "user"
	default:
		return "unknown"
	}
}

// Resolution represents supported capture resolutions
type Resolution int

const (
	// Res512p represents 910x512 resolution
	Res512p Resolution = iota
	// Res720p represents 1280x720 resolution (preferred for page capture)
	Res720p
	// Res1080p represents 1920x1080 resolution
	Res1080p
)

// Dimensions returns the width and height for the resolution
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Res512p:
		return 910, 512
	case Res1080p:
		return 1920, 1080
	default:
		// Safe default: 720p
		return 1280, 720
	}
}

// ParseResolution maps a config string to a Resolution, defaulting to 720p
func ParseResolution(s string) Resolution {
	switch s {
	case "512p":
		return Res512p
	case "1080p":
		return Res1080p
	default:
		return Res720p
	}
}

// Frame is one raw preview frame delivered by a device
type Frame struct {
	// Seq is the monotonic sequence number within the device's stream
	Seq uint64
	// Timestamp is when the frame was produced
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains interleaved RGB bytes (Width x Height x 3)
	Data []byte
}

// Device is a live capture device handle.
//
// Implementations must guarantee:
//   - Frames() delivers preview frames until Release()
//   - Ready() is closed once the device has negotiated its stream (the
//     "metadata loaded" point); it may already be closed at Open time
//   - Release() stops the underlying stream, is idempotent, and is safe to
//     call concurrently with Frames() consumers
type Device interface {
	// Facing reports which tier this device came from.
	Facing() Facing
	// Frames returns the preview frame channel.
	Frames() <-chan Frame
	// Ready is closed when the device has reported its stream metadata.
	Ready() <-chan struct{}
	// Resolution returns the negotiated resolution, or (0, 0) if unknown.
	Resolution() (width, height int)
	// Release stops the device. Idempotent.
	Release() error
}

// StillCapturer is the optional still-capture primitive. Devices that can
// produce an encoded still directly implement it; FrameCapture prefers this
// path and falls back to grabbing a preview frame when it is absent or fails.
type StillCapturer interface {
	CaptureStill(ctx context.Context) ([]byte, error)
}

// Provider opens capture devices for a requested facing.
type Provider interface {
	// Open acquires the device for the given facing at the preferred
	// resolution. The resolution is a preference, not a demand: providers
	// may negotiate a different one and report it via Device.Resolution.
	Open(ctx context.Context, facing Facing, res Resolution) (Device, error)
}

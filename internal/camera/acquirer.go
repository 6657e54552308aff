package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoDevice is returned by acquisition when both tiers fail.
// Wrapped errors carry the per-tier reasons.
var ErrNoDevice = errors.New("camera: no capture device available")

// Acquirer owns the single live device handle for a session.
//
// Acquisition order is fixed: environment-facing first, then user-facing,
// both at the preferred resolution. Any held handle is released before a new
// attempt, so two live handles never coexist.
type Acquirer struct {
	provider  Provider
	preferred Resolution

	mu     sync.Mutex
	device Device
}

// NewAcquirer creates an acquirer with fail-fast validation
func NewAcquirer(provider Provider, preferred Resolution) (*Acquirer, error) {
	if provider == nil {
		return nil, fmt.Errorf("camera: provider is required")
	}
	return &Acquirer{provider: provider, preferred: preferred}, nil
}

// Acquire opens a device through the fallback chain.
//
// Returns the held device on success. On failure both tier errors are
// reported, wrapped around ErrNoDevice; the caller decides whether to retry
// or degrade to file import.
func (a *Acquirer) Acquire(ctx context.Context) (Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// No two live handles at once
	a.releaseLocked()

	var tierErrs []error
	for _, facing := range []Facing{FacingEnvironment, FacingUser} {
		dev, err := a.provider.Open(ctx, facing, a.preferred)
		if err == nil {
			w, h := a.preferred.Dimensions()
			slog.Info("camera: device acquired",
				"facing", facing.String(),
				"preferred_resolution", fmt.Sprintf("%dx%d", w, h),
			)
			a.device = dev
			return dev, nil
		}
		slog.Warn("camera: tier failed",
			"facing", facing.String(),
			"error", err,
		)
		tierErrs = append(tierErrs, fmt.Errorf("%s: %w", facing, err))
	}

	return nil, fmt.Errorf("%w: %w", ErrNoDevice, errors.Join(tierErrs...))
}

// Device returns the currently held device, or nil when none is held
func (a *Acquirer) Device() Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device
}

// Release stops and forgets the held device. Idempotent; safe to call when
// no device is held.
func (a *Acquirer) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked()
}

// Retry is Release followed by Acquire
func (a *Acquirer) Retry(ctx context.Context) (Device, error) {
	a.Release()
	return a.Acquire(ctx)
}

func (a *Acquirer) releaseLocked() {
	if a.device == nil {
		return
	}
	if err := a.device.Release(); err != nil {
		slog.Warn("camera: device release failed", "error", err)
	}
	a.device = nil
}

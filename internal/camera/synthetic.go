package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SyntheticConfig configures the synthetic provider
type SyntheticConfig struct {
	// Width and Height of generated frames (default 1280x720)
	Width  int
	Height int
	// FPS of the generated preview stream (default 5)
	FPS int
	// ReadyDelay delays the Ready() signal, simulating slow metadata
	// negotiation. Zero means ready at open.
	ReadyDelay time.Duration
	// Fail maps a facing to an open error, simulating a missing or busy
	// device on that tier.
	Fail map[Facing]error
}

// SyntheticProvider generates deterministic frames without hardware.
// Used by tests, the benchsim example, and benches without cameras.
type SyntheticProvider struct {
	cfg SyntheticConfig
}

// NewSyntheticProvider creates a synthetic provider with defaults filled
func NewSyntheticProvider(cfg SyntheticConfig) *SyntheticProvider {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = Res720p.Dimensions()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 5
	}
	return &SyntheticProvider{cfg: cfg}
}

// Open implements Provider.Open
func (p *SyntheticProvider) Open(ctx context.Context, facing Facing, res Resolution) (Device, error) {
	if err := p.cfg.Fail[facing]; err != nil {
		return nil, fmt.Errorf("synthetic %s device: %w", facing, err)
	}

	d := &syntheticDevice{
		facing: facing,
		width:  p.cfg.Width,
		height: p.cfg.Height,
		frames: make(chan Frame, 10),
		ready:  make(chan struct{}),
		stop:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.generate(p.cfg.FPS, p.cfg.ReadyDelay)

	slog.Debug("camera: synthetic device opened",
		"facing", facing.String(),
		"resolution", fmt.Sprintf("%dx%d", p.cfg.Width, p.cfg.Height),
		"fps", p.cfg.FPS,
	)

	return d, nil
}

type syntheticDevice struct {
	facing Facing
	width  int
	height int

	frames chan Frame
	ready  chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup

	releaseOnce sync.Once
	seq         uint64
}

func (d *syntheticDevice) Facing() Facing          { return d.facing }
func (d *syntheticDevice) Frames() <-chan Frame    { return d.frames }
func (d *syntheticDevice) Ready() <-chan struct{}  { return d.ready }
func (d *syntheticDevice) Resolution() (int, int)  { return d.width, d.height }

// Release stops frame generation. Idempotent.
func (d *syntheticDevice) Release() error {
	d.releaseOnce.Do(func() {
		close(d.stop)
		d.wg.Wait()
		close(d.frames)
	})
	return nil
}

// generate emits a flat gray test pattern at the configured rate.
// Frames are dropped, never queued, when the consumer is slow.
func (d *syntheticDevice) generate(fps int, readyDelay time.Duration) {
	defer d.wg.Done()

	if readyDelay > 0 {
		select {
		case <-time.After(readyDelay):
		case <-d.stop:
			return
		}
	}
	close(d.ready)

	data := make([]byte, d.width*d.height*3)
	for i := range data {
		data[i] = 0x80
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.seq++
			frame := Frame{
				Seq:       d.seq,
				Timestamp: time.Now(),
				Width:     d.width,
				Height:    d.height,
				Data:      data,
			}
			select {
			case d.frames <- frame:
			default:
				// Consumer busy; preview frames are disposable
			}
		}
	}
}

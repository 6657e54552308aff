// Package core wires the capture session controller to its collaborators
// and runs the daemon lifecycle.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/visiona/scandesk/internal/camera"
	"github.com/visiona/scandesk/internal/config"
	"github.com/visiona/scandesk/internal/control"
	"github.com/visiona/scandesk/internal/emitter"
	"github.com/visiona/scandesk/internal/pdf"
	"github.com/visiona/scandesk/internal/roster"
	"github.com/visiona/scandesk/internal/session"
	"github.com/visiona/scandesk/internal/types"
)

// Scandesk is the main service orchestrator
type Scandesk struct {
	cfg *config.Config

	// Core components
	provider       camera.Provider
	acquirer       *camera.Acquirer
	captureUnit    *camera.FrameCapture
	rosterProvider roster.Provider
	uploader       session.Uploader
	pdfClient      *pdf.Client
	session        *session.Session
	emitter        *emitter.MQTTEmitter
	controlHandler *control.Handler

	// Lifecycle management
	started   time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	runCtx    context.Context
	cancelCtx context.CancelFunc // For MQTT shutdown command

	// Latest roster snapshot, refreshed on select_student
	students []roster.Student
}

// NewScandesk creates a new service instance
func NewScandesk(configPath string) (*Scandesk, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"bench_id", cfg.BenchID,
	)

	s := &Scandesk{
		cfg:     cfg,
		emitter: emitter.NewMQTTEmitter(cfg),
	}

	if err := s.initializeComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return s, nil
}

// initializeComponents builds the camera chain and external clients
func (s *Scandesk) initializeComponents() error {
	// Camera provider: GStreamer/V4L2 when devices are configured,
	// synthetic otherwise (development without hardware)
	if s.cfg.Camera.RearDevice != "" || s.cfg.Camera.FrontDevice != "" {
		gstProvider, err := camera.NewGstProvider(camera.GstConfig{
			RearDevice:  s.cfg.Camera.RearDevice,
			FrontDevice: s.cfg.Camera.FrontDevice,
		})
		if err != nil {
			return fmt.Errorf("failed to create gstreamer provider: %w", err)
		}
		s.provider = gstProvider
		slog.Info("using v4l2 camera provider",
			"rear", s.cfg.Camera.RearDevice,
			"front", s.cfg.Camera.FrontDevice,
		)
	} else {
		s.provider = camera.NewSyntheticProvider(camera.SyntheticConfig{})
		slog.Info("using synthetic camera provider (no devices configured)")
	}

	res := camera.ParseResolution(s.cfg.Camera.Resolution)

	acquirer, err := camera.NewAcquirer(s.provider, res)
	if err != nil {
		return fmt.Errorf("failed to create acquirer: %w", err)
	}
	s.acquirer = acquirer

	s.captureUnit = camera.NewFrameCapture(
		clock.WallClock,
		time.Duration(s.cfg.Camera.SettleMS)*time.Millisecond,
		time.Duration(s.cfg.Camera.MetadataTimeoutS)*time.Second,
	)

	rosterProvider, err := roster.NewHTTPProvider(s.cfg.Roster.BaseURL, s.cfg.Roster.APIToken, 0)
	if err != nil {
		return fmt.Errorf("failed to create roster provider: %w", err)
	}
	s.rosterProvider = rosterProvider

	uploader, err := session.NewHTTPUploader(s.cfg.Upload.BaseURL,
		time.Duration(s.cfg.Upload.TimeoutS)*time.Second)
	if err != nil {
		return fmt.Errorf("failed to create uploader: %w", err)
	}
	s.uploader = uploader

	// PDF collaborator is optional
	if s.cfg.PDF.BaseURL != "" {
		pdfClient, err := pdf.NewClient(s.cfg.PDF.BaseURL, 0)
		if err != nil {
			return fmt.Errorf("failed to create pdf client: %w", err)
		}
		s.pdfClient = pdfClient
	}

	sess, err := session.New(session.Config{
		Acquirer:       s.acquirer,
		Capture:        s.captureUnit,
		Uploader:       s.uploader,
		MaxImportBytes: s.cfg.Import.MaxBytes,
		Listener:       s.onTransition,
	})
	if err != nil {
		return fmt.Errorf("failed to create session controller: %w", err)
	}
	s.session = sess

	return nil
}

// Run starts the service and blocks until context is cancelled
func (s *Scandesk) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	s.isRunning = true
	s.started = time.Now()
	s.mu.Unlock()

	// Create cancellable context for MQTT shutdown command
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.runCtx = ctx
	s.cancelCtx = cancel
	s.mu.Unlock()

	slog.Info("scandesk service starting",
		"instance_id", s.cfg.InstanceID,
	)

	// Connect MQTT emitter
	if err := s.emitter.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect mqtt: %w", err)
	}

	// Setup control plane handler
	s.controlHandler = control.NewHandler(s.cfg, s.emitter.Client, control.CommandCallbacks{
		OnGetStatus:     s.getStatus,
		OnShutdown:      s.shutdownViaControl,
		OnSelectStudent: s.selectStudent,
		OnCloseSession:  s.closeSession,
		OnCapture:       s.captureFrame,
		OnImportPage:    s.importPage,
		OnKeep:          s.keepFrame,
		OnRetake:        s.retakeFrame,
		OnRemovePage:    s.removePage,
		OnFinish:        s.finishStudent,
		OnSkip:          s.skipStudent,
		OnRetryCamera:   s.retryCamera,
		OnSetStatus:     s.setStudentStatus,
		OnSetRemark:     s.setStudentRemark,
		OnGeneratePDF:   s.generatePDF,
	})

	if err := s.controlHandler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start control plane: %w", err)
	}

	// Start periodic health publisher
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.publishHealthLoop(ctx, 30*time.Second)
	}()

	slog.Info("scandesk service running")

	// Wait for context cancellation
	<-ctx.Done()

	slog.Info("scandesk service run loop exiting")
	return nil
}

// Shutdown performs graceful shutdown of all components
func (s *Scandesk) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	slog.Info("shutting down scandesk service")

	// Shutdown sequence (order is important!):
	// 1. Close the session first: waits for an in-flight upload and
	//    releases the camera
	if s.session != nil {
		slog.Info("closing capture session")
		s.session.Close()
	}

	// 2. Stop control plane
	if s.controlHandler != nil {
		slog.Info("stopping control handler")
		if err := s.controlHandler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	// 3. Wait for goroutines to finish (without holding the lock)
	slog.Info("waiting for goroutines to finish")
	s.wg.Wait()
	slog.Info("all goroutines finished")

	// 4. Disconnect MQTT
	if s.emitter != nil {
		if err := s.emitter.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	s.mu.Lock()
	uptime := time.Since(s.started)
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("scandesk service shutdown complete",
		"uptime", uptime,
	)

	return nil
}

// onTransition feeds session state changes into the event stream
func (s *Scandesk) onTransition(t session.Transition) {
	event := types.TransitionEvent{
		InstanceID: s.cfg.InstanceID,
		BenchID:    s.cfg.BenchID,
		From:       t.From.String(),
		To:         t.To.String(),
		StudentID:  t.StudentID,
		RollNumber: t.RollNumber,
		Reason:     t.Reason,
		Timestamp:  t.At.UTC().Format(time.RFC3339),
	}
	if err := s.emitter.Publish(event); err != nil {
		slog.Warn("failed to publish transition event", "error", err)
	}
}

// publishHealthLoop emits a periodic health snapshot
func (s *Scandesk) publishHealthLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			event := types.HealthEvent{
				InstanceID: s.cfg.InstanceID,
				BenchID:    s.cfg.BenchID,
				State:      s.session.StateNow().String(),
				Session:    s.session.Status(),
				UptimeS:    int64(time.Since(s.started).Seconds()),
			}
			payload, err := event.ToJSON()
			if err != nil {
				slog.Error("failed to marshal health event", "error", err)
				continue
			}
			if err := s.emitter.PublishHealth(payload); err != nil {
				slog.Debug("health publish skipped", "error", err)
			}
		}
	}
}

// ShutdownTimeout returns the configured graceful shutdown timeout
func (s *Scandesk) ShutdownTimeout() time.Duration {
	timeout := time.Duration(s.cfg.ShutdownTimeoutS) * time.Second
	if timeout == 0 {
		return 5 * time.Second // Default
	}
	return timeout
}

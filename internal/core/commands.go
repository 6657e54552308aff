package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/visiona/scandesk/internal/roster"
	"github.com/visiona/scandesk/internal/session"
	"github.com/visiona/scandesk/internal/types"
)

// runContext returns the service run context for command-driven operations
func (s *Scandesk) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

// getStatus returns the current service status
func (s *Scandesk) getStatus() map[string]interface{} {
	s.mu.RLock()
	started := s.started
	running := s.isRunning
	s.mu.RUnlock()

	emitterStats := s.emitter.Stats()

	return map[string]interface{}{
		"instance_id": s.cfg.InstanceID,
		"bench_id":    s.cfg.BenchID,
		"uptime_s":    time.Since(started).Seconds(),
		"running":     running,
		"session":     s.session.Status(),
		"emitter": map[string]interface{}{
			"connected": emitterStats.Connected,
			"published": emitterStats.Published,
			"errors":    emitterStats.Errors,
		},
		"config": map[string]interface{}{
			"camera": map[string]interface{}{
				"rear_device":  s.cfg.Camera.RearDevice,
				"front_device": s.cfg.Camera.FrontDevice,
				"resolution":   s.cfg.Camera.Resolution,
			},
			"mqtt": map[string]interface{}{
				"broker":        s.cfg.MQTT.Broker,
				"control_topic": s.cfg.MQTT.Topics.Control,
				"events_topic":  s.cfg.MQTT.Topics.Events,
			},
		},
	}
}

// selectStudent refreshes the roster snapshot and starts a capture session
// on the chosen student (or the first eligible one when studentID is empty).
func (s *Scandesk) selectStudent(studentID string) error {
	ctx := s.runContext()

	snapshot, err := s.rosterProvider.ListStudents(ctx, 1, s.cfg.Roster.PageSize, s.cfg.Roster.SortKey)
	if err != nil {
		return fmt.Errorf("failed to fetch roster: %w", err)
	}

	s.mu.Lock()
	s.students = snapshot.Students
	s.mu.Unlock()

	slog.Info("roster snapshot fetched",
		"students", len(snapshot.Students),
		"total_count", snapshot.TotalCount,
	)

	return s.session.Start(ctx, snapshot.Students, studentID)
}

func (s *Scandesk) captureFrame() error {
	return s.session.Capture(s.runContext())
}

func (s *Scandesk) importPage(name string, data []byte) error {
	return s.session.ImportFile(name, data)
}

func (s *Scandesk) keepFrame() error {
	return s.session.Keep()
}

func (s *Scandesk) retakeFrame() error {
	return s.session.Retake()
}

func (s *Scandesk) removePage(pageID string) error {
	return s.session.RemovePage(pageID)
}

// finishStudent uploads the batch and reports the outcome on the event
// stream as well as in the command response.
func (s *Scandesk) finishStudent() (map[string]interface{}, error) {
	student := s.session.ActiveStudent()
	pages := len(s.session.Pages())
	if s.session.HasPending() {
		pages++
	}

	result, err := s.session.Finish(s.runContext())

	event := types.UploadEvent{
		InstanceID: s.cfg.InstanceID,
		BenchID:    s.cfg.BenchID,
		StudentID:  student.ID,
		RollNumber: student.RollNumber,
		Pages:      pages,
		Success:    err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	} else {
		event.UploadedCount = result.UploadedCount
	}
	// Validation rejections never reached the uploader; nothing to report
	if !session.IsKind(err, session.KindValidation) {
		if pubErr := s.emitter.Publish(event); pubErr != nil {
			slog.Warn("failed to publish upload event", "error", pubErr)
		}
	}

	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"uploaded_count": result.UploadedCount,
		"advanced":       result.Advanced,
		"completed":      result.Completed,
	}
	if result.Advanced {
		data["next_student_id"] = result.Next.ID
		data["next_roll_number"] = result.Next.RollNumber
	}
	return data, nil
}

func (s *Scandesk) skipStudent() (map[string]interface{}, error) {
	next, ok, err := s.session.Skip(s.runContext())
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"advanced":  ok,
		"completed": !ok,
	}
	if ok {
		data["next_student_id"] = next.ID
		data["next_roll_number"] = next.RollNumber
	}
	return data, nil
}

func (s *Scandesk) retryCamera() error {
	return s.session.RetryCamera(s.runContext())
}

// setStudentStatus persists the status remotely, then lets the session
// react (marking the active student absent or missing auto-skips).
func (s *Scandesk) setStudentStatus(studentID, status string) error {
	st := roster.Status(status)
	if !st.Valid() {
		return fmt.Errorf("invalid status %q (expected pending/absent/missing)", status)
	}

	ctx := s.runContext()
	if err := s.rosterProvider.SetStatus(ctx, studentID, st); err != nil {
		return fmt.Errorf("failed to persist status: %w", err)
	}

	s.session.StudentStatusChanged(ctx, studentID, st)
	return nil
}

func (s *Scandesk) setStudentRemark(studentID, remark string) error {
	if err := s.rosterProvider.SetRemark(s.runContext(), studentID, remark); err != nil {
		return fmt.Errorf("failed to persist remark: %w", err)
	}
	return nil
}

// generatePDF triggers assembly of the student's uploaded scans. The
// document stays on the PDF service; only the trigger runs here.
func (s *Scandesk) generatePDF(studentID string) error {
	if s.pdfClient == nil {
		return fmt.Errorf("pdf service not configured")
	}

	body, err := s.pdfClient.Generate(s.runContext(), studentID)
	if err != nil {
		return err
	}
	defer body.Close()

	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return fmt.Errorf("pdf stream truncated: %w", err)
	}

	slog.Info("pdf generated",
		"student_id", studentID,
		"size_bytes", n,
	)
	return nil
}

func (s *Scandesk) closeSession() error {
	s.session.Close()
	return nil
}

// shutdownViaControl triggers graceful shutdown from the control plane
func (s *Scandesk) shutdownViaControl() error {
	s.mu.RLock()
	cancel := s.cancelCtx
	s.mu.RUnlock()

	if cancel == nil {
		return fmt.Errorf("service not running")
	}
	cancel()
	return nil
}

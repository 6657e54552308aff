package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/visiona/scandesk/internal/camera"
	"github.com/visiona/scandesk/internal/roster"
)

// State is the session's workflow state
type State int

const (
	// StateIdle: no student selected, no camera held
	StateIdle State = iota
	// StateSelecting: a student was picked, camera acquisition in progress
	StateSelecting
	// StateCaptureReady: camera held, waiting for the operator to capture
	StateCaptureReady
	// StateCameraError: both acquisition tiers failed; degraded capture-ready
	// state where file import still works and the camera may be retried
	StateCameraError
	// StateFramePending: a captured frame awaits keep/retake/finish
	StateFramePending
	// StateUploading: the batch upload is in flight; mutations are rejected
	StateUploading
	// StateClosed: session torn down (operator cancel or roster exhausted)
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateCaptureReady:
		return "capture_ready"
	case StateCameraError:
		return "camera_error"
	case StateFramePending:
		return "frame_pending"
	case StateUploading:
		return "uploading"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transition describes one observed state change, for the event stream
type Transition struct {
	From       State
	To         State
	StudentID  string
	RollNumber string
	Reason     string
	At         time.Time
}

// FinishResult reports the outcome of a successful Finish
type FinishResult struct {
	// UploadedCount is the number of images the store accepted
	UploadedCount int
	// Advanced is true when the session moved on to another student
	Advanced bool
	// Next is the newly selected student when Advanced
	Next roster.Student
	// Completed is true when no eligible student remained and the session
	// closed normally
	Completed bool
}

// Config assembles a Session's collaborators
type Config struct {
	Acquirer *camera.Acquirer
	Capture  *camera.FrameCapture
	Uploader Uploader
	// MaxImportBytes caps file imports; <= 0 selects the 10 MiB default
	MaxImportBytes int64
	// Listener, when set, observes every state transition. Called outside
	// the session lock, in transition order.
	Listener func(Transition)
}

// Session is the capture session controller. Exactly one is live at a time;
// it exclusively owns the camera handle for its lifetime.
//
// All methods are safe for concurrent use, but the model is cooperative:
// operations in flight reject, rather than queue, conflicting triggers.
type Session struct {
	acquirer       *camera.Acquirer
	capture        *camera.FrameCapture
	uploader       Uploader
	maxImportBytes int64
	listener       func(Transition)

	mu         sync.Mutex
	uploadDone *sync.Cond // broadcast when an in-flight upload settles

	state    State
	degraded bool // no camera held; CameraError stands in for CaptureReady

	students []roster.Student
	student  roster.Student

	buffer  *PageBuffer
	pending *Page

	captureInFlight bool
	queued          []Transition
}

// New creates a session controller with fail-fast validation
func New(cfg Config) (*Session, error) {
	if cfg.Acquirer == nil {
		return nil, fmt.Errorf("session: acquirer is required")
	}
	if cfg.Capture == nil {
		return nil, fmt.Errorf("session: frame capture unit is required")
	}
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("session: uploader is required")
	}
	s := &Session{
		acquirer:       cfg.Acquirer,
		capture:        cfg.Capture,
		uploader:       cfg.Uploader,
		maxImportBytes: cfg.MaxImportBytes,
		listener:       cfg.Listener,
		state:          StateIdle,
		buffer:         NewPageBuffer(),
	}
	s.uploadDone = sync.NewCond(&s.mu)
	return s, nil
}

// Start opens the session on a roster snapshot and selects the student to
// scan. An empty studentID selects the first eligible student.
func (s *Session) Start(ctx context.Context, students []roster.Student, studentID string) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateClosed {
		s.mu.Unlock()
		return failure(KindValidation, fmt.Sprintf("cannot start from state %s", s.state))
	}

	s.students = make([]roster.Student, len(students))
	copy(s.students, students)

	var target roster.Student
	var ok bool
	if studentID == "" {
		target, ok = roster.FirstEligible(s.students)
	} else {
		target, ok = s.findEligible(studentID)
	}
	if !ok {
		s.mu.Unlock()
		return failure(KindValidation, "no eligible student to start with")
	}

	s.selectStudentLocked(ctx, target)
	s.flushLocked()
	return nil
}

// Capture grabs one frame from the held camera and holds it as the pending
// frame. Rejected while another capture or an upload is in flight.
func (s *Session) Capture(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCaptureReady {
		st := s.state
		s.mu.Unlock()
		if st == StateCameraError {
			return failure(KindCapture, "no camera held; retry the camera or import a file")
		}
		return failure(KindValidation, fmt.Sprintf("cannot capture from state %s", st))
	}
	if s.captureInFlight {
		s.mu.Unlock()
		return failure(KindCapture, "capture already in flight")
	}
	s.captureInFlight = true
	dev := s.acquirer.Device()
	student := s.student
	s.mu.Unlock()

	image, err := s.capture.Capture(ctx, dev)

	s.mu.Lock()
	s.captureInFlight = false
	if err != nil {
		s.mu.Unlock()
		// No state change: the operator may simply try again
		return failureWrap(KindCapture, "frame capture failed", err)
	}
	if s.state != StateCaptureReady || s.student.ID != student.ID {
		// The session moved on (skip/close) while the frame was in the
		// camera; the frame belongs to a dead context.
		s.mu.Unlock()
		return failure(KindValidation, "session changed during capture; frame discarded")
	}
	s.holdPendingLocked(image, "frame captured")
	s.flushLocked()
	return nil
}

// ImportFile validates a locally-chosen image and holds it as the pending
// frame. This is the degraded-mode substitute for device capture and also
// works with a healthy camera.
func (s *Session) ImportFile(name string, data []byte) error {
	s.mu.Lock()
	if s.state != StateCaptureReady && s.state != StateCameraError {
		st := s.state
		s.mu.Unlock()
		return failure(KindValidation, fmt.Sprintf("cannot import a page from state %s", st))
	}
	if err := ValidateImport(name, data, s.maxImportBytes); err != nil {
		s.mu.Unlock()
		return err
	}
	s.holdPendingLocked(data, "page imported from file")
	s.flushLocked()
	return nil
}

// Keep commits the pending frame into the page buffer and returns to the
// capture state. The frame number is its 1-based buffer position.
func (s *Session) Keep() error {
	s.mu.Lock()
	if s.state != StateFramePending || s.pending == nil {
		st := s.state
		s.mu.Unlock()
		return failure(KindValidation, fmt.Sprintf("no pending frame to keep in state %s", st))
	}
	s.buffer.Append(s.pending.Image, s.student.RollNumber)
	s.pending = nil
	s.setStateLocked(s.captureStateLocked(), "pending frame committed")
	s.flushLocked()
	return nil
}

// Retake discards the pending frame and returns to the capture state
func (s *Session) Retake() error {
	s.mu.Lock()
	if s.state != StateFramePending {
		st := s.state
		s.mu.Unlock()
		return failure(KindValidation, fmt.Sprintf("no pending frame to retake in state %s", st))
	}
	s.pending = nil
	s.setStateLocked(s.captureStateLocked(), "pending frame discarded for retake")
	s.flushLocked()
	return nil
}

// RemovePage deletes a committed page from the buffer. Remaining pages keep
// their order; numbering is derived from position so no gap appears.
func (s *Session) RemovePage(pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateCaptureReady, StateCameraError, StateFramePending:
	default:
		return failure(KindValidation, fmt.Sprintf("cannot remove pages in state %s", s.state))
	}
	if !s.buffer.Remove(pageID) {
		return failure(KindValidation, fmt.Sprintf("no page with id %s", pageID))
	}
	return nil
}

// Finish submits the buffered pages plus the pending frame, if any, as one
// atomic batch for the active student.
//
// Success clears the buffer and pending frame unconditionally and advances
// to the next eligible student (or closes the session when none remains).
// Failure reverts to the pre-upload state with the buffer intact, so the
// operator can retry without recapturing.
func (s *Session) Finish(ctx context.Context) (FinishResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateCaptureReady, StateCameraError, StateFramePending:
	default:
		st := s.state
		s.mu.Unlock()
		return FinishResult{}, failure(KindValidation, fmt.Sprintf("cannot finish from state %s", st))
	}

	// Snapshot the total page set: buffer order, pending frame last.
	// Once taken, mutations are locked out by the Uploading state.
	pages := s.buffer.Pages()
	images := make([][]byte, 0, len(pages)+1)
	for _, p := range pages {
		images = append(images, p.Image)
	}
	if s.pending != nil {
		images = append(images, s.pending.Image)
	}
	if len(images) == 0 {
		s.mu.Unlock()
		return FinishResult{}, failure(KindValidation, "no pages to upload")
	}

	preUpload := s.state
	student := s.student
	s.setStateLocked(StateUploading, fmt.Sprintf("uploading %d pages", len(images)))
	s.flushLocked() // releases the lock

	count, err := s.uploader.SubmitPages(ctx, student.ID, images)

	s.mu.Lock()
	defer func() {
		s.uploadDone.Broadcast()
		s.flushLocked()
	}()

	if err != nil {
		// One batch, one outcome: revert, keep everything, surface verbatim
		s.setStateLocked(preUpload, "upload failed; buffer preserved")
		return FinishResult{}, failureWrap(KindUpload, "batch upload failed", err)
	}

	// The store accepted the batch: these pages must never be re-offered
	s.buffer.Clear()
	s.pending = nil
	s.markScannedLocked(student.ID)

	slog.Info("session: batch uploaded",
		"student_id", student.ID,
		"roll_number", student.RollNumber,
		"pages", len(images),
		"uploaded_count", count,
	)

	result := FinishResult{UploadedCount: count}
	if next, ok := roster.NextEligible(s.students, student.ID); ok {
		s.selectStudentLocked(ctx, next)
		result.Advanced = true
		result.Next = next
	} else {
		// Normal terminal condition, not an error
		s.closeLocked("roster exhausted")
		result.Completed = true
	}
	return result, nil
}

// Skip abandons the active student and moves to the next eligible one.
// The pending frame is discarded; committed pages are lost with the student
// context since no upload occurred. Shares NextEligible with automatic
// advancement so the two can never diverge.
func (s *Session) Skip(ctx context.Context) (roster.Student, bool, error) {
	s.mu.Lock()
	switch s.state {
	case StateCaptureReady, StateCameraError, StateFramePending:
	default:
		st := s.state
		s.mu.Unlock()
		return roster.Student{}, false, failure(KindValidation, fmt.Sprintf("cannot skip from state %s", st))
	}
	next, ok := s.advanceLocked(ctx, "operator skip")
	s.flushLocked()
	return next, ok, nil
}

// StudentStatusChanged reacts to an external status mutation. Marking the
// active student absent or missing triggers the same advancement as a
// manual skip, because they no longer satisfy the eligibility predicate.
func (s *Session) StudentStatusChanged(ctx context.Context, studentID string, status roster.Status) {
	s.mu.Lock()
	for i := range s.students {
		if s.students[i].ID == studentID {
			s.students[i].Status = status
			break
		}
	}

	active := s.student.ID == studentID && status != roster.StatusPending
	inCapture := s.state == StateCaptureReady || s.state == StateCameraError || s.state == StateFramePending
	if active && inCapture {
		s.advanceLocked(ctx, fmt.Sprintf("active student marked %s", status))
	}
	s.flushLocked()
}

// RetryCamera releases any held device and runs the acquisition chain
// again. Available from the degraded state and from capture-ready.
func (s *Session) RetryCamera(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCameraError && s.state != StateCaptureReady {
		st := s.state
		s.mu.Unlock()
		return failure(KindValidation, fmt.Sprintf("cannot retry the camera from state %s", st))
	}
	s.setStateLocked(StateSelecting, "camera retry")
	s.acquireLocked(ctx)
	failed := s.state == StateCameraError
	s.flushLocked()
	if failed {
		return failure(KindAcquisition, "camera retry failed on both tiers")
	}
	return nil
}

// Close tears the session down: camera released, buffer and pending frame
// discarded. Safe from any state; waits for an in-flight upload to settle
// first so no student is orphaned in an indeterminate scanned state.
func (s *Session) Close() {
	s.mu.Lock()
	for s.state == StateUploading {
		s.uploadDone.Wait()
	}
	if s.state != StateClosed {
		s.closeLocked("operator close")
	}
	s.flushLocked()
}

// StateNow returns the current state
func (s *Session) StateNow() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveStudent returns the student currently being scanned
func (s *Session) ActiveStudent() roster.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.student
}

// Pages returns a copy of the committed pages in capture order
func (s *Session) Pages() []Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Pages()
}

// HasPending reports whether a pending frame is held
func (s *Session) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Status returns a status snapshot for the control plane
func (s *Session) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := 0
	for _, st := range s.students {
		if st.Eligible() {
			remaining++
		}
	}

	return map[string]interface{}{
		"state":         s.state.String(),
		"degraded":      s.degraded,
		"student_id":    s.student.ID,
		"roll_number":   s.student.RollNumber,
		"student_name":  s.student.Name,
		"pages_held":    s.buffer.Len(),
		"frame_pending": s.pending != nil,
		"eligible_left": remaining,
	}
}

// --- internal transitions (all require s.mu held) ---

// selectStudentLocked runs the Idle/advance → Selecting → CaptureReady |
// CameraError sequence for one student.
func (s *Session) selectStudentLocked(ctx context.Context, st roster.Student) {
	s.student = st
	s.buffer.Clear()
	s.pending = nil
	s.setStateLocked(StateSelecting, fmt.Sprintf("student %s selected", st.RollNumber))
	s.acquireLocked(ctx)
}

// acquireLocked runs the camera chain and lands in CaptureReady or the
// degraded CameraError state.
func (s *Session) acquireLocked(ctx context.Context) {
	if _, err := s.acquirer.Acquire(ctx); err != nil {
		slog.Warn("session: camera acquisition failed, degrading to file import",
			"student_id", s.student.ID,
			"error", err,
		)
		s.degraded = true
		s.setStateLocked(StateCameraError, "both camera tiers failed")
		return
	}
	s.degraded = false
	s.setStateLocked(StateCaptureReady, "camera ready")
}

// captureStateLocked is CaptureReady, or CameraError while degraded
func (s *Session) captureStateLocked() State {
	if s.degraded {
		return StateCameraError
	}
	return StateCaptureReady
}

func (s *Session) holdPendingLocked(image []byte, reason string) {
	s.pending = &Page{
		ID:              newPageID(),
		Image:           image,
		CapturedAt:      time.Now(),
		OwnerRollNumber: s.student.RollNumber,
	}
	s.setStateLocked(StateFramePending, reason)
}

// advanceLocked discards the pending frame and moves to the next eligible
// student, or closes when the snapshot is exhausted.
func (s *Session) advanceLocked(ctx context.Context, reason string) (roster.Student, bool) {
	s.pending = nil
	next, ok := roster.NextEligible(s.students, s.student.ID)
	if !ok {
		s.closeLocked(reason + "; roster exhausted")
		return roster.Student{}, false
	}
	s.selectStudentLocked(ctx, next)
	return next, true
}

func (s *Session) closeLocked(reason string) {
	s.acquirer.Release()
	s.buffer.Clear()
	s.pending = nil
	s.degraded = false
	s.setStateLocked(StateClosed, reason)
}

func (s *Session) markScannedLocked(studentID string) {
	for i := range s.students {
		if s.students[i].ID == studentID {
			s.students[i].IsScanned = true
			return
		}
	}
}

func (s *Session) findEligible(studentID string) (roster.Student, bool) {
	for _, st := range s.students {
		if st.ID == studentID && st.Eligible() {
			return st, true
		}
	}
	return roster.Student{}, false
}

func (s *Session) setStateLocked(to State, reason string) {
	if s.state == to && to != StateSelecting {
		return
	}
	t := Transition{
		From:       s.state,
		To:         to,
		StudentID:  s.student.ID,
		RollNumber: s.student.RollNumber,
		Reason:     reason,
		At:         time.Now(),
	}
	s.state = to
	s.queued = append(s.queued, t)
	slog.Debug("session: transition",
		"from", t.From.String(),
		"to", t.To.String(),
		"reason", reason,
	)
}

// flushLocked releases the lock and delivers queued transitions to the
// listener in order. Listeners run outside the lock so they may call back
// into the session.
func (s *Session) flushLocked() {
	q := s.queued
	s.queued = nil
	s.mu.Unlock()
	if s.listener == nil {
		return
	}
	for _, t := range q {
		s.listener(t)
	}
}

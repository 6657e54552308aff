// Package session implements the capture session controller: the stateful
// workflow engine that walks an operator through scanning one student after
// another.
//
// One Session is live at a time (the camera is a single resource). Its state
// machine:
//
//	Idle → Selecting → CaptureReady → FramePending → Uploading → (next | Closed)
//
// with CameraError as a degraded sibling of CaptureReady (file import keeps
// working when both acquisition tiers fail).
//
// The engine is event-driven and cooperative: every transition is triggered
// by an operator action (capture, keep, retake, finish, skip, close), a
// status mutation, or the automatic post-upload advancement. Manual skip and
// automatic advancement share the same roster.NextEligible query, so the two
// can never diverge in eligibility logic.
//
// Pages live in the PageBuffer only for the duration of a student's capture;
// a successful batch upload or a discard is the end of their life in this
// subsystem.
package session

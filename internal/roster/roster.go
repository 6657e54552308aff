// Package roster models the ordered student roster the scanning bench walks
// through, and the navigation rule that picks the next student to capture.
//
// The roster store itself is external; this package only reads snapshots and
// requests status mutations through the Provider interface.
package roster

import "context"

// Status is the workflow status of a student on the roster
type Status string

const (
	// StatusPending means the student is still expected at the bench
	StatusPending Status = "pending"
	// StatusAbsent means the student did not show up
	StatusAbsent Status = "absent"
	// StatusMissing means the student's sheet could not be located
	StatusMissing Status = "missing"
)

// Valid reports whether s is one of the known roster statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAbsent, StatusMissing:
		return true
	}
	return false
}

// Student is one roster entry. The roster store owns it; the engine only
// reads it and requests status mutations via Provider.SetStatus.
type Student struct {
	// ID is an opaque identifier assigned by the roster store
	ID string `json:"id"`
	// RollNumber is the unique, sortable key students are processed in
	RollNumber string `json:"roll_number"`
	// Name is the display name
	Name string `json:"name"`
	// Status is the workflow status (pending, absent, missing)
	Status Status `json:"status"`
	// IsScanned is true once a batch upload for this student succeeded
	IsScanned bool `json:"is_scanned"`
	// PDFPath points at the generated PDF, when one exists
	PDFPath string `json:"pdf_path,omitempty"`
}

// Eligible reports whether the student qualifies for capture:
// pending status and not yet scanned.
func (s Student) Eligible() bool {
	return s.Status == StatusPending && !s.IsScanned
}

// Snapshot is one authoritative page of the roster as returned by the store.
// The engine never caches snapshots across Provider calls.
type Snapshot struct {
	Students   []Student `json:"students"`
	TotalCount int       `json:"total_count"`
	TotalPages int       `json:"total_pages"`
}

// Provider is the external roster store contract.
//
// Implementations must treat every response as an authoritative snapshot;
// callers must not assume any caching between calls.
type Provider interface {
	// ListStudents returns one page of the roster in sortKey order.
	ListStudents(ctx context.Context, page, pageSize int, sortKey string) (*Snapshot, error)
	// SetStatus requests a status mutation for one student.
	SetStatus(ctx context.Context, studentID string, status Status) error
	// SetRemark attaches free-text remark to one student.
	SetRemark(ctx context.Context, studentID string, text string) error
}

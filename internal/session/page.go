package session

import (
	"time"

	"github.com/google/uuid"
)

// Page is one captured page image held for the active student.
//
// Page numbers are not stored: they are a presentation-time derivation, the
// 1-based position within the buffer at use time. Removal therefore never
// leaves gaps.
type Page struct {
	// ID is unique within the session and preserves insertion identity
	ID string
	// Image is the encoded still-image payload (opaque to this layer)
	Image []byte
	// CapturedAt is when the frame was produced or imported
	CapturedAt time.Time
	// OwnerRollNumber is denormalized for traceability
	OwnerRollNumber string
}

// PageBuffer is the ordered, mutable collection of captured pages for the
// active student. Buffer order always equals capture order; no operation
// reorders existing pages. Size is unbounded at this layer — any
// pages-per-student cap is external policy.
//
// Not safe for concurrent use; the Session serializes access.
type PageBuffer struct {
	pages []Page
}

// NewPageBuffer creates an empty buffer
func NewPageBuffer() *PageBuffer {
	return &PageBuffer{}
}

func newPageID() string {
	return uuid.New().String()
}

// Append inserts a page at the end and returns its id.
// Its page number is the new buffer length.
func (b *PageBuffer) Append(image []byte, ownerRoll string) string {
	p := Page{
		ID:              newPageID(),
		Image:           image,
		CapturedAt:      time.Now(),
		OwnerRollNumber: ownerRoll,
	}
	b.pages = append(b.pages, p)
	return p.ID
}

// Remove deletes the page with the given id, preserving the order of the
// remaining pages. Removing an unknown id is a no-op returning false.
func (b *PageBuffer) Remove(pageID string) bool {
	for i, p := range b.pages {
		if p.ID == pageID {
			b.pages = append(b.pages[:i], b.pages[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the buffer (used when switching students)
func (b *PageBuffer) Clear() {
	b.pages = nil
}

// Len returns the number of buffered pages
func (b *PageBuffer) Len() int {
	return len(b.pages)
}

// Pages returns a copy of the buffered pages in capture order.
// Index+1 is the page number.
func (b *PageBuffer) Pages() []Page {
	out := make([]Page, len(b.pages))
	copy(out, b.pages)
	return out
}

// PageNumber derives the 1-based page number for an id, or 0 if absent
func (b *PageBuffer) PageNumber(pageID string) int {
	for i, p := range b.pages {
		if p.ID == pageID {
			return i + 1
		}
	}
	return 0
}

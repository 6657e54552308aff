package session

import (
	"fmt"
	"testing"
)

// TestPageNumbersFollowPosition verifies page numbers are always the
// 1-based buffer position, so removal renumbers instead of leaving gaps.
func TestPageNumbersFollowPosition(t *testing.T) {
	b := NewPageBuffer()

	id1 := b.Append([]byte("one"), "101")
	id2 := b.Append([]byte("two"), "101")
	id3 := b.Append([]byte("three"), "101")

	if got := b.PageNumber(id2); got != 2 {
		t.Errorf("expected page 2, got %d", got)
	}

	if !b.Remove(id1) {
		t.Fatal("expected removal of first page to succeed")
	}

	// Former pages 2 and 3 slide up
	if got := b.PageNumber(id2); got != 1 {
		t.Errorf("after removal expected page 1, got %d", got)
	}
	if got := b.PageNumber(id3); got != 2 {
		t.Errorf("after removal expected page 2, got %d", got)
	}
	if got := b.PageNumber(id1); got != 0 {
		t.Errorf("removed page should report 0, got %d", got)
	}
}

// TestBufferPreservesCaptureOrder verifies no operation reorders pages.
func TestBufferPreservesCaptureOrder(t *testing.T) {
	b := NewPageBuffer()

	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, b.Append([]byte(fmt.Sprintf("p%d", i)), "101"))
	}

	// Remove from the middle and the ends
	b.Remove(ids[0])
	b.Remove(ids[5])
	b.Remove(ids[9])

	want := []string{"p1", "p2", "p3", "p4", "p6", "p7", "p8"}
	pages := b.Pages()
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d", len(want), len(pages))
	}
	for i, p := range pages {
		if string(p.Image) != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.Image)
		}
	}
}

// TestRemoveUnknownIsNoop verifies removing a bogus id changes nothing.
func TestRemoveUnknownIsNoop(t *testing.T) {
	b := NewPageBuffer()
	b.Append([]byte("one"), "101")

	if b.Remove("no-such-id") {
		t.Error("expected Remove of unknown id to return false")
	}
	if b.Len() != 1 {
		t.Errorf("expected buffer untouched, got len %d", b.Len())
	}
}

// TestPagesReturnsCopy verifies callers cannot mutate the buffer through
// the returned slice.
func TestPagesReturnsCopy(t *testing.T) {
	b := NewPageBuffer()
	b.Append([]byte("one"), "101")
	b.Append([]byte("two"), "101")

	pages := b.Pages()
	pages[0] = Page{ID: "tampered"}

	if b.Pages()[0].ID == "tampered" {
		t.Error("mutating the returned slice must not affect the buffer")
	}
}

// TestClear verifies Clear empties the buffer.
func TestClear(t *testing.T) {
	b := NewPageBuffer()
	b.Append([]byte("one"), "101")
	b.Clear()

	if b.Len() != 0 {
		t.Errorf("expected empty buffer, got len %d", b.Len())
	}
}

package roster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestListStudentsRequestShape verifies pagination, sorting and auth are
// forwarded to the store.
func TestListStudentsRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"page":      r.URL.Query().Get("page"),
			"page_size": r.URL.Query().Get("page_size"),
			"sort":      r.URL.Query().Get("sort"),
		}
		json.NewEncoder(w).Encode(Snapshot{
			Students: []Student{
				{ID: "s-1", RollNumber: "101", Status: StatusPending},
			},
			TotalCount: 1,
			TotalPages: 1,
		})
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(srv.URL, "secret-token", 0)
	if err != nil {
		t.Fatalf("NewHTTPProvider failed: %v", err)
	}

	snap, err := p.ListStudents(context.Background(), 2, 50, "roll_number")
	if err != nil {
		t.Fatalf("ListStudents failed: %v", err)
	}

	if gotPath != "/students" {
		t.Errorf("expected /students, got %s", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotQuery["page"] != "2" || gotQuery["page_size"] != "50" || gotQuery["sort"] != "roll_number" {
		t.Errorf("unexpected query params: %v", gotQuery)
	}
	if len(snap.Students) != 1 || snap.Students[0].ID != "s-1" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

// TestSetStatusRejectsInvalid verifies invalid statuses never reach the
// store.
func TestSetStatusRejectsInvalid(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("NewHTTPProvider failed: %v", err)
	}

	if err := p.SetStatus(context.Background(), "s-1", Status("vanished")); err == nil {
		t.Error("expected error for invalid status")
	}
	if called {
		t.Error("store must not be called for an invalid status")
	}
}

// TestSetStatusAndRemarkEndpoints verifies the PATCH bodies and paths.
func TestSetStatusAndRemarkEndpoints(t *testing.T) {
	type patchCall struct {
		path string
		body map[string]string
	}
	var calls []patchCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, patchCall{path: r.URL.Path, body: body})
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("NewHTTPProvider failed: %v", err)
	}

	if err := p.SetStatus(context.Background(), "s-1", StatusAbsent); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := p.SetRemark(context.Background(), "s-1", "torn booklet"); err != nil {
		t.Fatalf("SetRemark failed: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].path != "/students/s-1/status" || calls[0].body["status"] != "absent" {
		t.Errorf("unexpected status call: %+v", calls[0])
	}
	if calls[1].path != "/students/s-1/remark" || calls[1].body["remark"] != "torn booklet" {
		t.Errorf("unexpected remark call: %+v", calls[1])
	}
}

// TestProviderValidation verifies fail-fast construction.
func TestProviderValidation(t *testing.T) {
	if _, err := NewHTTPProvider("", "", 0); err == nil {
		t.Error("expected error for empty base URL")
	}
}

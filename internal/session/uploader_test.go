package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestSubmitPagesOrderedParts verifies the multipart batch carries every
// image, named by its 1-based position, in capture order.
func TestSubmitPagesOrderedParts(t *testing.T) {
	type part struct {
		name string
		data string
	}
	var gotPath string
	var parts []part

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		reader, err := r.MultipartReader()
		if err != nil {
			t.Errorf("expected multipart body: %v", err)
			return
		}
		for {
			p, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("read part: %v", err)
				return
			}
			data, _ := io.ReadAll(p)
			parts = append(parts, part{name: p.FormName(), data: string(data)})
		}
		fmt.Fprintln(w, `{"success": true, "uploaded_count": 3}`)
	}))
	defer srv.Close()

	u, err := NewHTTPUploader(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewHTTPUploader failed: %v", err)
	}

	images := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	count, err := u.SubmitPages(context.Background(), "s-1", images)
	if err != nil {
		t.Fatalf("SubmitPages failed: %v", err)
	}

	if gotPath != "/students/s-1/scans" {
		t.Errorf("expected /students/s-1/scans, got %s", gotPath)
	}
	if count != 3 {
		t.Errorf("expected uploaded count 3, got %d", count)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	for i, p := range parts {
		wantName := fmt.Sprintf("page-%d", i+1)
		if p.name != wantName {
			t.Errorf("part %d: expected name %s, got %s", i, wantName, p.name)
		}
		if p.data != string(images[i]) {
			t.Errorf("part %d: expected %s, got %s", i, images[i], p.data)
		}
	}
}

// TestSubmitPagesServerRejection verifies a non-2xx response surfaces as
// an error carrying the store's reason.
func TestSubmitPagesServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	u, err := NewHTTPUploader(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewHTTPUploader failed: %v", err)
	}

	_, err = u.SubmitPages(context.Background(), "s-1", [][]byte{[]byte("x")})
	if err == nil {
		t.Fatal("expected error for rejected upload")
	}
}

// TestSubmitPagesStoreFailureFlag verifies success=false in a 200 body is
// still a failure.
func TestSubmitPagesStoreFailureFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"success": false, "uploaded_count": 0}`)
	}))
	defer srv.Close()

	u, err := NewHTTPUploader(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewHTTPUploader failed: %v", err)
	}

	if _, err := u.SubmitPages(context.Background(), "s-1", [][]byte{[]byte("x")}); err == nil {
		t.Fatal("expected error when the store reports failure")
	}
}

// TestUploaderValidation verifies fail-fast construction.
func TestUploaderValidation(t *testing.T) {
	if _, err := NewHTTPUploader("", 0); err == nil {
		t.Error("expected error for empty base URL")
	}
}

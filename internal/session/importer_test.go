package session

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

// TestValidateImportAcceptsImage verifies a real image passes regardless
// of its filename.
func TestValidateImportAcceptsImage(t *testing.T) {
	data := pngBytes(t)

	if err := ValidateImport("page.png", data, 0); err != nil {
		t.Errorf("expected png to pass, got %v", err)
	}
	// Content sniffing, not extension matching
	if err := ValidateImport("notes.txt", data, 0); err != nil {
		t.Errorf("expected png with wrong extension to pass, got %v", err)
	}
}

// TestValidateImportRejectsNonImage verifies non-image payloads are
// rejected as validation failures even with an image extension.
func TestValidateImportRejectsNonImage(t *testing.T) {
	err := ValidateImport("sneaky.jpg", []byte("just some text, not pixels"), 0)
	if err == nil {
		t.Fatal("expected rejection of non-image payload")
	}
	if !IsKind(err, KindValidation) {
		t.Errorf("expected a validation failure, got %v", err)
	}
}

// TestValidateImportRejectsEmpty verifies empty payloads are rejected.
func TestValidateImportRejectsEmpty(t *testing.T) {
	err := ValidateImport("empty.png", nil, 0)
	if err == nil {
		t.Fatal("expected rejection of empty payload")
	}
	if !IsKind(err, KindValidation) {
		t.Errorf("expected a validation failure, got %v", err)
	}
}

// TestValidateImportSizeCeiling verifies the byte ceiling is enforced.
func TestValidateImportSizeCeiling(t *testing.T) {
	data := pngBytes(t)

	if err := ValidateImport("page.png", data, int64(len(data))); err != nil {
		t.Errorf("payload exactly at the ceiling should pass, got %v", err)
	}

	err := ValidateImport("page.png", data, int64(len(data))-1)
	if err == nil {
		t.Fatal("expected rejection above the ceiling")
	}
	if !IsKind(err, KindValidation) {
		t.Errorf("expected a validation failure, got %v", err)
	}
}

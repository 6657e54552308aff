package session

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxImportBytes is the ceiling for imported page images (10 MiB)
const DefaultMaxImportBytes = 10 << 20

// ValidateImport checks a locally-chosen file before it may become the
// pending frame: the payload must sniff as an image and fit the size
// ceiling. Rejections are validation failures and never reach a
// collaborator. maxBytes <= 0 selects the default ceiling.
func ValidateImport(name string, data []byte, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImportBytes
	}
	if len(data) == 0 {
		return failure(KindValidation, fmt.Sprintf("imported file %q is empty", name))
	}
	if int64(len(data)) > maxBytes {
		return failure(KindValidation, fmt.Sprintf(
			"imported file %q is %d bytes, exceeds the %d byte ceiling", name, len(data), maxBytes))
	}

	// Sniff the actual content; the filename extension is not trusted
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return failure(KindValidation, fmt.Sprintf(
			"imported file %q is %s, not an image", name, mtype.String()))
	}

	return nil
}

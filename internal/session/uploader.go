package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Uploader is the external scan-upload collaborator.
//
// Implementations must treat a submission as a single atomic unit for the
// student: either every image is accepted or none is. Partial acceptance is
// a contract violation.
type Uploader interface {
	// SubmitPages uploads the ordered images as one batch and returns the
	// accepted count.
	SubmitPages(ctx context.Context, studentID string, orderedImages [][]byte) (int, error)
}

// HTTPUploader implements Uploader against the scan store's multipart API.
//
//	POST {base}/students/{id}/scans
//	  multipart fields: page-1, page-2, ... in capture order
//
// One attempt per call with a request deadline; retry is the operator's
// decision, surfaced through the session.
type HTTPUploader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPUploader creates an uploader with fail-fast validation
func NewHTTPUploader(baseURL string, timeout time.Duration) (*HTTPUploader, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("uploader: base URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPUploader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// SubmitPages implements Uploader.SubmitPages
func (u *HTTPUploader) SubmitPages(ctx context.Context, studentID string, orderedImages [][]byte) (int, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for i, img := range orderedImages {
		part, err := writer.CreateFormFile(fmt.Sprintf("page-%d", i+1), fmt.Sprintf("page-%d.jpg", i+1))
		if err != nil {
			return 0, fmt.Errorf("uploader: build form: %w", err)
		}
		if _, err := part.Write(img); err != nil {
			return 0, fmt.Errorf("uploader: write page %d: %w", i+1, err)
		}
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("uploader: close form: %w", err)
	}

	url := fmt.Sprintf("%s/students/%s/scans", u.baseURL, studentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return 0, fmt.Errorf("uploader: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("uploader: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("uploader: submit rejected with status %s: %s",
			resp.Status, bytes.TrimSpace(msg))
	}

	var result struct {
		Success       bool `json:"success"`
		UploadedCount int  `json:"uploaded_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("uploader: decode response: %w", err)
	}
	if !result.Success {
		return 0, fmt.Errorf("uploader: store reported failure")
	}

	slog.Debug("uploader: batch accepted",
		"student_id", studentID,
		"pages", len(orderedImages),
		"uploaded_count", result.UploadedCount,
	)

	return result.UploadedCount, nil
}

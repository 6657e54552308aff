// Package pdf is a thin client for the PDF generation collaborator.
// Generation itself is external; the session only triggers it and streams
// the result through.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the PDF service
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with fail-fast validation
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("pdf: base URL is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Generate asks the service to assemble the student's uploaded scans into a
// PDF and returns the document stream. The caller owns the reader.
func (c *Client) Generate(ctx context.Context, studentID string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/students/%s/pdf", c.baseURL, studentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("pdf: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdf: generate: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("pdf: generate rejected with status %s: %s",
			resp.Status, bytes.TrimSpace(msg))
	}
	return resp.Body, nil
}

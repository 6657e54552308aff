package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPProvider implements Provider against the roster store's JSON API.
//
// Endpoints:
//
//	GET   {base}/students?page=N&page_size=M&sort=KEY
//	PATCH {base}/students/{id}/status   {"status": "..."}
//	PATCH {base}/students/{id}/remark   {"remark": "..."}
//
// Every call is a single attempt; retry policy belongs to the caller.
type HTTPProvider struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewHTTPProvider creates a roster client with fail-fast validation
func NewHTTPProvider(baseURL, apiToken string, timeout time.Duration) (*HTTPProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("roster: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("roster: invalid base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// ListStudents fetches one roster page (implements Provider.ListStudents)
func (p *HTTPProvider) ListStudents(ctx context.Context, page, pageSize int, sortKey string) (*Snapshot, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("sort", sortKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/students?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("roster: build list request: %w", err)
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roster: list students: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roster: list students: unexpected status %s", resp.Status)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("roster: decode snapshot: %w", err)
	}

	slog.Debug("roster: snapshot fetched",
		"page", page,
		"students", len(snap.Students),
		"total", snap.TotalCount,
	)

	return &snap, nil
}

// SetStatus requests a status mutation (implements Provider.SetStatus)
func (p *HTTPProvider) SetStatus(ctx context.Context, studentID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("roster: invalid status %q", status)
	}
	return p.patch(ctx,
		fmt.Sprintf("/students/%s/status", url.PathEscape(studentID)),
		map[string]string{"status": string(status)})
}

// SetRemark attaches a remark to a student (implements Provider.SetRemark)
func (p *HTTPProvider) SetRemark(ctx context.Context, studentID string, text string) error {
	return p.patch(ctx,
		fmt.Sprintf("/students/%s/remark", url.PathEscape(studentID)),
		map[string]string{"remark": text})
}

func (p *HTTPProvider) patch(ctx context.Context, path string, body map[string]string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("roster: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("roster: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("roster: %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("roster: %s: unexpected status %s", path, resp.Status)
	}
	return nil
}

func (p *HTTPProvider) authorize(req *http.Request) {
	if p.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiToken)
	}
}

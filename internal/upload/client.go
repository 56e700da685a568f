package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
)

// RejectedError is returned when the server refuses a template (4xx). It is
// never retried.
type RejectedError struct {
	Status int
	Kind   string
	Field  string
	Msg    string
}

func (e *RejectedError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("rejected (status %d): %s: %s", e.Status, e.Field, e.Msg)
	}
	return fmt.Sprintf("rejected (status %d): %s", e.Status, e.Msg)
}

// Client sends templates to the Mesoplan server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	attempts   int
	backoff    func(attempt int) time.Duration
}

// NewClient creates a new HTTP client for the Mesoplan server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		attempts: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt-1)) * time.Second
		},
	}
}

// CreateTemplate POSTs a YAML template document to the server, which expands
// and stores it. Retries up to 3 times with exponential backoff on network
// errors and 5xx responses.
func (c *Client) CreateTemplate(ctx context.Context, doc []byte) (*models.Mesocycle, error) {
	var lastErr error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		m, err := c.post(ctx, doc)
		if err == nil {
			return m, nil
		}
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) post(ctx context.Context, doc []byte) (*models.Mesocycle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/templates", bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/yaml")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		var m models.Mesocycle
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("decoding created template: %w", err)
		}
		return &m, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		rejected := &RejectedError{Status: resp.StatusCode, Msg: string(body)}
		var e struct {
			Kind    string `json:"kind"`
			Field   string `json:"field"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil {
			rejected.Kind, rejected.Field = e.Kind, e.Field
			if e.Message != "" {
				rejected.Msg = e.Message
			} else if e.Error != "" {
				rejected.Msg = e.Error
			}
		}
		return nil, rejected
	default:
		return nil, fmt.Errorf("template upload failed (status %d): %s", resp.StatusCode, body)
	}
}

// Archive retires a template the server already holds. A mesocycle that is
// gone or already archived counts as done.
func (c *Client) Archive(ctx context.Context, id uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.serverURL+"/api/v1/mesocycles/"+id.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", id, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusConflict:
		return nil
	}
	return fmt.Errorf("archiving %s failed (status %d): %s", id, resp.StatusCode, body)
}

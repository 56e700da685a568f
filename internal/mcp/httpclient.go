package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// HTTPClient implements DataSource by calling the Mesoplan REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// plans live on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return remoteError(path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// remoteError turns an API error body back into the typed engine error when
// the server sent one.
func remoteError(path string, status int, body []byte) error {
	var e struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Field   string `json:"field"`
		From    string `json:"from"`
		To      string `json:"to"`
	}
	if json.Unmarshal(body, &e) == nil && e.Kind != "" {
		return &planerr.Error{
			Kind:  planerr.Kind(e.Kind),
			Msg:   e.Message,
			Field: e.Field,
			From:  e.From,
			To:    e.To,
		}
	}
	return fmt.Errorf("httpclient: %s returned %d: %s", path, status, body)
}

// ListMesocycles maps the filter onto the listing endpoints. A student filter
// uses the student's own listing, which applies student visibility itself.
func (c *HTTPClient) ListMesocycles(ctx context.Context, f models.MesocycleFilter) ([]models.MesocycleSummary, error) {
	var out []models.MesocycleSummary
	if f.StudentID != nil {
		err := c.get(ctx, "/api/v1/students/"+f.StudentID.String()+"/mesocycles", nil, &out)
		return out, err
	}

	params := url.Values{}
	if f.CoachID != nil {
		params.Set("coach_id", f.CoachID.String())
	}
	if f.TemplatesOnly {
		params.Set("templates", "true")
	}
	includeArchived := len(f.Statuses) == 0
	for _, s := range f.Statuses {
		if s == models.StatusArchived {
			includeArchived = true
		}
	}
	params.Set("include_archived", strconv.FormatBool(includeArchived))

	if err := c.get(ctx, "/api/v1/mesocycles", params, &out); err != nil {
		return nil, err
	}
	if len(f.Statuses) == 0 {
		return out, nil
	}
	filtered := out[:0]
	for _, m := range out {
		for _, s := range f.Statuses {
			if m.Status == s {
				filtered = append(filtered, m)
				break
			}
		}
	}
	return filtered, nil
}

func (c *HTTPClient) GetMesocycle(ctx context.Context, id uuid.UUID) (*models.Mesocycle, error) {
	var m models.Mesocycle
	if err := c.get(ctx, "/api/v1/mesocycles/"+id.String(), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) GetMacrocycle(ctx context.Context, id uuid.UUID) (*models.Macrocycle, error) {
	var m models.Macrocycle
	if err := c.get(ctx, "/api/v1/macrocycles/"+id.String(), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var st models.Student
	if err := c.get(ctx, "/api/v1/students/"+id.String(), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
)

func noBackoff(c *Client) *Client {
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

// TestCreateTemplate verifies the request shape and response decoding.
func TestCreateTemplate(t *testing.T) {
	id := uuid.New()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/templates" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "k" {
			t.Errorf("api key = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/yaml" {
			t.Errorf("content type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "name: x\n" {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Mesocycle{ID: id, Name: "x", Status: models.StatusDraft})
	}))
	defer ts.Close()

	m, err := NewClient(ts.URL+"/", "k").CreateTemplate(context.Background(), []byte("name: x\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != id {
		t.Errorf("id = %s, want %s", m.ID, id)
	}
}

// TestCreateTemplateRetries verifies 5xx responses are retried and 4xx are not.
func TestCreateTemplateRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
		rejected  bool
	}{
		{"recovers", []int{http.StatusServiceUnavailable, http.StatusCreated}, 2, false, false},
		{"gives up", []int{500, 502, 503}, 3, true, false},
		{"rejected", []int{http.StatusBadRequest}, 1, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				status := tt.statuses[int(n)-1]
				w.WriteHeader(status)
				switch {
				case status == http.StatusCreated:
					json.NewEncoder(w).Encode(models.Mesocycle{ID: uuid.New(), Status: models.StatusDraft})
				case status < 500:
					json.NewEncoder(w).Encode(map[string]string{
						"error": "validation error: microcycle_count: must be at least 1", "kind": "validation_error",
						"field": "microcycle_count", "message": "must be at least 1",
					})
				}
			}))
			defer ts.Close()

			_, err := noBackoff(NewClient(ts.URL, "k")).CreateTemplate(context.Background(), []byte("name: x\n"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			var rejected *RejectedError
			if errors.As(err, &rejected) != tt.rejected {
				t.Errorf("rejected = %v, want %v (err %v)", !tt.rejected, tt.rejected, err)
			}
			if tt.rejected && rejected.Field != "microcycle_count" {
				t.Errorf("rejected = %+v", rejected)
			}
		})
	}
}

// TestArchive verifies the archive request and which statuses count as done.
func TestArchive(t *testing.T) {
	id := uuid.New()
	for _, tt := range []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusConflict, false},
		{http.StatusForbidden, true},
		{http.StatusInternalServerError, true},
	} {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/mesocycles/"+id.String() {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				if got := r.Header.Get("X-API-Key"); got != "k" {
					t.Errorf("api key = %q", got)
				}
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			err := NewClient(ts.URL, "k").Archive(context.Background(), id)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

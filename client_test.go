package urconf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestClient(srv *httptest.Server) *apiClient {
	logger, _ := zap.NewDevelopment()
	return newAPIClient("test-key", srv.URL, &http.Client{Timeout: 5 * time.Second},
		rate.NewLimiter(rate.Inf, 1), logger)
}

func TestClientSendsAuthParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("api_key"); got != "test-key" {
			t.Errorf("api_key = %q", got)
		}
		if got := r.PostForm.Get("format"); got != "json" {
			t.Errorf("format = %q", got)
		}
		fmt.Fprint(w, `{"stat": "ok", "alertcontact": {"id": "0993765"}}`)
	}))
	defer srv.Close()

	id, err := newTestClient(srv).create(context.Background(), contactResource, url.Values{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "0993765" {
		t.Errorf("id = %q, want leading zero preserved", id)
	}
}

func TestClientPagination(t *testing.T) {
	// Three pages of two contacts each, using the nested pagination object.
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		offset, _ := strconv.Atoi(r.PostForm.Get("offset"))
		requests = append(requests, r.PostForm.Get("offset"))
		fmt.Fprintf(w, `{"stat": "ok",
			"pagination": {"offset": %d, "limit": 2, "total": 6},
			"alert_contacts": [
				{"id": "%d", "value": "c%d@mail", "type": 2},
				{"id": "%d", "value": "c%d@mail", "type": 2}
			]}`, offset, offset, offset, offset+1, offset+1)
	}))
	defer srv.Close()

	records, err := newTestClient(srv).listAll(context.Background(), contactResource, nil)
	if err != nil {
		t.Fatalf("listAll: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6", len(records))
	}
	if len(requests) != 3 {
		t.Fatalf("got %d requests, want 3: %v", len(requests), requests)
	}
	if requests[1] != "2" || requests[2] != "4" {
		t.Errorf("offsets = %v, want advancing by page limit", requests)
	}
}

func TestClientPaginationTopLevel(t *testing.T) {
	// Some endpoints report offset/limit/total at the top level.
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, `{"stat": "ok", "offset": 0, "limit": 50, "total": 1,
			"monitors": [{"id": 1, "friendly_name": "www", "url": "https://e.com/", "type": 1}]}`)
	}))
	defer srv.Close()

	records, err := newTestClient(srv).listAll(context.Background(), monitorResource, nil)
	if err != nil {
		t.Fatalf("listAll: %v", err)
	}
	if len(records) != 1 || calls != 1 {
		t.Errorf("records = %d, calls = %d, want 1/1", len(records), calls)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "<html>not json</html>")
		}},
		{"api fail", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"stat": "fail", "error": {"type": "invalid_parameter", "message": "api_key is wrong"}}`)
		}},
		{"missing list", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"stat": "ok"}`)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newTestClient(srv).listAll(context.Background(), contactResource, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Method != "getAlertContacts" {
				t.Errorf("error method = %q", apiErr.Method)
			}
		})
	}
}

func TestClientDeleteSendsID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotID = r.PostForm.Get("id")
		fmt.Fprint(w, `{"stat": "ok"}`)
	}))
	defer srv.Close()

	if err := newTestClient(srv).delete(context.Background(), contactResource, "9876352"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotID != "9876352" {
		t.Errorf("id = %q, want 9876352", gotID)
	}
}

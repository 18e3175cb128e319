package urconf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// fakeServer emulates enough of the Uptime Robot v2 API for end-to-end
// sync tests: it keeps contacts and monitors in memory and serves all
// eight methods.
type fakeServer struct {
	t        *testing.T
	contacts []map[string]any
	monitors []map[string]any
	nextID   int
}

func (s *fakeServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("api_key") != "test-key" {
			fmt.Fprint(w, `{"stat": "fail", "error": {"message": "api_key is wrong"}}`)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, "/")
		switch method {
		case "getAlertContacts":
			s.list(w, "alert_contacts", s.contacts)
		case "getMonitors":
			s.list(w, "monitors", s.monitors)
		case "newAlertContact":
			s.contacts = append(s.contacts, s.newEntry(r, "value", "type", "friendly_name"))
			fmt.Fprintf(w, `{"stat": "ok", "alertcontact": {"id": "%d"}}`, s.nextID)
		case "newMonitor":
			s.monitors = append(s.monitors, s.newEntry(r, "friendly_name", "url", "type",
				"sub_type", "keyword_type", "keyword_value", "http_username", "http_password",
				"port", "interval", "alert_contacts"))
			fmt.Fprintf(w, `{"stat": "ok", "monitor": {"id": %d}}`, s.nextID)
		case "editAlertContact":
			s.edit(w, s.contacts, r, "value", "friendly_name")
		case "editMonitor":
			s.edit(w, s.monitors, r, "url", "interval", "alert_contacts")
		case "deleteAlertContact":
			s.contacts = s.remove(s.contacts, r.PostForm.Get("id"))
			fmt.Fprint(w, `{"stat": "ok"}`)
		case "deleteMonitor":
			s.monitors = s.remove(s.monitors, r.PostForm.Get("id"))
			fmt.Fprint(w, `{"stat": "ok"}`)
		default:
			s.t.Errorf("unexpected method %q", method)
			fmt.Fprint(w, `{"stat": "fail", "error": {"message": "unknown method"}}`)
		}
	}
}

func (s *fakeServer) newEntry(r *http.Request, fields ...string) map[string]any {
	s.nextID++
	entry := map[string]any{"id": strconv.Itoa(s.nextID)}
	for _, f := range fields {
		if v := r.PostForm.Get(f); v != "" {
			entry[f] = v
		}
	}
	return entry
}

func (s *fakeServer) edit(w http.ResponseWriter, entries []map[string]any, r *http.Request, fields ...string) {
	id := r.PostForm.Get("id")
	for _, e := range entries {
		if e["id"] == id {
			for _, f := range fields {
				if v := r.PostForm.Get(f); v != "" {
					e[f] = v
				}
			}
			fmt.Fprint(w, `{"stat": "ok"}`)
			return
		}
	}
	fmt.Fprint(w, `{"stat": "fail", "error": {"message": "not found"}}`)
}

func (s *fakeServer) remove(entries []map[string]any, id string) []map[string]any {
	out := entries[:0]
	for _, e := range entries {
		if e["id"] != id {
			out = append(out, e)
		}
	}
	return out
}

// list serializes entries, expanding the stored alert_contacts string back
// into the list-of-objects shape getMonitors returns.
func (s *fakeServer) list(w http.ResponseWriter, key string, entries []map[string]any) {
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := make(map[string]any, len(e))
		for k, v := range e {
			item[k] = v
		}
		if ac, ok := item["alert_contacts"].(string); ok {
			var list []map[string]any
			if ac != "" {
				for _, token := range strings.Split(ac, "-") {
					parts := strings.SplitN(token, "_", 3)
					threshold, _ := strconv.Atoi(parts[1])
					recurrence, _ := strconv.Atoi(parts[2])
					list = append(list, map[string]any{
						"id": parts[0], "threshold": threshold, "recurrence": recurrence,
					})
				}
			}
			item["alert_contacts"] = list
		}
		items = append(items, item)
	}
	resp := map[string]any{
		"stat":       "ok",
		"pagination": map[string]any{"offset": 0, "limit": 50, "total": len(items)},
		key:          items,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.t.Errorf("encode response: %v", err)
	}
}

func declareTestConfig(t *testing.T, u *UptimeRobot) {
	t.Helper()
	ops, err := u.EmailContact("ops@example.com", "ops")
	if err != nil {
		t.Fatalf("EmailContact: %v", err)
	}
	m, err := u.KeywordMonitor("www", "https://example.com/", "welcome")
	if err != nil {
		t.Fatalf("KeywordMonitor: %v", err)
	}
	if err := m.AddContacts(5, 10, ops); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	if _, err := u.PortMonitor("smtp", "mail.example.com", 25); err != nil {
		t.Fatalf("PortMonitor: %v", err)
	}
}

func TestEndToEndSync(t *testing.T) {
	fake := &fakeServer{t: t}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	u := New("test-key", WithBaseURL(srv.URL), WithLogger(logger))
	declareTestConfig(t, u)

	result, err := u.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Contacts.Created != 1 || result.Monitors.Created != 2 {
		t.Fatalf("first sync counts = %+v / %+v, want 1 contact and 2 monitors created",
			result.Contacts, result.Monitors)
	}
	if len(fake.contacts) != 1 || len(fake.monitors) != 2 {
		t.Fatalf("server state: %d contacts, %d monitors", len(fake.contacts), len(fake.monitors))
	}

	// The keyword monitor's association string must embed the contact's
	// server-assigned id.
	contactID := fake.contacts[0]["id"].(string)
	for _, m := range fake.monitors {
		if m["friendly_name"] != "www" {
			continue
		}
		want := contactID + "_5_10"
		if m["alert_contacts"] != want {
			t.Errorf("alert_contacts = %v, want %q", m["alert_contacts"], want)
		}
	}

	// A second sync of the same declarations must be a no-op.
	second, err := u.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if second.Mutations() != 0 {
		t.Errorf("second sync mutations = %d, want 0 (counts: %+v / %+v)",
			second.Mutations(), second.Contacts, second.Monitors)
	}
}

func TestEndToEndSyncFromFreshDeclarations(t *testing.T) {
	// Same declarations rebuilt from scratch against existing server state:
	// the reconciler must adopt the server ids rather than recreate.
	fake := &fakeServer{t: t}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	first := New("test-key", WithBaseURL(srv.URL))
	declareTestConfig(t, first)
	if _, err := first.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	second := New("test-key", WithBaseURL(srv.URL))
	declareTestConfig(t, second)
	result, err := second.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Mutations() != 0 {
		t.Errorf("mutations = %d, want 0 (counts: %+v / %+v)",
			result.Mutations(), result.Contacts, result.Monitors)
	}
}

func TestEndToEndBadAPIKey(t *testing.T) {
	fake := &fakeServer{t: t}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	u := New("wrong-key", WithBaseURL(srv.URL))
	if _, err := u.Sync(context.Background()); err == nil {
		t.Fatal("expected error for wrong api key")
	}
}

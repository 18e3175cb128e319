package urconf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// resourceKind names the API methods and response keys for one syncable
// resource. The reconciler is parameterized over it.
type resourceKind struct {
	name         string // used in logs and error messages
	listMethod   string
	listKey      string
	createMethod string
	createKey    string
	updateMethod string
	deleteMethod string
}

var (
	contactResource = resourceKind{
		name:         "contact",
		listMethod:   "getAlertContacts",
		listKey:      "alert_contacts",
		createMethod: "newAlertContact",
		createKey:    "alertcontact",
		updateMethod: "editAlertContact",
		deleteMethod: "deleteAlertContact",
	}
	monitorResource = resourceKind{
		name:         "monitor",
		listMethod:   "getMonitors",
		listKey:      "monitors",
		createMethod: "newMonitor",
		createKey:    "monitor",
		updateMethod: "editMonitor",
		deleteMethod: "deleteMonitor",
	}
)

// api is the remote collaborator contract the reconciler depends on.
// listAll must paginate transparently and return every record exactly once,
// in server order. create returns the server-assigned id as a string,
// preserving leading zeroes.
type api interface {
	listAll(ctx context.Context, res resourceKind, extra url.Values) ([]record, error)
	create(ctx context.Context, res resourceKind, params url.Values) (string, error)
	update(ctx context.Context, res resourceKind, id string, params url.Values) error
	delete(ctx context.Context, res resourceKind, id string) error
}

// apiClient implements api against the Uptime Robot v2 API: every call is a
// form-encoded POST carrying api_key and format=json.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newAPIClient(apiKey, baseURL string, httpClient *http.Client, limiter *rate.Limiter, logger *zap.Logger) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}
}

// post issues one API call and returns the decoded response object.
func (c *apiClient) post(ctx context.Context, method string, params url.Values) (record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &APIError{Method: method, Message: err.Error()}
	}

	form := url.Values{}
	for k, vs := range params {
		form[k] = append([]string(nil), vs...)
	}
	form.Set("api_key", c.apiKey)
	form.Set("format", "json")

	endpoint := c.baseURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &APIError{Method: method, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	timer := prometheusTimer(method)
	resp, err := c.http.Do(req)
	timer.ObserveDuration()
	if err != nil {
		apiRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, &APIError{Method: method, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		apiRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, &APIError{Method: method, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		apiRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, &APIError{Method: method, Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(body))}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data record
	if err := dec.Decode(&data); err != nil {
		apiRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, &APIError{Method: method, Message: fmt.Sprintf("decoding response: %v. got: %s", err, snippet(body))}
	}

	if stat, _ := data.str("stat"); stat != "ok" {
		apiRequestsTotal.WithLabelValues(method, "fail").Inc()
		return nil, &APIError{Method: method, Message: "returned error: " + apiErrorMessage(data)}
	}

	apiRequestsTotal.WithLabelValues(method, "ok").Inc()
	c.logger.Debug("api call", zap.String("method", method))
	return data, nil
}

// listAll fetches every record for a resource, following the offset/limit/
// total pagination window until the cumulative window covers the reported
// total. Both the nested "pagination" object and top-level pagination
// fields are understood.
func (c *apiClient) listAll(ctx context.Context, res resourceKind, extra url.Values) ([]record, error) {
	params := url.Values{}
	for k, vs := range extra {
		params[k] = append([]string(nil), vs...)
	}

	var out []record
	for {
		data, err := c.post(ctx, res.listMethod, params)
		if err != nil {
			return nil, err
		}

		items, ok := data[res.listKey].([]any)
		if !ok {
			return nil, &APIError{Method: res.listMethod, Message: fmt.Sprintf("response missing %q list", res.listKey)}
		}
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, &APIError{Method: res.listMethod, Message: fmt.Sprintf("unexpected element type %T in %q", item, res.listKey)}
			}
			out = append(out, record(obj))
		}

		page := data
		if p, ok := data["pagination"].(map[string]any); ok {
			page = record(p)
		}
		total, err := page.num("total")
		if err != nil {
			return nil, &APIError{Method: res.listMethod, Message: "pagination total: " + err.Error()}
		}
		offset, err := page.num("offset")
		if err != nil {
			return nil, &APIError{Method: res.listMethod, Message: "pagination offset: " + err.Error()}
		}
		limit, err := page.num("limit")
		if err != nil {
			return nil, &APIError{Method: res.listMethod, Message: "pagination limit: " + err.Error()}
		}
		if total <= offset+limit {
			break
		}
		params.Set("offset", strconv.Itoa(offset+limit))
	}
	return out, nil
}

func (c *apiClient) create(ctx context.Context, res resourceKind, params url.Values) (string, error) {
	data, err := c.post(ctx, res.createMethod, params)
	if err != nil {
		return "", err
	}
	obj, ok := data[res.createKey].(map[string]any)
	if !ok {
		return "", &APIError{Method: res.createMethod, Message: fmt.Sprintf("response missing %q object", res.createKey)}
	}
	id, err := record(obj).str("id")
	if err != nil || id == "" {
		return "", &APIError{Method: res.createMethod, Message: "response missing id"}
	}
	return id, nil
}

func (c *apiClient) update(ctx context.Context, res resourceKind, id string, params url.Values) error {
	p := url.Values{}
	for k, vs := range params {
		p[k] = append([]string(nil), vs...)
	}
	p.Set("id", id)
	_, err := c.post(ctx, res.updateMethod, p)
	return err
}

func (c *apiClient) delete(ctx context.Context, res resourceKind, id string) error {
	p := url.Values{}
	p.Set("id", id)
	_, err := c.post(ctx, res.deleteMethod, p)
	return err
}

// apiErrorMessage extracts a human-readable message from an error response.
// The API returns either {"error": {"type": ..., "message": ...}} or a bare
// string.
func apiErrorMessage(data record) string {
	switch e := data["error"].(type) {
	case string:
		return e
	case map[string]any:
		if msg, err := record(e).str("message"); err == nil && msg != "" {
			return msg
		}
		raw, _ := json.Marshal(e)
		return string(raw)
	}
	return "unknown error"
}

func snippet(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

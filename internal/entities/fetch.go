package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Request is one REST call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// String renders the request as "METHOD /path?query" with sorted query keys.
func (r Request) String() string {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	if len(r.Query) == 0 {
		return method + " " + r.Path
	}
	return method + " " + r.Path + "?" + r.Query.Encode()
}

// Fetcher performs REST calls and returns the decoded JSON body.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (any, error)
}

// HTTPError is a non-2xx REST response. Code and Message come from the
// WordPress error body when present.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// HTTPFetcher is a Fetcher over net/http. Concurrent identical GETs share
// one round trip.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	header  http.Header
	logger  *slog.Logger
	group   singleflight.Group
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithHeader adds a header to every request, e.g. an Authorization header.
func WithHeader(key, value string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.header.Add(key, value)
	}
}

// WithFetchLogger sets the logger for request diagnostics.
func WithFetchLogger(l *slog.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewHTTPFetcher creates a fetcher for the REST root baseURL, e.g.
// "https://example.org/wp-json".
func NewHTTPFetcher(baseURL string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  http.DefaultClient,
		header:  http.Header{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (any, error) {
	if req.Method == "" || req.Method == http.MethodGet {
		v, err, shared := f.group.Do(req.String(), func() (any, error) {
			return f.do(ctx, req)
		})
		if shared {
			f.logger.Debug("shared in-flight request", "request", req.String())
		}
		return v, err
	}
	return f.do(ctx, req)
}

func (f *HTTPFetcher) do(ctx context.Context, req Request) (any, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := f.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range f.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", req, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{StatusCode: resp.StatusCode}
		var wpErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &wpErr) == nil {
			herr.Code, herr.Message = wpErr.Code, wpErr.Message
		}
		return nil, herr
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: decode body: %w", req, err)
	}
	return out, nil
}

// queryValues merges an entity's base params with a caller query. Caller
// values win. Slices are joined with commas, as the REST API expects for
// _fields and include.
func queryValues(base map[string]string, query map[string]any) url.Values {
	vals := url.Values{}
	for k, v := range base {
		vals.Set(k, v)
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals.Set(k, formatParam(query[k]))
	}
	return vals
}

func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = formatParam(p)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

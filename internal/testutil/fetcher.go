package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/roach88/datastore/internal/entities"
)

// FakeFetcher serves canned responses keyed by "METHOD /path" and counts
// every request. Query strings are ignored for routing but recorded.
type FakeFetcher struct {
	mu        sync.Mutex
	responses map[string]any
	errors    map[string]error
	calls     map[string]int
	requests  []entities.Request
	hook      func(entities.Request)
}

// NewFakeFetcher creates a fetcher with no routes.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		responses: map[string]any{},
		errors:    map[string]error{},
		calls:     map[string]int{},
	}
}

// Respond registers the body returned for route. Bodies are passed through
// a JSON round trip, so callers see the same shapes a real response has.
func (f *FakeFetcher) Respond(route string, body any) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[route] = body
	delete(f.errors, route)
	return f
}

// Fail makes route return err.
func (f *FakeFetcher) Fail(route string, err error) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[route] = err
	return f
}

// OnFetch installs a hook called, without the lock held, before each response.
func (f *FakeFetcher) OnFetch(hook func(entities.Request)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

// Fetch implements entities.Fetcher.
func (f *FakeFetcher) Fetch(ctx context.Context, req entities.Request) (any, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	route := method + " " + req.Path

	f.mu.Lock()
	f.calls[route]++
	f.requests = append(f.requests, req)
	hook := f.hook
	body, ok := f.responses[route]
	err := f.errors[route]
	f.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &entities.HTTPError{StatusCode: http.StatusNotFound, Code: "rest_no_route", Message: route}
	}
	return roundTrip(body)
}

// Calls returns how many times route was requested.
func (f *FakeFetcher) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// Total returns the number of requests made.
func (f *FakeFetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of every request made, in order.
func (f *FakeFetcher) Requests() []entities.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Request(nil), f.requests...)
}

func roundTrip(body any) (any, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("fake response: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("fake response: %w", err)
	}
	return out, nil
}

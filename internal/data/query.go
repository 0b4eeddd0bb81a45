package data

import (
	"fmt"
	"math"
	"reflect"
)

// Status summarizes a query selector call.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusResolving Status = "RESOLVING"
	StatusSuccess   Status = "SUCCESS"
	StatusError     Status = "ERROR"
)

// QueryResponse is the result of one query selector call.
//
// Status is Resolving while in flight. Once finished it is Success when Data
// is truthy and Error when Data is falsy, so an empty result and a failed
// resolution both read as Error. Before the first resolution it is Idle.
type QueryResponse struct {
	Data        any
	Status      Status
	IsResolving bool
	HasResolved bool
}

// QuerySelectors wraps one store's selectors so each call reports its
// resolution status alongside the data.
type QuerySelectors struct {
	storeName string
	store     *Store
}

// Call runs the named selector, triggering its resolver as Selectors.Call does.
func (q *QuerySelectors) Call(name string, args ...any) (QueryResponse, error) {
	if q.store == nil {
		return QueryResponse{}, fmt.Errorf("%w: %s", ErrUnknownStore, q.storeName)
	}
	s := q.store
	if _, err := s.lookup(name); err != nil {
		return QueryResponse{}, err
	}

	isResolving := s.selectors.IsResolving(name, args...)
	hasResolved := !isResolving && s.selectors.HasFinishedResolution(name, args...)
	data, err := s.selectValue(name, args)
	if err != nil {
		return QueryResponse{}, err
	}

	status := StatusIdle
	switch {
	case isResolving:
		status = StatusResolving
	case hasResolved && Truthy(data):
		status = StatusSuccess
	case hasResolved:
		status = StatusError
	}

	return QueryResponse{
		Data:        data,
		Status:      status,
		IsResolving: isResolving,
		HasResolved: hasResolved,
	}, nil
}

// QueryFunc returns the query selectors of a store by name. Unknown stores
// yield selectors whose calls return ErrUnknownStore.
type QueryFunc func(storeName string) *QuerySelectors

// QuerySelect runs mapQuery against the registry's query facade.
func QuerySelect[T any](r *Registry, mapQuery func(query QueryFunc, r *Registry) (T, error)) (T, error) {
	query := func(storeName string) *QuerySelectors {
		s, _ := r.Store(storeName)
		return &QuerySelectors{storeName: storeName, store: s}
	}
	return mapQuery(query, r)
}

// Truthy reports whether v counts as present data: nil, false, zero numbers,
// the empty string and nil pointers, maps and slices are falsy. Empty but
// non-nil maps and slices are truthy.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}

package data

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datastore/internal/testutil"
)

func newQueryRegistry(t *testing.T, fetch func(context.Context) ([]string, error)) (*Registry, *testutil.ManualScheduler) {
	t.Helper()
	sched := testutil.NewManualScheduler()
	reg := NewRegistry(WithScheduler(sched))
	_, err := reg.Register("core", widgetsConfig(fetch))
	require.NoError(t, err)
	return reg, sched
}

func queryWidgets(reg *Registry) (QueryResponse, error) {
	return QuerySelect(reg, func(query QueryFunc, _ *Registry) (QueryResponse, error) {
		return query("core").Call("getWidgets")
	})
}

func TestQuerySelect_StatusLifecycle(t *testing.T) {
	var reg *Registry
	var during QueryResponse
	reg, sched := newQueryRegistry(t, func(context.Context) ([]string, error) {
		var err error
		during, err = queryWidgets(reg)
		if err != nil {
			return nil, err
		}
		return []string{"a"}, nil
	})

	// The first call reads state before its resolver has started.
	resp, err := queryWidgets(reg)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, resp.Status)
	assert.False(t, resp.IsResolving)
	assert.False(t, resp.HasResolved)
	assert.Equal(t, []string{}, resp.Data)

	sched.Flush()
	assert.Equal(t, StatusResolving, during.Status)
	assert.True(t, during.IsResolving)
	assert.False(t, during.HasResolved)

	resp, err = queryWidgets(reg)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.True(t, resp.HasResolved)
	assert.False(t, resp.IsResolving)
	assert.Equal(t, []string{"a"}, resp.Data)
}

func TestQuerySelect_FailedResolutionWithTruthyData(t *testing.T) {
	reg, sched := newQueryRegistry(t, func(context.Context) ([]string, error) {
		return nil, errors.New("boom")
	})

	_, _ = queryWidgets(reg)
	sched.Flush()

	resp, err := queryWidgets(reg)
	require.NoError(t, err)
	assert.True(t, resp.HasResolved)
	assert.Equal(t, StatusSuccess, resp.Status, "an empty non-nil list is truthy")
}

func TestQuerySelect_PlainSelectorStaysIdle(t *testing.T) {
	reg, _ := newQueryRegistry(t, countingFetch(new(atomic.Int32), "a"))

	resp, err := QuerySelect(reg, func(query QueryFunc, _ *Registry) (QueryResponse, error) {
		return query("core").Call("countWidgets")
	})
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, resp.Status)
	assert.Equal(t, 0, resp.Data)
}

func TestQuerySelect_FinishedWithFalsyDataIsError(t *testing.T) {
	sched := testutil.NewManualScheduler()
	reg := NewRegistry(WithScheduler(sched))
	_, err := reg.Register("values", valueConfig(func(context.Context, string) (any, error) {
		return 0, nil
	}))
	require.NoError(t, err)

	get := func() (QueryResponse, error) {
		return QuerySelect(reg, func(query QueryFunc, _ *Registry) (QueryResponse, error) {
			return query("values").Call("getValue", "zero")
		})
	}
	_, _ = get()
	sched.Flush()

	resp, err := get()
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, 0, resp.Data)
	assert.True(t, resp.HasResolved)
}

func TestQuerySelect_UnknownStore(t *testing.T) {
	reg := NewRegistry()

	_, err := QuerySelect(reg, func(query QueryFunc, _ *Registry) (QueryResponse, error) {
		return query("nope").Call("getWidgets")
	})
	require.ErrorIs(t, err, ErrUnknownStore)
}

func TestQuerySelect_MapsMultipleStores(t *testing.T) {
	reg, sched := newQueryRegistry(t, countingFetch(new(atomic.Int32), "a", "b"))
	_, err := reg.Register("values", valueConfig(func(_ context.Context, key string) (any, error) {
		return key, nil
	}))
	require.NoError(t, err)

	type view struct {
		widgets any
		value   any
		ready   bool
	}
	run := func() (view, error) {
		return QuerySelect(reg, func(query QueryFunc, _ *Registry) (view, error) {
			w, err := query("core").Call("getWidgets")
			if err != nil {
				return view{}, err
			}
			v, err := query("values").Call("getValue", "k")
			if err != nil {
				return view{}, err
			}
			return view{widgets: w.Data, value: v.Data, ready: w.HasResolved && v.HasResolved}, nil
		})
	}

	first, err := run()
	require.NoError(t, err)
	assert.False(t, first.ready)

	// Both stores inherit the registry's scheduler.
	assert.Equal(t, 2, sched.Flush())

	final, err := run()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, final.widgets)
	assert.Equal(t, "k", final.value)
	assert.True(t, final.ready)
}

func TestTruthy(t *testing.T) {
	var nilPtr *listState
	var nilMap map[string]any
	var nilSlice []string

	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"zero int", 0, false},
		{"int", 3, true},
		{"zero uint", uint(0), false},
		{"zero float", 0.0, false},
		{"nan", math.NaN(), false},
		{"float", 0.5, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"nil pointer", nilPtr, false},
		{"pointer", &listState{}, true},
		{"nil map", nilMap, false},
		{"empty map", map[string]any{}, true},
		{"nil slice", nilSlice, false},
		{"empty slice", []string{}, true},
		{"struct", struct{}{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.v))
		})
	}
}

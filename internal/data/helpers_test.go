package data

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/datastore/internal/testutil"
)

type listState struct {
	items []string
}

type valueState struct {
	values map[string]any
}

const (
	actionReceiveWidgets = "RECEIVE_WIDGETS"
	actionReceiveValue   = "RECEIVE_VALUE"
	actionNoop           = "NOOP"
)

// widgetsConfig builds a store with one resolved selector, getWidgets,
// backed by fetch.
func widgetsConfig(fetch func(ctx context.Context) ([]string, error)) Config {
	return Config{
		Reducer: func(state any, a Action) any {
			st, _ := state.(*listState)
			if st == nil {
				st = &listState{items: []string{}}
			}
			if a.Type == actionReceiveWidgets {
				return &listState{items: a.Payload.([]string)}
			}
			return st
		},
		Selectors: map[string]Selector{
			"getWidgets": {
				Select: func(state any, _ ...any) any {
					return state.(*listState).items
				},
				Resolver: ResolverFunc(func(ctx context.Context, _ ...any) (Dispatchable, error) {
					items, err := fetch(ctx)
					if err != nil {
						return nil, err
					}
					return Action{Type: actionReceiveWidgets, Payload: items}, nil
				}),
			},
			"countWidgets": {
				Select: func(state any, _ ...any) any {
					return len(state.(*listState).items)
				},
			},
		},
		Actions: map[string]ActionCreator{
			"receiveWidgets": func(args ...any) Dispatchable {
				return Action{Type: actionReceiveWidgets, Payload: args[0].([]string)}
			},
		},
	}
}

// valueConfig builds a store with a keyed value selector, getValue(key),
// whose resolver is resolve.
func valueConfig(resolve func(ctx context.Context, key string) (any, error)) Config {
	return Config{
		Reducer: func(state any, a Action) any {
			st, _ := state.(*valueState)
			if st == nil {
				st = &valueState{values: map[string]any{}}
			}
			if a.Type != actionReceiveValue {
				return st
			}
			p := a.Payload.([2]any)
			next := make(map[string]any, len(st.values)+1)
			for k, v := range st.values {
				next[k] = v
			}
			next[p[0].(string)] = p[1]
			return &valueState{values: next}
		},
		Selectors: map[string]Selector{
			"getValue": {
				Select: func(state any, args ...any) any {
					return state.(*valueState).values[args[0].(string)]
				},
				Resolver: ResolverFunc(func(ctx context.Context, args ...any) (Dispatchable, error) {
					key := args[0].(string)
					v, err := resolve(ctx, key)
					if err != nil {
						return nil, err
					}
					return Action{Type: actionReceiveValue, Payload: [2]any{key, v}}, nil
				}),
			},
		},
	}
}

func newManualStore(t *testing.T, cfg Config, opts ...Option) (*Store, *testutil.ManualScheduler) {
	t.Helper()
	sched := testutil.NewManualScheduler()
	s, err := NewStore("test", cfg, append([]Option{WithScheduler(sched)}, opts...)...)
	require.NoError(t, err)
	return s, sched
}

func countingFetch(calls *atomic.Int32, items ...string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		calls.Add(1)
		return items, nil
	}
}

// recordingObserver keeps every event for assertions.
type recordingObserver struct {
	mu     sync.Mutex
	starts []*ResolutionStartEvent
	ends   []*ResolutionEndEvent
	skips  []*ResolutionSkipEvent
	invals []*InvalidateEvent
}

func (o *recordingObserver) OnResolutionStart(_ context.Context, e *ResolutionStartEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, e)
}

func (o *recordingObserver) OnResolutionEnd(_ context.Context, e *ResolutionEndEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ends = append(o.ends, e)
}

func (o *recordingObserver) OnResolutionSkip(_ context.Context, e *ResolutionSkipEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skips = append(o.skips, e)
}

func (o *recordingObserver) OnInvalidate(_ context.Context, e *InvalidateEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invals = append(o.invals, e)
}

package data

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSelectors_SettlesAfterResolution(t *testing.T) {
	s, err := NewStore("test", valueConfig(func(context.Context, string) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return 42, nil
	}))
	require.NoError(t, err)

	p := s.ResolveSelectors().Call("getValue", "answer")
	assert.False(t, p.Settled())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, p.Settled())
}

func TestResolveSelectors_RejectsWithStoredError(t *testing.T) {
	boom := errors.New("boom")
	s, sched := newManualStore(t, valueConfig(func(context.Context, string) (any, error) {
		return nil, boom
	}))

	p := s.ResolveSelectors().Call("getValue", "x")
	assert.False(t, p.Settled())
	sched.Flush()

	require.True(t, p.Settled())
	_, err := p.Wait(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestResolveSelectors_RejectsWithResolverPanic(t *testing.T) {
	s, sched := newManualStore(t, valueConfig(func(context.Context, string) (any, error) {
		panic("kaboom")
	}))

	p := s.ResolveSelectors().Call("getValue", "x")
	sched.Flush()

	_, err := p.Wait(context.Background())
	assert.True(t, IsResolverPanic(err))
}

func TestResolveSelectors_FailureWithoutErrorRejects(t *testing.T) {
	s, _ := newManualStore(t, valueConfig(func(context.Context, string) (any, error) { return nil, nil }))
	ctx := context.Background()
	require.NoError(t, s.Actions().StartResolution(ctx, "getValue", []any{"x"}))

	p := s.ResolveSelectors().Call("getValue", "x")
	require.NoError(t, s.Actions().FailResolution(ctx, "getValue", []any{"x"}, nil))

	_, err := p.Wait(ctx)
	require.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolveSelectors_PlainSelectorSettlesImmediately(t *testing.T) {
	s, _ := newManualStore(t, widgetsConfig(countingFetch(new(atomic.Int32))))

	p := s.ResolveSelectors().Call("countWidgets")
	require.True(t, p.Settled())
	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestResolveSelectors_PlainSelectorPanicRejects(t *testing.T) {
	cfg := widgetsConfig(countingFetch(new(atomic.Int32)))
	cfg.Selectors["explode"] = Selector{Select: func(any, ...any) any { panic("bad selector") }}
	s, _ := newManualStore(t, cfg)

	p := s.ResolveSelectors().Call("explode")
	require.True(t, p.Settled())
	_, err := p.Wait(context.Background())
	var spe *SelectorPanicError
	require.ErrorAs(t, err, &spe)
	assert.Equal(t, "explode", spe.Selector)
}

func TestResolveSelectors_AlreadyFinished(t *testing.T) {
	var calls atomic.Int32
	s, sched := newManualStore(t, widgetsConfig(countingFetch(&calls, "a")))

	_, _ = s.Selectors().Call("getWidgets")
	sched.Flush()

	p := s.ResolveSelectors().Call("getWidgets")
	require.True(t, p.Settled())
	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveSelectors_FulfilledSettlesWithCurrentValue(t *testing.T) {
	cfg := widgetsConfig(countingFetch(new(atomic.Int32), "fetched"))
	cfg.Selectors["getWidgets"].Resolver.IsFulfilled = func(state any, _ ...any) bool {
		return len(state.(*listState).items) > 0
	}
	s, sched := newManualStore(t, cfg)
	require.NoError(t, s.Actions().Call(context.Background(), "receiveWidgets", []string{"local"}))

	p := s.ResolveSelectors().Call("getWidgets")
	require.True(t, p.Settled())
	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, v)
	assert.Equal(t, 0, sched.Pending())
}

func TestResolveSelectors_SharedResolution(t *testing.T) {
	var calls atomic.Int32
	s, sched := newManualStore(t, widgetsConfig(countingFetch(&calls, "a")))

	p1 := s.ResolveSelectors().Call("getWidgets")
	p2 := s.ResolveSelectors().Call("getWidgets")
	sched.Flush()

	v1, err := p1.Wait(context.Background())
	require.NoError(t, err)
	v2, err := p2.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveSelectors_UnknownSelector(t *testing.T) {
	s, _ := newManualStore(t, widgetsConfig(countingFetch(new(atomic.Int32))))

	_, err := s.ResolveSelectors().Call("missing").Wait(context.Background())
	require.ErrorIs(t, err, ErrUnknownSelector)
}

func TestPromise_WaitHonoursContext(t *testing.T) {
	s, _ := newManualStore(t, widgetsConfig(countingFetch(new(atomic.Int32))))
	p := s.ResolveSelectors().Call("getWidgets")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, p.Settled())
}

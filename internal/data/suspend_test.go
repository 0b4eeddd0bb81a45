package data

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuspendSelectors_SuspendsUntilFinished(t *testing.T) {
	s, sched := newManualStore(t, widgetsConfig(countingFetch(new(atomic.Int32), "a")))
	sus := s.SuspendSelectors()

	_, err := sus.Call("getWidgets")
	require.Error(t, err)
	require.True(t, IsSuspended(err))

	var se *SuspendedError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "getWidgets", se.Selector)
	select {
	case <-se.Done():
		t.Fatal("suspension released before the resolution finished")
	default:
	}

	sched.Flush()
	select {
	case <-se.Done():
	case <-time.After(time.Second):
		t.Fatal("suspension not released")
	}

	v, err := sus.Call("getWidgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)
}

// A selector that is slow to read state must never hand back a value that
// predates the finished resolution.
func TestSuspendSelectors_ValueMatchesFinishedResolution(t *testing.T) {
	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }

	cfg := widgetsConfig(func(ctx context.Context) ([]string, error) {
		select {
		case <-release:
			return []string{"a", "b"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	var slowed atomic.Bool
	sel := cfg.Selectors["getWidgets"]
	sel.Select = func(state any, _ ...any) any {
		items := state.(*listState).items
		if slowed.CompareAndSwap(false, true) {
			unblock()
			time.Sleep(50 * time.Millisecond)
		}
		return items
	}
	cfg.Selectors["getWidgets"] = sel

	s, err := NewStore("test", cfg, WithScheduler(GoScheduler{}))
	require.NoError(t, err)
	sus := s.SuspendSelectors()

	v, err := sus.Call("getWidgets")
	if err == nil {
		assert.Equal(t, []string{"a", "b"}, v)
		return
	}
	var se *SuspendedError
	require.ErrorAs(t, err, &se)
	unblock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, se.Wait(ctx))

	v, err = sus.Call("getWidgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestSuspendSelectors_ReturnsStoredError(t *testing.T) {
	boom := errors.New("boom")
	s, sched := newManualStore(t, widgetsConfig(func(context.Context) ([]string, error) { return nil, boom }))

	_, err := s.SuspendSelectors().Call("getWidgets")
	require.True(t, IsSuspended(err))
	sched.Flush()

	_, err = s.SuspendSelectors().Call("getWidgets")
	require.ErrorIs(t, err, boom)
	assert.False(t, IsSuspended(err))
}

func TestSuspendSelectors_PlainSelector(t *testing.T) {
	s, _ := newManualStore(t, widgetsConfig(countingFetch(new(atomic.Int32))))

	v, err := s.SuspendSelectors().Call("countWidgets")
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestSuspendSelectors_WaitHonoursContext(t *testing.T) {
	s, _ := newManualStore(t, widgetsConfig(countingFetch(new(atomic.Int32))))

	_, err := s.SuspendSelectors().Call("getWidgets")
	var se *SuspendedError
	require.ErrorAs(t, err, &se)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, se.Wait(ctx), context.DeadlineExceeded)
}

func TestSuspendSelectors_UnknownSelector(t *testing.T) {
	s, _ := newManualStore(t, widgetsConfig(countingFetch(new(atomic.Int32))))

	_, err := s.SuspendSelectors().Call("missing")
	require.ErrorIs(t, err, ErrUnknownSelector)
}

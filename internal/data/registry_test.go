package data

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datastore/internal/testutil"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry(WithScheduler(testutil.NewManualScheduler()))

	s, err := reg.Register("core", widgetsConfig(countingFetch(new(atomic.Int32))))
	require.NoError(t, err)
	assert.Equal(t, "core", s.Name())

	got, ok := reg.Store("core")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, err = reg.Register("core", widgetsConfig(countingFetch(new(atomic.Int32))))
	require.ErrorIs(t, err, ErrStoreExists)

	_, err = reg.Register("values", valueConfig(func(context.Context, string) (any, error) { return nil, nil }))
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "values"}, reg.Names())
}

func TestRegistry_UnknownStore(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Select("missing")
	require.ErrorIs(t, err, ErrUnknownStore)
	_, err = reg.ResolveSelect("missing")
	require.ErrorIs(t, err, ErrUnknownStore)
	_, err = reg.SuspendSelect("missing")
	require.ErrorIs(t, err, ErrUnknownStore)
	require.ErrorIs(t, reg.Dispatch(context.Background(), "missing", "x"), ErrUnknownStore)
}

func TestRegistry_InvalidConfigIsNotRegistered(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Register("bad", Config{})
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Empty(t, reg.Names())
}

func TestRegistry_IndependentRegistriesShareNothing(t *testing.T) {
	var calls atomic.Int32
	fetch := countingFetch(&calls, "a")
	s1 := testutil.NewManualScheduler()
	s2 := testutil.NewManualScheduler()
	r1 := NewRegistry(WithScheduler(s1))
	r2 := NewRegistry(WithScheduler(s2))
	_, err := r1.Register("core", widgetsConfig(fetch))
	require.NoError(t, err)
	_, err = r2.Register("core", widgetsConfig(fetch))
	require.NoError(t, err)

	sel1, err := r1.Select("core")
	require.NoError(t, err)
	_, _ = sel1.Call("getWidgets")
	s1.Flush()

	sel2, err := r2.Select("core")
	require.NoError(t, err)
	v, err := sel2.Call("getWidgets")
	require.NoError(t, err)
	assert.Equal(t, []string{}, v)
	assert.Equal(t, 1, s2.Pending())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistry_StoreOptionsOverrideDefaults(t *testing.T) {
	regSched := testutil.NewManualScheduler()
	storeSched := testutil.NewManualScheduler()
	reg := NewRegistry(WithScheduler(regSched))

	s, err := reg.Register("core", widgetsConfig(countingFetch(new(atomic.Int32))), WithScheduler(storeSched))
	require.NoError(t, err)

	_, _ = s.Selectors().Call("getWidgets")
	assert.Equal(t, 0, regSched.Pending())
	assert.Equal(t, 1, storeSched.Pending())
}

func TestRegistry_DispatchAndSubscribe(t *testing.T) {
	reg := NewRegistry(WithScheduler(testutil.NewManualScheduler()))
	_, err := reg.Register("a", widgetsConfig(countingFetch(new(atomic.Int32))))
	require.NoError(t, err)
	_, err = reg.Register("b", widgetsConfig(countingFetch(new(atomic.Int32))))
	require.NoError(t, err)

	var notified atomic.Int32
	unsubscribe := reg.Subscribe(func() { notified.Add(1) })
	ctx := context.Background()

	require.NoError(t, reg.Dispatch(ctx, "a", "receiveWidgets", []string{"x"}))
	require.NoError(t, reg.Dispatch(ctx, "b", "receiveWidgets", []string{"y"}))
	assert.Equal(t, int32(2), notified.Load())

	unsubscribe()
	require.NoError(t, reg.Dispatch(ctx, "a", "receiveWidgets", []string{"z"}))
	assert.Equal(t, int32(2), notified.Load())

	require.ErrorIs(t, reg.Dispatch(ctx, "a", "nope"), ErrUnknownAction)
}

func TestRegistry_ThunkSeesRegistry(t *testing.T) {
	reg := NewRegistry(WithScheduler(testutil.NewManualScheduler()))
	_, err := reg.Register("source", widgetsConfig(countingFetch(new(atomic.Int32))))
	require.NoError(t, err)

	cfg := widgetsConfig(countingFetch(new(atomic.Int32)))
	cfg.Actions["copyFromSource"] = func(...any) Dispatchable {
		return Thunk(func(ctx context.Context, ta *ThunkArgs) error {
			src, err := ta.Registry.Select("source")
			if err != nil {
				return err
			}
			items, err := src.Call("getWidgets")
			if err != nil {
				return err
			}
			return ta.Dispatch(ctx, Action{Type: actionReceiveWidgets, Payload: items})
		})
	}
	dst, err := reg.Register("dest", cfg)
	require.NoError(t, err)

	require.NoError(t, reg.Dispatch(context.Background(), "source", "receiveWidgets", []string{"copied"}))
	require.NoError(t, reg.Dispatch(context.Background(), "dest", "copyFromSource"))
	assert.Equal(t, []string{"copied"}, dst.GetState().(*listState).items)
}

func TestRegistry_LoggerOption(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := NewRegistry(WithLogger(logger))

	_, err := reg.Register("core", widgetsConfig(countingFetch(new(atomic.Int32))))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "store created")
	assert.Contains(t, buf.String(), "store=core")
}

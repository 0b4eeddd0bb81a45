package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/datastore/internal/data"
	"github.com/roach88/datastore/internal/entities"
	"github.com/roach88/datastore/internal/ir"
	"github.com/roach88/datastore/internal/metadata"
	"github.com/roach88/datastore/internal/testutil"
)

// DefaultResolveTimeout bounds how long a resolve step waits for its promise.
const DefaultResolveTimeout = 2 * time.Second

// Harness runs one scenario against a fresh entity store. Resolver tasks
// only run when a step ticks, so every run produces the same trace.
type Harness struct {
	store  *data.Store
	sched  *testutil.ManualScheduler
	fetch  *testutil.FakeFetcher
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger         *slog.Logger
	resolveTimeout time.Duration
}

// WithLogger routes store and harness logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithResolveTimeout overrides DefaultResolveTimeout.
func WithResolveTimeout(d time.Duration) Option {
	return func(o *runOptions) {
		if d > 0 {
			o.resolveTimeout = d
		}
	}
}

// Run executes a scenario and returns its result. Step expectations and
// assertions that do not hold are reported in the result; the error return
// is for scenarios that cannot be set up.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		resolveTimeout: DefaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	table, err := loadTable(scenario)
	if err != nil {
		return nil, err
	}

	fetch := testutil.NewFakeFetcher()
	for _, fx := range scenario.Fixtures {
		switch {
		case fx.Status != 0:
			fetch.Fail(fx.Route, &entities.HTTPError{StatusCode: fx.Status, Code: fx.Error, Message: http.StatusText(fx.Status)})
		case fx.Error != "":
			fetch.Fail(fx.Route, errors.New(fx.Error))
		default:
			fetch.Respond(fx.Route, fx.Body)
		}
	}

	cfg, err := entities.StoreConfig(table, fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to build entity store: %w", err)
	}

	result := NewResult()
	clock := testutil.NewDeterministicClock()
	cfg.Middleware = append(cfg.Middleware, traceMiddleware(clock, result))

	sched := testutil.NewManualScheduler()
	reg := data.NewRegistry(
		data.WithScheduler(sched),
		data.WithLogger(o.logger),
		data.WithRunIDGenerator(testutil.NewSequentialRunIDs("")),
	)
	store, err := reg.Register(entities.StoreName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to register entity store: %w", err)
	}

	h := &Harness{
		store:  store,
		sched:  sched,
		fetch:  fetch,
		clock:  clock,
		logger: o.logger.With("scenario", scenario.Name),
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step, result, o.resolveTimeout); err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: %v", i, step.Kind(), step.target(), err))
		}
	}

	actx := &AssertionContext{Store: store, Fetcher: fetch}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"pass", result.Pass,
		"steps", len(scenario.Steps),
		"fetches", fetch.Total(),
	)
	return result, nil
}

func loadTable(scenario *Scenario) ([]entities.Entity, error) {
	if path := scenario.EntitiesPath(); path != "" {
		table, err := entities.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load entities: %w", err)
		}
		return table, nil
	}
	return entities.Default()
}

func (h *Harness) executeStep(ctx context.Context, step Step, result *Result, timeout time.Duration) error {
	args := step.Args
	seq := h.clock.Next()

	switch step.Kind() {
	case StepTick:
		result.addStep(StepTick, nil, seq)
		for range step.Tick {
			h.sched.Tick()
		}
		return nil

	case StepFlush:
		result.addStep(StepFlush, nil, seq)
		h.sched.Flush()
		return nil

	case StepSelect:
		result.addStep(StepSelect+" "+step.Select, args, seq)
		v, err := h.store.Selectors().Call(step.Select, args...)
		return checkExpect(step.Expect, v, err)

	case StepResolve:
		result.addStep(StepResolve+" "+step.Resolve, args, seq)
		p := h.store.ResolveSelectors().Call(step.Resolve, args...)
		h.sched.Flush()
		wctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		v, err := p.Wait(wctx)
		return checkExpect(step.Expect, v, err)

	case StepDispatch:
		result.addStep(StepDispatch+" "+step.Dispatch, args, seq)
		err := h.store.Actions().Call(ctx, step.Dispatch, args...)
		return checkExpect(step.Expect, nil, err)
	}
	return fmt.Errorf("invalid step")
}

// checkExpect compares a step outcome with its expectation. Without an
// expectation any error fails the step.
func checkExpect(want *Expect, got any, err error) error {
	if want == nil {
		return err
	}
	if want.Error != "" {
		if err == nil {
			return fmt.Errorf("expected error containing %q, got none", want.Error)
		}
		if !strings.Contains(err.Error(), want.Error) {
			return fmt.Errorf("expected error containing %q, got %q", want.Error, err.Error())
		}
		return nil
	}
	if err != nil {
		return err
	}

	if want.Nil && !isNilValue(got) {
		return fmt.Errorf("expected nil, got %v", got)
	}
	if want.Len != nil {
		n, ok := lengthOf(got)
		if !ok {
			return fmt.Errorf("expected a list of length %d, got %T", *want.Len, got)
		}
		if n != *want.Len {
			return fmt.Errorf("expected length %d, got %d", *want.Len, n)
		}
	}
	if want.Value != nil {
		if err := matchValue(got, want.Value); err != nil {
			return err
		}
	}
	return nil
}

// traceMiddleware appends every action that reaches the store to the
// result trace. Batches and thunks are not recorded themselves; the actions
// they dispatch are.
func traceMiddleware(clock *testutil.DeterministicClock, result *Result) data.Middleware {
	return func(_ *data.Store, next data.DispatchFunc) data.DispatchFunc {
		return func(ctx context.Context, d data.Dispatchable) error {
			if action, ok := d.(data.Action); ok {
				result.addAction(describeAction(action, clock.Next()))
			}
			return next(ctx, d)
		}
	}
}

func describeAction(a data.Action, seq int64) TraceEvent {
	ev := TraceEvent{Name: a.Type, Seq: seq}
	switch p := a.Payload.(type) {
	case metadata.Resolution:
		ev.Selector = p.SelectorName
		ev.Args = ir.TrimArgs(p.Args)
		if p.Error != nil {
			ev.Detail = p.Error.Error()
		}
	case metadata.Resolutions:
		ev.Selector = p.SelectorName
		ev.Detail = fmt.Sprintf("%d resolutions", len(p.ArgsList))
	case metadata.SelectorRef:
		ev.Selector = p.SelectorName
	case entities.ReceiveItems:
		ev.Detail = fmt.Sprintf("%s/%s items=%d", p.Kind, p.Name, len(p.Items))
		if p.InvalidateCache {
			ev.Detail += " invalidate"
		}
	case entities.RemoveItems:
		ev.Detail = fmt.Sprintf("%s/%s keys=%d", p.Kind, p.Name, len(p.Keys))
		if p.InvalidateCache {
			ev.Detail += " invalidate"
		}
	}
	return ev
}

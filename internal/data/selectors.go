package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/datastore/internal/ir"
	"github.com/roach88/datastore/internal/metadata"
)

// Selectors exposes a store's enriched selectors and its resolution
// metadata selectors.
type Selectors struct {
	store *Store
}

// Call runs the named selector against current state and returns its value
// immediately. If the selector has a resolver that has not yet been started
// for these arguments, the resolver is scheduled.
//
// The error is non-nil only for unknown selectors, arguments that cannot be
// keyed, or a closed scheduler. Resolver failures are never returned here.
// A panicking selector function panics the caller.
func (sel *Selectors) Call(name string, args ...any) (any, error) {
	return sel.store.selectValue(name, args)
}

// Has reports whether the selector exists.
func (sel *Selectors) Has(name string) bool {
	_, ok := sel.store.bound[name]
	return ok
}

// HasResolver reports whether the selector is paired with a resolver.
func (sel *Selectors) HasResolver(name string) bool {
	b, ok := sel.store.bound[name]
	return ok && b.kind == resolvedSelector
}

// Names returns the selector names in sorted order.
func (sel *Selectors) Names() []string {
	names := make([]string, 0, len(sel.store.bound))
	for n := range sel.store.bound {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsResolving reports whether the resolution of name/args is in flight.
func (sel *Selectors) IsResolving(name string, args ...any) bool {
	return metadata.IsResolving(sel.store.metadataState(), name, args)
}

// GetIsResolving reports whether the resolution is in flight, and whether
// it has started at all.
func (sel *Selectors) GetIsResolving(name string, args ...any) (resolving, started bool) {
	return metadata.GetIsResolving(sel.store.metadataState(), name, args)
}

// HasStartedResolution reports whether any resolution status is recorded.
func (sel *Selectors) HasStartedResolution(name string, args ...any) bool {
	return metadata.HasStartedResolution(sel.store.metadataState(), name, args)
}

// HasFinishedResolution reports whether the resolution ended, successfully or not.
func (sel *Selectors) HasFinishedResolution(name string, args ...any) bool {
	return metadata.HasFinishedResolution(sel.store.metadataState(), name, args)
}

// HasResolutionFailed reports whether the resolution ended with an error.
func (sel *Selectors) HasResolutionFailed(name string, args ...any) bool {
	return metadata.HasResolutionFailed(sel.store.metadataState(), name, args)
}

// GetResolutionError returns the error stored by a failed resolution.
func (sel *Selectors) GetResolutionError(name string, args ...any) error {
	return metadata.GetResolutionError(sel.store.metadataState(), name, args)
}

// GetResolutionState returns the full metadata entry.
func (sel *Selectors) GetResolutionState(name string, args ...any) (metadata.Entry, bool) {
	return metadata.GetResolutionState(sel.store.metadataState(), name, args)
}

// GetCachedResolvers returns a copy of the whole resolution metadata map.
func (sel *Selectors) GetCachedResolvers() map[string]map[string]metadata.Entry {
	return metadata.GetCachedResolvers(sel.store.metadataState())
}

func (s *Store) lookup(name string) (*boundSelector, error) {
	b, ok := s.bound[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownSelector, s.name, name)
	}
	return b, nil
}

func (s *Store) selectValue(name string, args []any) (any, error) {
	b, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if b.kind == resolvedSelector {
		if _, err := s.trigger(b, args); err != nil {
			return nil, err
		}
	}
	return b.fn(s.GetState(), args...), nil
}

// triggerOutcome describes what a selector call did about its resolver.
type triggerOutcome int

const (
	triggerScheduled triggerOutcome = iota
	triggerSkippedRunning
	triggerSkippedFulfilled
	triggerSkippedStarted
)

// trigger schedules the resolver for b/args unless it is already scheduled,
// declared fulfilled, or already started. The check-and-mark is atomic.
func (s *Store) trigger(b *boundSelector, args []any) (triggerOutcome, error) {
	key, err := ir.ArgsKey(args)
	if err != nil {
		return 0, fmt.Errorf("selector %q: %w", b.name, err)
	}
	ctx := context.Background()

	if s.cache.isRunning(b.name, key) {
		s.opts.observer.OnResolutionSkip(ctx, &ResolutionSkipEvent{Store: s.name, Selector: b.name, ArgsKey: key, Reason: SkipRunning})
		return triggerSkippedRunning, nil
	}
	if fn := b.resolver.IsFulfilled; fn != nil && fn(s.GetState(), args...) {
		s.opts.observer.OnResolutionSkip(ctx, &ResolutionSkipEvent{Store: s.name, Selector: b.name, ArgsKey: key, Reason: SkipFulfilled})
		return triggerSkippedFulfilled, nil
	}

	marked, reason := s.cache.tryMark(b.name, key, func() bool {
		_, started := s.metadataState().LookupKey(b.name, key)
		return started
	})
	if !marked {
		if reason == SkipStarted {
			return triggerSkippedStarted, nil
		}
		s.opts.observer.OnResolutionSkip(ctx, &ResolutionSkipEvent{Store: s.name, Selector: b.name, ArgsKey: key, Reason: reason})
		return triggerSkippedRunning, nil
	}

	if !s.opts.scheduler.Schedule(func() { s.runResolver(b, args, key) }) {
		s.cache.clear(b.name, key)
		return 0, fmt.Errorf("selector %q: %w", b.name, ErrSchedulerClosed)
	}
	return triggerScheduled, nil
}

// runResolver is the deferred half of a resolution. START_RESOLUTION is
// written before the running flag is cleared so no caller can see the key
// as neither running nor started.
func (s *Store) runResolver(b *boundSelector, args []any, key string) {
	ctx := context.Background()
	trimmed := ir.TrimArgs(args)

	if err := s.Dispatch(ctx, StartResolutionAction(b.name, trimmed)); err != nil {
		s.logger.Error("start resolution dispatch failed", "selector", b.name, "args", key, "error", err)
	}
	s.cache.clear(b.name, key)

	runID := s.opts.runIDs.Generate()
	start := time.Now()
	s.opts.observer.OnResolutionStart(ctx, &ResolutionStartEvent{
		RunID:     runID,
		Store:     s.name,
		Selector:  b.name,
		ArgsKey:   key,
		StartTime: start,
	})

	err := s.fulfill(ctx, b, args)

	end := FinishResolutionAction(b.name, trimmed)
	if err != nil {
		end = FailResolutionAction(b.name, trimmed, err)
	}
	if derr := s.Dispatch(ctx, end); derr != nil {
		s.logger.Error("end resolution dispatch failed", "selector", b.name, "args", key, "error", derr)
	}

	s.opts.observer.OnResolutionEnd(ctx, &ResolutionEndEvent{
		RunID:    runID,
		Store:    s.name,
		Selector: b.name,
		ArgsKey:  key,
		Duration: time.Since(start),
		Error:    err,
		Panicked: IsResolverPanic(err),
	})
}

func (s *Store) fulfill(ctx context.Context, b *boundSelector, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ResolverPanicError{Selector: b.name, Value: r}
		}
	}()

	d, err := b.resolver.Fulfill(ctx, args...)
	if err != nil {
		return err
	}
	return s.Dispatch(ctx, d)
}

// selectSafe is selectValue with selector panics turned into errors.
func (s *Store) selectSafe(name string, args []any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &SelectorPanicError{Selector: name, Value: r}
		}
	}()
	return s.selectValue(name, args)
}

// resolutionError returns the stored error of a failed resolution, or nil if
// it did not fail. A failure recorded without an error yields ErrResolutionFailed.
func (s *Store) resolutionError(name string, args []any) error {
	return s.resolutionErrorIn(s.metadataState(), name, args)
}

func (s *Store) resolutionErrorIn(meta *metadata.State, name string, args []any) error {
	if !metadata.HasResolutionFailed(meta, name, args) {
		return nil
	}
	if err := metadata.GetResolutionError(meta, name, args); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s.%s", ErrResolutionFailed, s.name, name)
}

// ErrResolutionFailed is returned for failed resolutions that stored no error.
var ErrResolutionFailed = errors.New("resolution failed")

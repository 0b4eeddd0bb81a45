package data

import (
	"context"
	"sync"
)

// Promise is the eventual result of a resolve-selector call.
type Promise struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

func settledPromise(v any, err error) *Promise {
	p := newPromise()
	p.settle(v, err)
	return p
}

func (p *Promise) settle(v any, err error) {
	p.once.Do(func() {
		p.value, p.err = v, err
		close(p.done)
	})
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has settled.
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the promise settles or ctx is done. Giving up on the
// wait does not stop the underlying resolver.
func (p *Promise) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResolveSelectors exposes promise-returning variants of a store's selectors.
type ResolveSelectors struct {
	store *Store
}

// Call runs the named selector and returns a promise for its value once the
// resolution of args has finished.
//
// Selectors without a resolver settle immediately; a panic in them becomes
// a rejection. For resolved selectors the promise is rejected with the stored
// error if the resolution fails. A resolver that declares itself fulfilled
// settles the promise with the current value.
func (r *ResolveSelectors) Call(name string, args ...any) *Promise {
	s := r.store
	b, err := s.lookup(name)
	if err != nil {
		return settledPromise(nil, err)
	}
	if b.kind == plainSelector {
		return settledPromise(s.selectSafe(name, args))
	}

	p := newPromise()
	outcome, err := s.triggerSafe(b, args)
	if err != nil {
		p.settle(nil, err)
		return p
	}
	if outcome == triggerSkippedFulfilled {
		p.settle(s.selectSafe(name, args))
		return p
	}

	s.whenFinished(name, args, func() {
		if ferr := s.resolutionError(name, args); ferr != nil {
			p.settle(nil, ferr)
			return
		}
		p.settle(s.readSafe(b, args))
	})
	return p
}

// triggerSafe is trigger with an IsFulfilled panic turned into an error.
func (s *Store) triggerSafe(b *boundSelector, args []any) (outcome triggerOutcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &SelectorPanicError{Selector: b.name, Value: rec}
		}
	}()
	return s.trigger(b, args)
}

// readSafe evaluates the raw selector function without triggering.
func (s *Store) readSafe(b *boundSelector, args []any) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v, err = nil, &SelectorPanicError{Selector: b.name, Value: rec}
		}
	}()
	return b.fn(s.GetState(), args...), nil
}

package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/datastore/internal/metadata"
)

// SuspendedError is returned by SuspendSelectors while a resolution is in
// flight. Done is closed the moment the resolution finishes; callers then
// repeat the same call.
type SuspendedError struct {
	Store    string
	Selector string
	done     chan struct{}
}

func (e *SuspendedError) Error() string {
	return fmt.Sprintf("%s.%s: resolution pending", e.Store, e.Selector)
}

// Done is closed when the resolution finishes.
func (e *SuspendedError) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the resolution finishes or ctx is done.
func (e *SuspendedError) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsSuspended returns true if err is or wraps a *SuspendedError.
func IsSuspended(err error) bool {
	var se *SuspendedError
	return errors.As(err, &se)
}

// SuspendSelectors exposes suspense variants of a store's selectors.
type SuspendSelectors struct {
	store *Store
}

// Call returns the selector value once its resolution finished successfully,
// the stored error if it failed, and a *SuspendedError otherwise.
// Selectors without a resolver behave exactly like Selectors.Call.
func (sus *SuspendSelectors) Call(name string, args ...any) (any, error) {
	s := sus.store
	b, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if b.kind == plainSelector {
		return s.selectValue(name, args)
	}

	outcome, err := s.trigger(b, args)
	if err != nil {
		return nil, err
	}
	// Root and metadata must come from the same reduction: a value read
	// before the resolution finished must not be reported as resolved.
	root, meta := s.snapshot()
	if outcome == triggerSkippedFulfilled {
		return b.fn(root, args...), nil
	}

	if metadata.HasFinishedResolution(meta, name, args) {
		if ferr := s.resolutionErrorIn(meta, name, args); ferr != nil {
			return nil, ferr
		}
		return b.fn(root, args...), nil
	}

	pending := &SuspendedError{Store: s.name, Selector: name, done: make(chan struct{})}
	s.whenFinished(name, args, func() { close(pending.done) })
	return nil, pending
}

package data

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStore is returned when a registry has no store under a name.
	ErrUnknownStore = errors.New("unknown store")
	// ErrStoreExists is returned when registering a duplicate store name.
	ErrStoreExists = errors.New("store already registered")
	// ErrUnknownSelector is returned for selector names the store does not define.
	ErrUnknownSelector = errors.New("unknown selector")
	// ErrUnknownAction is returned for action names the store does not define.
	ErrUnknownAction = errors.New("unknown action")
	// ErrSchedulerClosed is returned when a resolver cannot be scheduled.
	ErrSchedulerClosed = errors.New("scheduler closed")
	// ErrUnsupportedDispatchable is returned when a value reaches the reducer
	// that is not an Action.
	ErrUnsupportedDispatchable = errors.New("unsupported dispatchable")
)

// ResolverPanicError is stored as the resolution error when a resolver panics.
type ResolverPanicError struct {
	Selector string
	Value    any
}

func (e *ResolverPanicError) Error() string {
	return fmt.Sprintf("resolver %q panicked: %v", e.Selector, e.Value)
}

// SelectorPanicError is the rejection reason of a resolve-selector promise
// whose plain selector panicked.
type SelectorPanicError struct {
	Selector string
	Value    any
}

func (e *SelectorPanicError) Error() string {
	return fmt.Sprintf("selector %q panicked: %v", e.Selector, e.Value)
}

// Unwrap exposes a panicked error value.
func (e *SelectorPanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// IsResolverPanic returns true if err is or wraps a *ResolverPanicError.
func IsResolverPanic(err error) bool {
	var pe *ResolverPanicError
	return errors.As(err, &pe)
}

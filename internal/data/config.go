package data

import (
	"context"
	"fmt"
)

// Reducer computes the next state. Returning the same value (same pointer,
// map or slice) signals "no change" and suppresses listener notification.
type Reducer func(state any, action Action) any

// SelectorFunc computes a view over the root state.
type SelectorFunc func(state any, args ...any) any

// ActionCreator builds a dispatchable from caller arguments.
type ActionCreator func(args ...any) Dispatchable

// Resolver lazily populates the data a selector needs.
type Resolver struct {
	// Fulfill performs the side effect. The returned dispatchable, if any, is
	// dispatched before the resolution is marked finished. A returned error
	// marks the resolution failed.
	Fulfill func(ctx context.Context, args ...any) (Dispatchable, error)

	// IsFulfilled optionally reports that the data is already present, in
	// which case the resolver is not triggered and no metadata is recorded.
	IsFulfilled func(state any, args ...any) bool

	// ShouldInvalidate optionally reports that a finished resolution for args
	// is stale once action has been dispatched.
	ShouldInvalidate func(action Action, args ...any) bool
}

// ResolverFunc is shorthand for a resolver with only Fulfill set.
func ResolverFunc(fn func(ctx context.Context, args ...any) (Dispatchable, error)) *Resolver {
	return &Resolver{Fulfill: fn}
}

// Selector pairs a selector function with its optional resolver.
type Selector struct {
	Select   SelectorFunc
	Resolver *Resolver
}

// Config describes a store.
type Config struct {
	Reducer      Reducer
	InitialState any
	Actions      map[string]ActionCreator
	Selectors    map[string]Selector
	// Middleware runs outermost-first, before the built-in batch, thunk and
	// invalidation handling.
	Middleware []Middleware
}

// metadataSelectorNames are served by typed methods on Selectors and may not
// be registered by user configuration.
var metadataSelectorNames = map[string]struct{}{
	"getIsResolving":        {},
	"getResolutionState":    {},
	"getResolutionError":    {},
	"getCachedResolvers":    {},
	"hasStartedResolution":  {},
	"hasFinishedResolution": {},
	"hasResolutionFailed":   {},
	"isResolving":           {},
}

func (c Config) validate(store string) error {
	if c.Reducer == nil {
		return &RegistrationError{Store: store, Message: "reducer is required"}
	}
	for name, sel := range c.Selectors {
		if _, reserved := metadataSelectorNames[name]; reserved {
			return &RegistrationError{Store: store, Name: name, Message: "selector name is reserved for resolution metadata"}
		}
		if sel.Select == nil {
			return &RegistrationError{Store: store, Name: name, Message: "selector function is nil"}
		}
		if sel.Resolver != nil && sel.Resolver.Fulfill == nil {
			return &RegistrationError{Store: store, Name: name, Message: "resolver has no Fulfill function"}
		}
	}
	for name, ac := range c.Actions {
		if ac == nil {
			return &RegistrationError{Store: store, Name: name, Message: "action creator is nil"}
		}
	}
	return nil
}

// RegistrationError reports an invalid store configuration.
type RegistrationError struct {
	Store   string
	Name    string
	Message string
}

func (e *RegistrationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("store %q: %s: %s", e.Store, e.Name, e.Message)
	}
	return fmt.Sprintf("store %q: %s", e.Store, e.Message)
}

package data

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/datastore/internal/metadata"
)

// Actions exposes a store's action creators bound to its dispatch, plus the
// resolution metadata actions.
type Actions struct {
	store *Store
}

// Call builds the named action and dispatches it.
func (a *Actions) Call(ctx context.Context, name string, args ...any) error {
	creator, ok := a.store.config.Actions[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownAction, a.store.name, name)
	}
	return a.store.Dispatch(ctx, creator(args...))
}

// Has reports whether the action exists.
func (a *Actions) Has(name string) bool {
	_, ok := a.store.config.Actions[name]
	return ok
}

// Names returns the action names in sorted order.
func (a *Actions) Names() []string {
	names := make([]string, 0, len(a.store.config.Actions))
	for n := range a.store.config.Actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StartResolution marks name/args as resolving.
func (a *Actions) StartResolution(ctx context.Context, name string, args []any) error {
	return a.store.Dispatch(ctx, StartResolutionAction(name, args))
}

// FinishResolution marks name/args as finished.
func (a *Actions) FinishResolution(ctx context.Context, name string, args []any) error {
	return a.store.Dispatch(ctx, FinishResolutionAction(name, args))
}

// FailResolution marks name/args as failed with err.
func (a *Actions) FailResolution(ctx context.Context, name string, args []any, err error) error {
	return a.store.Dispatch(ctx, FailResolutionAction(name, args, err))
}

// FinishResolutions marks every argument tuple in argsList as finished.
func (a *Actions) FinishResolutions(ctx context.Context, name string, argsList [][]any) error {
	return a.store.Dispatch(ctx, FinishResolutionsAction(name, argsList))
}

// InvalidateResolution returns name/args to unresolved so the next selector
// call triggers the resolver again.
func (a *Actions) InvalidateResolution(ctx context.Context, name string, args []any) error {
	return a.store.Dispatch(ctx, InvalidateResolutionAction(name, args))
}

// InvalidateResolutionForStore clears all resolution metadata of the store.
func (a *Actions) InvalidateResolutionForStore(ctx context.Context) error {
	return a.store.Dispatch(ctx, Action{Type: metadata.ActionInvalidateResolutionForStore})
}

// InvalidateResolutionForStoreSelector clears all resolution metadata of one selector.
func (a *Actions) InvalidateResolutionForStoreSelector(ctx context.Context, name string) error {
	return a.store.Dispatch(ctx, Action{
		Type:    metadata.ActionInvalidateResolutionForStoreSelector,
		Payload: metadata.SelectorRef{SelectorName: name},
	})
}

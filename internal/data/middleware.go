package data

import (
	"context"
	"sort"

	"github.com/roach88/datastore/internal/metadata"
)

func batchMiddleware(s *Store, next DispatchFunc) DispatchFunc {
	return func(ctx context.Context, d Dispatchable) error {
		batch, ok := d.(Batch)
		if !ok {
			return next(ctx, d)
		}
		for _, item := range batch {
			if err := s.Dispatch(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}
}

func thunkMiddleware(s *Store, next DispatchFunc) DispatchFunc {
	return func(ctx context.Context, d Dispatchable) error {
		thunk, ok := d.(Thunk)
		if !ok {
			return next(ctx, d)
		}
		if thunk == nil {
			return nil
		}
		return thunk(ctx, s.thunkArgs())
	}
}

func (s *Store) thunkArgs() *ThunkArgs {
	return &ThunkArgs{
		Dispatch:      s.Dispatch,
		Select:        s.selectors,
		ResolveSelect: s.resolveSelectors,
		Registry:      s.registry,
		store:         s,
	}
}

// invalidationMiddleware consults every resolver's ShouldInvalidate before
// an action is reduced. Only finished resolutions are invalidated; in-flight
// ones are left alone. The invalidations are dispatched through the whole
// chain, so user middleware sees them. Invalidation actions themselves are
// never checked.
func invalidationMiddleware(s *Store, next DispatchFunc) DispatchFunc {
	return func(ctx context.Context, d Dispatchable) error {
		if action, ok := d.(Action); ok && len(s.invalidators) > 0 && !isInvalidation(action.Type) {
			s.invalidateStale(ctx, action)
		}
		return next(ctx, d)
	}
}

func (s *Store) invalidateStale(ctx context.Context, action Action) {
	meta := s.metadataState()
	for _, b := range s.invalidators {
		entries := meta.Entries(b.name)
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			entry := entries[key]
			if !entry.Status.Terminal() {
				continue
			}
			if !b.resolver.ShouldInvalidate(action, entry.Args...) {
				continue
			}
			if err := s.Dispatch(ctx, InvalidateResolutionAction(b.name, entry.Args)); err != nil {
				s.logger.Error("invalidate resolution", "selector", b.name, "error", err)
				continue
			}
			s.opts.observer.OnInvalidate(ctx, &InvalidateEvent{
				Store:       s.name,
				Selector:    b.name,
				ArgsKey:     key,
				TriggeredBy: action.Type,
			})
		}
	}
}

func isInvalidation(actionType string) bool {
	switch actionType {
	case metadata.ActionInvalidateResolution,
		metadata.ActionInvalidateResolutionForStore,
		metadata.ActionInvalidateResolutionForStoreSelector:
		return true
	}
	return false
}

// StartResolutionAction builds a START_RESOLUTION action.
func StartResolutionAction(selectorName string, args []any) Action {
	return Action{Type: metadata.ActionStartResolution, Payload: metadata.Resolution{SelectorName: selectorName, Args: args}}
}

// FinishResolutionAction builds a FINISH_RESOLUTION action.
func FinishResolutionAction(selectorName string, args []any) Action {
	return Action{Type: metadata.ActionFinishResolution, Payload: metadata.Resolution{SelectorName: selectorName, Args: args}}
}

// FailResolutionAction builds a FAIL_RESOLUTION action.
func FailResolutionAction(selectorName string, args []any, err error) Action {
	return Action{Type: metadata.ActionFailResolution, Payload: metadata.Resolution{SelectorName: selectorName, Args: args, Error: err}}
}

// FinishResolutionsAction marks many argument tuples of one selector finished.
func FinishResolutionsAction(selectorName string, argsList [][]any) Action {
	return Action{Type: metadata.ActionFinishResolutions, Payload: metadata.Resolutions{SelectorName: selectorName, ArgsList: argsList}}
}

// InvalidateResolutionAction builds an INVALIDATE_RESOLUTION action.
func InvalidateResolutionAction(selectorName string, args []any) Action {
	return Action{Type: metadata.ActionInvalidateResolution, Payload: metadata.Resolution{SelectorName: selectorName, Args: args}}
}

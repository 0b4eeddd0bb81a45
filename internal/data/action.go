package data

import "context"

// Action is a plain state transition understood by reducers.
type Action struct {
	Type    string
	Payload any
}

// Dispatchable is anything a store can dispatch: an Action, a Thunk or a Batch.
type Dispatchable interface {
	isDispatchable()
}

func (Action) isDispatchable() {}

// Thunk is a side-effect-capable action. It receives the bound store helpers.
type Thunk func(ctx context.Context, t *ThunkArgs) error

func (Thunk) isDispatchable() {}

// Batch dispatches its items in order, stopping at the first error.
type Batch []Dispatchable

func (Batch) isDispatchable() {}

// ThunkArgs is injected into every Thunk.
type ThunkArgs struct {
	// Dispatch sends a dispatchable through the full middleware chain.
	Dispatch DispatchFunc
	// Select reads the store's enriched selectors against current state.
	Select *Selectors
	// ResolveSelect exposes the promise-returning selectors.
	ResolveSelect *ResolveSelectors
	// Registry is the registry the store belongs to, for cross-store reads.
	Registry *Registry

	store *Store
}

// State returns the store's current root state.
func (t *ThunkArgs) State() any {
	return t.store.GetState()
}

// DispatchFunc processes one dispatchable.
type DispatchFunc func(ctx context.Context, d Dispatchable) error

// Middleware wraps the dispatch chain. It receives the store so it can read
// state or dispatch from the top of the chain.
type Middleware func(s *Store, next DispatchFunc) DispatchFunc

package metadata

import "github.com/roach88/datastore/internal/ir"

// Action types handled by Reduce.
const (
	ActionStartResolution                      = "START_RESOLUTION"
	ActionFinishResolution                     = "FINISH_RESOLUTION"
	ActionFailResolution                       = "FAIL_RESOLUTION"
	ActionStartResolutions                     = "START_RESOLUTIONS"
	ActionFinishResolutions                    = "FINISH_RESOLUTIONS"
	ActionFailResolutions                      = "FAIL_RESOLUTIONS"
	ActionInvalidateResolution                 = "INVALIDATE_RESOLUTION"
	ActionInvalidateResolutionForStore         = "INVALIDATE_RESOLUTION_FOR_STORE"
	ActionInvalidateResolutionForStoreSelector = "INVALIDATE_RESOLUTION_FOR_STORE_SELECTOR"
)

// Resolution is the payload of the single-key actions.
type Resolution struct {
	SelectorName string
	Args         []any
	// Error is read by FAIL_RESOLUTION only.
	Error error
}

// Resolutions is the payload of the batch actions. Errors, when present, is
// indexed like ArgsList.
type Resolutions struct {
	SelectorName string
	ArgsList     [][]any
	Errors       []error
}

// SelectorRef is the payload of INVALIDATE_RESOLUTION_FOR_STORE_SELECTOR.
type SelectorRef struct {
	SelectorName string
}

// IsMetadataAction reports whether Reduce handles the action type.
func IsMetadataAction(actionType string) bool {
	switch actionType {
	case ActionStartResolution, ActionFinishResolution, ActionFailResolution,
		ActionStartResolutions, ActionFinishResolutions, ActionFailResolutions,
		ActionInvalidateResolution, ActionInvalidateResolutionForStore,
		ActionInvalidateResolutionForStoreSelector:
		return true
	}
	return false
}

// Reduce applies one action to the metadata state. Actions that do not
// change anything return state unchanged (same pointer).
//
// Transition rules:
//   - start: unresolved -> resolving; ignored for any existing entry
//   - finish/fail: unresolved or resolving -> terminal; ignored once terminal
//   - invalidate: any -> unresolved
func Reduce(state *State, actionType string, payload any) *State {
	if state == nil {
		state = New()
	}

	switch actionType {
	case ActionStartResolution:
		if r, ok := payload.(Resolution); ok {
			return transition(state, r.SelectorName, r.Args, StatusResolving, nil)
		}
	case ActionFinishResolution:
		if r, ok := payload.(Resolution); ok {
			return transition(state, r.SelectorName, r.Args, StatusFinished, nil)
		}
	case ActionFailResolution:
		if r, ok := payload.(Resolution); ok {
			return transition(state, r.SelectorName, r.Args, StatusError, r.Error)
		}
	case ActionStartResolutions, ActionFinishResolutions, ActionFailResolutions:
		if r, ok := payload.(Resolutions); ok {
			return transitionAll(state, actionType, r)
		}
	case ActionInvalidateResolution:
		if r, ok := payload.(Resolution); ok {
			key, err := ir.ArgsKey(r.Args)
			if err != nil {
				return state
			}
			return state.without(r.SelectorName, key)
		}
	case ActionInvalidateResolutionForStore:
		if state.Len() == 0 {
			return state
		}
		return New()
	case ActionInvalidateResolutionForStoreSelector:
		if r, ok := payload.(SelectorRef); ok {
			if len(state.selectors[r.SelectorName]) == 0 {
				return state
			}
			next := state.cloneOuter()
			delete(next.selectors, r.SelectorName)
			return next
		}
	}
	return state
}

func transitionAll(state *State, actionType string, r Resolutions) *State {
	for i, args := range r.ArgsList {
		switch actionType {
		case ActionStartResolutions:
			state = transition(state, r.SelectorName, args, StatusResolving, nil)
		case ActionFinishResolutions:
			state = transition(state, r.SelectorName, args, StatusFinished, nil)
		case ActionFailResolutions:
			var err error
			if i < len(r.Errors) {
				err = r.Errors[i]
			}
			state = transition(state, r.SelectorName, args, StatusError, err)
		}
	}
	return state
}

func transition(state *State, selectorName string, args []any, to Status, err error) *State {
	key, kerr := ir.ArgsKey(args)
	if kerr != nil {
		return state
	}

	current, exists := state.LookupKey(selectorName, key)
	switch to {
	case StatusResolving:
		if exists {
			return state
		}
	case StatusFinished, StatusError:
		if exists && current.Status.Terminal() {
			return state
		}
	}

	entry := Entry{Args: ir.TrimArgs(args), Status: to}
	if to == StatusError {
		entry.Error = err
	}
	return state.with(selectorName, key, entry)
}

package metadata

// GetResolutionState returns the entry for selectorName/args, or false when
// the resolution has not started.
func GetResolutionState(state *State, selectorName string, args []any) (Entry, bool) {
	return state.Lookup(selectorName, args)
}

// GetIsResolving reports whether the resolution is in flight. The second
// result is false when the resolution has not started at all.
func GetIsResolving(state *State, selectorName string, args []any) (resolving bool, started bool) {
	entry, ok := state.Lookup(selectorName, args)
	if !ok {
		return false, false
	}
	return entry.Status == StatusResolving, true
}

// HasStartedResolution reports whether any status has been recorded.
func HasStartedResolution(state *State, selectorName string, args []any) bool {
	_, ok := state.Lookup(selectorName, args)
	return ok
}

// HasFinishedResolution reports whether the resolution ended, successfully or not.
func HasFinishedResolution(state *State, selectorName string, args []any) bool {
	entry, ok := state.Lookup(selectorName, args)
	return ok && entry.Status.Terminal()
}

// IsResolving reports whether the resolution is in flight.
func IsResolving(state *State, selectorName string, args []any) bool {
	entry, ok := state.Lookup(selectorName, args)
	return ok && entry.Status == StatusResolving
}

// HasResolutionFailed reports whether the resolution ended with an error.
func HasResolutionFailed(state *State, selectorName string, args []any) bool {
	entry, ok := state.Lookup(selectorName, args)
	return ok && entry.Status == StatusError
}

// GetResolutionError returns the stored error of a failed resolution.
func GetResolutionError(state *State, selectorName string, args []any) error {
	entry, ok := state.Lookup(selectorName, args)
	if !ok || entry.Status != StatusError {
		return nil
	}
	return entry.Error
}

// GetCachedResolvers returns a copy of the whole metadata map:
// selector name -> argument key -> entry.
func GetCachedResolvers(state *State) map[string]map[string]Entry {
	out := map[string]map[string]Entry{}
	for _, name := range state.SelectorNames() {
		out[name] = state.Entries(name)
	}
	return out
}

package metadata

import "github.com/roach88/datastore/internal/ir"

// Status is the lifecycle status of one resolution.
// The unresolved status is represented by the absence of an entry.
type Status string

const (
	StatusResolving Status = "resolving"
	StatusFinished  Status = "finished"
	StatusError     Status = "error"
)

// Terminal reports whether the status ends a resolution.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// Entry is the recorded state of one (selector, args) resolution.
type Entry struct {
	// Args is the trimmed argument tuple.
	Args   []any
	Status Status
	// Error is set only when Status is StatusError.
	Error error
}

// State maps selector name -> argument key -> entry.
// A nil *State behaves as an empty state.
type State struct {
	selectors map[string]map[string]Entry
}

// New returns an empty state.
func New() *State {
	return &State{selectors: map[string]map[string]Entry{}}
}

// Lookup returns the entry for the given selector and arguments.
// Arguments that cannot be keyed are reported as unresolved.
func (s *State) Lookup(selectorName string, args []any) (Entry, bool) {
	key, err := ir.ArgsKey(args)
	if err != nil {
		return Entry{}, false
	}
	return s.LookupKey(selectorName, key)
}

// LookupKey returns the entry stored under a precomputed argument key.
func (s *State) LookupKey(selectorName, key string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	entry, ok := s.selectors[selectorName][key]
	return entry, ok
}

// Entries returns a copy of the entries recorded for one selector, keyed by
// argument key.
func (s *State) Entries(selectorName string) map[string]Entry {
	if s == nil {
		return map[string]Entry{}
	}
	out := make(map[string]Entry, len(s.selectors[selectorName]))
	for k, e := range s.selectors[selectorName] {
		out[k] = e
	}
	return out
}

// SelectorNames returns the selectors with at least one entry.
func (s *State) SelectorNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.selectors))
	for name, entries := range s.selectors {
		if len(entries) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// Len returns the total number of entries across all selectors.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, entries := range s.selectors {
		n += len(entries)
	}
	return n
}

// with returns a copy of s where selectorName/key holds entry.
func (s *State) with(selectorName, key string, entry Entry) *State {
	next := s.cloneOuter()
	inner := make(map[string]Entry, len(next.selectors[selectorName])+1)
	for k, e := range next.selectors[selectorName] {
		inner[k] = e
	}
	inner[key] = entry
	next.selectors[selectorName] = inner
	return next
}

// without returns a copy of s with selectorName/key removed.
func (s *State) without(selectorName, key string) *State {
	if _, ok := s.LookupKey(selectorName, key); !ok {
		return s
	}
	next := s.cloneOuter()
	inner := make(map[string]Entry, len(next.selectors[selectorName]))
	for k, e := range next.selectors[selectorName] {
		if k != key {
			inner[k] = e
		}
	}
	next.selectors[selectorName] = inner
	return next
}

// cloneOuter copies the selector map; inner maps stay shared until replaced.
func (s *State) cloneOuter() *State {
	next := New()
	if s == nil {
		return next
	}
	for name, entries := range s.selectors {
		next.selectors[name] = entries
	}
	return next
}

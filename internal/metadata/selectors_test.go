package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectors_MutualExclusivity(t *testing.T) {
	args := []any{"k"}
	states := map[string]*State{
		"unresolved": New(),
		"resolving":  Reduce(New(), ActionStartResolution, Resolution{SelectorName: "x", Args: args}),
		"finished":   Reduce(New(), ActionFinishResolution, Resolution{SelectorName: "x", Args: args}),
		"failed":     Reduce(New(), ActionFailResolution, Resolution{SelectorName: "x", Args: args, Error: errors.New("no")}),
	}

	for name, s := range states {
		t.Run(name, func(t *testing.T) {
			resolving := IsResolving(s, "x", args)
			failed := HasResolutionFailed(s, "x", args)
			succeeded := HasFinishedResolution(s, "x", args) && !failed

			n := 0
			for _, b := range []bool{resolving, failed, succeeded} {
				if b {
					n++
				}
			}
			assert.LessOrEqual(t, n, 1)
			assert.Equal(t, HasFinishedResolution(s, "x", args), failed || succeeded)
		})
	}
}

func TestGetIsResolving(t *testing.T) {
	resolving, started := GetIsResolving(nil, "x", nil)
	assert.False(t, resolving)
	assert.False(t, started)

	s := Reduce(New(), ActionStartResolution, Resolution{SelectorName: "x"})
	resolving, started = GetIsResolving(s, "x", nil)
	assert.True(t, resolving)
	assert.True(t, started)

	s = Reduce(s, ActionFinishResolution, Resolution{SelectorName: "x"})
	resolving, started = GetIsResolving(s, "x", nil)
	assert.False(t, resolving)
	assert.True(t, started)
}

func TestGetResolutionState(t *testing.T) {
	_, ok := GetResolutionState(New(), "x", nil)
	assert.False(t, ok)

	s := Reduce(New(), ActionStartResolution, Resolution{SelectorName: "x", Args: []any{1}})
	entry, ok := GetResolutionState(s, "x", []any{1})
	require.True(t, ok)
	assert.Equal(t, StatusResolving, entry.Status)
}

func TestGetCachedResolvers(t *testing.T) {
	s := Reduce(New(), ActionStartResolution, Resolution{SelectorName: "a", Args: []any{"q"}})
	s = Reduce(s, ActionFinishResolution, Resolution{SelectorName: "b"})

	cached := GetCachedResolvers(s)
	require.Len(t, cached, 2)
	assert.Equal(t, StatusResolving, cached["a"][`["q"]`].Status)
	assert.Equal(t, StatusFinished, cached["b"][`[]`].Status)

	// The returned map is a copy.
	delete(cached["a"], `["q"]`)
	assert.True(t, IsResolving(s, "a", []any{"q"}))
}

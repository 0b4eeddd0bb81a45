package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datastore/internal/data"
)

var testTable = []Entity{
	{Kind: "root", Name: "user", BaseURL: "/users", Key: "id"},
	{Kind: "root", Name: "theme", BaseURL: "/themes", Key: "stylesheet"},
}

func receiveAction(p ReceiveItems) data.Action {
	return data.Action{Type: ActionReceiveItems, Payload: p}
}

func TestReducer_ReceiveStoresRecordsAndQuery(t *testing.T) {
	reduce := Reducer(testTable)
	st := reduce(nil, receiveAction(ReceiveItems{
		Kind: "root", Name: "user",
		Items: []Record{{"id": float64(1), "name": "Ada"}, {"id": float64(2), "name": "Grace"}},
		Query: map[string]any{"per_page": 2},
	})).(*State)

	r, ok := st.Record("root", "user", 1)
	require.True(t, ok)
	assert.Equal(t, "Ada", r["name"])

	list, ok := st.Records("root", "user", map[string]any{"per_page": float64(2)})
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "Grace", list[1]["name"])

	_, ok = st.Records("root", "user", nil)
	assert.False(t, ok, "only the received query is cached")
}

func TestReducer_CustomKey(t *testing.T) {
	st := Reducer(testTable)(NewState(), receiveAction(ReceiveItems{
		Kind: "root", Name: "theme",
		Items: []Record{{"stylesheet": "twentytwentyfive", "id": 7}},
	})).(*State)

	_, ok := st.Record("root", "theme", "twentytwentyfive")
	assert.True(t, ok)
	_, ok = st.Record("root", "theme", 7)
	assert.False(t, ok)
}

func TestReducer_SkipsItemsWithoutKey(t *testing.T) {
	st := Reducer(testTable)(NewState(), receiveAction(ReceiveItems{
		Kind: "root", Name: "user",
		Items: []Record{{"name": "anonymous"}, {"id": 3}},
		Query: map[string]any{},
	})).(*State)

	assert.Equal(t, 1, st.Len("root", "user"))
	list, ok := st.Records("root", "user", nil)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestReducer_UnknownEntityAndActionKeepState(t *testing.T) {
	reduce := Reducer(testTable)
	st := NewState()

	assert.Same(t, st, reduce(st, receiveAction(ReceiveItems{Kind: "root", Name: "nope", Items: []Record{{"id": 1}}})))
	assert.Same(t, st, reduce(st, data.Action{Type: "OTHER"}))
	assert.Same(t, st, reduce(st, data.Action{Type: ActionRemoveItems, Payload: RemoveItems{Kind: "root", Name: "user", Keys: []any{1}}}))
}

func TestReducer_ReceiveDoesNotMutatePrevious(t *testing.T) {
	reduce := Reducer(testTable)
	first := reduce(NewState(), receiveAction(ReceiveItems{Kind: "root", Name: "user", Items: []Record{{"id": 1}}})).(*State)
	second := reduce(first, receiveAction(ReceiveItems{Kind: "root", Name: "user", Items: []Record{{"id": 2}}})).(*State)

	assert.Equal(t, 1, first.Len("root", "user"))
	assert.Equal(t, 2, second.Len("root", "user"))
}

func TestReducer_RemoveDropsKeysFromQueries(t *testing.T) {
	reduce := Reducer(testTable)
	st := reduce(NewState(), receiveAction(ReceiveItems{
		Kind: "root", Name: "user",
		Items: []Record{{"id": 1}, {"id": 2}},
		Query: map[string]any{},
	})).(*State)

	next := reduce(st, data.Action{Type: ActionRemoveItems, Payload: RemoveItems{
		Kind: "root", Name: "user", Keys: []any{1},
	}}).(*State)

	_, ok := next.Record("root", "user", 1)
	assert.False(t, ok)
	list, ok := next.Records("root", "user", nil)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0]["id"])

	prev, ok := st.Records("root", "user", nil)
	require.True(t, ok)
	assert.Len(t, prev, 2)
}

func TestReducer_InvalidateCacheClearsQueries(t *testing.T) {
	reduce := Reducer(testTable)
	st := reduce(NewState(), receiveAction(ReceiveItems{
		Kind: "root", Name: "user", Items: []Record{{"id": 1}}, Query: map[string]any{},
	})).(*State)

	next := reduce(st, receiveAction(ReceiveItems{
		Kind: "root", Name: "user", Items: []Record{{"id": 2}}, InvalidateCache: true,
	})).(*State)

	_, ok := next.Records("root", "user", nil)
	assert.False(t, ok)
	assert.Equal(t, 2, next.Len("root", "user"))
}

package entities

import (
	"slices"

	"github.com/roach88/datastore/internal/data"
)

// Action types handled by Reducer.
const (
	ActionReceiveItems = "RECEIVE_ITEMS"
	ActionRemoveItems  = "REMOVE_ITEMS"
)

// ReceiveItems stores records. With a non-nil Query the records also become
// that query's result list. InvalidateCache drops every cached query of the
// entity and, through ShouldInvalidate, its list resolutions.
type ReceiveItems struct {
	Kind            string
	Name            string
	Items           []Record
	Query           map[string]any
	InvalidateCache bool
}

// RemoveItems deletes records by key.
type RemoveItems struct {
	Kind            string
	Name            string
	Keys            []any
	InvalidateCache bool
}

// Reducer returns the entity store reducer for the given table.
func Reducer(table []Entity) data.Reducer {
	return func(state any, action data.Action) any {
		st, _ := state.(*State)
		if st == nil {
			st = NewState()
		}

		switch p := action.Payload.(type) {
		case ReceiveItems:
			if action.Type == ActionReceiveItems {
				return receive(st, table, p)
			}
		case RemoveItems:
			if action.Type == ActionRemoveItems {
				return remove(st, p)
			}
		}
		return st
	}
}

func receive(st *State, table []Entity, p ReceiveItems) *State {
	e, ok := Find(table, p.Kind, p.Name)
	if !ok {
		return st
	}

	id := bucketID(p.Kind, p.Name)
	b := emptyBucket()
	if cur := st.buckets[id]; cur != nil {
		b = cur.clone()
	}
	if p.InvalidateCache {
		b.queries = map[string][]string{}
	}

	keys := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		if item[e.Key] == nil {
			continue
		}
		k, err := recordKey(item[e.Key])
		if err != nil {
			continue
		}
		b.byKey[k] = item
		keys = append(keys, k)
	}
	if p.Query != nil {
		b.queries[queryKey(p.Query)] = keys
	}
	return st.cloneWith(id, b)
}

func remove(st *State, p RemoveItems) *State {
	id := bucketID(p.Kind, p.Name)
	cur := st.buckets[id]
	if cur == nil {
		return st
	}

	b := cur.clone()
	removed := map[string]bool{}
	for _, key := range p.Keys {
		k, err := recordKey(key)
		if err != nil {
			continue
		}
		if _, ok := b.byKey[k]; ok {
			delete(b.byKey, k)
			removed[k] = true
		}
	}
	if len(removed) == 0 && !p.InvalidateCache {
		return st
	}

	if p.InvalidateCache {
		b.queries = map[string][]string{}
	} else {
		for q, keys := range b.queries {
			b.queries[q] = slices.DeleteFunc(slices.Clone(keys), func(k string) bool { return removed[k] })
		}
	}
	return st.cloneWith(id, b)
}

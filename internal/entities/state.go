package entities

import (
	"fmt"

	"github.com/roach88/datastore/internal/ir"
)

// Record is one decoded REST record.
type Record = map[string]any

// State holds received records per entity. It is immutable: reducers
// return a new *State on change.
type State struct {
	buckets map[string]*bucket
}

// bucket holds one entity's records and the ordered results of each query.
type bucket struct {
	byKey   map[string]Record
	queries map[string][]string
}

// NewState returns an empty state.
func NewState() *State {
	return &State{buckets: map[string]*bucket{}}
}

func bucketID(kind, name string) string {
	return kind + "/" + name
}

// Record returns the record stored under key.
func (s *State) Record(kind, name string, key any) (Record, bool) {
	b := s.buckets[bucketID(kind, name)]
	if b == nil {
		return nil, false
	}
	k, err := recordKey(key)
	if err != nil {
		return nil, false
	}
	r, ok := b.byKey[k]
	return r, ok
}

// Records returns the records of a previously received query, in the
// order they were received. ok is false if the query was never received.
func (s *State) Records(kind, name string, query map[string]any) (records []Record, ok bool) {
	b := s.buckets[bucketID(kind, name)]
	if b == nil {
		return nil, false
	}
	keys, ok := b.queries[queryKey(query)]
	if !ok {
		return nil, false
	}
	records = make([]Record, 0, len(keys))
	for _, k := range keys {
		if r, ok := b.byKey[k]; ok {
			records = append(records, r)
		}
	}
	return records, true
}

// Len returns the number of stored records of an entity.
func (s *State) Len(kind, name string) int {
	if b := s.buckets[bucketID(kind, name)]; b != nil {
		return len(b.byKey)
	}
	return 0
}

// recordKey is the canonical identity of a record key value, so 1, int64(1)
// and a JSON-decoded 1.0 address the same record.
func recordKey(v any) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("record key: %w", err)
	}
	return string(data), nil
}

// queryKey is the canonical identity of a query. A nil query and an empty
// one are the same query.
func queryKey(query map[string]any) string {
	if len(query) == 0 {
		return "{}"
	}
	data, err := ir.MarshalCanonical(query)
	if err != nil {
		return fmt.Sprintf("%v", query)
	}
	return string(data)
}

func (s *State) cloneWith(id string, b *bucket) *State {
	next := &State{buckets: make(map[string]*bucket, len(s.buckets)+1)}
	for k, v := range s.buckets {
		next.buckets[k] = v
	}
	next.buckets[id] = b
	return next
}

func (b *bucket) clone() *bucket {
	next := &bucket{
		byKey:   make(map[string]Record, len(b.byKey)),
		queries: make(map[string][]string, len(b.queries)),
	}
	for k, v := range b.byKey {
		next.byKey[k] = v
	}
	for k, v := range b.queries {
		next.queries[k] = v
	}
	return next
}

func emptyBucket() *bucket {
	return &bucket{byKey: map[string]Record{}, queries: map[string][]string{}}
}

package entities

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/datastore/internal/data"
)

// StoreName is the conventional registry name of the entity store.
const StoreName = "core"

// Generic selector and action names.
const (
	SelectGetEntityRecord      = "getEntityRecord"
	SelectGetEntityRecords     = "getEntityRecords"
	SelectGetEntitiesConfig    = "getEntitiesConfig"
	ActionNameReceiveRecords   = "receiveEntityRecords"
	ActionNameSaveEntityRecord = "saveEntityRecord"
	ActionNameDeleteRecord     = "deleteEntityRecord"
)

// ErrUnknownEntity is returned for kind/name pairs missing from the table.
var ErrUnknownEntity = errors.New("unknown entity")

// Shortcut is one generated per-entity method.
type Shortcut struct {
	Method string
	Kind   string
	Name   string
	Target string // generic selector or action it forwards to
}

// Shortcuts lists the generated method names for a table, in table order:
// get<Name>, get<Plural>, save<Name>, delete<Name>.
func Shortcuts(table []Entity) []Shortcut {
	out := make([]Shortcut, 0, len(table)*4)
	for _, e := range table {
		out = append(out,
			Shortcut{Method: MethodName(e, "get", false), Kind: e.Kind, Name: e.Name, Target: SelectGetEntityRecord},
			Shortcut{Method: MethodName(e, "get", true), Kind: e.Kind, Name: e.Name, Target: SelectGetEntityRecords},
			Shortcut{Method: MethodName(e, "save", false), Kind: e.Kind, Name: e.Name, Target: ActionNameSaveEntityRecord},
			Shortcut{Method: MethodName(e, "delete", false), Kind: e.Kind, Name: e.Name, Target: ActionNameDeleteRecord},
		)
	}
	return out
}

type entityStore struct {
	table   []Entity
	fetcher Fetcher
}

// StoreConfig builds the entity store configuration. Generated shortcut
// names must not collide with each other or with the generic names.
func StoreConfig(table []Entity, fetcher Fetcher) (data.Config, error) {
	es := &entityStore{table: table, fetcher: fetcher}

	cfg := data.Config{
		Reducer:      Reducer(table),
		InitialState: NewState(),
		Selectors: map[string]data.Selector{
			SelectGetEntityRecord: {
				Select: es.selectRecord,
				Resolver: &data.Resolver{
					Fulfill: es.resolveRecord,
				},
			},
			SelectGetEntityRecords: {
				Select: es.selectRecords,
				Resolver: &data.Resolver{
					Fulfill:          es.resolveRecords,
					ShouldInvalidate: shouldInvalidateRecords,
				},
			},
			SelectGetEntitiesConfig: {
				Select: es.selectConfig,
			},
		},
		Actions: map[string]data.ActionCreator{
			ActionNameReceiveRecords:   receiveEntityRecords,
			ActionNameSaveEntityRecord: es.saveEntityRecord,
			ActionNameDeleteRecord:     es.deleteEntityRecord,
		},
	}

	for _, sc := range Shortcuts(table) {
		kind, name := sc.Kind, sc.Name
		prefix := func(args []any) []any { return append([]any{kind, name}, args...) }

		switch sc.Target {
		case SelectGetEntityRecord, SelectGetEntityRecords:
			if _, exists := cfg.Selectors[sc.Method]; exists {
				return data.Config{}, fmt.Errorf("entity %s/%s: selector %q already defined", kind, name, sc.Method)
			}
		default:
			if _, exists := cfg.Actions[sc.Method]; exists {
				return data.Config{}, fmt.Errorf("entity %s/%s: action %q already defined", kind, name, sc.Method)
			}
		}

		switch sc.Target {
		case SelectGetEntityRecord:
			cfg.Selectors[sc.Method] = data.Selector{
				Select: func(state any, args ...any) any { return es.selectRecord(state, prefix(args)...) },
				Resolver: &data.Resolver{
					Fulfill: func(ctx context.Context, args ...any) (data.Dispatchable, error) {
						return es.resolveRecord(ctx, prefix(args)...)
					},
				},
			}
		case SelectGetEntityRecords:
			cfg.Selectors[sc.Method] = data.Selector{
				Select: func(state any, args ...any) any { return es.selectRecords(state, prefix(args)...) },
				Resolver: &data.Resolver{
					Fulfill: func(ctx context.Context, args ...any) (data.Dispatchable, error) {
						return es.resolveRecords(ctx, prefix(args)...)
					},
					ShouldInvalidate: func(action data.Action, args ...any) bool {
						return shouldInvalidateRecords(action, prefix(args)...)
					},
				},
			}
		case ActionNameSaveEntityRecord:
			cfg.Actions[sc.Method] = func(args ...any) data.Dispatchable { return es.saveEntityRecord(prefix(args)...) }
		case ActionNameDeleteRecord:
			cfg.Actions[sc.Method] = func(args ...any) data.Dispatchable { return es.deleteEntityRecord(prefix(args)...) }
		}
	}
	return cfg, nil
}

func (es *entityStore) entity(kind, name string) (Entity, error) {
	e, ok := Find(es.table, kind, name)
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s/%s", ErrUnknownEntity, kind, name)
	}
	return e, nil
}

// Selectors.

// selectRecord is getEntityRecord(kind, name, key, query). A "_fields"
// query narrows the returned record to the listed fields.
func (es *entityStore) selectRecord(state any, args ...any) any {
	st, _ := state.(*State)
	if st == nil {
		return nil
	}
	kind, name := argString(args, 0), argString(args, 1)
	r, ok := st.Record(kind, name, argAt(args, 2))
	if !ok {
		return nil
	}
	if fields := fieldsOf(argQuery(args, 3)); len(fields) > 0 {
		return pick(r, fields)
	}
	return r
}

// selectRecords is getEntityRecords(kind, name, query). It returns nil
// until the query has been received.
func (es *entityStore) selectRecords(state any, args ...any) any {
	st, _ := state.(*State)
	if st == nil {
		return nil
	}
	query := argQuery(args, 2)
	records, ok := st.Records(argString(args, 0), argString(args, 1), query)
	if !ok {
		return nil
	}
	if fields := fieldsOf(query); len(fields) > 0 {
		narrowed := make([]Record, len(records))
		for i, r := range records {
			narrowed[i] = pick(r, fields)
		}
		return narrowed
	}
	return records
}

// selectConfig is getEntitiesConfig(kind).
func (es *entityStore) selectConfig(_ any, args ...any) any {
	kind := argString(args, 0)
	var out []Entity
	for _, e := range es.table {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Resolvers.

func (es *entityStore) resolveRecord(ctx context.Context, args ...any) (data.Dispatchable, error) {
	kind, name := argString(args, 0), argString(args, 1)
	e, err := es.entity(kind, name)
	if err != nil {
		return nil, err
	}
	key := argAt(args, 2)
	if key == nil {
		return nil, fmt.Errorf("%s/%s: record key is required", kind, name)
	}

	body, err := es.fetcher.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   recordPath(e, key),
		Query:  queryValues(e.BaseURLParams, argQuery(args, 3)),
	})
	if err != nil {
		return nil, err
	}
	rec, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s/%s: expected a record object, got %T", kind, name, body)
	}
	return data.Action{Type: ActionReceiveItems, Payload: ReceiveItems{
		Kind: kind, Name: name, Items: []Record{rec},
	}}, nil
}

// resolveRecords fetches a list. Without "_fields" every returned record
// is complete, so the matching getEntityRecord resolutions are marked
// finished as well.
func (es *entityStore) resolveRecords(ctx context.Context, args ...any) (data.Dispatchable, error) {
	kind, name := argString(args, 0), argString(args, 1)
	e, err := es.entity(kind, name)
	if err != nil {
		return nil, err
	}
	query := argQuery(args, 2)

	body, err := es.fetcher.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   e.BaseURL,
		Query:  queryValues(e.BaseURLParams, query),
	})
	if err != nil {
		return nil, err
	}
	list, ok := body.([]any)
	if !ok {
		return nil, fmt.Errorf("%s/%s: expected a record list, got %T", kind, name, body)
	}

	records := make([]Record, 0, len(list))
	for _, item := range list {
		if r, ok := item.(map[string]any); ok {
			records = append(records, r)
		}
	}
	if query == nil {
		query = map[string]any{}
	}
	receive := data.Action{Type: ActionReceiveItems, Payload: ReceiveItems{
		Kind: kind, Name: name, Items: records, Query: query,
	}}
	if len(fieldsOf(query)) > 0 {
		return receive, nil
	}

	resolved := make([][]any, 0, len(records))
	for _, r := range records {
		if key, ok := r[e.Key]; ok && key != nil {
			resolved = append(resolved, []any{kind, name, key})
		}
	}
	return data.Batch{receive, data.FinishResolutionsAction(SelectGetEntityRecord, resolved)}, nil
}

// shouldInvalidateRecords drops finished list resolutions of an entity when
// its records were received or removed with InvalidateCache.
func shouldInvalidateRecords(action data.Action, args ...any) bool {
	kind, name := argString(args, 0), argString(args, 1)
	switch p := action.Payload.(type) {
	case ReceiveItems:
		return action.Type == ActionReceiveItems && p.InvalidateCache && p.Kind == kind && p.Name == name
	case RemoveItems:
		return action.Type == ActionRemoveItems && p.InvalidateCache && p.Kind == kind && p.Name == name
	}
	return false
}

// Actions.

// receiveEntityRecords(kind, name, records, query, invalidateCache).
func receiveEntityRecords(args ...any) data.Dispatchable {
	var records []Record
	switch v := argAt(args, 2).(type) {
	case []Record:
		records = v
	case Record:
		records = []Record{v}
	case []any:
		for _, item := range v {
			if r, ok := item.(map[string]any); ok {
				records = append(records, r)
			}
		}
	}
	invalidate, _ := argAt(args, 4).(bool)
	return data.Action{Type: ActionReceiveItems, Payload: ReceiveItems{
		Kind:            argString(args, 0),
		Name:            argString(args, 1),
		Items:           records,
		Query:           argQuery(args, 3),
		InvalidateCache: invalidate,
	}}
}

// saveEntityRecord(kind, name, record) creates the record with POST when
// it has no key and updates it with PUT otherwise.
func (es *entityStore) saveEntityRecord(args ...any) data.Dispatchable {
	kind, name := argString(args, 0), argString(args, 1)
	record, _ := argAt(args, 2).(map[string]any)

	return data.Thunk(func(ctx context.Context, t *data.ThunkArgs) error {
		e, err := es.entity(kind, name)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%s/%s: record is required", kind, name)
		}

		req := Request{Method: http.MethodPost, Path: e.BaseURL, Body: record}
		if key, ok := record[e.Key]; ok && key != nil {
			req = Request{Method: http.MethodPut, Path: recordPath(e, key), Body: record}
		}
		body, err := es.fetcher.Fetch(ctx, req)
		if err != nil {
			return fmt.Errorf("save %s/%s: %w", kind, name, err)
		}
		saved, ok := body.(map[string]any)
		if !ok {
			return fmt.Errorf("save %s/%s: expected a record object, got %T", kind, name, body)
		}
		return t.Dispatch(ctx, data.Action{Type: ActionReceiveItems, Payload: ReceiveItems{
			Kind: kind, Name: name, Items: []Record{saved}, InvalidateCache: true,
		}})
	})
}

// deleteEntityRecord(kind, name, key, query).
func (es *entityStore) deleteEntityRecord(args ...any) data.Dispatchable {
	kind, name, key := argString(args, 0), argString(args, 1), argAt(args, 2)
	query := argQuery(args, 3)

	return data.Thunk(func(ctx context.Context, t *data.ThunkArgs) error {
		e, err := es.entity(kind, name)
		if err != nil {
			return err
		}
		if key == nil {
			return fmt.Errorf("%s/%s: record key is required", kind, name)
		}
		if _, err := es.fetcher.Fetch(ctx, Request{
			Method: http.MethodDelete,
			Path:   recordPath(e, key),
			Query:  queryValues(nil, query),
		}); err != nil {
			return fmt.Errorf("delete %s/%s: %w", kind, name, err)
		}
		return t.Dispatch(ctx, data.Action{Type: ActionRemoveItems, Payload: RemoveItems{
			Kind: kind, Name: name, Keys: []any{key}, InvalidateCache: true,
		}})
	})
}

// Helpers.

func recordPath(e Entity, key any) string {
	return strings.TrimSuffix(e.BaseURL, "/") + "/" + url.PathEscape(fmt.Sprint(key))
}

func argAt(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func argString(args []any, i int) string {
	s, _ := argAt(args, i).(string)
	return s
}

func argQuery(args []any, i int) map[string]any {
	q, _ := argAt(args, i).(map[string]any)
	return q
}

// fieldsOf returns the "_fields" of a query as a list.
func fieldsOf(query map[string]any) []string {
	switch v := query["_fields"].(type) {
	case string:
		if v == "" {
			return nil
		}
		return strings.Split(v, ",")
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func pick(r Record, fields []string) Record {
	out := make(Record, len(fields))
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}

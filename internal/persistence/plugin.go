package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/roach88/datastore/internal/data"
)

// DefaultStorageKey is the storage key all persisted stores share.
const DefaultStorageKey = "WP_DATA"

// ActionRestore is dispatched to a persisted store's reducer to compute the
// initial state that saved state is merged over.
const ActionRestore = "@@WP/PERSISTENCE_RESTORE"

// Option configures a Plugin.
type Option func(*Plugin)

// WithStorageKey sets the key under which all persisted stores are saved.
func WithStorageKey(key string) Option {
	return func(p *Plugin) {
		if key != "" {
			p.key = key
		}
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.logger = l
		}
	}
}

// Plugin registers stores whose state survives restarts.
type Plugin struct {
	registry *data.Registry
	storage  Storage
	key      string
	logger   *slog.Logger

	mu     sync.Mutex
	loaded bool
	saved  map[string]json.RawMessage
}

// New creates a plugin writing to storage.
func New(registry *data.Registry, storage Storage, opts ...Option) *Plugin {
	p := &Plugin{
		registry: registry,
		storage:  storage,
		key:      DefaultStorageKey,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register instantiates cfg on the registry with persisted state restored.
// keys selects the top-level state keys to persist; nil persists the whole
// state. Stores that should not persist are registered on the registry
// directly.
func (p *Plugin) Register(ctx context.Context, name string, cfg data.Config, keys []string, opts ...data.Option) (*data.Store, error) {
	saved, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	if raw, ok := saved[name]; ok {
		initial := cfg.Reducer(cfg.InitialState, data.Action{Type: ActionRestore})
		cfg.InitialState = p.restore(name, initial, raw)
	}

	store, err := p.registry.Register(name, cfg, opts...)
	if err != nil {
		return nil, err
	}

	w := &writer{plugin: p, store: store, keys: keys}
	w.last, _ = w.project()
	store.Subscribe(w.persistOnChange)
	return store, nil
}

// Saved returns the persisted JSON of every store, read once from storage.
func (p *Plugin) Saved(ctx context.Context) (map[string]json.RawMessage, error) {
	saved, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(saved))
	for k, v := range saved {
		out[k] = v
	}
	return out, nil
}

// load reads the storage key once. A missing key or malformed JSON yields an
// empty object.
func (p *Plugin) load(ctx context.Context) (map[string]json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return p.saved, nil
	}
	raw, ok, err := p.storage.GetItem(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", p.key, err)
	}

	p.saved = map[string]json.RawMessage{}
	if ok {
		if err := json.Unmarshal([]byte(raw), &p.saved); err != nil || p.saved == nil {
			p.logger.Warn("discarding malformed persisted state", "key", p.key, "error", err)
			p.saved = map[string]json.RawMessage{}
		}
	}
	p.loaded = true
	return p.saved, nil
}

// set replaces one store's entry and writes the whole object back.
func (p *Plugin) set(ctx context.Context, name string, value json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]json.RawMessage, len(p.saved)+1)
	for k, v := range p.saved {
		next[k] = v
	}
	next[name] = value
	p.saved = next

	blob, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode persisted state: %w", err)
	}
	return p.storage.SetItem(ctx, p.key, string(blob))
}

// restore merges the saved JSON over initial. Plain object states are deep
// merged. Typed states are decoded from the saved JSON on top of a copy of
// initial. Anything else takes the saved value as is.
func (p *Plugin) restore(name string, initial any, raw json.RawMessage) any {
	var persisted any
	if err := json.Unmarshal(raw, &persisted); err != nil {
		p.logger.Warn("ignoring unreadable persisted store state", "store", name, "error", err)
		return initial
	}

	if base, ok := initial.(map[string]any); ok {
		if saved, ok := persisted.(map[string]any); ok {
			return deepMerge(base, saved)
		}
		return persisted
	}
	if initial == nil {
		return persisted
	}

	typed, err := decodeOver(initial, raw)
	if err != nil {
		p.logger.Warn("persisted state does not match store state type",
			"store", name, "type", fmt.Sprintf("%T", initial), "error", err)
		return initial
	}
	return typed
}

// deepMerge returns a new map with src merged over dst. Nested plain
// objects merge recursively; every other src value replaces dst's.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(dv, sv)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// decodeOver copies initial through JSON and decodes raw on top, so fields
// absent from raw keep their initial values and initial itself is untouched.
func decodeOver(initial any, raw json.RawMessage) (any, error) {
	base, err := json.Marshal(initial)
	if err != nil {
		return nil, err
	}

	t := reflect.TypeOf(initial)
	isPtr := t.Kind() == reflect.Pointer
	if isPtr {
		t = t.Elem()
	}
	target := reflect.New(t)
	if err := json.Unmarshal(base, target.Interface()); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return nil, err
	}
	if isPtr {
		return target.Interface(), nil
	}
	return target.Elem().Interface(), nil
}

// writer persists one store's projection whenever it changes.
type writer struct {
	plugin *Plugin
	store  *data.Store
	keys   []string

	mu   sync.Mutex
	last json.RawMessage
}

// project encodes the persisted part of the store's state: the whole state,
// or the object made of the configured keys.
func (w *writer) project() (json.RawMessage, error) {
	state := w.store.GetState()
	if w.keys == nil {
		return json.Marshal(state)
	}

	full, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(full, &fields); err != nil {
		return nil, fmt.Errorf("persisting keys requires object state: %w", err)
	}
	subset := make(map[string]json.RawMessage, len(w.keys))
	for _, k := range w.keys {
		if v, ok := fields[k]; ok {
			subset[k] = v
		}
	}
	return json.Marshal(subset)
}

// persistOnChange runs on whichever goroutine dispatched. Projecting under
// mu keeps writes in state order.
func (w *writer) persistOnChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, err := w.project()
	if err != nil {
		w.plugin.logger.Error("encode store state", "store", w.store.Name(), "error", err)
		return
	}
	if bytes.Equal(next, w.last) {
		return
	}
	if err := w.plugin.set(context.Background(), w.store.Name(), next); err != nil {
		w.plugin.logger.Error("persist store state", "store", w.store.Name(), "error", err)
		return
	}
	w.last = next
}

package data

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds named stores. It is an explicit object: independent
// registries share nothing.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
	opts   options
}

// NewRegistry creates an empty registry. Options become the defaults for
// every store registered on it.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		stores: map[string]*Store{},
		opts:   defaultOptions().apply(opts),
	}
}

// Register instantiates cfg as a store under name. Per-store options
// override the registry defaults.
func (r *Registry) Register(name string, cfg Config, opts ...Option) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrStoreExists, name)
	}
	s, err := newStore(name, cfg, r, r.opts.apply(opts))
	if err != nil {
		return nil, err
	}
	r.stores[name] = s
	return s, nil
}

// Store returns the store registered under name.
func (r *Registry) Store(name string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// Names returns the registered store names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) mustStore(name string) (*Store, error) {
	s, ok := r.Store(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, name)
	}
	return s, nil
}

// Select returns the enriched selectors of a store.
func (r *Registry) Select(name string) (*Selectors, error) {
	s, err := r.mustStore(name)
	if err != nil {
		return nil, err
	}
	return s.selectors, nil
}

// ResolveSelect returns the promise-returning selectors of a store.
func (r *Registry) ResolveSelect(name string) (*ResolveSelectors, error) {
	s, err := r.mustStore(name)
	if err != nil {
		return nil, err
	}
	return s.resolveSelectors, nil
}

// SuspendSelect returns the suspense selectors of a store.
func (r *Registry) SuspendSelect(name string) (*SuspendSelectors, error) {
	s, err := r.mustStore(name)
	if err != nil {
		return nil, err
	}
	return s.suspendSelectors, nil
}

// Dispatch calls the named action of a store.
func (r *Registry) Dispatch(ctx context.Context, storeName, action string, args ...any) error {
	s, err := r.mustStore(storeName)
	if err != nil {
		return err
	}
	return s.actions.Call(ctx, action, args...)
}

// Subscribe registers listener on every store currently in the registry.
func (r *Registry) Subscribe(listener func()) (unsubscribe func()) {
	r.mu.RLock()
	unsubs := make([]func(), 0, len(r.stores))
	for _, name := range r.namesLocked() {
		unsubs = append(unsubs, r.stores[name].Subscribe(listener))
	}
	r.mu.RUnlock()

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.stores))
	for n := range r.stores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package data

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/roach88/datastore/internal/metadata"
)

// ActionInit is dispatched to the reducer once when a store is created.
const ActionInit = "@@INIT"

type selectorKind int

const (
	plainSelector selectorKind = iota
	resolvedSelector
)

// boundSelector is the tagged variant of a registered selector.
type boundSelector struct {
	name     string
	kind     selectorKind
	fn       SelectorFunc
	resolver *Resolver
}

// Store is an instantiated data store.
//
// The composite state is {root, metadata}. Dispatch holds mu for the
// duration of one reducer application; resolver tasks and listeners never
// run under it.
type Store struct {
	name     string
	config   Config
	registry *Registry
	opts     options
	logger   *slog.Logger

	mu    sync.RWMutex
	root  any
	meta  *metadata.State
	clock *Clock

	subMu sync.Mutex
	subs  []*subscription

	cache        *resolutionCache
	bound        map[string]*boundSelector
	invalidators []*boundSelector
	dispatch     DispatchFunc

	selectors        *Selectors
	actions          *Actions
	resolveSelectors *ResolveSelectors
	suspendSelectors *SuspendSelectors
}

// NewStore instantiates a store outside of any registry. Thunks dispatched
// to it see a nil Registry.
func NewStore(name string, cfg Config, opts ...Option) (*Store, error) {
	return newStore(name, cfg, nil, defaultOptions().apply(opts))
}

func newStore(name string, cfg Config, reg *Registry, o options) (*Store, error) {
	if err := cfg.validate(name); err != nil {
		return nil, err
	}

	s := &Store{
		name:     name,
		config:   cfg,
		registry: reg,
		opts:     o,
		logger:   o.logger.With("store", name),
		meta:     metadata.New(),
		clock:    NewClock(),
		cache:    newResolutionCache(),
		bound:    make(map[string]*boundSelector, len(cfg.Selectors)),
	}
	s.root = cfg.Reducer(cfg.InitialState, Action{Type: ActionInit})

	names := make([]string, 0, len(cfg.Selectors))
	for n := range cfg.Selectors {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		sel := cfg.Selectors[n]
		b := &boundSelector{name: n, kind: plainSelector, fn: sel.Select}
		if sel.Resolver != nil {
			b.kind = resolvedSelector
			b.resolver = sel.Resolver
			if sel.Resolver.ShouldInvalidate != nil {
				s.invalidators = append(s.invalidators, b)
			}
		}
		s.bound[n] = b
	}

	chain := slices.Clone(cfg.Middleware)
	chain = append(chain, batchMiddleware, thunkMiddleware, invalidationMiddleware)
	next := DispatchFunc(s.reduceAction)
	for i := len(chain) - 1; i >= 0; i-- {
		next = chain[i](s, next)
	}
	s.dispatch = next

	s.selectors = &Selectors{store: s}
	s.actions = &Actions{store: s}
	s.resolveSelectors = &ResolveSelectors{store: s}
	s.suspendSelectors = &SuspendSelectors{store: s}

	s.logger.Debug("store created",
		"selectors", len(cfg.Selectors),
		"resolvers", s.resolverCount(),
		"actions", len(cfg.Actions),
	)
	return s, nil
}

func (s *Store) resolverCount() int {
	n := 0
	for _, b := range s.bound {
		if b.kind == resolvedSelector {
			n++
		}
	}
	return n
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// GetState returns the root state. Resolution metadata is not included.
func (s *Store) GetState() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Version returns the number of effective state changes so far.
func (s *Store) Version() int64 {
	return s.clock.Current()
}

// snapshot returns the root state and the metadata produced by the same
// reduction.
func (s *Store) snapshot() (any, *metadata.State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, s.meta
}

func (s *Store) metadataState() *metadata.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Selectors returns the enriched selectors.
func (s *Store) Selectors() *Selectors { return s.selectors }

// Actions returns the bound action creators.
func (s *Store) Actions() *Actions { return s.actions }

// ResolveSelectors returns the promise-returning selectors.
func (s *Store) ResolveSelectors() *ResolveSelectors { return s.resolveSelectors }

// SuspendSelectors returns the suspense selectors.
func (s *Store) SuspendSelectors() *SuspendSelectors { return s.suspendSelectors }

// Dispatch sends d through the middleware chain. A nil dispatchable is a no-op.
func (s *Store) Dispatch(ctx context.Context, d Dispatchable) error {
	if d == nil {
		return nil
	}
	return s.dispatch(ctx, d)
}

func (s *Store) reduceAction(_ context.Context, d Dispatchable) error {
	action, ok := d.(Action)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedDispatchable, d)
	}
	if s.apply(action) {
		s.notify()
	}
	return nil
}

// apply runs both reducers and reports whether the composite state changed.
func (s *Store) apply(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextRoot := s.config.Reducer(s.root, action)
	nextMeta := metadata.Reduce(s.meta, action.Type, action.Payload)
	if identical(s.root, nextRoot) && nextMeta == s.meta {
		return false
	}
	s.root = nextRoot
	s.meta = nextMeta
	s.clock.Next()
	return true
}

// identical reports reference equality in the sense reducers use it:
// pointers, maps, slices, channels and funcs compare by address, other
// comparable values by ==. Values that cannot be compared count as changed,
// and so do non-nil zero-capacity slices.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		// Zero-capacity slices may all share one base address, so only two
		// nil slices count as the same.
		if va.Cap() == 0 || vb.Cap() == 0 {
			return va.IsNil() && vb.IsNil()
		}
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if !va.Type().Comparable() {
		return false
	}
	return safeEqual(a, b)
}

func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

type subscription struct {
	fn     func()
	active atomic.Bool
}

// Subscribe registers a listener called after every dispatch that changed
// the composite state. Listeners run in registration order. The returned
// function removes the listener and is safe to call more than once.
func (s *Store) Subscribe(listener func()) (unsubscribe func()) {
	sub := &subscription{fn: listener}
	s.attach(sub)
	return func() { s.detach(sub) }
}

func (s *Store) attach(sub *subscription) {
	sub.active.Store(true)
	s.subMu.Lock()
	s.subs = append(s.subs, sub)
	s.subMu.Unlock()
}

func (s *Store) detach(sub *subscription) {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = slices.DeleteFunc(s.subs, func(x *subscription) bool { return x == sub })
}

func (s *Store) notify() {
	s.subMu.Lock()
	snapshot := slices.Clone(s.subs)
	s.subMu.Unlock()

	for _, sub := range snapshot {
		if sub.active.Load() {
			sub.fn()
		}
	}
}

// whenFinished calls fn once, as soon as the resolution of name/args is
// finished. It subscribes before checking so a transition between the
// check and the subscription cannot be missed.
func (s *Store) whenFinished(name string, args []any, fn func()) {
	var once sync.Once
	finished := func() bool {
		return metadata.HasFinishedResolution(s.metadataState(), name, args)
	}

	sub := &subscription{}
	sub.fn = func() {
		if finished() {
			s.detach(sub)
			once.Do(fn)
		}
	}
	s.attach(sub)
	if finished() {
		s.detach(sub)
		once.Do(fn)
	}
}

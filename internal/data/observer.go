package data

import (
	"context"
	"time"
)

// Observer receives resolution lifecycle events.
// Methods are called synchronously from resolver tasks and selector calls,
// so implementations should be fast and non-blocking.
type Observer interface {
	// OnResolutionStart is called after START_RESOLUTION was dispatched.
	OnResolutionStart(ctx context.Context, event *ResolutionStartEvent)

	// OnResolutionEnd is called after FINISH_RESOLUTION or FAIL_RESOLUTION.
	OnResolutionEnd(ctx context.Context, event *ResolutionEndEvent)

	// OnResolutionSkip is called when a selector call coalesced into an
	// already scheduled resolution or the resolver declared itself fulfilled.
	OnResolutionSkip(ctx context.Context, event *ResolutionSkipEvent)

	// OnInvalidate is called when a finished resolution was invalidated by
	// a resolver's ShouldInvalidate.
	OnInvalidate(ctx context.Context, event *InvalidateEvent)
}

// SkipReason explains why a selector call did not schedule its resolver.
type SkipReason string

const (
	SkipRunning   SkipReason = "running"
	SkipFulfilled SkipReason = "fulfilled"
	SkipStarted   SkipReason = "started"
)

// ResolutionStartEvent is emitted when a resolver begins.
type ResolutionStartEvent struct {
	RunID     string // UUIDv7, shared with the matching end event
	Store     string
	Selector  string
	ArgsKey   string
	StartTime time.Time
}

// ResolutionEndEvent is emitted when a resolver settles.
type ResolutionEndEvent struct {
	RunID    string
	Store    string
	Selector string
	ArgsKey  string
	Duration time.Duration
	Error    error // nil if successful
	Panicked bool
}

// ResolutionSkipEvent is emitted when a resolver trigger was skipped.
type ResolutionSkipEvent struct {
	Store    string
	Selector string
	ArgsKey  string
	Reason   SkipReason
}

// InvalidateEvent is emitted for each automatic invalidation.
type InvalidateEvent struct {
	Store       string
	Selector    string
	ArgsKey     string
	TriggeredBy string // action type
}

// NoOpObserver ignores all events.
type NoOpObserver struct{}

func (NoOpObserver) OnResolutionStart(context.Context, *ResolutionStartEvent) {}
func (NoOpObserver) OnResolutionEnd(context.Context, *ResolutionEndEvent)     {}
func (NoOpObserver) OnResolutionSkip(context.Context, *ResolutionSkipEvent)   {}
func (NoOpObserver) OnInvalidate(context.Context, *InvalidateEvent)           {}

// MultiObserver fans events out to several observers in order.
type MultiObserver struct {
	Observers []Observer
}

func (m *MultiObserver) OnResolutionStart(ctx context.Context, event *ResolutionStartEvent) {
	for _, obs := range m.Observers {
		obs.OnResolutionStart(ctx, event)
	}
}

func (m *MultiObserver) OnResolutionEnd(ctx context.Context, event *ResolutionEndEvent) {
	for _, obs := range m.Observers {
		obs.OnResolutionEnd(ctx, event)
	}
}

func (m *MultiObserver) OnResolutionSkip(ctx context.Context, event *ResolutionSkipEvent) {
	for _, obs := range m.Observers {
		obs.OnResolutionSkip(ctx, event)
	}
}

func (m *MultiObserver) OnInvalidate(ctx context.Context, event *InvalidateEvent) {
	for _, obs := range m.Observers {
		obs.OnInvalidate(ctx, event)
	}
}

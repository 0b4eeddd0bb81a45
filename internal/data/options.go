package data

import "log/slog"

// Option configures a Registry or a single Store.
type Option func(*options)

type options struct {
	scheduler Scheduler
	observer  Observer
	logger    *slog.Logger
	runIDs    RunIDGenerator
}

func defaultOptions() options {
	return options{
		scheduler: GoScheduler{},
		observer:  NoOpObserver{},
		logger:    slog.Default(),
		runIDs:    UUIDv7Generator{},
	}
}

func (o options) apply(opts []Option) options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithScheduler sets the scheduler that runs deferred resolver tasks.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

// WithObserver sets the observer notified of resolution lifecycle events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger used for runtime diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

package data

import (
	"context"
	"log/slog"
)

// SlogObserver logs resolution events with log/slog.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	reg := data.NewRegistry(data.WithObserver(data.NewSlogObserver(logger, slog.LevelInfo)))
type SlogObserver struct {
	logger   *slog.Logger
	minLevel slog.Level
}

// NewSlogObserver creates an observer that logs at or above minLevel.
func NewSlogObserver(logger *slog.Logger, minLevel slog.Level) *SlogObserver {
	return &SlogObserver{logger: logger, minLevel: minLevel}
}

func (o *SlogObserver) OnResolutionStart(ctx context.Context, event *ResolutionStartEvent) {
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "resolution started",
			slog.String("run_id", event.RunID),
			slog.String("store", event.Store),
			slog.String("selector", event.Selector),
			slog.String("args", event.ArgsKey),
		)
	}
}

func (o *SlogObserver) OnResolutionEnd(ctx context.Context, event *ResolutionEndEvent) {
	if event.Error != nil {
		if o.minLevel <= slog.LevelWarn {
			o.logger.WarnContext(ctx, "resolution failed",
				slog.String("run_id", event.RunID),
				slog.String("store", event.Store),
				slog.String("selector", event.Selector),
				slog.String("args", event.ArgsKey),
				slog.Duration("duration", event.Duration),
				slog.Bool("panicked", event.Panicked),
				slog.String("error", event.Error.Error()),
			)
		}
		return
	}
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "resolution finished",
			slog.String("run_id", event.RunID),
			slog.String("store", event.Store),
			slog.String("selector", event.Selector),
			slog.String("args", event.ArgsKey),
			slog.Duration("duration", event.Duration),
		)
	}
}

func (o *SlogObserver) OnResolutionSkip(ctx context.Context, event *ResolutionSkipEvent) {
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "resolution skipped",
			slog.String("store", event.Store),
			slog.String("selector", event.Selector),
			slog.String("args", event.ArgsKey),
			slog.String("reason", string(event.Reason)),
		)
	}
}

func (o *SlogObserver) OnInvalidate(ctx context.Context, event *InvalidateEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "resolution invalidated",
			slog.String("store", event.Store),
			slog.String("selector", event.Selector),
			slog.String("args", event.ArgsKey),
			slog.String("action", event.TriggeredBy),
		)
	}
}

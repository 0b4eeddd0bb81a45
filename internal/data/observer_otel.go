package data

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTelObserver emits one span per resolver execution plus counters and a
// duration histogram.
//
// Example:
//
//	obs, _ := data.NewOTelObserver(otel.Tracer("datastore"), otel.Meter("datastore"))
//	reg := data.NewRegistry(data.WithObserver(obs))
type OTelObserver struct {
	tracer trace.Tracer

	// spans holds open resolution spans keyed by run ID.
	spans sync.Map

	duration      metric.Float64Histogram
	failures      metric.Int64Counter
	skips         metric.Int64Counter
	invalidations metric.Int64Counter
}

// NewOTelObserver creates an OpenTelemetry observer.
func NewOTelObserver(tracer trace.Tracer, meter metric.Meter) (*OTelObserver, error) {
	duration, err := meter.Float64Histogram(
		"datastore.resolution.duration",
		metric.WithDescription("Duration of resolver executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution duration histogram: %w", err)
	}

	failures, err := meter.Int64Counter(
		"datastore.resolution.failures",
		metric.WithDescription("Number of failed resolutions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failures counter: %w", err)
	}

	skips, err := meter.Int64Counter(
		"datastore.resolution.skips",
		metric.WithDescription("Selector calls that did not schedule a resolver"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create skips counter: %w", err)
	}

	invalidations, err := meter.Int64Counter(
		"datastore.resolution.invalidations",
		metric.WithDescription("Resolutions invalidated by dispatched actions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invalidations counter: %w", err)
	}

	return &OTelObserver{
		tracer:        tracer,
		duration:      duration,
		failures:      failures,
		skips:         skips,
		invalidations: invalidations,
	}, nil
}

func (o *OTelObserver) OnResolutionStart(ctx context.Context, event *ResolutionStartEvent) {
	_, span := o.tracer.Start(ctx, "datastore.resolve",
		trace.WithTimestamp(event.StartTime),
		trace.WithAttributes(
			attribute.String("run_id", event.RunID),
			attribute.String("store", event.Store),
			attribute.String("selector", event.Selector),
			attribute.String("args", event.ArgsKey),
		),
	)
	o.spans.Store(event.RunID, span)
}

func (o *OTelObserver) OnResolutionEnd(ctx context.Context, event *ResolutionEndEvent) {
	if v, ok := o.spans.LoadAndDelete(event.RunID); ok {
		span := v.(trace.Span)
		if event.Error != nil {
			span.SetStatus(codes.Error, event.Error.Error())
			span.RecordError(event.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attribute.Bool("panicked", event.Panicked))
		span.End()
	}

	attrs := metric.WithAttributes(
		attribute.String("store", event.Store),
		attribute.String("selector", event.Selector),
		attribute.Bool("success", event.Error == nil),
	)
	o.duration.Record(ctx, event.Duration.Seconds(), attrs)
	if event.Error != nil {
		o.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("store", event.Store),
			attribute.String("selector", event.Selector),
		))
	}
}

func (o *OTelObserver) OnResolutionSkip(ctx context.Context, event *ResolutionSkipEvent) {
	o.skips.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", event.Store),
		attribute.String("selector", event.Selector),
		attribute.String("reason", string(event.Reason)),
	))
}

func (o *OTelObserver) OnInvalidate(ctx context.Context, event *InvalidateEvent) {
	o.invalidations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", event.Store),
		attribute.String("selector", event.Selector),
		attribute.String("action", event.TriggeredBy),
	))
}

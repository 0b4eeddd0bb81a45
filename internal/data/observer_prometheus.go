package data

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver records resolution metrics.
//
// Example:
//
//	obs, err := data.NewPrometheusObserver("myapp", prometheus.DefaultRegisterer)
//	reg := data.NewRegistry(data.WithObserver(obs))
type PrometheusObserver struct {
	started       *prometheus.CounterVec
	inFlight      *prometheus.GaugeVec
	duration      *prometheus.HistogramVec
	failures      *prometheus.CounterVec
	skips         *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewPrometheusObserver creates the collectors under "{namespace}_datastore_"
// and registers them. Collectors already registered by an earlier observer
// are reused.
func NewPrometheusObserver(namespace string, registerer prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "wp"
	}
	o := &PrometheusObserver{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "resolutions_started_total",
			Help:      "Total number of resolver executions started",
		}, []string{"store", "selector"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "resolutions_in_flight",
			Help:      "Resolver executions currently running",
		}, []string{"store", "selector"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of resolver executions in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "selector", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "resolution_failures_total",
			Help:      "Total number of failed resolutions",
		}, []string{"store", "selector"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "resolution_skips_total",
			Help:      "Selector calls that did not schedule a resolver",
		}, []string{"store", "selector", "reason"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "invalidations_total",
			Help:      "Resolutions invalidated by dispatched actions",
		}, []string{"store", "selector"}),
	}

	var err error
	if o.started, err = register(registerer, o.started); err != nil {
		return nil, err
	}
	if o.inFlight, err = register(registerer, o.inFlight); err != nil {
		return nil, err
	}
	if o.duration, err = register(registerer, o.duration); err != nil {
		return nil, err
	}
	if o.failures, err = register(registerer, o.failures); err != nil {
		return nil, err
	}
	if o.skips, err = register(registerer, o.skips); err != nil {
		return nil, err
	}
	if o.invalidations, err = register(registerer, o.invalidations); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (o *PrometheusObserver) OnResolutionStart(_ context.Context, event *ResolutionStartEvent) {
	o.started.WithLabelValues(event.Store, event.Selector).Inc()
	o.inFlight.WithLabelValues(event.Store, event.Selector).Inc()
}

func (o *PrometheusObserver) OnResolutionEnd(_ context.Context, event *ResolutionEndEvent) {
	o.inFlight.WithLabelValues(event.Store, event.Selector).Dec()
	status := "success"
	if event.Error != nil {
		status = "error"
		o.failures.WithLabelValues(event.Store, event.Selector).Inc()
	}
	o.duration.WithLabelValues(event.Store, event.Selector, status).Observe(event.Duration.Seconds())
}

func (o *PrometheusObserver) OnResolutionSkip(_ context.Context, event *ResolutionSkipEvent) {
	o.skips.WithLabelValues(event.Store, event.Selector, string(event.Reason)).Inc()
}

func (o *PrometheusObserver) OnInvalidate(_ context.Context, event *InvalidateEvent) {
	o.invalidations.WithLabelValues(event.Store, event.Selector).Inc()
}

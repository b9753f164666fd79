package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ExternalRequestsTotal   metric.Int64Counter
	ExternalRequestDuration metric.Float64Histogram
	GeocodeDroppedTotal     metric.Int64Counter
	DurationFallbackTotal   metric.Int64Counter
	LegCacheHitsTotal       metric.Int64Counter
	RoutePlansTotal         metric.Int64Counter
	StoreNotificationsTotal metric.Int64Counter
	DbQueryDurationSeconds  metric.Float64Histogram
	DbQueryErrorsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments from the global MeterProvider. Only the first call has an effect,
// so it must run after the provider is installed.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("tripspot")
		m := &AppMetrics{}

		m.ExternalRequestsTotal = mustCounter(meter, "external_requests_total",
			"Calls to geocoding, routing and text services by outcome", "{request}")
		m.ExternalRequestDuration = mustHistogram(meter, "external_request_duration_seconds",
			"Latency of calls to external services")
		m.GeocodeDroppedTotal = mustCounter(meter, "geocode_dropped_total",
			"Extracted places dropped because the geocoder found no match", "{place}")
		m.DurationFallbackTotal = mustCounter(meter, "duration_fallback_total",
			"Travel time estimates that used the straight-line fallback", "{estimate}")
		m.LegCacheHitsTotal = mustCounter(meter, "leg_cache_hits_total",
			"Travel time estimates served from the leg cache", "{estimate}")
		m.RoutePlansTotal = mustCounter(meter, "route_plans_total",
			"Routes computed by outcome", "{route}")
		m.StoreNotificationsTotal = mustCounter(meter, "store_notifications_total",
			"Change notifications delivered to store observers", "{notification}")
		m.DbQueryDurationSeconds = mustHistogram(meter, "db_query_duration_seconds",
			"Duration of database queries in seconds")
		m.DbQueryErrorsTotal = mustCounter(meter, "db_query_errors_total",
			"Total number of database query errors", "{error}")

		appMetrics = m
	})
}

// Get returns the instruments, creating them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

// ObserveExternal records one call to an external service.
func (m *AppMetrics) ObserveExternal(ctx context.Context, service, operation, outcome string, started time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.ExternalRequestsTotal.Add(ctx, 1, attrs)
	m.ExternalRequestDuration.Record(ctx, time.Since(started).Seconds(), attrs)
}

func mustCounter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return c
}

func mustHistogram(meter metric.Meter, name, desc string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return h
}

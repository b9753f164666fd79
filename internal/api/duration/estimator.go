package duration

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/app/observability/metrics"
	"github.com/xco2/tripspot/internal/api/amap"
	"github.com/xco2/tripspot/internal/types"
)

// Router answers live driving-time queries.
type Router interface {
	Driving(ctx context.Context, creds amap.Credentials, from, to amap.LngLat) (amap.Leg, error)
}

// SettingsReader supplies the current mapping credentials.
type SettingsReader interface {
	GetSettings(ctx context.Context) (types.Settings, error)
}

// Estimator returns the travel time in seconds between two located places. It never fails.
type Estimator interface {
	Estimate(ctx context.Context, from, to types.Place) float64
}

// Source hands out estimators bound to the configuration current at the start of a stage.
type Source interface {
	Session(ctx context.Context) Estimator
}

var (
	_ Estimator = (*Service)(nil)
	_ Source    = (*Service)(nil)
)

type Service struct {
	logger   *slog.Logger
	router   Router
	settings SettingsReader
	cache    LegCache
	speedKmh float64
}

// NewService builds the estimator. cache may be nil.
func NewService(router Router, settings SettingsReader, cache LegCache, fallbackSpeedKmh float64, logger *slog.Logger) *Service {
	if fallbackSpeedKmh <= 0 {
		fallbackSpeedKmh = DefaultFallbackSpeedKmh
	}
	return &Service{
		logger:   logger,
		router:   router,
		settings: settings,
		cache:    cache,
		speedKmh: fallbackSpeedKmh,
	}
}

// Session reads the settings once. If they cannot be read every estimate in the session uses the fallback.
func (s *Service) Session(ctx context.Context) Estimator {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Could not read settings, estimating straight-line only", slog.Any("error", err))
		settings = types.Settings{}
	}
	return &session{Service: s, creds: amap.CredentialsFrom(settings)}
}

// Estimate reads the settings for this single call.
func (s *Service) Estimate(ctx context.Context, from, to types.Place) float64 {
	return s.Session(ctx).Estimate(ctx, from, to)
}

type session struct {
	*Service
	creds amap.Credentials
}

func (s *session) Estimate(ctx context.Context, from, to types.Place) float64 {
	ctx, span := otel.Tracer("DurationEstimator").Start(ctx, "Estimate", trace.WithAttributes(
		attribute.String("leg.from", from.ID),
		attribute.String("leg.to", to.ID),
	))
	defer span.End()

	if from.Latitude == to.Latitude && from.Longitude == to.Longitude {
		return 0
	}
	if s.creds.Key == "" {
		return s.fallback(ctx, span, from, to, "no_key")
	}

	key := LegKey(from, to)
	if s.cache != nil {
		if seconds, ok := s.cache.Get(ctx, key); ok {
			metrics.Get().LegCacheHitsTotal.Add(ctx, 1)
			span.SetAttributes(attribute.String("leg.source", "cache"))
			return seconds
		}
	}

	leg, err := s.router.Driving(ctx, s.creds, amap.PointOf(from), amap.PointOf(to))
	if err != nil {
		reason := "route_error"
		if errors.Is(err, types.ErrNoMatch) {
			reason = "no_route"
		}
		s.logger.DebugContext(ctx, "Driving estimate unavailable, using straight line",
			slog.String("from", from.ID), slog.String("to", to.ID), slog.Any("error", err))
		return s.fallback(ctx, span, from, to, reason)
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, leg.Seconds)
	}
	span.SetAttributes(attribute.String("leg.source", "driving"), attribute.Float64("leg.seconds", leg.Seconds))
	return leg.Seconds
}

func (s *session) fallback(ctx context.Context, span trace.Span, from, to types.Place, reason string) float64 {
	metrics.Get().DurationFallbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	seconds := StraightLineSeconds(from, to, s.speedKmh)
	span.SetAttributes(attribute.String("leg.source", "fallback"), attribute.Float64("leg.seconds", seconds))
	return seconds
}

package geocoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/app/observability/metrics"
	"github.com/xco2/tripspot/internal/api/amap"
	"github.com/xco2/tripspot/internal/types"
)

// DefaultDelay spaces consecutive lookups to stay under the web service QPS limit.
const DefaultDelay = 120 * time.Millisecond

// Locator resolves an address to a coordinate.
type Locator interface {
	Geocode(ctx context.Context, creds amap.Credentials, address, city string) (amap.LngLat, error)
}

type SettingsReader interface {
	GetSettings(ctx context.Context) (types.Settings, error)
}

type Service interface {
	// Geocode returns the items that resolved, in source order, with coordinates filled in.
	// Items without a match are dropped and counted in the stats.
	Geocode(ctx context.Context, items []types.Place) ([]types.Place, types.GeocodeStats, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	locator  Locator
	settings SettingsReader
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

var _ Service = (*ServiceImpl)(nil)

// NewService builds a geocoder. A negative delay disables spacing.
func NewService(locator Locator, settings SettingsReader, delay time.Duration, logger *slog.Logger) *ServiceImpl {
	if delay == 0 {
		delay = DefaultDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &ServiceImpl{
		logger:   logger,
		locator:  locator,
		settings: settings,
		delay:    delay,
		sleep:    sleepCtx,
	}
}

func (s *ServiceImpl) Geocode(ctx context.Context, items []types.Place) ([]types.Place, types.GeocodeStats, error) {
	ctx, span := otel.Tracer("GeocoderService").Start(ctx, "Geocode", trace.WithAttributes(
		attribute.Int("items.count", len(items)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Geocode"))
	stats := types.GeocodeStats{Requested: len(items)}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settings unavailable")
		return nil, stats, fmt.Errorf("read settings: %w", err)
	}
	if !settings.MappingConfigured() {
		span.SetStatus(codes.Error, "no amap key")
		return nil, stats, fmt.Errorf("geocode: %w: amap key not set", types.ErrConfiguration)
	}
	creds := amap.CredentialsFrom(settings)

	located := make([]types.Place, 0, len(items))
	for i, item := range items {
		if i > 0 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return nil, stats, err
			}
		}

		p, err := s.locator.Geocode(ctx, creds, item.City+item.Name, item.City)
		switch {
		case err == nil:
		case errors.Is(err, types.ErrNoMatch):
			stats.Dropped++
			metrics.Get().GeocodeDroppedTotal.Add(ctx, 1)
			l.DebugContext(ctx, "No geocode match, dropping item", slog.String("name", item.Name), slog.String("city", item.City))
			continue
		default:
			l.ErrorContext(ctx, "Geocoding batch aborted", slog.String("name", item.Name), slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "geocoding failed")
			if errors.Is(err, types.ErrConfiguration) ||
				errors.Is(err, types.ErrServiceUnavailable) ||
				errors.Is(err, types.ErrMalformedResponse) {
				return nil, stats, fmt.Errorf("geocode %q: %w", item.Name, err)
			}
			return nil, stats, fmt.Errorf("geocode %q: %w: %w", item.Name, types.ErrServiceUnavailable, err)
		}

		item.Longitude, item.Latitude = p.Lng, p.Lat
		if !item.Located() {
			stats.Dropped++
			metrics.Get().GeocodeDroppedTotal.Add(ctx, 1)
			continue
		}
		stats.Matched++
		located = append(located, item)
	}

	l.InfoContext(ctx, "Geocoding finished",
		slog.Int("requested", stats.Requested),
		slog.Int("matched", stats.Matched),
		slog.Int("dropped", stats.Dropped))
	span.SetAttributes(attribute.Int("items.matched", stats.Matched), attribute.Int("items.dropped", stats.Dropped))
	span.SetStatus(codes.Ok, "geocoded")
	return located, stats, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/internal/api/extractor"
	"github.com/xco2/tripspot/internal/api/geocoder"
	"github.com/xco2/tripspot/internal/api/route"
	"github.com/xco2/tripspot/internal/api/store"
	"github.com/xco2/tripspot/internal/types"
)

// MappingCheck decides whether map features may be used with the given settings.
type MappingCheck func(types.Settings) bool

var _ PipelineService = (*PipelineServiceImpl)(nil)

// PipelineService runs the user-triggered stages and writes their results to the store.
type PipelineService interface {
	// ParseText extracts and geocodes places from text and replaces the stored places with them.
	ParseText(ctx context.Context, text string) (*types.ParseResponse, error)
	// GeocodeStored locates stored places that have no coordinates yet.
	GeocodeStored(ctx context.Context) (*types.GeocodeResponse, error)
	// Plan orders the selected located places, or all of them when placeIDs is empty,
	// and stores the route. Fewer than two places yield an unsaved degenerate route.
	Plan(ctx context.Context, placeIDs []string) (*types.PlanResponse, error)
	MappingStatus(ctx context.Context) (types.MappingStatus, error)
}

type PipelineServiceImpl struct {
	logger    *slog.Logger
	store     store.Service
	extractor extractor.Service
	geocoder  geocoder.Service
	planner   route.Planner
	mapping   MappingCheck

	// planning is held for the duration of one Plan call; overlapping calls are rejected.
	planning sync.Mutex
}

type Option func(*PipelineServiceImpl)

// WithMappingCheck replaces the default "an AMap key is configured" check.
func WithMappingCheck(check MappingCheck) Option {
	return func(s *PipelineServiceImpl) {
		if check != nil {
			s.mapping = check
		}
	}
}

func NewPipelineService(st store.Service, ex extractor.Service, geo geocoder.Service, planner route.Planner, logger *slog.Logger, opts ...Option) *PipelineServiceImpl {
	s := &PipelineServiceImpl{
		logger:    logger,
		store:     st,
		extractor: ex,
		geocoder:  geo,
		planner:   planner,
		mapping:   types.Settings.MappingConfigured,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PipelineServiceImpl) requireMapping(ctx context.Context) error {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !s.mapping(settings) {
		return fmt.Errorf("map service: %w: configure the AMap key first", types.ErrConfiguration)
	}
	return nil
}

func (s *PipelineServiceImpl) ParseText(ctx context.Context, text string) (*types.ParseResponse, error) {
	ctx, span := otel.Tracer("PipelineService").Start(ctx, "ParseText", trace.WithAttributes(
		attribute.Int("text.length", len(text)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ParseText"))

	if err := s.requireMapping(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mapping unavailable")
		return nil, err
	}

	items, err := s.extractor.Extract(ctx, text)
	if err != nil {
		l.ErrorContext(ctx, "Extraction failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, err
	}
	l.InfoContext(ctx, "Places extracted", slog.Int("count", len(items)))

	located, stats, err := s.geocoder.Geocode(ctx, items)
	if err != nil {
		l.ErrorContext(ctx, "Geocoding failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return nil, err
	}

	if err := s.store.ReplacePlaces(ctx, located); err != nil {
		l.ErrorContext(ctx, "Failed to store places", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("error storing places: %w", err)
	}

	l.InfoContext(ctx, "Parse finished", slog.Int("located", stats.Matched), slog.Int("dropped", stats.Dropped))
	span.SetStatus(codes.Ok, "parsed")
	return &types.ParseResponse{Places: located, Stats: stats}, nil
}

func (s *PipelineServiceImpl) GeocodeStored(ctx context.Context) (*types.GeocodeResponse, error) {
	ctx, span := otel.Tracer("PipelineService").Start(ctx, "GeocodeStored")
	defer span.End()

	l := s.logger.With(slog.String("method", "GeocodeStored"))

	if err := s.requireMapping(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mapping unavailable")
		return nil, err
	}

	places, err := s.store.ListPlaces(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("error listing places: %w", err)
	}
	var pending []types.Place
	for _, p := range places {
		if !p.Located() {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		span.SetStatus(codes.Ok, "nothing to geocode")
		return &types.GeocodeResponse{Places: []types.Place{}}, nil
	}

	located, stats, err := s.geocoder.Geocode(ctx, pending)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return nil, err
	}

	updated := make([]types.Place, 0, len(located))
	for _, p := range located {
		if err := s.store.UpdatePlace(ctx, p); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				// deleted while the batch was running
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "store failed")
			return nil, fmt.Errorf("error storing coordinates of %s: %w", p.ID, err)
		}
		updated = append(updated, p)
	}

	l.InfoContext(ctx, "Stored places geocoded", slog.Int("pending", len(pending)), slog.Int("located", len(updated)))
	span.SetStatus(codes.Ok, "geocoded")
	return &types.GeocodeResponse{Places: updated, Stats: stats}, nil
}

func (s *PipelineServiceImpl) Plan(ctx context.Context, placeIDs []string) (*types.PlanResponse, error) {
	ctx, span := otel.Tracer("PipelineService").Start(ctx, "Plan", trace.WithAttributes(
		attribute.Int("selection.count", len(placeIDs)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Plan"))

	if !s.planning.TryLock() {
		span.SetStatus(codes.Error, "plan in progress")
		return nil, types.ErrPlanInProgress
	}
	defer s.planning.Unlock()

	if err := s.requireMapping(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mapping unavailable")
		return nil, err
	}

	places, err := s.store.ListPlaces(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("error listing places: %w", err)
	}
	selected, err := selectPlaces(places, placeIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad selection")
		return nil, err
	}
	located := make([]types.Place, 0, len(selected))
	for _, p := range selected {
		if p.Located() {
			located = append(located, p)
		}
	}
	if skipped := len(selected) - len(located); skipped > 0 {
		l.InfoContext(ctx, "Skipping places without coordinates", slog.Int("skipped", skipped))
	}

	r, err := s.planner.Plan(ctx, located)
	if err != nil {
		l.ErrorContext(ctx, "Planning failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "planning failed")
		return nil, err
	}
	if len(located) < 2 {
		span.SetStatus(codes.Ok, "not enough places")
		return &types.PlanResponse{Route: r, Places: located}, nil
	}

	if err := s.store.SaveRoute(ctx, r); err != nil {
		l.WarnContext(ctx, "Route could not be stored", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("error storing route: %w", err)
	}

	byID := make(map[string]types.Place, len(located))
	for _, p := range located {
		byID[p.ID] = p
	}
	ordered := make([]types.Place, 0, len(r.Sequence))
	for _, id := range r.Sequence {
		ordered = append(ordered, byID[id])
	}

	l.InfoContext(ctx, "Route planned", slog.Int("stops", len(r.Sequence)), slog.Int("minutes", r.TotalDurationMinutes))
	span.SetStatus(codes.Ok, "planned")
	return &types.PlanResponse{Route: r, Places: ordered, Saved: true}, nil
}

func (s *PipelineServiceImpl) MappingStatus(ctx context.Context) (types.MappingStatus, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return types.MappingStatus{}, err
	}
	if !s.mapping(settings) {
		return types.MappingStatus{}, nil
	}
	return types.MappingStatus{
		Available:        true,
		AMapKey:          settings.AMapKey,
		AMapSecurityCode: settings.AMapSecurityCode,
	}, nil
}

// selectPlaces keeps the stored order. An empty selection selects everything.
func selectPlaces(places []types.Place, ids []string) ([]types.Place, error) {
	if len(ids) == 0 {
		return places, nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]types.Place, 0, len(ids))
	for _, p := range places {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
			delete(want, p.ID)
		}
	}
	for id := range want {
		return nil, fmt.Errorf("place %s: %w", id, types.ErrNotFound)
	}
	return out, nil
}

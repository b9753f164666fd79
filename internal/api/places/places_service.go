package places

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/internal/types"
)

// Store is the part of the store the place surface writes through.
type Store interface {
	ListPlaces(ctx context.Context) ([]types.Place, error)
	GetPlace(ctx context.Context, id string) (*types.Place, error)
	CreatePlace(ctx context.Context, p types.Place) (*types.Place, error)
	UpdatePlace(ctx context.Context, p types.Place) error
	DeletePlace(ctx context.Context, id string) error
}

var _ PlacesService = (*PlacesServiceImpl)(nil)

type PlacesService interface {
	ListPlaces(ctx context.Context) ([]types.Place, error)
	GetPlace(ctx context.Context, id string) (*types.Place, error)
	// CreatePlace adds a manual, unlocated entry.
	CreatePlace(ctx context.Context, req types.CreatePlaceRequest) (*types.Place, error)
	// UpdatePlace applies a partial edit. A new name or city drops the coordinates.
	UpdatePlace(ctx context.Context, id string, req types.UpdatePlaceRequest) (*types.Place, error)
	DeletePlace(ctx context.Context, id string) error
}

type PlacesServiceImpl struct {
	logger *slog.Logger
	store  Store
}

func NewPlacesService(store Store, logger *slog.Logger) *PlacesServiceImpl {
	return &PlacesServiceImpl{
		logger: logger,
		store:  store,
	}
}

func (s *PlacesServiceImpl) ListPlaces(ctx context.Context) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "ListPlaces")
	defer span.End()

	places, err := s.store.ListPlaces(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list places")
		return nil, fmt.Errorf("error listing places: %w", err)
	}
	span.SetAttributes(attribute.Int("places.count", len(places)))
	span.SetStatus(codes.Ok, "Places listed")
	return places, nil
}

func (s *PlacesServiceImpl) GetPlace(ctx context.Context, id string) (*types.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "GetPlace", trace.WithAttributes(
		attribute.String("place.id", id),
	))
	defer span.End()

	p, err := s.store.GetPlace(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get place")
		return nil, fmt.Errorf("error fetching place %s: %w", id, err)
	}
	span.SetStatus(codes.Ok, "Place fetched")
	return p, nil
}

func (s *PlacesServiceImpl) CreatePlace(ctx context.Context, req types.CreatePlaceRequest) (*types.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "CreatePlace", trace.WithAttributes(
		attribute.String("place.name", req.Name),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreatePlace"))

	category := req.Category
	if category == "" {
		category = types.CategoryOther
	}
	p, err := s.store.CreatePlace(ctx, types.Place{
		Name:     req.Name,
		City:     req.City,
		Category: category,
		Note:     req.Note,
	})
	if err != nil {
		l.WarnContext(ctx, "Failed to create place", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create place")
		return nil, fmt.Errorf("error creating place: %w", err)
	}

	l.InfoContext(ctx, "Place created", slog.String("id", p.ID))
	span.SetStatus(codes.Ok, "Place created")
	return p, nil
}

func (s *PlacesServiceImpl) UpdatePlace(ctx context.Context, id string, req types.UpdatePlaceRequest) (*types.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "UpdatePlace", trace.WithAttributes(
		attribute.String("place.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdatePlace"), slog.String("placeID", id))

	current, err := s.store.GetPlace(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Place not found")
		return nil, fmt.Errorf("error fetching place %s: %w", id, err)
	}

	updated := applyUpdate(*current, req)
	if err := s.store.UpdatePlace(ctx, updated); err != nil {
		l.WarnContext(ctx, "Failed to update place", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update place")
		return nil, fmt.Errorf("error updating place %s: %w", id, err)
	}

	l.InfoContext(ctx, "Place updated", slog.Bool("located", updated.Located()))
	span.SetStatus(codes.Ok, "Place updated")
	return &updated, nil
}

func (s *PlacesServiceImpl) DeletePlace(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "DeletePlace", trace.WithAttributes(
		attribute.String("place.id", id),
	))
	defer span.End()

	if err := s.store.DeletePlace(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete place")
		return fmt.Errorf("error deleting place %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Place deleted", slog.String("method", "DeletePlace"), slog.String("placeID", id))
	span.SetStatus(codes.Ok, "Place deleted")
	return nil
}

func applyUpdate(p types.Place, req types.UpdatePlaceRequest) types.Place {
	moved := false
	if req.Name != nil && *req.Name != p.Name {
		p.Name = *req.Name
		moved = true
	}
	if req.City != nil && *req.City != p.City {
		p.City = *req.City
		moved = true
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Note != nil {
		p.Note = *req.Note
	}
	if moved {
		p = p.Unlocated()
	}
	return p
}

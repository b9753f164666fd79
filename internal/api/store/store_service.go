package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the single source of truth for places, the route and settings.
// Observers registered with Watch see every committed write exactly once.
type Service interface {
	ListPlaces(ctx context.Context) ([]types.Place, error)
	GetPlace(ctx context.Context, id string) (*types.Place, error)
	// CreatePlace stores a new place, assigning an id when p has none.
	CreatePlace(ctx context.Context, p types.Place) (*types.Place, error)
	UpdatePlace(ctx context.Context, p types.Place) error
	DeletePlace(ctx context.Context, id string) error
	// ReplacePlaces drops the route and swaps in places as one change.
	ReplacePlaces(ctx context.Context, places []types.Place) error

	GetRoute(ctx context.Context) (*types.Route, error)
	SaveRoute(ctx context.Context, r types.Route) error
	ClearRoute(ctx context.Context) error

	// GetSettings returns the stored record, or the defaults before the first save.
	GetSettings(ctx context.Context) (types.Settings, error)
	SaveSettings(ctx context.Context, s types.Settings) error

	Export(ctx context.Context) (*types.ExportDocument, error)
	Import(ctx context.Context, doc types.ExportDocument) error

	Snapshot(ctx context.Context) (types.Snapshot, error)
	// Watch calls fn with the current snapshot, then after each write touching collections.
	// fn runs while writes are held back, so it must not write to the store itself.
	Watch(ctx context.Context, fn Listener, collections ...types.Collection) (unsubscribe func(), err error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	notifier *Notifier
	defaults types.Settings
	now      func() time.Time

	// writeMu orders writes and their notifications so observers never see them interleaved.
	writeMu sync.Mutex
}

func NewService(repo Repository, defaults types.Settings, logger *slog.Logger) *ServiceImpl {
	if defaults.LLMModel == "" {
		defaults.LLMModel = types.DefaultLLMModel
	}
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		notifier: NewNotifier(),
		defaults: defaults,
		now:      time.Now,
	}
}

func (s *ServiceImpl) ListPlaces(ctx context.Context) ([]types.Place, error) {
	return s.repo.ListPlaces(ctx)
}

func (s *ServiceImpl) GetPlace(ctx context.Context, id string) (*types.Place, error) {
	return s.repo.GetPlace(ctx, id)
}

func (s *ServiceImpl) CreatePlace(ctx context.Context, p types.Place) (*types.Place, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p = normalise(p)
	if err := validatePlace(p); err != nil {
		return nil, err
	}
	err := s.write(ctx, "CreatePlace", []types.Collection{types.CollectionPlaces, types.CollectionRoute}, func(ctx context.Context) error {
		return s.repo.InsertPlace(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ServiceImpl) UpdatePlace(ctx context.Context, p types.Place) error {
	p = normalise(p)
	if err := validatePlace(p); err != nil {
		return err
	}
	return s.write(ctx, "UpdatePlace", []types.Collection{types.CollectionPlaces, types.CollectionRoute}, func(ctx context.Context) error {
		return s.repo.UpdatePlace(ctx, p)
	})
}

func (s *ServiceImpl) DeletePlace(ctx context.Context, id string) error {
	return s.write(ctx, "DeletePlace", []types.Collection{types.CollectionPlaces, types.CollectionRoute}, func(ctx context.Context) error {
		return s.repo.DeletePlace(ctx, id)
	})
}

func (s *ServiceImpl) ReplacePlaces(ctx context.Context, places []types.Place) error {
	normalised := make([]types.Place, len(places))
	for i, p := range places {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		normalised[i] = normalise(p)
		if err := validatePlace(normalised[i]); err != nil {
			return fmt.Errorf("place %d: %w", i, err)
		}
	}
	if err := uniqueIDs(normalised); err != nil {
		return err
	}
	return s.write(ctx, "ReplacePlaces", []types.Collection{types.CollectionPlaces, types.CollectionRoute}, func(ctx context.Context) error {
		return s.repo.ReplacePlaces(ctx, normalised, nil)
	})
}

func (s *ServiceImpl) GetRoute(ctx context.Context) (*types.Route, error) {
	return s.repo.GetRoute(ctx)
}

func (s *ServiceImpl) SaveRoute(ctx context.Context, r types.Route) error {
	if err := validateRoute(r); err != nil {
		return err
	}
	return s.write(ctx, "SaveRoute", []types.Collection{types.CollectionRoute}, func(ctx context.Context) error {
		return s.repo.SaveRoute(ctx, r)
	})
}

func (s *ServiceImpl) ClearRoute(ctx context.Context) error {
	return s.write(ctx, "ClearRoute", []types.Collection{types.CollectionRoute}, s.repo.ClearRoute)
}

func (s *ServiceImpl) GetSettings(ctx context.Context) (types.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return s.defaults, nil
		}
		return types.Settings{}, fmt.Errorf("error fetching settings: %w", err)
	}
	return *settings, nil
}

func (s *ServiceImpl) SaveSettings(ctx context.Context, settings types.Settings) error {
	settings.LLMBaseURL = strings.TrimRight(strings.TrimSpace(settings.LLMBaseURL), "/")
	return s.write(ctx, "SaveSettings", []types.Collection{types.CollectionSettings}, func(ctx context.Context) error {
		return s.repo.SaveSettings(ctx, settings)
	})
}

func (s *ServiceImpl) Export(ctx context.Context) (*types.ExportDocument, error) {
	ctx, span := otel.Tracer("StoreService").Start(ctx, "Export")
	defer span.End()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "exported")
	return &types.ExportDocument{
		Version:    types.ExportVersion,
		ExportedAt: s.now().UTC(),
		Locations:  snap.Places,
		Route:      snap.Route,
	}, nil
}

// Import replaces places and route with the document content, keeping ids and durations as they are.
func (s *ServiceImpl) Import(ctx context.Context, doc types.ExportDocument) error {
	if doc.Version > types.ExportVersion {
		return fmt.Errorf("export version %d is newer than supported %d: %w", doc.Version, types.ExportVersion, types.ErrInvalidInput)
	}
	places := make([]types.Place, len(doc.Locations))
	for i, p := range doc.Locations {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("location %d has no id: %w", i, types.ErrInvalidInput)
		}
		places[i] = normalise(p)
		if err := validatePlace(places[i]); err != nil {
			return fmt.Errorf("location %d: %w", i, err)
		}
	}
	if err := uniqueIDs(places); err != nil {
		return err
	}
	if doc.Route != nil {
		if err := validateRoute(*doc.Route); err != nil {
			return err
		}
		known := make(map[string]struct{}, len(places))
		for _, p := range places {
			known[p.ID] = struct{}{}
		}
		for _, id := range doc.Route.Sequence {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("route place %s: %w", id, types.ErrStaleRoute)
			}
		}
	}
	return s.write(ctx, "Import", []types.Collection{types.CollectionPlaces, types.CollectionRoute}, func(ctx context.Context) error {
		return s.repo.ReplacePlaces(ctx, places, doc.Route)
	})
}

func (s *ServiceImpl) Snapshot(ctx context.Context) (types.Snapshot, error) {
	places, err := s.repo.ListPlaces(ctx)
	if err != nil {
		return types.Snapshot{}, err
	}
	route, err := s.repo.GetRoute(ctx)
	if err != nil {
		return types.Snapshot{}, err
	}
	return types.Snapshot{Places: places, Route: route}, nil
}

func (s *ServiceImpl) Watch(ctx context.Context, fn Listener, collections ...types.Collection) (func(), error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading initial snapshot: %w", err)
	}
	initial := collections
	if len(initial) == 0 {
		initial = []types.Collection{types.CollectionPlaces, types.CollectionRoute, types.CollectionSettings}
	}
	if slices.Contains(initial, types.CollectionSettings) {
		settings, err := s.GetSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("error reading initial settings: %w", err)
		}
		snap.Settings = &settings
	}
	fn(types.Change{
		Collections: slices.Clone(initial),
		Snapshot:    snap,
		At:          s.now(),
	})
	return s.notifier.Subscribe(fn, collections...), nil
}

// write runs one mutation and, once it has committed, publishes the resulting state.
func (s *ServiceImpl) write(ctx context.Context, op string, touched []types.Collection, fn func(context.Context) error) error {
	ctx, span := otel.Tracer("StoreService").Start(ctx, op, trace.WithAttributes(
		attribute.Int("store.collections", len(touched)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", op))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := fn(ctx); err != nil {
		l.WarnContext(ctx, "Store write failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return err
	}
	span.SetStatus(codes.Ok, "committed")

	if s.notifier.Len() == 0 {
		return nil
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		// The write is committed; observers pick up the state with the next change.
		l.ErrorContext(ctx, "Failed to read snapshot for observers", slog.Any("error", err))
		return nil
	}
	if slices.Contains(touched, types.CollectionSettings) {
		if settings, err := s.GetSettings(ctx); err == nil {
			snap.Settings = &settings
		}
	}
	s.notifier.Publish(ctx, types.Change{Collections: touched, Snapshot: snap, At: s.now()})
	return nil
}

func normalise(p types.Place) types.Place {
	p.Name = strings.TrimSpace(p.Name)
	p.City = strings.TrimSpace(p.City)
	p.Note = strings.TrimSpace(p.Note)
	p.Category = types.ParseCategory(string(p.Category))
	return p
}

func validatePlace(p types.Place) error {
	if p.Name == "" {
		return fmt.Errorf("place name is required: %w", types.ErrInvalidInput)
	}
	if (p.Latitude != 0 || p.Longitude != 0) && !p.Located() {
		return fmt.Errorf("coordinates %v,%v are out of range: %w", p.Latitude, p.Longitude, types.ErrInvalidInput)
	}
	return nil
}

func validateRoute(r types.Route) error {
	if r.TotalDurationMinutes < 0 {
		return fmt.Errorf("negative route duration: %w", types.ErrInvalidInput)
	}
	if len(distinct(r.Sequence)) != len(r.Sequence) {
		return fmt.Errorf("route visits a place twice: %w", types.ErrInvalidInput)
	}
	return nil
}

func uniqueIDs(places []types.Place) error {
	seen := make(map[string]struct{}, len(places))
	for _, p := range places {
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("duplicate place id %s: %w", p.ID, types.ErrInvalidInput)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

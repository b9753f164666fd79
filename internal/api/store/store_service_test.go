package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xco2/tripspot/internal/types"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListPlaces(ctx context.Context) ([]types.Place, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

func (m *MockRepository) GetPlace(ctx context.Context, id string) (*types.Place, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Place), args.Error(1)
}

func (m *MockRepository) InsertPlace(ctx context.Context, p types.Place) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockRepository) UpdatePlace(ctx context.Context, p types.Place) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockRepository) DeletePlace(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) ReplacePlaces(ctx context.Context, places []types.Place, route *types.Route) error {
	return m.Called(ctx, places, route).Error(0)
}

func (m *MockRepository) GetRoute(ctx context.Context) (*types.Route, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Route), args.Error(1)
}

func (m *MockRepository) SaveRoute(ctx context.Context, r types.Route) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockRepository) ClearRoute(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRepository) GetSettings(ctx context.Context) (*types.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Settings), args.Error(1)
}

func (m *MockRepository) SaveSettings(ctx context.Context, s types.Settings) error {
	return m.Called(ctx, s).Error(0)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupStoreServiceTest() (*ServiceImpl, *MockRepository) {
	mockRepo := new(MockRepository)
	return NewService(mockRepo, types.Settings{}, discard), mockRepo
}

func located(id, name string, lat, lng float64) types.Place {
	return types.Place{ID: id, Name: name, City: "成都", Category: types.CategorySpot, Latitude: lat, Longitude: lng}
}

func TestServiceImpl_GetSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults before first save", func(t *testing.T) {
		mockRepo := new(MockRepository)
		service := NewService(mockRepo, types.Settings{AMapKey: "from-env"}, discard)
		mockRepo.On("GetSettings", ctx).Return(nil, types.ErrNotFound).Once()

		s, err := service.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.Settings{AMapKey: "from-env", LLMModel: types.DefaultLLMModel}, s)
		mockRepo.AssertExpectations(t)
	})

	t.Run("stored record", func(t *testing.T) {
		service, mockRepo := setupStoreServiceTest()
		stored := &types.Settings{AMapKey: "k", LLMAPIKey: "sk", LLMModel: "gpt-4o-mini"}
		mockRepo.On("GetSettings", ctx).Return(stored, nil).Once()

		s, err := service.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, *stored, s)
	})

	t.Run("repository failure", func(t *testing.T) {
		service, mockRepo := setupStoreServiceTest()
		repoErr := errors.New("connection reset")
		mockRepo.On("GetSettings", ctx).Return(nil, repoErr).Once()

		_, err := service.GetSettings(ctx)
		assert.ErrorIs(t, err, repoErr)
	})
}

func TestServiceImpl_CreatePlace(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id and normalises", func(t *testing.T) {
		service, mockRepo := setupStoreServiceTest()
		mockRepo.On("InsertPlace", ctx, mock.MatchedBy(func(p types.Place) bool {
			return p.ID != "" && p.Name == "锦里" && p.Category == types.CategoryOther
		})).Return(nil).Once()

		p, err := service.CreatePlace(ctx, types.Place{Name: "  锦里 ", City: "成都", Category: "market"})
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "锦里", p.Name)
		mockRepo.AssertExpectations(t)
	})

	t.Run("name required", func(t *testing.T) {
		service, mockRepo := setupStoreServiceTest()

		_, err := service.CreatePlace(ctx, types.Place{City: "成都"})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
		mockRepo.AssertNotCalled(t, "InsertPlace", mock.Anything, mock.Anything)
	})

	t.Run("half set coordinates rejected", func(t *testing.T) {
		service, _ := setupStoreServiceTest()

		_, err := service.CreatePlace(ctx, types.Place{Name: "x", Latitude: 120})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}

func TestServiceImpl_SaveRoute_RejectsDuplicates(t *testing.T) {
	service, mockRepo := setupStoreServiceTest()

	err := service.SaveRoute(context.Background(), types.Route{Sequence: []string{"a", "b", "a"}})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	mockRepo.AssertNotCalled(t, "SaveRoute", mock.Anything, mock.Anything)
}

func TestServiceImpl_DeletePlaceClearsRoute(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryRepository(), types.Settings{}, discard)

	a := located("a", "武侯祠", 30.6463, 104.0482)
	b := located("b", "锦里", 30.6448, 104.0503)
	require.NoError(t, service.ReplacePlaces(ctx, []types.Place{a, b}))
	require.NoError(t, service.SaveRoute(ctx, types.Route{Sequence: []string{"a", "b"}, TotalDurationMinutes: 10}))

	route, err := service.GetRoute(ctx)
	require.NoError(t, err)
	require.NotNil(t, route)

	require.NoError(t, service.DeletePlace(ctx, "b"))

	route, err = service.GetRoute(ctx)
	require.NoError(t, err)
	assert.Nil(t, route)

	places, err := service.ListPlaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Place{a}, places)
}

func TestServiceImpl_ReplacePlacesClearsRoute(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryRepository(), types.Settings{}, discard)

	require.NoError(t, service.ReplacePlaces(ctx, []types.Place{located("a", "A", 30, 104), located("b", "B", 30.1, 104.1)}))
	require.NoError(t, service.SaveRoute(ctx, types.Route{Sequence: []string{"b", "a"}}))
	require.NoError(t, service.ReplacePlaces(ctx, []types.Place{located("c", "C", 31, 105)}))

	route, err := service.GetRoute(ctx)
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestServiceImpl_SaveRouteStale(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryRepository(), types.Settings{}, discard)
	require.NoError(t, service.ReplacePlaces(ctx, []types.Place{located("a", "A", 30, 104)}))

	err := service.SaveRoute(ctx, types.Route{Sequence: []string{"a", "zzz"}})
	assert.ErrorIs(t, err, types.ErrStaleRoute)
}

func TestServiceImpl_Watch(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryRepository(), types.Settings{}, discard)

	var mu sync.Mutex
	var routeChanges []types.Change
	unsubscribe, err := service.Watch(ctx, func(c types.Change) {
		mu.Lock()
		defer mu.Unlock()
		routeChanges = append(routeChanges, c)
	}, types.CollectionRoute)
	require.NoError(t, err)

	var settingsChanges []types.Change
	unsubscribeSettings, err := service.Watch(ctx, func(c types.Change) {
		if c.Touches(types.CollectionSettings) {
			settingsChanges = append(settingsChanges, c)
		}
	}, types.CollectionSettings)
	require.NoError(t, err)
	defer unsubscribeSettings()

	require.NoError(t, service.ReplacePlaces(ctx, []types.Place{located("a", "A", 30, 104), located("b", "B", 30.1, 104.1)}))
	require.NoError(t, service.SaveRoute(ctx, types.Route{Sequence: []string{"a", "b"}, TotalDurationMinutes: 3}))
	require.NoError(t, service.SaveSettings(ctx, types.Settings{AMapKey: "k"}))
	require.NoError(t, service.DeletePlace(ctx, "a"))

	mu.Lock()
	require.Len(t, routeChanges, 4, "initial snapshot plus three route-touching writes")
	assert.Empty(t, routeChanges[0].Snapshot.Places)
	assert.Len(t, routeChanges[1].Snapshot.Places, 2)
	assert.Nil(t, routeChanges[1].Snapshot.Route)
	require.NotNil(t, routeChanges[2].Snapshot.Route)
	assert.Equal(t, []string{"a", "b"}, routeChanges[2].Snapshot.Route.Sequence)
	assert.Nil(t, routeChanges[3].Snapshot.Route, "delete clears the route in the same change")
	assert.Len(t, routeChanges[3].Snapshot.Places, 1)
	mu.Unlock()
	require.Len(t, settingsChanges, 2, "initial value plus one save")
	assert.Equal(t, []types.Collection{types.CollectionSettings}, settingsChanges[0].Collections)
	require.NotNil(t, settingsChanges[0].Snapshot.Settings)
	assert.Empty(t, settingsChanges[0].Snapshot.Settings.AMapKey)
	require.NotNil(t, settingsChanges[1].Snapshot.Settings)
	assert.Equal(t, "k", settingsChanges[1].Snapshot.Settings.AMapKey)
	assert.Equal(t, []types.Collection{types.CollectionRoute}, routeChanges[0].Collections)
	assert.Nil(t, routeChanges[0].Snapshot.Settings)

	unsubscribe()
	unsubscribe()
	require.NoError(t, service.ClearRoute(ctx))
	mu.Lock()
	assert.Len(t, routeChanges, 4)
	mu.Unlock()

	t.Run("initial settings come from defaults", func(t *testing.T) {
		defaulted := NewService(NewMemoryRepository(), types.Settings{AMapKey: "default-key"}, discard)
		var first types.Change
		stop, err := defaulted.Watch(ctx, func(c types.Change) {
			if first.At.IsZero() {
				first = c
			}
		}, types.CollectionSettings)
		require.NoError(t, err)
		defer stop()

		assert.Equal(t, []types.Collection{types.CollectionSettings}, first.Collections)
		require.NotNil(t, first.Snapshot.Settings)
		assert.Equal(t, "default-key", first.Snapshot.Settings.AMapKey)
	})

	t.Run("unfiltered observers see every collection", func(t *testing.T) {
		var first types.Change
		stop, err := service.Watch(ctx, func(c types.Change) {
			if first.At.IsZero() {
				first = c
			}
		})
		require.NoError(t, err)
		defer stop()

		assert.ElementsMatch(t, []types.Collection{types.CollectionPlaces, types.CollectionRoute, types.CollectionSettings}, first.Collections)
		require.NotNil(t, first.Snapshot.Settings)
		assert.Equal(t, "k", first.Snapshot.Settings.AMapKey)
	})
}

func TestServiceImpl_ExportImport(t *testing.T) {
	ctx := context.Background()
	source := NewService(NewMemoryRepository(), types.Settings{}, discard)
	source.now = func() time.Time { return time.Date(2026, 10, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600)) }

	a := located("id-a", "武侯祠", 30.6463, 104.0482)
	b := located("id-b", "锦里", 30.6448, 104.0503)
	require.NoError(t, source.ReplacePlaces(ctx, []types.Place{a, b}))
	require.NoError(t, source.SaveRoute(ctx, types.Route{Sequence: []string{"id-a", "id-b"}, TotalDurationMinutes: 10, Advice: "步行即可"}))

	doc, err := source.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ExportVersion, doc.Version)
	assert.Equal(t, time.UTC, doc.ExportedAt.Location())

	target := NewService(NewMemoryRepository(), types.Settings{}, discard)
	require.NoError(t, target.Import(ctx, *doc))

	places, err := target.ListPlaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Place{a, b}, places)
	route, err := target.GetRoute(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Route, route)
}

func TestServiceImpl_ImportValidation(t *testing.T) {
	ctx := context.Background()
	service, mockRepo := setupStoreServiceTest()

	tests := []struct {
		name string
		doc  types.ExportDocument
		want error
	}{
		{"future version", types.ExportDocument{Version: 99}, types.ErrInvalidInput},
		{"missing id", types.ExportDocument{Version: 1, Locations: []types.Place{{Name: "A"}}}, types.ErrInvalidInput},
		{"duplicate id", types.ExportDocument{Version: 1, Locations: []types.Place{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}}, types.ErrInvalidInput},
		{"dangling route", types.ExportDocument{Version: 1, Locations: []types.Place{{ID: "a", Name: "A"}},
			Route: &types.Route{Sequence: []string{"a", "b"}}}, types.ErrStaleRoute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, service.Import(ctx, tt.doc), tt.want)
		})
	}
	mockRepo.AssertNotCalled(t, "ReplacePlaces", mock.Anything, mock.Anything, mock.Anything)
}

package duration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xco2/tripspot/internal/api/amap"
	"github.com/xco2/tripspot/internal/types"
)

type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) Driving(ctx context.Context, creds amap.Credentials, from, to amap.LngLat) (amap.Leg, error) {
	args := m.Called(ctx, creds, from, to)
	return args.Get(0).(amap.Leg), args.Error(1)
}

type staticSettings struct {
	settings types.Settings
	err      error
}

func (s staticSettings) GetSettings(context.Context) (types.Settings, error) {
	return s.settings, s.err
}

var (
	wuhouci = types.Place{ID: "a", Name: "武侯祠", Latitude: 30.6463, Longitude: 104.0482}
	jinli   = types.Place{ID: "b", Name: "锦里", Latitude: 30.6448, Longitude: 104.0503}
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func setupEstimatorTest(settings types.Settings, cache LegCache) (*Service, *MockRouter) {
	router := new(MockRouter)
	return NewService(router, staticSettings{settings: settings}, cache, 0, discard), router
}

func TestService_Estimate(t *testing.T) {
	ctx := context.Background()
	creds := amap.Credentials{Key: "k"}

	t.Run("live driving time", func(t *testing.T) {
		service, router := setupEstimatorTest(types.Settings{AMapKey: "k"}, nil)
		router.On("Driving", mock.Anything, creds, amap.PointOf(wuhouci), amap.PointOf(jinli)).
			Return(amap.Leg{Seconds: 600, Meters: 812}, nil).Once()

		assert.Equal(t, 600.0, service.Estimate(ctx, wuhouci, jinli))
		router.AssertExpectations(t)
	})

	t.Run("falls back on routing failure", func(t *testing.T) {
		service, router := setupEstimatorTest(types.Settings{AMapKey: "k"}, nil)
		router.On("Driving", mock.Anything, creds, mock.Anything, mock.Anything).
			Return(amap.Leg{}, fmt.Errorf("amap driving: %w", types.ErrServiceUnavailable)).Once()

		got := service.Estimate(ctx, wuhouci, jinli)
		assert.InDelta(t, StraightLineSeconds(wuhouci, jinli, DefaultFallbackSpeedKmh), got, 1e-9)
		assert.Greater(t, got, 0.0)
	})

	t.Run("falls back when no route exists", func(t *testing.T) {
		service, router := setupEstimatorTest(types.Settings{AMapKey: "k"}, nil)
		router.On("Driving", mock.Anything, creds, mock.Anything, mock.Anything).
			Return(amap.Leg{}, types.ErrNoMatch).Once()

		assert.Greater(t, service.Estimate(ctx, wuhouci, jinli), 0.0)
	})

	t.Run("no key never calls the router", func(t *testing.T) {
		service, router := setupEstimatorTest(types.Settings{}, nil)

		assert.Greater(t, service.Estimate(ctx, wuhouci, jinli), 0.0)
		router.AssertNotCalled(t, "Driving", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unreadable settings fall back", func(t *testing.T) {
		router := new(MockRouter)
		service := NewService(router, staticSettings{err: errors.New("db down")}, nil, 0, discard)

		assert.Greater(t, service.Estimate(ctx, wuhouci, jinli), 0.0)
		router.AssertNotCalled(t, "Driving", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("identical points take no time", func(t *testing.T) {
		service, router := setupEstimatorTest(types.Settings{AMapKey: "k"}, nil)

		assert.Equal(t, 0.0, service.Estimate(ctx, wuhouci, wuhouci))
		router.AssertNotCalled(t, "Driving", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_SessionCachesLiveLegs(t *testing.T) {
	ctx := context.Background()
	service, router := setupEstimatorTest(types.Settings{AMapKey: "k"}, NewMemoryCache(time.Hour))
	router.On("Driving", mock.Anything, amap.Credentials{Key: "k"}, amap.PointOf(wuhouci), amap.PointOf(jinli)).
		Return(amap.Leg{Seconds: 420}, nil).Once()
	router.On("Driving", mock.Anything, amap.Credentials{Key: "k"}, amap.PointOf(jinli), amap.PointOf(wuhouci)).
		Return(amap.Leg{}, types.ErrServiceUnavailable).Twice()

	est := service.Session(ctx)
	assert.Equal(t, 420.0, est.Estimate(ctx, wuhouci, jinli))
	assert.Equal(t, 420.0, est.Estimate(ctx, wuhouci, jinli))

	// fallback results are not cached, so the reverse leg is asked for again
	est.Estimate(ctx, jinli, wuhouci)
	est.Estimate(ctx, jinli, wuhouci)
	router.AssertExpectations(t)
}

func TestStraightLineSeconds_MonotonicInDistance(t *testing.T) {
	origin := types.Place{Latitude: 30.0, Longitude: 104.0}
	prev := 0.0
	for i := 1; i <= 20; i++ {
		p := types.Place{Latitude: 30.0 + float64(i)*0.01, Longitude: 104.0}
		got := StraightLineSeconds(origin, p, DefaultFallbackSpeedKmh)
		assert.Greater(t, got, prev, "step %d", i)
		prev = got
	}
}

func TestStraightLineSeconds_Speed(t *testing.T) {
	// one degree of latitude is about 111.19 km; at 30 km/h that is about 13343 s
	from := types.Place{Latitude: 30, Longitude: 104}
	to := types.Place{Latitude: 31, Longitude: 104}
	assert.InDelta(t, 111195, DistanceMeters(from, to), 10)
	assert.InDelta(t, 111195/(30*1000.0/3600), StraightLineSeconds(from, to, 30), 2)
	assert.InDelta(t, StraightLineSeconds(from, to, 30)/2, StraightLineSeconds(from, to, 60), 1e-6)
	assert.Equal(t, StraightLineSeconds(from, to, 30), StraightLineSeconds(from, to, 0))
}

func TestTieredCache_BackfillsFasterLayer(t *testing.T) {
	ctx := context.Background()
	fast, slow := NewMemoryCache(time.Hour), NewMemoryCache(time.Hour)
	tiered := TieredCache{fast, slow}

	slow.Set(ctx, "k", 42)
	got, ok := tiered.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 42.0, got)

	got, ok = fast.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 42.0, got)

	_, ok = tiered.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestLegKey_Directed(t *testing.T) {
	assert.NotEqual(t, LegKey(wuhouci, jinli), LegKey(jinli, wuhouci))
	assert.Equal(t, "tripspot:leg:104.048200,30.646300:104.050300,30.644800", LegKey(wuhouci, jinli))
}

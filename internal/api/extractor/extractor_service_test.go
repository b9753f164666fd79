package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	generativeAI "github.com/xco2/tripspot/internal/api/generative_ai"
	"github.com/xco2/tripspot/internal/types"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req generativeAI.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Model() string { return "test-model" }

type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) NewGenerator(ctx context.Context, settings types.Settings) (generativeAI.Generator, error) {
	args := m.Called(ctx, settings)
	if g := args.Get(0); g != nil {
		return g.(generativeAI.Generator), args.Error(1)
	}
	return nil, args.Error(1)
}

type staticSettings types.Settings

func (s staticSettings) GetSettings(context.Context) (types.Settings, error) {
	return types.Settings(s), nil
}

func setupExtractorServiceTest(payload string, genErr error) (*ServiceImpl, *MockFactory, *MockGenerator) {
	gen := new(MockGenerator)
	factory := new(MockFactory)
	settings := types.Settings{LLMAPIKey: "sk"}
	factory.On("NewGenerator", mock.Anything, settings).Return(gen, nil).Maybe()
	gen.On("Generate", mock.Anything, mock.Anything).Return(payload, genErr).Maybe()

	service := NewService(staticSettings(settings), factory, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n := 0
	service.newID = func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}
	return service, factory, gen
}

func TestServiceImpl_Extract(t *testing.T) {
	ctx := context.Background()
	const text = "第一天去武侯祠，然后在锦里吃晚饭"

	t.Run("bare array", func(t *testing.T) {
		payload := `[{"name":"武侯祠","city":"成都","type":"spot","context":"第一天去武侯祠"},
			{"name":"锦里","city":"成都","type":"food","context":"在锦里吃晚饭","id":"from-llm","lat":1}]`
		service, _, gen := setupExtractorServiceTest(payload, nil)

		places, err := service.Extract(ctx, text)
		require.NoError(t, err)
		require.Len(t, places, 2)
		assert.Equal(t, types.Place{ID: "id-1", Name: "武侯祠", City: "成都", Category: types.CategorySpot, Note: "第一天去武侯祠"}, places[0])
		assert.Equal(t, "id-2", places[1].ID)
		assert.False(t, places[1].Located())

		req := gen.Calls[0].Arguments.Get(1).(generativeAI.Request)
		assert.Equal(t, systemPrompt, req.System)
		assert.Contains(t, req.Prompt, text)
		assert.True(t, req.JSON)
		assert.Equal(t, DefaultTemperature, req.Temperature)
	})

	for _, key := range []string{"locations", "data", "places"} {
		t.Run("wrapped under "+key, func(t *testing.T) {
			payload := fmt.Sprintf("```json\n{%q:[{\"name\":\"锦里\",\"city\":\"成都\",\"type\":\"美食\"}]}\n```", key)
			service, _, _ := setupExtractorServiceTest(payload, nil)

			places, err := service.Extract(ctx, text)
			require.NoError(t, err)
			require.Len(t, places, 1)
			assert.Equal(t, types.CategoryOther, places[0].Category)
		})
	}

	t.Run("empty result is not an error", func(t *testing.T) {
		service, _, _ := setupExtractorServiceTest(`{"locations":[]}`, nil)

		places, err := service.Extract(ctx, text)
		require.NoError(t, err)
		assert.Empty(t, places)
	})

	malformed := map[string]string{
		"not json":          "I could not find any places",
		"truncated":         `[{"name":"武侯祠"`,
		"unknown wrapper":   `{"results":[{"name":"x"}]}`,
		"item without name": `[{"city":"成都","type":"spot"}]`,
	}
	for name, payload := range malformed {
		t.Run("malformed "+name, func(t *testing.T) {
			service, _, _ := setupExtractorServiceTest(payload, nil)

			places, err := service.Extract(ctx, text)
			assert.Nil(t, places)
			assert.ErrorIs(t, err, types.ErrExtractionFailed)
			assert.ErrorIs(t, err, types.ErrMalformedResponse)
			assert.NotContains(t, err.Error(), payload)
		})
	}

	t.Run("service unavailable", func(t *testing.T) {
		service, _, _ := setupExtractorServiceTest("", fmt.Errorf("chat completion: %w", types.ErrServiceUnavailable))

		_, err := service.Extract(ctx, text)
		assert.ErrorIs(t, err, types.ErrExtractionFailed)
		assert.ErrorIs(t, err, types.ErrServiceUnavailable)
	})

	t.Run("missing key", func(t *testing.T) {
		factory := new(MockFactory)
		factory.On("NewGenerator", mock.Anything, types.Settings{}).Return(nil, types.ErrConfiguration).Once()
		service := NewService(staticSettings{}, factory, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := service.Extract(ctx, text)
		assert.ErrorIs(t, err, types.ErrConfiguration)
		factory.AssertExpectations(t)
	})

	t.Run("blank input makes no call", func(t *testing.T) {
		service, factory, _ := setupExtractorServiceTest("[]", nil)

		_, err := service.Extract(ctx, "   \n")
		assert.ErrorIs(t, err, types.ErrInvalidInput)
		factory.AssertNotCalled(t, "NewGenerator", mock.Anything, mock.Anything)
	})
}

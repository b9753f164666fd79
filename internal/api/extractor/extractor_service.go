package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/xco2/tripspot/internal/api/generative_ai"
	"github.com/xco2/tripspot/internal/types"
)

// DefaultTemperature keeps extraction close to deterministic.
const DefaultTemperature float32 = 0.1

type SettingsReader interface {
	GetSettings(ctx context.Context) (types.Settings, error)
}

type Service interface {
	// Extract returns the unlocated places mentioned in text, each with a fresh id.
	Extract(ctx context.Context, text string) ([]types.Place, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	settings    SettingsReader
	generators  generativeAI.Factory
	temperature float32
	newID       func() string
}

var _ Service = (*ServiceImpl)(nil)

func NewService(settings SettingsReader, generators generativeAI.Factory, temperature float32, logger *slog.Logger) *ServiceImpl {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &ServiceImpl{
		logger:      logger,
		settings:    settings,
		generators:  generators,
		temperature: temperature,
		newID:       uuid.NewString,
	}
}

func (s *ServiceImpl) Extract(ctx context.Context, text string) ([]types.Place, error) {
	ctx, span := otel.Tracer("ExtractorService").Start(ctx, "Extract", trace.WithAttributes(
		attribute.Int("text.length", len(text)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Extract"))

	if strings.TrimSpace(text) == "" {
		span.SetStatus(codes.Error, "empty text")
		return nil, fmt.Errorf("%w: text is empty", types.ErrInvalidInput)
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settings unavailable")
		return nil, fmt.Errorf("read settings: %w", err)
	}
	gen, err := s.generators.NewGenerator(ctx, settings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no generator")
		return nil, fmt.Errorf("%w: %w", types.ErrExtractionFailed, err)
	}
	span.SetAttributes(attribute.String("model", gen.Model()))

	raw, err := gen.Generate(ctx, generativeAI.Request{
		System:      systemPrompt,
		Prompt:      extractionPrompt(text),
		Temperature: s.temperature,
		JSON:        true,
		Schema:      locationsSchema,
	})
	if err != nil {
		l.ErrorContext(ctx, "Text service call failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return nil, fmt.Errorf("%w: %w", types.ErrExtractionFailed, err)
	}

	items, err := parseLocations(raw)
	if err != nil {
		// the payload itself is never logged or returned
		l.WarnContext(ctx, "Unusable extraction payload", slog.Int("payload_length", len(raw)), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed payload")
		return nil, fmt.Errorf("%w: %w", types.ErrExtractionFailed, types.ErrMalformedResponse)
	}

	places := make([]types.Place, 0, len(items))
	for _, item := range items {
		places = append(places, types.Place{
			ID:       s.newID(),
			Name:     strings.TrimSpace(item.Name),
			City:     strings.TrimSpace(item.City),
			Category: types.ParseCategory(item.Type),
			Note:     item.Context,
		})
	}

	l.InfoContext(ctx, "Locations extracted", slog.Int("count", len(places)), slog.String("model", gen.Model()))
	span.SetAttributes(attribute.Int("places.count", len(places)))
	span.SetStatus(codes.Ok, "extracted")
	return places, nil
}

type extractedItem struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Type    string `json:"type"`
	Context string `json:"context"`
}

// wrapperKeys are the object fields an array of places may be nested under.
var wrapperKeys = []string{"locations", "data", "places"}

func parseLocations(raw string) ([]extractedItem, error) {
	cleaned := generativeAI.CleanJSONResponse(raw)
	if cleaned == "" {
		return nil, errors.New("empty payload")
	}

	var items []extractedItem
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
	} else {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		found := false
		for _, key := range wrapperKeys {
			inner, ok := wrapper[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			found = true
			break
		}
		if !found {
			return nil, errors.New("object has no locations array")
		}
	}

	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("item %d has no name", i)
		}
	}
	return items, nil
}

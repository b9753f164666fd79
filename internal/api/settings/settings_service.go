package settings

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/xco2/tripspot/internal/types"
)

var _ SettingsService = (*SettingsServiceImpl)(nil)

// SettingsStore reads and writes the singleton settings record.
type SettingsStore interface {
	GetSettings(ctx context.Context) (types.Settings, error)
	SaveSettings(ctx context.Context, s types.Settings) error
}

type SettingsService interface {
	// GetSettings returns the current settings with secrets masked.
	GetSettings(ctx context.Context) (types.Settings, error)

	// UpdateSettings applies a partial update and returns the masked result.
	// A secret sent back in its masked form is left unchanged.
	UpdateSettings(ctx context.Context, params types.UpdateSettingsParams) (types.Settings, error)
}

type SettingsServiceImpl struct {
	logger *slog.Logger
	store  SettingsStore
}

// NewSettingsService creates a new settings service instance.
func NewSettingsService(store SettingsStore, logger *slog.Logger) *SettingsServiceImpl {
	return &SettingsServiceImpl{
		logger: logger,
		store:  store,
	}
}

func (s *SettingsServiceImpl) GetSettings(ctx context.Context) (types.Settings, error) {
	ctx, span := otel.Tracer("SettingsService").Start(ctx, "GetSettings")
	defer span.End()

	l := s.logger.With(slog.String("method", "GetSettings"))
	l.DebugContext(ctx, "Fetching settings")

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch settings", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch settings")
		return types.Settings{}, fmt.Errorf("error fetching settings: %w", err)
	}

	span.SetStatus(codes.Ok, "Settings fetched successfully")
	return settings.Masked(), nil
}

func (s *SettingsServiceImpl) UpdateSettings(ctx context.Context, params types.UpdateSettingsParams) (types.Settings, error) {
	ctx, span := otel.Tracer("SettingsService").Start(ctx, "UpdateSettings")
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateSettings"))
	l.DebugContext(ctx, "Updating settings")

	current, err := s.store.GetSettings(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch settings", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch settings")
		return types.Settings{}, fmt.Errorf("error fetching settings: %w", err)
	}

	masked := current.Masked()
	if params.AMapSecurityCode != nil && *params.AMapSecurityCode == masked.AMapSecurityCode {
		params.AMapSecurityCode = nil
	}
	if params.LLMAPIKey != nil && *params.LLMAPIKey == masked.LLMAPIKey {
		params.LLMAPIKey = nil
	}

	updated := params.Apply(current)
	if err := s.store.SaveSettings(ctx, updated); err != nil {
		l.ErrorContext(ctx, "Failed to update settings", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update settings")
		return types.Settings{}, fmt.Errorf("error updating settings: %w", err)
	}

	l.InfoContext(ctx, "Settings updated",
		slog.Bool("mapping_configured", updated.MappingConfigured()),
		slog.Bool("llm_configured", updated.LLMConfigured()),
		slog.String("llm_model", updated.Model()))
	span.SetStatus(codes.Ok, "Settings updated successfully")
	return updated.Masked(), nil
}

package settings

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/internal/api"
	"github.com/xco2/tripspot/internal/types"
)

type SettingsHandler struct {
	settingsService SettingsService
	logger          *slog.Logger
}

// NewSettingsHandler creates a new settings handler instance.
func NewSettingsHandler(settingsService SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		logger:          logger,
	}
}

// GetSettings godoc
// @Summary      Get settings
// @Description  Returns the service credentials and model. The security code and LLM key are masked.
// @Tags         Settings
// @Produce      json
// @Success      200 {object} types.Settings
// @Failure      500 {object} api.Response
// @Router       /settings [get]
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SettingsHandler").Start(r.Context(), "GetSettings", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/settings"),
	))
	defer span.End()

	settings, err := h.settingsService.GetSettings(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to get settings", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get settings")
		api.ErrorFromDomain(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Settings retrieved successfully")
	api.WriteJSONResponse(w, r, http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary      Update settings
// @Description  Partial update. Omitted fields are kept; masked secrets sent back unchanged are ignored.
// @Description  amapSecurityCode is the web service signing secret used for sig. A JS API securityJsCode here makes every AMap call fail with infocode 10007.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        settings body types.UpdateSettingsParams true "Settings Update Parameters"
// @Success      200 {object} types.Settings
// @Failure      400 {object} api.Response
// @Router       /settings [put]
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SettingsHandler").Start(r.Context(), "UpdateSettings", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/settings"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "UpdateSettings"))

	var params types.UpdateSettingsParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := h.settingsService.UpdateSettings(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update settings")
		api.ErrorFromDomain(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Settings updated successfully")
	api.WriteJSONResponse(w, r, http.StatusOK, settings)
}

package places

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/internal/api"
	"github.com/xco2/tripspot/internal/types"
)

type PlacesHandler struct {
	placesService PlacesService
	logger        *slog.Logger
}

func NewPlacesHandler(placesService PlacesService, logger *slog.Logger) *PlacesHandler {
	return &PlacesHandler{
		placesService: placesService,
		logger:        logger,
	}
}

// ListPlaces godoc
// @Summary      List places
// @Description  Returns every stored place in insertion order, located or not.
// @Tags         Places
// @Produce      json
// @Success      200 {array} types.Place
// @Failure      500 {object} api.Response
// @Router       /places [get]
func (h *PlacesHandler) ListPlaces(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlacesHandler").Start(r.Context(), "ListPlaces", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/places"),
	))
	defer span.End()

	places, err := h.placesService.ListPlaces(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list places", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list places")
		api.ErrorFromDomain(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Places listed")
	api.WriteJSONResponse(w, r, http.StatusOK, places)
}

// GetPlace godoc
// @Summary      Get a place
// @Tags         Places
// @Produce      json
// @Param        placeID path string true "Place ID"
// @Success      200 {object} types.Place
// @Failure      404 {object} api.Response
// @Router       /places/{placeID} [get]
func (h *PlacesHandler) GetPlace(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	ctx, span := otel.Tracer("PlacesHandler").Start(r.Context(), "GetPlace", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/places/{placeID}"),
		attribute.String("place.id", placeID),
	))
	defer span.End()

	p, err := h.placesService.GetPlace(ctx, placeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get place")
		api.ErrorFromDomain(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Place fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// CreatePlace godoc
// @Summary      Add a place manually
// @Description  Stores an unlocated place and clears the current route. Use /places/geocode to locate it.
// @Tags         Places
// @Accept       json
// @Produce      json
// @Param        place body types.CreatePlaceRequest true "Place"
// @Success      201 {object} types.Place
// @Failure      400 {object} api.Response
// @Router       /places [post]
func (h *PlacesHandler) CreatePlace(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlacesHandler").Start(r.Context(), "CreatePlace", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/places"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "CreatePlace"))

	var req types.CreatePlaceRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.placesService.CreatePlace(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create place")
		api.ErrorFromDomain(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Place created")
	api.WriteJSONResponse(w, r, http.StatusCreated, p)
}

// UpdatePlace godoc
// @Summary      Edit a place
// @Description  Partial edit. Changing name or city removes the coordinates. The current route is cleared.
// @Tags         Places
// @Accept       json
// @Produce      json
// @Param        placeID path string true "Place ID"
// @Param        place body types.UpdatePlaceRequest true "Fields to change"
// @Success      200 {object} types.Place
// @Failure      400 {object} api.Response
// @Failure      404 {object} api.Response
// @Router       /places/{placeID} [put]
func (h *PlacesHandler) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	ctx, span := otel.Tracer("PlacesHandler").Start(r.Context(), "UpdatePlace", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/places/{placeID}"),
		attribute.String("place.id", placeID),
	))
	defer span.End()

	var req types.UpdatePlaceRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.placesService.UpdatePlace(ctx, placeID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update place")
		api.ErrorFromDomain(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Place updated")
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// DeletePlace godoc
// @Summary      Delete a place
// @Description  Removes the place and clears the current route.
// @Tags         Places
// @Param        placeID path string true "Place ID"
// @Success      204
// @Failure      404 {object} api.Response
// @Router       /places/{placeID} [delete]
func (h *PlacesHandler) DeletePlace(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	ctx, span := otel.Tracer("PlacesHandler").Start(r.Context(), "DeletePlace", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/places/{placeID}"),
		attribute.String("place.id", placeID),
	))
	defer span.End()

	if err := h.placesService.DeletePlace(ctx, placeID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete place")
		api.ErrorFromDomain(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Place deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

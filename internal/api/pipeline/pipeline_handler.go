package pipeline

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/internal/api"
	"github.com/xco2/tripspot/internal/api/store"
	"github.com/xco2/tripspot/internal/types"
)

type PipelineHandler struct {
	pipelineService PipelineService
	store           store.Service
	logger          *slog.Logger
}

func NewPipelineHandler(pipelineService PipelineService, st store.Service, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipelineService: pipelineService,
		store:           st,
		logger:          logger,
	}
}

func startSpan(r *http.Request, name, route string) (*http.Request, trace.Span) {
	ctx, span := otel.Tracer("PipelineHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return r.WithContext(ctx), span
}

func fail(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	api.ErrorFromDomain(w, r, err)
}

// ExtractPlaces godoc
// @Summary      Extract places from trip notes
// @Description  Extracts places with the LLM, geocodes them and replaces all stored places. The route is cleared.
// @Tags         Pipeline
// @Accept       json
// @Produce      json
// @Param        request body types.ParseRequest true "Trip notes"
// @Success      200 {object} types.ParseResponse
// @Failure      400 {object} api.Response
// @Failure      412 {object} api.Response "Missing AMap or LLM configuration"
// @Failure      502 {object} api.Response "External service failure"
// @Router       /pipeline/extract [post]
func (h *PipelineHandler) ExtractPlaces(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ExtractPlaces", "/pipeline/extract")
	defer span.End()

	var req types.ParseRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.pipelineService.ParseText(r.Context(), req.Text)
	if err != nil {
		fail(w, r, span, err)
		return
	}
	span.SetAttributes(attribute.Int("places.count", len(resp.Places)))
	span.SetStatus(codes.Ok, "extracted")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// GeocodePlaces godoc
// @Summary      Geocode stored places
// @Description  Looks up coordinates for every stored place that has none. Places without a match stay unlocated.
// @Tags         Places
// @Produce      json
// @Success      200 {object} types.GeocodeResponse
// @Failure      412 {object} api.Response
// @Failure      502 {object} api.Response
// @Router       /places/geocode [post]
func (h *PipelineHandler) GeocodePlaces(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "GeocodePlaces", "/places/geocode")
	defer span.End()

	resp, err := h.pipelineService.GeocodeStored(r.Context())
	if err != nil {
		fail(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "geocoded")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// PlanRoute godoc
// @Summary      Plan a route
// @Description  Orders the selected located places (all when placeIds is empty) by nearest driving time and stores the route.
// @Description  Fewer than two places return an unsaved route asking for more places.
// @Tags         Route
// @Accept       json
// @Produce      json
// @Param        request body types.PlanRequest false "Selection"
// @Success      200 {object} types.PlanResponse
// @Failure      404 {object} api.Response "Unknown place id"
// @Failure      409 {object} api.Response "Another plan is running or the places changed"
// @Failure      412 {object} api.Response
// @Router       /route [post]
func (h *PipelineHandler) PlanRoute(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "PlanRoute", "/route")
	defer span.End()

	var req types.PlanRequest
	if r.ContentLength != 0 {
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			span.RecordError(err)
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp, err := h.pipelineService.Plan(r.Context(), req.PlaceIDs)
	if err != nil {
		fail(w, r, span, err)
		return
	}
	span.SetAttributes(attribute.Int("route.minutes", resp.Route.TotalDurationMinutes))
	span.SetStatus(codes.Ok, "planned")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// GetRoute godoc
// @Summary      Get the stored route
// @Tags         Route
// @Produce      json
// @Success      200 {object} types.Route
// @Success      204 "No route stored"
// @Router       /route [get]
func (h *PipelineHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "GetRoute", "/route")
	defer span.End()

	rt, err := h.store.GetRoute(r.Context())
	if err != nil {
		fail(w, r, span, err)
		return
	}
	if rt == nil {
		api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, rt)
}

// ClearRoute godoc
// @Summary      Clear the stored route
// @Tags         Route
// @Success      204
// @Router       /route [delete]
func (h *PipelineHandler) ClearRoute(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ClearRoute", "/route")
	defer span.End()

	if err := h.store.ClearRoute(r.Context()); err != nil {
		fail(w, r, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// GetMapping godoc
// @Summary      Map availability
// @Description  Reports whether map features can be used and, if so, the credentials the map widget needs.
// @Tags         Settings
// @Produce      json
// @Success      200 {object} types.MappingStatus
// @Router       /mapping [get]
func (h *PipelineHandler) GetMapping(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "GetMapping", "/mapping")
	defer span.End()

	status, err := h.pipelineService.MappingStatus(r.Context())
	if err != nil {
		fail(w, r, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, status)
}

// Export godoc
// @Summary      Export places and route
// @Tags         Transfer
// @Produce      json
// @Success      200 {object} types.ExportDocument
// @Router       /export [get]
func (h *PipelineHandler) Export(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Export", "/export")
	defer span.End()

	doc, err := h.store.Export(r.Context())
	if err != nil {
		fail(w, r, span, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="trip_plan_`+doc.ExportedAt.Format("2006-01-02")+`.json"`)
	api.WriteJSONResponse(w, r, http.StatusOK, doc)
}

// Import godoc
// @Summary      Import places and route
// @Description  Replaces all places and the route with the document content. Ids and durations are kept as they are.
// @Tags         Transfer
// @Accept       json
// @Param        document body types.ExportDocument true "Export document"
// @Success      204
// @Failure      400 {object} api.Response
// @Failure      409 {object} api.Response "Route references unknown places"
// @Router       /import [post]
func (h *PipelineHandler) Import(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Import", "/import")
	defer span.End()

	var doc types.ExportDocument
	if err := api.DecodeJSONBody(w, r, &doc); err != nil {
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Import(r.Context(), doc); err != nil {
		h.logger.WarnContext(r.Context(), "Import rejected", slog.Any("error", err))
		fail(w, r, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

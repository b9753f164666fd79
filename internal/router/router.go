package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/xco2/tripspot/internal/api/pipeline"
	"github.com/xco2/tripspot/internal/api/places"
	"github.com/xco2/tripspot/internal/api/settings"
)

// Config contains the handlers and limits needed for the router setup.
type Config struct {
	PlacesHandler   *places.PlacesHandler
	SettingsHandler *settings.SettingsHandler
	PipelineHandler *pipeline.PipelineHandler
	MetricsHandler  http.Handler

	AllowedOrigins []string
	// RateLimit is the number of pipeline and route requests allowed per IP and minute. Zero disables it.
	RateLimit int
	// Timeout bounds every request except the event stream.
	Timeout time.Duration
}

// SetupRouter initializes and configures the API router.
// Request id, logging and recovery are expected to be applied before mounting it.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		// The event stream stays open for as long as the client listens.
		r.Get("/events", cfg.PipelineHandler.Events)

		r.Group(func(r chi.Router) {
			if cfg.Timeout > 0 {
				r.Use(middleware.Timeout(cfg.Timeout))
			}

			r.Get("/places", cfg.PlacesHandler.ListPlaces)
			r.Post("/places", cfg.PlacesHandler.CreatePlace)
			r.Get("/places/{placeID}", cfg.PlacesHandler.GetPlace)
			r.Put("/places/{placeID}", cfg.PlacesHandler.UpdatePlace)
			r.Delete("/places/{placeID}", cfg.PlacesHandler.DeletePlace)

			r.Get("/settings", cfg.SettingsHandler.GetSettings)
			r.Put("/settings", cfg.SettingsHandler.UpdateSettings)

			r.Get("/route", cfg.PipelineHandler.GetRoute)
			r.Delete("/route", cfg.PipelineHandler.ClearRoute)
			r.Get("/mapping", cfg.PipelineHandler.GetMapping)
			r.Get("/export", cfg.PipelineHandler.Export)
			r.Post("/import", cfg.PipelineHandler.Import)

			// Routes that call the paid map and text services.
			r.Group(func(r chi.Router) {
				if cfg.RateLimit > 0 {
					r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
				}
				r.Post("/pipeline/extract", cfg.PipelineHandler.ExtractPlaces)
				r.Post("/places/geocode", cfg.PipelineHandler.GeocodePlaces)
				r.Post("/route", cfg.PipelineHandler.PlanRoute)
			})
		})
	})

	return r
}

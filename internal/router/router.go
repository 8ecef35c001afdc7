package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appMiddleware "github.com/FACorreiaa/go-itinerary-map/app/middleware"
	"github.com/FACorreiaa/go-itinerary-map/internal/api/itinerary"
	"github.com/FACorreiaa/go-itinerary-map/internal/api/mapview"
)

// Config contains dependencies needed for the router setup
type Config struct {
	MapViewHandler   *mapview.HandlerImpl
	ItineraryHandler *itinerary.HandlerImpl // nil without a database
	AllowedOrigins   []string
	// AuthenticateMiddleware guards /api/v1 when set.
	AuthenticateMiddleware func(http.Handler) http.Handler
	// RequestTimeout bounds every request except the event stream.
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 60 * time.Second

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (request ID, logger, recoverer) is applied by the
// caller before mounting it.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	bounded := chi.Chain(
		middleware.Timeout(timeout),
		middleware.Compress(5, "application/json", "application/geo+json", "image/svg+xml"),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthenticateMiddleware != nil {
			// EventSource cannot set headers.
			r.Use(appMiddleware.StreamTokenFromQuery)
			r.Use(cfg.AuthenticateMiddleware)
		}
		r.Mount("/maps", MapRoutes(cfg.MapViewHandler, bounded))
		if cfg.ItineraryHandler != nil {
			r.With(bounded...).Mount("/itineraries", ItineraryRoutes(cfg.ItineraryHandler))
		}
	})

	return r
}

// MapRoutes registers the map view endpoints. bounded wraps every route except
// the event stream, which lives as long as its client or its view.
func MapRoutes(h *mapview.HandlerImpl, bounded chi.Middlewares) http.Handler {
	r := chi.NewRouter()
	r.Get("/{mapID}/events", h.StreamEvents)

	r.Group(func(r chi.Router) {
		r.Use(bounded...)
		r.Post("/", h.CreateView)
		r.Route("/{mapID}", func(r chi.Router) {
			r.Get("/", h.GetView)
			r.Delete("/", h.DeleteView)
			r.Post("/retry", h.Retry)
			r.Post("/reset", h.Reset)

			r.Put("/itinerary", h.SetItinerary)
			r.Put("/itinerary/{itineraryID}", h.LoadItinerary)

			r.Post("/layers/{category}/toggle", h.ToggleLayer)
			r.Delete("/layers", h.ResetLayers)
			r.Put("/day", h.SelectDay)

			r.Post("/markers/{markerID}/select", h.SelectMarker)
			r.Delete("/popup", h.ClosePopup)
			r.Post("/fullscreen", h.ToggleFullscreen)

			r.Get("/geojson", h.GeoJSON)
			r.Get("/svg", h.SVG)
			r.Get("/png", h.PNG)
		})
	})
	return r
}

func ItineraryRoutes(h *itinerary.HandlerImpl) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.SaveItinerary)
	r.Get("/{itineraryID}", h.GetItinerary)
	r.Delete("/{itineraryID}", h.DeleteItinerary)
	return r
}

package container

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-itinerary-map/app/db"
	"github.com/FACorreiaa/go-itinerary-map/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-map/config"
	"github.com/FACorreiaa/go-itinerary-map/internal/api/itinerary"
	"github.com/FACorreiaa/go-itinerary-map/internal/api/mapview"
	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
	"github.com/FACorreiaa/go-itinerary-map/internal/surface"
	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	ItineraryHandler *itinerary.HandlerImpl
	MapViewService   *mapview.ServiceImpl
	MapViewHandler   *mapview.HandlerImpl
}

// EngineOptions maps the map section of the config onto engine options.
func EngineOptions(cfg config.MapConfig, appMetrics *metrics.AppMetrics) mapengine.Options {
	opts := mapengine.Options{
		FitPadding: cfg.FitPadding,
		DefaultView: mapengine.View{
			Center: types.Coordinates{Lat: cfg.DefaultCenter.Lat, Lng: cfg.DefaultCenter.Lng}.Point(),
			Zoom:   cfg.DefaultZoom,
		},
		BaseLayer: mapengine.BaseLayer{
			Name:        cfg.BaseLayer.Name,
			URLTemplate: cfg.BaseLayer.URLTemplate,
			Attribution: cfg.BaseLayer.Attribution,
		},
		InitTimeout: cfg.InitTimeout,
		Metrics:     appMetrics,
	}
	if len(cfg.Palette) > 0 {
		opts.Palette = mapengine.Palette(cfg.Palette)
	}
	return opts
}

// NewContainer wires the map view service. The itinerary read model is only
// wired when pool is non-nil.
func NewContainer(cfg *config.Config, pool *pgxpool.Pool, appMetrics *metrics.AppMetrics, logger *slog.Logger) *Container {
	c := &Container{Config: cfg, Logger: logger, Pool: pool}

	var loader mapview.ItineraryLoader
	if pool != nil {
		itineraryRepo := itinerary.NewRepository(pool, appMetrics, logger)
		itineraryService := itinerary.NewServiceImpl(itineraryRepo, logger)
		c.ItineraryHandler = itinerary.NewHandlerImpl(itineraryService, logger)
		loader = itineraryService
	}

	provider := surface.NewProvider(surface.ProviderConfig{
		AllowFullscreen: cfg.Map.AllowFullscreen,
		ProbeURL:        cfg.Map.BaseLayer.ProbeURL,
	}, &http.Client{Timeout: cfg.Map.InitTimeout}, logger)
	rasterizer := surface.NewRasterizer(cfg.Map.Raster.ChromePath, cfg.Map.Raster.Timeout, logger)
	store := mapview.NewStore(cfg.Map.ViewTTL, cfg.Map.CleanupInterval, logger)

	c.MapViewService = mapview.NewServiceImpl(store, provider, EngineOptions(cfg.Map, appMetrics), loader, rasterizer, logger)
	c.MapViewHandler = mapview.NewHandlerImpl(c.MapViewService, logger)
	return c
}

// Close tears down every map view, then the pool.
func (c *Container) Close(ctx context.Context) {
	if c.MapViewService != nil {
		c.MapViewService.Shutdown(ctx)
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	if c.Pool == nil {
		return false
	}
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	appLogger "github.com/FACorreiaa/go-itinerary-map/app/logger"
	"github.com/FACorreiaa/go-itinerary-map/config"
	"github.com/FACorreiaa/go-itinerary-map/internal/container"
	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
	"github.com/FACorreiaa/go-itinerary-map/internal/surface"
	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

var (
	in     = flag.String("in", "", "itinerary JSON file")
	out    = flag.String("out", "map.svg", "output file")
	format = flag.String("format", "svg", "svg, geojson or png")
	width  = flag.Int("width", 1024, "map width in pixels")
	height = flag.Int("height", 768, "map height in pixels")
	day    = flag.Int("day", 0, "only draw this day (0 draws every day)")
)

// render_itinerary draws an itinerary file offline with the same engine and
// canvas the service uses.
func main() {
	flag.Parse()
	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := appLogger.SetupLogger(cfg.Mode, os.Stderr)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("Render failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	raw, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	var it types.Itinerary
	if err := json.Unmarshal(raw, &it); err != nil {
		return fmt.Errorf("decode %s: %w", *in, err)
	}

	provider := surface.NewProvider(surface.ProviderConfig{ProbeURL: cfg.Map.BaseLayer.ProbeURL}, nil, logger)
	engine := mapengine.New(provider, container.EngineOptions(cfg.Map, nil), logger)
	defer engine.Teardown(ctx)

	if err := engine.Init(ctx, mapengine.Container{ID: "render", Width: *width, Height: *height}); err != nil {
		return err
	}
	if *day > 0 {
		engine.SelectDay(ctx, day)
	}
	engine.SetItinerary(ctx, &it)

	var buf bytes.Buffer
	err = engine.WithSurface(func(sf mapengine.Surface, _ mapengine.Scene) error {
		canvas, ok := sf.(*surface.Canvas)
		if !ok {
			return errors.New("unexpected surface type")
		}
		if *format == "geojson" {
			body, err := surface.FeatureCollection(canvas.Overlays()).MarshalJSON()
			if err != nil {
				return err
			}
			_, err = buf.Write(body)
			return err
		}
		return canvas.WriteSVG(&buf)
	})
	if err != nil {
		return err
	}

	body := buf.Bytes()
	switch *format {
	case "svg", "geojson":
	case "png":
		body, err = surface.NewRasterizer(cfg.Map.Raster.ChromePath, cfg.Map.Raster.Timeout, logger).PNG(ctx, body)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if err := os.WriteFile(*out, body, 0o644); err != nil {
		return err
	}
	snap := engine.Snapshot()
	logger.Info("Map rendered", slog.String("out", *out), slog.Int("markers", snap.MarkerCount),
		slog.Int("routes", snap.RouteCount), slog.Int("warnings", len(snap.Scene.Warnings)))
	return nil
}

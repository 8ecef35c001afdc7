package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	database "github.com/FACorreiaa/go-itinerary-map/app/db"
	"github.com/FACorreiaa/go-itinerary-map/config"
	"github.com/FACorreiaa/go-itinerary-map/internal/api/itinerary"
	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

var dir = flag.String("dir", "testdata/itineraries", "directory of itinerary JSON files to load")

// seed_itineraries loads itinerary JSON files into the read model so map
// views can be created from stored itineraries during development.
func main() {
	flag.Parse()
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbpool.Close()
	if !database.WaitForDB(ctx, dbpool, logger) {
		log.Fatal("Database is not reachable")
	}

	service := itinerary.NewServiceImpl(itinerary.NewRepository(dbpool, nil, logger), logger)

	files, err := filepath.Glob(filepath.Join(*dir, "*.json"))
	if err != nil {
		log.Fatalf("Invalid directory pattern: %v", err)
	}
	if err := seed(ctx, service, files, logger); err != nil {
		logger.Error("Seeding finished with errors", slog.Any("error", err))
		os.Exit(1)
	}
}

func seed(ctx context.Context, service itinerary.Service, files []string, logger *slog.Logger) error {
	totalSaved, totalErrors := 0, 0
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			logger.Error("Failed to read itinerary file", slog.String("file", file), slog.Any("error", err))
			totalErrors++
			continue
		}
		var it types.Itinerary
		if err := json.Unmarshal(raw, &it); err != nil {
			logger.Error("Failed to decode itinerary file", slog.String("file", file), slog.Any("error", err))
			totalErrors++
			continue
		}
		id, err := service.SaveItinerary(ctx, it)
		if err != nil {
			logger.Error("Failed to save itinerary", slog.String("file", file), slog.Any("error", err))
			totalErrors++
			continue
		}
		totalSaved++
		logger.Info("Itinerary saved", slog.String("file", file), slog.String("id", id.String()),
			slog.String("destination", it.Destination), slog.Int("days", len(it.Days)))
	}

	logger.Info("Seeding completed", slog.Int("total_saved", totalSaved), slog.Int("total_errors", totalErrors))
	if totalErrors > 0 {
		return fmt.Errorf("seeding completed with %d errors out of %d files", totalErrors, len(files))
	}
	return nil
}

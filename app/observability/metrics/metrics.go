package metrics

import (
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	RedrawsTotal           metric.Int64Counter
	RedrawDurationSeconds  metric.Float64Histogram
	OverlaysPlaced         metric.Int64Histogram
	DataWarningsTotal      metric.Int64Counter
	InitFailuresTotal      metric.Int64Counter
	ActiveMapViews         metric.Int64UpDownCounter
	DbQueryDurationSeconds metric.Float64Histogram
	DbQueryErrorsTotal     metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// NewAppMetrics creates every instrument on meter.
func NewAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var err error
	m := &AppMetrics{}

	m.RedrawsTotal, err = meter.Int64Counter(
		"map_redraws_total",
		metric.WithDescription("Total number of completed map redraws"),
		metric.WithUnit("{redraw}"),
	)
	if err != nil {
		return nil, fmt.Errorf("map_redraws_total: %w", err)
	}

	m.RedrawDurationSeconds, err = meter.Float64Histogram(
		"map_redraw_duration_seconds",
		metric.WithDescription("Duration of map redraws in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("map_redraw_duration_seconds: %w", err)
	}

	m.OverlaysPlaced, err = meter.Int64Histogram(
		"map_overlays_placed",
		metric.WithDescription("Number of overlays placed by a redraw"),
		metric.WithUnit("{overlay}"),
	)
	if err != nil {
		return nil, fmt.Errorf("map_overlays_placed: %w", err)
	}

	m.DataWarningsTotal, err = meter.Int64Counter(
		"map_data_warnings_total",
		metric.WithDescription("Activities or days skipped while composing a map"),
		metric.WithUnit("{warning}"),
	)
	if err != nil {
		return nil, fmt.Errorf("map_data_warnings_total: %w", err)
	}

	m.InitFailuresTotal, err = meter.Int64Counter(
		"map_init_failures_total",
		metric.WithDescription("Total number of failed map surface initializations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("map_init_failures_total: %w", err)
	}

	m.ActiveMapViews, err = meter.Int64UpDownCounter(
		"map_active_views",
		metric.WithDescription("Map views currently holding a surface"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, fmt.Errorf("map_active_views: %w", err)
	}

	m.DbQueryDurationSeconds, err = meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Duration of database queries in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("db_query_duration_seconds: %w", err)
	}

	m.DbQueryErrorsTotal, err = meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Total number of database query errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("db_query_errors_total: %w", err)
	}

	return m, nil
}

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("ItineraryMap")
		m, err := NewAppMetrics(meter)
		if err != nil {
			log.Fatalf("Metrics: Failed to create instruments: %v", err)
		}
		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		// This indicates a programming error - InitAppMetrics must be called at startup.
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

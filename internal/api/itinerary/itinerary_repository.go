package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-map/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

var ErrNotFound = errors.New("itinerary not found")

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
	SaveItinerary(ctx context.Context, it types.Itinerary) (uuid.UUID, error)
	DeleteItinerary(ctx context.Context, id uuid.UUID) error
}

type RepositoryImpl struct {
	logger  *slog.Logger
	pgpool  DB
	metrics *metrics.AppMetrics
}

func NewRepository(pgpool DB, appMetrics *metrics.AppMetrics, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger:  logger,
		pgpool:  pgpool,
		metrics: appMetrics,
	}
}

func (r *RepositoryImpl) observe(ctx context.Context, op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("db.operation", op))
	r.metrics.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil && !errors.Is(err, ErrNotFound) {
		r.metrics.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// GetItinerary loads an itinerary and its days ordered by day number.
func (r *RepositoryImpl) GetItinerary(ctx context.Context, id uuid.UUID) (it *types.Itinerary, err error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "GetItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()
	defer func(start time.Time) { r.observe(ctx, "get_itinerary", start, err) }(time.Now())

	it = &types.Itinerary{ID: id}
	query := `SELECT title, destination FROM itineraries WHERE id = $1`
	if err = r.pgpool.QueryRow(ctx, query, id).Scan(&it.Title, &it.Destination); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			span.SetStatus(codes.Error, "not found")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query itinerary: %w", err)
	}

	daysQuery := `
		SELECT day_number, title, COALESCE(to_char(day_date, 'YYYY-MM-DD'), ''), activities
		FROM itinerary_days
		WHERE itinerary_id = $1
		ORDER BY day_number
	`
	rows, err := r.pgpool.Query(ctx, daysQuery, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query itinerary days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day types.DayPlan
		var activities []byte
		if err = rows.Scan(&day.DayNumber, &day.Title, &day.Date, &activities); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan itinerary day: %w", err)
		}
		if len(activities) > 0 {
			if err = json.Unmarshal(activities, &day.Activities); err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to decode activities of day %d: %w", day.DayNumber, err)
			}
		}
		it.Days = append(it.Days, day)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating itinerary days: %w", err)
	}

	span.SetAttributes(attribute.Int("itinerary.days", len(it.Days)))
	span.SetStatus(codes.Ok, "Itinerary retrieved")
	return it, nil
}

// SaveItinerary inserts an itinerary with all of its days in one transaction.
func (r *RepositoryImpl) SaveItinerary(ctx context.Context, it types.Itinerary) (id uuid.UUID, err error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "SaveItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "itineraries"),
	))
	defer span.End()
	defer func(start time.Time) { r.observe(ctx, "save_itinerary", start, err) }(time.Now())

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var idText string
	if err = tx.QueryRow(ctx,
		`INSERT INTO itineraries (title, destination) VALUES ($1, $2) RETURNING id::text`,
		it.Title, it.Destination,
	).Scan(&idText); err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("failed to insert itinerary: %w", err)
	}
	if id, err = uuid.Parse(idText); err != nil {
		return uuid.Nil, fmt.Errorf("invalid itinerary id %q: %w", idText, err)
	}

	for _, day := range it.Days {
		activities, mErr := json.Marshal(day.Activities)
		if mErr != nil {
			err = fmt.Errorf("failed to encode activities of day %d: %w", day.DayNumber, mErr)
			return uuid.Nil, err
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO itinerary_days (itinerary_id, day_number, title, day_date, activities)
			VALUES ($1, $2, $3, NULLIF($4, '')::date, $5)`,
			id, day.DayNumber, day.Title, day.Date, activities,
		); err != nil {
			span.RecordError(err)
			return uuid.Nil, fmt.Errorf("failed to insert day %d: %w", day.DayNumber, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.logger.InfoContext(ctx, "Itinerary saved", slog.String("id", id.String()), slog.Int("days", len(it.Days)))
	span.SetStatus(codes.Ok, "Itinerary saved")
	return id, nil
}

func (r *RepositoryImpl) DeleteItinerary(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "DeleteItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()
	defer func(start time.Time) { r.observe(ctx, "delete_itinerary", start, err) }(time.Now())

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM itineraries WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = fmt.Errorf("%w: %s", ErrNotFound, id)
		return err
	}
	return nil
}

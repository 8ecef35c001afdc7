package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

var ErrInvalidItinerary = errors.New("invalid itinerary")

var _ Service = (*ServiceImpl)(nil)

// Service is the read model the map views load itineraries from.
type Service interface {
	GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
	SaveItinerary(ctx context.Context, it types.Itinerary) (uuid.UUID, error)
	DeleteItinerary(ctx context.Context, id uuid.UUID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewServiceImpl(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *ServiceImpl) GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GetItinerary", trace.WithAttributes(
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()

	it, err := s.repo.GetItinerary(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to get itinerary", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}
	span.SetStatus(codes.Ok, "Itinerary retrieved successfully")
	return it, nil
}

// SaveItinerary stores it. Day numbers must be positive and unique because the
// storage keys days by number.
func (s *ServiceImpl) SaveItinerary(ctx context.Context, it types.Itinerary) (uuid.UUID, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "SaveItinerary", trace.WithAttributes(
		attribute.Int("itinerary.days", len(it.Days)),
	))
	defer span.End()

	if err := Validate(it); err != nil {
		span.RecordError(err)
		return uuid.Nil, err
	}
	id, err := s.repo.SaveItinerary(ctx, it)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save itinerary", slog.Any("error", err))
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("failed to save itinerary: %w", err)
	}
	span.SetStatus(codes.Ok, "Itinerary saved")
	return id, nil
}

func (s *ServiceImpl) DeleteItinerary(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "DeleteItinerary", trace.WithAttributes(
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()

	if err := s.repo.DeleteItinerary(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to delete itinerary", slog.Any("error", err))
		span.RecordError(err)
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}
	return nil
}

// Validate checks the constraints storage enforces. Rendering itself tolerates
// invalid or duplicate day numbers.
func Validate(it types.Itinerary) error {
	if it.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidItinerary)
	}
	seen := make(map[int]bool, len(it.Days))
	for _, d := range it.Days {
		if d.DayNumber <= 0 {
			return fmt.Errorf("%w: day number %d must be positive", ErrInvalidItinerary, d.DayNumber)
		}
		if seen[d.DayNumber] {
			return fmt.Errorf("%w: duplicate day number %d", ErrInvalidItinerary, d.DayNumber)
		}
		seen[d.DayNumber] = true
		for i, a := range d.Activities {
			if a.Title == "" {
				return fmt.Errorf("%w: day %d activity %d has no title", ErrInvalidItinerary, d.DayNumber, i)
			}
			if c := a.Coordinates; c != nil && (c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180) {
				return fmt.Errorf("%w: day %d activity %d has invalid coordinates", ErrInvalidItinerary, d.DayNumber, i)
			}
		}
	}
	return nil
}

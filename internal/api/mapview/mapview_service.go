package mapview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
	"github.com/FACorreiaa/go-itinerary-map/internal/surface"
	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

var (
	ErrViewNotFound       = errors.New("map view not found")
	ErrInvalidRequest     = errors.New("invalid map view request")
	ErrExportUnsupported  = errors.New("surface does not support export")
	ErrRasterizerDisabled = errors.New("png rendering is not configured")
)

// ItineraryLoader resolves stored itineraries.
type ItineraryLoader interface {
	GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
}

// Rasterizer converts an SVG document to PNG.
type Rasterizer interface {
	PNG(ctx context.Context, svg []byte) ([]byte, error)
}

// exporter is implemented by surfaces that can serialise what they show.
type exporter interface {
	Overlays() []mapengine.Overlay
	WriteSVG(w io.Writer) error
}

type CreateViewRequest struct {
	ContainerID string           `json:"container_id"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Itinerary   *types.Itinerary `json:"itinerary,omitempty"`
	ItineraryID *uuid.UUID       `json:"itinerary_id,omitempty"`
}

// ViewState is the JSON shape of a hosted view.
type ViewState struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	mapengine.Snapshot
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	CreateView(ctx context.Context, req CreateViewRequest) (*ViewState, error)
	GetView(ctx context.Context, id uuid.UUID) (*ViewState, error)
	Retry(ctx context.Context, id uuid.UUID) (*ViewState, error)
	SetItinerary(ctx context.Context, id uuid.UUID, it *types.Itinerary) (*ViewState, error)
	LoadItinerary(ctx context.Context, id, itineraryID uuid.UUID) (*ViewState, error)
	ToggleLayer(ctx context.Context, id uuid.UUID, category types.ActivityType) (*ViewState, error)
	ResetLayers(ctx context.Context, id uuid.UUID) (*ViewState, error)
	SelectDay(ctx context.Context, id uuid.UUID, day *int) (*ViewState, error)
	Reset(ctx context.Context, id uuid.UUID) (*ViewState, error)
	SelectMarker(ctx context.Context, id uuid.UUID, markerID string) (*mapengine.Popup, error)
	ClosePopup(ctx context.Context, id uuid.UUID) (bool, error)
	ToggleFullscreen(ctx context.Context, id uuid.UUID) (bool, error)
	GeoJSON(ctx context.Context, id uuid.UUID) (*geojson.FeatureCollection, error)
	SVG(ctx context.Context, id uuid.UUID) ([]byte, error)
	PNG(ctx context.Context, id uuid.UUID) ([]byte, error)
	Subscribe(ctx context.Context, id uuid.UUID, fn func(mapengine.ActivitySelected)) (unsubscribe func(), done <-chan struct{}, err error)
	DeleteView(ctx context.Context, id uuid.UUID) error
	Shutdown(ctx context.Context) int
}

type ServiceImpl struct {
	logger      *slog.Logger
	store       *Store
	provider    mapengine.SurfaceProvider
	options     mapengine.Options
	itineraries ItineraryLoader
	rasterizer  Rasterizer
}

// NewServiceImpl wires a map view service. itineraries and rasterizer may be nil,
// which disables loading stored itineraries and PNG output respectively.
func NewServiceImpl(store *Store, provider mapengine.SurfaceProvider, options mapengine.Options,
	itineraries ItineraryLoader, rasterizer Rasterizer, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		store:       store,
		provider:    provider,
		options:     options,
		itineraries: itineraries,
		rasterizer:  rasterizer,
	}
}

func state(v *View) *ViewState {
	return &ViewState{ID: v.ID, CreatedAt: v.CreatedAt, Snapshot: v.Engine.Snapshot()}
}

func (s *ServiceImpl) view(id uuid.UUID) (*View, error) {
	v, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	return v, nil
}

// CreateView hosts a new engine. A failed initialization still yields a view
// so the caller can inspect the error and retry.
func (s *ServiceImpl) CreateView(ctx context.Context, req CreateViewRequest) (*ViewState, error) {
	ctx, span := otel.Tracer("MapViewService").Start(ctx, "CreateView", trace.WithAttributes(
		attribute.String("container.id", req.ContainerID),
		attribute.Int("container.width", req.Width),
		attribute.Int("container.height", req.Height),
	))
	defer span.End()

	if req.Itinerary != nil && req.ItineraryID != nil {
		return nil, fmt.Errorf("%w: itinerary and itinerary_id are mutually exclusive", ErrInvalidRequest)
	}

	var it *types.Itinerary
	switch {
	case req.Itinerary != nil:
		it = req.Itinerary
	case req.ItineraryID != nil:
		loaded, err := s.loadItinerary(ctx, *req.ItineraryID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		it = loaded
	}

	v := &View{
		ID:        uuid.New(),
		Engine:    mapengine.New(s.provider, s.options, s.logger.With(slog.String("container", req.ContainerID))),
		CreatedAt: time.Now().UTC(),
	}
	if it != nil {
		v.Engine.SetItinerary(ctx, it)
	}
	container := mapengine.Container{ID: req.ContainerID, Width: req.Width, Height: req.Height}
	if err := v.Engine.Init(ctx, container); err != nil {
		s.logger.WarnContext(ctx, "Map view created without a surface", slog.String("view", v.ID.String()), slog.Any("error", err))
		span.RecordError(err)
	}
	s.store.Put(v)

	span.SetAttributes(attribute.String("view.id", v.ID.String()))
	span.SetStatus(codes.Ok, "Map view created")
	s.logger.InfoContext(ctx, "Map view created", slog.String("view", v.ID.String()), slog.Int("views", s.store.Count()))
	return state(v), nil
}

func (s *ServiceImpl) loadItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error) {
	if s.itineraries == nil {
		return nil, fmt.Errorf("%w: stored itineraries are not available", ErrInvalidRequest)
	}
	it, err := s.itineraries.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load itinerary %s: %w", itineraryID, err)
	}
	return it, nil
}

func (s *ServiceImpl) GetView(_ context.Context, id uuid.UUID) (*ViewState, error) {
	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	return state(v), nil
}

// Retry re-initializes a view whose surface failed. The returned error is the
// initialization error, if any.
func (s *ServiceImpl) Retry(ctx context.Context, id uuid.UUID) (*ViewState, error) {
	ctx, span := otel.Tracer("MapViewService").Start(ctx, "Retry", trace.WithAttributes(
		attribute.String("view.id", id.String()),
	))
	defer span.End()

	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	if err := v.Engine.Retry(ctx); err != nil {
		span.RecordError(err)
		return state(v), err
	}
	return state(v), nil
}

func (s *ServiceImpl) SetItinerary(ctx context.Context, id uuid.UUID, it *types.Itinerary) (*ViewState, error) {
	ctx, span := otel.Tracer("MapViewService").Start(ctx, "SetItinerary", trace.WithAttributes(
		attribute.String("view.id", id.String()),
	))
	defer span.End()

	if it == nil {
		return nil, fmt.Errorf("%w: itinerary is required", ErrInvalidRequest)
	}
	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	v.Engine.SetItinerary(ctx, it)
	span.SetAttributes(attribute.Int("itinerary.days", len(it.Days)))
	return state(v), nil
}

func (s *ServiceImpl) LoadItinerary(ctx context.Context, id, itineraryID uuid.UUID) (*ViewState, error) {
	ctx, span := otel.Tracer("MapViewService").Start(ctx, "LoadItinerary", trace.WithAttributes(
		attribute.String("view.id", id.String()),
		attribute.String("itinerary.id", itineraryID.String()),
	))
	defer span.End()

	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	it, err := s.loadItinerary(ctx, itineraryID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	v.Engine.SetItinerary(ctx, it)
	return state(v), nil
}

func (s *ServiceImpl) ToggleLayer(ctx context.Context, id uuid.UUID, category types.ActivityType) (*ViewState, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidRequest)
	}
	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	visible := v.Engine.ToggleLayer(ctx, category)
	s.logger.DebugContext(ctx, "Layer toggled", slog.String("view", id.String()),
		slog.String("category", string(category)), slog.Bool("visible", visible))
	return state(v), nil
}

func (s *ServiceImpl) ResetLayers(ctx context.Context, id uuid.UUID) (*ViewState, error) {
	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	v.Engine.ResetLayers(ctx)
	return state(v), nil
}

func (s *ServiceImpl) SelectDay(ctx context.Context, id uuid.UUID, day *int) (*ViewState, error) {
	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	v.Engine.SelectDay(ctx, day)
	return state(v), nil
}

func (s *ServiceImpl) Reset(ctx context.Context, id uuid.UUID) (*ViewState, error) {
	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	v.Engine.Reset(ctx)
	return state(v), nil
}

func (s *ServiceImpl) SelectMarker(ctx context.Context, id uuid.UUID, markerID string) (*mapengine.Popup, error) {
	ctx, span := otel.Tracer("MapViewService").Start(ctx, "SelectMarker", trace.WithAttributes(
		attribute.String("view.id", id.String()),
		attribute.String("marker.id", markerID),
	))
	defer span.End()

	v, err := s.view(id)
	if err != nil {
		return nil, err
	}
	popup, err := v.Engine.SelectMarker(ctx, markerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &popup, nil
}

func (s *ServiceImpl) ClosePopup(_ context.Context, id uuid.UUID) (bool, error) {
	v, err := s.view(id)
	if err != nil {
		return false, err
	}
	return v.Engine.ClosePopup(), nil
}

func (s *ServiceImpl) ToggleFullscreen(_ context.Context, id uuid.UUID) (bool, error) {
	v, err := s.view(id)
	if err != nil {
		return false, err
	}
	return v.Engine.ToggleFullscreen(), nil
}

func (s *ServiceImpl) export(id uuid.UUID, fn func(exporter) error) error {
	v, err := s.view(id)
	if err != nil {
		return err
	}
	return v.Engine.WithSurface(func(sf mapengine.Surface, _ mapengine.Scene) error {
		ex, ok := sf.(exporter)
		if !ok {
			return ErrExportUnsupported
		}
		return fn(ex)
	})
}

func (s *ServiceImpl) GeoJSON(ctx context.Context, id uuid.UUID) (*geojson.FeatureCollection, error) {
	_, span := otel.Tracer("MapViewService").Start(ctx, "GeoJSON", trace.WithAttributes(
		attribute.String("view.id", id.String()),
	))
	defer span.End()

	var fc *geojson.FeatureCollection
	err := s.export(id, func(ex exporter) error {
		fc = surface.FeatureCollection(ex.Overlays())
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return fc, nil
}

func (s *ServiceImpl) SVG(ctx context.Context, id uuid.UUID) ([]byte, error) {
	_, span := otel.Tracer("MapViewService").Start(ctx, "SVG", trace.WithAttributes(
		attribute.String("view.id", id.String()),
	))
	defer span.End()

	var buf bytes.Buffer
	if err := s.export(id, func(ex exporter) error { return ex.WriteSVG(&buf) }); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return buf.Bytes(), nil
}

// PNG rasterizes the SVG export outside the engine lock.
func (s *ServiceImpl) PNG(ctx context.Context, id uuid.UUID) ([]byte, error) {
	ctx, span := otel.Tracer("MapViewService").Start(ctx, "PNG", trace.WithAttributes(
		attribute.String("view.id", id.String()),
	))
	defer span.End()

	if s.rasterizer == nil {
		return nil, ErrRasterizerDisabled
	}
	svg, err := s.SVG(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := s.rasterizer.PNG(ctx, svg)
	if err != nil {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "Failed to rasterize map", slog.String("view", id.String()), slog.Any("error", err))
		return nil, fmt.Errorf("failed to rasterize map: %w", err)
	}
	return png, nil
}

// Subscribe registers fn for marker selections on the view. The returned
// function unsubscribes; done is closed when the view is torn down.
func (s *ServiceImpl) Subscribe(_ context.Context, id uuid.UUID, fn func(mapengine.ActivitySelected)) (func(), <-chan struct{}, error) {
	v, err := s.view(id)
	if err != nil {
		return nil, nil, err
	}
	if v.Engine.Snapshot().State == mapengine.StateDisposed {
		return nil, nil, mapengine.ErrDisposed
	}
	return v.Engine.OnActivitySelected(fn), v.Engine.Done(), nil
}

func (s *ServiceImpl) DeleteView(ctx context.Context, id uuid.UUID) error {
	if !s.store.Delete(id) {
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	s.logger.InfoContext(ctx, "Map view deleted", slog.String("view", id.String()))
	return nil
}

// Shutdown tears down every hosted view and returns how many there were.
func (s *ServiceImpl) Shutdown(ctx context.Context) int {
	n := s.store.TeardownAll()
	s.logger.InfoContext(ctx, "Map views released", slog.Int("views", n))
	return n
}

// Package mapengine turns an itinerary into map overlays: per-day colored routes
// with direction arrows, category-styled markers, layer and day filters, a single
// detail popup and viewport fitting. One Engine owns one rendering surface.
package mapengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-itinerary-map/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

// Options configures an Engine. Zero fields take their defaults.
type Options struct {
	Palette     Palette
	FitPadding  int
	PopupOffset *ScreenPoint
	DefaultView View
	BaseLayer   BaseLayer
	InitTimeout time.Duration
	Metrics     *metrics.AppMetrics
}

// ActivitySelected is delivered to listeners when a marker is selected.
type ActivitySelected struct {
	MarkerID string         `json:"marker_id"`
	Day      int            `json:"day"`
	Activity types.Activity `json:"activity"`
	Position ScreenPoint    `json:"position"`
}

// Snapshot is the host-visible view state of an engine.
type Snapshot struct {
	State        RendererState        `json:"state"`
	Error        string               `json:"error,omitempty"`
	Retryable    bool                 `json:"retryable,omitempty"`
	Container    Container            `json:"container"`
	Destination  string               `json:"destination,omitempty"`
	SelectedDay  *int                 `json:"selected_day"`
	HiddenLayers []types.ActivityType `json:"hidden_layers"`
	Popup        *Popup               `json:"popup,omitempty"`
	View         *View                `json:"view,omitempty"`
	Fullscreen   bool                 `json:"fullscreen"`
	Pending      bool                 `json:"pending_redraw"`
	MarkerCount  int                  `json:"marker_count"`
	RouteCount   int                  `json:"route_count"`
	ArrowCount   int                  `json:"arrow_count"`
	OverlayCount int                  `json:"overlay_count"`
	Scene        Scene                `json:"scene"`
}

// Engine is one map view. Every method is serialised on one mutex so redraws
// never interleave; Init releases the lock while it waits for the surface.
type Engine struct {
	mu     sync.Mutex
	logger *slog.Logger
	opts   Options

	renderer *Renderer
	layers   *LayerSet
	days     DayFilter
	popups   *PopupController

	itinerary *types.Itinerary
	scene     Scene
	markers   map[string]MarkerSpec
	pending   bool

	listeners    map[uint64]func(ActivitySelected)
	nextListener uint64
	cancelInit   context.CancelFunc
	counted      bool
	done         chan struct{}
}

func New(provider SurfaceProvider, opts Options, logger *slog.Logger) *Engine {
	if len(opts.Palette) == 0 {
		opts.Palette = DefaultPalette
	}
	if opts.FitPadding <= 0 {
		opts.FitPadding = DefaultFitPadding
	}
	offset := PopupOffset
	if opts.PopupOffset != nil {
		offset = *opts.PopupOffset
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:    logger,
		opts:      opts,
		renderer:  NewRenderer(provider, opts.DefaultView, opts.BaseLayer, opts.InitTimeout, logger),
		layers:    NewLayerSet(),
		popups:    NewPopupController(offset),
		markers:   make(map[string]MarkerSpec),
		listeners: make(map[uint64]func(ActivitySelected)),
		done:      make(chan struct{}),
	}
}

// Init creates the surface inside container. Failures are kept in the engine
// state as a retryable *InitializationError and also returned.
func (e *Engine) Init(ctx context.Context, container Container) error {
	e.mu.Lock()
	if e.renderer.State() == StateReady {
		e.mu.Unlock()
		return nil
	}
	if err := e.renderer.begin(container); err != nil {
		e.mu.Unlock()
		return err
	}
	initCtx, cancel := context.WithCancel(ctx)
	e.cancelInit = cancel
	e.mu.Unlock()

	surface, err := e.renderer.acquire(initCtx, container)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelInit = nil

	if err == nil {
		err = e.renderer.attach(surface)
	} else {
		err = e.renderer.fail(err)
	}
	if err != nil {
		if errors.Is(err, ErrDisposed) {
			return err
		}
		e.logger.ErrorContext(ctx, "Map initialization failed", slog.String("container", container.ID), slog.Any("error", err))
		if m := e.opts.Metrics; m != nil {
			m.InitFailuresTotal.Add(ctx, 1)
		}
		return err
	}

	e.logger.InfoContext(ctx, "Map surface ready", slog.String("container", container.ID))
	if m := e.opts.Metrics; m != nil && !e.counted {
		m.ActiveMapViews.Add(ctx, 1)
		e.counted = true
	}
	if e.pending || e.itinerary != nil {
		e.redrawLocked(ctx)
	}
	return nil
}

// Retry re-runs Init with the container of the failed attempt.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	container := e.renderer.Container()
	e.mu.Unlock()
	return e.Init(ctx, container)
}

// SetItinerary replaces the rendered itinerary. View state is kept.
func (e *Engine) SetItinerary(ctx context.Context, it *types.Itinerary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.itinerary = it
	e.redrawLocked(ctx)
}

// ToggleLayer flips a category and redraws. It returns the new visibility.
func (e *Engine) ToggleLayer(ctx context.Context, category types.ActivityType) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	visible := e.layers.Toggle(category)
	e.redrawLocked(ctx)
	return visible
}

func (e *Engine) ResetLayers(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layers.Reset()
	e.redrawLocked(ctx)
}

// SelectDay shows one day, or all days for nil, and redraws.
func (e *Engine) SelectDay(ctx context.Context, day *int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.days.Select(day)
	e.redrawLocked(ctx)
}

// Reset restores every layer, all days and closes the popup.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layers.Reset()
	e.days.Select(nil)
	e.closePopupLocked()
	e.redrawLocked(ctx)
}

// Redraw recomputes the scene from the current state.
func (e *Engine) Redraw(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.redrawLocked(ctx)
}

func (e *Engine) redrawLocked(ctx context.Context) {
	switch e.renderer.State() {
	case StateDisposed:
		return
	case StateReady:
	default:
		e.pending = true
		return
	}

	start := time.Now()
	scene := Compose(e.itinerary, e.layers, &e.days, e.opts.Palette)
	placed, err := e.renderer.Redraw(scene.Overlays())
	if err != nil {
		e.pending = true
		e.logger.WarnContext(ctx, "Redraw deferred", slog.Any("error", err))
		return
	}
	e.pending = false
	e.scene = scene
	clear(e.markers)
	for _, m := range scene.Markers {
		e.markers[m.ID] = m
	}

	for _, w := range scene.Warnings {
		e.logger.WarnContext(ctx, "Skipped itinerary data", slog.Int("day", w.Day), slog.Int("index", w.Index),
			slog.String("title", w.Title), slog.String("reason", w.Reason))
	}

	if bound, ok := FitBounds(scene.Points()); ok {
		if err := e.renderer.FitBounds(bound, e.opts.FitPadding); err != nil {
			e.logger.WarnContext(ctx, "Failed to fit viewport", slog.Any("error", err))
		}
	}
	e.reanchorPopupLocked(ctx)

	e.logger.DebugContext(ctx, "Map redrawn",
		slog.Int("markers", len(scene.Markers)),
		slog.Int("routes", len(scene.Routes)),
		slog.Int("arrows", scene.ArrowCount()),
		slog.Int("overlays", placed),
		slog.Duration("took", time.Since(start)))

	if m := e.opts.Metrics; m != nil {
		m.RedrawsTotal.Add(ctx, 1)
		m.RedrawDurationSeconds.Record(ctx, time.Since(start).Seconds())
		m.OverlaysPlaced.Record(ctx, int64(placed))
		if len(scene.Warnings) > 0 {
			m.DataWarningsTotal.Add(ctx, int64(len(scene.Warnings)), metric.WithAttributes(attribute.String("kind", "itinerary")))
		}
	}
}

// reanchorPopupLocked moves an open popup back onto its marker after the view
// changed. A popup whose marker is no longer drawn stays where it was.
func (e *Engine) reanchorPopupLocked(ctx context.Context) {
	current, ok := e.popups.Current()
	if !ok {
		return
	}
	marker, ok := e.markers[current.MarkerID]
	if !ok {
		return
	}
	anchor, err := e.renderer.Project(marker.Position)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to project popup anchor", slog.String("marker", marker.ID), slog.Any("error", err))
		return
	}
	popup := e.popups.Open(marker.ID, marker.Activity, anchor)
	if err := e.renderer.ShowPopup(popup); err != nil {
		e.logger.WarnContext(ctx, "Failed to move popup", slog.String("marker", marker.ID), slog.Any("error", err))
	}
}

// SelectMarker opens the popup for a placed marker and notifies listeners.
func (e *Engine) SelectMarker(ctx context.Context, markerID string) (Popup, error) {
	popup, event, listeners, err := e.selectMarkerLocked(ctx, markerID)
	if err != nil {
		return Popup{}, err
	}
	for _, fn := range listeners {
		fn(event)
	}
	return popup, nil
}

func (e *Engine) selectMarkerLocked(ctx context.Context, markerID string) (Popup, ActivitySelected, []func(ActivitySelected), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.renderer.State() == StateDisposed {
		return Popup{}, ActivitySelected{}, nil, ErrDisposed
	}
	marker, ok := e.markers[markerID]
	if !ok {
		return Popup{}, ActivitySelected{}, nil, ErrMarkerNotFound
	}
	anchor, err := e.renderer.Project(marker.Position)
	if err != nil {
		return Popup{}, ActivitySelected{}, nil, err
	}

	popup := e.popups.Open(marker.ID, marker.Activity, anchor)
	if err := e.renderer.ShowPopup(popup); err != nil {
		e.logger.WarnContext(ctx, "Failed to show popup", slog.String("marker", markerID), slog.Any("error", err))
	}

	event := ActivitySelected{
		MarkerID: marker.ID,
		Day:      marker.Day,
		Activity: *marker.Activity,
		Position: anchor,
	}
	listeners := make([]func(ActivitySelected), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	return popup, event, listeners, nil
}

// ClosePopup dismisses the open popup and reports whether one was open.
func (e *Engine) ClosePopup() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closePopupLocked()
}

func (e *Engine) closePopupLocked() bool {
	if !e.popups.Close() {
		return false
	}
	if err := e.renderer.HidePopup(); err != nil && !errors.Is(err, ErrNotReady) {
		e.logger.Warn("Failed to hide popup", slog.Any("error", err))
	}
	return true
}

// ToggleFullscreen delegates to the surface and returns the resulting state.
// A rejected request leaves the state unchanged.
func (e *Engine) ToggleFullscreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderer.ToggleFullscreen()
}

// OnActivitySelected registers fn and returns a function that removes it.
// Listeners run outside the engine lock.
func (e *Engine) OnActivitySelected(fn func(ActivitySelected)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderer.State() == StateDisposed {
		return func() {}
	}
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Done is closed once the engine is torn down.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// ListenerCount reports the registered listeners.
func (e *Engine) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// WithSurface runs fn with the ready surface and the current scene under the
// engine lock. It returns ErrNotReady or ErrDisposed otherwise.
func (e *Engine) WithSurface(fn func(Surface, Scene) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.renderer.State() {
	case StateDisposed:
		return ErrDisposed
	case StateReady:
		return fn(e.renderer.Surface(), e.scene)
	default:
		return ErrNotReady
	}
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		State:        e.renderer.State(),
		Container:    e.renderer.Container(),
		HiddenLayers: e.layers.Hidden(),
		Fullscreen:   e.renderer.Fullscreen(),
		Pending:      e.pending,
		MarkerCount:  len(e.scene.Markers),
		RouteCount:   len(e.scene.Routes),
		ArrowCount:   e.scene.ArrowCount(),
		OverlayCount: e.renderer.OverlayCount(),
		Scene:        e.scene,
	}
	if ierr := e.renderer.Err(); ierr != nil {
		s.Error = ierr.Error()
		s.Retryable = ierr.Retryable()
	}
	if e.itinerary != nil {
		s.Destination = e.itinerary.Destination
	}
	if day, ok := e.days.Selected(); ok {
		s.SelectedDay = &day
	}
	if p, ok := e.popups.Current(); ok {
		s.Popup = &p
	}
	if v, ok := e.renderer.View(); ok {
		s.View = &v
	}
	return s
}

// Teardown releases the surface, every overlay and every listener. It cancels an
// in-flight Init and is safe to call more than once.
func (e *Engine) Teardown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelInit != nil {
		e.cancelInit()
		e.cancelInit = nil
	}
	if e.renderer.State() == StateDisposed {
		return nil
	}
	e.popups.Close()
	err := e.renderer.Teardown()
	clear(e.listeners)
	clear(e.markers)
	e.scene = Scene{}
	e.pending = false
	close(e.done)

	if m := e.opts.Metrics; m != nil && e.counted {
		m.ActiveMapViews.Add(ctx, -1)
		e.counted = false
	}
	if err != nil {
		e.logger.WarnContext(ctx, "Map teardown finished with errors", slog.Any("error", err))
	}
	return err
}

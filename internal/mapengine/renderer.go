package mapengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
)

type RendererState string

const (
	StateUninitialized RendererState = "uninitialized"
	StateInitializing  RendererState = "initializing"
	StateReady         RendererState = "ready"
	StateFailed        RendererState = "failed"
	StateDisposed      RendererState = "disposed"
)

// Renderer owns one surface and every overlay handle placed on it. Overlays are
// never updated in place: each redraw releases the whole arena first.
// Renderer is not safe for concurrent use; Engine serialises access.
type Renderer struct {
	provider    SurfaceProvider
	defaultView View
	baseLayer   BaseLayer
	initTimeout time.Duration
	logger      *slog.Logger

	state      RendererState
	container  Container
	surface    Surface
	handles    []OverlayHandle
	initErr    *InitializationError
	fullscreen bool
}

func NewRenderer(provider SurfaceProvider, defaultView View, baseLayer BaseLayer, initTimeout time.Duration, logger *slog.Logger) *Renderer {
	return &Renderer{
		provider:    provider,
		defaultView: defaultView,
		baseLayer:   baseLayer,
		initTimeout: initTimeout,
		logger:      logger,
		state:       StateUninitialized,
	}
}

func (r *Renderer) State() RendererState { return r.state }

// Err returns the pending initialization error, if any.
func (r *Renderer) Err() *InitializationError { return r.initErr }

func (r *Renderer) Container() Container { return r.container }

// begin moves the renderer into StateInitializing for container. Callers check
// for StateReady first.
func (r *Renderer) begin(container Container) error {
	switch r.state {
	case StateDisposed:
		return ErrDisposed
	case StateInitializing:
		return ErrInitInProgress
	}
	r.container = container
	r.state = StateInitializing
	r.initErr = nil
	return nil
}

// acquire waits for the provider. It touches no renderer state so the caller can
// run it without holding the engine lock.
func (r *Renderer) acquire(ctx context.Context, container Container) (Surface, error) {
	if r.provider == nil {
		return nil, ErrNoSurface
	}
	if r.initTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.initTimeout)
		defer cancel()
	}
	surface, err := r.provider.Acquire(ctx, container)
	if err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, ErrNoSurface
	}
	return surface, nil
}

// attach installs an acquired surface: default view first, then the base layer.
func (r *Renderer) attach(surface Surface) error {
	if r.state == StateDisposed {
		_ = surface.Close()
		return ErrDisposed
	}
	if err := surface.SetView(r.defaultView); err != nil {
		_ = surface.Close()
		return r.fail(fmt.Errorf("set default view: %w", err))
	}
	if err := surface.AttachBaseLayer(r.baseLayer); err != nil {
		_ = surface.Close()
		return r.fail(fmt.Errorf("attach base layer %q: %w", r.baseLayer.Name, err))
	}
	r.surface = surface
	r.state = StateReady
	r.initErr = nil
	return nil
}

// fail records an initialization failure and returns it as *InitializationError.
func (r *Renderer) fail(cause error) error {
	if r.state == StateDisposed {
		return ErrDisposed
	}
	r.state = StateFailed
	r.initErr = &InitializationError{Container: r.container.ID, Cause: cause}
	return r.initErr
}

// Redraw releases every overlay placed by the previous redraw and then places
// overlays. It returns the number of overlays now on the surface.
func (r *Renderer) Redraw(overlays []Overlay) (int, error) {
	switch r.state {
	case StateDisposed:
		return 0, ErrDisposed
	case StateReady:
	default:
		return 0, ErrNotReady
	}

	r.clear()
	for _, o := range overlays {
		h, err := r.surface.AddOverlay(o)
		if err != nil {
			r.logger.Warn("Failed to add overlay", slog.String("kind", string(o.OverlayKind())), slog.Any("error", err))
			continue
		}
		r.handles = append(r.handles, h)
	}
	return len(r.handles), nil
}

func (r *Renderer) clear() {
	for _, h := range r.handles {
		if err := r.surface.RemoveOverlay(h); err != nil {
			r.logger.Warn("Failed to remove overlay", slog.Uint64("handle", uint64(h)), slog.Any("error", err))
		}
	}
	r.handles = r.handles[:0]
}

// OverlayCount is the number of handles currently owned.
func (r *Renderer) OverlayCount() int { return len(r.handles) }

func (r *Renderer) FitBounds(bound orb.Bound, padding int) error {
	if r.state != StateReady {
		return ErrNotReady
	}
	return r.surface.FitBounds(bound, padding)
}

func (r *Renderer) View() (View, bool) {
	if r.state != StateReady {
		return View{}, false
	}
	return r.surface.View(), true
}

func (r *Renderer) Project(point orb.Point) (ScreenPoint, error) {
	if r.state != StateReady {
		return ScreenPoint{}, ErrNotReady
	}
	return r.surface.Project(point)
}

func (r *Renderer) ShowPopup(p Popup) error {
	if r.state != StateReady {
		return ErrNotReady
	}
	return r.surface.ShowPopup(p)
}

func (r *Renderer) HidePopup() error {
	if r.state != StateReady {
		return ErrNotReady
	}
	return r.surface.HidePopup()
}

// ToggleFullscreen asks the surface to flip fullscreen. A refusal is ignored and
// the previous state kept.
func (r *Renderer) ToggleFullscreen() bool {
	if r.state != StateReady {
		return r.fullscreen
	}
	want := !r.fullscreen
	if err := r.surface.RequestFullscreen(want); err != nil {
		r.logger.Debug("Fullscreen request rejected", slog.Any("error", err))
		return r.fullscreen
	}
	r.fullscreen = want
	return r.fullscreen
}

func (r *Renderer) Fullscreen() bool { return r.fullscreen }

// Surface exposes the owned surface for read-only exports. It is nil unless ready.
func (r *Renderer) Surface() Surface {
	if r.state != StateReady {
		return nil
	}
	return r.surface
}

// Teardown releases every overlay and the surface. It is idempotent.
func (r *Renderer) Teardown() error {
	if r.state == StateDisposed {
		return nil
	}
	var errs []error
	if r.surface != nil {
		r.clear()
		if err := r.surface.HidePopup(); err != nil {
			errs = append(errs, err)
		}
		if err := r.surface.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.surface = nil
	r.handles = nil
	r.fullscreen = false
	r.state = StateDisposed
	return errors.Join(errs...)
}

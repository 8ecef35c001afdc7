package mapengine

import (
	"context"

	"github.com/paulmach/orb"
)

type OverlayKind string

const (
	OverlayMarker OverlayKind = "marker"
	OverlayRoute  OverlayKind = "route"
	OverlayArrow  OverlayKind = "arrow"
)

// Overlay is anything the renderer places on a surface: MarkerSpec, RouteSpec
// (the polyline only) or ArrowSpec.
type Overlay interface {
	OverlayKind() OverlayKind
}

// OverlayHandle identifies a placed overlay on its surface.
type OverlayHandle uint64

// ScreenPoint is a pixel position relative to the container's top-left corner.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Container is the host region a surface is created in.
type Container struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// View is a map center and zoom level.
type View struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
}

// BaseLayer is the background drawn under every overlay.
type BaseLayer struct {
	Name        string `json:"name"`
	URLTemplate string `json:"url_template,omitempty"`
	Attribution string `json:"attribution,omitempty"`
}

// Surface is the rendering surface owned by one Renderer.
type Surface interface {
	SetView(view View) error
	View() View
	AttachBaseLayer(layer BaseLayer) error
	AddOverlay(overlay Overlay) (OverlayHandle, error)
	RemoveOverlay(handle OverlayHandle) error
	OverlayCount() int
	FitBounds(bound orb.Bound, padding int) error
	Project(point orb.Point) (ScreenPoint, error)
	ShowPopup(popup Popup) error
	HidePopup() error
	RequestFullscreen(on bool) error
	Close() error
}

// SurfaceProvider creates surfaces. Acquire may block until the surface is
// ready and must honour ctx cancellation.
type SurfaceProvider interface {
	Acquire(ctx context.Context, container Container) (Surface, error)
}

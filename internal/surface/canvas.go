package surface

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
)

const (
	tileSize    = 256.0
	originShift = math.Pi * orb.EarthRadius
	minZoom     = 0
	maxZoom     = 18
	// pointZoom is used when fitting a bound with no extent.
	pointZoom = 15
)

var (
	ErrClosed                = errors.New("surface is closed")
	ErrUnknownOverlay        = errors.New("unknown overlay handle")
	ErrFullscreenUnsupported = errors.New("fullscreen is not available in this host")
	ErrNoBaseLayer           = errors.New("base layer has no name")
)

var _ mapengine.Surface = (*Canvas)(nil)

// Canvas is an in-process Web-Mercator surface. It keeps every placed overlay
// and can render itself as SVG.
type Canvas struct {
	container       mapengine.Container
	view            mapengine.View
	base            *mapengine.BaseLayer
	overlays        map[mapengine.OverlayHandle]mapengine.Overlay
	next            mapengine.OverlayHandle
	popup           *mapengine.Popup
	fullscreen      bool
	allowFullscreen bool
	closed          bool
}

func NewCanvas(container mapengine.Container, allowFullscreen bool) *Canvas {
	return &Canvas{
		container:       container,
		overlays:        make(map[mapengine.OverlayHandle]mapengine.Overlay),
		next:            1,
		allowFullscreen: allowFullscreen,
	}
}

func (c *Canvas) Container() mapengine.Container { return c.container }

func (c *Canvas) SetView(view mapengine.View) error {
	if c.closed {
		return ErrClosed
	}
	view.Zoom = clampZoom(view.Zoom)
	c.view = view
	return nil
}

func (c *Canvas) View() mapengine.View { return c.view }

func (c *Canvas) AttachBaseLayer(layer mapengine.BaseLayer) error {
	if c.closed {
		return ErrClosed
	}
	if layer.Name == "" {
		return ErrNoBaseLayer
	}
	c.base = &layer
	return nil
}

func (c *Canvas) BaseLayer() (mapengine.BaseLayer, bool) {
	if c.base == nil {
		return mapengine.BaseLayer{}, false
	}
	return *c.base, true
}

func (c *Canvas) AddOverlay(overlay mapengine.Overlay) (mapengine.OverlayHandle, error) {
	if c.closed {
		return 0, ErrClosed
	}
	h := c.next
	c.next++
	c.overlays[h] = overlay
	return h, nil
}

func (c *Canvas) RemoveOverlay(handle mapengine.OverlayHandle) error {
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.overlays[handle]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownOverlay, handle)
	}
	delete(c.overlays, handle)
	return nil
}

func (c *Canvas) OverlayCount() int { return len(c.overlays) }

// Overlays returns the placed overlays in placement order.
func (c *Canvas) Overlays() []mapengine.Overlay {
	handles := make([]mapengine.OverlayHandle, 0, len(c.overlays))
	for h := range c.overlays {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	out := make([]mapengine.Overlay, 0, len(handles))
	for _, h := range handles {
		out = append(out, c.overlays[h])
	}
	return out
}

// FitBounds centers the view on bound and picks the largest whole zoom level
// that keeps the bound inside the container minus padding on every side.
func (c *Canvas) FitBounds(bound orb.Bound, padding int) error {
	if c.closed {
		return ErrClosed
	}
	minX, minY := worldPixel(orb.Point{bound.Min.Lon(), bound.Max.Lat()}, 0)
	maxX, maxY := worldPixel(orb.Point{bound.Max.Lon(), bound.Min.Lat()}, 0)
	dx, dy := maxX-minX, maxY-minY

	availW := float64(c.container.Width - 2*padding)
	availH := float64(c.container.Height - 2*padding)
	if availW <= 0 {
		availW = float64(c.container.Width)
	}
	if availH <= 0 {
		availH = float64(c.container.Height)
	}

	zoom := float64(pointZoom)
	if dx > 0 || dy > 0 {
		scale := math.Inf(1)
		if dx > 0 {
			scale = math.Min(scale, availW/dx)
		}
		if dy > 0 {
			scale = math.Min(scale, availH/dy)
		}
		zoom = math.Floor(math.Log2(scale))
	}

	c.view = mapengine.View{
		Center: unprojectWorldPixel((minX+maxX)/2, (minY+maxY)/2, 0),
		Zoom:   clampZoom(zoom),
	}
	return nil
}

// Project converts a location to container pixels under the current view.
func (c *Canvas) Project(point orb.Point) (mapengine.ScreenPoint, error) {
	if c.closed {
		return mapengine.ScreenPoint{}, ErrClosed
	}
	px, py := worldPixel(point, c.view.Zoom)
	cx, cy := worldPixel(c.view.Center, c.view.Zoom)
	return mapengine.ScreenPoint{
		X: px - cx + float64(c.container.Width)/2,
		Y: py - cy + float64(c.container.Height)/2,
	}, nil
}

func (c *Canvas) ShowPopup(popup mapengine.Popup) error {
	if c.closed {
		return ErrClosed
	}
	c.popup = &popup
	return nil
}

func (c *Canvas) HidePopup() error {
	if c.closed {
		return ErrClosed
	}
	c.popup = nil
	return nil
}

func (c *Canvas) Popup() (mapengine.Popup, bool) {
	if c.popup == nil {
		return mapengine.Popup{}, false
	}
	return *c.popup, true
}

func (c *Canvas) RequestFullscreen(on bool) error {
	if c.closed {
		return ErrClosed
	}
	if !c.allowFullscreen {
		return ErrFullscreenUnsupported
	}
	c.fullscreen = on
	return nil
}

func (c *Canvas) Fullscreen() bool { return c.fullscreen }

func (c *Canvas) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.overlays = nil
	c.popup = nil
	c.base = nil
	return nil
}

func (c *Canvas) Closed() bool { return c.closed }

func clampZoom(z float64) float64 {
	return math.Max(minZoom, math.Min(maxZoom, z))
}

// worldPixel returns the global pixel coordinates of point at zoom.
func worldPixel(point orb.Point, zoom float64) (float64, float64) {
	m := project.Point(point, project.WGS84.ToMercator)
	size := tileSize * math.Pow(2, zoom)
	x := (m.X() + originShift) / (2 * originShift) * size
	y := (originShift - m.Y()) / (2 * originShift) * size
	return x, y
}

func unprojectWorldPixel(x, y, zoom float64) orb.Point {
	size := tileSize * math.Pow(2, zoom)
	m := orb.Point{x/size*2*originShift - originShift, originShift - y/size*2*originShift}
	return project.Point(m, project.Mercator.ToWGS84)
}

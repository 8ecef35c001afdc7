package surface

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
)

const (
	backgroundColor = "#eef2f3"
	gridColor       = "#d5dbdb"
	markerRadius    = 11.0
	popupWidth      = 240.0
	popupLineHeight = 16.0
)

// WriteSVG renders the canvas: base layer, route lines, arrows, markers and
// the open popup, in that order.
func (c *Canvas) WriteSVG(w io.Writer) error {
	if c.closed {
		return ErrClosed
	}
	var svg bytes.Buffer
	width, height := float64(c.container.Width), float64(c.container.Height)

	fmt.Fprintf(&svg, `<svg width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" xmlns="http://www.w3.org/2000/svg" data-container="%s">`+"\n",
		width, height, width, height, html.EscapeString(c.container.ID))
	fmt.Fprintf(&svg, `  <rect width="%.0f" height="%.0f" fill="%s"/>`+"\n", width, height, backgroundColor)
	c.drawBaseLayer(&svg)

	var routes, arrows, markers []mapengine.Overlay
	for _, o := range c.Overlays() {
		switch o.OverlayKind() {
		case mapengine.OverlayRoute:
			routes = append(routes, o)
		case mapengine.OverlayArrow:
			arrows = append(arrows, o)
		case mapengine.OverlayMarker:
			markers = append(markers, o)
		}
	}
	for _, o := range routes {
		c.drawRoute(&svg, o.(mapengine.RouteSpec))
	}
	for _, o := range arrows {
		c.drawArrow(&svg, o.(mapengine.ArrowSpec))
	}
	for _, o := range markers {
		c.drawMarker(&svg, o.(mapengine.MarkerSpec))
	}
	if c.popup != nil {
		drawPopup(&svg, *c.popup)
	}
	svg.WriteString("</svg>\n")

	_, err := svg.WriteTo(w)
	return err
}

// drawBaseLayer draws the tile grid of the current zoom and the attribution.
func (c *Canvas) drawBaseLayer(svg *bytes.Buffer) {
	if c.base == nil {
		return
	}
	width, height := float64(c.container.Width), float64(c.container.Height)
	cx, cy := worldPixel(c.view.Center, c.view.Zoom)
	originX := cx - width/2
	originY := cy - height/2

	fmt.Fprintf(svg, `  <g class="base-layer" data-name="%s" stroke="%s" stroke-width="1">`+"\n", html.EscapeString(c.base.Name), gridColor)
	for x := math.Ceil(originX/tileSize) * tileSize; x < originX+width; x += tileSize {
		fmt.Fprintf(svg, `    <line x1="%.2f" y1="0" x2="%.2f" y2="%.0f"/>`+"\n", x-originX, x-originX, height)
	}
	for y := math.Ceil(originY/tileSize) * tileSize; y < originY+height; y += tileSize {
		fmt.Fprintf(svg, `    <line x1="0" y1="%.2f" x2="%.0f" y2="%.2f"/>`+"\n", y-originY, width, y-originY)
	}
	svg.WriteString("  </g>\n")

	if c.base.Attribution != "" {
		fmt.Fprintf(svg, `  <text x="%.0f" y="%.0f" font-family="sans-serif" font-size="10" fill="#555" text-anchor="end">%s</text>`+"\n",
			width-4, height-4, html.EscapeString(c.base.Attribution))
	}
}

func (c *Canvas) drawRoute(svg *bytes.Buffer, route mapengine.RouteSpec) {
	points := make([]string, 0, len(route.Path))
	for _, p := range route.Path {
		sp, _ := c.Project(p)
		points = append(points, fmt.Sprintf("%.2f,%.2f", sp.X, sp.Y))
	}
	fmt.Fprintf(svg, `  <polyline class="route" data-day="%d" points="%s" fill="none" stroke="%s" stroke-width="4" stroke-opacity="0.8" stroke-linejoin="round"/>`+"\n",
		route.Day, strings.Join(points, " "), route.Color)
}

// drawArrow points a chevron along the bearing. SVG rotation is clockwise, as
// is the bearing.
func (c *Canvas) drawArrow(svg *bytes.Buffer, arrow mapengine.ArrowSpec) {
	sp, _ := c.Project(arrow.Position)
	fmt.Fprintf(svg, `  <path class="arrow" data-day="%d" d="M0,-7 L6,6 L0,2 L-6,6 Z" fill="%s" transform="translate(%.2f,%.2f) rotate(%.2f)"/>`+"\n",
		arrow.Day, arrow.Color, sp.X, sp.Y, arrow.Bearing)
}

func (c *Canvas) drawMarker(svg *bytes.Buffer, marker mapengine.MarkerSpec) {
	sp, _ := c.Project(marker.Position)
	title := ""
	if marker.Activity != nil {
		title = marker.Activity.Title
	}
	fmt.Fprintf(svg, `  <g class="marker" data-id="%s" data-glyph="%s" transform="translate(%.2f,%.2f)">`+"\n",
		marker.ID, marker.Style.Glyph, sp.X, sp.Y)
	fmt.Fprintf(svg, `    <title>%s</title>`+"\n", html.EscapeString(title))
	fmt.Fprintf(svg, `    <circle r="%.0f" fill="%s" stroke="#ffffff" stroke-width="2"/>`+"\n", markerRadius, marker.Style.Color)
	fmt.Fprintf(svg, `    <text font-family="sans-serif" font-size="11" font-weight="bold" fill="#ffffff" text-anchor="middle" dominant-baseline="central">%s</text>`+"\n",
		glyphInitial(marker.Style.Glyph))
	svg.WriteString("  </g>\n")
}

func drawPopup(svg *bytes.Buffer, popup mapengine.Popup) {
	lines := 1 + len(popup.Fields) + len(popup.Tips)
	h := float64(lines)*popupLineHeight + 12
	x := popup.Position.X - popupWidth/2
	y := popup.Position.Y - h

	fmt.Fprintf(svg, `  <g class="popup" data-marker="%s">`+"\n", popup.MarkerID)
	fmt.Fprintf(svg, `    <rect x="%.2f" y="%.2f" width="%.0f" height="%.2f" rx="4" ry="4" fill="#ffffff" stroke="#7f8c8d"/>`+"\n", x, y, popupWidth, h)
	ty := y + popupLineHeight
	fmt.Fprintf(svg, `    <text x="%.2f" y="%.2f" font-family="sans-serif" font-size="13" font-weight="bold">%s</text>`+"\n",
		x+8, ty, html.EscapeString(popup.Title))
	for _, f := range popup.Fields {
		ty += popupLineHeight
		fmt.Fprintf(svg, `    <text x="%.2f" y="%.2f" font-family="sans-serif" font-size="11"><tspan font-weight="bold">%s:</tspan> %s</text>`+"\n",
			x+8, ty, html.EscapeString(f.Label), html.EscapeString(f.Value))
	}
	for _, tip := range popup.Tips {
		ty += popupLineHeight
		fmt.Fprintf(svg, `    <text x="%.2f" y="%.2f" font-family="sans-serif" font-size="11" font-style="italic">- %s</text>`+"\n",
			x+8, ty, html.EscapeString(tip))
	}
	svg.WriteString("  </g>\n")
}

func glyphInitial(glyph string) string {
	if glyph == "" {
		return ""
	}
	return strings.ToUpper(glyph[:1])
}

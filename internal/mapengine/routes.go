package mapengine

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Palette assigns day colors. A day always maps to the same color.
type Palette []string

var DefaultPalette = Palette{
	"#e74c3c",
	"#3498db",
	"#2ecc71",
	"#9b59b6",
	"#f39c12",
	"#1abc9c",
	"#e67e22",
}

// Color returns palette[(dayNumber-1) mod len(palette)].
func (p Palette) Color(dayNumber int) string {
	if len(p) == 0 {
		p = DefaultPalette
	}
	n := len(p)
	return p[((dayNumber-1)%n+n)%n]
}

// RouteSpec is the polyline through one day's visible activities.
type RouteSpec struct {
	Day            int            `json:"day"`
	Color          string         `json:"color"`
	Path           orb.LineString `json:"path"`
	DistanceMeters float64        `json:"distance_meters"`
	Arrows         []ArrowSpec    `json:"arrows"`
}

func (RouteSpec) OverlayKind() OverlayKind { return OverlayRoute }

// ArrowSpec is a direction glyph placed halfway along one route segment.
// Bearing is in degrees, clockwise from north.
type ArrowSpec struct {
	Day      int       `json:"day"`
	Color    string    `json:"color"`
	Position orb.Point `json:"position"`
	Bearing  float64   `json:"bearing"`
}

func (ArrowSpec) OverlayKind() OverlayKind { return OverlayArrow }

// DecorateRoute builds the route for a day. It returns nil when fewer than two
// points remain, since a lone marker has no route.
func DecorateRoute(day int, color string, points []orb.Point) *RouteSpec {
	if len(points) < 2 {
		return nil
	}
	path := make(orb.LineString, len(points))
	copy(path, points)

	arrows := make([]ArrowSpec, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		from, to := points[i], points[i+1]
		arrows = append(arrows, ArrowSpec{
			Day:      day,
			Color:    color,
			Position: Midpoint(from, to),
			Bearing:  Bearing(from, to),
		})
	}

	return &RouteSpec{
		Day:            day,
		Color:          color,
		Path:           path,
		DistanceMeters: geo.LengthHaversine(path),
		Arrows:         arrows,
	}
}

// Midpoint is the planar midpoint of a segment.
func Midpoint(from, to orb.Point) orb.Point {
	return orb.Point{(from.Lon() + to.Lon()) / 2, (from.Lat() + to.Lat()) / 2}
}

// Bearing is the planar angle atan2(dLng, dLat) in degrees. Good enough at city
// scale; no great-circle correction.
func Bearing(from, to orb.Point) float64 {
	return math.Atan2(to.Lon()-from.Lon(), to.Lat()-from.Lat()) * 180 / math.Pi
}

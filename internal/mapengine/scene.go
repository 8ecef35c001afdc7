package mapengine

import (
	"github.com/paulmach/orb"

	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

// Scene is everything one redraw places on the surface.
type Scene struct {
	Markers  []MarkerSpec  `json:"markers"`
	Routes   []RouteSpec   `json:"routes"`
	Warnings []DataWarning `json:"warnings,omitempty"`
}

// Compose filters the itinerary through layers and days and builds markers and
// decorated routes. An activity is drawn iff its day is selected, its category is
// visible and it has coordinates. Duplicate day numbers keep the first occurrence.
// The itinerary is never modified.
func Compose(it *types.Itinerary, layers *LayerSet, days *DayFilter, palette Palette) Scene {
	var scene Scene
	if it == nil {
		return scene
	}

	seen := make(map[int]bool, len(it.Days))
	for i := range it.Days {
		day := &it.Days[i]
		if day.DayNumber <= 0 {
			scene.Warnings = append(scene.Warnings, DataWarning{Day: day.DayNumber, Index: -1, Reason: ReasonInvalidDay})
			continue
		}
		if seen[day.DayNumber] {
			scene.Warnings = append(scene.Warnings, DataWarning{Day: day.DayNumber, Index: -1, Reason: ReasonDuplicateDay})
			continue
		}
		seen[day.DayNumber] = true

		if !days.Matches(day.DayNumber) {
			continue
		}

		var points []orb.Point
		for j := range day.Activities {
			activity := &day.Activities[j]
			if !layers.IsVisible(activity.Type) {
				continue
			}
			if !activity.HasCoordinates() {
				scene.Warnings = append(scene.Warnings, DataWarning{
					Day:    day.DayNumber,
					Index:  j,
					Title:  activity.Title,
					Reason: ReasonMissingCoordinates,
				})
				continue
			}
			marker := NewMarker(day.DayNumber, j, activity)
			scene.Markers = append(scene.Markers, marker)
			points = append(points, marker.Position)
		}

		if len(points) == 0 {
			if len(day.Activities) == 0 {
				scene.Warnings = append(scene.Warnings, DataWarning{Day: day.DayNumber, Index: -1, Reason: ReasonEmptyDay})
			}
			continue
		}
		if route := DecorateRoute(day.DayNumber, palette.Color(day.DayNumber), points); route != nil {
			scene.Routes = append(scene.Routes, *route)
		}
	}
	return scene
}

// Overlays flattens the scene in paint order: route lines, arrows, markers.
func (s Scene) Overlays() []Overlay {
	out := make([]Overlay, 0, s.OverlayCount())
	for _, r := range s.Routes {
		out = append(out, r)
	}
	for _, r := range s.Routes {
		for _, a := range r.Arrows {
			out = append(out, a)
		}
	}
	for _, m := range s.Markers {
		out = append(out, m)
	}
	return out
}

func (s Scene) ArrowCount() int {
	n := 0
	for _, r := range s.Routes {
		n += len(r.Arrows)
	}
	return n
}

func (s Scene) OverlayCount() int {
	return len(s.Markers) + len(s.Routes) + s.ArrowCount()
}

// Points returns the positions of every marker in the scene.
func (s Scene) Points() []orb.Point {
	pts := make([]orb.Point, 0, len(s.Markers))
	for _, m := range s.Markers {
		pts = append(pts, m.Position)
	}
	return pts
}

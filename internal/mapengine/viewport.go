package mapengine

import "github.com/paulmach/orb"

// DefaultFitPadding is the pixel padding kept around fitted markers.
const DefaultFitPadding = 40

// FitBounds returns the minimal bound around points. ok is false for an empty set,
// in which case the view must be left alone.
func FitBounds(points []orb.Point) (bound orb.Bound, ok bool) {
	if len(points) == 0 {
		return orb.Bound{}, false
	}
	return orb.MultiPoint(points).Bound(), true
}

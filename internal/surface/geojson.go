package surface

import (
	"github.com/paulmach/orb/geojson"

	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
)

// FeatureCollection exports placed overlays as GeoJSON. Styling follows the
// simplestyle property names so common viewers pick it up.
func FeatureCollection(overlays []mapengine.Overlay) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range overlays {
		switch v := o.(type) {
		case mapengine.MarkerSpec:
			f := geojson.NewFeature(v.Position)
			f.ID = v.ID
			f.Properties["kind"] = string(mapengine.OverlayMarker)
			f.Properties["day"] = v.Day
			f.Properties["index"] = v.Index
			f.Properties["marker-color"] = v.Style.Color
			f.Properties["marker-symbol"] = v.Style.Glyph
			if v.Activity != nil {
				f.Properties["title"] = v.Activity.Title
				f.Properties["type"] = string(v.Activity.Type)
				if v.Activity.Time != "" {
					f.Properties["time"] = v.Activity.Time
				}
			}
			fc.Append(f)
		case mapengine.RouteSpec:
			f := geojson.NewFeature(v.Path)
			f.Properties["kind"] = string(mapengine.OverlayRoute)
			f.Properties["day"] = v.Day
			f.Properties["stroke"] = v.Color
			f.Properties["stroke-width"] = 4
			f.Properties["distance_meters"] = v.DistanceMeters
			fc.Append(f)
		case mapengine.ArrowSpec:
			f := geojson.NewFeature(v.Position)
			f.Properties["kind"] = string(mapengine.OverlayArrow)
			f.Properties["day"] = v.Day
			f.Properties["marker-color"] = v.Color
			f.Properties["bearing"] = v.Bearing
			fc.Append(f)
		}
	}
	return fc
}

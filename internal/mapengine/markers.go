package mapengine

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

// MarkerStyle is the visual style of an activity marker.
type MarkerStyle struct {
	Color string `json:"color"`
	Glyph string `json:"glyph"`
}

// NeutralStyle is used for activities whose type is missing or not in markerStyles.
var NeutralStyle = MarkerStyle{Color: "#7f8c8d", Glyph: "pin"}

var markerStyles = map[types.ActivityType]MarkerStyle{
	types.ActivityAttraction:    {Color: "#e74c3c", Glyph: "landmark"},
	types.ActivityMeal:          {Color: "#f39c12", Glyph: "utensils"},
	types.ActivityTransport:     {Color: "#3498db", Glyph: "bus"},
	types.ActivityAccommodation: {Color: "#9b59b6", Glyph: "bed"},
	types.ActivityShopping:      {Color: "#e91e63", Glyph: "bag"},
	types.ActivityEntertainment: {Color: "#1abc9c", Glyph: "ticket"},
}

// StyleFor returns the style of category, falling back to NeutralStyle.
func StyleFor(category types.ActivityType) MarkerStyle {
	if style, ok := markerStyles[category]; ok {
		return style
	}
	return NeutralStyle
}

// MarkerSpec is a marker ready to be placed on a surface.
type MarkerSpec struct {
	ID       string          `json:"id"`
	Day      int             `json:"day"`
	Index    int             `json:"index"`
	Position orb.Point       `json:"position"`
	Style    MarkerStyle     `json:"style"`
	Activity *types.Activity `json:"activity"`
}

func (MarkerSpec) OverlayKind() OverlayKind { return OverlayMarker }

// MarkerID is stable for a given day and activity index.
func MarkerID(day, index int) string {
	return fmt.Sprintf("d%d-a%d", day, index)
}

// NewMarker builds the marker for the index-th activity of day. The activity must
// have coordinates.
func NewMarker(day, index int, activity *types.Activity) MarkerSpec {
	return MarkerSpec{
		ID:       MarkerID(day, index),
		Day:      day,
		Index:    index,
		Position: activity.Coordinates.Point(),
		Style:    StyleFor(activity.Type),
		Activity: activity,
	}
}

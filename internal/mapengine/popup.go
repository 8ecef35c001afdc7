package mapengine

import (
	"strconv"

	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

// PopupOffset moves the popup above its marker so the marker stays visible.
var PopupOffset = ScreenPoint{X: 0, Y: -36}

type PopupField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Popup is the detail overlay of one activity.
type Popup struct {
	MarkerID string       `json:"marker_id"`
	Title    string       `json:"title"`
	Position ScreenPoint  `json:"position"`
	Fields   []PopupField `json:"fields,omitempty"`
	Tips     []string     `json:"tips,omitempty"`
}

// PopupController keeps at most one popup open.
type PopupController struct {
	offset ScreenPoint
	open   *Popup
}

func NewPopupController(offset ScreenPoint) *PopupController {
	return &PopupController{offset: offset}
}

// Open replaces any open popup with one for activity, anchored at the marker's
// screen position.
func (c *PopupController) Open(markerID string, activity *types.Activity, anchor ScreenPoint) Popup {
	p := Popup{
		MarkerID: markerID,
		Title:    activity.Title,
		Position: ScreenPoint{X: anchor.X + c.offset.X, Y: anchor.Y + c.offset.Y},
		Fields:   popupFields(activity),
	}
	if len(activity.Tips) > 0 {
		p.Tips = append([]string(nil), activity.Tips...)
	}
	c.open = &p
	return p
}

// Close dismisses the open popup. It reports whether one was open.
func (c *PopupController) Close() bool {
	wasOpen := c.open != nil
	c.open = nil
	return wasOpen
}

func (c *PopupController) Current() (Popup, bool) {
	if c.open == nil {
		return Popup{}, false
	}
	return *c.open, true
}

func popupFields(a *types.Activity) []PopupField {
	var fields []PopupField
	add := func(label, value string) {
		if value != "" {
			fields = append(fields, PopupField{Label: label, Value: value})
		}
	}
	add("description", a.Description)
	add("time", a.Time)
	add("location", a.Location)
	add("duration", a.Duration)
	if a.Cost != nil {
		add("cost", strconv.FormatFloat(*a.Cost, 'f', -1, 64))
	}
	add("cuisine", a.Cuisine)
	return fields
}

package types

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// ActivityType is the category of an activity. It doubles as the map layer key.
type ActivityType string

const (
	ActivityAttraction    ActivityType = "attraction"
	ActivityMeal          ActivityType = "meal"
	ActivityTransport     ActivityType = "transport"
	ActivityAccommodation ActivityType = "accommodation"
	ActivityShopping      ActivityType = "shopping"
	ActivityEntertainment ActivityType = "entertainment"
)

// ActivityTypes lists the known categories in display order.
var ActivityTypes = []ActivityType{
	ActivityAttraction,
	ActivityMeal,
	ActivityTransport,
	ActivityAccommodation,
	ActivityShopping,
	ActivityEntertainment,
}

// Coordinates is a pre-resolved WGS84 location.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the coordinates in orb's [lon, lat] order.
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Activity is a single event of a day. Activities without coordinates are valid
// but are never drawn on a map.
type Activity struct {
	Time        string       `json:"time,omitempty"`
	Title       string       `json:"title"`
	Type        ActivityType `json:"type,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Description string       `json:"description,omitempty"`
	Location    string       `json:"location,omitempty"`
	Duration    string       `json:"duration,omitempty"`
	Cost        *float64     `json:"cost,omitempty"`
	Cuisine     string       `json:"cuisine,omitempty"` // meals only
	Tips        []string     `json:"tips,omitempty"`
}

// UnmarshalJSON accepts the planner's "average_cost" key as an alias of "cost".
func (a *Activity) UnmarshalJSON(data []byte) error {
	type activityAlias Activity
	aux := struct {
		*activityAlias
		AverageCost *float64 `json:"average_cost,omitempty"`
	}{activityAlias: (*activityAlias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if a.Cost == nil && aux.AverageCost != nil {
		a.Cost = aux.AverageCost
	}
	return nil
}

func (a *Activity) HasCoordinates() bool {
	return a.Coordinates != nil
}

// DayPlan is the ordered list of activities of one day. Activity order is the
// visiting sequence.
type DayPlan struct {
	DayNumber  int        `json:"day_number"`
	Title      string     `json:"title,omitempty"`
	Date       string     `json:"date,omitempty"`
	Activities []Activity `json:"activities"`
}

// Itinerary is the read-only input of the map engine.
type Itinerary struct {
	ID          uuid.UUID `json:"id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Destination string    `json:"destination"`
	Days        []DayPlan `json:"days"`
}

package types

import (
	"fmt"
	"slices"
)

// Coordinates is a WGS84 point resolved from a postcode.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Stop is a bus stop selected near the user's coordinates.
type Stop struct {
	ID             string `json:"id"`              // NaPTAN id, used for arrivals and journeys
	Label          string `json:"label"`           // stop indicator, e.g. "Stop K"
	Name           string `json:"name,omitempty"`  // common name, e.g. "Euston Square Station"
	DistanceMeters int    `json:"distance_meters"` // floored provider distance
}

// DisplayName is the human readable stop name used in console output.
func (s Stop) DisplayName() string {
	switch {
	case s.Name != "" && s.Label != "" && s.Name != s.Label:
		return fmt.Sprintf("%s (%s)", s.Name, s.Label)
	case s.Label != "":
		return s.Label
	case s.Name != "":
		return s.Name
	default:
		return s.ID
	}
}

// Arrival is a single predicted arrival at a stop.
type Arrival struct {
	Line        string `json:"line"`
	Destination string `json:"destination"`
	ETASeconds  int    `json:"eta_seconds"`
}

// Journey is a planned route from the user's coordinates to a stop.
type Journey struct {
	DurationMinutes int   `json:"duration_minutes"`
	Legs            []Leg `json:"legs"`
}

// Leg is one section of a journey, e.g. a walk or a bus ride.
type Leg struct {
	Instruction string `json:"instruction"`
	Steps       []Step `json:"steps,omitempty"`
}

// Step is a turn-by-turn direction within a leg.
type Step struct {
	Heading     string `json:"heading"`
	Description string `json:"description"`
}

// Session is the state threaded through one interactive run. It is passed by
// value; stages derive new sessions instead of mutating the one they got.
type Session struct {
	Coordinates  Coordinates `json:"coordinates"`
	RadiusMeters int         `json:"radius_meters,omitempty"`
	Stops        []Stop      `json:"stops,omitempty"`
}

// NewSession starts a session at resolved coordinates.
func NewSession(coords Coordinates) Session {
	return Session{Coordinates: coords}
}

// WithSearch returns a copy of the session carrying the radius used for the
// stop search and the stops it selected.
func (s Session) WithSearch(radiusMeters int, stops []Stop) Session {
	s.RadiusMeters = radiusMeters
	s.Stops = slices.Clone(stops)
	return s
}

package tfl

import (
	"strings"

	"busstop/pkg/types"
)

type stopPointsResponse struct {
	StopPoints []StopPoint `json:"stopPoints"`
}

// StopPoint is one entry of a StopPoint search.
type StopPoint struct {
	ID         string  `json:"id"`
	NaptanID   string  `json:"naptanId"`
	Indicator  string  `json:"indicator"`
	CommonName string  `json:"commonName"`
	Distance   float64 `json:"distance"` // meters from the search point
}

// StopID prefers the NaPTAN id and falls back to the generic id.
func (s StopPoint) StopID() string {
	if s.NaptanID != "" {
		return s.NaptanID
	}
	return s.ID
}

// Label is the short stop indicator, falling back to the common name.
func (s StopPoint) Label() string {
	if s.Indicator != "" {
		return s.Indicator
	}
	return s.CommonName
}

// arrivalsResponse wraps the top-level array TfL returns; httpjson exposes
// it under httpjson.ItemsKey.
type arrivalsResponse struct {
	Items []ArrivalPrediction `json:"items"`
}

// ArrivalPrediction is one predicted vehicle arrival at a stop.
type ArrivalPrediction struct {
	ID              string `json:"id,omitempty"`
	NaptanID        string `json:"naptanId,omitempty"`
	LineName        string `json:"lineName"`
	DestinationName string `json:"destinationName"`
	TimeToStation   int    `json:"timeToStation"` // seconds
	ExpectedArrival string `json:"expectedArrival,omitempty"`
}

// ToArrival converts the prediction to the domain type.
func (a ArrivalPrediction) ToArrival() types.Arrival {
	eta := a.TimeToStation
	if eta < 0 {
		eta = 0
	}
	return types.Arrival{
		Line:        a.LineName,
		Destination: a.DestinationName,
		ETASeconds:  eta,
	}
}

// JourneyResponse is the subset of a JourneyResults payload busstop prints.
type JourneyResponse struct {
	Journeys []Journey `json:"journeys"`
}

type Journey struct {
	Duration int   `json:"duration"` // minutes
	Legs     []Leg `json:"legs"`
}

type Leg struct {
	Instruction Instruction `json:"instruction"`
}

type Instruction struct {
	Detailed string `json:"detailed"`
	Steps    []Step `json:"steps"`
}

type Step struct {
	DescriptionHeading string `json:"descriptionHeading"`
	Description        string `json:"description"`
}

// First returns the provider's first journey as a domain Journey, or false
// when the response carries none.
func (r *JourneyResponse) First() (types.Journey, bool) {
	if r == nil || len(r.Journeys) == 0 {
		return types.Journey{}, false
	}
	j := r.Journeys[0]
	out := types.Journey{
		DurationMinutes: j.Duration,
		Legs:            make([]types.Leg, 0, len(j.Legs)),
	}
	for _, leg := range j.Legs {
		l := types.Leg{Instruction: leg.Instruction.Detailed}
		for _, step := range leg.Instruction.Steps {
			l.Steps = append(l.Steps, types.Step{
				Heading:     strings.TrimSpace(step.DescriptionHeading),
				Description: step.Description,
			})
		}
		out.Legs = append(out.Legs, l)
	}
	return out, true
}

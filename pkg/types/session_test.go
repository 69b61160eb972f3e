package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionWithSearch_DoesNotAlias(t *testing.T) {
	stops := []Stop{{ID: "490008660N", Label: "N", DistanceMeters: 42}}
	base := NewSession(Coordinates{Latitude: 51.5, Longitude: -0.13})

	derived := base.WithSearch(300, stops)
	stops[0].ID = "mutated"

	assert.Empty(t, base.Stops, "original session must stay untouched")
	assert.Equal(t, 0, base.RadiusMeters)
	assert.Equal(t, 300, derived.RadiusMeters)
	assert.Equal(t, "490008660N", derived.Stops[0].ID)
	assert.Equal(t, base.Coordinates, derived.Coordinates)
}

func TestStopDisplayName(t *testing.T) {
	tests := []struct {
		name string
		stop Stop
		want string
	}{
		{"name and label", Stop{ID: "1", Name: "Euston Square", Label: "Stop K"}, "Euston Square (Stop K)"},
		{"label only", Stop{ID: "1", Label: "Stop K"}, "Stop K"},
		{"name only", Stop{ID: "1", Name: "Euston Square"}, "Euston Square"},
		{"same name and label", Stop{ID: "1", Name: "Stop K", Label: "Stop K"}, "Stop K"},
		{"id fallback", Stop{ID: "490000001A"}, "490000001A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stop.DisplayName())
		})
	}
}

func TestCoordinatesString(t *testing.T) {
	c := Coordinates{Latitude: 51.4988, Longitude: -0.1749}
	assert.Equal(t, "51.498800,-0.174900", c.String())
}

package stops

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"busstop/pkg/config"
	"busstop/pkg/console"
	"busstop/pkg/input"
	"busstop/pkg/logging"
	"busstop/pkg/tfl"
	"busstop/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	points  []tfl.StopPoint
	err     error
	radii   []int
	queried []types.Coordinates
}

func (s *stubSearcher) NearbyStops(_ context.Context, coords types.Coordinates, radius int) ([]tfl.StopPoint, error) {
	s.radii = append(s.radii, radius)
	s.queried = append(s.queried, coords)
	return s.points, s.err
}

func newFinder(searcher Searcher, lines ...string) *Finder {
	reader := input.New(console.NewScript(lines...), &bytes.Buffer{}, config.Default().Search, input.Unbounded)
	return NewFinder(reader, searcher, logging.Discard())
}

func TestNearest(t *testing.T) {
	tests := []struct {
		name   string
		points []tfl.StopPoint
		n      int
		want   []string
	}{
		{
			name: "sorted by distance and truncated",
			points: []tfl.StopPoint{
				{NaptanID: "C", Distance: 310.2},
				{NaptanID: "A", Distance: 45.9},
				{NaptanID: "B", Distance: 120},
			},
			n:    2,
			want: []string{"A", "B"},
		},
		{
			name: "ties keep provider order",
			points: []tfl.StopPoint{
				{NaptanID: "X", Distance: 100},
				{NaptanID: "Y", Distance: 100},
				{NaptanID: "Z", Distance: 50},
			},
			n:    3,
			want: []string{"Z", "X", "Y"},
		},
		{
			name: "duplicates dropped before truncation",
			points: []tfl.StopPoint{
				{NaptanID: "A", Distance: 10},
				{NaptanID: "A", Distance: 12},
				{NaptanID: "B", Distance: 30},
			},
			n:    2,
			want: []string{"A", "B"},
		},
		{
			name:   "fewer than n",
			points: []tfl.StopPoint{{ID: "only", Distance: 5}},
			n:      2,
			want:   []string{"only"},
		},
		{
			name: "empty",
			n:    2,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Nearest(tt.points, tt.n)

			ids := make([]string, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestNearest_FloorsDistanceAndMapsLabels(t *testing.T) {
	got := Nearest([]tfl.StopPoint{
		{NaptanID: "490008660N", Indicator: "Stop N", CommonName: "Euston Square", Distance: 99.99},
	}, 1)

	require.Len(t, got, 1)
	assert.Equal(t, types.Stop{ID: "490008660N", Label: "Stop N", Name: "Euston Square", DistanceMeters: 99}, got[0])
}

func TestNearest_DoesNotReorderInput(t *testing.T) {
	points := []tfl.StopPoint{{NaptanID: "B", Distance: 2}, {NaptanID: "A", Distance: 1}}
	_ = Nearest(points, 2)
	assert.Equal(t, "B", points[0].NaptanID)
}

func TestFindNearestStops(t *testing.T) {
	searcher := &stubSearcher{points: []tfl.StopPoint{
		{NaptanID: "490000077F", Indicator: "Stop F", Distance: 210.4},
		{NaptanID: "490008660N", Indicator: "Stop N", Distance: 88.1},
		{NaptanID: "490000077E", Indicator: "Stop E", Distance: 230},
	}}
	f := newFinder(searcher, "5000", "500")
	coords := types.Coordinates{Latitude: 51.52, Longitude: -0.13}

	radius, stops, err := f.FindNearestStops(context.Background(), coords, 2)
	require.NoError(t, err)

	assert.Equal(t, 500, radius)
	assert.Equal(t, []int{500}, searcher.radii, "only the valid radius is queried")
	assert.Equal(t, []types.Coordinates{coords}, searcher.queried)
	require.Len(t, stops, 2)
	assert.Equal(t, "490008660N", stops[0].ID)
	assert.Equal(t, 88, stops[0].DistanceMeters)
	assert.Equal(t, "490000077F", stops[1].ID)
}

func TestFindNearestStops_Idempotent(t *testing.T) {
	searcher := &stubSearcher{points: []tfl.StopPoint{
		{NaptanID: "B", Distance: 20},
		{NaptanID: "A", Distance: 10},
	}}
	f := newFinder(searcher, "300", "300")

	_, first, err := f.FindNearestStops(context.Background(), types.Coordinates{}, 2)
	require.NoError(t, err)
	_, second, err := f.FindNearestStops(context.Background(), types.Coordinates{}, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFindNearestStops_NoStops(t *testing.T) {
	f := newFinder(&stubSearcher{}, "100")

	radius, stops, err := f.FindNearestStops(context.Background(), types.Coordinates{}, 2)
	assert.ErrorIs(t, err, ErrNoStopsFound)
	assert.Equal(t, 100, radius)
	assert.Empty(t, stops)
}

func TestFindNearestStops_SearchFailure(t *testing.T) {
	f := newFinder(&stubSearcher{err: errors.New("status 503")}, "250")

	_, _, err := f.FindNearestStops(context.Background(), types.Coordinates{}, 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoStopsFound)
	var serr *SearchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 250, serr.Radius)
	assert.Contains(t, err.Error(), "find stops within 250m: status 503")
}

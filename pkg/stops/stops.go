// Package stops selects the bus stops nearest to a point.
package stops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"busstop/pkg/metrics"
	busotel "busstop/pkg/otel"
	"busstop/pkg/tfl"
	"busstop/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoStopsFound ends a session: nothing within the chosen radius.
var ErrNoStopsFound = errors.New("no bus stops found within the search radius")

// SearchError is a nearby-stops query that failed upstream.
type SearchError struct {
	Radius int
	Err    error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("find stops within %dm: %v", e.Radius, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// RadiusReader supplies a validated search radius.
type RadiusReader interface {
	ReadRadius(ctx context.Context) (int, error)
}

// Searcher lists stop points around a point.
type Searcher interface {
	NearbyStops(ctx context.Context, coords types.Coordinates, radius int) ([]tfl.StopPoint, error)
}

type Finder struct {
	radius   RadiusReader
	searcher Searcher
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewFinder(radius RadiusReader, searcher Searcher, logger *slog.Logger) *Finder {
	return &Finder{
		radius:   radius,
		searcher: searcher,
		logger:   logger,
		tracer:   otel.Tracer("stops"),
	}
}

// FindNearestStops asks for a radius and returns it together with at most n
// distinct stops within it, nearest first. An empty result is ErrNoStopsFound.
func (f *Finder) FindNearestStops(ctx context.Context, coords types.Coordinates, n int) (int, []types.Stop, error) {
	radius, err := f.radius.ReadRadius(ctx)
	if err != nil {
		return 0, nil, err
	}

	ctx, span := f.tracer.Start(ctx, "stops.find_nearest",
		trace.WithAttributes(
			attribute.String("coordinates", coords.String()),
			attribute.Int("radius_meters", radius),
			attribute.Int("limit", n),
		),
	)
	defer span.End()

	points, err := f.searcher.NearbyStops(ctx, coords, radius)
	if err != nil {
		busotel.RecordError(span, err, busotel.ErrorTypeNetwork, true)
		metrics.RecordOutcome(ctx, metrics.StopSearchesTotal, "error")
		return radius, nil, &SearchError{Radius: radius, Err: err}
	}

	selected := Nearest(points, n)
	metrics.StopsSelected.Record(ctx, int64(len(selected)))
	span.SetAttributes(
		attribute.Int("candidates", len(points)),
		attribute.Int("selected", len(selected)),
	)

	if len(selected) == 0 {
		busotel.RecordError(span, ErrNoStopsFound, busotel.ErrorTypeNotFound, false)
		metrics.RecordOutcome(ctx, metrics.StopSearchesTotal, "empty")
		return radius, nil, ErrNoStopsFound
	}

	f.logger.Debug("stops selected", "radius", radius, "candidates", len(points), "selected", len(selected))
	busotel.SetSpanOk(span)
	metrics.RecordOutcome(ctx, metrics.StopSearchesTotal, "found")
	return radius, selected, nil
}

// Nearest orders points by distance, keeping provider order for ties, drops
// repeated stop ids and returns at most n stops.
func Nearest(points []tfl.StopPoint, n int) []types.Stop {
	if n <= 0 {
		return nil
	}
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b tfl.StopPoint) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]types.Stop, 0, min(n, len(sorted)))
	for _, p := range sorted {
		if len(out) >= n {
			break
		}
		id := p.StopID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, types.Stop{
			ID:             id,
			Label:          p.Label(),
			Name:           p.CommonName,
			DistanceMeters: int(math.Floor(p.Distance)),
		})
	}
	return out
}

// Package arrivals fetches live arrivals for several stops at once and prints
// the soonest few for each stop.
package arrivals

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"busstop/pkg/metrics"
	busotel "busstop/pkg/otel"
	"busstop/pkg/tfl"
	"busstop/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Source lists arrival predictions for a stop.
type Source interface {
	Arrivals(ctx context.Context, stopID string) ([]tfl.ArrivalPrediction, error)
}

// PerStopFetchError is the failure of one stop's fetch. It never affects
// the other stops of the batch.
type PerStopFetchError struct {
	Stop types.Stop
	Err  error
}

func (e *PerStopFetchError) Error() string {
	return fmt.Sprintf("arrivals for %s: %v", e.Stop.DisplayName(), e.Err)
}

func (e *PerStopFetchError) Unwrap() error { return e.Err }

// Result is one stop's outcome. Arrivals holds the soonest arrivals, already
// limited; Err is a *PerStopFetchError or nil.
type Result struct {
	Stop     types.Stop
	Arrivals []types.Arrival
	Err      error
}

type Aggregator struct {
	source      Source
	limit       int
	interleaved bool
	logger      *slog.Logger
	tracer      trace.Tracer

	mu  sync.Mutex
	out io.Writer
}

// NewAggregator prints up to limit arrivals per stop to out. With interleaved
// set each stop's block is printed as soon as it is ready, every line tagged
// with the stop label; otherwise blocks follow stop order.
func NewAggregator(source Source, out io.Writer, limit int, interleaved bool, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		source:      source,
		out:         out,
		limit:       limit,
		interleaved: interleaved,
		logger:      logger,
		tracer:      otel.Tracer("arrivals"),
	}
}

// FetchArrivalsForStops fetches every stop concurrently and returns once all
// fetches have settled. Results are in stop order.
func (a *Aggregator) FetchArrivalsForStops(ctx context.Context, stops []types.Stop) []Result {
	ctx, span := a.tracer.Start(ctx, "arrivals.fetch_all",
		trace.WithAttributes(
			attribute.Int("stops_count", len(stops)),
			attribute.Bool("interleaved", a.interleaved),
		),
	)
	defer span.End()

	start := time.Now()
	results := make([]Result, len(stops))

	var wg sync.WaitGroup
	for i, stop := range stops {
		wg.Add(1)
		go func(i int, stop types.Stop) {
			defer wg.Done()
			results[i] = a.fetchStop(ctx, stop)
			if a.interleaved {
				a.emit(results[i])
			}
		}(i, stop)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		if !a.interleaved {
			a.emit(r)
		}
	}

	span.SetAttributes(
		attribute.Int("successful_stops", len(stops)-failed),
		attribute.Int("failed_stops", failed),
		attribute.String("processing_duration", time.Since(start).String()),
	)
	return results
}

func (a *Aggregator) fetchStop(ctx context.Context, stop types.Stop) Result {
	ctx, span := a.tracer.Start(ctx, "arrivals.fetch_stop",
		trace.WithAttributes(attribute.String("stop_id", stop.ID)),
	)
	defer span.End()

	metrics.StopsInFlight.Add(ctx, 1)
	defer metrics.StopsInFlight.Add(ctx, -1)

	predictions, err := a.source.Arrivals(ctx, stop.ID)
	if err != nil {
		ferr := &PerStopFetchError{Stop: stop, Err: err}
		busotel.RecordError(span, ferr, busotel.ErrorTypeNetwork, true)
		metrics.RecordOutcome(ctx, metrics.ArrivalsFetchesTotal, "error")
		a.logger.Warn("arrivals fetch failed", "stop_id", stop.ID, "error", err)
		return Result{Stop: stop, Err: ferr}
	}

	converted := make([]types.Arrival, 0, len(predictions))
	for _, p := range predictions {
		converted = append(converted, p.ToArrival())
	}
	soonest := SelectSoonest(converted, a.limit)

	span.SetAttributes(
		attribute.Int("arrivals_received", len(predictions)),
		attribute.Int("arrivals_selected", len(soonest)),
	)
	busotel.SetSpanOk(span)
	if len(soonest) == 0 {
		metrics.RecordOutcome(ctx, metrics.ArrivalsFetchesTotal, "empty")
	} else {
		metrics.RecordOutcome(ctx, metrics.ArrivalsFetchesTotal, "success")
	}
	return Result{Stop: stop, Arrivals: soonest}
}

// emit writes a stop's block in a single write so blocks never mix.
func (a *Aggregator) emit(r Result) {
	var buf bytes.Buffer
	prefix := ""
	if a.interleaved {
		prefix = fmt.Sprintf("[%s] ", stopTag(r.Stop))
	}

	fmt.Fprintf(&buf, "%s%s, %dm away:\n", prefix, r.Stop.DisplayName(), r.Stop.DistanceMeters)
	switch {
	case r.Err != nil:
		fmt.Fprintf(&buf, "%s  arrivals unavailable right now\n", prefix)
	case len(r.Arrivals) == 0:
		fmt.Fprintf(&buf, "%s  no buses due\n", prefix)
	default:
		for _, arrival := range r.Arrivals {
			fmt.Fprintf(&buf, "%s  %s\n", prefix, FormatArrival(arrival))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = a.out.Write(buf.Bytes())
}

func stopTag(s types.Stop) string {
	if s.Label != "" {
		return s.Label
	}
	return s.ID
}

// SelectSoonest returns at most n arrivals ordered by time to station.
// Arrivals due at the same time keep their provider order.
func SelectSoonest(arrivals []types.Arrival, n int) []types.Arrival {
	if n <= 0 {
		return nil
	}
	sorted := slices.Clone(arrivals)
	slices.SortStableFunc(sorted, func(x, y types.Arrival) int {
		return x.ETASeconds - y.ETASeconds
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// FormatArrival renders "<line> to <destination> in <m> minutes, <s> seconds".
func FormatArrival(a types.Arrival) string {
	return fmt.Sprintf("%s to %s in %s", a.Line, a.Destination, FormatETA(a.ETASeconds))
}

// FormatETA renders seconds as "<m> minutes, <s> seconds".
func FormatETA(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d minutes, %d seconds", seconds/60, seconds%60)
}

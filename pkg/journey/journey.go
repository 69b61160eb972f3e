// Package journey prints walking and bus directions from the user's
// coordinates to a chosen stop.
package journey

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"busstop/pkg/metrics"
	busotel "busstop/pkg/otel"
	"busstop/pkg/tfl"
	"busstop/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NotAvailable is printed when no journey could be planned.
const NotAvailable = "directions not available"

// Source plans journeys to a stop.
type Source interface {
	Journey(ctx context.Context, from types.Coordinates, toStopID string) (*tfl.JourneyResponse, error)
}

type Planner struct {
	source Source
	out    io.Writer
	logger *slog.Logger
	tracer trace.Tracer
}

func NewPlanner(source Source, out io.Writer, logger *slog.Logger) *Planner {
	return &Planner{
		source: source,
		out:    out,
		logger: logger,
		tracer: otel.Tracer("journey"),
	}
}

// FetchJourney prints directions from coords to stop and reports whether a
// journey was found. Failures are logged and printed as NotAvailable; they
// never end the session.
func (p *Planner) FetchJourney(ctx context.Context, coords types.Coordinates, stop types.Stop) (types.Journey, bool) {
	ctx, span := p.tracer.Start(ctx, "journey.fetch",
		trace.WithAttributes(
			attribute.String("from", coords.String()),
			attribute.String("stop_id", stop.ID),
		),
	)
	defer span.End()

	resp, err := p.source.Journey(ctx, coords, stop.ID)
	if err != nil {
		busotel.RecordError(span, err, busotel.ErrorTypeNetwork, true)
		metrics.RecordOutcome(ctx, metrics.JourneyLookupsTotal, "error")
		p.logger.Warn("journey lookup failed", "stop_id", stop.ID, "error", err)
		_, _ = fmt.Fprintln(p.out, NotAvailable)
		return types.Journey{}, false
	}

	journey, ok := resp.First()
	if !ok {
		metrics.RecordOutcome(ctx, metrics.JourneyLookupsTotal, "empty")
		busotel.SetSpanOk(span)
		_, _ = fmt.Fprintln(p.out, NotAvailable)
		return types.Journey{}, false
	}

	span.SetAttributes(
		attribute.Int("duration_minutes", journey.DurationMinutes),
		attribute.Int("legs", len(journey.Legs)),
	)
	busotel.SetSpanOk(span)
	metrics.RecordOutcome(ctx, metrics.JourneyLookupsTotal, "found")

	_, _ = io.WriteString(p.out, Render(stop, journey))
	return journey, true
}

// Render formats a journey: total duration, then each numbered leg followed
// by its steps.
func Render(stop types.Stop, j types.Journey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Directions to %s, %d minutes:\n", stop.DisplayName(), j.DurationMinutes)
	for i, leg := range j.Legs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, leg.Instruction)
		for _, step := range leg.Steps {
			line := strings.TrimSpace(step.Heading + " " + step.Description)
			if line == "" {
				continue
			}
			fmt.Fprintf(&b, "   %s\n", line)
		}
	}
	return b.String()
}

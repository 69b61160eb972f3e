package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"busstop/pkg/arrivals"
	"busstop/pkg/metrics"
	busotel "busstop/pkg/otel"
	"busstop/pkg/stops"
	"busstop/pkg/types"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Farewell ends every session.
const Farewell = "Thanks for using busstop. Goodbye!"

// State is a step of the session.
type State int

const (
	Start State = iota
	Geocoded
	StopsFound
	ArrivalsReported
	JourneyOffered
	JourneyReported
	Skipped
	Done
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case Geocoded:
		return "geocoded"
	case StopsFound:
		return "stops_found"
	case ArrivalsReported:
		return "arrivals_reported"
	case JourneyOffered:
		return "journey_offered"
	case JourneyReported:
		return "journey_reported"
	case Skipped:
		return "skipped"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Geocoder interface {
	ResolvePostcode(ctx context.Context) (types.Coordinates, error)
}

type StopFinder interface {
	FindNearestStops(ctx context.Context, coords types.Coordinates, n int) (int, []types.Stop, error)
}

type ArrivalsReporter interface {
	FetchArrivalsForStops(ctx context.Context, stops []types.Stop) []arrivals.Result
}

type JourneyPlanner interface {
	FetchJourney(ctx context.Context, coords types.Coordinates, stop types.Stop) (types.Journey, bool)
}

// Asker collects the yes/no and stop choice answers of the journey offer.
type Asker interface {
	ReadYesNo(ctx context.Context, prompt string) (bool, error)
	ReadChoice(ctx context.Context, prompt string, n int) (int, error)
}

type Config struct {
	StopCount int
}

// Components are the stages a Pipeline sequences. Clock and Logger are
// optional.
type Components struct {
	Geocoder Geocoder
	Stops    StopFinder
	Arrivals ArrivalsReporter
	Journey  JourneyPlanner
	Asker    Asker
	Out      io.Writer
	Logger   *slog.Logger
	Clock    clockwork.Clock
}

type Pipeline struct {
	config Config
	c      Components
	tracer trace.Tracer
}

func New(config Config, c Components) (*Pipeline, error) {
	if config.StopCount < 1 {
		return nil, fmt.Errorf("stop count must be at least 1")
	}
	if c.Geocoder == nil || c.Stops == nil || c.Arrivals == nil || c.Journey == nil || c.Asker == nil {
		return nil, fmt.Errorf("all session stages are required")
	}
	if c.Out == nil {
		return nil, fmt.Errorf("an output writer is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}

	return &Pipeline{
		config: config,
		c:      c,
		tracer: otel.Tracer("pipeline"),
	}, nil
}

// Run drives one session from postcode entry to farewell and returns the last
// state reached. Outcomes the session explains to the user itself, such as
// finding no stops, are not returned as errors; the error is reserved for a
// failed input provider, an exhausted retry policy or cancellation. The
// farewell is printed on every path.
func (p *Pipeline) Run(ctx context.Context) (state State, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.session",
		trace.WithAttributes(attribute.Int("stop_count", p.config.StopCount)),
	)
	defer span.End()

	state = Start
	defer func() {
		p.println(Farewell)
		span.SetAttributes(attribute.String("final_state", state.String()))
		if err != nil {
			busotel.RecordError(span, err, busotel.ErrorTypeValidation, false)
		} else {
			busotel.SetSpanOk(span)
		}
		metrics.RecordSessionFinished(ctx, state.String())
		p.c.Logger.Debug("session finished", "state", state, "error", err)
	}()

	var coords types.Coordinates
	err = p.stage(ctx, "geocode", func(ctx context.Context) error {
		var stageErr error
		coords, stageErr = p.c.Geocoder.ResolvePostcode(ctx)
		return stageErr
	})
	if err != nil {
		return state, fmt.Errorf("resolve postcode: %w", err)
	}
	state = Geocoded
	session := types.NewSession(coords)

	var (
		radius   int
		selected []types.Stop
	)
	err = p.stage(ctx, "stops", func(ctx context.Context) error {
		var stageErr error
		radius, selected, stageErr = p.c.Stops.FindNearestStops(ctx, coords, p.config.StopCount)
		return stageErr
	})
	switch {
	case errors.Is(err, stops.ErrNoStopsFound):
		p.printf("No bus stops found within %dm of your postcode.\n", radius)
		return state, nil
	case err != nil && isSearchFailure(ctx, err):
		p.c.Logger.Warn("stop search failed", "error", err)
		p.printf("Could not search for bus stops: %v\n", err)
		return state, nil
	case err != nil:
		return state, fmt.Errorf("find stops: %w", err)
	}
	session = session.WithSearch(radius, selected)
	state = StopsFound

	_ = p.stage(ctx, "arrivals", func(ctx context.Context) error {
		p.c.Arrivals.FetchArrivalsForStops(ctx, session.Stops)
		return nil
	})
	state = ArrivalsReported
	p.c.Logger.Debug("arrivals reported", "stops", len(session.Stops), "radius", session.RadiusMeters)

	state = JourneyOffered
	want, err := p.c.Asker.ReadYesNo(ctx, "Would you like directions to a stop? (y/n) ")
	if err != nil {
		return state, fmt.Errorf("offer directions: %w", err)
	}
	if !want {
		state = Skipped
		return state, nil
	}

	choice, err := p.chooseStop(ctx, session.Stops)
	if err != nil {
		return state, fmt.Errorf("choose stop: %w", err)
	}

	_ = p.stage(ctx, "journey", func(ctx context.Context) error {
		p.c.Journey.FetchJourney(ctx, session.Coordinates, session.Stops[choice-1])
		return nil
	})
	state = JourneyReported
	return state, nil
}

func (p *Pipeline) chooseStop(ctx context.Context, candidates []types.Stop) (int, error) {
	if len(candidates) > 1 {
		for i, s := range candidates {
			p.printf("%d. %s\n", i+1, s.DisplayName())
		}
	}
	return p.c.Asker.ReadChoice(ctx, fmt.Sprintf("Which stop? (1-%d) ", len(candidates)), len(candidates))
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := p.c.Clock.Now()
	err := fn(ctx)
	metrics.RecordStage(ctx, name, p.c.Clock.Since(start))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// isSearchFailure tells an upstream failure of the stop search apart from a
// failure to read the radius.
func isSearchFailure(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var searchErr *stops.SearchError
	return errors.As(err, &searchErr)
}

func (p *Pipeline) println(a ...any) {
	_, _ = fmt.Fprintln(p.c.Out, a...)
}

func (p *Pipeline) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(p.c.Out, format, a...)
}

package metrics

import (
	"go.opentelemetry.io/otel/metric"
)

// HTTP Client Metrics (OTEL Semantic Conventions)
var (
	// HTTPClientRequestDuration measures upstream API request duration
	HTTPClientRequestDuration metric.Float64Histogram

	// HTTPClientResponseBodySize measures the size of upstream response bodies
	HTTPClientResponseBodySize metric.Int64Histogram
)

// Session Metrics
var (
	// SessionsTotal counts finished sessions by the last state reached
	SessionsTotal metric.Int64Counter

	// SessionStageDuration measures each pipeline stage
	SessionStageDuration metric.Float64Histogram

	// GeocodeAttemptsTotal counts postcode lookups by outcome
	GeocodeAttemptsTotal metric.Int64Counter

	// StopSearchesTotal counts nearby-stop searches by outcome
	StopSearchesTotal metric.Int64Counter

	// StopsSelected measures how many stops a search selected
	StopsSelected metric.Int64Histogram
)

// Arrivals Metrics
var (
	// ArrivalsFetchesTotal counts per-stop arrivals fetches by outcome
	ArrivalsFetchesTotal metric.Int64Counter

	// StopsInFlight tracks concurrent per-stop arrivals fetches
	StopsInFlight metric.Int64UpDownCounter
)

// JourneyLookupsTotal counts journey lookups by outcome
var JourneyLookupsTotal metric.Int64Counter

// initializeInstruments creates all metric instruments
func initializeInstruments() error {
	var err error

	HTTPClientRequestDuration, err = Meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of upstream API requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return err
	}

	HTTPClientResponseBodySize, err = Meter.Int64Histogram(
		"http.client.response.body.size",
		metric.WithDescription("Size of upstream response bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(256, 1024, 10240, 102400, 1048576),
	)
	if err != nil {
		return err
	}

	SessionsTotal, err = Meter.Int64Counter(
		"session.total",
		metric.WithDescription("Finished sessions by final state"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return err
	}

	SessionStageDuration, err = Meter.Float64Histogram(
		"session.stage.duration",
		metric.WithDescription("Duration per session stage, including time spent at prompts"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return err
	}

	GeocodeAttemptsTotal, err = Meter.Int64Counter(
		"geocode.attempts.total",
		metric.WithDescription("Postcode lookups by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	StopSearchesTotal, err = Meter.Int64Counter(
		"stops.searches.total",
		metric.WithDescription("Nearby-stop searches by outcome"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return err
	}

	StopsSelected, err = Meter.Int64Histogram(
		"stops.selected",
		metric.WithDescription("Stops selected per search"),
		metric.WithUnit("{stop}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 10),
	)
	if err != nil {
		return err
	}

	ArrivalsFetchesTotal, err = Meter.Int64Counter(
		"arrivals.fetches.total",
		metric.WithDescription("Per-stop arrivals fetches by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	StopsInFlight, err = Meter.Int64UpDownCounter(
		"arrivals.stops.in_flight",
		metric.WithDescription("Stops whose arrivals are currently being fetched"),
		metric.WithUnit("{stop}"),
	)
	if err != nil {
		return err
	}

	JourneyLookupsTotal, err = Meter.Int64Counter(
		"journey.lookups.total",
		metric.WithDescription("Journey lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	return nil
}

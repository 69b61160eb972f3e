// Package geocode resolves a postcode typed by the user into coordinates,
// asking again until the postcode is valid and inside the configured region.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"busstop/pkg/input"
	"busstop/pkg/metrics"
	busotel "busstop/pkg/otel"
	"busstop/pkg/postcodes"
	"busstop/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProviderError is a lookup the provider answered with an error status.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postcode lookup failed with status %d", e.Status)
	}
	return fmt.Sprintf("postcode lookup failed (%d): %s", e.Status, e.Message)
}

// RegionMismatchError is a valid postcode outside the supported region.
type RegionMismatchError struct {
	Region string
	Want   string
}

func (e *RegionMismatchError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("postcode has no region, only %s postcodes are supported", e.Want)
	}
	return fmt.Sprintf("postcode is in %s, only %s postcodes are supported", e.Region, e.Want)
}

// PostcodeReader supplies normalized postcodes.
type PostcodeReader interface {
	ReadPostcode(ctx context.Context) (string, error)
}

// Lookuper fetches postcode details.
type Lookuper interface {
	Lookup(ctx context.Context, postcode string) (*postcodes.Response, error)
}

type Resolver struct {
	reader PostcodeReader
	lookup Lookuper
	region string
	retry  input.RetryPolicy
	out    io.Writer
	logger *slog.Logger
	tracer trace.Tracer
}

func NewResolver(reader PostcodeReader, lookup Lookuper, region string, retry input.RetryPolicy, out io.Writer, logger *slog.Logger) *Resolver {
	return &Resolver{
		reader: reader,
		lookup: lookup,
		region: region,
		retry:  retry,
		out:    out,
		logger: logger,
		tracer: otel.Tracer("geocode"),
	}
}

// ResolvePostcode asks for postcodes until one resolves inside the region.
// Every rejected attempt is explained in one line on out. Only a failing
// reader, a cancelled context or an exhausted retry policy end the loop early.
func (r *Resolver) ResolvePostcode(ctx context.Context) (types.Coordinates, error) {
	for attempt := 1; r.retry.Allow(attempt); attempt++ {
		postcode, err := r.reader.ReadPostcode(ctx)
		if err != nil {
			return types.Coordinates{}, err
		}

		coords, err := r.resolve(ctx, postcode)
		if err == nil {
			return coords, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Coordinates{}, ctxErr
		}

		r.logger.Info("postcode rejected", "postcode", postcode, "attempt", attempt, "error", err)
		_, _ = fmt.Fprintln(r.out, err)
	}
	return types.Coordinates{}, input.ErrAttemptsExhausted
}

func (r *Resolver) resolve(ctx context.Context, postcode string) (types.Coordinates, error) {
	ctx, span := r.tracer.Start(ctx, "geocode.resolve",
		trace.WithAttributes(attribute.String("postcode", postcode)),
	)
	defer span.End()

	resp, err := r.lookup.Lookup(ctx, postcode)
	if err != nil {
		busotel.RecordError(span, err, busotel.ErrorTypeNetwork, true)
		metrics.RecordOutcome(ctx, metrics.GeocodeAttemptsTotal, "transport_error")
		return types.Coordinates{}, fmt.Errorf("could not look up postcode %s: %w", postcode, err)
	}

	coords, err := r.validate(resp)
	if err != nil {
		var mismatch *RegionMismatchError
		if errors.As(err, &mismatch) {
			busotel.RecordError(span, err, busotel.ErrorTypeValidation, false)
			metrics.RecordOutcome(ctx, metrics.GeocodeAttemptsTotal, "region_mismatch")
		} else {
			busotel.RecordError(span, err, busotel.ErrorTypeProvider, false)
			metrics.RecordOutcome(ctx, metrics.GeocodeAttemptsTotal, "provider_error")
		}
		return types.Coordinates{}, err
	}

	span.SetAttributes(
		attribute.Float64("latitude", coords.Latitude),
		attribute.Float64("longitude", coords.Longitude),
	)
	busotel.SetSpanOk(span)
	metrics.RecordOutcome(ctx, metrics.GeocodeAttemptsTotal, "resolved")
	return coords, nil
}

func (r *Resolver) validate(resp *postcodes.Response) (types.Coordinates, error) {
	if resp.Status >= 300 {
		return types.Coordinates{}, &ProviderError{Status: resp.Status, Message: resp.Error}
	}
	if resp.Result == nil {
		return types.Coordinates{}, &ProviderError{Status: resp.Status, Message: "no result for postcode"}
	}
	if !strings.EqualFold(resp.Result.Region, r.region) {
		return types.Coordinates{}, &RegionMismatchError{Region: resp.Result.Region, Want: r.region}
	}
	return types.Coordinates{
		Latitude:  resp.Result.Latitude,
		Longitude: resp.Result.Longitude,
	}, nil
}

package geocode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"busstop/pkg/config"
	"busstop/pkg/console"
	"busstop/pkg/input"
	"busstop/pkg/logging"
	"busstop/pkg/postcodes"
	"busstop/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	responses map[string]*postcodes.Response
	errs      map[string]error
	calls     []string
}

func (s *stubLookup) Lookup(_ context.Context, postcode string) (*postcodes.Response, error) {
	s.calls = append(s.calls, postcode)
	if err, ok := s.errs[postcode]; ok {
		return nil, err
	}
	if resp, ok := s.responses[postcode]; ok {
		return resp, nil
	}
	return &postcodes.Response{Status: 404, Error: "Invalid postcode"}, nil
}

func found(region string, lat, lon float64) *postcodes.Response {
	return &postcodes.Response{
		Status: 200,
		Result: &postcodes.Result{Region: region, Latitude: lat, Longitude: lon},
	}
}

func newResolver(lookup Lookuper, retry input.RetryPolicy, lines ...string) (*Resolver, *bytes.Buffer) {
	out := &bytes.Buffer{}
	reader := input.New(console.NewScript(lines...), out, config.Default().Search, retry)
	return NewResolver(reader, lookup, "London", retry, out, logging.Discard()), out
}

func TestResolvePostcode_RetriesUntilInRegion(t *testing.T) {
	lookup := &stubLookup{responses: map[string]*postcodes.Response{
		"GU11AA": found("South East", 51.23, -0.57),
		"SW72AZ": found("London", 51.498749, -0.174986),
	}}
	r, out := newResolver(lookup, input.Unbounded, "gu1 1aa", "sw7 2az")

	coords, err := r.ResolvePostcode(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.Coordinates{Latitude: 51.498749, Longitude: -0.174986}, coords)
	assert.Equal(t, []string{"GU11AA", "SW72AZ"}, lookup.calls)
	assert.Equal(t, "postcode is in South East, only London postcodes are supported\n", out.String())
}

func TestResolvePostcode_RegionIsCaseInsensitive(t *testing.T) {
	lookup := &stubLookup{responses: map[string]*postcodes.Response{
		"NW12RT": found("LONDON", 51.52, -0.13),
	}}
	r, out := newResolver(lookup, input.Unbounded, "NW1 2RT")

	coords, err := r.ResolvePostcode(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 51.52, coords.Latitude, 1e-9)
	assert.Empty(t, out.String())
}

func TestResolvePostcode_ProviderErrorThenSuccess(t *testing.T) {
	lookup := &stubLookup{responses: map[string]*postcodes.Response{
		"NW12RT": found("London", 51.52, -0.13),
	}}
	r, out := newResolver(lookup, input.Unbounded, "NOPE", "NW12RT")

	_, err := r.ResolvePostcode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "postcode lookup failed (404): Invalid postcode\n", out.String())
}

func TestResolvePostcode_TransportFailureRetries(t *testing.T) {
	lookup := &stubLookup{
		responses: map[string]*postcodes.Response{"NW12RT": found("London", 51.52, -0.13)},
		errs:      map[string]error{"SW72AZ": errors.New("connection refused")},
	}
	r, out := newResolver(lookup, input.Unbounded, "SW72AZ", "NW12RT")

	_, err := r.ResolvePostcode(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "could not look up postcode SW72AZ: connection refused")
}

func TestResolvePostcode_AttemptsExhausted(t *testing.T) {
	lookup := &stubLookup{}
	r, _ := newResolver(lookup, input.RetryPolicy{MaxAttempts: 2}, "A1", "B2", "C3")

	_, err := r.ResolvePostcode(context.Background())
	assert.ErrorIs(t, err, input.ErrAttemptsExhausted)
	assert.Equal(t, []string{"A1", "B2"}, lookup.calls)
}

func TestResolvePostcode_ReaderFailure(t *testing.T) {
	r, _ := newResolver(&stubLookup{}, input.Unbounded)

	_, err := r.ResolvePostcode(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestValidate(t *testing.T) {
	r, _ := newResolver(&stubLookup{}, input.Unbounded)

	tests := []struct {
		name     string
		resp     *postcodes.Response
		provider bool
		mismatch bool
	}{
		{name: "error status", resp: &postcodes.Response{Status: 404, Error: "Invalid postcode"}, provider: true},
		{name: "missing result", resp: &postcodes.Response{Status: 200}, provider: true},
		{name: "null region", resp: found("", 55.95, -3.19), mismatch: true},
		{name: "in region", resp: found("London", 51.5, -0.1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.validate(tt.resp)

			var perr *ProviderError
			var merr *RegionMismatchError
			assert.Equal(t, tt.provider, errors.As(err, &perr))
			assert.Equal(t, tt.mismatch, errors.As(err, &merr))
			if !tt.provider && !tt.mismatch {
				assert.NoError(t, err)
			}
		})
	}
}

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// useManualReader points the package instruments at an in-memory reader for
// the duration of the test.
func useManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	prev := Meter
	Meter = provider.Meter(meterName)
	require.NoError(t, initializeInstruments())
	t.Cleanup(func() {
		Meter = prev
		_ = initializeInstruments()
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return nil
}

func TestInstrumentsUsableWithoutInit(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordOutcome(ctx, ArrivalsFetchesTotal, "success")
		RecordStage(ctx, "geocode", time.Second)
		StopsInFlight.Add(ctx, 1)
		StopsInFlight.Add(ctx, -1)
	})
	assert.False(t, IsEnabled())
}

func TestRecordOutcome(t *testing.T) {
	reader := useManualReader(t)
	ctx := context.Background()

	RecordOutcome(ctx, ArrivalsFetchesTotal, "success")
	RecordOutcome(ctx, ArrivalsFetchesTotal, "success")
	RecordOutcome(ctx, ArrivalsFetchesTotal, "error")

	sum, ok := collect(t, reader, "arrivals.fetches.total").(metricdata.Sum[int64])
	require.True(t, ok)

	byOutcome := map[string]int64{}
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), byOutcome["success"])
	assert.Equal(t, int64(1), byOutcome["error"])
}

func TestRecordSessionFinished(t *testing.T) {
	reader := useManualReader(t)

	RecordSessionFinished(context.Background(), "done")

	sum, ok := collect(t, reader, "session.total").(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	assert.Positive(t, lastSessionTimestamp.Load())
}

// Package httpjson issues HTTP GETs against JSON APIs and hands the decoded
// body back as an mxj.Map.
package httpjson

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"busstop/pkg/metrics"
	busotel "busstop/pkg/otel"

	"github.com/clbanning/mxj/v2"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ItemsKey holds the elements of a top-level JSON array body.
const ItemsKey = "items"

const userAgent = "busstop/1.0.0"

// Getter fetches a URL and returns its JSON body.
type Getter interface {
	GetJSON(ctx context.Context, rawURL string) (mxj.Map, error)
}

// TransportError reports a request that did not yield a usable JSON body:
// a network failure, a non-2xx status or a malformed payload. Body holds the
// decoded error payload when the upstream sent JSON with its error status.
type TransportError struct {
	URL        string
	StatusCode int
	Body       mxj.Map
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("GET %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrEmptyBody is returned (wrapped) when a 2xx response has no body.
var ErrEmptyBody = errors.New("empty response body")

// Client is the production Getter.
type Client struct {
	httpClient *http.Client
	tracer     trace.Tracer
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewClient creates a Client with OpenTelemetry instrumentation and the given
// per-request timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		tracer: otel.Tracer("httpjson-client"),
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
}

func (c *Client) GetJSON(ctx context.Context, rawURL string) (mxj.Map, error) {
	safeURL := RedactURL(rawURL)

	ctx, span := c.tracer.Start(ctx, "httpjson.get",
		trace.WithAttributes(
			attribute.String("http.url", safeURL),
			attribute.String("http.method", http.MethodGet),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		busotel.RecordError(span, err, busotel.ErrorTypeValidation, false)
		return nil, &TransportError{URL: safeURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		busotel.RecordError(span, err, busotel.ErrorTypeNetwork, true)
		c.logger.Debug("request failed", "url", safeURL, "error", err)
		return nil, &TransportError{URL: safeURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := c.clock.Since(start)

	host := req.URL.Host
	metrics.HTTPClientRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("server.address", host),
		attribute.Int("http.response.status_code", resp.StatusCode),
	))
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("response.size_bytes", len(body)),
	)
	c.logger.Debug("request complete", "url", safeURL, "status", resp.StatusCode, "duration", elapsed)

	if err != nil {
		busotel.RecordError(span, err, busotel.ErrorTypeNetwork, true)
		return nil, &TransportError{URL: safeURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}
	metrics.HTTPClientResponseBodySize.Record(ctx, int64(len(body)), metric.WithAttributes(
		attribute.String("server.address", host),
	))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := &TransportError{URL: safeURL, StatusCode: resp.StatusCode}
		// Error payloads are best effort; a non-JSON error page just leaves Body nil.
		if m, decodeErr := Decode(body); decodeErr == nil {
			terr.Body = m
		}
		busotel.RecordError(span, terr, busotel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return nil, terr
	}

	m, err := Decode(body)
	if err != nil {
		busotel.RecordError(span, err, busotel.ErrorTypeParse, false)
		return nil, &TransportError{URL: safeURL, StatusCode: resp.StatusCode, Err: err}
	}

	busotel.SetSpanOk(span)
	return m, nil
}

// Decode parses a JSON body into an mxj.Map. A top-level array is exposed
// under ItemsKey.
func Decode(body []byte) (mxj.Map, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyBody
	}
	if trimmed[0] == '[' {
		wrapped := make([]byte, 0, len(trimmed)+len(ItemsKey)+5)
		wrapped = append(wrapped, `{"`+ItemsKey+`":`...)
		wrapped = append(wrapped, trimmed...)
		wrapped = append(wrapped, '}')
		trimmed = wrapped
	}
	m, err := mxj.NewMapJson(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return m, nil
}

// RedactURL hides credentials carried in query parameters.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, key := range []string{"app_key", "api_key"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

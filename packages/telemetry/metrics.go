package telemetry

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/abdul-hamid-achik/hitupload/packages/http"
)

// Instrument names.
const (
	MetricRequests        = "hitupload.requests"
	MetricRequestDuration = "hitupload.request.duration"
	MetricRequestBytes    = "hitupload.request.bytes"
	MetricRequestsActive  = "hitupload.requests.active"
)

// Outcome attribute values.
const (
	OutcomeSuccess     = "success"      // 2xx or an unfollowed 3xx
	OutcomeClientError = "client_error" // 4xx
	OutcomeServerError = "server_error" // 5xx
	OutcomeError       = "error"        // no response
)

// OutcomeFor classifies resp; nil means no response arrived.
func OutcomeFor(resp *http.Response) string {
	switch {
	case resp == nil:
		return OutcomeError
	case resp.IsClientError():
		return OutcomeClientError
	case resp.IsServerError():
		return OutcomeServerError
	case resp.IsSuccess(), resp.IsRedirect():
		return OutcomeSuccess
	default:
		return OutcomeError
	}
}

// Metrics holds the request instruments.
type Metrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	bytes    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewMetrics creates the request instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter(MetricRequests,
		metric.WithDescription("Upload requests attempted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequests, err)
	}

	duration, err := meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Time from first byte sent to full response read"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRequestDuration, err)
	}

	bytes, err := meter.Int64Counter(MetricRequestBytes,
		metric.WithDescription("Multipart body bytes sent"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequestBytes, err)
	}

	inFlight, err := meter.Int64UpDownCounter(MetricRequestsActive,
		metric.WithDescription("Upload requests currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequestsActive, err)
	}

	return &Metrics{requests: requests, duration: duration, bytes: bytes, inFlight: inFlight}, nil
}

// Start marks an upload as in flight.
func (m *Metrics) Start(ctx context.Context) {
	m.inFlight.Add(ctx, 1)
}

// End records a finished request. resp is nil when no response arrived.
func (m *Metrics) End(ctx context.Context, method string, resp *http.Response) {
	m.inFlight.Add(ctx, -1)

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("outcome", OutcomeFor(resp)),
	}
	if resp == nil {
		m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}

	attrs = append(attrs, attribute.String("status", strconv.Itoa(resp.StatusCode)))
	set := metric.WithAttributes(attrs...)
	m.requests.Add(ctx, 1, set)
	m.duration.Record(ctx, resp.Duration.Seconds(), set)
	if resp.BytesSent > 0 {
		m.bytes.Add(ctx, resp.BytesSent, metric.WithAttributes(attribute.String("method", method)))
	}
}

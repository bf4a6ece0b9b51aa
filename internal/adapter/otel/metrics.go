package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "modelgate"

// Metrics holds all gateway metric instruments.
type Metrics struct {
	Requests         metric.Int64Counter
	RequestsFailed   metric.Int64Counter
	StreamDeltas     metric.Int64Counter
	MalformedFrames  metric.Int64Counter
	UpstreamDuration metric.Float64Histogram
	FirstDelta       metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Requests, err = meter.Int64Counter("modelgate.requests",
		metric.WithDescription("Chat completion requests dispatched to a backend"))
	if err != nil {
		return nil, err
	}

	m.RequestsFailed, err = meter.Int64Counter("modelgate.requests.failed",
		metric.WithDescription("Chat completion requests that ended with a backend error"))
	if err != nil {
		return nil, err
	}

	m.StreamDeltas, err = meter.Int64Counter("modelgate.stream.deltas",
		metric.WithDescription("Delta frames relayed to clients"))
	if err != nil {
		return nil, err
	}

	m.MalformedFrames, err = meter.Int64Counter("modelgate.upstream.malformed_frames",
		metric.WithDescription("Backend stream lines skipped because they could not be decoded"))
	if err != nil {
		return nil, err
	}

	m.UpstreamDuration, err = meter.Float64Histogram("modelgate.upstream.duration_seconds",
		metric.WithDescription("Time from backend open to end of stream"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.FirstDelta, err = meter.Float64Histogram("modelgate.stream.first_delta_seconds",
		metric.WithDescription("Time from backend open to the first relayed delta"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

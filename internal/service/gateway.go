package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/modelgate/internal/adapter/otel"
	"github.com/Strob0t/modelgate/internal/config"
	"github.com/Strob0t/modelgate/internal/domain"
	"github.com/Strob0t/modelgate/internal/domain/backend"
	"github.com/Strob0t/modelgate/internal/domain/chat"
	"github.com/Strob0t/modelgate/internal/port/upstream"
	"github.com/Strob0t/modelgate/internal/resilience"
)

// Gateway routes completion requests to backends and relays their replies.
// Apart from the optional breakers it holds no mutable state, so one
// instance serves all requests concurrently.
type Gateway struct {
	registry       *Registry
	clients        map[backend.Protocol]upstream.Client
	breakers       map[string]*resilience.Breaker
	metrics        *cfotel.Metrics
	requestTimeout time.Duration
	idleTimeout    time.Duration
	now            func() time.Time
}

// NewGateway creates a Gateway. clients must hold one client per protocol
// the registry can resolve to.
func NewGateway(reg *Registry, clients map[backend.Protocol]upstream.Client, cfg config.Upstream) *Gateway {
	return &Gateway{
		registry:       reg,
		clients:        clients,
		requestTimeout: cfg.RequestTimeout,
		idleTimeout:    cfg.IdleTimeout,
		now:            time.Now,
	}
}

// SetMetrics attaches OpenTelemetry instruments.
func (g *Gateway) SetMetrics(m *cfotel.Metrics) {
	g.metrics = m
}

// EnableBreakers guards every backend with its own circuit breaker.
// Must be called before the gateway starts serving.
func (g *Gateway) EnableBreakers(maxFailures int, timeout time.Duration) {
	g.breakers = make(map[string]*resilience.Breaker)
	g.breakers[g.registry.Local().Name] = resilience.NewBreaker(maxFailures, timeout)
	for _, a := range g.registry.Agents() {
		g.breakers[a.Name] = resilience.NewBreaker(maxFailures, timeout)
	}
}

// BreakerState reports the breaker state of the named backend.
// ok is false when breakers are disabled.
func (g *Gateway) BreakerState(name string) (resilience.State, bool) {
	b, ok := g.breakers[name]
	if !ok {
		return "", false
	}
	return b.State(), true
}

// Complete runs a completion to the end and returns the full reply.
// The whole round trip is bounded by the configured request timeout.
func (g *Gateway) Complete(ctx context.Context, req *chat.CompletionRequest) (*chat.CompletionResponse, error) {
	d := g.registry.Resolve(req.Model)
	ctx, span := cfotel.StartCompletionSpan(ctx, req.Model, d.Name, false)
	defer span.End()

	ctx, cancel := context.WithTimeoutCause(ctx, g.requestTimeout, domain.ErrUpstreamTimeout)
	defer cancel()

	start := g.now()
	sink := &textSink{}
	_, err := g.run(ctx, d, req.Messages, sink, nil)
	g.record(ctx, d, false, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return chat.NewCompletionResponse(newCompletionID(), req.Model, sink.String(), g.now()), nil
}

// Stream relays a completion to sink as it is generated. The sentinel is
// always written unless the client is already gone, so a failed backend
// shows up as a short but well-terminated stream. The returned error is
// informational; nothing more can be sent to the client.
func (g *Gateway) Stream(ctx context.Context, req *chat.CompletionRequest, sink Sink) error {
	d := g.registry.Resolve(req.Model)
	ctx, span := cfotel.StartCompletionSpan(ctx, req.Model, d.Name, true)
	defer span.End()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	watchdog := time.AfterFunc(g.idleTimeout, func() { cancel(domain.ErrUpstreamTimeout) })
	defer watchdog.Stop()

	start := g.now()
	n, err := g.run(ctx, d, req.Messages, sink, watchdog)
	g.record(ctx, d, true, start, err)

	if !errors.Is(err, domain.ErrClientDisconnected) {
		if doneErr := sink.WriteDone(); doneErr != nil && err == nil {
			err = fmt.Errorf("%w: %w", domain.ErrClientDisconnected, doneErr)
		}
	}

	switch {
	case err == nil:
		slog.DebugContext(ctx, "stream finished", "backend", d.Name, "model", d.Model, "deltas", n)
	case errors.Is(err, domain.ErrClientDisconnected):
		slog.DebugContext(ctx, "client went away mid-stream", "backend", d.Name, "deltas", n)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "stream truncated", "backend", d.Name, "model", d.Model, "deltas", n, "error", err)
	}
	return err
}

// run opens the backend and relays its stream into sink. When watchdog is
// set it is re-armed on every upstream read and paused while sink writes.
func (g *Gateway) run(ctx context.Context, d backend.Descriptor, messages []chat.Message, sink Sink, watchdog *time.Timer) (int, error) {
	client, ok := g.clients[d.Protocol]
	if !ok {
		return 0, fmt.Errorf("%w: no client for protocol %s", domain.ErrBackendUnreachable, d.Protocol)
	}

	body, err := g.open(ctx, client, d, messages)
	if err != nil {
		return 0, classify(ctx, err)
	}
	defer func() { _ = body.Close() }()

	var r io.Reader = body
	if watchdog != nil {
		watchdog.Reset(g.idleTimeout)
		r = &idleTimeoutReader{r: body, timer: watchdog, d: g.idleTimeout}
	}

	start := g.now()
	first := true
	emit := func(c chat.StreamChunk) error {
		if first {
			first = false
			if g.metrics != nil {
				g.metrics.FirstDelta.Record(ctx, g.now().Sub(start).Seconds(), backendAttrs(d))
			}
		}
		// Time spent waiting on a slow client is not backend silence.
		if watchdog != nil {
			watchdog.Stop()
		}
		if err := sink.WriteDelta(c); err != nil {
			return err
		}
		if watchdog != nil {
			watchdog.Reset(g.idleTimeout)
		}
		return nil
	}
	onMalformed := func(err error) {
		slog.DebugContext(ctx, "skipping malformed upstream frame", "backend", d.Name, "error", err)
		if g.metrics != nil {
			g.metrics.MalformedFrames.Add(ctx, 1, backendAttrs(d))
		}
	}

	n, err := relay(r, client.Decode, emit, onMalformed)
	if g.metrics != nil && n > 0 {
		g.metrics.StreamDeltas.Add(ctx, int64(n), backendAttrs(d))
	}
	if err != nil && !errors.Is(err, domain.ErrClientDisconnected) {
		err = classify(ctx, err)
	}
	return n, err
}

// open calls client.Open through the backend's breaker, if any. Caller
// cancellations are not counted as backend failures.
func (g *Gateway) open(ctx context.Context, client upstream.Client, d backend.Descriptor, messages []chat.Message) (io.ReadCloser, error) {
	b := g.breakers[d.Name]
	if b == nil {
		return client.Open(ctx, d, messages)
	}

	var body io.ReadCloser
	var openErr error
	err := b.Execute(func() error {
		body, openErr = client.Open(ctx, d, messages)
		if openErr != nil && !errors.Is(context.Cause(ctx), context.Canceled) {
			return openErr
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrBackendUnavailable, d.Name, err)
	}
	return body, openErr
}

// classify maps transport and context failures onto the domain taxonomy.
func classify(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, domain.ErrUpstreamTimeout):
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	case errors.Is(cause, context.Canceled):
		return fmt.Errorf("%w: %w", domain.ErrClientDisconnected, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}
	return err
}

func (g *Gateway) record(ctx context.Context, d backend.Descriptor, stream bool, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", d.Name),
		attribute.String("kind", string(d.Kind)),
		attribute.Bool("stream", stream),
	)
	g.metrics.Requests.Add(ctx, 1, attrs)
	g.metrics.UpstreamDuration.Record(ctx, g.now().Sub(start).Seconds(), attrs)
	if err != nil && !errors.Is(err, domain.ErrClientDisconnected) {
		g.metrics.RequestsFailed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", d.Name),
			attribute.String("reason", failureReason(err)),
		))
	}
}

func backendAttrs(d backend.Descriptor) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("backend", d.Name))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "circuit_open"
	case errors.Is(err, domain.ErrBackendUnreachable):
		return "unreachable"
	case errors.Is(err, upstream.ErrStreamAborted):
		return "aborted"
	default:
		return "read_error"
	}
}

// newCompletionID returns a time-ordered id in OpenAI's chatcmpl- form.
func newCompletionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "chatcmpl-" + uuid.NewString()
	}
	return "chatcmpl-" + id.String()
}

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	cfotel "github.com/Strob0t/modelgate/internal/adapter/otel"
	"github.com/Strob0t/modelgate/internal/config"
	"github.com/Strob0t/modelgate/internal/domain/backend"
	"github.com/Strob0t/modelgate/internal/port/cache"
	"github.com/Strob0t/modelgate/internal/port/upstream"
	"github.com/Strob0t/modelgate/internal/resilience"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusRunning   = "running"

	readinessCacheKey = "health:ready"
	maxParallelProbes = 8
)

// LivenessReport is the static body of GET /health.
type LivenessReport struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// ProbeResult is the outcome of probing one backend.
type ProbeResult struct {
	Name    string           `json:"name"`
	Kind    backend.Kind     `json:"kind"`
	Status  string           `json:"status"`
	Error   string           `json:"error,omitempty"`
	Latency string           `json:"latency"`
	Breaker resilience.State `json:"breaker,omitempty"`
}

// ReadinessReport is the body of GET /health/ready.
type ReadinessReport struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Services  []ProbeResult `json:"services"`
}

// Ready reports whether every backend answered its probe.
func (r *ReadinessReport) Ready() bool {
	return r.Status == StatusHealthy
}

// BreakerReporter exposes per-backend breaker state. Gateway implements it.
type BreakerReporter interface {
	BreakerState(name string) (resilience.State, bool)
}

// HealthService answers liveness and readiness checks.
type HealthService struct {
	registry *Registry
	clients  map[backend.Protocol]upstream.Client
	cache    cache.Cache
	breakers BreakerReporter
	timeout  time.Duration
	ttl      time.Duration
	now      func() time.Time
}

// NewHealthService creates a HealthService. c may be nil, in which case
// every readiness call probes the backends.
func NewHealthService(reg *Registry, clients map[backend.Protocol]upstream.Client, c cache.Cache, cfg config.Health) *HealthService {
	return &HealthService{
		registry: reg,
		clients:  clients,
		cache:    c,
		timeout:  cfg.ProbeTimeout,
		ttl:      cfg.ProbeTTL,
		now:      time.Now,
	}
}

// SetBreakerReporter adds breaker states to readiness reports.
func (s *HealthService) SetBreakerReporter(b BreakerReporter) {
	s.breakers = b
}

// Liveness returns the static liveness report. It never touches a backend.
func (s *HealthService) Liveness() LivenessReport {
	return LivenessReport{
		Status:    StatusHealthy,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Services: map[string]string{
			"gateway": StatusRunning,
			"ollama":  StatusRunning,
			"agents":  StatusRunning,
		},
	}
}

// Readiness probes every backend concurrently. Reports are cached for the
// configured TTL so frequent polling does not fan out to the backends.
func (s *HealthService) Readiness(ctx context.Context) *ReadinessReport {
	if rep, ok := s.cached(ctx); ok {
		return rep
	}

	targets := append([]backend.Descriptor{s.registry.Local()}, s.registry.Agents()...)
	results := make([]ProbeResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProbes)
	for i, d := range targets {
		g.Go(func() error {
			results[i] = s.probe(gctx, d)
			return nil
		})
	}
	_ = g.Wait()

	rep := &ReadinessReport{
		Status:    StatusHealthy,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Services:  results,
	}
	for _, r := range results {
		if r.Status != StatusHealthy {
			rep.Status = StatusUnhealthy
			break
		}
	}

	s.store(ctx, rep)
	return rep
}

func (s *HealthService) probe(ctx context.Context, d backend.Descriptor) ProbeResult {
	ctx, span := cfotel.StartProbeSpan(ctx, d.Name)
	defer span.End()

	res := ProbeResult{Name: d.Name, Kind: d.Kind, Status: StatusHealthy}
	if s.breakers != nil {
		if st, ok := s.breakers.BreakerState(d.Name); ok {
			res.Breaker = st
		}
	}

	client, ok := s.clients[d.Protocol]
	if !ok {
		res.Status = StatusUnhealthy
		res.Error = "no client for protocol " + string(d.Protocol)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	err := client.Probe(ctx, d)
	res.Latency = s.now().Sub(start).Round(time.Millisecond).String()
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		span.RecordError(err)
		slog.WarnContext(ctx, "backend probe failed", "backend", d.Name, "error", err)
	}
	return res
}

func (s *HealthService) cached(ctx context.Context) (*ReadinessReport, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, readinessCacheKey)
	if err != nil || !ok {
		return nil, false
	}
	var rep ReadinessReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, false
	}
	return &rep, true
}

func (s *HealthService) store(ctx context.Context, rep *ReadinessReport) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, readinessCacheKey, data, s.ttl); err != nil {
		slog.Debug("readiness cache write failed", "error", err)
	}
}

// Package config provides hierarchical configuration loading for modelgate.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the gateway.
type Config struct {
	Server    Server    `yaml:"server"`
	Ollama    Ollama    `yaml:"ollama"`
	Agents    []Agent   `yaml:"agents"`
	Upstream  Upstream  `yaml:"upstream"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Rate      Rate      `yaml:"rate"`
	Telemetry Telemetry `yaml:"telemetry"`
	Health    Health    `yaml:"health"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port            string        `yaml:"port"`
	CORSOrigin      string        `yaml:"cors_origin"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

// Ollama holds the local inference runtime configuration.
type Ollama struct {
	URL      string   `yaml:"url"`
	Models   []string `yaml:"models"`   // exact model ids served locally
	Families []string `yaml:"families"` // substring tokens routed locally
}

// Agent describes one specialized agent backend. Registration order matters:
// the first agent is the fallback for unknown models.
type Agent struct {
	Name    string  `yaml:"name"`
	Address string  `yaml:"address"` // host:port
	Models  []Model `yaml:"models"`
}

// Model is a cloud model id served by an agent.
type Model struct {
	ID       string `yaml:"id"`
	Provider string `yaml:"provider"`
}

// Upstream holds outbound backend connection settings.
type Upstream struct {
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	RequestTimeout      time.Duration `yaml:"request_timeout"` // non-streaming deadline
	IdleTimeout         time.Duration `yaml:"idle_timeout"`    // max gap between stream reads
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
	File    string `yaml:"file"` // optional rotated log file
}

// Breaker holds per-backend circuit breaker configuration.
type Breaker struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Telemetry holds OpenTelemetry exporter configuration.
type Telemetry struct {
	Exporter     string `yaml:"exporter"` // "none" | "stdout" | "otlp"
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	File         string `yaml:"file"` // stdout exporter target; empty means stdout
}

// Health holds readiness probe configuration.
type Health struct {
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	ProbeTTL      time.Duration `yaml:"probe_ttl"`
	CacheMaxBytes int64         `yaml:"cache_max_bytes"`
}

// Defaults returns a Config matching the stock local deployment: Ollama on
// 11434 and the codegen, review and bengali agents on 8003, 8004 and 8002.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:            "8001",
			CORSOrigin:      "*",
			MaxBodyBytes:    4 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Ollama: Ollama{
			URL:      "http://localhost:11434",
			Models:   []string{"codellama", "llama2", "mistral"},
			Families: []string{"codellama", "llama", "mistral"},
		},
		Agents: []Agent{
			{
				Name:    "codegen",
				Address: "localhost:8003",
				Models: []Model{
					{ID: "gpt-3.5-turbo", Provider: "openai"},
					{ID: "gpt-4", Provider: "openai"},
				},
			},
			{
				Name:    "review",
				Address: "localhost:8004",
				Models: []Model{
					{ID: "claude-3-sonnet", Provider: "anthropic"},
					{ID: "claude-3-opus", Provider: "anthropic"},
				},
			},
			{
				Name:    "bengali",
				Address: "localhost:8002",
			},
		},
		Upstream: Upstream{
			ConnectTimeout:      5 * time.Second,
			RequestTimeout:      30 * time.Second,
			IdleTimeout:         60 * time.Second,
			MaxIdleConnsPerHost: 16,
		},
		Logging: Logging{
			Level:   "info",
			Service: "modelgate",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 10,
			Burst:             100,
			CleanupInterval:   time.Minute,
			MaxIdleTime:       10 * time.Minute,
		},
		Telemetry: Telemetry{
			Exporter: "none",
		},
		Health: Health{
			ProbeTimeout:  2 * time.Second,
			ProbeTTL:      5 * time.Second,
			CacheMaxBytes: 1 << 20,
		},
	}
}

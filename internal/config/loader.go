package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "modelgate.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML path can be overridden with MODELGATE_CONFIG; a missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv("MODELGATE_CONFIG"); v != "" {
		path = v
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "GATEWAY_PORT")
	setString(&cfg.Server.CORSOrigin, "MODELGATE_CORS_ORIGIN")
	setInt64(&cfg.Server.MaxBodyBytes, "MODELGATE_MAX_BODY_BYTES")
	setDuration(&cfg.Server.ShutdownTimeout, "MODELGATE_SHUTDOWN_TIMEOUT")
	setBool(&cfg.Server.TrustProxy, "MODELGATE_TRUST_PROXY")

	setString(&cfg.Ollama.URL, "OLLAMA_HOST")
	setList(&cfg.Ollama.Models, "OLLAMA_MODELS")
	setList(&cfg.Ollama.Families, "OLLAMA_FAMILIES")

	for i := range cfg.Agents {
		setString(&cfg.Agents[i].Address, agentEnvKey(cfg.Agents[i].Name))
	}

	setDuration(&cfg.Upstream.ConnectTimeout, "MODELGATE_CONNECT_TIMEOUT")
	setDuration(&cfg.Upstream.RequestTimeout, "MODELGATE_REQUEST_TIMEOUT")
	setDuration(&cfg.Upstream.IdleTimeout, "MODELGATE_IDLE_TIMEOUT")
	setInt(&cfg.Upstream.MaxIdleConnsPerHost, "MODELGATE_MAX_IDLE_CONNS")

	setString(&cfg.Logging.Level, "MODELGATE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "MODELGATE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "MODELGATE_LOG_ASYNC")
	setString(&cfg.Logging.File, "MODELGATE_LOG_FILE")

	setBool(&cfg.Breaker.Enabled, "MODELGATE_BREAKER_ENABLED")
	setInt(&cfg.Breaker.MaxFailures, "MODELGATE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "MODELGATE_BREAKER_TIMEOUT")

	setBool(&cfg.Rate.Enabled, "MODELGATE_RATE_ENABLED")
	setFloat64(&cfg.Rate.RequestsPerSecond, "MODELGATE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "MODELGATE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "MODELGATE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "MODELGATE_RATE_MAX_IDLE_TIME")

	setString(&cfg.Telemetry.Exporter, "MODELGATE_OTEL_EXPORTER")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.File, "MODELGATE_OTEL_FILE")

	setDuration(&cfg.Health.ProbeTimeout, "MODELGATE_PROBE_TIMEOUT")
	setDuration(&cfg.Health.ProbeTTL, "MODELGATE_PROBE_TTL")
	setInt64(&cfg.Health.CacheMaxBytes, "MODELGATE_PROBE_CACHE_BYTES")
}

// agentEnvKey maps an agent name to its address override, e.g. "code-gen" -> AGENT_CODE_GEN_ADDR.
func agentEnvKey(name string) string {
	return "AGENT_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_ADDR"
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.MaxBodyBytes < 1 {
		return errors.New("server.max_body_bytes must be >= 1")
	}
	if _, err := url.ParseRequestURI(cfg.Ollama.URL); err != nil {
		return fmt.Errorf("ollama.url is invalid: %w", err)
	}
	if len(cfg.Agents) == 0 {
		return errors.New("at least one agent is required")
	}
	seen := make(map[string]bool, len(cfg.Agents))
	for i := range cfg.Agents {
		a := &cfg.Agents[i]
		if a.Name == "" {
			return fmt.Errorf("agents[%d].name is required", i)
		}
		if a.Address == "" {
			return fmt.Errorf("agents[%d].address is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
	}
	if cfg.Upstream.RequestTimeout <= 0 {
		return errors.New("upstream.request_timeout must be > 0")
	}
	if cfg.Upstream.IdleTimeout <= 0 {
		return errors.New("upstream.idle_timeout must be > 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Rate.RequestsPerSecond <= 0 {
		return errors.New("rate.requests_per_second must be > 0")
	}
	switch cfg.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry.exporter %q must be none, stdout or otlp", cfg.Telemetry.Exporter)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

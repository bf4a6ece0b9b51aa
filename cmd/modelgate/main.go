package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfhttp "github.com/Strob0t/modelgate/internal/adapter/http"
	cfotel "github.com/Strob0t/modelgate/internal/adapter/otel"
	"github.com/Strob0t/modelgate/internal/adapter/ristretto"
	"github.com/Strob0t/modelgate/internal/config"
	"github.com/Strob0t/modelgate/internal/logger"
	"github.com/Strob0t/modelgate/internal/middleware"
	"github.com/Strob0t/modelgate/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, path, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"file", path,
		"port", cfg.Server.Port,
		"ollama", cfg.Ollama.URL,
		"agents", len(cfg.Agents),
		"log_level", cfg.Logging.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := cfotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Backends ---
	transport := newTransport(cfg.Upstream)
	clients := newClients(transport)
	registry := service.NewRegistry(cfg.Ollama, cfg.Agents)

	gateway := service.NewGateway(registry, clients, cfg.Upstream)
	gateway.SetMetrics(metrics)
	if cfg.Breaker.Enabled {
		gateway.EnableBreakers(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		slog.Info("circuit breakers enabled", "max_failures", cfg.Breaker.MaxFailures, "timeout", cfg.Breaker.Timeout)
	}

	probeCache, err := ristretto.New(cfg.Health.CacheMaxBytes)
	if err != nil {
		return fmt.Errorf("probe cache: %w", err)
	}
	defer probeCache.Close()

	health := service.NewHealthService(registry, clients, probeCache, cfg.Health)
	health.SetBreakerReporter(gateway)

	proxy, err := cfhttp.NewAgentProxy(registry, transport)
	if err != nil {
		return fmt.Errorf("agent proxy: %w", err)
	}

	// --- HTTP ---
	handlers := &cfhttp.Handlers{
		Gateway:      gateway,
		Registry:     registry,
		Health:       health,
		Agents:       proxy,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}

	var limit func(http.Handler) http.Handler
	if cfg.Rate.Enabled {
		rl := middleware.NewRateLimiterFromConfig(cfg.Rate)
		go rl.Run(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
		limit = rl.Handler
		slog.Info("rate limiting enabled", "rps", cfg.Rate.RequestsPerSecond, "burst", cfg.Rate.Burst)
	}

	r := newRouter(cfg, handlers, limit)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streams run as long as the backend keeps producing; the upstream
		// idle timeout bounds them instead.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

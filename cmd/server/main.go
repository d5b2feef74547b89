package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/tts-gateway/internal/api"
	"github.com/lexiqai/tts-gateway/internal/config"
	"github.com/lexiqai/tts-gateway/internal/observability"
	"github.com/lexiqai/tts-gateway/internal/synth"
	"github.com/lexiqai/tts-gateway/internal/tts"
)

const healthRefreshInterval = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("grpc_port", cfg.GRPCPort).
		Bool("deepgram_enabled", cfg.DeepgramEnabled()).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("TTS Gateway starting")

	providers := []tts.Provider{
		tts.NewLegacyClient(cfg),
		tts.NewGenerativeClient(cfg),
	}
	if cfg.DeepgramEnabled() {
		providers = append(providers, tts.NewDeepgramClient(cfg))
	}

	endpoints, err := buildEndpoints(providers)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build synthesis pipelines")
	}

	origins := api.ParseOrigins(cfg.CORSOrigins)
	gateway := api.NewServer(api.Options{
		Origins:        origins,
		MaxBody:        cfg.MaxRequestBytes,
		RequestTimeout: cfg.RequestTimeoutDuration(),
	}, endpoints...)

	// Create HTTP server
	mux := http.NewServeMux()
	gateway.Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness reflects each provider's circuit breaker
	checks := make([]observability.DependencyCheck, 0, len(providers))
	for _, p := range providers {
		checks = append(checks, observability.DependencyCheck{Name: p.Name(), Check: p.Ready})
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks...))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// gRPC health service
	var grpcHealth *observability.GRPCHealthServer
	if cfg.GRPCPort != "" {
		grpcHealth, err = startGRPCHealth(ctx, cfg.GRPCPort, checks, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to start gRPC health server")
		}
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           api.CORS(origins, mux),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Strs("endpoints", gateway.Endpoints()).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer cancel()

	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// buildEndpoints wraps each provider in a pipeline and binds it to its route
// writeGrace leaves room to write the timeout reply after a request's
// synthesis deadline has passed
const writeGrace = 10 * time.Second

// writeTimeout outlasts the per-request synthesis deadline
func writeTimeout(cfg *config.Config) time.Duration {
	return cfg.RequestTimeoutDuration() + writeGrace
}

func buildEndpoints(providers []tts.Provider) ([]*api.Endpoint, error) {
	endpoints := make([]*api.Endpoint, 0, len(providers))
	for _, p := range providers {
		pipeline, err := synth.New(p, synth.WithObserver(observability.ProviderCallRecorder{}))
		if err != nil {
			return nil, err
		}

		e := &api.Endpoint{Pipeline: pipeline}
		switch p.(type) {
		case *tts.LegacyClient:
			e.Name = api.EndpointLegacy
			e.FailureDetail = "Failed to generate audio"
			e.Status = api.InternalError
		case *tts.GenerativeClient:
			e.Name = api.EndpointGenerative
			e.FailureDetail = "Failed to generate audio from OpenAI.FM"
			e.Status = api.UpstreamStatus
		case *tts.DeepgramClient:
			e.Name = api.EndpointDeepgram
			e.FailureDetail = "Failed to generate audio from Deepgram"
			e.Status = api.UpstreamStatus
		default:
			return nil, fmt.Errorf("no endpoint for provider %s", p.Name())
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

func startGRPCHealth(ctx context.Context, port string, checks []observability.DependencyCheck, logger zerolog.Logger) (*observability.GRPCHealthServer, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on gRPC port %s: %w", port, err)
	}

	srv := observability.NewGRPCHealthServer(checks...)
	go srv.Run(ctx, healthRefreshInterval)
	go func() {
		logger.Info().Str("grpc_port", port).Msg("gRPC health service listening")
		if err := srv.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("gRPC health server stopped")
		}
	}()
	return srv, nil
}

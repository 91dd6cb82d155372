package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/stuartshay/gobebop/internal/app"
	"github.com/stuartshay/gobebop/internal/calculator"
	"github.com/stuartshay/gobebop/internal/config"
	"github.com/stuartshay/gobebop/internal/database"
	"github.com/stuartshay/gobebop/internal/errorreport"
	grpcserver "github.com/stuartshay/gobebop/internal/grpc"
	"github.com/stuartshay/gobebop/internal/httpapi"
	"github.com/stuartshay/gobebop/internal/location"
	"github.com/stuartshay/gobebop/internal/storage"
	"github.com/stuartshay/gobebop/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// reapInterval is how often idle UI sessions are swept.
const reapInterval = time.Minute

// healthInterval is how often readiness is mirrored into gRPC health.
const healthInterval = 15 * time.Second

func main() {
	publish := flag.String("publish", "", "upload this GeoJSON file to the configured S3 object and exit")
	migrate := flag.Bool("migrate", false, "create the locations table in the configured database and exit")
	flag.Parse()

	// Initialize structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	log.Info().Str("version", version).Msg("Starting gobebop service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	setLogLevel(cfg.LogLevel)

	if *publish != "" {
		if err := publishLocations(context.Background(), cfg, *publish); err != nil {
			log.Fatal().Err(err).Msg("Failed to publish locations")
		}
		return
	}
	if *migrate {
		if err := migrateSchema(context.Background(), cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to create schema")
		}
		return
	}

	log.Info().
		Str("service_name", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("grpc_port", cfg.GRPCPort).
		Str("http_port", cfg.HTTPPort).
		Str("locations_source", cfg.LocationsSource).
		Float64("default_lat", cfg.DefaultLatitude).
		Float64("default_lon", cfg.DefaultLongitude).
		Msg("Configuration loaded")

	// Error reporting
	if err := errorreport.Init(errorreport.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     cfg.ServiceName + "@" + version,
		ServerName:  cfg.ServiceName,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to initialize Sentry")
	}
	defer errorreport.Flush(2 * time.Second)
	log.Info().Bool("enabled", errorreport.Enabled()).Msg("Error reporting configured")

	// Tracing
	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:      cfg.ServiceName,
		ServiceNamespace: "gobebop",
		ServiceVersion:   version,
		Environment:      cfg.Environment,
		OTLPEndpoint:     cfg.OTELEndpoint,
		Enabled:          cfg.TracingEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	// Location source
	source, closeSource, err := buildSource(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize location source")
	}
	defer closeSource()

	store := location.NewStore()
	fallback := calculator.NewPoint(cfg.DefaultLatitude, cfg.DefaultLongitude)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))

	locationServer := grpcserver.NewServer(store, fallback, cfg.PublicBaseURL)
	grpcserver.RegisterLocationServiceServer(grpcServer, locationServer)

	// Register health check service. The location service reports serving
	// once the collection has loaded and its source is reachable.
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcserver.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Enable server reflection for debugging
	reflection.Register(grpcServer)

	// UI sessions and HTTP API
	sessions := httpapi.NewManager(store, appOptions(cfg, fallback), httpapi.SessionOptions{
		Key:    []byte(cfg.SessionKey),
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.Environment == "production",
	})
	api := httpapi.NewServer(cfg.ServiceName, store, locationServer, sessions)
	if checker, ok := source.(httpapi.HealthChecker); ok {
		api.AddReadinessCheck(source.Name(), checker)
	}

	// Load the collection in the background; readers see "not ready" until then
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelLoad()
	go func() {
		if err := store.Load(loadCtx, source); err != nil {
			errorreport.CaptureException(err, map[string]interface{}{"source": source.Name()})
		}
	}()

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go watchHealth(healthCtx, healthServer, store, api)

	// Start gRPC server
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create TCP listener")
	}

	go func() {
		log.Info().Str("port", cfg.GRPCPort).Msg("gRPC server listening")
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	reapCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go reapSessions(reapCtx, sessions, time.Duration(cfg.SessionMaxAge)*time.Second)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopReaper()
	stopHealth()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// Stop gRPC server
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	case <-stopped:
		log.Info().Msg("gRPC server stopped")
	}

	// Stop the session event loops
	if err := sessions.Shutdown(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown UI sessions")
	}

	if err := shutdownTracer(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown tracer")
	}

	log.Info().Msg("Service shutdown complete")
}

// buildSource returns the configured location source and a function that
// releases it.
func buildSource(cfg *config.Config) (location.Source, func(), error) {
	noop := func() {}

	switch cfg.LocationsSource {
	case config.SourceFile:
		return location.FileSource{Path: cfg.LocationsPath}, noop, nil

	case config.SourceHTTP:
		return location.HTTPSource{URL: cfg.LocationsURL}, noop, nil

	case config.SourceS3:
		src, err := storage.NewS3Source(s3Options(cfg))
		if err != nil {
			return nil, nil, err
		}
		return src, noop, nil

	case config.SourcePostgres:
		dbClient, err := database.NewClient(cfg.DatabaseDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database client: %w", err)
		}
		log.Info().Msg("Database connection established")
		return database.Source{DB: dbClient}, func() {
			if err := dbClient.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown location source %q", cfg.LocationsSource)
}

func s3Options(cfg *config.Config) storage.Options {
	return storage.Options{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
		Bucket:    cfg.S3Bucket,
		Object:    cfg.S3Object,
	}
}

// publishLocations uploads a local GeoJSON file to the S3 object the s3
// source reads from.
func publishLocations(ctx context.Context, cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	src, err := storage.NewS3Source(s3Options(cfg))
	if err != nil {
		return err
	}
	if err := src.Publish(ctx, data); err != nil {
		return err
	}
	log.Info().Str("file", path).Str("object", src.Name()).Msg("Locations published")
	return nil
}

// migrateSchema creates the Postgres locations table.
func migrateSchema(ctx context.Context, cfg *config.Config) error {
	dbClient, err := database.NewClient(cfg.DatabaseDSN())
	if err != nil {
		return fmt.Errorf("failed to initialize database client: %w", err)
	}
	defer func() { _ = dbClient.Close() }() // nolint:errcheck // Close in defer, error not actionable

	if err := dbClient.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to create locations table: %w", err)
	}
	log.Info().Msg("Locations table ready")
	return nil
}

// appOptions maps configuration onto per-session controller options.
func appOptions(cfg *config.Config, fallback calculator.Point) app.Options {
	opts := app.DefaultOptions()
	opts.Layers = cfg.MapLayers
	opts.Fallback = fallback
	opts.PollInterval = cfg.PollInterval
	opts.BaseURL = cfg.PublicBaseURL
	opts.SheetHeightFraction = cfg.SheetHeightFraction
	opts.MobileBreakpoint = cfg.MobileBreakpoint
	opts.SidebarWidth = cfg.SidebarWidth
	opts.InitialZoom = cfg.InitialZoom
	return opts
}

func reapSessions(ctx context.Context, sessions *httpapi.Manager, idle time.Duration) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Reap(idle)
		}
	}
}

// watchHealth waits for the collection to load, then keeps the gRPC health
// status of the location service in line with HTTP readiness.
func watchHealth(ctx context.Context, hs *health.Server, store *location.Store, api *httpapi.Server) {
	if err := store.WaitReady(ctx); err != nil {
		return
	}
	syncHealth(ctx, hs, api)

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncHealth(ctx, hs, api)
		}
	}
}

func syncHealth(ctx context.Context, hs *health.Server, api *httpapi.Server) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if _, err := api.Ready(ctx); err != nil {
		log.Warn().Err(err).Msg("Location service not ready")
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus(grpcserver.ServiceName, status)
}

// setLogLevel configures the global log level
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Info().Str("level", level).Msg("Log level set")
}

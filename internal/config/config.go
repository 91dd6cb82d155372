// Package config provides application configuration management,
// loading settings from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Location source kinds
const (
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourceS3       = "s3"
	SourcePostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	// Service configuration
	ServiceName   string
	Environment   string
	GRPCPort      string
	HTTPPort      string
	PublicBaseURL string

	// Location data source
	LocationsSource string
	LocationsPath   string
	LocationsURL    string

	// Database configuration
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	// Object storage configuration
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Object    string
	S3UseSSL    bool

	// Map fallback centre when the device position is unknown
	DefaultLatitude  float64
	DefaultLongitude float64

	// Map and layout
	MapLayers           []string
	InitialZoom         float64
	SheetHeightFraction float64
	MobileBreakpoint    float64
	SidebarWidth        float64
	PollInterval        time.Duration

	// Sessions
	SessionKey    string
	SessionMaxAge int

	// OpenTelemetry configuration
	OTELEndpoint   string
	TracingEnabled bool

	// Error reporting
	SentryDSN string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:   getEnv("SERVICE_NAME", "gobebop"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		GRPCPort:      getEnv("GRPC_PORT", "50051"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080/"),

		LocationsSource: strings.ToLower(getEnv("LOCATIONS_SOURCE", SourceFile)),
		LocationsPath:   getEnv("LOCATIONS_PATH", "locations.geojson"),
		LocationsURL:    getEnv("LOCATIONS_URL", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "gobebop"),
		PostgresUser:     getEnv("POSTGRES_USER", "development"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "development"),

		S3Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Bucket:    getEnv("S3_BUCKET", "gobebop"),
		S3Object:    getEnv("S3_OBJECT", "locations.geojson"),

		MapLayers: splitList(getEnv("MAP_LAYERS", "Icons,Dots")),

		SessionKey: getEnv("SESSION_KEY", "gobebop-development-session-key"),
		SentryDSN:  getEnv("SENTRY_DSN", ""),

		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.LocationsSource {
	case SourceFile, SourceHTTP, SourceS3, SourcePostgres:
	default:
		return nil, fmt.Errorf("invalid LOCATIONS_SOURCE: %q", cfg.LocationsSource)
	}
	if cfg.LocationsSource == SourceHTTP && cfg.LocationsURL == "" {
		return nil, fmt.Errorf("LOCATIONS_URL is required when LOCATIONS_SOURCE=http")
	}

	// Parse float values
	var err error
	cfg.DefaultLatitude, err = parseFloat("DEFAULT_LATITUDE", "52.3676")
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LATITUDE: %w", err)
	}

	cfg.DefaultLongitude, err = parseFloat("DEFAULT_LONGITUDE", "4.9041")
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LONGITUDE: %w", err)
	}

	cfg.InitialZoom, err = parseFloat("INITIAL_ZOOM", "12")
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_ZOOM: %w", err)
	}

	cfg.SheetHeightFraction, err = parseFloat("SHEET_HEIGHT_FRACTION", "0.42")
	if err != nil {
		return nil, fmt.Errorf("invalid SHEET_HEIGHT_FRACTION: %w", err)
	}
	if cfg.SheetHeightFraction <= 0 || cfg.SheetHeightFraction >= 1 {
		return nil, fmt.Errorf("invalid SHEET_HEIGHT_FRACTION: %v is not between 0 and 1", cfg.SheetHeightFraction)
	}

	cfg.MobileBreakpoint, err = parseFloat("MOBILE_BREAKPOINT", "600")
	if err != nil {
		return nil, fmt.Errorf("invalid MOBILE_BREAKPOINT: %w", err)
	}

	cfg.SidebarWidth, err = parseFloat("SIDEBAR_WIDTH", "440")
	if err != nil {
		return nil, fmt.Errorf("invalid SIDEBAR_WIDTH: %w", err)
	}

	cfg.PollInterval, err = time.ParseDuration(getEnv("POLL_INTERVAL", "200ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}

	cfg.SessionMaxAge, err = strconv.Atoi(getEnv("SESSION_MAX_AGE", "86400"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_MAX_AGE: %w", err)
	}

	cfg.S3UseSSL, err = parseBool("S3_USE_SSL", "false")
	if err != nil {
		return nil, fmt.Errorf("invalid S3_USE_SSL: %w", err)
	}

	cfg.TracingEnabled, err = parseBool("TRACING_ENABLED", "true")
	if err != nil {
		return nil, fmt.Errorf("invalid TRACING_ENABLED: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresUser,
		c.PostgresPassword,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseFloat parses a float64 from an environment variable or default value
func parseFloat(key, defaultValue string) (float64, error) {
	value := getEnv(key, defaultValue)
	return strconv.ParseFloat(value, 64)
}

// parseBool parses a bool from an environment variable or default value
func parseBool(key, defaultValue string) (bool, error) {
	value := getEnv(key, defaultValue)
	return strconv.ParseBool(value)
}

// splitList splits a comma separated value, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

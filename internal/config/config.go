package config

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:"SERVER"`

	// Storage configuration
	Storage StorageConfig `env:"STORAGE"`

	// Replay engine configuration
	Replay ReplayConfig `env:"REPLAY"`

	// Logging configuration
	Logging LoggingConfig `env:"LOGGING"`

	// Metrics configuration
	Metrics MetricsConfig `env:"METRICS"`

	// Tracing configuration
	Tracing TracingConfig `env:"TRACING"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	// HTTP API server address
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Read header timeout for the HTTP server
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	// Data directory path for the job store
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// History retention window (0 disables the retention sweep)
	HistoryRetention time.Duration `env:"HISTORY_RETENTION" envDefault:"720h"`

	// Interval between retention sweeps
	RetentionSweepInterval time.Duration `env:"RETENTION_SWEEP_INTERVAL" envDefault:"1h"`
}

// ReplayConfig holds replay engine configuration
type ReplayConfig struct {
	// Number of supervisor workers executing jobs
	Workers int `env:"WORKERS" envDefault:"4"`

	// Maximum records read per batch from a partition
	BatchSize int `env:"BATCH_SIZE" envDefault:"500"`

	// Interval at which the supervisor scans for due jobs
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`

	// Maximum concurrent partition readers per job
	PartitionParallelism int `env:"PARTITION_PARALLELISM" envDefault:"4"`

	// Transient I/O retries within a single attempt
	TransientRetries int `env:"TRANSIENT_RETRIES" envDefault:"3"`

	// Initial backoff between transient retries (doubles per retry)
	TransientBackoff time.Duration `env:"TRANSIENT_BACKOFF" envDefault:"500ms"`

	// Trailing window for throughput sampling
	ThroughputWindow time.Duration `env:"THROUGHPUT_WINDOW" envDefault:"10s"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	// Log level: "debug", "info", "warn", "error"
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Log format: "json", "text"
	Format string `env:"LOG_FORMAT" envDefault:"json"`

	// Log file path (empty for stdout)
	Output string `env:"LOG_OUTPUT" envDefault:""`

	// Enable log rotation
	Rotation bool `env:"LOG_ROTATION" envDefault:"true"`

	// Max log file size in MB
	MaxSize int `env:"LOG_MAX_SIZE" envDefault:"100"`

	// Number of backup files to keep
	MaxBackups int `env:"LOG_MAX_BACKUPS" envDefault:"7"`

	// Max age in days
	MaxAge int `env:"LOG_MAX_AGE" envDefault:"30"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	// Enable Prometheus metrics
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Metrics server address
	Addr string `env:"METRICS_ADDR" envDefault:":9090"`
}

// TracingConfig holds OpenTelemetry tracing configuration
type TracingConfig struct {
	// Enable distributed tracing
	Enabled bool `env:"TRACING_ENABLED" envDefault:"false"`

	// OTLP endpoint
	Endpoint string `env:"TRACING_ENDPOINT" envDefault:""`

	// Exporter type: "grpc" or "http"
	ExporterType string `env:"TRACING_EXPORTER" envDefault:"grpc"`

	// Skip TLS verification on the OTLP endpoint
	Insecure bool `env:"TRACING_INSECURE" envDefault:"true"`

	// Sampling strategy: "always" or "rate"
	SamplingStrategy string `env:"TRACING_SAMPLING_STRATEGY" envDefault:"always"`

	// Desired traces per second for the "rate" strategy
	SamplingRate float64 `env:"TRACING_SAMPLING_RATE" envDefault:"100"`
}

// Load loads configuration from environment variables and command line flags
func Load() (*Config, error) {
	cfg := &Config{}

	// Load from environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// Parse command line flags
	flag.StringVar(&cfg.Server.HTTPAddr, "http-addr", cfg.Server.HTTPAddr, "HTTP server address")
	flag.StringVar(&cfg.Storage.DataDir, "data-dir", cfg.Storage.DataDir, "Data directory path")
	flag.IntVar(&cfg.Replay.Workers, "workers", cfg.Replay.Workers, "Number of replay workers")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format (json, text)")
	flag.Parse()

	// Normalize paths
	cfg.Storage.DataDir = filepath.Clean(cfg.Storage.DataDir)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("http server address cannot be empty")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Replay.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.Replay.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}

	if c.Replay.PartitionParallelism < 1 {
		return fmt.Errorf("partition parallelism must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Tracing.ExporterType != "grpc" && c.Tracing.ExporterType != "http" {
		return fmt.Errorf("invalid tracing exporter type: %s", c.Tracing.ExporterType)
	}

	if c.Tracing.SamplingStrategy != "always" && c.Tracing.SamplingStrategy != "rate" {
		return fmt.Errorf("invalid tracing sampling strategy: %s", c.Tracing.SamplingStrategy)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint cannot be empty when tracing is enabled")
	}

	return nil
}

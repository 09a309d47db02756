package tracing

// Config holds configuration for OpenTelemetry tracing
type Config struct {
	// Enabled enables/disables tracing
	Enabled bool

	// ServiceName is the service name for traces
	ServiceName string

	// ServiceVersion is the service version
	ServiceVersion string

	// Endpoint is the OTLP endpoint URL
	Endpoint string

	// Insecure skips TLS verification
	Insecure bool

	// Headers contains additional headers for OTLP export
	Headers map[string]string

	// ExporterType specifies the exporter type: "grpc" or "http"
	ExporterType string

	// SamplingStrategy is "always" or "rate"
	SamplingStrategy string

	// SamplingRate is the desired traces per second against a 100 rps
	// baseline; only used with the "rate" strategy
	SamplingRate float64
}

// DefaultConfig returns a default tracing configuration
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		ServiceName:      "replayd",
		ServiceVersion:   "0.1.0",
		Endpoint:         "",
		Insecure:         false,
		Headers:          make(map[string]string),
		ExporterType:     "grpc",
		SamplingStrategy: "always",
		SamplingRate:     100.0,
	}
}

package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProvider(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, provider)

	assert.False(t, provider.IsEnabled())
	assert.NotNil(t, provider.GetTracer("test"))
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestEnabledProviderRequiresEndpoint(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, ServiceName: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestRateBasedSampling(t *testing.T) {
	tests := []struct {
		name         string
		samplingRate float64
		expectedProb float64
	}{
		{
			name:         "rate 50 should give prob 0.5",
			samplingRate: 50.0,
			expectedProb: 0.5,
		},
		{
			name:         "rate 25 should give prob 0.25",
			samplingRate: 25.0,
			expectedProb: 0.25,
		},
		{
			name:         "rate 100 should give prob 1.0",
			samplingRate: 100.0,
			expectedProb: 1.0,
		},
		{
			name:         "rate 150 should give prob 1.0 (capped)",
			samplingRate: 150.0,
			expectedProb: 1.0,
		},
		{
			name:         "rate 10 should give prob 0.1",
			samplingRate: 10.0,
			expectedProb: 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prob := tt.samplingRate / baselineRequestRate
			if prob > 1.0 {
				prob = 1.0
			}
			assert.Equal(t, tt.expectedProb, prob)
		})
	}
}

func TestProviderCreation(t *testing.T) {
	config := Config{
		Enabled:          true,
		ServiceName:      "test",
		ServiceVersion:   "1.0.0",
		Endpoint:         "localhost:4317",
		Insecure:         true,
		ExporterType:     "grpc",
		SamplingStrategy: "rate",
		SamplingRate:     50.0,
	}

	provider, err := NewProvider(config)
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.True(t, provider.IsEnabled())

	require.NoError(t, provider.Shutdown(context.Background()))
}

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

func TestConfig_Resource(t *testing.T) {
	res, err := Config{ServiceName: "flora-api", Environment: "staging"}.resource()
	require.NoError(t, err)

	set := res.Set()
	name, ok := set.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "flora-api", name.AsString())
	version, ok := set.Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "dev", version.AsString())
	env, ok := set.Value(semconv.DeploymentEnvironmentNameKey)
	require.True(t, ok)
	assert.Equal(t, "staging", env.AsString())

	res, err = Config{ServiceName: "flora-api", ServiceVersion: "1.4.0"}.resource()
	require.NoError(t, err)
	_, ok = res.Set().Value(semconv.DeploymentEnvironmentNameKey)
	assert.False(t, ok)
}

func TestConfig_Sampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", Config{SamplingRatio: 1}.sampler().Description())
	assert.Equal(t, "AlwaysOffSampler", Config{}.sampler().Description())
	assert.Contains(t, Config{SamplingRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}

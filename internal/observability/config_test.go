package observability

import (
	"testing"

	"github.com/smallbiznis/telcousage/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDisablesOtelWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_ENABLED", "")

	cfg := LoadConfig(config.Config{AppName: "telcousage", Environment: "production"})
	assert.False(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
	assert.Equal(t, "telcousage", cfg.ServiceName)
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	cfg := LoadConfig(config.Config{Environment: "production"})
	assert.True(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.Equal(t, "telcousage", cfg.ServiceName)
}

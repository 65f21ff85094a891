package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/subsight/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "production", LogLevel: " WARN "})

	assert.Equal(t, "subsight", cfg.ServiceName)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.Debug())
}

func TestDebugInDevelopment(t *testing.T) {
	assert.True(t, LoadConfig(config.Config{Environment: "local"}).Debug())
	assert.True(t, LoadConfig(config.Config{Environment: "production", LogLevel: "debug"}).Debug())
}

func TestProvideMetricsRespectsToggle(t *testing.T) {
	disabled := provideMetrics(prometheus.NewRegistry(), provideMetricsConfig(Config{MetricsEnabled: false}))
	assert.Nil(t, disabled)

	enabled := provideMetrics(prometheus.NewRegistry(), provideMetricsConfig(Config{MetricsEnabled: true}))
	assert.NotNil(t, enabled)
}

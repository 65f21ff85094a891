package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/subsight/internal/observability/logger"
	"github.com/smallbiznis/subsight/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideMetricsConfig,
		metrics.NewRegistry,
		provideMetrics,
	),
)

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:     cfg.MetricsEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
}

// provideMetrics returns nil when metrics are disabled; consumers treat a nil
// *metrics.Metrics as a no-op.
func provideMetrics(registry *prometheus.Registry, cfg metrics.Config) *metrics.Metrics {
	if !cfg.Enabled {
		return nil
	}
	return metrics.New(registry, cfg)
}

package config

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("config",
	fx.Provide(Load, provideDashboardConfigHolder),
)

func provideDashboardConfigHolder(cfg Config, log *zap.Logger) (*DashboardConfigHolder, error) {
	return NewDashboardConfigHolder(cfg.DashboardConfigPath, cfg.DashboardWatch, log)
}

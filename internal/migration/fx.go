package migration

import (
	"context"

	"github.com/smallbiznis/subsight/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		return Run(context.Background(), conn, cfg.Type, log.Named("migration"))
	}),
)

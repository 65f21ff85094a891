package cache

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/subsight/internal/config"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewSnapshotCache picks Redis when REDIS_ADDR is set and the in-memory cache otherwise.
func NewSnapshotCache(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) dashboarddomain.SnapshotCache {
	log = log.Named("dashboard.cache")

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("using in-memory snapshot cache")
		return NewMemoryCache()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable, snapshots will be rebuilt per request", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("using redis snapshot cache", zap.String("addr", addr), zap.Int("db", cfg.RedisDB))
	return NewRedisCache(client)
}

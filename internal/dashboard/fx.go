package dashboard

import (
	"github.com/smallbiznis/subsight/internal/dashboard/cache"
	"github.com/smallbiznis/subsight/internal/dashboard/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dashboard.service",
	fx.Provide(service.NewService),
)

// CacheModule adds the snapshot cache. One-shot commands leave it out.
var CacheModule = fx.Module("dashboard.cache",
	fx.Provide(cache.NewSnapshotCache),
)

package cli

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsight/internal/clock"
	"github.com/smallbiznis/subsight/internal/config"
	"github.com/smallbiznis/subsight/internal/dashboard"
	"github.com/smallbiznis/subsight/internal/ledger"
	"github.com/smallbiznis/subsight/internal/migration"
	"github.com/smallbiznis/subsight/internal/observability"
	obslogger "github.com/smallbiznis/subsight/internal/observability/logger"
	"github.com/smallbiznis/subsight/internal/store"
	"github.com/smallbiznis/subsight/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// snowflakeNode is the generation-run ID node. One writer per deployment.
const snowflakeNode = 1

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(snowflakeNode)
}

// coreModules are shared by every command: config, logging, metrics and the generator.
func coreModules(cfg config.Config) fx.Option {
	return fx.Options(
		config.Module,
		fx.Replace(cfg),
		observability.Module,
		clock.Module,
		ledger.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
	)
}

// storeModules open the database, migrate it and provide the loader.
func storeModules() fx.Option {
	return fx.Options(
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		store.Module,
	)
}

func dashboardModules() fx.Option {
	return fx.Options(
		storeModules(),
		dashboard.Module,
	)
}

// runApp starts an fx application, fills targets, runs fn and stops the
// application again. Start failures surface before fn runs.
func runApp(cmd *cobra.Command, cfg config.Config, modules fx.Option, fn func(ctx context.Context, log *zap.Logger) error, targets ...any) (err error) {
	var log *zap.Logger
	app := fx.New(
		coreModules(cfg),
		modules,
		fx.Populate(append([]any{&log}, targets...)...),
	)

	ctx := cmd.Context()
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancel()
		if stopErr := app.Stop(stopCtx); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	log = obslogger.WithContext(ctx, log)
	started := time.Now()
	if info, ok := commandInfo(ctx); ok {
		started = info.startedAt
	}
	log.Info("command start")

	err = fn(ctx, log)

	fields := []zap.Field{zap.Int64("duration_ms", time.Since(started).Milliseconds())}
	if err != nil {
		log.Error("command failed", append(fields, zap.Error(err))...)
		return err
	}
	log.Info("command end", fields...)
	return nil
}

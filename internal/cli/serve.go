package cli

import (
	"context"
	"strings"

	"github.com/smallbiznis/subsight/internal/dashboard"
	"github.com/smallbiznis/subsight/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API over HTTP",
		Long: `Serve the dashboard queries as JSON until interrupted.

Endpoints:
  GET /health
  GET /metrics
  GET /api/dashboard?as_of=YYYY-MM-DD
  GET /api/dashboard/{kpis,mrr,active-subscriptions,revenue-by-channel,retention}
  GET /api/runs/latest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.loadConfig()
			if v := strings.TrimSpace(addr); v != "" {
				cfg.HTTPAddr = v
			}
			cfg.DashboardWatch = true

			modules := fx.Options(
				dashboardModules(),
				dashboard.CacheModule,
				server.Module,
			)
			return runApp(cmd, cfg, modules, func(ctx context.Context, log *zap.Logger) error {
				<-ctx.Done()
				log.Info("shutting down")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	return cmd
}

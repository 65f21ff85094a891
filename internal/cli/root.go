// Package cli wires the subsight commands. Every command builds its own fx
// application from the package modules and tears it down when it returns.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/subsight/internal/config"
	obslogger "github.com/smallbiznis/subsight/internal/observability/logger"
	"github.com/spf13/cobra"
)

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootOptions are the persistent flags. Empty values keep the environment config.
type rootOptions struct {
	logLevel        string
	logFormat       string
	dbType          string
	dbPath          string
	generatorConfig string
	dashboardConfig string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "subsight",
		Short: "Subsight - synthetic subscription ledger and analytics",
		Long: `Subsight generates a reproducible subscription ledger (users,
subscription periods, payments and viewing activity), loads it into a
relational store and answers the dashboard queries over it.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			info := commandContext{
				correlationID: uuid.New(),
				startedAt:     time.Now(),
			}
			ctx := context.WithValue(cmd.Context(), commandContextKey{}, info)
			ctx = obslogger.WithCommand(ctx, cmd.CommandPath())
			ctx = obslogger.WithRequestID(ctx, info.correlationID.String())
			cmd.SetContext(ctx)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (json, console)")
	flags.StringVar(&opts.dbType, "db-type", "", "database type (postgres, mysql, sqlite)")
	flags.StringVar(&opts.dbPath, "db-path", "", "sqlite database file")
	flags.StringVar(&opts.generatorConfig, "generator-config", "", "generator.yml path")
	flags.StringVar(&opts.dashboardConfig, "dashboard-config", "", "dashboard.yml path")

	root.AddCommand(
		newGenerateCommand(opts),
		newLoadCommand(opts),
		newDashboardCommand(opts),
		newRunCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// Execute runs the root command until it returns or the process is signalled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// loadConfig loads the environment config and applies the persistent flags.
func (o *rootOptions) loadConfig() config.Config {
	cfg := config.Load()
	if v := strings.TrimSpace(o.logLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(o.logFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := strings.TrimSpace(o.dbType); v != "" {
		cfg.DBType = strings.ToLower(v)
	}
	if v := strings.TrimSpace(o.dbPath); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(o.generatorConfig); v != "" {
		cfg.GeneratorConfigPath = v
	}
	if v := strings.TrimSpace(o.dashboardConfig); v != "" {
		cfg.DashboardConfigPath = v
	}
	return cfg
}

func commandInfo(ctx context.Context) (commandContext, bool) {
	info, ok := ctx.Value(commandContextKey{}).(commandContext)
	return info, ok
}

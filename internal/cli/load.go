package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/subsight/internal/export"
	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	storedomain "github.com/smallbiznis/subsight/internal/store/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLoadCommand(root *rootOptions) *cobra.Command {
	var (
		gen     generatorFlags
		fromDir string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a dataset into the database",
		Long: `Replace the users, subscriptions, payments and user_activity tables.
With --from the dataset is read from an exported directory, otherwise it is
generated first.

Examples:
  subsight load --from ./Data
  subsight load --users 1000 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.loadConfig()

			var (
				req    ledgerdomain.GenerateRequest
				err    error
				source = strings.TrimSpace(fromDir)
			)
			if source == "" {
				if req, err = gen.request(cmd, cfg.GeneratorConfigPath); err != nil {
					return err
				}
			}

			var (
				generator ledgerdomain.Generator
				loader    storedomain.Loader
			)
			return runApp(cmd, cfg, storeModules(), func(ctx context.Context, log *zap.Logger) error {
				dataset, info, err := loadSource(ctx, generator, source, req)
				if err != nil {
					return err
				}
				run, err := loader.Replace(ctx, dataset, info)
				if err != nil {
					return err
				}
				log.Info("dataset loaded", zap.String("run_id", run.ID.String()), zap.String("source", run.Source))
				printRun(cmd, run)
				return nil
			}, &generator, &loader)
		},
	}

	gen.register(cmd)
	cmd.Flags().StringVar(&fromDir, "from", "", "read an exported dataset directory instead of generating")
	return cmd
}

// loadSource reads dir when set and generates from req otherwise.
func loadSource(ctx context.Context, generator ledgerdomain.Generator, dir string, req ledgerdomain.GenerateRequest) (ledgerdomain.Dataset, storedomain.RunInfo, error) {
	if dir != "" {
		dataset, manifest, err := export.ReadDataset(dir)
		if err != nil {
			return ledgerdomain.Dataset{}, storedomain.RunInfo{}, fmt.Errorf("read dataset %s: %w", dir, err)
		}
		return dataset, storedomain.RunInfo{Source: storedomain.SourceCSV, Request: manifest.Request}, nil
	}

	dataset, err := generator.Generate(ctx, req)
	if err != nil {
		return ledgerdomain.Dataset{}, storedomain.RunInfo{}, err
	}
	return dataset, storedomain.RunInfo{Source: storedomain.SourceGenerated, Request: &req}, nil
}

func printRun(cmd *cobra.Command, run storedomain.GenerationRun) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded run %s (%s, seed %s)\n", run.ID, run.Source, run.Seed)
	fmt.Fprintf(out, "Users: %d\n", run.UserCount)
	fmt.Fprintf(out, "Subscriptions: %d\n", run.SubscriptionCount)
	fmt.Fprintf(out, "Payments: %d\n", run.PaymentCount)
	fmt.Fprintf(out, "Activity: %d\n", run.ActivityCount)
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/subsight/internal/config"
	"github.com/smallbiznis/subsight/internal/export"
	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// generatorFlags override generator.yml. Only flags set on the command line apply.
type generatorFlags struct {
	seed      uint64
	users     int
	startDate string
	endDate   string
	churn     float64
}

func (f *generatorFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Uint64Var(&f.seed, "seed", 0, "random seed")
	flags.IntVar(&f.users, "users", 0, "number of users to generate")
	flags.StringVar(&f.startDate, "start", "", "simulation start date (YYYY-MM-DD)")
	flags.StringVar(&f.endDate, "end", "", "simulation end date (YYYY-MM-DD)")
	flags.Float64Var(&f.churn, "churn", 0, "churn probability per renewal cycle")
}

// request merges the generator file with the flags set on cmd.
func (f *generatorFlags) request(cmd *cobra.Command, path string) (ledgerdomain.GenerateRequest, error) {
	gc, err := config.LoadGeneratorConfig(path)
	if err != nil {
		return ledgerdomain.GenerateRequest{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		gc.Seed = f.seed
	}
	if flags.Changed("users") {
		gc.Users = f.users
	}
	if flags.Changed("start") {
		gc.StartDate = strings.TrimSpace(f.startDate)
	}
	if flags.Changed("end") {
		gc.EndDate = strings.TrimSpace(f.endDate)
	}
	if flags.Changed("churn") {
		gc.ChurnProbability = f.churn
	}

	if err := config.ValidateGeneratorConfig(gc); err != nil {
		return ledgerdomain.GenerateRequest{}, err
	}
	return gc.Request()
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	var (
		gen      generatorFlags
		outDir   string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the synthetic ledger and export it as CSV",
		Long: `Generate users, subscription periods, payments and activity and write
them as users.csv, subscriptions.csv, payments.csv and user_activity.csv.

Examples:
  subsight generate
  subsight generate --users 500 --seed 7 --out ./data
  subsight generate --compress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.loadConfig()
			req, err := gen.request(cmd, cfg.GeneratorConfigPath)
			if err != nil {
				return err
			}
			dir := outputDir(outDir, cfg)

			var generator ledgerdomain.Generator
			return runApp(cmd, cfg, fx.Options(), func(ctx context.Context, log *zap.Logger) error {
				dataset, err := generator.Generate(ctx, req)
				if err != nil {
					return err
				}
				manifest, err := export.WriteDataset(dir, dataset, export.Options{Compress: compress, Request: &req})
				if err != nil {
					return err
				}
				logExport(log, dir, manifest)
				printCounts(cmd, dataset.Counts())
				return nil
			}, &generator)
		},
	}

	gen.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default OUTPUT_DIR)")
	cmd.Flags().BoolVar(&compress, "compress", false, "write snappy-framed .csv.sz files")
	return cmd
}

func outputDir(flag string, cfg config.Config) string {
	if dir := strings.TrimSpace(flag); dir != "" {
		return dir
	}
	return cfg.OutputDir
}

func logExport(log *zap.Logger, dir string, manifest export.Manifest) {
	for _, f := range manifest.Files {
		log.Info("table exported",
			zap.String("dir", dir),
			zap.String("file", f.File),
			zap.Int("rows", f.Rows),
		)
	}
}

func printCounts(cmd *cobra.Command, counts ledgerdomain.DatasetCounts) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Dataset successfully generated")
	fmt.Fprintf(out, "Users: %d\n", counts.Users)
	fmt.Fprintf(out, "Subscriptions: %d\n", counts.Subscriptions)
	fmt.Fprintf(out, "Payments: %d\n", counts.Payments)
	fmt.Fprintf(out, "Activity: %d\n", counts.Activity)
}

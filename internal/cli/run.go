package cli

import (
	"context"

	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	"github.com/smallbiznis/subsight/internal/export"
	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	storedomain "github.com/smallbiznis/subsight/internal/store/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	var (
		gen      generatorFlags
		report   reportFlags
		outDir   string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate, export, load and render the dashboard in one go",
		Long: `Run the whole pipeline: generate the ledger, export the CSVs, load them
into the database and print the dashboard.

Examples:
  subsight run
  subsight run --users 500 --out ./data --pdf ./data/report.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.loadConfig()
			req, err := gen.request(cmd, cfg.GeneratorConfigPath)
			if err != nil {
				return err
			}
			dir := outputDir(outDir, cfg)

			var (
				generator ledgerdomain.Generator
				loader    storedomain.Loader
				svc       dashboarddomain.Service
			)
			return runApp(cmd, cfg, dashboardModules(), func(ctx context.Context, log *zap.Logger) error {
				dataset, err := generator.Generate(ctx, req)
				if err != nil {
					return err
				}

				manifest, err := export.WriteDataset(dir, dataset, export.Options{Compress: compress, Request: &req})
				if err != nil {
					return err
				}
				logExport(log, dir, manifest)

				run, err := loader.Replace(ctx, dataset, storedomain.RunInfo{Source: storedomain.SourceGenerated, Request: &req})
				if err != nil {
					return err
				}
				log.Info("dataset loaded", zap.String("run_id", run.ID.String()))

				return report.report(ctx, cmd, svc, log)
			}, &generator, &loader, &svc)
		},
	}

	gen.register(cmd)
	report.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", "", "CSV output directory (default OUTPUT_DIR)")
	cmd.Flags().BoolVar(&compress, "compress", false, "write snappy-framed .csv.sz files")
	return cmd
}

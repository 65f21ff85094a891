package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	"github.com/smallbiznis/subsight/internal/dashboard/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// reportFlags select the dashboard outputs. Text goes to stdout unless asJSON is set.
type reportFlags struct {
	asOf    string
	pdfPath string
	outDir  string
	asJSON  bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.asOf, "as-of", "", "as-of date for the MRR series (YYYY-MM-DD, default today)")
	flags.StringVar(&f.pdfPath, "pdf", "", "write the PDF report to this file")
	flags.StringVar(&f.outDir, "charts-dir", "", "write the PDF report and one PNG per chart into this directory")
	flags.BoolVar(&f.asJSON, "json", false, "print the snapshot as JSON instead of text")
}

// report builds the snapshot and writes every requested output.
func (f *reportFlags) report(ctx context.Context, cmd *cobra.Command, svc dashboarddomain.Service, log *zap.Logger) error {
	asOf, err := dashboarddomain.ParseAsOf(f.asOf)
	if err != nil {
		return err
	}

	snapshot, err := svc.Snapshot(ctx, asOf)
	if err != nil {
		return err
	}

	if err := writeSnapshot(cmd.OutOrStdout(), snapshot, f.asJSON); err != nil {
		return err
	}

	if path := strings.TrimSpace(f.pdfPath); path != "" {
		if err := writePDFFile(ctx, path, snapshot); err != nil {
			return err
		}
		log.Info("pdf report written", zap.String("path", path))
	}

	if dir := strings.TrimSpace(f.outDir); dir != "" {
		pdfPath, err := render.WritePDF(ctx, dir, snapshot)
		if err != nil {
			return err
		}
		charts, err := render.WriteCharts(dir, snapshot)
		if err != nil {
			return err
		}
		log.Info("report written",
			zap.String("pdf", pdfPath),
			zap.Strings("charts", charts),
		)
	}
	return nil
}

func writeSnapshot(w io.Writer, snapshot dashboarddomain.Snapshot, asJSON bool) error {
	if !asJSON {
		return render.WriteText(w, snapshot)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

func writePDFFile(ctx context.Context, path string, snapshot dashboarddomain.Snapshot) error {
	doc, err := render.PDF(ctx, snapshot)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	raw, err := io.ReadAll(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func newDashboardCommand(root *rootOptions) *cobra.Command {
	var report reportFlags

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Query the loaded ledger and render the dashboard",
		Long: `Run the KPI, MRR, active subscription, channel revenue and retention
queries against the database and render them.

Examples:
  subsight dashboard
  subsight dashboard --as-of 2024-12-31 --pdf ./report.pdf
  subsight dashboard --charts-dir ./report
  subsight dashboard --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.loadConfig()

			var svc dashboarddomain.Service
			return runApp(cmd, cfg, dashboardModules(), func(ctx context.Context, log *zap.Logger) error {
				return report.report(ctx, cmd, svc, log)
			}, &svc)
		},
	}

	report.register(cmd)
	return cmd
}

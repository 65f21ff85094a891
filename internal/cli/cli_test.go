package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	"github.com/smallbiznis/subsight/internal/export"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func sqliteArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--db-type", "sqlite", "--db-path", filepath.Join(t.TempDir(), "subsight.db")}
}

var smallRun = []string{"--users", "20", "--seed", "7", "--start", "2023-01-01", "--end", "2024-06-30"}

func TestGenerateWritesCSV(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, append([]string{"generate", "--out", dir}, smallRun...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Users: 20")

	for _, name := range []string{"users.csv", "subscriptions.csv", "payments.csv", "user_activity.csv", export.ManifestFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	dataset, manifest, err := export.ReadDataset(dir)
	require.NoError(t, err)
	assert.Len(t, dataset.Users(), 20)
	require.NotNil(t, manifest.Request)
	assert.Equal(t, uint64(7), manifest.Request.Seed)
}

func TestGenerateCompressed(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, append([]string{"generate", "--compress", "--out", dir}, smallRun...)...)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "payments.csv.sz"))
	assert.NoError(t, err)
}

func TestLoadFromDirectoryThenDashboard(t *testing.T) {
	dir := t.TempDir()
	db := sqliteArgs(t)

	_, err := execute(t, append([]string{"generate", "--out", dir}, smallRun...)...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"load", "--from", dir}, db...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "(csv, seed 7)")
	assert.Contains(t, out, "Users: 20")

	out, err = execute(t, append([]string{"dashboard", "--json", "--as-of", "2023-12-31"}, db...)...)
	require.NoError(t, err)

	var snapshot dashboarddomain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))
	assert.Equal(t, "2023-12-31", snapshot.AsOf)
	assert.NotEmpty(t, snapshot.RunID)
	assert.Equal(t, int64(20), snapshot.KPIs.TotalUsers)
	require.NotEmpty(t, snapshot.MRR)
	assert.Equal(t, "2023-12", snapshot.MRR[len(snapshot.MRR)-1].Month)
	assert.NotEmpty(t, snapshot.Retention)
}

func TestRunWritesReports(t *testing.T) {
	csvDir := t.TempDir()
	reportDir := t.TempDir()
	pdfPath := filepath.Join(t.TempDir(), "nested", "report.pdf")

	args := append([]string{"run", "--out", csvDir, "--charts-dir", reportDir, "--pdf", pdfPath, "--as-of", "2023-12-31"}, smallRun...)
	out, err := execute(t, append(args, sqliteArgs(t)...)...)
	require.NoError(t, err)

	assert.Contains(t, out, "Subscription analytics as of 2023-12-31")
	assert.Contains(t, out, "Monthly Recurring Revenue (MRR)")

	raw, err := os.ReadFile(filepath.Join(reportDir, "subsight-dashboard-2023-12-31.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))

	raw, err = os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))

	_, err = os.Stat(filepath.Join(csvDir, "users.csv"))
	assert.NoError(t, err)
}

func TestDashboardRejectsBadAsOf(t *testing.T) {
	_, err := execute(t, append([]string{"dashboard", "--as-of", "12/31/2023"}, sqliteArgs(t)...)...)
	assert.ErrorIs(t, err, dashboarddomain.ErrInvalidAsOf)
}

func TestGeneratorFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generator.yml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  seed: 11\n  users: 5\n"), 0o644))

	var gen generatorFlags
	cmd := &cobra.Command{Use: "test"}
	gen.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--users", "9", "--churn", "0.5"}))

	req, err := gen.request(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), req.Seed)
	assert.Equal(t, 9, req.UserCount)
	assert.Equal(t, 0.5, req.ChurnProbability)
}

func TestGeneratorFlagsValidate(t *testing.T) {
	var gen generatorFlags
	cmd := &cobra.Command{Use: "test"}
	gen.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--start", "2024-01-01", "--end", "2023-01-01"}))

	_, err := gen.request(cmd, "")
	assert.Error(t, err)
}

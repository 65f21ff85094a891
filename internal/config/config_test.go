package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "SQLite")
	t.Setenv("DATABASE_LOAD_BATCH_SIZE", "250")
	t.Setenv("DASHBOARD_CACHE_TTL", "90s")
	t.Setenv("METRICS_ENABLED", "off")
	t.Setenv("DASHBOARD_CONFIG_WATCH", "true")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 250, cfg.DBLoadBatchSize)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.MetricsEnabled)
	assert.True(t, cfg.DashboardWatch)
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("DATABASE_LOAD_BATCH_SIZE", "lots")
	t.Setenv("DASHBOARD_CACHE_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 1000, cfg.DBLoadBatchSize)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestDefaultGeneratorConfigMatchesDefaultRequest(t *testing.T) {
	req, err := DefaultGeneratorConfig().Request()
	require.NoError(t, err)

	assert.Equal(t, ledgerdomain.DefaultGenerateRequest(), req)
}

func TestLoadGeneratorConfigFromFile(t *testing.T) {
	path := writeFile(t, "generator.yml", `
generator:
  seed: 7
  users: 25
  start_date: "2024-01-01"
  end_date: "2024-06-30"
  plans:
    - name: Solo
      monthly_price: 4.50
  churn_probability: 0.5
`)

	cfg, err := LoadGeneratorConfig(path)
	require.NoError(t, err)

	req, err := cfg.Request()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), req.Seed)
	assert.Equal(t, 25, req.UserCount)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), req.EndDate)
	assert.Equal(t, []ledgerdomain.Plan{{Name: "Solo", MonthlyPrice: 450}}, req.Plans)
	assert.Equal(t, 0.5, req.ChurnProbability)
	assert.Equal(t, 180, req.RenewalIntervalDays, "omitted keys keep defaults")
}

func TestLoadGeneratorConfigEnvOverride(t *testing.T) {
	path := writeFile(t, "generator.yml", "generator:\n  users: 25\n")
	t.Setenv("SUBSIGHT_GENERATOR_USERS", "40")

	cfg, err := LoadGeneratorConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Users)
}

func TestLoadGeneratorConfigRejectsInvalid(t *testing.T) {
	path := writeFile(t, "generator.yml", "generator:\n  churn_probability: 2\n")

	_, err := LoadGeneratorConfig(path)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidConfig)

	path = writeFile(t, "generator.yml", "generator:\n  start_date: yesterday\n")
	_, err = LoadGeneratorConfig(path)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidConfig)
}

func TestLoadGeneratorConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadGeneratorConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestDashboardConfigHolderLoadsFile(t *testing.T) {
	path := writeFile(t, "dashboard.yml", `
dashboard:
  revenueStatuses: [Success]
  retentionMaxMonths: 12
  cacheTTL: 30s
`)

	holder, err := NewDashboardConfigHolder(path, false, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, []string{"Success"}, cfg.RevenueStatuses)
	assert.Equal(t, 12, cfg.RetentionMaxMonths)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
}

func TestDashboardConfigHolderRejectsUnknownStatus(t *testing.T) {
	path := writeFile(t, "dashboard.yml", "dashboard:\n  revenueStatuses: [Refunded]\n")

	_, err := NewDashboardConfigHolder(path, false, nil)
	assert.Error(t, err)
}

func TestStaticDashboardConfigHolder(t *testing.T) {
	holder := NewStaticDashboardConfigHolder(DefaultDashboardConfig())

	assert.Equal(t, []string{"Success", "Recovered"}, holder.Get().RevenueStatuses)
	assert.Zero(t, holder.Get().CacheTTL, "zero defers to DASHBOARD_CACHE_TTL")
}

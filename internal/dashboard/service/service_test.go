package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/subsight/internal/clock"
	"github.com/smallbiznis/subsight/internal/config"
	dashboardcache "github.com/smallbiznis/subsight/internal/dashboard/cache"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	"github.com/smallbiznis/subsight/internal/migration"
	obsmetrics "github.com/smallbiznis/subsight/internal/observability/metrics"
	storedomain "github.com/smallbiznis/subsight/internal/store/domain"
	storeservice "github.com/smallbiznis/subsight/internal/store/service"
	"github.com/smallbiznis/subsight/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

// sampleDataset has three users. User 1 churns in March, users 2 and 3 stay active.
func sampleDataset() ledgerdomain.Dataset {
	users := []ledgerdomain.User{
		{ID: 1, Age: 31, Country: "India", Device: "Mobile", AcquisitionChannel: "Organic", SignupDate: day(2023, 1, 10)},
		{ID: 2, Age: 44, Country: "USA", Device: "Desktop", AcquisitionChannel: "Paid Ads", SignupDate: day(2023, 2, 5)},
		{ID: 3, Age: 25, Country: "UK", Device: "Tablet", AcquisitionChannel: "Organic", SignupDate: day(2023, 3, 1)},
	}
	subs := []ledgerdomain.SubscriptionPeriod{
		{ID: 1, UserID: 1, Plan: "Basic", MonthlyPrice: 999, StartDate: day(2023, 1, 10), EndDate: ptr(day(2023, 3, 15)), Status: ledgerdomain.SubscriptionStatusCanceled},
		{ID: 2, UserID: 2, Plan: "Premium", MonthlyPrice: 1999, StartDate: day(2023, 2, 5), Status: ledgerdomain.SubscriptionStatusActive},
		{ID: 3, UserID: 3, Plan: "Standard", MonthlyPrice: 1499, StartDate: day(2023, 3, 1), Status: ledgerdomain.SubscriptionStatusActive},
	}
	payments := []ledgerdomain.Payment{
		{ID: 1, UserID: 1, SubscriptionID: 1, Amount: 999, PaymentDate: day(2023, 1, 10), Status: ledgerdomain.PaymentStatusSuccess},
		{ID: 2, UserID: 1, SubscriptionID: 1, Amount: 999, PaymentDate: day(2023, 2, 9), Status: ledgerdomain.PaymentStatusFailed},
		{ID: 3, UserID: 2, SubscriptionID: 2, Amount: 1999, PaymentDate: day(2023, 2, 5), Status: ledgerdomain.PaymentStatusSuccess},
		{ID: 4, UserID: 2, SubscriptionID: 2, Amount: 1999, PaymentDate: day(2023, 3, 10), Status: ledgerdomain.PaymentStatusRecovered},
		{ID: 5, UserID: 3, SubscriptionID: 3, Amount: 1499, PaymentDate: day(2023, 3, 1), Status: ledgerdomain.PaymentStatusSuccess},
	}
	activity := []ledgerdomain.ActivityEvent{
		{UserID: 1, ActivityDate: day(2023, 1, 20), WatchTimeMinutes: 12.5},
		{UserID: 1, ActivityDate: day(2023, 3, 5), WatchTimeMinutes: 40},
		{UserID: 2, ActivityDate: day(2023, 2, 10), WatchTimeMinutes: 3.25},
		{UserID: 2, ActivityDate: day(2023, 2, 20), WatchTimeMinutes: 18},
		{UserID: 2, ActivityDate: day(2023, 1, 15), WatchTimeMinutes: 7},
		{UserID: 3, ActivityDate: day(2023, 3, 2), WatchTimeMinutes: 60},
	}
	return ledgerdomain.NewDataset(users, subs, payments, activity)
}

type fixture struct {
	conn     *gorm.DB
	clock    *clock.FakeClock
	loader   storedomain.Loader
	settings *config.DashboardConfigHolder
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Run(context.Background(), conn, db.TypeSQLite, zap.NewNop()))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fake := clock.NewFakeClock(day(2023, 4, 20))

	loader := storeservice.NewService(storeservice.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		DBConfig: db.Config{Type: db.TypeSQLite},
	})
	return fixture{
		conn:     conn,
		clock:    fake,
		loader:   loader,
		settings: config.NewStaticDashboardConfigHolder(config.DefaultDashboardConfig()),
	}
}

func (f fixture) load(t *testing.T, dataset ledgerdomain.Dataset) storedomain.GenerationRun {
	t.Helper()
	run, err := f.loader.Replace(context.Background(), dataset, storedomain.RunInfo{Source: storedomain.SourceCSV})
	require.NoError(t, err)
	// Distinct load times keep the latest-run ordering stable.
	f.clock.Advance(time.Second)
	return run
}

func (f fixture) service(cache dashboarddomain.SnapshotCache, m *obsmetrics.Metrics) dashboarddomain.Service {
	return NewService(Params{
		DB:         f.conn,
		Log:        zap.NewNop(),
		Clock:      f.clock,
		DBConfig:   db.Config{Type: db.TypeSQLite},
		Settings:   f.settings,
		Runs:       f.loader,
		Cache:      cache,
		ObsMetrics: m,
	})
}

func TestKPIs(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())

	kpis, err := f.service(nil, nil).KPIs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ledgerdomain.Amount(6496), kpis.TotalRevenue)
	assert.Equal(t, int64(3), kpis.TotalUsers)
	assert.Equal(t, int64(2), kpis.ActiveUsers)
	assert.Equal(t, 33.33, kpis.ChurnRate)
	assert.Equal(t, ledgerdomain.Amount(2165), kpis.ARPU)
}

func TestKPIsEmptyStore(t *testing.T) {
	f := newFixture(t)

	kpis, err := f.service(nil, nil).KPIs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dashboarddomain.KPIs{}, kpis)
}

func TestKPIsRevenueStatusesFollowSettings(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())
	cfg := config.DefaultDashboardConfig()
	cfg.RevenueStatuses = []string{"Success"}
	f.settings = config.NewStaticDashboardConfigHolder(cfg)

	kpis, err := f.service(nil, nil).KPIs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.Amount(4497), kpis.TotalRevenue)
}

func TestMRR(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())

	points, err := f.service(nil, nil).MRR(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, []dashboarddomain.MRRPoint{
		{Month: "2023-01", MRR: 0},
		{Month: "2023-02", MRR: 999},
		{Month: "2023-03", MRR: 4497},
		{Month: "2023-04", MRR: 3498},
	}, points)
}

func TestMRRExplicitAsOf(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())

	points, err := f.service(nil, nil).MRR(context.Background(), day(2023, 2, 28))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2023-02", points[1].Month)

	points, err = f.service(nil, nil).MRR(context.Background(), day(2022, 12, 1))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestMRRDefaultAsOfFollowsClock(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())
	f.clock.SetDate(2023, time.March, 15)

	points, err := f.service(nil, nil).MRR(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2023-03", points[2].Month)
	assert.Equal(t, ledgerdomain.Amount(4497), points[2].MRR)
}

func TestMRREmptyStore(t *testing.T) {
	f := newFixture(t)

	points, err := f.service(nil, nil).MRR(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestActiveSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())

	points, err := f.service(nil, nil).ActiveSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dashboarddomain.ActiveSubscriptionsPoint{
		{Month: "2023-02", ActiveSubscriptions: 1},
		{Month: "2023-03", ActiveSubscriptions: 1},
	}, points)
}

func TestRevenueByChannel(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())

	channels, err := f.service(nil, nil).RevenueByChannel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dashboarddomain.ChannelRevenue{
		{Channel: "Paid Ads", Revenue: 3998},
		{Channel: "Organic", Revenue: 2498},
	}, channels)
}

func TestRetention(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())

	points, err := f.service(nil, nil).Retention(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dashboarddomain.RetentionPoint{
		{MonthsSinceSignup: 0, ActiveUsers: 3},
		{MonthsSinceSignup: 2, ActiveUsers: 1},
	}, points)

	cfg := config.DefaultDashboardConfig()
	cfg.RetentionMaxMonths = 1
	f.settings = config.NewStaticDashboardConfigHolder(cfg)

	points, err = f.service(nil, nil).Retention(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dashboarddomain.RetentionPoint{{MonthsSinceSignup: 0, ActiveUsers: 3}}, points)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	run := f.load(t, sampleDataset())
	registry := obsmetrics.NewRegistry()
	m := obsmetrics.New(registry, obsmetrics.Config{ServiceName: "subsight-test"})

	snapshot, err := f.service(nil, m).Snapshot(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, "2023-04-20", snapshot.AsOf)
	assert.Equal(t, run.ID.String(), snapshot.RunID)
	assert.Equal(t, int64(3), snapshot.KPIs.TotalUsers)
	assert.Len(t, snapshot.MRR, 4)
	assert.Len(t, snapshot.ActiveSubscriptions, 2)
	assert.Len(t, snapshot.RevenueByChannel, 2)
	assert.Len(t, snapshot.Retention, 2)

	count, err := testutil.GatherAndCount(registry, "subsight_dashboard_queries_total")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSnapshotCacheInvalidatesOnReload(t *testing.T) {
	f := newFixture(t)
	f.load(t, sampleDataset())
	svc := f.service(dashboardcache.NewMemoryCache(), nil)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, day(2023, 4, 1))
	require.NoError(t, err)
	require.Equal(t, ledgerdomain.Amount(6496), first.KPIs.TotalRevenue)

	// A write behind the loader's back is invisible while the cache entry lives.
	require.NoError(t, f.conn.Exec("DELETE FROM payments").Error)
	cached, err := svc.Snapshot(ctx, day(2023, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	// A new run changes the cache key.
	f.load(t, ledgerdomain.NewDataset(sampleDataset().Users(), sampleDataset().Subscriptions(), nil, nil))
	fresh, err := svc.Snapshot(ctx, day(2023, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.Amount(0), fresh.KPIs.TotalRevenue)
	assert.NotEqual(t, first.RunID, fresh.RunID)
}

func TestComputeKPIsRounding(t *testing.T) {
	kpis := computeKPIs(1000, 3, 1)
	assert.Equal(t, 66.67, kpis.ChurnRate)
	assert.Equal(t, ledgerdomain.Amount(333), kpis.ARPU)

	assert.Equal(t, dashboarddomain.KPIs{TotalRevenue: 500}, computeKPIs(500, 0, 0))
}

func TestMonthIndexExpr(t *testing.T) {
	assert.Contains(t, monthIndexExpr(db.TypePostgres, "start_date"), "EXTRACT(YEAR FROM start_date)")
	assert.Contains(t, monthIndexExpr(db.TypeMySQL, "start_date"), "YEAR(start_date)")
	assert.Contains(t, monthIndexExpr(db.TypeSQLite, "start_date"), "strftime('%Y', start_date)")
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/smallbiznis/subsight/internal/clock"
	"github.com/smallbiznis/subsight/internal/config"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/subsight/internal/observability/metrics"
	storedomain "github.com/smallbiznis/subsight/internal/store/domain"
	"github.com/smallbiznis/subsight/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	queryKPIs                = "kpis"
	queryMRR                 = "mrr"
	queryActiveSubscriptions = "active_subscriptions"
	queryRevenueByChannel    = "revenue_by_channel"
	queryRetention           = "retention"

	cacheKeyPrefix = "subsight:dashboard:snapshot"
	lockTTL        = 30 * time.Second
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	DBConfig   db.Config
	Config     config.Config
	Settings   *config.DashboardConfigHolder
	Runs       storedomain.Loader            `optional:"true"`
	Cache      dashboarddomain.SnapshotCache `optional:"true"`
	ObsMetrics *obsmetrics.Metrics           `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	dbType     string
	settings   *config.DashboardConfigHolder
	defaultTTL time.Duration
	runs       storedomain.Loader
	cache      dashboarddomain.SnapshotCache
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) dashboarddomain.Service {
	settings := p.Settings
	if settings == nil {
		settings = config.NewStaticDashboardConfigHolder(config.DefaultDashboardConfig())
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("dashboard.service"),
		clock:      p.Clock,
		dbType:     p.DBConfig.Type,
		settings:   settings,
		defaultTTL: p.Config.CacheTTL,
		runs:       p.Runs,
		cache:      p.Cache,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) KPIs(ctx context.Context) (kpis dashboarddomain.KPIs, err error) {
	defer func() { s.obsMetrics.IncDashboardQuery(queryKPIs, err) }()

	var revenue struct {
		Total ledgerdomain.Amount `gorm:"column:total_revenue"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total_revenue
		 FROM payments
		 WHERE payment_status IN ?`,
		s.revenueStatuses(),
	).Scan(&revenue).Error; err != nil {
		return dashboarddomain.KPIs{}, fmt.Errorf("query revenue: %w", err)
	}

	var users struct {
		TotalUsers  int64 `gorm:"column:total_users"`
		ActiveUsers int64 `gorm:"column:active_users"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT
			COUNT(DISTINCT user_id) AS total_users,
			COUNT(DISTINCT CASE WHEN status = ? THEN user_id END) AS active_users
		 FROM subscriptions`,
		string(ledgerdomain.SubscriptionStatusActive),
	).Scan(&users).Error; err != nil {
		return dashboarddomain.KPIs{}, fmt.Errorf("query users: %w", err)
	}

	return computeKPIs(revenue.Total, users.TotalUsers, users.ActiveUsers), nil
}

func computeKPIs(revenue ledgerdomain.Amount, total, active int64) dashboarddomain.KPIs {
	kpis := dashboarddomain.KPIs{
		TotalRevenue: revenue,
		TotalUsers:   total,
		ActiveUsers:  active,
	}
	if total > 0 {
		kpis.ChurnRate = round2(float64(total-active) / float64(total) * 100)
		kpis.ARPU = ledgerdomain.AmountFromFloat(revenue.Float64() / float64(total))
	}
	return kpis
}

func (s *Service) MRR(ctx context.Context, asOf time.Time) (points []dashboarddomain.MRRPoint, err error) {
	defer func() { s.obsMetrics.IncDashboardQuery(queryMRR, err) }()

	asOf = s.resolveAsOf(asOf)

	var first sql.NullInt64
	if err := s.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT MIN(%s) AS first_month FROM subscriptions`, monthIndexExpr(s.dbType, "start_date")),
	).Scan(&first).Error; err != nil {
		return nil, fmt.Errorf("query first month: %w", err)
	}
	if !first.Valid {
		return []dashboarddomain.MRRPoint{}, nil
	}

	last := dashboarddomain.MonthIndex(asOf)
	points = make([]dashboarddomain.MRRPoint, 0, max(last-int(first.Int64)+1, 0))
	for idx := int(first.Int64); idx <= last; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		monthStart := dashboarddomain.MonthStart(idx)

		var row struct {
			MRR ledgerdomain.Amount `gorm:"column:mrr"`
		}
		if err := s.db.WithContext(ctx).Raw(
			`SELECT COALESCE(SUM(monthly_price), 0) AS mrr
			 FROM subscriptions
			 WHERE start_date <= ?
			   AND (end_date IS NULL OR end_date > ?)`,
			monthStart,
			monthStart,
		).Scan(&row).Error; err != nil {
			return nil, fmt.Errorf("query mrr %s: %w", dashboarddomain.MonthLabel(idx), err)
		}
		points = append(points, dashboarddomain.MRRPoint{
			Month: dashboarddomain.MonthLabel(idx),
			MRR:   row.MRR,
		})
	}
	return points, nil
}

type monthCountRow struct {
	MonthIndex int   `gorm:"column:month_index"`
	Count      int64 `gorm:"column:subscription_count"`
}

func (s *Service) ActiveSubscriptions(ctx context.Context) (points []dashboarddomain.ActiveSubscriptionsPoint, err error) {
	defer func() { s.obsMetrics.IncDashboardQuery(queryActiveSubscriptions, err) }()

	var rows []monthCountRow
	if err := s.db.WithContext(ctx).Raw(
		fmt.Sprintf(
			`SELECT %s AS month_index, COUNT(*) AS subscription_count
			 FROM subscriptions
			 WHERE status = ?
			 GROUP BY month_index
			 ORDER BY month_index`,
			monthIndexExpr(s.dbType, "start_date"),
		),
		string(ledgerdomain.SubscriptionStatusActive),
	).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}

	points = make([]dashboarddomain.ActiveSubscriptionsPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, dashboarddomain.ActiveSubscriptionsPoint{
			Month:               dashboarddomain.MonthLabel(row.MonthIndex),
			ActiveSubscriptions: row.Count,
		})
	}
	return points, nil
}

func (s *Service) RevenueByChannel(ctx context.Context) (channels []dashboarddomain.ChannelRevenue, err error) {
	defer func() { s.obsMetrics.IncDashboardQuery(queryRevenueByChannel, err) }()

	var rows []struct {
		Channel string              `gorm:"column:acquisition_channel"`
		Revenue ledgerdomain.Amount `gorm:"column:revenue"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT u.acquisition_channel AS acquisition_channel, SUM(p.amount) AS revenue
		 FROM payments p
		 JOIN users u ON p.user_id = u.user_id
		 WHERE p.payment_status IN ?
		 GROUP BY u.acquisition_channel
		 ORDER BY revenue DESC, acquisition_channel`,
		s.revenueStatuses(),
	).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query revenue by channel: %w", err)
	}

	channels = make([]dashboarddomain.ChannelRevenue, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, dashboarddomain.ChannelRevenue{Channel: row.Channel, Revenue: row.Revenue})
	}
	return channels, nil
}

func (s *Service) Retention(ctx context.Context) (points []dashboarddomain.RetentionPoint, err error) {
	defer func() { s.obsMetrics.IncDashboardQuery(queryRetention, err) }()

	activityMonth := monthIndexExpr(s.dbType, "a.activity_date")
	cohortMonth := monthIndexExpr(s.dbType, "u.signup_date")
	query := fmt.Sprintf(
		`SELECT %[1]s - %[2]s AS months_since_signup, COUNT(DISTINCT a.user_id) AS active_users
		 FROM users u
		 JOIN user_activity a ON a.user_id = u.user_id
		 WHERE %[1]s >= %[2]s`,
		activityMonth, cohortMonth,
	)
	args := []any{}
	if maxMonths := s.settings.Get().RetentionMaxMonths; maxMonths > 0 {
		query += fmt.Sprintf(" AND %s - %s <= ?", activityMonth, cohortMonth)
		args = append(args, maxMonths)
	}
	query += " GROUP BY months_since_signup ORDER BY months_since_signup"

	var rows []struct {
		MonthsSinceSignup int   `gorm:"column:months_since_signup"`
		ActiveUsers       int64 `gorm:"column:active_users"`
	}
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query retention: %w", err)
	}

	points = make([]dashboarddomain.RetentionPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, dashboarddomain.RetentionPoint{
			MonthsSinceSignup: row.MonthsSinceSignup,
			ActiveUsers:       row.ActiveUsers,
		})
	}
	return points, nil
}

// Snapshot assembles every panel. With a cache configured, snapshots are
// keyed by as-of date and the latest generation run, so a reload invalidates
// them.
func (s *Service) Snapshot(ctx context.Context, asOf time.Time) (dashboarddomain.Snapshot, error) {
	asOf = s.resolveAsOf(asOf)
	runID := s.latestRunID(ctx)

	if s.cache == nil {
		return s.buildSnapshot(ctx, asOf, runID)
	}

	key := snapshotKey(asOf, runID)
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("snapshot cache read failed", zap.String("key", key), zap.Error(err))
	}
	s.obsMetrics.IncCacheLookup(ok)
	if ok {
		return cached, nil
	}

	token, locked, err := s.cache.TryLock(ctx, key, lockTTL)
	if err != nil {
		s.log.Warn("snapshot cache lock failed", zap.String("key", key), zap.Error(err))
	}

	snapshot, err := s.buildSnapshot(ctx, asOf, runID)
	if err != nil {
		if locked {
			s.release(ctx, key, token)
		}
		return dashboarddomain.Snapshot{}, err
	}

	if locked {
		if err := s.cache.Set(ctx, key, snapshot, s.cacheTTL()); err != nil {
			s.log.Warn("snapshot cache write failed", zap.String("key", key), zap.Error(err))
		}
		s.release(ctx, key, token)
	}
	return snapshot, nil
}

func (s *Service) buildSnapshot(ctx context.Context, asOf time.Time, runID string) (dashboarddomain.Snapshot, error) {
	began := time.Now()

	kpis, err := s.KPIs(ctx)
	if err != nil {
		return dashboarddomain.Snapshot{}, err
	}
	mrr, err := s.MRR(ctx, asOf)
	if err != nil {
		return dashboarddomain.Snapshot{}, err
	}
	active, err := s.ActiveSubscriptions(ctx)
	if err != nil {
		return dashboarddomain.Snapshot{}, err
	}
	channels, err := s.RevenueByChannel(ctx)
	if err != nil {
		return dashboarddomain.Snapshot{}, err
	}
	retention, err := s.Retention(ctx)
	if err != nil {
		return dashboarddomain.Snapshot{}, err
	}

	s.log.Debug("dashboard snapshot built",
		zap.String("as_of", asOf.Format(ledgerdomain.DateLayout)),
		zap.String("run_id", runID),
		zap.Int("mrr_months", len(mrr)),
		zap.Duration("elapsed", time.Since(began)),
	)

	return dashboarddomain.Snapshot{
		AsOf:                asOf.Format(ledgerdomain.DateLayout),
		RunID:               runID,
		KPIs:                kpis,
		MRR:                 mrr,
		ActiveSubscriptions: active,
		RevenueByChannel:    channels,
		Retention:           retention,
	}, nil
}

func (s *Service) latestRunID(ctx context.Context) string {
	if s.runs == nil {
		return ""
	}
	run, err := s.runs.LatestRun(ctx)
	if err != nil {
		if !errors.Is(err, storedomain.ErrNoRuns) {
			s.log.Warn("latest run lookup failed", zap.Error(err))
		}
		return ""
	}
	return run.ID.String()
}

func (s *Service) release(ctx context.Context, key, token string) {
	if err := s.cache.Release(ctx, key, token); err != nil {
		s.log.Warn("snapshot cache unlock failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) resolveAsOf(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	asOf = asOf.UTC()
	return time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) revenueStatuses() []string {
	statuses := s.settings.Get().RevenueStatuses
	if len(statuses) == 0 {
		for _, status := range ledgerdomain.CollectedStatuses {
			statuses = append(statuses, string(status))
		}
	}
	return statuses
}

func (s *Service) cacheTTL() time.Duration {
	if ttl := s.settings.Get().CacheTTL; ttl > 0 {
		return ttl
	}
	if s.defaultTTL > 0 {
		return s.defaultTTL
	}
	return 5 * time.Minute
}

func snapshotKey(asOf time.Time, runID string) string {
	if runID == "" {
		runID = "none"
	}
	return fmt.Sprintf("%s:%s:%s", cacheKeyPrefix, runID, asOf.Format(ledgerdomain.DateLayout))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

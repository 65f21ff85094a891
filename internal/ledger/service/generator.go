package service

import (
	"context"
	"time"

	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/subsight/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Generator struct {
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
}

func NewGenerator(p Params) ledgerdomain.Generator {
	return &Generator{
		log:        p.Log.Named("ledger.generator"),
		obsMetrics: p.ObsMetrics,
	}
}

// run holds the per-call state. It is never shared between calls.
type run struct {
	req     ledgerdomain.GenerateRequest
	rng     *source
	start   time.Time
	horizon time.Time

	users         *UserBuilder
	subscriptions *SubscriptionBuilder
	payments      *PaymentBuilder
	activity      *ActivityBuilder

	planChanges int
}

func (g *Generator) Generate(ctx context.Context, req ledgerdomain.GenerateRequest) (ledgerdomain.Dataset, error) {
	if err := req.Validate(); err != nil {
		return ledgerdomain.Dataset{}, err
	}

	began := time.Now()
	r := &run{
		req:           req,
		rng:           newSource(req.Seed),
		start:         truncateToDay(req.StartDate),
		horizon:       truncateToDay(req.EndDate),
		users:         NewUserBuilder(req.UserCount),
		subscriptions: NewSubscriptionBuilder(req.UserCount),
		payments:      NewPaymentBuilder(req.UserCount * 16),
		activity:      NewActivityBuilder(req.UserCount * (req.MinActivityEvents + req.MaxActivityEvents) / 2),
	}

	for i := 0; i < req.UserCount; i++ {
		if err := ctx.Err(); err != nil {
			return ledgerdomain.Dataset{}, err
		}
		r.generateUser()
	}

	dataset := ledgerdomain.NewDataset(
		r.users.Rows(),
		r.subscriptions.Rows(),
		r.payments.Rows(),
		r.activity.Rows(),
	)
	g.record(dataset.Counts(), r.payments, r.planChanges, time.Since(began))
	g.log.Info("ledger generated",
		zap.Uint64("seed", req.Seed),
		zap.Int("users", len(r.users.Rows())),
		zap.Int("subscriptions", len(r.subscriptions.Rows())),
		zap.Int("payments", len(r.payments.Rows())),
		zap.Int("activity", len(r.activity.Rows())),
		zap.Int("plan_changes", r.planChanges),
		zap.Duration("elapsed", time.Since(began)),
	)
	return dataset, nil
}

func (g *Generator) record(counts ledgerdomain.DatasetCounts, payments *PaymentBuilder, planChanges int, elapsed time.Duration) {
	if g.obsMetrics == nil {
		return
	}
	g.obsMetrics.AddRowsGenerated("users", counts.Users)
	g.obsMetrics.AddRowsGenerated("subscriptions", counts.Subscriptions)
	g.obsMetrics.AddRowsGenerated("payments", counts.Payments)
	g.obsMetrics.AddRowsGenerated("user_activity", counts.Activity)
	for _, status := range []ledgerdomain.PaymentStatus{
		ledgerdomain.PaymentStatusSuccess,
		ledgerdomain.PaymentStatusFailed,
		ledgerdomain.PaymentStatusRecovered,
	} {
		g.obsMetrics.AddPaymentsGenerated(string(status), payments.CountByStatus(status))
	}
	g.obsMetrics.AddPlanChanges(planChanges)
	g.obsMetrics.ObserveGenerate(elapsed)
}

func (r *run) generateUser() {
	req := r.req
	rng := r.rng

	signup := addDays(r.start, rng.intRange(0, req.SignupWindowDays))
	user := ledgerdomain.User{
		Age:                rng.intRange(req.MinAge, req.MaxAge),
		Country:            req.Countries[rng.index(len(req.Countries))],
		Device:             req.Devices[rng.index(len(req.Devices))],
		AcquisitionChannel: req.Channels[rng.index(len(req.Channels))],
		SignupDate:         signup,
	}
	userID := r.users.Emit(user)

	if period, ok := r.buildPeriod(userID, signup); ok {
		subscriptionID := r.subscriptions.Emit(period)
		r.bill(userID, subscriptionID, period)
	}

	r.generateActivity(userID)
}

// buildPeriod walks renewal terms from signup until churn or the horizon.
// A user holds one subscription: churn cancels it, and a plan redraw on
// renewal never splits it, so the price stays the one frozen at signup.
// ok is false when signup is not before the horizon.
func (r *run) buildPeriod(userID int64, signup time.Time) (ledgerdomain.SubscriptionPeriod, bool) {
	req := r.req
	rng := r.rng

	plan := req.Plans[rng.index(len(req.Plans))]
	period := ledgerdomain.SubscriptionPeriod{
		UserID:       userID,
		Plan:         plan.Name,
		MonthlyPrice: plan.MonthlyPrice,
		StartDate:    signup,
		Status:       ledgerdomain.SubscriptionStatusActive,
	}
	if !signup.Before(r.horizon) {
		return period, false
	}

	current := plan.Name
	for term := signup; term.Before(r.horizon); term = addDays(term, req.RenewalIntervalDays) {
		if rng.chance(req.ChurnProbability) {
			end := addDays(term, rng.intRange(req.ChurnTailMinDays, req.ChurnTailMaxDays))
			period.EndDate = &end
			period.Status = ledgerdomain.SubscriptionStatusCanceled
			return period, true
		}

		if rng.chance(req.PlanChangeProbability) {
			if next := req.Plans[rng.index(len(req.Plans))].Name; next != current {
				r.planChanges++
				current = next
			}
		}
	}
	return period, true
}

// bill steps through a period's billing window, inclusive of its effective
// end and clamped to the horizon.
func (r *run) bill(userID, subscriptionID int64, period ledgerdomain.SubscriptionPeriod) {
	req := r.req
	rng := r.rng

	limit := period.EffectiveEnd(r.horizon)
	if limit.After(r.horizon) {
		limit = r.horizon
	}

	for cursor := period.StartDate; !cursor.After(limit); cursor = addDays(cursor, req.BillingIntervalDays) {
		payment := ledgerdomain.Payment{
			UserID:         userID,
			SubscriptionID: subscriptionID,
			Amount:         period.MonthlyPrice,
			PaymentDate:    cursor,
			Status:         ledgerdomain.PaymentStatusSuccess,
		}

		if rng.chance(req.PaymentFailureProbability) {
			if rng.chance(req.PaymentRecoveryProbability) {
				recoveredAt := addDays(cursor, req.RecoveryDelayDays)
				// Recoveries past the billing window are drawn but not emitted.
				if !recoveredAt.After(limit) {
					recovered := payment
					recovered.PaymentDate = recoveredAt
					recovered.Status = ledgerdomain.PaymentStatusRecovered
					r.payments.Emit(recovered)
				}
			}
			payment.Status = ledgerdomain.PaymentStatusFailed
		}
		r.payments.Emit(payment)
	}
}

func (r *run) generateActivity(userID int64) {
	req := r.req
	rng := r.rng

	count := rng.intRange(req.MinActivityEvents, req.MaxActivityEvents)
	for i := 0; i < count; i++ {
		r.activity.Emit(ledgerdomain.ActivityEvent{
			UserID:           userID,
			ActivityDate:     addDays(r.start, rng.intRange(0, req.ActivityWindowDays)),
			WatchTimeMinutes: rng.exp(req.WatchTimeScale),
		})
	}
}

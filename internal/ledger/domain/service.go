package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid_generator_config")

// Generator produces a complete synthetic ledger for one request.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Dataset, error)
}

// GenerateRequest carries every knob of a generation run.
type GenerateRequest struct {
	Seed      uint64    `json:"seed"`
	UserCount int       `json:"user_count"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Plans     []Plan   `json:"plans"`
	Countries []string `json:"countries"`
	Devices   []string `json:"devices"`
	Channels  []string `json:"channels"`

	ChurnProbability           float64 `json:"churn_probability"`
	PlanChangeProbability      float64 `json:"plan_change_probability"`
	PaymentFailureProbability  float64 `json:"payment_failure_probability"`
	PaymentRecoveryProbability float64 `json:"payment_recovery_probability"`

	RenewalIntervalDays int `json:"renewal_interval_days"`
	BillingIntervalDays int `json:"billing_interval_days"`
	SignupWindowDays    int `json:"signup_window_days"`
	RecoveryDelayDays   int `json:"recovery_delay_days"`

	MinAge int `json:"min_age"`
	MaxAge int `json:"max_age"`

	ChurnTailMinDays int `json:"churn_tail_min_days"`
	ChurnTailMaxDays int `json:"churn_tail_max_days"`

	MinActivityEvents  int     `json:"min_activity_events"`
	MaxActivityEvents  int     `json:"max_activity_events"`
	ActivityWindowDays int     `json:"activity_window_days"`
	WatchTimeScale     float64 `json:"watch_time_scale"`
}

// DefaultPlans is the stock catalog.
func DefaultPlans() []Plan {
	return []Plan{
		{Name: "Basic", MonthlyPrice: 999},
		{Name: "Standard", MonthlyPrice: 1499},
		{Name: "Premium", MonthlyPrice: 1999},
	}
}

// DefaultGenerateRequest returns the baseline scenario: 3000 users over 2023-2024.
func DefaultGenerateRequest() GenerateRequest {
	return GenerateRequest{
		Seed:      42,
		UserCount: 3000,
		StartDate: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
		Plans:     DefaultPlans(),
		Countries: []string{"Thailand", "Singapore", "USA", "UK", "Germany", "India", "Australia"},
		Devices:   []string{"Mobile", "Desktop", "Tablet"},
		Channels:  []string{"Organic", "Google Ads", "Facebook Ads", "Referral", "Affiliate"},

		ChurnProbability:           0.25,
		PlanChangeProbability:      0.2,
		PaymentFailureProbability:  0.08,
		PaymentRecoveryProbability: 0.5,

		RenewalIntervalDays: 180,
		BillingIntervalDays: 30,
		SignupWindowDays:    365,
		RecoveryDelayDays:   3,

		MinAge: 18,
		MaxAge: 60,

		ChurnTailMinDays: 60,
		ChurnTailMaxDays: 365,

		MinActivityEvents:  20,
		MaxActivityEvents:  120,
		ActivityWindowDays: 730,
		WatchTimeScale:     35,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (r GenerateRequest) Validate() error {
	switch {
	case r.UserCount < 0:
		return invalid("user_count must not be negative")
	case r.StartDate.IsZero() || r.EndDate.IsZero():
		return invalid("start_date and end_date are required")
	case r.StartDate.After(r.EndDate):
		return invalid("start_date must not be after end_date")
	case len(r.Plans) == 0:
		return invalid("plans must not be empty")
	case len(r.Countries) == 0:
		return invalid("countries must not be empty")
	case len(r.Devices) == 0:
		return invalid("devices must not be empty")
	case len(r.Channels) == 0:
		return invalid("channels must not be empty")
	}

	for _, plan := range r.Plans {
		if plan.Name == "" {
			return invalid("plan name must not be empty")
		}
		if plan.MonthlyPrice < 0 {
			return invalid(fmt.Sprintf("plan %s price must not be negative", plan.Name))
		}
	}

	probabilities := []struct {
		name  string
		value float64
	}{
		{"churn_probability", r.ChurnProbability},
		{"plan_change_probability", r.PlanChangeProbability},
		{"payment_failure_probability", r.PaymentFailureProbability},
		{"payment_recovery_probability", r.PaymentRecoveryProbability},
	}
	for _, p := range probabilities {
		if p.value < 0 || p.value > 1 {
			return invalid(fmt.Sprintf("%s must be within [0,1]", p.name))
		}
	}

	switch {
	case r.RenewalIntervalDays <= 0:
		return invalid("renewal_interval_days must be positive")
	case r.BillingIntervalDays <= 0:
		return invalid("billing_interval_days must be positive")
	case r.SignupWindowDays < 0:
		return invalid("signup_window_days must not be negative")
	case r.RecoveryDelayDays < 0:
		return invalid("recovery_delay_days must not be negative")
	case r.ActivityWindowDays < 0:
		return invalid("activity_window_days must not be negative")
	case r.MinAge < 0 || r.MinAge > r.MaxAge:
		return invalid("age range is invalid")
	case r.ChurnTailMinDays <= 0 || r.ChurnTailMinDays > r.ChurnTailMaxDays:
		return invalid("churn tail range is invalid")
	case r.MinActivityEvents < 0 || r.MinActivityEvents > r.MaxActivityEvents:
		return invalid("activity event range is invalid")
	case r.WatchTimeScale <= 0:
		return invalid("watch_time_scale must be positive")
	}

	return nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, reason)
}

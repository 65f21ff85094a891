package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	"github.com/spf13/viper"
)

const generatorKey = "generator"

// PlanConfig is a catalog entry as written in generator.yml.
type PlanConfig struct {
	Name         string  `mapstructure:"name"`
	MonthlyPrice float64 `mapstructure:"monthly_price"`
}

// GeneratorConfig mirrors the generator section of generator.yml.
type GeneratorConfig struct {
	Seed      uint64 `mapstructure:"seed"`
	Users     int    `mapstructure:"users"`
	StartDate string `mapstructure:"start_date"`
	EndDate   string `mapstructure:"end_date"`

	Plans     []PlanConfig `mapstructure:"plans"`
	Countries []string     `mapstructure:"countries"`
	Devices   []string     `mapstructure:"devices"`
	Channels  []string     `mapstructure:"channels"`

	ChurnProbability           float64 `mapstructure:"churn_probability"`
	PlanChangeProbability      float64 `mapstructure:"plan_change_probability"`
	PaymentFailureProbability  float64 `mapstructure:"payment_failure_probability"`
	PaymentRecoveryProbability float64 `mapstructure:"payment_recovery_probability"`

	RenewalIntervalDays int `mapstructure:"renewal_interval_days"`
	BillingIntervalDays int `mapstructure:"billing_interval_days"`
	SignupWindowDays    int `mapstructure:"signup_window_days"`
	RecoveryDelayDays   int `mapstructure:"recovery_delay_days"`

	MinAge int `mapstructure:"min_age"`
	MaxAge int `mapstructure:"max_age"`

	ChurnTailMinDays int `mapstructure:"churn_tail_min_days"`
	ChurnTailMaxDays int `mapstructure:"churn_tail_max_days"`

	MinActivityEvents  int     `mapstructure:"min_activity_events"`
	MaxActivityEvents  int     `mapstructure:"max_activity_events"`
	ActivityWindowDays int     `mapstructure:"activity_window_days"`
	WatchTimeScale     float64 `mapstructure:"watch_time_scale"`
}

func DefaultGeneratorConfig() GeneratorConfig {
	req := ledgerdomain.DefaultGenerateRequest()

	plans := make([]PlanConfig, 0, len(req.Plans))
	for _, p := range req.Plans {
		plans = append(plans, PlanConfig{Name: p.Name, MonthlyPrice: p.MonthlyPrice.Float64()})
	}

	return GeneratorConfig{
		Seed:                       req.Seed,
		Users:                      req.UserCount,
		StartDate:                  req.StartDate.Format(ledgerdomain.DateLayout),
		EndDate:                    req.EndDate.Format(ledgerdomain.DateLayout),
		Plans:                      plans,
		Countries:                  req.Countries,
		Devices:                    req.Devices,
		Channels:                   req.Channels,
		ChurnProbability:           req.ChurnProbability,
		PlanChangeProbability:      req.PlanChangeProbability,
		PaymentFailureProbability:  req.PaymentFailureProbability,
		PaymentRecoveryProbability: req.PaymentRecoveryProbability,
		RenewalIntervalDays:        req.RenewalIntervalDays,
		BillingIntervalDays:        req.BillingIntervalDays,
		SignupWindowDays:           req.SignupWindowDays,
		RecoveryDelayDays:          req.RecoveryDelayDays,
		MinAge:                     req.MinAge,
		MaxAge:                     req.MaxAge,
		ChurnTailMinDays:           req.ChurnTailMinDays,
		ChurnTailMaxDays:           req.ChurnTailMaxDays,
		MinActivityEvents:          req.MinActivityEvents,
		MaxActivityEvents:          req.MaxActivityEvents,
		ActivityWindowDays:         req.ActivityWindowDays,
		WatchTimeScale:             req.WatchTimeScale,
	}
}

// LoadGeneratorConfig reads generator.yml from path, or from the default
// search paths when path is empty. A missing default file yields defaults.
// SUBSIGHT_GENERATOR_<KEY> environment variables override file values.
func LoadGeneratorConfig(path string) (GeneratorConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("generator")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/subsight")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SUBSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setGeneratorDefaults(v, DefaultGeneratorConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return GeneratorConfig{}, fmt.Errorf("read generator config: %w", err)
		}
	}

	// Unmarshal over AllSettings so defaults and env fill keys the file omits.
	var file struct {
		Generator GeneratorConfig `mapstructure:"generator"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return GeneratorConfig{}, fmt.Errorf("decode generator config: %w", err)
	}
	if err := ValidateGeneratorConfig(file.Generator); err != nil {
		return GeneratorConfig{}, err
	}
	return file.Generator, nil
}

func setGeneratorDefaults(v *viper.Viper, d GeneratorConfig) {
	defaults := map[string]any{
		"seed":                         d.Seed,
		"users":                        d.Users,
		"start_date":                   d.StartDate,
		"end_date":                     d.EndDate,
		"plans":                        d.Plans,
		"countries":                    d.Countries,
		"devices":                      d.Devices,
		"channels":                     d.Channels,
		"churn_probability":            d.ChurnProbability,
		"plan_change_probability":      d.PlanChangeProbability,
		"payment_failure_probability":  d.PaymentFailureProbability,
		"payment_recovery_probability": d.PaymentRecoveryProbability,
		"renewal_interval_days":        d.RenewalIntervalDays,
		"billing_interval_days":        d.BillingIntervalDays,
		"signup_window_days":           d.SignupWindowDays,
		"recovery_delay_days":          d.RecoveryDelayDays,
		"min_age":                      d.MinAge,
		"max_age":                      d.MaxAge,
		"churn_tail_min_days":          d.ChurnTailMinDays,
		"churn_tail_max_days":          d.ChurnTailMaxDays,
		"min_activity_events":          d.MinActivityEvents,
		"max_activity_events":          d.MaxActivityEvents,
		"activity_window_days":         d.ActivityWindowDays,
		"watch_time_scale":             d.WatchTimeScale,
	}
	for key, value := range defaults {
		v.SetDefault(generatorKey+"."+key, value)
	}
}

// Request converts the file representation into a generation request.
func (c GeneratorConfig) Request() (ledgerdomain.GenerateRequest, error) {
	start, err := parseDate("start_date", c.StartDate)
	if err != nil {
		return ledgerdomain.GenerateRequest{}, err
	}
	end, err := parseDate("end_date", c.EndDate)
	if err != nil {
		return ledgerdomain.GenerateRequest{}, err
	}

	plans := make([]ledgerdomain.Plan, 0, len(c.Plans))
	for _, p := range c.Plans {
		plans = append(plans, ledgerdomain.Plan{
			Name:         strings.TrimSpace(p.Name),
			MonthlyPrice: ledgerdomain.AmountFromFloat(p.MonthlyPrice),
		})
	}

	return ledgerdomain.GenerateRequest{
		Seed:                       c.Seed,
		UserCount:                  c.Users,
		StartDate:                  start,
		EndDate:                    end,
		Plans:                      plans,
		Countries:                  trimAll(c.Countries),
		Devices:                    trimAll(c.Devices),
		Channels:                   trimAll(c.Channels),
		ChurnProbability:           c.ChurnProbability,
		PlanChangeProbability:      c.PlanChangeProbability,
		PaymentFailureProbability:  c.PaymentFailureProbability,
		PaymentRecoveryProbability: c.PaymentRecoveryProbability,
		RenewalIntervalDays:        c.RenewalIntervalDays,
		BillingIntervalDays:        c.BillingIntervalDays,
		SignupWindowDays:           c.SignupWindowDays,
		RecoveryDelayDays:          c.RecoveryDelayDays,
		MinAge:                     c.MinAge,
		MaxAge:                     c.MaxAge,
		ChurnTailMinDays:           c.ChurnTailMinDays,
		ChurnTailMaxDays:           c.ChurnTailMaxDays,
		MinActivityEvents:          c.MinActivityEvents,
		MaxActivityEvents:          c.MaxActivityEvents,
		ActivityWindowDays:         c.ActivityWindowDays,
		WatchTimeScale:             c.WatchTimeScale,
	}, nil
}

func ValidateGeneratorConfig(cfg GeneratorConfig) error {
	req, err := cfg.Request()
	if err != nil {
		return err
	}
	return req.Validate()
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.ParseInLocation(ledgerdomain.DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ledgerdomain.ErrInvalidConfig, field)
	}
	return t, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

package domain

import (
	"fmt"
	"time"

	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
)

const MonthLayout = "2006-01"

// KPIs is the dashboard header.
type KPIs struct {
	TotalRevenue ledgerdomain.Amount `json:"total_revenue"`
	ActiveUsers  int64               `json:"active_users"`
	TotalUsers   int64               `json:"total_users"`
	// ChurnRate is a percentage rounded to two places.
	ChurnRate float64             `json:"churn_rate"`
	ARPU      ledgerdomain.Amount `json:"arpu"`
}

type MRRPoint struct {
	Month string              `json:"month"`
	MRR   ledgerdomain.Amount `json:"mrr"`
}

type ActiveSubscriptionsPoint struct {
	Month               string `json:"month"`
	ActiveSubscriptions int64  `json:"active_subscriptions"`
}

type ChannelRevenue struct {
	Channel string              `json:"acquisition_channel"`
	Revenue ledgerdomain.Amount `json:"revenue"`
}

type RetentionPoint struct {
	MonthsSinceSignup int   `json:"months_since_signup"`
	ActiveUsers       int64 `json:"active_users"`
}

// Snapshot bundles every dashboard panel for one as-of date.
type Snapshot struct {
	AsOf                string                     `json:"as_of"`
	RunID               string                     `json:"run_id,omitempty"`
	KPIs                KPIs                       `json:"kpis"`
	MRR                 []MRRPoint                 `json:"mrr"`
	ActiveSubscriptions []ActiveSubscriptionsPoint `json:"active_subscriptions"`
	RevenueByChannel    []ChannelRevenue           `json:"revenue_by_channel"`
	Retention           []RetentionPoint           `json:"retention"`
}

// MonthIndex numbers calendar months as year*12 + month, the same value the
// SQL month expressions produce.
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}

// MonthStart is the inverse of MonthIndex.
func MonthStart(index int) time.Time {
	year := (index - 1) / 12
	month := (index-1)%12 + 1
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

func MonthLabel(index int) string {
	return MonthStart(index).Format(MonthLayout)
}

// ParseMonth parses a YYYY-MM label.
func ParseMonth(label string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, label, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", label, err)
	}
	return t, nil
}

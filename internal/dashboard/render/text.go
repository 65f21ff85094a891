// Package render turns dashboard snapshots into human-readable reports.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
)

const (
	titleMRR                 = "Monthly Recurring Revenue (MRR)"
	titleActiveSubscriptions = "Active Subscriptions"
	titleRevenueByChannel    = "Revenue by Channel"
	titleRetention           = "Retention Curve"
)

// Headline is the one-line KPI summary shown above every report.
func Headline(kpis dashboarddomain.KPIs) string {
	return fmt.Sprintf("Revenue: %.2fM   |   Active Users: %d   |   Churn: %.2f%%   |   ARPU: %s",
		kpis.TotalRevenue.Float64()/1e6,
		kpis.ActiveUsers,
		kpis.ChurnRate,
		kpis.ARPU,
	)
}

// WriteText renders the snapshot as aligned plain-text tables.
func WriteText(w io.Writer, snapshot dashboarddomain.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Subscription analytics as of %s\n", snapshot.AsOf)
	if snapshot.RunID != "" {
		fmt.Fprintf(tw, "Run %s\n", snapshot.RunID)
	}
	fmt.Fprintln(tw, Headline(snapshot.KPIs))
	fmt.Fprintf(tw, "Total users: %d\n", snapshot.KPIs.TotalUsers)

	section(tw, titleMRR, "MONTH", "MRR")
	for _, p := range snapshot.MRR {
		fmt.Fprintf(tw, "%s\t%s\n", p.Month, p.MRR)
	}

	section(tw, titleActiveSubscriptions, "START MONTH", "ACTIVE")
	for _, p := range snapshot.ActiveSubscriptions {
		fmt.Fprintf(tw, "%s\t%d\n", p.Month, p.ActiveSubscriptions)
	}

	section(tw, titleRevenueByChannel, "CHANNEL", "REVENUE")
	for _, c := range snapshot.RevenueByChannel {
		fmt.Fprintf(tw, "%s\t%s\n", c.Channel, c.Revenue)
	}

	section(tw, titleRetention, "MONTHS SINCE SIGNUP", "ACTIVE USERS")
	for _, p := range snapshot.Retention {
		fmt.Fprintf(tw, "%d\t%d\n", p.MonthsSinceSignup, p.ActiveUsers)
	}

	return tw.Flush()
}

func section(w io.Writer, title string, columns ...string) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintln(w, strings.Join(columns, "\t"))
}

package render

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG")

func sampleSnapshot() dashboarddomain.Snapshot {
	return dashboarddomain.Snapshot{
		AsOf: "2024-12-31",
		KPIs: dashboarddomain.KPIs{
			TotalRevenue: 123456789,
			ActiveUsers:  1200,
			TotalUsers:   3000,
			ChurnRate:    60,
			ARPU:         41152,
		},
		MRR: []dashboarddomain.MRRPoint{
			{Month: "2023-01", MRR: 0},
			{Month: "2023-02", MRR: 150000},
			{Month: "2023-03", MRR: 310050},
		},
		ActiveSubscriptions: []dashboarddomain.ActiveSubscriptionsPoint{
			{Month: "2023-01", ActiveSubscriptions: 40},
			{Month: "2023-02", ActiveSubscriptions: 52},
		},
		RevenueByChannel: []dashboarddomain.ChannelRevenue{
			{Channel: "Organic", Revenue: 50000000},
			{Channel: "Referral", Revenue: 20000000},
		},
		Retention: []dashboarddomain.RetentionPoint{
			{MonthsSinceSignup: 0, ActiveUsers: 2900},
			{MonthsSinceSignup: 1, ActiveUsers: 2500},
			{MonthsSinceSignup: 2, ActiveUsers: 2100},
		},
	}
}

func TestHeadline(t *testing.T) {
	assert.Equal(t,
		"Revenue: 1.23M   |   Active Users: 1200   |   Churn: 60.00%   |   ARPU: 411.52",
		Headline(sampleSnapshot().KPIs))
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleSnapshot()))

	out := buf.String()
	assert.Contains(t, out, "Subscription analytics as of 2024-12-31")
	assert.Contains(t, out, "Monthly Recurring Revenue (MRR)")
	assert.Contains(t, out, "2023-03  3100.50")
	assert.Contains(t, out, "Organic   500000.00")
	assert.Contains(t, out, "Retention Curve")
	assert.NotContains(t, out, "Run ")
}

func TestChartsRendersEveryPanel(t *testing.T) {
	charts, err := Charts(sampleSnapshot())
	require.NoError(t, err)
	require.Len(t, charts, 4)
	for _, c := range charts {
		assert.True(t, bytes.HasPrefix(c.PNG, pngMagic), c.Title)
	}
}

func TestChartsSkipsThinPanels(t *testing.T) {
	snapshot := sampleSnapshot()
	snapshot.ActiveSubscriptions = snapshot.ActiveSubscriptions[:1]
	snapshot.RevenueByChannel = nil
	snapshot.Retention = []dashboarddomain.RetentionPoint{{MonthsSinceSignup: 0, ActiveUsers: 0}, {MonthsSinceSignup: 1, ActiveUsers: 0}}

	charts, err := Charts(snapshot)
	require.NoError(t, err)
	require.Len(t, charts, 1)
	assert.Equal(t, titleMRR, charts[0].Title)

	none, err := Charts(dashboarddomain.Snapshot{AsOf: "2024-12-31"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriteCharts(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteCharts(dir, sampleSnapshot())
	require.NoError(t, err)
	require.Len(t, paths, 4)
	assert.Equal(t, filepath.Join(dir, "monthly-recurring-revenue-mrr.png"), paths[0])

	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, pngMagic))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "subsight-dashboard-2024-12-31.pdf", FileName("2024-12-31"))
}

func TestPDF(t *testing.T) {
	doc, err := PDF(context.Background(), sampleSnapshot())
	require.NoError(t, err)
	raw, err := io.ReadAll(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))

	path, err := WritePDF(context.Background(), t.TempDir(), sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "subsight-dashboard-2024-12-31.pdf", filepath.Base(path))
}

func TestPDFHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PDF(ctx, sampleSnapshot())
	assert.ErrorIs(t, err, context.Canceled)
}

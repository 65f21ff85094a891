package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRowsGenerated(t *testing.T) {
	m := New(prometheus.NewRegistry(), Config{ServiceName: "subsight", Environment: "test"})

	m.AddRowsGenerated("payments", 3)
	m.AddRowsGenerated("payments", 2)
	m.AddRowsGenerated("payments", 0)

	got := testutil.ToFloat64(m.rowsGenerated.WithLabelValues("payments"))
	assert.Equal(t, float64(5), got)
}

func TestDashboardQueryOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry(), Config{})

	m.IncDashboardQuery("kpis", nil)
	m.IncDashboardQuery("kpis", errors.New("boom"))
	m.IncDashboardQuery("kpis", errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.dashboardQueries.WithLabelValues("kpis", OutcomeSuccess)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.dashboardQueries.WithLabelValues("kpis", OutcomeError)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.AddRowsGenerated("users", 1)
		m.AddPaymentsGenerated("Success", 1)
		m.AddPlanChanges(1)
		m.ObserveGenerate(time.Second)
		m.AddRowsLoaded("users", 1)
		m.ObserveLoad(time.Second)
		m.IncDashboardQuery("mrr", nil)
		m.IncCacheLookup(true)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(NewRegistry(), Config{ServiceName: "subsight", Environment: "test"})
	m.IncCacheLookup(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `subsight_dashboard_cache_lookups_total{env="test",result="miss",service="subsight"} 1`))
}

package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Config configures the metrics registry.
type Config struct {
	Enabled     bool
	ServiceName string
	Environment string
}

// Metrics exposes pipeline instruments. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	rowsGenerated     *prometheus.CounterVec
	paymentsGenerated *prometheus.CounterVec
	planChanges       prometheus.Counter
	generateDuration  prometheus.Observer
	rowsLoaded        *prometheus.CounterVec
	loadDuration      prometheus.Observer
	dashboardQueries  *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
}

// NewRegistry returns the private registry for pipeline instruments.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// New registers the pipeline instruments on registry.
func New(registry *prometheus.Registry, cfg Config) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "subsight"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	rowsGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "subsight_generator_rows_total",
		Help:        "Rows emitted by the ledger generator per table.",
		ConstLabels: constLabels,
	}, []string{"table"})
	paymentsGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "subsight_generator_payments_total",
		Help:        "Generated payments by status.",
		ConstLabels: constLabels,
	}, []string{"status"})
	planChanges := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "subsight_generator_plan_changes_total",
		Help:        "Plan redraws that picked a different plan for an active subscription.",
		ConstLabels: constLabels,
	})
	generateDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "subsight_generator_duration_seconds",
		Help:        "Wall time of one generation run.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	})
	rowsLoaded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "subsight_store_rows_loaded_total",
		Help:        "Rows written to the relational store per table.",
		ConstLabels: constLabels,
	}, []string{"table"})
	loadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "subsight_store_load_duration_seconds",
		Help:        "Wall time of one dataset load.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	})
	dashboardQueries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "subsight_dashboard_queries_total",
		Help:        "Dashboard queries by name and outcome.",
		ConstLabels: constLabels,
	}, []string{"query", "outcome"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "subsight_dashboard_cache_lookups_total",
		Help:        "Dashboard snapshot cache lookups by result.",
		ConstLabels: constLabels,
	}, []string{"result"})

	registry.MustRegister(
		rowsGenerated,
		paymentsGenerated,
		planChanges,
		generateDuration,
		rowsLoaded,
		loadDuration,
		dashboardQueries,
		cacheLookups,
	)

	return &Metrics{
		registry:          registry,
		rowsGenerated:     rowsGenerated,
		paymentsGenerated: paymentsGenerated,
		planChanges:       planChanges,
		generateDuration:  generateDuration,
		rowsLoaded:        rowsLoaded,
		loadDuration:      loadDuration,
		dashboardQueries:  dashboardQueries,
		cacheLookups:      cacheLookups,
	}
}

func (m *Metrics) AddRowsGenerated(table string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.rowsGenerated.WithLabelValues(table).Add(float64(count))
}

func (m *Metrics) AddPaymentsGenerated(status string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.paymentsGenerated.WithLabelValues(status).Add(float64(count))
}

func (m *Metrics) AddPlanChanges(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.planChanges.Add(float64(count))
}

func (m *Metrics) ObserveGenerate(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generateDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) AddRowsLoaded(table string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.rowsLoaded.WithLabelValues(table).Add(float64(count))
}

func (m *Metrics) ObserveLoad(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.loadDuration.Observe(elapsed.Seconds())
}

// IncDashboardQuery counts one query execution. err selects the outcome label.
func (m *Metrics) IncDashboardQuery(query string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.dashboardQueries.WithLabelValues(query, outcome).Inc()
}

func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the private registry merged with the default gatherer,
// which carries the Go runtime collectors and the gorm DB stats.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	gatherers := prometheus.Gatherers{m.registry, prometheus.DefaultGatherer}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

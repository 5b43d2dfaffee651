package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background ledger jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	balanceDrift  *prometheus.GaugeVec
	budgetFlagged *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration and outcome, and returns err
// untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetBalanceDrift publishes how many cached balances the last integrity run
// had to correct for a tenant.
func (m *Metrics) SetBalanceDrift(tenantID int64, accounts int) {
	if m == nil {
		return
	}
	m.balanceDrift.WithLabelValues(formatInt(tenantID)).Set(float64(accounts))
}

// SetBudgetFlagged publishes the number of budget lines over threshold.
func (m *Metrics) SetBudgetFlagged(tenantID int64, lines int) {
	if m == nil {
		return
	}
	m.budgetFlagged.WithLabelValues(formatInt(tenantID)).Set(float64(lines))
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	drift := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_balance_drift_accounts",
		Help: "Accounts whose cached balance disagreed with posted lines on the last integrity run.",
	}, []string{"tenant"})
	flagged := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_budget_lines_over_threshold",
		Help: "Budget lines whose variance exceeded the configured threshold on the last run.",
	}, []string{"tenant"})
	registerer.MustRegister(runs, failures, duration, drift, flagged)
	return &Metrics{runs: runs, failures: failures, duration: duration, balanceDrift: drift, budgetFlagged: flagged}
}

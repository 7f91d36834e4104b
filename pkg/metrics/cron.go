package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records metadata for scheduled jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	findings *prometheus.GaugeVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storepos_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storepos_job_runs_total",
		Help: "Cron job executions by result.",
	}, []string{"job", "result"})
	findings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storepos_job_findings",
		Help: "Rows reported by the last run of a job (low-stock products, ledger drift, purged events).",
	}, []string{"job"})
	reg.MustRegister(duration, runs, findings)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
		findings: findings,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "success").Inc()
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "failure").Inc()
}

// SetFindings publishes how many rows the last run of job reported.
func (c *CronJobMetrics) SetFindings(job string, count int) {
	if c == nil || c.findings == nil {
		return
	}
	c.findings.WithLabelValues(normalizeLabel(job)).Set(float64(count))
}

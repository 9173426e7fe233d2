package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkflowMetrics tracks workflow activity across the three components.
type WorkflowMetrics struct {
	claimsCreated *prometheus.CounterVec
	jobsSubmitted *prometheus.CounterVec

	reportsProcessed *prometheus.CounterVec
	reportRows       prometheus.Counter
	recordsUpdated   prometheus.Counter

	tagsApplied *prometheus.CounterVec

	processDuration *prometheus.HistogramVec
}

// NewWorkflowMetrics creates and registers workflow metrics on the
// given registerer. Tests pass a fresh prometheus.NewRegistry().
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	factory := promauto.With(reg)

	return &WorkflowMetrics{
		claimsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checksum",
			Subsystem: "initiator",
			Name:      "claims_created_total",
			Help:      "Total claim records written, by algorithm",
		}, []string{"algorithm"}),
		jobsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checksum",
			Subsystem: "initiator",
			Name:      "jobs_submitted_total",
			Help:      "Total batch job submissions, by algorithm and outcome",
		}, []string{"algorithm", "status"}),
		reportsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checksum",
			Subsystem: "reconciler",
			Name:      "reports_processed_total",
			Help:      "Total report notifications handled, by outcome",
		}, []string{"status"}),
		reportRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checksum",
			Subsystem: "reconciler",
			Name:      "report_rows_total",
			Help:      "Total report rows parsed",
		}),
		recordsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checksum",
			Subsystem: "reconciler",
			Name:      "records_updated_total",
			Help:      "Total claim records updated from reports",
		}),
		tagsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checksum",
			Subsystem: "tagger",
			Name:      "tags_applied_total",
			Help:      "Total tagging attempts, by outcome",
		}, []string{"status"}),
		processDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checksum",
			Name:      "process_duration_seconds",
			Help:      "Component invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component"}),
	}
}

// RecordClaimsCreated adds to the per-algorithm claim counter.
func (m *WorkflowMetrics) RecordClaimsCreated(algorithm string, count int) {
	if m == nil {
		return
	}
	m.claimsCreated.WithLabelValues(algorithm).Add(float64(count))
}

// RecordJobSubmission records one batch job submission attempt.
func (m *WorkflowMetrics) RecordJobSubmission(algorithm string, success bool) {
	if m == nil {
		return
	}
	status := "created"
	if !success {
		status = "failed"
	}
	m.jobsSubmitted.WithLabelValues(algorithm, status).Inc()
}

// RecordReport records one handled report notification.
func (m *WorkflowMetrics) RecordReport(status string, rows, updated int) {
	if m == nil {
		return
	}
	m.reportsProcessed.WithLabelValues(status).Inc()
	m.reportRows.Add(float64(rows))
	m.recordsUpdated.Add(float64(updated))
}

// RecordTag records one tagging attempt.
func (m *WorkflowMetrics) RecordTag(success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.tagsApplied.WithLabelValues(status).Inc()
}

// ObserveDuration records one component invocation's duration.
func (m *WorkflowMetrics) ObserveDuration(component string, d time.Duration) {
	if m == nil {
		return
	}
	m.processDuration.WithLabelValues(component).Observe(d.Seconds())
}

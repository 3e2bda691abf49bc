package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	submissionsTotal    *prometheus.CounterVec
	uploadsTotal        *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	receiptsTotal       prometheus.Counter
	adminRequestsTotal  *prometheus.CounterVec
	adminLatencySeconds *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the
// admissions service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_submissions_total",
			Help: "Total number of applications accepted, labelled by submission source.",
		}, []string{"source"})

		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_uploads_total",
			Help: "Total number of files stored, labelled by bucket.",
		}, []string{"bucket"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_uploads_rejected_total",
			Help: "Total number of uploads rejected before storage, labelled by reason.",
		}, []string{"reason"})

		receiptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admissions_receipts_generated_total",
			Help: "Total number of PDF receipts rendered.",
		})

		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admissions_admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			submissionsTotal,
			uploadsTotal,
			uploadRejectedTotal,
			receiptsTotal,
			adminRequestsTotal,
			adminLatencySeconds,
		)
	})
}

// SubmissionsAccepted exposes the counter for accepted applications.
func SubmissionsAccepted() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// UploadsStored exposes the counter for stored files.
func UploadsStored() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsTotal
}

// UploadsRejected exposes the counter for rejected uploads.
func UploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// ReceiptsGenerated exposes the counter for rendered PDF receipts.
func ReceiptsGenerated() prometheus.Counter {
	RegisterMetrics()
	return receiptsTotal
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

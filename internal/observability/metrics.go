package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	certificatesGenerated *prometheus.CounterVec
	certificateRenderTime prometheus.Histogram
	recordUpsertsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and services.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		certificatesGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificates_generated_total",
			Help: "Total number of certificate PDFs generated.",
		}, []string{"kind"})

		certificateRenderTime = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "certificate_render_seconds",
			Help:    "Time spent drawing a certificate PDF.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		recordUpsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "record_upserts_total",
			Help: "Student record upserts by outcome.",
		}, []string{"outcome"})

		for _, kind := range []string{"testimonial", "transfer_certificate"} {
			certificatesGenerated.WithLabelValues(kind)
		}
		for _, outcome := range []string{"inserted", "updated", "failed"} {
			recordUpsertsTotal.WithLabelValues(outcome)
		}

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, certificatesGenerated, certificateRenderTime, recordUpsertsTotal)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// CertificatesGenerated counts generated PDFs by kind.
func CertificatesGenerated() *prometheus.CounterVec {
	RegisterMetrics()
	return certificatesGenerated
}

// CertificateRenderSeconds observes PDF drawing time.
func CertificateRenderSeconds() prometheus.Histogram {
	RegisterMetrics()
	return certificateRenderTime
}

// RecordUpserts counts upserts labelled "inserted", "updated" or "failed".
func RecordUpserts() *prometheus.CounterVec {
	RegisterMetrics()
	return recordUpsertsTotal
}

// MetricsHandler serves the scrape endpoint. The certificate and record
// collectors are registered before the first scrape so they are listed even
// when nothing has been issued yet.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

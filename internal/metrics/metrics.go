// Package metrics provides Prometheus instrumentation for the analytics API.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spendpulse",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spendpulse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DatasetsLoaded tracks how many datasets are resident in memory.
	DatasetsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "spendpulse",
		Name:      "datasets_loaded",
		Help:      "Number of datasets currently held in memory.",
	})

	// DatasetRowsIngested counts transaction rows accepted at upload.
	DatasetRowsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "spendpulse",
		Name:      "dataset_rows_ingested_total",
		Help:      "Total transaction rows ingested across all uploads.",
	})

	// AnalysesTotal counts entity analyses served, labelled by risk band.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spendpulse",
			Name:      "analyses_total",
			Help:      "Total entity analyses served, by resulting risk band.",
		},
		[]string{"band"},
	)

	// TrainingsTotal counts training runs by result.
	TrainingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spendpulse",
			Name:      "trainings_total",
			Help:      "Total dataset training runs by result (fitted, cached, failed).",
		},
		[]string{"result"},
	)

	// TrainingDuration observes wall time of a dataset fit.
	TrainingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spendpulse",
		Name:      "training_duration_seconds",
		Help:      "Dataset training duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	})

	// TrainingEntitiesSampled observes how many entities a fit consumed.
	TrainingEntitiesSampled = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spendpulse",
		Name:      "training_entities_sampled",
		Help:      "Entities sampled per dataset training run.",
		Buckets:   []float64{10, 100, 1000, 5000, 10000, 25000, 50000},
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DatasetsLoaded,
		DatasetRowsIngested,
		AnalysesTotal,
		TrainingsTotal,
		TrainingDuration,
		TrainingEntitiesSampled,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	jobRunsTotal *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	rowsInserted *prometheus.CounterVec
	rowsUpdated  *prometheus.CounterVec
	symbolErrors *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		jobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_job_runs_total",
				Help: "Total number of sync job executions",
			},
			[]string{"pipeline", "venue", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_job_duration_seconds",
				Help:    "Sync job duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"pipeline", "venue"},
		),
		rowsInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_rows_inserted_total",
				Help: "Total number of funding rows inserted",
			},
			[]string{"pipeline", "venue"},
		),
		rowsUpdated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_rows_updated_total",
				Help: "Total number of online funding rows updated",
			},
			[]string{"venue"},
		),
		symbolErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_symbol_errors_total",
				Help: "Total number of per-symbol sync failures",
			},
			[]string{"pipeline", "venue", "kind"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.jobRunsTotal,
		m.jobDuration,
		m.rowsInserted,
		m.rowsUpdated,
		m.symbolErrors,
	)
	return m
}

// RecordJobRun records one job execution.
func (m *Metrics) RecordJobRun(pipeline, venue, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobRunsTotal.WithLabelValues(pipeline, venue, status).Inc()
	m.jobDuration.WithLabelValues(pipeline, venue).Observe(duration.Seconds())
}

// RecordRowsInserted records inserted row counts.
func (m *Metrics) RecordRowsInserted(pipeline, venue string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.rowsInserted.WithLabelValues(pipeline, venue).Add(float64(count))
}

// RecordRowsUpdated records updated online row counts.
func (m *Metrics) RecordRowsUpdated(venue string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.rowsUpdated.WithLabelValues(venue).Add(float64(count))
}

// RecordSymbolError records one per-symbol failure.
func (m *Metrics) RecordSymbolError(pipeline, venue, kind string) {
	if m == nil {
		return
	}
	m.symbolErrors.WithLabelValues(pipeline, venue, kind).Inc()
}

// GinMiddleware instruments HTTP requests.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		m.httpRequestsTotal.WithLabelValues(
			c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(
			c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the metrics endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics observes the request surface: counts by method and status,
// and latency distribution. The nil value is a no-op.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates Prometheus-backed HTTP metrics, or nil when the
// registry is not initialized.
func NewHTTPMetrics() *HTTPMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()
	return &HTTPMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "davshare_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "davshare_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"method"},
		),
	}
}

// Middleware returns a gin middleware recording every request. On a nil
// receiver it passes requests through untouched.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		method := c.Request.Method
		m.requests.WithLabelValues(method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

// ShareMetrics counts share-link accesses by outcome. The nil value is a
// no-op.
type ShareMetrics struct {
	accesses *prometheus.CounterVec
}

// NewShareMetrics creates Prometheus-backed share metrics, or nil when the
// registry is not initialized.
func NewShareMetrics() *ShareMetrics {
	if !IsEnabled() {
		return nil
	}

	return &ShareMetrics{
		accesses: promauto.With(GetRegistry()).NewCounterVec(
			prometheus.CounterOpts{
				Name: "davshare_share_accesses_total",
				Help: "Total number of share link access attempts",
			},
			[]string{"outcome"},
		),
	}
}

// RecordAccess counts one access attempt with its validation outcome
// ("valid", "not_found", "expired", "limit_reached", "bad_password").
func (m *ShareMetrics) RecordAccess(outcome string) {
	if m == nil {
		return
	}
	m.accesses.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape endpoint for the global registry, or nil when
// metrics are disabled.
func Handler() gin.HandlerFunc {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

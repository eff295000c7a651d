package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsNamespace prefixes every gateway metric.
const metricsNamespace = "matricmcp"

// Metrics holds the Prometheus metrics recorded by the HTTP transport.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RateLimitRejections prometheus.Counter
	StreamDropsTotal    prometheus.Counter
}

// NewMetrics creates and registers all request metrics with the given
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RateLimitRejections: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rate_limit_rejections_total",
				Help:      "Total requests rejected by the rate limiter",
			},
		),
		StreamDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stream_drops_total",
				Help:      "Total messages dropped because an event stream was closed or full",
			},
		),
	}
}

// registerGauges registers the liveness gauges that read current counts on
// scrape.
func registerGauges(reg prometheus.Registerer, sessionCount, streamCount, cacheSize func() int) {
	if sessionCount != nil {
		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_sessions",
				Help:      "Number of live sessions",
			},
			func() float64 { return float64(sessionCount()) },
		)
	}
	if streamCount != nil {
		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "open_streams",
				Help:      "Number of open SSE streams",
			},
			func() float64 { return float64(streamCount()) },
		)
	}
	if cacheSize != nil {
		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "introspection_cache_entries",
				Help:      "Number of cached token introspection results",
			},
			func() float64 { return float64(cacheSize()) },
		)
	}
}

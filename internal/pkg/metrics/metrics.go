package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helsinkimoves",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "helsinkimoves",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "helsinkimoves",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Board metrics
	BoardLoadsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helsinkimoves",
		Subsystem: "board",
		Name:      "loads_started_total",
		Help:      "Total board loads started",
	}, []string{"mode"})

	BoardLoadsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helsinkimoves",
		Subsystem: "board",
		Name:      "loads_discarded_total",
		Help:      "Total board load responses discarded as stale",
	})

	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helsinkimoves",
		Subsystem: "upstream",
		Name:      "errors_total",
		Help:      "Total upstream routing and geocoding failures",
	}, []string{"kind"})

	// Geocoding metrics
	GeocodeRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helsinkimoves",
		Subsystem: "geocode",
		Name:      "requests_total",
		Help:      "Total geocode resolutions attempted",
	})

	GeocodeAmbiguous = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helsinkimoves",
		Subsystem: "geocode",
		Name:      "ambiguous_total",
		Help:      "Total geocode resolutions that returned a choice set",
	})

	ClientErrorReports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helsinkimoves",
		Subsystem: "telemetry",
		Name:      "client_error_reports_total",
		Help:      "Total accepted client error reports",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "helsinkimoves",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active board sessions",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

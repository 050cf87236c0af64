// Package telemetry exposes Prometheus metrics for the IVF server: HTTP
// request metrics recorded by middleware and clinical counters recorded by
// the domain services.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TelemetryConfig holds the telemetry provider configuration.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	MetricsEnabled *bool // nil = use default (true)
}

func (c *TelemetryConfig) metricsOn() bool {
	if c.MetricsEnabled == nil {
		return true
	}
	return *c.MetricsEnabled
}

func (c *TelemetryConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "ivf-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper to create a *bool for TelemetryConfig fields.
func BoolPtr(b bool) *bool {
	return &b
}

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// TelemetryProvider owns a private registry so tests and multiple servers in
// one process do not collide on the global one.
type TelemetryProvider struct {
	cfg      TelemetryConfig
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	embryosGraded      *prometheus.CounterVec
	embryoEvents       *prometheus.CounterVec
	transferSize       prometheus.Histogram
	cycleTransitions   *prometheus.CounterVec
	rejectedTransition *prometheus.CounterVec
}

// NewTelemetryProvider creates the provider and registers all collectors.
func NewTelemetryProvider(cfg TelemetryConfig) *TelemetryProvider {
	cfg.applyDefaults()
	constLabels := prometheus.Labels{"service": cfg.ServiceName, "env": cfg.Environment}

	tp := &TelemetryProvider{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_server_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds.",
			Buckets:     defaultDurationBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "route", "status_code"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "http_server_active_requests",
			Help:        "Number of active HTTP requests.",
			ConstLabels: constLabels,
		}),
		embryosGraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ivf_embryos_graded_total",
			Help:        "Embryo observations graded, by stage and quality.",
			ConstLabels: constLabels,
		}, []string{"stage", "quality"}),
		embryoEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ivf_embryo_events_total",
			Help:        "Clinical events applied to embryos.",
			ConstLabels: constLabels,
		}, []string{"event"}),
		transferSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ivf_transfer_embryos",
			Help:        "Number of embryos per transfer.",
			Buckets:     []float64{1, 2, 3},
			ConstLabels: constLabels,
		}),
		cycleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ivf_cycle_transitions_total",
			Help:        "Accepted cycle status transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		rejectedTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ivf_cycle_transitions_rejected_total",
			Help:        "Rejected cycle status transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
	}

	tp.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		tp.requestDuration, tp.activeRequests,
		tp.embryosGraded, tp.embryoEvents, tp.transferSize,
		tp.cycleTransitions, tp.rejectedTransition,
	)
	return tp
}

// Registry returns the provider's registry, mainly for tests.
func (tp *TelemetryProvider) Registry() *prometheus.Registry { return tp.registry }

// Enabled reports whether metrics collection is on.
func (tp *TelemetryProvider) Enabled() bool { return tp != nil && tp.cfg.metricsOn() }

// EmbryoGraded counts one classification. Safe on a nil provider.
func (tp *TelemetryProvider) EmbryoGraded(stage, quality string) {
	if !tp.Enabled() {
		return
	}
	tp.embryosGraded.WithLabelValues(stage, quality).Inc()
}

// EmbryoEvent counts one applied clinical event.
func (tp *TelemetryProvider) EmbryoEvent(event string) {
	if !tp.Enabled() {
		return
	}
	tp.embryoEvents.WithLabelValues(event).Inc()
}

// Transfer records the number of embryos in one transfer.
func (tp *TelemetryProvider) Transfer(n int) {
	if !tp.Enabled() {
		return
	}
	tp.transferSize.Observe(float64(n))
}

// CycleTransition counts a status change, accepted or not.
func (tp *TelemetryProvider) CycleTransition(from, to string, accepted bool) {
	if !tp.Enabled() {
		return
	}
	if accepted {
		tp.cycleTransitions.WithLabelValues(from, to).Inc()
		return
	}
	tp.rejectedTransition.WithLabelValues(from, to).Inc()
}

// MetricsMiddleware returns an Echo middleware that records HTTP server metrics.
func (tp *TelemetryProvider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tp.Enabled() {
				return next(c)
			}

			tp.activeRequests.Inc()
			start := time.Now()
			err := next(c)
			tp.activeRequests.Dec()

			// Route pattern, not the raw path, to keep label cardinality bounded.
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			tp.requestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// PrometheusHandler serves the registry in the Prometheus exposition format.
func (tp *TelemetryProvider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(tp.registry, promhttp.HandlerOpts{}))
}

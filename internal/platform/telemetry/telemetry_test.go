package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ---------------------------------------------------------------------------
// Config defaults
// ---------------------------------------------------------------------------

func TestTelemetryConfig_Defaults(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})

	if tp.cfg.ServiceName != "ivf-server" {
		t.Fatalf("expected default ServiceName='ivf-server', got %q", tp.cfg.ServiceName)
	}
	if tp.cfg.ServiceVersion != "0.0.0" {
		t.Fatalf("expected default ServiceVersion='0.0.0', got %q", tp.cfg.ServiceVersion)
	}
	if tp.cfg.Environment != "development" {
		t.Fatalf("expected default Environment='development', got %q", tp.cfg.Environment)
	}
	if !tp.Enabled() {
		t.Fatal("expected metrics enabled by default")
	}
}

func TestNilProvider_IsNoop(t *testing.T) {
	var tp *TelemetryProvider
	tp.EmbryoGraded("cleavage", "good")
	tp.EmbryoEvent("freeze")
	tp.Transfer(2)
	tp.CycleTransition("planning", "stimulation", true)
	if tp.Enabled() {
		t.Fatal("nil provider must report disabled")
	}
}

func TestDisabled_RecordsNothing(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{MetricsEnabled: BoolPtr(false)})
	tp.EmbryoEvent("freeze")

	if n := testutil.CollectAndCount(tp.embryoEvents); n != 0 {
		t.Fatalf("expected no series when disabled, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Domain counters
// ---------------------------------------------------------------------------

func TestEmbryoGraded_CountsByLabel(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	tp.EmbryoGraded("blastocyst", "excellent")
	tp.EmbryoGraded("blastocyst", "excellent")
	tp.EmbryoGraded("cleavage", "fair")

	if v := testutil.ToFloat64(tp.embryosGraded.WithLabelValues("blastocyst", "excellent")); v != 2 {
		t.Errorf("expected 2 excellent blastocysts, got %v", v)
	}
	if v := testutil.ToFloat64(tp.embryosGraded.WithLabelValues("cleavage", "fair")); v != 1 {
		t.Errorf("expected 1 fair cleavage, got %v", v)
	}
}

func TestCycleTransition_SplitsAcceptedAndRejected(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	tp.CycleTransition("planning", "stimulation", true)
	tp.CycleTransition("completed", "planning", false)

	if v := testutil.ToFloat64(tp.cycleTransitions.WithLabelValues("planning", "stimulation")); v != 1 {
		t.Errorf("expected 1 accepted transition, got %v", v)
	}
	if v := testutil.ToFloat64(tp.rejectedTransition.WithLabelValues("completed", "planning")); v != 1 {
		t.Errorf("expected 1 rejected transition, got %v", v)
	}
}

// ---------------------------------------------------------------------------
// MetricsMiddleware
// ---------------------------------------------------------------------------

func TestMetricsMiddleware_Labels(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})

	e := echo.New()
	e.Use(tp.MetricsMiddleware())
	e.POST("/api/v1/cycles/:id/embryos", func(c echo.Context) error {
		return c.String(http.StatusCreated, "created")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cycles/abc/embryos", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if n := testutil.CollectAndCount(tp.requestDuration, "http_server_request_duration_seconds"); n != 1 {
		t.Fatalf("expected 1 labeled series, got %d", n)
	}
	if v := testutil.ToFloat64(tp.activeRequests); v != 0 {
		t.Fatalf("expected active_requests=0 after request, got %v", v)
	}
}

func TestMetricsMiddleware_ActiveRequests(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})

	var during float64
	e := echo.New()
	e.Use(tp.MetricsMiddleware())
	e.GET("/slow", func(c echo.Context) error {
		during = testutil.ToFloat64(tp.activeRequests)
		return c.String(http.StatusOK, "ok")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))

	if during != 1 {
		t.Fatalf("expected active_requests=1 during handling, got %v", during)
	}
}

// ---------------------------------------------------------------------------
// PrometheusHandler
// ---------------------------------------------------------------------------

func TestPrometheusHandler_Exposition(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	tp.EmbryoEvent("thaw")

	e := echo.New()
	e.GET("/metrics", tp.PrometheusHandler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `ivf_embryo_events_total{env="development",event="thaw",service="ivf-server"} 1`) {
		t.Errorf("expected embryo event series in output, got:\n%s", body)
	}
}

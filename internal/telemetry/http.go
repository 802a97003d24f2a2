package telemetry

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelLog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
)

var (
	otelMetricsEnabled     bool
	otelHTTPRequestsTotal  metric.Int64Counter
	otelHTTPRequestSeconds metric.Float64Histogram
)

func initHTTPMetricsInstruments(serviceName string) {
	meter := otel.Meter(serviceName)

	var err error
	otelHTTPRequestsTotal, err = meter.Int64Counter(
		"userdesk_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return
	}

	otelHTTPRequestSeconds, err = meter.Float64Histogram(
		"userdesk_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return
	}

	otelMetricsEnabled = true
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if rp := strings.TrimSpace(rc.RoutePattern()); rp != "" {
			return rp
		}
	}
	return "unknown_route"
}

func ChiTraceMiddleware(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			ctx, span := tracer.Start(r.Context(), "HTTP "+r.Method+" "+r.URL.Path)
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			)

			next.ServeHTTP(sw, r.WithContext(ctx))

			route := routePattern(r)
			span.SetName("HTTP " + r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", sw.status),
			)
			if sw.status >= 500 {
				span.SetStatus(codes.Error, "server_error")
			}
		})
	}
}

func ChiMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		if !otelMetricsEnabled {
			return
		}
		attrs := metric.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", routePattern(r)),
			attribute.Int("http.status_code", sw.status),
		)
		otelHTTPRequestsTotal.Add(r.Context(), 1, attrs)
		otelHTTPRequestSeconds.Record(r.Context(), time.Since(start).Seconds(), attrs)
	})
}

func ChiLogMiddleware(serviceName string) func(http.Handler) http.Handler {
	logger := global.Logger(serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			severity := severityForStatus(sw.status)
			var rec otelLog.Record
			rec.SetEventName("http.request")
			rec.SetTimestamp(time.Now())
			rec.SetSeverity(severity)
			rec.SetSeverityText(severityText(severity))
			rec.SetBody(otelLog.StringValue("request completed"))
			rec.AddAttributes(
				otelLog.String("http.method", r.Method),
				otelLog.String("http.route", routePattern(r)),
				otelLog.String("http.target", r.URL.Path),
				otelLog.Int("http.status_code", sw.status),
				otelLog.Int64("http.duration_ms", time.Since(start).Milliseconds()),
			)

			logger.Emit(r.Context(), rec)
		})
	}
}

func severityForStatus(status int) otelLog.Severity {
	switch {
	case status >= 500:
		return otelLog.SeverityError
	case status >= 400:
		return otelLog.SeverityWarn
	default:
		return otelLog.SeverityInfo
	}
}

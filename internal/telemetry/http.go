package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// HTTPInstrumentationName names the control plane tracer and meter
const HTTPInstrumentationName = "github.com/stacklok/npm-sync/http"

// HTTPMiddleware traces and counts control plane requests. Nil providers
// disable the corresponding half.
func HTTPMiddleware(tp trace.TracerProvider, mp metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	var (
		tracer   trace.Tracer
		duration metric.Float64Histogram
	)
	if tp != nil {
		tracer = tp.Tracer(HTTPInstrumentationName)
	}
	if mp != nil {
		var err error
		duration, err = mp.Meter(HTTPInstrumentationName).Float64Histogram(
			"npm_sync_http_request_duration_seconds",
			metric.WithDescription("Duration of control plane requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return nil, err
		}
	}
	if tracer == nil && duration == nil {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	propagator := otel.GetTextMapPropagator()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			var span trace.Span
			if tracer != nil {
				ctx, span = tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(semconv.HTTPRequestMethodKey.String(r.Method)),
				)
				defer span.End()
			}

			next.ServeHTTP(ww, r.WithContext(ctx))

			// the pattern, not the raw path, keeps span names and labels low-cardinality
			route := routePattern(r)
			status := ww.Status()
			if span != nil {
				span.SetName(fmt.Sprintf("%s %s", r.Method, route))
				span.SetAttributes(
					semconv.HTTPRouteKey.String(route),
					semconv.HTTPResponseStatusCode(status),
				)
				if status >= 500 {
					span.SetStatus(codes.Error, http.StatusText(status))
				}
			}
			if duration != nil {
				duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", route),
					attribute.String("status_code", strconv.Itoa(status)),
				))
			}
		})
	}, nil
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unknown_route"
}

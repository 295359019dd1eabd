package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UnmatchedRoute labels requests that no registered pattern served.
const UnmatchedRoute = "unmatched"

type routeKey struct{}

// routeSlot carries the matched mux pattern back out to the middleware that
// created it. ServeMux sets Pattern on the request it hands to the handler,
// which outer middleware never sees.
type routeSlot struct {
	pattern string
}

func withRouteSlot(r *http.Request) (*http.Request, *routeSlot) {
	if slot, ok := r.Context().Value(routeKey{}).(*routeSlot); ok {
		return r, slot
	}
	slot := &routeSlot{}
	return r.WithContext(context.WithValue(r.Context(), routeKey{}, slot)), slot
}

// RecordRoute publishes the mux pattern that matched r to the metrics and
// tracing middleware. Route handlers call it before doing any work.
func RecordRoute(r *http.Request) {
	if r.Pattern == "" {
		return
	}
	if slot, ok := r.Context().Value(routeKey{}).(*routeSlot); ok {
		slot.pattern = r.Pattern
	}
	span := trace.SpanFromContext(r.Context())
	if span.IsRecording() {
		span.SetName(r.Pattern)
		span.SetAttributes(attribute.String("http.route", routePath(r.Pattern)))
	}
}

// routePath strips the method from a pattern: "GET /posts/{postId}" becomes
// "/posts/{postId}".
func routePath(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !mrw.wroteHeader {
		mrw.WriteHeader(http.StatusOK)
	}
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// HTTPMetrics is a middleware that records request duration, count and
// response size labelled by method, route pattern and status. Health check
// endpoints are excluded. Requests that never reach RecordRoute are labelled
// UnmatchedRoute so unknown paths cannot grow label cardinality.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			r, slot := withRouteSlot(r)

			next.ServeHTTP(mrw, r)

			route := UnmatchedRoute
			if slot.pattern != "" {
				route = routePath(slot.pattern)
			}
			metrics.ObserveHTTPRequest(
				r.Method,
				route,
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				mrw.size,
			)
		})
	}
}

package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/weighright/portal/pkg/logger"
)

// RequestLogger is the slice of the application logger the middleware needs
type RequestLogger interface {
	HTTPRequest(ctx context.Context, method, path, userAgent, clientIP string, statusCode int, duration int64, details map[string]interface{})
}

// MonitoringMiddleware combines metrics, tracing, and logging
type MonitoringMiddleware struct {
	metrics *MetricsCollector
	tracing *TracingManager
	logger  RequestLogger
}

// NewMonitoringMiddleware creates a new monitoring middleware
func NewMonitoringMiddleware(metrics *MetricsCollector, tracing *TracingManager, logger RequestLogger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		tracing: tracing,
		logger:  logger,
	}
}

// HTTPMiddleware creates comprehensive HTTP monitoring middleware
func (mm *MonitoringMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		ctx = mm.tracing.ExtractTraceContext(ctx, r.Header)

		route := routeTemplate(r)
		ctx, span := mm.tracing.StartHTTPSpan(ctx, r.Method, route)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.user_agent", r.UserAgent()),
			attribute.String("http.remote_addr", r.RemoteAddr),
			attribute.String("request.id", requestID),
		)

		if traceID := mm.tracing.TraceIDFromContext(ctx); traceID != "" {
			ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
		}

		wrapper := &monitoringResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		wrapper.Header().Set("X-Request-ID", requestID)
		mm.tracing.InjectTraceContext(ctx, wrapper.Header())

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		duration := time.Since(start)
		mm.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapper.statusCode), duration)

		span.SetAttributes(
			attribute.Int("http.status_code", wrapper.statusCode),
			attribute.Int64("http.response_size", wrapper.bytesWritten),
		)
		if wrapper.statusCode >= 400 {
			span.SetStatus(codes.Error, http.StatusText(wrapper.statusCode))
		}

		details := map[string]interface{}{
			"bytes_written": wrapper.bytesWritten,
			"span_id":       mm.tracing.SpanIDFromContext(ctx),
		}

		mm.logger.HTTPRequest(
			ctx,
			r.Method,
			r.URL.Path,
			r.UserAgent(),
			r.RemoteAddr,
			wrapper.statusCode,
			duration.Milliseconds(),
			details,
		)
	})
}

// routeTemplate keeps metric label cardinality bounded by using the mux
// route pattern instead of the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// monitoringResponseWriter wraps http.ResponseWriter to capture metrics
type monitoringResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (mrw *monitoringResponseWriter) WriteHeader(code int) {
	mrw.statusCode = code
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *monitoringResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.bytesWritten += int64(n)
	return n, err
}

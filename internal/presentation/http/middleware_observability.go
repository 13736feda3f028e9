package httppresentation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerRequestID = "X-Request-ID"
	unknownRoute    = "unknown"
)

// withTrace opens a server span, continuing a W3C parent when the caller sent one.
// The span is renamed to the chi route pattern once routing has run.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	prop := otel.GetTextMapPropagator()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parent := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := h.tracer.Start(parent, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		rec := recorderFor(w)
		next.ServeHTTP(rec, r.WithContext(ctx))

		route := routePattern(r)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", rec.status),
		)
	})
}

// withRequestLogger injects a request-scoped logger carrying request_id and trace ids,
// generating and echoing X-Request-ID when the caller sent none.
func (h *Handler) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(headerRequestID, rid)

		fields := []observability.Field{observability.F("request_id", rid)}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		ctx := logctx.With(r.Context(), h.log.With(fields...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withAccessLog writes a single access log after the handler completes.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorderFor(w)

		next.ServeHTTP(rec, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routePattern(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", rec.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withHTTPMetrics records request count and latency labelled by route template, never the raw path.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorderFor(w)

		next.ServeHTTP(rec, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routePattern(r)),
			observability.L("status", strconv.Itoa(rec.status)),
		}
		h.requests.Add(1, labels...)
		h.latency.Observe(time.Since(start).Seconds(), labels...)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unknownRoute
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// recorderFor reuses an outer recorder so nested middleware agree on the status.
func recorderFor(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

package workerpresentation

import (
	"context"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithJobContext binds a job-scoped logger to ctx for background work.
// It carries job_id (generated when attrs has none), trace/span ids when ctx holds a valid span,
// and the caller's low-cardinality attrs such as "job" or "order_id".
func WithJobContext(ctx context.Context, base observability.Logger, attrs map[string]string) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, len(attrs)+3)

	jobID := attrs["job_id"]
	if jobID == "" {
		jobID = uuid.NewString()
	}
	fields = append(fields, observability.F("job_id", jobID))

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	for k, v := range attrs {
		if k == "job_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

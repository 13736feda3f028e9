// Package instrument carries the span + RED metrics + use_case_done log shape shared by every use case.
package instrument

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Kit holds the instruments a use case needs. Build it once in the constructor.
type Kit struct {
	log     observability.Logger
	tracer  observability.Tracer
	metrics observability.Metrics

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func New(tel observability.Observability, service string) Kit {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Kit{
		log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		metrics:      m,
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

func (k Kit) Logger() observability.Logger { return k.log }

func (k Kit) Counter(key observability.MetricKey) observability.Counter {
	return k.metrics.Counter(key)
}

// Run tracks one use case execution. Outcome starts as success/OK.
type Run struct {
	kit     Kit
	ctx     context.Context
	span    trace.Span
	logger  observability.Logger
	useCase string
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Start opens the span and binds a request-scoped logger carrying use_case.
func (k Kit) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	logger := logctx.FromOr(ctx, k.log).With(observability.F("use_case", useCase))
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := k.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	return ctx, &Run{
		kit:     k,
		ctx:     ctx,
		span:    span,
		logger:  logger,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

// Fail marks the run as an error with a machine readable status.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Status overrides the status text without touching the outcome.
func (r *Run) Status(status string) {
	r.status = status
}

func (r *Run) With(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

func (r *Run) Logger() observability.Logger { return r.logger }

func (r *Run) Event(name string, attrs ...attribute.KeyValue) {
	if r.span != nil {
		r.span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

func (r *Run) SetAttributes(attrs ...attribute.KeyValue) {
	if r.span != nil {
		r.span.SetAttributes(attrs...)
	}
}

// End closes the span, records RED metrics and writes the use_case_done line.
func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome == "success" {
		r.outcome = "error"
		if r.status == "OK" {
			r.status = "FAILED"
		}
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	if r.kit.reqCounter != nil {
		r.kit.reqCounter.Add(1,
			observability.L("use_case", r.useCase),
			observability.L("outcome", r.outcome),
		)
	}
	if r.kit.durHistogram != nil {
		r.kit.durHistogram.Observe(lat,
			observability.L("use_case", r.useCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	fields = append(fields, r.fields...)
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	r.logger.Info("use_case_done", fields...)
}

// External records one call to a peer outside the process.
func (k Kit) External(peer, endpoint, outcome string, start time.Time) {
	if k.extCounter != nil {
		k.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
	}
	if k.extHistogram != nil {
		k.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
}

// Publish sends event with a short timeout and records it as an external call to the outbox.
func (k Kit) Publish(ctx context.Context, publisher domoutbox.Publisher, event domoutbox.Event) error {
	if publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	k.External(publishPeer, event.EventName(), outcome, start)
	return err
}

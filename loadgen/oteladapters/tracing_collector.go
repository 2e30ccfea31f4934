package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

const attrStatus = "status"

type spanStatus struct {
	code        codes.Code
	description string
}

// spanStatuses maps the status labels used by the load generator and the simulation.
// Labels not listed here are recorded as a plain span attribute.
var spanStatuses = map[string]spanStatus{
	loadgen.StatusLabelSuccess: {code: codes.Ok},
	"ok":                       {code: codes.Ok},
	"completed":                {code: codes.Ok},
	loadgen.StatusLabelError:   {code: codes.Error, description: "operation failed"},
	"failed":                   {code: codes.Error, description: "operation failed"},
	"failure":                  {code: codes.Error, description: "operation failed"},
	"cancelled":                {code: codes.Error, description: "operation cancelled"},
	"canceled":                 {code: codes.Error, description: "operation cancelled"},
	"timeout":                  {code: codes.Error, description: "operation timed out"},
}

// TracingCollector turns loadgen spans into OpenTelemetry spans on one tracer.
type TracingCollector struct {
	tracer trace.Tracer
}

func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, loadgen.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan ends the span. Span contexts not started by this collector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx loadgen.SpanContext, status string, attrs map[string]string) {
	s, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	s.span.SetAttributes(toAttributes(attrs)...)
	s.SetStatus(status)
	s.span.End()
}

// OTelSpanContext wraps a live trace.Span.
type OTelSpanContext struct {
	span trace.Span
}

func (s *OTelSpanContext) SetStatus(status string) {
	mapped, known := spanStatuses[status]
	if !known {
		s.span.SetAttributes(attribute.String(attrStatus, status))
		return
	}

	s.span.SetStatus(mapped.code, mapped.description)
}

func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var (
	_ loadgen.TracingCollector = (*TracingCollector)(nil)
	_ loadgen.SpanContext      = (*OTelSpanContext)(nil)
)

package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/oteladapters"
)

func newTracingCollector() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func spanAttribute(span tracetest.SpanStub, key string) (string, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}

	return "", false
}

func Test_TracingCollector_When_SpanFinishedWithSuccess_ThenItIsExportedWithAttributesAndOk(t *testing.T) {
	// setup
	collector, exporter := newTracingCollector()

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), "loadgen.phase", map[string]string{loadgen.LabelPhase: "create_campaigns"})
	collector.FinishSpan(spanCtx, loadgen.StatusLabelSuccess, map[string]string{"submitted": "20"})

	// assert
	assert.NotNil(t, ctx)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "loadgen.phase", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	phase, found := spanAttribute(spans[0], loadgen.LabelPhase)
	assert.True(t, found)
	assert.Equal(t, "create_campaigns", phase)

	submitted, found := spanAttribute(spans[0], "submitted")
	assert.True(t, found)
	assert.Equal(t, "20", submitted)
}

func Test_TracingCollector_When_SpanFinishedWithError_ThenStatusIsError(t *testing.T) {
	// setup
	collector, exporter := newTracingCollector()

	// act
	_, spanCtx := collector.StartSpan(context.Background(), "pgbackend.query", nil)
	collector.FinishSpan(spanCtx, loadgen.StatusLabelError, nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func Test_TracingCollector_When_NestedSpansStarted_ThenChildHasParent(t *testing.T) {
	// setup
	collector, exporter := newTracingCollector()

	// act
	parentCtx, parent := collector.StartSpan(context.Background(), "parent", nil)
	_, child := collector.StartSpan(parentCtx, "child", nil)
	collector.FinishSpan(child, loadgen.StatusLabelSuccess, nil)
	collector.FinishSpan(parent, loadgen.StatusLabelSuccess, nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func Test_OTelSpanContext_When_AttributeAndUnknownStatusSet_ThenBothAreAttributes(t *testing.T) {
	// setup
	collector, exporter := newTracingCollector()

	// act
	_, spanCtx := collector.StartSpan(context.Background(), "op", nil)
	spanCtx.AddAttribute(loadgen.LabelProcedure, "report_bids")
	collector.FinishSpan(spanCtx, "partial", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	procedure, found := spanAttribute(spans[0], loadgen.LabelProcedure)
	assert.True(t, found)
	assert.Equal(t, "report_bids", procedure)

	status, found := spanAttribute(spans[0], "status")
	assert.True(t, found)
	assert.Equal(t, "partial", status)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

type foreignSpanContext struct{}

func (foreignSpanContext) SetStatus(string)            {}
func (foreignSpanContext) AddAttribute(string, string) {}

func Test_TracingCollector_When_FinishingForeignSpanContext_ThenNothingIsExported(t *testing.T) {
	// setup
	collector, exporter := newTracingCollector()

	// act
	collector.FinishSpan(foreignSpanContext{}, loadgen.StatusLabelSuccess, nil)

	// assert
	assert.Empty(t, exporter.GetSpans())
}

func Test_TracingCollector_When_FinishedWithTimeout_ThenSpanIsAnErrorWithDescription(t *testing.T) {
	// setup
	collector, exporter := newTracingCollector()

	// act
	_, spanCtx := collector.StartSpan(context.Background(), "pgbackend.query", nil)
	collector.FinishSpan(spanCtx, "timeout", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "operation timed out", spans[0].Status.Description)
}

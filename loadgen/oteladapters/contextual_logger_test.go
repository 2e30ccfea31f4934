package oteladapters_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/oteladapters"
)

// capturingExporter keeps every exported record.
type capturingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *capturingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}

	return nil
}

func (e *capturingExporter) Shutdown(context.Context) error {
	return nil
}

func (e *capturingExporter) ForceFlush(context.Context) error {
	return nil
}

func (e *capturingExporter) captured() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]sdklog.Record(nil), e.records...)
}

func newCapturingProvider(t *testing.T) (*sdklog.LoggerProvider, *capturingExporter) {
	t.Helper()

	exporter := &capturingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return provider, exporter
}

func Test_SlogBridgeLogger_When_LoggingAllLevels_ThenProviderReceivesEachSeverity(t *testing.T) {
	// setup
	provider, exporter := newCapturingProvider(t)
	logger := oteladapters.NewSlogBridgeLogger("overspend-flagger", provider)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message")
	logger.InfoContext(ctx, "info message")
	logger.WarnContext(ctx, "warn message")
	logger.ErrorContext(ctx, "error message")

	// assert
	records := exporter.captured()
	require.Len(t, records, 4)
	assert.Equal(t, log.SeverityDebug, records[0].Severity())
	assert.Equal(t, log.SeverityInfo, records[1].Severity())
	assert.Equal(t, log.SeverityWarn, records[2].Severity())
	assert.Equal(t, log.SeverityError, records[3].Severity())
	assert.Equal(t, "error message", records[3].Body().AsString())
}

func Test_SlogBridgeLogger_When_LoggingWithArgs_ThenTheyBecomeRecordAttributes(t *testing.T) {
	// setup
	provider, exporter := newCapturingProvider(t)
	logger := oteladapters.NewSlogBridgeLogger("overspend-flagger", provider)

	// act
	logger.WarnContext(context.Background(), "operation failed", "class", "RUN_CAMPAIGN", "status", "ERROR")

	// assert
	records := exporter.captured()
	require.Len(t, records, 1)
	assert.Equal(t, "operation failed", records[0].Body().AsString())

	attrs := make(map[string]string)
	records[0].WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})

	assert.Equal(t, map[string]string{"class": "RUN_CAMPAIGN", "status": "ERROR"}, attrs)
}

func Test_SlogBridgeLogger_When_LoggingInsideASpan_ThenRecordCarriesTheTraceContext(t *testing.T) {
	// setup
	provider, exporter := newCapturingProvider(t)
	logger := oteladapters.NewSlogBridgeLogger("overspend-flagger", provider)
	tracerProvider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tracerProvider.Shutdown(context.Background()) })

	ctx, span := tracerProvider.Tracer("test").Start(context.Background(), "flag_overspend")
	defer span.End()

	// act
	logger.InfoContext(ctx, "flagged campaigns")

	// assert
	records := exporter.captured()
	require.Len(t, records, 1)
	assert.Equal(t, span.SpanContext().TraceID(), records[0].TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), records[0].SpanID())
}

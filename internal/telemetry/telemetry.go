// Package telemetry wires the OpenTelemetry SDK providers used by the command.
//
// Traces and logs go to an OTLP gRPC collector, metrics are exposed on a Prometheus scrape
// endpoint. Both are optional; Setup returns a nil Provider when neither is configured.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

const (
	defaultGRPCPort    = "4317"
	exporterTimeout    = 10 * time.Second
	metricsPath        = "/metrics"
	readHeaderTimeout  = 5 * time.Second
	defaultServiceName = "overspend-flagger"
)

const (
	logMsgTracingEnabled  = "telemetry tracing enabled"
	logMsgLogsEnabled     = "telemetry log export enabled"
	logMsgMetricsEnabled  = "telemetry metrics enabled"
	logMsgMetricsServeErr = "telemetry metrics server failed"
	logMsgExporterError   = "telemetry exporter error"
	logMsgShutdownFailure = "telemetry shutdown failed"

	logAttrEndpoint = "endpoint"
	logAttrInsecure = "insecure"
	logAttrListen   = "listen"
	logAttrError    = "error"
)

var (
	// ErrInvalidEndpoint is returned when the OTLP endpoint cannot be parsed.
	ErrInvalidEndpoint = errors.New("invalid otlp endpoint")

	// ErrSetupFailed wraps failures to start an exporter or the metrics listener.
	ErrSetupFailed = errors.New("telemetry setup failed")

	// ErrShutdownFailed wraps failures while flushing or stopping providers.
	ErrShutdownFailed = errors.New("telemetry shutdown failed")
)

// Config selects which telemetry pipelines are started.
type Config struct {
	ServiceName   string
	OTLPEndpoint  string
	MetricsListen string
}

func (c Config) empty() bool {
	return strings.TrimSpace(c.OTLPEndpoint) == "" && strings.TrimSpace(c.MetricsListen) == ""
}

// Provider owns the SDK providers and the metrics HTTP server.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
	meterProvider  *sdkmetric.MeterProvider
	metricsServer  *http.Server
	metricsLn      net.Listener
	logger         loadgen.Logger
}

type otelErrorHandler struct {
	logger loadgen.Logger
}

func (h otelErrorHandler) Handle(err error) {
	if err == nil || h.logger == nil {
		return
	}

	h.logger.Warn(logMsgExporterError, logAttrError, err.Error())
}

// Setup starts the configured pipelines and installs them as the global providers.
// It returns nil, nil when the config enables nothing.
func Setup(ctx context.Context, cfg Config, logger loadgen.Logger) (*Provider, error) {
	if cfg.empty() {
		return nil, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}

	p := &Provider{logger: logger}

	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		if err := p.setupTracing(ctx, endpoint, res); err != nil {
			return nil, err
		}

		if err := p.setupLogs(ctx, endpoint, res); err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
	}

	if listen := strings.TrimSpace(cfg.MetricsListen); listen != "" {
		if err := p.setupMetrics(listen, res); err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
	}

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
	otel.SetErrorHandler(otelErrorHandler{logger: logger})

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, endpoint string, res *resource.Resource) error {
	target, insecure, err := resolveOTLPTarget(endpoint)
	if err != nil {
		return err
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(target),
		otlptracegrpc.WithTimeout(exporterTimeout),
	}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return errors.Join(ErrSetupFailed, err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(p.tracerProvider)

	p.logInfo(logMsgTracingEnabled, logAttrEndpoint, target, logAttrInsecure, insecure)

	return nil
}

// setupLogs exports log records to the same collector as the traces.
func (p *Provider) setupLogs(ctx context.Context, endpoint string, res *resource.Resource) error {
	target, insecure, err := resolveOTLPTarget(endpoint)
	if err != nil {
		return err
	}

	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(target),
		otlploggrpc.WithTimeout(exporterTimeout),
	}
	if insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return errors.Join(ErrSetupFailed, err)
	}

	p.loggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(p.loggerProvider)

	p.logInfo(logMsgLogsEnabled, logAttrEndpoint, target)

	return nil
}

func (p *Provider) setupMetrics(listen string, res *resource.Resource) error {
	registry := prometheus.NewRegistry()

	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return errors.Join(ErrSetupFailed, err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(p.meterProvider)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.Join(ErrSetupFailed, err)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	p.metricsLn = ln
	p.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		if err := p.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if p.logger != nil {
				p.logger.Warn(logMsgMetricsServeErr, logAttrError, err.Error())
			}
		}
	}()

	p.logInfo(logMsgMetricsEnabled, logAttrListen, ln.Addr().String())

	return nil
}

// Meter returns a meter from the configured provider, or from the global one when metrics are off.
func (p *Provider) Meter(name string) metric.Meter {
	if p == nil || p.meterProvider == nil {
		return otel.Meter(name)
	}

	return p.meterProvider.Meter(name)
}

// Tracer returns a tracer from the configured provider, or from the global one when tracing is off.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.tracerProvider == nil {
		return otel.Tracer(name)
	}

	return p.tracerProvider.Tracer(name)
}

// LoggerProvider returns the exporting log provider, or the global one when log export is off.
func (p *Provider) LoggerProvider() log.LoggerProvider {
	if p == nil || p.loggerProvider == nil {
		return global.GetLoggerProvider()
	}

	return p.loggerProvider
}

// LogsEnabled reports whether log records are exported.
func (p *Provider) LogsEnabled() bool {
	return p != nil && p.loggerProvider != nil
}

// MetricsEnabled reports whether a meter provider was configured.
func (p *Provider) MetricsEnabled() bool {
	return p != nil && p.meterProvider != nil
}

// TracingEnabled reports whether a tracer provider was configured.
func (p *Provider) TracingEnabled() bool {
	return p != nil && p.tracerProvider != nil
}

// MetricsAddr returns the bound address of the metrics listener, or "" when metrics are off.
func (p *Provider) MetricsAddr() string {
	if p == nil || p.metricsLn == nil {
		return ""
	}

	return p.metricsLn.Addr().String()
}

// Shutdown flushes and stops everything Setup started. It is safe on a nil Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error

	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if p.metricsServer != nil {
		if err := p.metricsServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	} else if p.metricsLn != nil {
		_ = p.metricsLn.Close()
	}

	if p.loggerProvider != nil {
		if err := p.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		err := errors.Join(append([]error{ErrShutdownFailed}, errs...)...)
		if p.logger != nil {
			p.logger.Warn(logMsgShutdownFailure, logAttrError, err.Error())
		}

		return err
	}

	return nil
}

func (p *Provider) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

// resolveOTLPTarget accepts host, host:port, grpc://host[:port] or grpcs://host[:port].
// A bare host gets the default OTLP gRPC port. Only grpcs is dialed with TLS.
func resolveOTLPTarget(raw string) (string, bool, error) {
	if !strings.Contains(raw, "://") {
		endpoint := raw
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			endpoint = net.JoinHostPort(endpoint, defaultGRPCPort)
		}

		return endpoint, true, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, errors.Join(ErrInvalidEndpoint, err)
	}

	var insecure bool

	switch strings.ToLower(u.Scheme) {
	case "grpc":
		insecure = true
	case "grpcs":
		insecure = false
	default:
		return "", false, errors.Join(ErrInvalidEndpoint, errors.New("unsupported scheme "+u.Scheme))
	}

	if u.Host == "" {
		return "", false, errors.Join(ErrInvalidEndpoint, errors.New("missing host"))
	}

	endpoint := u.Host
	if u.Port() == "" {
		endpoint = net.JoinHostPort(u.Hostname(), defaultGRPCPort)
	}

	return endpoint, insecure, nil
}

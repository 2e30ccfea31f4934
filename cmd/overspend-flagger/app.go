package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AntonStoeckl/overspend-loadgen-go/internal/telemetry"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/oteladapters"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pacer"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend"
	"github.com/AntonStoeckl/overspend-loadgen-go/overspend"
)

const (
	appName = "overspend-flagger"

	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 1
	exitQueryFailed = 2

	shutdownTimeout = 10 * time.Second
	summaryFileMode = 0o644

	logMsgRunFailed         = "run failed"
	logMsgTelemetryShutdown = "telemetry shutdown failed"
	logMsgCloseFailed       = "closing backend failed"
	logMsgSchemaReady       = "campaign schema ensured"
	logMsgSummaryWritten    = "summary json written"
	logAttrError            = "error"
	logAttrPath             = "path"
)

type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func submain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	cmd := a.newRootCommand()
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		slog.New(slog.NewTextHandler(stderr, nil)).Error(logMsgRunFailed, logAttrError, err.Error())
	}

	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, overspend.ErrSizingQueryFailed):
		return exitQueryFailed
	default:
		return exitFailure
	}
}

func (a *app) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName + " hostnames campaigncount tpms durationseconds queryinterval budget adcount",
		Short:         "Simulates bid reports against campaign budgets and flags overspending campaigns",
		SilenceErrors: true,
		Example: `
  # two endpoints, 1000 campaigns, 5 ops/ms, 60s benchmark, overspend report every 10s
  overspend-flagger db1,db2:5433 1000 5 60 10 500 3

  # token bucket pacing, JSON logs, Prometheus scrape endpoint
  OVERSPEND_LOG_FORMAT=json overspend-flagger --pacing token --metrics-listen :9464 localhost 100 1 10 2 500 3
`,
		Args: func(cmd *cobra.Command, args []string) error {
			return checkArgCount(args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseArgs(args)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			s, err := loadSettings(a.v)
			if err != nil {
				return err
			}

			return a.run(cmd.Context(), args, p, s)
		},
	}

	// Usage and help are diagnostics; stdout carries only parameters and the summary.
	cmd.SetOut(a.stderr)
	cmd.SetErr(a.stderr)

	registerFlags(cmd.Flags())
	if err := bindFlags(a.v, cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func (a *app) run(ctx context.Context, args []string, p params, s settings) error {
	logger := newLogger(a.stderr, s)

	_, _ = fmt.Fprintf(a.stdout, "Parameters:%v\n", args)

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:   appName,
		OTLPEndpoint:  s.OTelEndpoint,
		MetricsListen: s.MetricsListen,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if shutdownErr := tel.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn(logMsgTelemetryShutdown, logAttrError, shutdownErr.Error())
		}
	}()

	backendOptions := []pgbackend.Option{
		pgbackend.WithDriver(s.Driver),
		pgbackend.WithBaseDSN(s.BaseDSN),
		pgbackend.WithWorkers(s.Workers),
		pgbackend.WithQueueSize(s.QueueSize),
		pgbackend.WithProcedures(overspend.Procedures()),
		pgbackend.WithLogger(logger),
	}
	simulationOptions := []overspend.Option{overspend.WithLogger(logger)}

	if tel.MetricsEnabled() {
		metrics := oteladapters.NewMetricsCollector(tel.Meter(appName))
		backendOptions = append(backendOptions, pgbackend.WithMetrics(metrics))
		simulationOptions = append(simulationOptions, overspend.WithMetrics(metrics))
	}

	if tel.TracingEnabled() {
		tracing := oteladapters.NewTracingCollector(tel.Tracer(appName))
		backendOptions = append(backendOptions, pgbackend.WithTracing(tracing))
		simulationOptions = append(simulationOptions, overspend.WithTracing(tracing))
	}

	if tel.LogsEnabled() {
		contextualLogger := oteladapters.NewSlogBridgeLogger(appName, tel.LoggerProvider())
		backendOptions = append(backendOptions, pgbackend.WithContextualLogger(contextualLogger))
		simulationOptions = append(simulationOptions, overspend.WithContextualLogger(contextualLogger))
	}

	client, err := pgbackend.Connect(ctx, p.Hostnames, backendOptions...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn(logMsgCloseFailed, logAttrError, closeErr.Error())
		}
	}()

	if s.InitSchema {
		if err := overspend.EnsureSchema(ctx, client); err != nil {
			return err
		}
		logger.Info(logMsgSchemaReady)
	}

	pace, err := pacer.New(s.Pacing, p.Config.TargetPerMs)
	if err != nil {
		return err
	}

	simulation, err := overspend.NewSimulation(client, pace, p.Config, simulationOptions...)
	if err != nil {
		return err
	}

	result, err := simulation.Run(ctx)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(a.stdout, result.Summary.String())

	if s.SummaryJSON != "" {
		data, err := result.Summary.JSON()
		if err != nil {
			return err
		}

		if err := os.WriteFile(s.SummaryJSON, data, summaryFileMode); err != nil {
			return err
		}
		logger.Info(logMsgSummaryWritten, logAttrPath, s.SummaryJSON)
	}

	return nil
}

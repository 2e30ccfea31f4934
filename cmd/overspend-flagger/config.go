package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pacer"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend"
	"github.com/AntonStoeckl/overspend-loadgen-go/overspend"
)

const (
	envPrefix = "OVERSPEND"

	flagDriver        = "driver"
	flagDSN           = "dsn"
	flagWorkers       = "workers"
	flagQueueSize     = "queue-size"
	flagPacing        = "pacing"
	flagLogLevel      = "log-level"
	flagLogFormat     = "log-format"
	flagOTelEndpoint  = "otel-endpoint"
	flagMetricsListen = "metrics-listen"
	flagSummaryJSON   = "summary-json"
	flagInitSchema    = "init-schema"

	logFormatText = "text"
	logFormatJSON = "json"

	positionalArgCount = 7
)

var (
	// errUsage marks errors caused by a wrong command line.
	errUsage = errors.New("usage")

	positionalArgNames = []string{
		"hostnames", "campaigncount", "tpms", "durationseconds", "queryinterval", "budget", "adcount",
	}
)

// params are the positional arguments.
type params struct {
	Hostnames []string
	Config    overspend.Config
}

// settings are the flag or environment driven knobs.
type settings struct {
	Driver        pgbackend.Driver
	BaseDSN       string
	Workers       int
	QueueSize     int
	Pacing        pacer.Kind
	LogLevel      slog.Level
	LogFormat     string
	OTelEndpoint  string
	MetricsListen string
	SummaryJSON   string
	InitSchema    bool
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String(flagDriver, string(pgbackend.DriverPGX), "database driver (pgx, sql, sqlx)")
	flags.String(flagDSN, pgbackend.DefaultBaseDSN, "base connection URL; its host is replaced by every endpoint")
	flags.Int(flagWorkers, pgbackend.DefaultWorkers, "concurrent executions per client")
	flags.Int(flagQueueSize, pgbackend.DefaultQueueSize, "submission queue capacity")
	flags.String(flagPacing, string(pacer.KindSpin), "submission pacing (spin, token)")
	flags.String(flagLogLevel, "info", "log level (debug, info, warn, error)")
	flags.String(flagLogFormat, logFormatText, "log format (text, json)")
	flags.String(flagOTelEndpoint, "", "OTLP gRPC collector endpoint for traces (e.g. grpc://localhost:4317); empty disables")
	flags.String(flagMetricsListen, "", "Prometheus scrape endpoint listen address; empty disables")
	flags.String(flagSummaryJSON, "", "also write the final summary as JSON to this file")
	flags.Bool(flagInitSchema, false, "create the campaign schema before running")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v.BindPFlags(flags)
}

func loadSettings(v *viper.Viper) (settings, error) {
	driver, err := pgbackend.ParseDriver(v.GetString(flagDriver))
	if err != nil {
		return settings{}, err
	}

	pacing, err := pacer.ParseKind(v.GetString(flagPacing))
	if err != nil {
		return settings{}, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(v.GetString(flagLogLevel)))); err != nil {
		return settings{}, fmt.Errorf("log level: %w", err)
	}

	format := strings.ToLower(strings.TrimSpace(v.GetString(flagLogFormat)))
	if format != logFormatText && format != logFormatJSON {
		return settings{}, fmt.Errorf("log format %q: want %s or %s", format, logFormatText, logFormatJSON)
	}

	return settings{
		Driver:        driver,
		BaseDSN:       v.GetString(flagDSN),
		Workers:       v.GetInt(flagWorkers),
		QueueSize:     v.GetInt(flagQueueSize),
		Pacing:        pacing,
		LogLevel:      level,
		LogFormat:     format,
		OTelEndpoint:  strings.TrimSpace(v.GetString(flagOTelEndpoint)),
		MetricsListen: strings.TrimSpace(v.GetString(flagMetricsListen)),
		SummaryJSON:   strings.TrimSpace(v.GetString(flagSummaryJSON)),
		InitSchema:    v.GetBool(flagInitSchema),
	}, nil
}

func newLogger(w io.Writer, s settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.LogLevel}

	if s.LogFormat == logFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func checkArgCount(args []string) error {
	if len(args) != positionalArgCount {
		return errors.Join(errUsage, fmt.Errorf("accepts %d args (%s), received %d",
			positionalArgCount, strings.Join(positionalArgNames, " "), len(args)))
	}

	return nil
}

func parseArgs(args []string) (params, error) {
	if err := checkArgCount(args); err != nil {
		return params{}, err
	}

	var errs []error

	parseInt := func(position int) int64 {
		value, err := strconv.ParseInt(strings.TrimSpace(args[position]), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", positionalArgNames[position], err))
		}

		return value
	}

	p := params{Hostnames: pgbackend.SplitEndpoints(args[0])}
	if len(p.Hostnames) == 0 {
		errs = append(errs, fmt.Errorf("%s: no host given", positionalArgNames[0]))
	}

	p.Config = overspend.Config{
		CampaignCount: parseInt(1),
		TargetPerMs:   parseInt(2),
		Duration:      time.Duration(parseInt(3)) * time.Second,
		QueryInterval: time.Duration(parseInt(4)) * time.Second,
		Budget:        parseInt(5),
		AdCount:       int(parseInt(6)),
	}

	if len(errs) > 0 {
		return params{}, errors.Join(append([]error{errUsage}, errs...)...)
	}

	if err := p.Config.Validate(); err != nil {
		return params{}, errors.Join(errUsage, err)
	}

	return p, nil
}

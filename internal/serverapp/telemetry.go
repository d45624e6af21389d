package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"graph-query-connector/internal/config"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/observability"
)

// InitLogger builds the process logger and, when log exports are enabled,
// the OTLP logger provider behind it.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	res := serviceResource(cfg)
	res.OTLPConfig = exporterConfig(logsConfig)
	loggerProvider, err := observability.InitLoggerProvider(res)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("OpenTelemetry logging initialized successfully")

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

// telemetry bundles the providers and instruments built at Init. Every field
// is nil when its signal is disabled; the metrics types are nil-safe.
type telemetry struct {
	meter  *observability.MeterProvider
	tracer *observability.TracerProvider

	connector     *observability.ConnectorMetrics
	schemaRefresh *observability.SchemaRefreshMetrics
	security      *observability.SecurityMetrics
}

func serviceResource(cfg *config.Config) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
	}
}

// initTelemetry starts the meter and tracer providers and registers their
// shutdown on cleanup.
func initTelemetry(cfg *config.Config, logger *logging.Logger, cleanup *cleanupStack) (telemetry, error) {
	var t telemetry
	obs := cfg.Observability

	if obs.MetricsEnabled {
		mp, err := observability.InitMeterProvider(serviceResource(cfg))
		if err != nil {
			return t, fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
		}
		cleanup.push("meter provider", func(ctx context.Context) error {
			return mp.Shutdown(ctx, logger.Logger)
		})
		t.meter = mp

		if t.connector, err = observability.InitMetrics(logger.Logger); err != nil {
			return t, fmt.Errorf("failed to create connector metrics: %w", err)
		}
		if t.schemaRefresh, err = observability.InitSchemaRefreshMetrics(logger.Logger); err != nil {
			return t, fmt.Errorf("failed to create schema refresh metrics: %w", err)
		}
		if t.security, err = observability.InitSecurityMetrics(); err != nil {
			return t, fmt.Errorf("failed to create security metrics: %w", err)
		}
		logger.Info("OpenTelemetry metrics initialized", slog.String("service_name", obs.ServiceName))
	}

	if obs.TracingEnabled {
		traces := obs.GetTracesConfig()
		res := serviceResource(cfg)
		res.OTLPConfig = exporterConfig(traces)
		tp, err := observability.InitTracerProvider(res)
		if err != nil {
			return t, fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
		}
		cleanup.push("tracer provider", func(ctx context.Context) error {
			return tp.Shutdown(ctx, logger.Logger)
		})
		t.tracer = tp
		logger.Info("OpenTelemetry tracing initialized",
			slog.String("otlp_endpoint", traces.Endpoint),
			slog.String("otlp_protocol", traces.Protocol),
			slog.Float64("sample_ratio", obs.TraceSampleRatio),
		)
	}

	return t, nil
}

func exporterConfig(c config.OTLPConfig) observability.OTLPExporterConfig {
	return observability.OTLPExporterConfig{
		Endpoint:          c.Endpoint,
		Protocol:          c.Protocol,
		Insecure:          c.Insecure,
		TLSCertFile:       c.TLSCertFile,
		TLSClientCertFile: c.TLSClientCertFile,
		TLSClientKeyFile:  c.TLSClientKeyFile,
		Headers:           c.Headers,
		Timeout:           c.Timeout,
		Compression:       c.Compression,
		RetryEnabled:      c.RetryEnabled,
		RetryMaxAttempts:  c.RetryMaxAttempts,
	}
}

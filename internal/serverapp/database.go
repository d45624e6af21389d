package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"graph-query-connector/internal/config"
	"graph-query-connector/internal/logging"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const maxDatabaseRetryInterval = 30 * time.Second

type statsRegistration interface{ Unregister() error }

func dbSystemAttribute(driver string) attribute.KeyValue {
	if driver == config.DriverSQLite3 {
		return semconv.DBSystemSqlite
	}
	return semconv.DBSystemMySQL
}

func databaseDriver(cfg *config.Config) string {
	if cfg.Database.Driver == "" {
		return config.DriverMySQL
	}
	return cfg.Database.Driver
}

// otelsqlOptions returns the instrumentation options for the graph store
// pool, or nil when neither metrics nor tracing is on.
func otelsqlOptions(cfg *config.Config, logger *logging.Logger, system attribute.KeyValue) []otelsql.Option {
	obs := cfg.Observability
	if !obs.MetricsEnabled && !obs.TracingEnabled {
		return nil
	}
	opts := []otelsql.Option{otelsql.WithAttributes(system)}
	if !obs.TracingEnabled {
		if obs.SQLCommenterEnabled {
			logger.Warn("sqlcommenter_enabled has no effect without tracing")
		}
		return opts
	}
	opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
	if obs.SQLCommenterEnabled {
		opts = append(opts, otelsql.WithSQLCommenter(true))
	}
	return opts
}

// connectDB opens the graph store pool. The returned registration is non-nil
// only when DB stats metrics were registered.
func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, statsRegistration, error) {
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}

	driver := databaseDriver(cfg)
	system := dbSystemAttribute(driver)
	opts := otelsqlOptions(cfg, logger, system)
	if opts == nil {
		db, err := sql.Open(driver, cfg.Database.DSN())
		return db, nil, err
	}

	db, err := otelsql.Open(driver, cfg.Database.DSN(), opts...)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("database instrumentation enabled",
		slog.String("driver", driver),
		slog.Bool("metrics", cfg.Observability.MetricsEnabled),
		slog.Bool("tracing", cfg.Observability.TracingEnabled),
		slog.Bool("sqlcommenter", cfg.Observability.SQLCommenterEnabled && cfg.Observability.TracingEnabled),
	)
	if !cfg.Observability.MetricsEnabled {
		return db, nil, nil
	}
	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(system))
	if err != nil {
		logger.Warn("DB stats metrics unavailable", slog.String("error", err.Error()))
		return db, nil, nil
	}
	return db, reg, nil
}

// configureDatabase applies pool limits and blocks until the database answers.
func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB, effectiveDatabase string, databaseSource string, dsnPresent bool) error {
	pool := cfg.Database.Pool
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg.Database.ConnectionTimeout, cfg.Database.ConnectionRetryInterval, logger, db); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.String("database_effective", effectiveDatabase),
		slog.String("database_source", databaseSource),
		slog.Bool("dsn_present", dsnPresent),
		slog.Group("pool",
			slog.Int("max_open", pool.MaxOpen),
			slog.Int("max_idle", pool.MaxIdle),
			slog.Duration("max_lifetime", pool.MaxLifetime),
		),
	)
	return nil
}

// waitForDatabase pings db until it answers or timeout elapses, doubling the
// wait between attempts. A zero timeout means a single attempt.
func waitForDatabase(ctx context.Context, timeout, interval time.Duration, logger *logging.Logger, db *sql.DB) error {
	if timeout <= 0 {
		return db.PingContext(ctx)
	}
	if interval <= 0 {
		interval = time.Second
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		switch {
		case err == nil:
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case !time.Now().Before(deadline):
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxDatabaseRetryInterval)
	}
}

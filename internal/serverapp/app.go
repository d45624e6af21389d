package serverapp

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"graph-query-connector/internal/config"
	"graph-query-connector/internal/connector"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/observability"
	"graph-query-connector/internal/schemarefresh"
)

// App owns the connector server's runtime resources. Init builds them once;
// Shutdown releases them in reverse order.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	// MySQL target as resolved at construction, for startup logs.
	effectiveDatabase string
	databaseSource    string
	dsnPresent        bool

	telemetry telemetry

	// db is nil when queries go to a remote endpoint.
	db        *sql.DB
	connector *connector.Connector
	manager   *schemarefresh.Manager

	handler    http.Handler
	srv        *http.Server
	serverAddr string

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates its arguments and resolves the MySQL target. No resources
// are acquired until Init.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config is required")
	case logger == nil:
		return nil, errors.New("logger is required")
	}

	app := &App{
		cfg:        cfg,
		logger:     logger,
		dsnPresent: strings.TrimSpace(cfg.Database.ConnectionString) != "",
	}
	if usesMySQLStore(cfg) {
		effectiveDatabase, databaseSource, err := cfg.Database.EffectiveDatabaseName()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve effective database configuration: %w", err)
		}
		app.effectiveDatabase = effectiveDatabase
		app.databaseSource = databaseSource
	}
	return app, nil
}

// AttachLoggerProvider hands the OTLP logger provider built by InitLogger to
// the app so Shutdown flushes it last.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	a.loggerProvider = provider
	a.stateMu.Unlock()
}

// Connector returns the connector served by the app, or nil before Init.
func (a *App) Connector() *connector.Connector {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.connector
}

func usesGraphStore(cfg *config.Config) bool {
	return cfg.Executor.Mode == "" || cfg.Executor.Mode == config.ExecutorModeGraphStore
}

func usesMySQLStore(cfg *config.Config) bool {
	return usesGraphStore(cfg) && (cfg.Database.Driver == "" || cfg.Database.Driver == config.DriverMySQL)
}

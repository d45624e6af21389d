package serverapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"graph-query-connector/internal/connector"
	"graph-query-connector/internal/naming"
)

// Init builds telemetry, the graph store or remote executor, the descriptor
// manager, the router and the HTTP server. Calling it again after success is
// a no-op; a failed Init releases whatever it had acquired.
func (a *App) Init(ctx context.Context) (err error) {
	a.stateMu.Lock()
	done := a.initialized
	a.stateMu.Unlock()
	if done {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var cleanup cleanupStack
	defer func() {
		if err != nil {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if lp := a.loggerProvider; lp != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return lp.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tel, err := initTelemetry(a.cfg, a.logger, &cleanup)
	if err != nil {
		return err
	}

	db, err := a.openGraphStore(ctx, &cleanup)
	if err != nil {
		return err
	}

	conn := connector.New(connectorOptions(a.cfg, a.logger, tel.connector)...)
	manager, stopRefresh, err := startSchemaManager(a.cfg, a.logger, conn, naming.New(a.cfg.Naming), buildExecutorFunc(a.cfg, db), tel.schemaRefresh)
	if err != nil {
		return fmt.Errorf("failed to initialize schema refresh manager: %w", err)
	}
	cleanup.push("schema manager", func(shutdownCtx context.Context) error {
		stopRefresh()
		defer manager.Close()
		return manager.Wait(shutdownCtx)
	})

	admin, err := buildAdminHandler(a.cfg, a.logger, manager, tel.security)
	if err != nil {
		return fmt.Errorf("failed to initialize admin handler: %w", err)
	}
	mux, err := buildRouter(a.cfg, a.logger, conn, manager, db, tel.connector, tel.security, admin, tel.meter)
	if err != nil {
		return fmt.Errorf("failed to initialize routes: %w", err)
	}
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv, err := buildServer(a.cfg, a.logger, handler, addr)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	cleanup.push("HTTP server", srv.Shutdown)

	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.telemetry = tel
	a.db, a.connector, a.manager = db, conn, manager
	a.handler, a.srv, a.serverAddr = handler, srv, addr
	a.cleanup = cleanup
	a.initialized = true
	return nil
}

// openGraphStore connects the graph store database. Remote mode has no
// database and returns a nil handle.
func (a *App) openGraphStore(ctx context.Context, cleanup *cleanupStack) (*sql.DB, error) {
	if !usesGraphStore(a.cfg) {
		a.logger.Info("using remote graph endpoint", slog.String("url", a.cfg.Executor.Remote.URL))
		return nil, nil
	}

	attrs := []any{slog.String("driver", a.cfg.Database.Driver)}
	if usesMySQLStore(a.cfg) {
		attrs = append(attrs,
			slog.String("host", a.cfg.Database.Host),
			slog.Int("port", a.cfg.Database.Port),
			slog.String("database_effective", a.effectiveDatabase),
			slog.String("database_source", a.databaseSource),
			slog.Bool("dsn_present", a.dsnPresent),
		)
	} else {
		attrs = append(attrs, slog.String("database", a.cfg.Database.Database))
	}
	a.logger.Info("connecting to graph store database", attrs...)

	db, statsReg, err := connectDB(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup.push("database", func(context.Context) error {
		var unregisterErr error
		if statsReg != nil {
			unregisterErr = statsReg.Unregister()
		}
		return errors.Join(unregisterErr, db.Close())
	})

	if err := configureDatabase(ctx, a.cfg, a.logger, db, a.effectiveDatabase, a.databaseSource, a.dsnPresent); err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	return db, nil
}

package serverapp

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"graph-query-connector/internal/config"
	"graph-query-connector/internal/connector"
	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/graphstore"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/middleware"
	"graph-query-connector/internal/naming"
	"graph-query-connector/internal/observability"
	"graph-query-connector/internal/planner"
	"graph-query-connector/internal/schema"
	"graph-query-connector/internal/schemarefresh"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func connectorOptions(cfg *config.Config, logger *logging.Logger, metrics *observability.ConnectorMetrics) []connector.Option {
	opts := []connector.Option{
		connector.WithLogger(logger),
		connector.WithDefaultLimit(cfg.Planner.DefaultLimit),
		connector.WithStrictOperators(cfg.Planner.StrictOperators),
	}
	if metrics != nil {
		opts = append(opts, connector.WithMetrics(metrics))
	}
	if limits := buildPlanLimits(cfg); limits != nil {
		opts = append(opts, connector.WithPlanLimits(*limits))
	}
	return opts
}

// buildPlanLimits returns nil when every planner bound is unlimited.
func buildPlanLimits(cfg *config.Config) *planner.PlanLimits {
	limits := planner.PlanLimits{
		MaxDepth:  cfg.Planner.MaxDepth,
		MaxFields: cfg.Planner.MaxFields,
		MaxRows:   cfg.Planner.MaxRows,
	}
	if limits == (planner.PlanLimits{}) {
		return nil
	}
	return &limits
}

// buildExecutorFunc returns the per-descriptor executor factory for the
// configured mode. db is only used by the graph store.
func buildExecutorFunc(cfg *config.Config, db *sql.DB) schemarefresh.BuildFunc {
	if !usesGraphStore(cfg) {
		remote := cfg.Executor.Remote
		return func(_ context.Context, _ *schema.Descriptor) (execution.Executor, error) {
			return execution.NewRemoteExecutor(execution.RemoteConfig{
				URL:         remote.URL,
				Timeout:     remote.Timeout,
				BearerToken: remote.BearerToken,
				Headers:     remote.Headers,
			})
		}
	}
	defaultLimit := cfg.Planner.DefaultLimit
	return func(_ context.Context, desc *schema.Descriptor) (execution.Executor, error) {
		if db == nil {
			return nil, fmt.Errorf("graph store requires a database")
		}
		store := graphstore.New(desc, graphstore.NewDBQuerier(db), graphstore.WithDefaultLimit(defaultLimit))
		return graphstore.NewExecutor(store)
	}
}

func startSchemaManager(cfg *config.Config, logger *logging.Logger, conn *connector.Connector, namer *naming.Namer, build schemarefresh.BuildFunc, metrics *observability.SchemaRefreshMetrics) (*schemarefresh.Manager, context.CancelFunc, error) {
	manager, err := schemarefresh.NewManager(schemarefresh.Config{
		Path:        cfg.Schema.File,
		Namer:       namer,
		Build:       build,
		Connector:   conn,
		Logger:      logger,
		Metrics:     metrics,
		MinInterval: cfg.Schema.RefreshMinInterval,
		MaxInterval: cfg.Schema.RefreshMaxInterval,
		Watch:       cfg.Schema.Watch,
		GraphiQL:    cfg.Server.GraphiQLEnabled,
	})
	if err != nil {
		return nil, nil, err
	}

	// The refresh loop outlives Init's context; Shutdown stops it.
	ctx, stop := context.WithCancel(context.Background())
	manager.Start(ctx)
	return manager, stop, nil
}

func oidcAuthConfig(cfg *config.Config) middleware.OIDCAuthConfig {
	return middleware.OIDCAuthConfig{
		Enabled:       cfg.Server.Auth.OIDCEnabled,
		IssuerURL:     cfg.Server.Auth.OIDCIssuerURL,
		Audience:      cfg.Server.Auth.OIDCAudience,
		ClockSkew:     cfg.Server.Auth.OIDCClockSkew,
		SkipTLSVerify: cfg.Server.Auth.OIDCSkipTLSVerify,
	}
}

// authMiddleware returns the OIDC middleware, or an identity wrapper when
// OIDC is disabled.
func authMiddleware(cfg *config.Config, logger *logging.Logger, securityMetrics *observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Server.Auth.OIDCEnabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	return middleware.OIDCAuthMiddleware(oidcAuthConfig(cfg), logger, securityMetrics)
}

// buildGraphQLHandler serves the graph store's own schema. The chain is:
//
//	request -> logging -> OIDC auth -> analysis -> tracing -> metrics -> graphql
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, conn *connector.Connector, manager *schemarefresh.Manager, metrics *observability.ConnectorMetrics, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manager.Handler().ServeHTTP(w, r)
	})

	if cfg.Observability.MetricsEnabled && metrics != nil {
		handler = middleware.GraphQLMetricsMiddleware(metrics)(handler)
		logger.Info("GraphQL metrics middleware enabled")
	}
	handler = middleware.GraphQLTracingMiddleware(conn.Fingerprint)(handler)
	handler = middleware.GraphQLRequestAnalysisMiddleware(conn.Fingerprint)(handler)

	auth, err := authMiddleware(cfg, logger, securityMetrics)
	if err != nil {
		return nil, err
	}
	return middleware.LoggingMiddleware(logger)(auth(handler)), nil
}

func buildAdminHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var adminHandler http.Handler = http.HandlerFunc(schemaReloadHandler(manager, securityMetrics))
	switch {
	case cfg.Server.Auth.OIDCEnabled:
		adminAuthMiddleware, err := middleware.OIDCAuthMiddleware(oidcAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return nil, err
		}
		adminHandler = adminAuthMiddleware(adminHandler)
		logger.Info("admin endpoints require authentication")
	case strings.TrimSpace(cfg.Server.Admin.AuthToken) != "":
		tokenMiddleware, err := middleware.AdminTokenAuthMiddleware(middleware.AdminTokenAuthConfig{
			Token:   cfg.Server.Admin.AuthToken,
			Metrics: securityMetrics,
		})
		if err != nil {
			return nil, err
		}
		adminHandler = tokenMiddleware(adminHandler)
		logger.Info("admin endpoints require the admin token", slog.String("header", middleware.AdminTokenHeader))
	default:
		logger.Warn("admin endpoints are not authenticated - consider enabling OIDC or an admin token")
	}
	return middleware.LoggingMiddleware(logger)(adminHandler), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, conn *connector.Connector, manager *schemarefresh.Manager, db *sql.DB, metrics *observability.ConnectorMetrics, securityMetrics *observability.SecurityMetrics, adminHandler http.Handler, meterProvider *observability.MeterProvider) (*http.ServeMux, error) {
	auth, err := authMiddleware(cfg, logger, securityMetrics)
	if err != nil {
		return nil, err
	}
	if cfg.Server.Auth.OIDCEnabled {
		logger.Info("OIDC auth middleware enabled")
	}
	api := func(h http.HandlerFunc) http.Handler {
		return middleware.LoggingMiddleware(logger)(auth(h))
	}

	mux := http.NewServeMux()
	mux.Handle("/query", api(queryHandler(conn)))
	mux.Handle("/explain", api(explainHandler(conn)))
	mux.Handle("/schema", api(schemaHandler(conn)))
	mux.HandleFunc("/capabilities", capabilitiesHandler(conn))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/capabilities", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	if usesGraphStore(cfg) && manager != nil {
		graphqlHandler, err := buildGraphQLHandler(cfg, logger, conn, manager, metrics, securityMetrics)
		if err != nil {
			return nil, err
		}
		mux.Handle("/graphql", graphqlHandler)
	}

	mux.HandleFunc("/health", healthHandler(conn, db, cfg.Server.HealthCheckTimeout))
	if cfg.Server.Admin.SchemaReloadEnabled && adminHandler != nil {
		mux.Handle("/admin/reload-schema", adminHandler)
	}

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux, nil
}

// wrapHTTPHandler applies the server-wide layers, with the rate limiter
// outermost.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	srv := cfg.Server
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string { return httpRootSpanName(r) }),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}
	if srv.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          true,
			AllowedOrigins:   srv.CORSAllowedOrigins,
			AllowedMethods:   srv.CORSAllowedMethods,
			AllowedHeaders:   srv.CORSAllowedHeaders,
			ExposeHeaders:    srv.CORSExposeHeaders,
			AllowCredentials: srv.CORSAllowCredentials,
			MaxAge:           srv.CORSMaxAge,
		})(handler)
	}
	if srv.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: true,
			RPS:     srv.RateLimitRPS,
			Burst:   srv.RateLimitBurst,
		})(handler)
	}
	return handler
}

var spanRoutes = map[string]bool{
	"/": true, "/query": true, "/explain": true, "/schema": true, "/capabilities": true,
	"/graphql": true, "/health": true, "/metrics": true, "/admin/reload-schema": true,
}

// httpRootSpanName names server spans "METHOD route"; unknown paths
// collapse to "/*".
func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := cmp.Or(strings.TrimSpace(r.Method), "HTTP")
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	if spanRoutes[rawPath] {
		return rawPath
	}
	return "/*"
}

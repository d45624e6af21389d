package serverapp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"graph-query-connector/internal/config"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/tlscert"
)

func tlsEnabled(cfg *config.Config) bool {
	return cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"
}

func buildServer(cfg *config.Config, logger *logging.Logger, handler http.Handler, serverAddr string) (*http.Server, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if !tlsEnabled(cfg) {
		return srv, nil
	}

	source, err := tlscert.New(tlscert.Config{
		Mode:        tlscert.Mode(cfg.Server.TLSMode),
		CertFile:    cfg.Server.TLSCertFile,
		KeyFile:     cfg.Server.TLSKeyFile,
		AutoCertDir: cfg.Server.TLSAutoCertDir,
	}, logger.Logger)
	if err != nil {
		return nil, err
	}
	srv.TLSConfig = source.ServerConfig()
	logger.Info("TLS enabled", slog.String("mode", cfg.Server.TLSMode), slog.String("cert_source", source.String()))
	return srv, nil
}

// endpointAttrs lists the routes the server exposes under cfg.
func endpointAttrs(cfg *config.Config) slog.Attr {
	attrs := []any{
		slog.String("query", "/query"),
		slog.String("explain", "/explain"),
		slog.String("health", "/health"),
	}
	if usesGraphStore(cfg) {
		attrs = append(attrs, slog.String("graphql", "/graphql"))
	}
	if cfg.Observability.MetricsEnabled {
		attrs = append(attrs, slog.String("metrics", "/metrics"))
	}
	if cfg.Server.Admin.SchemaReloadEnabled {
		attrs = append(attrs, slog.String("schema_reload", "/admin/reload-schema"))
	}
	return slog.Group("endpoints", attrs...)
}

// startServer serves srv in the background. The returned channel receives at
// most one error; a clean Shutdown sends nothing.
func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	errs := make(chan error, 1)
	secure := tlsEnabled(cfg)

	scheme := "http"
	if secure {
		scheme = "https"
	}
	attrs := []any{
		slog.String("address", serverAddr),
		slog.String("protocol", scheme),
		slog.String("executor_mode", cfg.Executor.Mode),
		slog.String("schema_file", cfg.Schema.File),
		endpointAttrs(cfg),
	}
	if cfg.Server.RateLimitEnabled {
		attrs = append(attrs, slog.Group("rate_limit",
			slog.Float64("rps", cfg.Server.RateLimitRPS),
			slog.Int("burst", cfg.Server.RateLimitBurst),
		))
	}
	logger.Info("server starting", attrs...)

	go func() {
		var err error
		if secure {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return errs
}

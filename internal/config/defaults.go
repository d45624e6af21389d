package config

import (
	"time"

	"github.com/spf13/viper"
)

// defaults is the lowest-precedence layer. Keys absent here and from the
// flag tables are still accepted from the config file when Config declares
// them.
var defaults = map[string]interface{}{
	"schema.file":                 "schema.yaml",
	"schema.refresh_min_interval": 30 * time.Second,
	"schema.refresh_max_interval": 5 * time.Minute,
	"schema.watch":                false,

	"executor.mode":                     ExecutorModeGraphStore,
	"executor.remote.url":               "",
	"executor.remote.timeout":           30 * time.Second,
	"executor.remote.headers":           map[string]string{},
	"executor.remote.bearer_token":      "",
	"executor.remote.bearer_token_file": "",

	"planner.max_depth":        0,
	"planner.max_fields":       0,
	"planner.max_rows":         0,
	"planner.default_limit":    0,
	"planner.strict_operators": false,

	"database.driver":                    DriverMySQL,
	"database.dsn":                       "",
	"database.dsn_file":                  "",
	"database.mycnf_file":                "",
	"database.host":                      "localhost",
	"database.port":                      3306,
	"database.user":                      "graph_query",
	"database.password":                  "",
	"database.password_file":             "",
	"database.password_prompt":           false,
	"database.database":                  defaultDatabaseName,
	"database.tls.mode":                  "",
	"database.tls.ca_file":               "",
	"database.tls.ca_file_env":           "",
	"database.tls.cert_file":             "",
	"database.tls.cert_file_env":         "",
	"database.tls.key_file":              "",
	"database.tls.key_file_env":          "",
	"database.tls.server_name":           "",
	"database.pool.max_open":             25,
	"database.pool.max_idle":             5,
	"database.pool.max_lifetime":         5 * time.Minute,
	"database.connection_timeout":        60 * time.Second,
	"database.connection_retry_interval": 2 * time.Second,

	"server.port":                        8080,
	"server.graphiql_enabled":            false,
	"server.auth.oidc_enabled":           false,
	"server.auth.oidc_issuer_url":        "",
	"server.auth.oidc_audience":          "",
	"server.auth.oidc_clock_skew":        2 * time.Minute,
	"server.auth.oidc_skip_tls_verify":   false,
	"server.admin.schema_reload_enabled": false,
	"server.admin.auth_token":            "",
	"server.admin.auth_token_file":       "",
	"server.rate_limit_enabled":          false,
	"server.rate_limit_rps":              0.0,
	"server.rate_limit_burst":            0,
	"server.cors_enabled":                false,
	"server.cors_allowed_origins":        []string{},
	"server.cors_allowed_methods":        []string{"GET", "POST", "OPTIONS"},
	"server.cors_allowed_headers":        []string{"Authorization", "Content-Type", "X-Request-ID"},
	"server.cors_expose_headers":         []string{"X-Request-ID"},
	"server.cors_allow_credentials":      false,
	"server.cors_max_age":                86400,
	"server.read_timeout":                15 * time.Second,
	"server.write_timeout":               15 * time.Second,
	"server.idle_timeout":                60 * time.Second,
	"server.shutdown_timeout":            30 * time.Second,
	"server.health_check_timeout":        2 * time.Second,
	"server.tls_mode":                    "off",
	"server.tls_cert_file":               "",
	"server.tls_key_file":                "",
	"server.tls_auto_cert_dir":           ".tls",

	"observability.service_name":            "graph-query-connector",
	"observability.service_version":         "",
	"observability.environment":             "development",
	"observability.metrics_enabled":         true,
	"observability.tracing_enabled":         false,
	"observability.trace_sample_ratio":      1.0,
	"observability.sqlcommenter_enabled":    true,
	"observability.logging.level":           "info",
	"observability.logging.format":          "json",
	"observability.logging.exports_enabled": false,

	"observability.otlp.endpoint":             "localhost:4317",
	"observability.otlp.protocol":             "grpc",
	"observability.otlp.insecure":             false,
	"observability.otlp.tls_cert_file":        "",
	"observability.otlp.tls_client_cert_file": "",
	"observability.otlp.tls_client_key_file":  "",
	"observability.otlp.timeout":              10 * time.Second,
	"observability.otlp.compression":          "gzip",
	"observability.otlp.retry_enabled":        true,
	"observability.otlp.retry_max_attempts":   3,

	"naming.plural_overrides":   map[string]string{},
	"naming.singular_overrides": map[string]string{},
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

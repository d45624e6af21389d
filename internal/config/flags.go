package config

import (
	"sync"
	"time"

	"github.com/spf13/pflag"
)

var defineFlagsOnce sync.Once

// flagSpec declares one command line flag. The kind of zero picks the flag
// type; defaults live in setDefaults, never on the flag.
type flagSpec struct {
	name  string
	zero  interface{}
	usage string
}

var (
	noString   = ""
	noInt      = 0
	noBool     = false
	noFloat    = 0.0
	noDuration = time.Duration(0)
	noList     = []string(nil)
)

var schemaFlags = []flagSpec{
	{"schema.file", noString, "Path to the schema descriptor file (.yaml, .yml or .json)"},
	{"schema.refresh_min_interval", noDuration, "Minimum interval between schema file checks (0 disables polling)"},
	{"schema.refresh_max_interval", noDuration, "Maximum interval between schema file checks"},
	{"schema.watch", noBool, "Reload the schema descriptor as soon as the file changes"},
}

var executorFlags = []flagSpec{
	{"executor.mode", noString, "Query executor (graphstore, remote)"},
	{"executor.remote.url", noString, "Remote GraphQL endpoint URL"},
	{"executor.remote.timeout", noDuration, "Remote GraphQL request timeout"},
	{"executor.remote.bearer_token", noString, "Bearer token sent to the remote GraphQL endpoint"},
	{"executor.remote.bearer_token_file", noString, "Path to file containing the remote bearer token (use @- for stdin)"},
	{"planner.max_depth", noInt, "Maximum selection depth of a compiled query (0 = unlimited)"},
	{"planner.max_fields", noInt, "Maximum number of fields in a compiled query (0 = unlimited)"},
	{"planner.max_rows", noInt, "Maximum limit accepted on any query level (0 = unlimited)"},
	{"planner.default_limit", noInt, "Limit applied to root queries that do not set one (0 = none)"},
	{"planner.strict_operators", noBool, "Reject comparison operators the column type does not declare"},
}

var databaseFlags = []flagSpec{
	{"database.driver", noString, "Graph store database driver (mysql, sqlite3)"},
	{"database.dsn", noString, "Complete driver DSN (mysql: user:pass@tcp(host:port)/db, sqlite3: file path)"},
	{"database.dsn_file", noString, "Path to file containing database DSN (use @- for stdin)"},
	{"database.mycnf_file", noString, "Path to MySQL option file (.my.cnf format)"},
	{"database.host", noString, "Database host"},
	{"database.port", noInt, "Database port"},
	{"database.user", noString, "Database user"},
	{"database.password", noString, "Database password"},
	{"database.password_file", noString, "Path to file containing database password (use @- for stdin)"},
	{"database.password_prompt", noBool, "Prompt for database password on the terminal"},
	{"database.database", noString, "Database name (mysql) or file path (sqlite3)"},
	{"database.tls.mode", noString, "TLS mode (off, skip-verify, verify-ca, verify-full)"},
	{"database.tls.ca_file", noString, "CA certificate for server verification"},
	{"database.tls.ca_file_env", noString, "Env var holding the CA certificate path"},
	{"database.tls.cert_file", noString, "Client certificate for mTLS"},
	{"database.tls.cert_file_env", noString, "Env var holding the client certificate path"},
	{"database.tls.key_file", noString, "Client private key for mTLS"},
	{"database.tls.key_file_env", noString, "Env var holding the client key path"},
	{"database.tls.server_name", noString, "Server name to verify in verify-full mode"},
	{"database.pool.max_open", noInt, "Maximum open database connections"},
	{"database.pool.max_idle", noInt, "Maximum idle connections in the pool"},
	{"database.pool.max_lifetime", noDuration, "Connection max lifetime (e.g. 5m)"},
	{"database.connection_timeout", noDuration, "How long to wait for the database on startup (0 = fail immediately)"},
	{"database.connection_retry_interval", noDuration, "Initial interval between connection retries"},
}

var serverFlags = []flagSpec{
	{"server.port", noInt, "HTTP server port"},
	{"server.graphiql_enabled", noBool, "Serve GraphiQL on /graphql (graphstore mode, dev only)"},
	{"server.auth.oidc_enabled", noBool, "Require OIDC bearer tokens"},
	{"server.auth.oidc_issuer_url", noString, "OIDC issuer URL used for discovery"},
	{"server.auth.oidc_audience", noString, "Expected token audience"},
	{"server.auth.oidc_clock_skew", noDuration, "Allowed clock skew for exp/nbf"},
	{"server.auth.oidc_skip_tls_verify", noBool, "Skip TLS verification of the OIDC issuer (dev only)"},
	{"server.admin.schema_reload_enabled", noBool, "Serve POST /admin/reload-schema"},
	{"server.admin.auth_token", noString, "Admin token, sent as X-Admin-Token or a bearer token, when OIDC is off"},
	{"server.admin.auth_token_file", noString, "Path to file containing the admin token (use @- for stdin)"},
	{"server.rate_limit_enabled", noBool, "Rate limit requests per client address"},
	{"server.rate_limit_rps", noFloat, "Sustained requests per second per client"},
	{"server.rate_limit_burst", noInt, "Burst size per client"},
	{"server.cors_enabled", noBool, "Send CORS headers"},
	{"server.cors_allowed_origins", noList, "Allowed CORS origins"},
	{"server.cors_allowed_methods", noList, "Allowed CORS methods"},
	{"server.cors_allowed_headers", noList, "Allowed CORS request headers"},
	{"server.cors_expose_headers", noList, "Response headers exposed to browsers"},
	{"server.cors_allow_credentials", noBool, "Allow credentialed CORS requests"},
	{"server.cors_max_age", noInt, "Preflight cache duration in seconds"},
	{"server.read_timeout", noDuration, "HTTP read timeout"},
	{"server.write_timeout", noDuration, "HTTP write timeout"},
	{"server.idle_timeout", noDuration, "HTTP idle timeout"},
	{"server.shutdown_timeout", noDuration, "Graceful shutdown timeout"},
	{"server.health_check_timeout", noDuration, "Timeout of the database ping in /health"},
	{"server.tls_mode", noString, "TLS mode: off, auto (self-signed), file"},
	{"server.tls_cert_file", noString, "TLS certificate (file mode)"},
	{"server.tls_key_file", noString, "TLS private key (file mode)"},
	{"server.tls_auto_cert_dir", noString, "Directory for the self-signed certificate (auto mode)"},
}

var observabilityFlags = []flagSpec{
	{"observability.service_name", noString, "Service name reported on telemetry"},
	{"observability.service_version", noString, "Service version reported on telemetry"},
	{"observability.environment", noString, "Deployment environment (dev, staging, prod)"},
	{"observability.metrics_enabled", noBool, "Serve Prometheus metrics on /metrics"},
	{"observability.tracing_enabled", noBool, "Export traces over OTLP"},
	{"observability.trace_sample_ratio", noFloat, "Trace sampling ratio from 0.0 to 1.0"},
	{"observability.sqlcommenter_enabled", noBool, "Tag graph store SQL with trace context"},
	{"observability.logging.level", noString, "Log level (debug, info, warn, error)"},
	{"observability.logging.format", noString, "Log format (json, text, pretty)"},
	{"observability.logging.exports_enabled", noBool, "Export logs over OTLP"},
	{"observability.otlp.endpoint", noString, "OTLP endpoint for all signals (e.g. localhost:4317)"},
	{"observability.otlp.protocol", noString, "OTLP protocol (grpc, http/protobuf)"},
	{"observability.otlp.insecure", noBool, "Export without TLS"},
	{"observability.otlp.tls_cert_file", noString, "CA certificate for the collector"},
	{"observability.otlp.tls_client_cert_file", noString, "Client certificate for collector mTLS"},
	{"observability.otlp.tls_client_key_file", noString, "Client key for collector mTLS"},
	{"observability.otlp.timeout", noDuration, "OTLP export timeout"},
	{"observability.otlp.compression", noString, "OTLP compression (none, gzip)"},
	{"observability.otlp.retry_enabled", noBool, "Retry transient export failures"},
	{"observability.otlp.retry_max_attempts", noInt, "Retry budget; each attempt adds up to 5s"},
	{"observability.traces.endpoint", noString, "OTLP endpoint for traces only"},
	{"observability.traces.protocol", noString, "OTLP protocol for traces"},
	{"observability.traces.insecure", noBool, "Export traces without TLS"},
	{"observability.traces.timeout", noDuration, "Trace export timeout"},
	{"observability.logs.endpoint", noString, "OTLP endpoint for logs only"},
	{"observability.logs.protocol", noString, "OTLP protocol for logs"},
	{"observability.logs.insecure", noBool, "Export logs without TLS"},
	{"observability.logs.timeout", noDuration, "Log export timeout"},
	{"observability.metrics.endpoint", noString, "OTLP endpoint for metrics only"},
	{"observability.metrics.insecure", noBool, "Export metrics without TLS"},
	{"observability.metrics.timeout", noDuration, "Metric export timeout"},
}

// defineFlags registers every setting as a flag named by its config key.
func defineFlags() {
	defineFlagsOnce.Do(func() {
		fs := pflag.CommandLine
		for _, group := range [][]flagSpec{schemaFlags, executorFlags, databaseFlags, serverFlags, observabilityFlags} {
			for _, f := range group {
				switch f.zero.(type) {
				case string:
					fs.String(f.name, "", f.usage)
				case int:
					fs.Int(f.name, 0, f.usage)
				case bool:
					fs.Bool(f.name, false, f.usage)
				case float64:
					fs.Float64(f.name, 0, f.usage)
				case time.Duration:
					fs.Duration(f.name, 0, f.usage)
				case []string:
					fs.StringSlice(f.name, nil, f.usage)
				}
			}
		}
		fs.StringP("config", "c", "", "Config file path")
	})
}

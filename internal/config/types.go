package config

import (
	"maps"
	"time"

	"graph-query-connector/internal/naming"
)

// Config holds the connector configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Schema        SchemaConfig        `mapstructure:"schema"`
	Executor      ExecutorConfig      `mapstructure:"executor"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Planner       PlannerConfig       `mapstructure:"planner"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Naming        naming.Config       `mapstructure:"naming"`
}

// Executor modes.
const (
	ExecutorModeGraphStore = "graphstore"
	ExecutorModeRemote     = "remote"
)

// Database drivers.
const (
	DriverMySQL   = "mysql"
	DriverSQLite3 = "sqlite3"
)

// SchemaConfig locates the schema descriptor file and controls reloads.
type SchemaConfig struct {
	File               string        `mapstructure:"file"`
	RefreshMinInterval time.Duration `mapstructure:"refresh_min_interval"`
	RefreshMaxInterval time.Duration `mapstructure:"refresh_max_interval"`
	// Watch reloads the descriptor as soon as the file is written.
	Watch bool `mapstructure:"watch"`
}

// ExecutorConfig selects where compiled queries run.
type ExecutorConfig struct {
	// Mode is "graphstore" (in-process, backed by the database section) or
	// "remote" (POST to a GraphQL endpoint).
	Mode   string       `mapstructure:"mode"`
	Remote RemoteConfig `mapstructure:"remote"`
}

// RemoteConfig configures the remote GraphQL endpoint.
type RemoteConfig struct {
	URL             string            `mapstructure:"url"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	Headers         map[string]string `mapstructure:"headers"`
	BearerToken     string            `mapstructure:"bearer_token"`
	BearerTokenFile string            `mapstructure:"bearer_token_file"`
}

// PlannerConfig bounds compiled queries.
type PlannerConfig struct {
	MaxDepth        int  `mapstructure:"max_depth"`
	MaxFields       int  `mapstructure:"max_fields"`
	MaxRows         int  `mapstructure:"max_rows"`
	DefaultLimit    int  `mapstructure:"default_limit"`
	StrictOperators bool `mapstructure:"strict_operators"`
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DatabaseTLSConfig holds TLS/SSL configuration for MySQL connections.
// Supports both server verification and client certificate authentication (mTLS).
type DatabaseTLSConfig struct {
	// Mode controls TLS behavior:
	//   - "off": No TLS (plaintext connection)
	//   - "skip-verify": TLS without server certificate verification (insecure)
	//   - "verify-ca": TLS with CA verification but no hostname check
	//   - "verify-full": TLS with full verification including hostname
	Mode string `mapstructure:"mode"`

	// CAFile is the path to the CA certificate for server verification.
	// Required for verify-ca and verify-full modes.
	CAFile    string `mapstructure:"ca_file"`
	CAFileEnv string `mapstructure:"ca_file_env"`

	CertFile    string `mapstructure:"cert_file"`
	CertFileEnv string `mapstructure:"cert_file_env"`
	KeyFile     string `mapstructure:"key_file"`
	KeyFileEnv  string `mapstructure:"key_file_env"`

	// ServerName overrides the server name used for TLS verification.
	ServerName string `mapstructure:"server_name"`
}

// DatabaseConfig holds the graph store's database connection parameters.
type DatabaseConfig struct {
	// Driver is "mysql" or "sqlite3".
	Driver string `mapstructure:"driver"`

	// ConnectionString is a complete driver DSN. For mysql it has the form
	// user:password@tcp(host:port)/database?params; for sqlite3 it is a
	// file path or file: URI.
	ConnectionString     string `mapstructure:"dsn"`
	ConnectionStringFile string `mapstructure:"dsn_file"`
	// MyCnfFile points to a MySQL defaults file (.my.cnf style).
	MyCnfFile string `mapstructure:"mycnf_file"`

	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	// Database is the schema name for mysql and the file path for sqlite3.
	Database string `mapstructure:"database"`

	TLS  DatabaseTLSConfig `mapstructure:"tls"`
	Pool PoolConfig        `mapstructure:"pool"`

	// ConnectionTimeout is the max time to wait for the database on startup.
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`
}

const defaultDatabaseName = "movies"

// AuthConfig holds authentication parameters.
type AuthConfig struct {
	OIDCEnabled       bool          `mapstructure:"oidc_enabled"`
	OIDCIssuerURL     string        `mapstructure:"oidc_issuer_url"`
	OIDCAudience      string        `mapstructure:"oidc_audience"`
	OIDCClockSkew     time.Duration `mapstructure:"oidc_clock_skew"`
	OIDCSkipTLSVerify bool          `mapstructure:"oidc_skip_tls_verify"`
}

// AdminConfig controls administrative endpoint exposure and authentication.
type AdminConfig struct {
	SchemaReloadEnabled bool   `mapstructure:"schema_reload_enabled"`
	AuthToken           string `mapstructure:"auth_token"`
	AuthTokenFile       string `mapstructure:"auth_token_file"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port                 int           `mapstructure:"port"`
	GraphiQLEnabled      bool          `mapstructure:"graphiql_enabled"`
	Auth                 AuthConfig    `mapstructure:"auth"`
	Admin                AdminConfig   `mapstructure:"admin"`
	RateLimitEnabled     bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	CORSEnabled          bool          `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string      `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string      `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string      `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders    []string      `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials bool          `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int           `mapstructure:"cors_max_age"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	IdleTimeout          time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout   time.Duration `mapstructure:"health_check_timeout"`

	TLSMode        string `mapstructure:"tls_mode"` // "off", "auto", or "file"
	TLSCertFile    string `mapstructure:"tls_cert_file"`
	TLSKeyFile     string `mapstructure:"tls_key_file"`
	TLSAutoCertDir string `mapstructure:"tls_auto_cert_dir"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`  // debug, info, warn, error
	Format         string `mapstructure:"format"` // json, text, pretty
	ExportsEnabled bool   `mapstructure:"exports_enabled"`
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName         string        `mapstructure:"service_name"`
	ServiceVersion      string        `mapstructure:"service_version"`
	Environment         string        `mapstructure:"environment"`
	MetricsEnabled      bool          `mapstructure:"metrics_enabled"`
	TracingEnabled      bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio    float64       `mapstructure:"trace_sample_ratio"`
	SQLCommenterEnabled bool          `mapstructure:"sqlcommenter_enabled"`
	Logging             LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings, overridable per signal.
	OTLP    OTLPConfig  `mapstructure:"otlp"`
	Traces  *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs    *OTLPConfig `mapstructure:"logs,omitempty"`
	Metrics *OTLPConfig `mapstructure:"metrics,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the OTLP settings for trace export.
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig { return c.OTLP.overlay(c.Traces) }

// GetLogsConfig returns the OTLP settings for log export.
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig { return c.OTLP.overlay(c.Logs) }

// GetMetricsConfig returns the OTLP settings for metric export.
func (c *ObservabilityConfig) GetMetricsConfig() OTLPConfig { return c.OTLP.overlay(c.Metrics) }

// overlay applies the set fields of a per-signal block on top of c. Insecure
// is a plain bool, so a present block always decides it.
func (c OTLPConfig) overlay(signal *OTLPConfig) OTLPConfig {
	if signal == nil {
		return c
	}
	out := c
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&out.Endpoint, signal.Endpoint)
	str(&out.Protocol, signal.Protocol)
	str(&out.TLSCertFile, signal.TLSCertFile)
	str(&out.TLSClientCertFile, signal.TLSClientCertFile)
	str(&out.TLSClientKeyFile, signal.TLSClientKeyFile)
	str(&out.Compression, signal.Compression)
	out.Insecure = signal.Insecure

	if signal.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers)+len(signal.Headers))
		maps.Copy(out.Headers, c.Headers)
		maps.Copy(out.Headers, signal.Headers)
	}
	if signal.Timeout != 0 {
		out.Timeout = signal.Timeout
	}
	if signal.RetryMaxAttempts != 0 {
		out.RetryEnabled = signal.RetryEnabled
		out.RetryMaxAttempts = signal.RetryMaxAttempts
	}
	return out
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "basic DSN",
			config: DatabaseConfig{
				Driver:   DriverMySQL,
				Host:     "localhost",
				Port:     4000,
				User:     "root",
				Password: "password",
				Database: "test",
			},
			expected: "root:password@tcp(localhost:4000)/test?parseTime=true",
		},
		{
			name: "with special characters in password",
			config: DatabaseConfig{
				Driver:   DriverMySQL,
				Host:     "db.example.com",
				Port:     3306,
				User:     "admin",
				Password: "p@ss:w0rd!",
				Database: "mydb",
			},
			expected: "admin:p@ss:w0rd!@tcp(db.example.com:3306)/mydb?parseTime=true",
		},
		{
			name: "empty password",
			config: DatabaseConfig{
				Driver:   DriverMySQL,
				Host:     "localhost",
				Port:     4000,
				User:     "root",
				Password: "",
				Database: "test",
			},
			expected: "root@tcp(localhost:4000)/test?parseTime=true",
		},
		{
			name: "mysql connection string gets parseTime and tls",
			config: DatabaseConfig{
				Driver:           DriverMySQL,
				ConnectionString: "app:secret@tcp(db:3306)/movies",
				TLS:              DatabaseTLSConfig{Mode: "verify-full"},
			},
			expected: "app:secret@tcp(db:3306)/movies?parseTime=true&tls=graph-query-connector-custom",
		},
		{
			name: "sqlite3 file path",
			config: DatabaseConfig{
				Driver:   DriverSQLite3,
				Database: "/var/lib/movies.db",
			},
			expected: "/var/lib/movies.db",
		},
		{
			name: "sqlite3 dsn wins over path",
			config: DatabaseConfig{
				Driver:           DriverSQLite3,
				ConnectionString: "file:movies.db?mode=ro",
				Database:         "/var/lib/movies.db",
			},
			expected: "file:movies.db?mode=ro",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.DSN()
			assert.Equal(t, tt.expected, result)
		})
	}
}

func validConfig() *Config {
	return &Config{
		Schema: SchemaConfig{
			File:               "schema.yaml",
			RefreshMinInterval: 30 * time.Second,
			RefreshMaxInterval: 5 * time.Minute,
		},
		Executor: ExecutorConfig{Mode: ExecutorModeGraphStore},
		Database: DatabaseConfig{
			Driver:   DriverMySQL,
			Host:     "localhost",
			Port:     4000,
			User:     "root",
			Database: "test",
			TLS:      DatabaseTLSConfig{Mode: "off"},
			Pool:     PoolConfig{MaxOpen: 25, MaxIdle: 5},
		},
		Server: ServerConfig{Port: 8080},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "json"},
			OTLP:    OTLPConfig{Protocol: "grpc", Compression: "gzip"},
		},
	}
}

func remote(c *Config) {
	c.Executor.Mode = ExecutorModeRemote
	c.Executor.Remote.URL = "https://graph.example.com/graphql"
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errs     []string // substrings of result.Error(); empty means valid
		warnings []string // expected warning fields, in order
	}{
		{name: "base config", mutate: func(c *Config) {}},
		{name: "pretty log format", mutate: func(c *Config) { c.Observability.Logging.Format = "pretty" }},
		{name: "database port zero", mutate: func(c *Config) { c.Database.Port = 0 }, errs: []string{"database.port"}},
		{name: "database port too high", mutate: func(c *Config) { c.Database.Port = 70000 }, errs: []string{"database.port"}},
		{name: "negative server port", mutate: func(c *Config) { c.Server.Port = -1 }, errs: []string{"server.port"}},
		{name: "unknown tls mode", mutate: func(c *Config) { c.Database.TLS.Mode = "invalid" }, errs: []string{"database.tls.mode"}},
		{
			name:     "skip-verify warns",
			mutate:   func(c *Config) { c.Database.TLS.Mode = "skip-verify" },
			warnings: []string{"database.tls.mode"},
		},
		{
			name: "verify-full with ca",
			mutate: func(c *Config) {
				c.Database.TLS.Mode = "verify-full"
				c.Database.TLS.CAFile = "/etc/ssl/ca.pem"
			},
		},
		{name: "verify-ca without ca", mutate: func(c *Config) { c.Database.TLS.Mode = "verify-ca" }, errs: []string{"database.tls.ca_file"}},
		{name: "unknown log level", mutate: func(c *Config) { c.Observability.Logging.Level = "invalid" }, errs: []string{"observability.logging.level"}},
		{name: "unknown log format", mutate: func(c *Config) { c.Observability.Logging.Format = "xml" }, errs: []string{"observability.logging.format"}},
		{name: "bare http protocol", mutate: func(c *Config) { c.Observability.OTLP.Protocol = "http" }, errs: []string{"observability.otlp.protocol"}},
		{
			name: "http/protobuf with host:port",
			mutate: func(c *Config) {
				c.Observability.OTLP.Protocol = "http/protobuf"
				c.Observability.OTLP.Endpoint = "localhost:4318"
			},
		},
		{
			name: "http/protobuf without port",
			mutate: func(c *Config) {
				c.Observability.OTLP.Protocol = "http/protobuf"
				c.Observability.OTLP.Endpoint = "localhost"
			},
			errs: []string{"observability.otlp.endpoint"},
		},
		{
			name: "rate limit without rps",
			mutate: func(c *Config) {
				c.Server.RateLimitEnabled = true
				c.Server.RateLimitBurst = 10
			},
			errs: []string{"rate_limit_rps"},
		},
		{
			name: "rate limit without burst",
			mutate: func(c *Config) {
				c.Server.RateLimitEnabled = true
				c.Server.RateLimitRPS = 100
			},
			errs: []string{"rate_limit_burst"},
		},
		{
			name: "rate limit configured",
			mutate: func(c *Config) {
				c.Server.RateLimitEnabled = true
				c.Server.RateLimitRPS = 100
				c.Server.RateLimitBurst = 10
			},
		},
		{
			name: "rate limit values while disabled",
			mutate: func(c *Config) {
				c.Server.RateLimitRPS = 100
				c.Server.RateLimitBurst = 10
			},
			warnings: []string{"server.rate_limit_enabled"},
		},
		{name: "cors without origins", mutate: func(c *Config) { c.Server.CORSEnabled = true }, errs: []string{"cors_allowed_origins"}},
		{
			name: "cors wildcard with credentials",
			mutate: func(c *Config) {
				c.Server.CORSEnabled = true
				c.Server.CORSAllowedOrigins = []string{"*"}
				c.Server.CORSAllowCredentials = true
			},
			errs: []string{"wildcard"},
		},
		{
			name: "cors wildcard",
			mutate: func(c *Config) {
				c.Server.CORSEnabled = true
				c.Server.CORSAllowedOrigins = []string{"*"}
			},
			warnings: []string{"server.cors_allowed_origins"},
		},
		{
			name: "cors named origin with credentials",
			mutate: func(c *Config) {
				c.Server.CORSEnabled = true
				c.Server.CORSAllowedOrigins = []string{"https://example.com"}
				c.Server.CORSAllowCredentials = true
			},
		},
		{
			name: "cors http origin behind tls",
			mutate: func(c *Config) {
				c.Server.CORSEnabled = true
				c.Server.TLSMode = "auto"
				c.Server.CORSAllowedOrigins = []string{"http://example.com"}
			},
			warnings: []string{"server.cors_allowed_origins"},
		},
		{name: "tls file mode without files", mutate: func(c *Config) { c.Server.TLSMode = "file" }, errs: []string{"tls_cert_file", "tls_key_file"}},
		{name: "tls auto mode", mutate: func(c *Config) { c.Server.TLSMode = "auto" }},
		{
			name: "max_idle above max_open",
			mutate: func(c *Config) {
				c.Database.Pool.MaxOpen = 10
				c.Database.Pool.MaxIdle = 20
			},
			warnings: []string{"database.pool.max_idle"},
		},
		{name: "oidc without issuer and audience", mutate: func(c *Config) { c.Server.Auth.OIDCEnabled = true }, errs: []string{"oidc_issuer_url", "oidc_audience"}},
		{
			name: "negative planner limits",
			mutate: func(c *Config) {
				c.Planner = PlannerConfig{MaxDepth: -1, MaxFields: -1, MaxRows: -1, DefaultLimit: -1}
			},
			errs: []string{"planner.max_depth", "planner.max_fields", "planner.max_rows", "planner.default_limit"},
		},
		{
			name: "default limit above max rows",
			mutate: func(c *Config) {
				c.Planner.MaxRows = 100
				c.Planner.DefaultLimit = 500
			},
			errs: []string{"planner.default_limit"},
		},
		{name: "blank schema file", mutate: func(c *Config) { c.Schema.File = " " }, errs: []string{"schema.file"}},
		{name: "unknown schema extension", mutate: func(c *Config) { c.Schema.File = "schema.toml" }, warnings: []string{"schema.file"}},
		{name: "unknown executor mode", mutate: func(c *Config) { c.Executor.Mode = "cluster" }, errs: []string{"executor.mode"}},
		{
			name:   "remote without url",
			mutate: func(c *Config) { c.Executor.Mode = ExecutorModeRemote },
			errs:   []string{"executor.remote.url"},
		},
		{
			name: "remote url without scheme",
			mutate: func(c *Config) {
				remote(c)
				c.Executor.Remote.URL = "neo4j.internal:7474"
			},
			errs: []string{"invalid remote url"},
		},
		{
			name: "remote ignores database settings",
			mutate: func(c *Config) {
				remote(c)
				c.Database.Port = 0
			},
		},
		{
			name: "remote bearer token over http",
			mutate: func(c *Config) {
				remote(c)
				c.Executor.Remote.URL = "http://graph.internal/graphql"
				c.Executor.Remote.BearerToken = "secret"
			},
			warnings: []string{"executor.remote.bearer_token"},
		},
		{
			name: "remote bearer token and file",
			mutate: func(c *Config) {
				remote(c)
				c.Executor.Remote.BearerToken = "secret"
				c.Executor.Remote.BearerTokenFile = "/run/secrets/token"
			},
			errs: []string{"mutually exclusive"},
		},
		{
			name: "graphiql in remote mode",
			mutate: func(c *Config) {
				remote(c)
				c.Server.GraphiQLEnabled = true
			},
			warnings: []string{"server.graphiql_enabled"},
		},
		{
			name:     "schema reload without auth",
			mutate:   func(c *Config) { c.Server.Admin.SchemaReloadEnabled = true },
			warnings: []string{"server.admin.schema_reload_enabled"},
		},
		{
			name: "schema reload with token",
			mutate: func(c *Config) {
				c.Server.Admin.SchemaReloadEnabled = true
				c.Server.Admin.AuthToken = "token"
			},
		},
		{name: "unknown database driver", mutate: func(c *Config) { c.Database.Driver = "postgres" }, errs: []string{"database.driver"}},
		{
			name: "sqlite3 without file",
			mutate: func(c *Config) {
				c.Database.Driver = DriverSQLite3
				c.Database.Database = ""
			},
			errs: []string{"database"},
		},
		{
			name: "sqlite3 file ignores port",
			mutate: func(c *Config) {
				c.Database.Driver = DriverSQLite3
				c.Database.Database = "movies.db"
				c.Database.Port = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			result := cfg.Validate()

			if len(tt.errs) == 0 {
				assert.False(t, result.HasErrors(), result.Error())
			} else {
				require.True(t, result.HasErrors())
				for _, want := range tt.errs {
					assert.Contains(t, result.Error(), want)
				}
			}

			var fields []string
			for _, w := range result.Warnings {
				fields = append(fields, w.Field)
			}
			assert.Equal(t, tt.warnings, fields)
		})
	}
}

func TestConfig_ValidateCollectsEveryError(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Port = 0
	cfg.Server.Port = 0
	cfg.Observability.Logging.Level = "invalid"

	result := cfg.Validate()
	assert.Len(t, result.Errors, 3)
}

func TestValidationError_Error(t *testing.T) {
	withHint := ValidationError{Field: "planner.max_rows", Message: "must be >= 0", Hint: "use 0 for unlimited"}
	assert.Equal(t, "planner.max_rows: must be >= 0 (hint: use 0 for unlimited)", withHint.Error())

	withHint.Hint = ""
	assert.Equal(t, "planner.max_rows: must be >= 0", withHint.Error())
}

func TestObservabilityConfig_SignalOverlay(t *testing.T) {
	obs := ObservabilityConfig{
		OTLP: OTLPConfig{
			Endpoint: "collector:4317",
			Protocol: "grpc",
			Insecure: true,
			Headers:  map[string]string{"x-tenant": "a", "x-env": "prod"},
			Timeout:  10 * time.Second,
		},
		Traces: &OTLPConfig{
			Endpoint: "traces:4318",
			Protocol: "http/protobuf",
			Headers:  map[string]string{"x-tenant": "b"},
		},
	}

	traces := obs.GetTracesConfig()
	assert.Equal(t, "traces:4318", traces.Endpoint)
	assert.Equal(t, "http/protobuf", traces.Protocol)
	assert.False(t, traces.Insecure)
	assert.Equal(t, 10*time.Second, traces.Timeout)
	assert.Equal(t, map[string]string{"x-tenant": "b", "x-env": "prod"}, traces.Headers)
	assert.Equal(t, "a", obs.OTLP.Headers["x-tenant"], "base headers must not be mutated")

	assert.Equal(t, obs.OTLP, obs.GetLogsConfig())
}

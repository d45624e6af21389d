package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"graph-query-connector/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult collects every problem found rather than stopping at the first.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// AddError records a fatal problem with field.
func (r *ValidationResult) AddError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

// AddWarning records a non-fatal problem with field.
func (r *ValidationResult) AddWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// enum fails field unless value is one of allowed. The empty string is
// accepted when allowEmpty is set; it is never listed in the hint.
func (r *ValidationResult) enum(field, what, value string, allowEmpty bool, allowed ...string) {
	if (allowEmpty && value == "") || slices.Contains(allowed, value) {
		return
	}
	r.AddError(field, fmt.Sprintf("invalid %s %q", what, value), "valid values are: "+strings.Join(allowed, ", "))
}

func (r *ValidationResult) nonNegative(field string, negative bool) {
	if negative {
		name := field[strings.LastIndex(field, ".")+1:]
		r.AddError(field, name+" cannot be negative", "")
	}
}

func (r *ValidationResult) validPort(field string, port int) {
	if port < 1 || port > 65535 {
		r.AddError(field, fmt.Sprintf("port %d is out of valid range (1-65535)", port), "")
	}
}

// Validate checks the configuration and returns errors (fatal) and warnings.
// Database settings are only checked when queries run in-process.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Schema.validate(result)
	c.Executor.validate(result)
	if c.Executor.Mode == ExecutorModeGraphStore {
		c.Database.validate(result)
	}
	c.Planner.validate(result)
	c.Server.validate(result)
	c.validateSurfaces(result)
	c.Observability.validate(result)
	validateNamingConfig(result, c.Naming)

	return result
}

func (s *SchemaConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(s.File) == "" {
		result.AddError("schema.file", "schema descriptor file is required", "set schema.file to a .yaml, .yml or .json descriptor")
	} else if ext := strings.ToLower(filepath.Ext(s.File)); !slices.Contains([]string{".yaml", ".yml", ".json"}, ext) {
		result.AddWarning("schema.file", fmt.Sprintf("unrecognized schema file extension %q", filepath.Ext(s.File)), "the file will be parsed as YAML")
	}
	result.nonNegative("schema.refresh_min_interval", s.RefreshMinInterval < 0)
	result.nonNegative("schema.refresh_max_interval", s.RefreshMaxInterval < 0)
	if s.RefreshMinInterval > 0 && s.RefreshMaxInterval > 0 && s.RefreshMaxInterval < s.RefreshMinInterval {
		result.AddWarning("schema.refresh_max_interval", "refresh_max_interval is less than refresh_min_interval", "the minimum interval will be used for every check")
	}
}

func (e *ExecutorConfig) validate(result *ValidationResult) {
	switch e.Mode {
	case ExecutorModeGraphStore:
		if e.Remote.URL != "" {
			result.AddWarning("executor.remote.url", "remote url is set but executor.mode is graphstore", "set executor.mode=remote to send queries to the remote endpoint")
		}
		return
	case ExecutorModeRemote:
	default:
		result.enum("executor.mode", "executor mode", e.Mode, false, ExecutorModeGraphStore, ExecutorModeRemote)
		return
	}

	r := e.Remote
	if r.URL == "" {
		result.AddError("executor.remote.url", "remote url is required when executor.mode is remote", "")
	} else if parsed, err := url.Parse(r.URL); err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		result.AddError("executor.remote.url", fmt.Sprintf("invalid remote url %q", r.URL), "use a full http:// or https:// URL")
	} else if parsed.Scheme == "http" && (r.BearerToken != "" || r.BearerTokenFile != "") {
		result.AddWarning("executor.remote.bearer_token", "bearer token will be sent over plain http", "use an https:// remote url")
	}
	if r.BearerToken != "" && r.BearerTokenFile != "" {
		result.AddError("executor.remote.bearer_token_file", "bearer_token and bearer_token_file are mutually exclusive", "set one of them")
	}
	result.nonNegative("executor.remote.timeout", r.Timeout < 0)
}

func (p *PlannerConfig) validate(result *ValidationResult) {
	result.nonNegative("planner.max_depth", p.MaxDepth < 0)
	result.nonNegative("planner.max_fields", p.MaxFields < 0)
	result.nonNegative("planner.max_rows", p.MaxRows < 0)
	result.nonNegative("planner.default_limit", p.DefaultLimit < 0)
	if p.MaxRows > 0 && p.DefaultLimit > p.MaxRows {
		result.AddError("planner.default_limit", fmt.Sprintf("default_limit %d exceeds max_rows %d", p.DefaultLimit, p.MaxRows), "lower planner.default_limit or raise planner.max_rows")
	}
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	overrides := []struct {
		field string
		words map[string]string
	}{
		{"naming.plural_overrides", cfg.PluralOverrides},
		{"naming.singular_overrides", cfg.SingularOverrides},
	}
	for _, o := range overrides {
		for word, override := range o.words {
			if strings.TrimSpace(word) == "" || strings.TrimSpace(override) == "" {
				result.AddError(o.field, "overrides cannot have empty words", "")
				break
			}
		}
	}
}

// validateSurfaces checks settings that only make sense for some executor modes.
func (c *Config) validateSurfaces(result *ValidationResult) {
	if c.Server.GraphiQLEnabled && c.Executor.Mode == ExecutorModeRemote {
		result.AddWarning("server.graphiql_enabled", "GraphiQL is only served by the in-process graph store", "set executor.mode=graphstore or disable graphiql_enabled")
	}
	admin := c.Server.Admin
	if admin.SchemaReloadEnabled && admin.AuthToken == "" && admin.AuthTokenFile == "" && !c.Server.Auth.OIDCEnabled {
		result.AddWarning("server.admin.schema_reload_enabled", "schema reload endpoint is enabled without authentication", "set server.admin.auth_token_file or enable OIDC")
	}
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	switch d.Driver {
	case DriverMySQL:
		d.validateMySQL(result)
	case DriverSQLite3:
		if strings.TrimSpace(d.DSN()) == "" {
			result.AddError("database.database", "sqlite3 requires a database file", "set database.database to a file path or database.dsn to a file: URI")
		}
	default:
		result.enum("database.driver", "database driver", d.Driver, false, DriverMySQL, DriverSQLite3)
		return
	}
	d.validatePool(result)
}

func (d *DatabaseConfig) validateMySQL(result *ValidationResult) {
	hasMyCnf := strings.TrimSpace(d.MyCnfFile) != ""
	if hasMyCnf && (strings.TrimSpace(d.ConnectionString) != "" || strings.TrimSpace(d.ConnectionStringFile) != "") {
		result.AddError("database.mycnf_file", "mycnf_file is mutually exclusive with dsn/dsn_file", "set either mycnf_file or dsn/dsn_file, not both")
	}
	if hasMyCnf {
		d.applyMyCnf(result)
	}
	if d.ConnectionString == "" {
		result.validPort("database.port", d.Port)
	}
	d.TLS.validate(result)

	effectiveDatabase, _, err := resolveEffectiveDatabaseName(d.Database, d.ConnectionString, d.MyCnfFile)
	if err != nil {
		appendDatabaseNameError(result, err)
		return
	}
	d.Database = effectiveDatabase
}

// applyMyCnf fills unset connection fields from the defaults file.
func (d *DatabaseConfig) applyMyCnf(result *ValidationResult) {
	settings, err := parseMyCnfFile(d.MyCnfFile)
	if err != nil {
		result.AddError("database.mycnf_file", fmt.Sprintf("failed to parse my.cnf file: %v", err), "provide a valid MySQL defaults file with [client] settings")
		return
	}
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fill(&d.Host, settings.Host)
	fill(&d.User, settings.User)
	fill(&d.Password, settings.Password)
	fill(&d.TLS.Mode, settings.TLSMode)
	if d.Port == 0 && settings.HasPort {
		d.Port = settings.Port
	}
	if !settings.HasDBName {
		return
	}
	switch strings.TrimSpace(d.Database) {
	case "":
		d.Database = settings.Database
	case settings.Database:
	default:
		result.AddError("database.database",
			fmt.Sprintf("database mismatch: database.database=%q but database.mycnf_file targets %q", d.Database, settings.Database),
			"either remove database.database or set it to match my.cnf database")
	}
}

func (d *DatabaseConfig) validatePool(result *ValidationResult) {
	result.nonNegative("database.pool.max_open", d.Pool.MaxOpen < 0)
	result.nonNegative("database.pool.max_idle", d.Pool.MaxIdle < 0)
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.AddWarning("database.pool.max_idle", "max_idle is greater than max_open", "idle connections will be limited to max_open")
	}

	result.nonNegative("database.connection_timeout", d.ConnectionTimeout < 0)
	result.nonNegative("database.connection_retry_interval", d.ConnectionRetryInterval < 0)
	if d.ConnectionTimeout > 0 {
		switch {
		case d.ConnectionRetryInterval == 0:
			result.AddError("database.connection_retry_interval", "connection_retry_interval must be greater than 0 when connection_timeout is set",
				"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries")
		case d.ConnectionRetryInterval > d.ConnectionTimeout:
			result.AddWarning("database.connection_retry_interval", "connection_retry_interval is greater than connection_timeout", "only one connection attempt will be made")
		}
	}
}

func appendDatabaseNameError(result *ValidationResult, err error) {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "database.dsn"):
		result.AddError("database.dsn", msg, "set a valid MySQL DSN in database.dsn/database.dsn_file")
	case strings.HasPrefix(msg, "database.mycnf_file"):
		result.AddError("database.mycnf_file", msg, "set a valid my.cnf file and include [client] database or database.database")
	case strings.Contains(msg, "mismatch"):
		result.AddError("database.database", msg, "either remove database.database or set it to match the DSN/my.cnf database")
	default:
		result.AddError("database.database", msg, "set database.database or include a /database in database.dsn/database.dsn_file or database.mycnf_file")
	}
}

func (t *DatabaseTLSConfig) validate(result *ValidationResult) {
	result.enum("database.tls.mode", "TLS mode", t.Mode, true, "off", "skip-verify", "verify-ca", "verify-full")

	if (t.Mode == "verify-ca" || t.Mode == "verify-full") && t.resolveCAFile() == "" {
		result.AddError("database.tls.ca_file", "CA file is required for verify-ca and verify-full modes", "set ca_file or ca_file_env to specify the CA certificate")
	}
	if (t.resolveCertFile() == "") != (t.resolveKeyFile() == "") {
		result.AddError("database.tls.cert_file", "both cert_file and key_file must be specified for client certificate authentication", "provide both cert_file and key_file, or neither")
	}
	if t.Mode == "skip-verify" {
		result.AddWarning("database.tls.mode", "skip-verify mode does not verify server certificates", "use verify-ca or verify-full in production")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	result.validPort("server.port", s.Port)

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.AddError("server.rate_limit_rps", "rate_limit_rps must be greater than 0 when rate limiting is enabled", "")
		}
		if s.RateLimitBurst <= 0 {
			result.AddError("server.rate_limit_burst", "rate_limit_burst must be greater than 0 when rate limiting is enabled", "")
		}
	} else if s.RateLimitRPS > 0 || s.RateLimitBurst > 0 {
		result.AddWarning("server.rate_limit_enabled", "rate limit values are set but rate limiting is disabled", "enable server.rate_limit_enabled to apply rate limits")
	}

	s.validateCORS(result)

	if s.Auth.OIDCEnabled {
		if s.Auth.OIDCIssuerURL == "" {
			result.AddError("server.auth.oidc_issuer_url", "issuer URL is required when OIDC is enabled", "")
		}
		if s.Auth.OIDCAudience == "" {
			result.AddError("server.auth.oidc_audience", "audience is required when OIDC is enabled", "")
		}
	}

	result.enum("server.tls_mode", "TLS mode", s.TLSMode, true, "off", "auto", "file")
	if s.TLSMode == "file" {
		if s.TLSCertFile == "" {
			result.AddError("server.tls_cert_file", "TLS cert file required when tls_mode is 'file'", "")
		}
		if s.TLSKeyFile == "" {
			result.AddError("server.tls_key_file", "TLS key file required when tls_mode is 'file'", "")
		}
	}
}

func (s *ServerConfig) validateCORS(result *ValidationResult) {
	if !s.CORSEnabled {
		return
	}
	if len(s.CORSAllowedOrigins) == 0 {
		result.AddError("server.cors_allowed_origins", "CORS enabled but no allowed origins configured", "set cors_allowed_origins or disable CORS")
		return
	}

	wildcard := false
	onlyHTTP := true
	for _, origin := range s.CORSAllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			wildcard = true
		}
		if !strings.HasPrefix(origin, "http://") {
			onlyHTTP = false
		}
	}

	if wildcard && s.CORSAllowCredentials {
		result.AddError("server.cors_allowed_origins", "wildcard origin (*) cannot be used with credentials", "use specific origins with credentials, or wildcard without credentials")
	} else if wildcard {
		result.AddWarning("server.cors_allowed_origins", "CORS wildcard origin enabled", "use specific origins in production for better security")
	}
	if onlyHTTP && s.TLSMode != "" && s.TLSMode != "off" {
		result.AddWarning("server.cors_allowed_origins", "CORS allowed origins are http:// only while TLS is enabled", "use https:// origins when serving over TLS")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	result.enum("observability.logging.level", "log level", o.Logging.Level, false, "debug", "info", "warn", "error")
	result.enum("observability.logging.format", "log format", o.Logging.Format, false, "json", "text", "pretty")

	o.OTLP.validate("observability.otlp", result)
	signals := []struct {
		prefix string
		cfg    *OTLPConfig
	}{
		{"observability.traces", o.Traces},
		{"observability.logs", o.Logs},
		{"observability.metrics", o.Metrics},
	}
	for _, s := range signals {
		if s.cfg != nil {
			s.cfg.validate(s.prefix, result)
		}
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	result.enum(prefix+".protocol", "OTLP protocol", o.Protocol, true, "grpc", "http/protobuf")
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.AddError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint), "use host:port or a full URL")
	}
	result.enum(prefix+".compression", "OTLP compression", o.Compression, true, "none", "gzip")
	result.nonNegative(prefix+".retry_max_attempts", o.RetryMaxAttempts < 0)
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		return err == nil && parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}

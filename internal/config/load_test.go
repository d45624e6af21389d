package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestUnmarshal_Defaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := unmarshal(v)
	if err != nil {
		t.Fatalf("unmarshal defaults: %v", err)
	}
	if cfg.Executor.Mode != ExecutorModeGraphStore {
		t.Fatalf("expected graphstore executor by default, got %q", cfg.Executor.Mode)
	}
	if cfg.Database.Driver != DriverMySQL {
		t.Fatalf("expected mysql driver by default, got %q", cfg.Database.Driver)
	}
	if cfg.Schema.RefreshMinInterval != 30*time.Second {
		t.Fatalf("unexpected refresh_min_interval %v", cfg.Schema.RefreshMinInterval)
	}
	if result := cfg.Validate(); result.HasErrors() {
		t.Fatalf("defaults should validate: %s", result.Error())
	}
}

func TestUnmarshal_RejectsRemovedServerLimitKeys(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	configYAML := `
server:
  graphql_max_depth: 5
`
	if err := v.ReadConfig(strings.NewReader(configYAML)); err != nil {
		t.Fatalf("failed to read config yaml: %v", err)
	}

	_, err := unmarshal(v)
	if err == nil {
		t.Fatal("expected unmarshal error for server.graphql_max_depth")
	}
	if !strings.Contains(err.Error(), "graphql_max_depth") {
		t.Fatalf("expected error to mention graphql_max_depth, got: %v", err)
	}
}

func TestUnmarshal_RemoteExecutorYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	configYAML := `
executor:
  mode: remote
  remote:
    url: https://graph.example.com/graphql
    timeout: 5s
    headers:
      x-tenant: movies
planner:
  max_depth: 4
  default_limit: 50
server:
  cors_allowed_origins: "https://a.example.com, https://b.example.com"
`
	if err := v.ReadConfig(strings.NewReader(configYAML)); err != nil {
		t.Fatalf("failed to read config yaml: %v", err)
	}

	cfg, err := unmarshal(v)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Executor.Remote.Timeout != 5*time.Second {
		t.Fatalf("unexpected remote timeout %v", cfg.Executor.Remote.Timeout)
	}
	if cfg.Executor.Remote.Headers["x-tenant"] != "movies" {
		t.Fatalf("unexpected remote headers %v", cfg.Executor.Remote.Headers)
	}
	if cfg.Planner.MaxDepth != 4 || cfg.Planner.DefaultLimit != 50 {
		t.Fatalf("unexpected planner config %+v", cfg.Planner)
	}
	if len(cfg.Server.CORSAllowedOrigins) != 2 || cfg.Server.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected cors origins %v", cfg.Server.CORSAllowedOrigins)
	}
}

func TestParseMyCnf(t *testing.T) {
	raw := `
# client defaults
[client]
host = db.internal
port = 3307
user = "movies_ro"
password = 's3cret'
ssl-mode = VERIFY_IDENTITY

[mysql]
database = movies
`
	settings, err := parseMyCnf(raw)
	if err != nil {
		t.Fatalf("parseMyCnf: %v", err)
	}
	if settings.Host != "db.internal" || settings.Port != 3307 || !settings.HasPort {
		t.Fatalf("unexpected host/port: %+v", settings)
	}
	if settings.User != "movies_ro" || settings.Password != "s3cret" {
		t.Fatalf("quotes should be stripped: %+v", settings)
	}
	if settings.TLSMode != "verify-full" {
		t.Fatalf("unexpected tls mode %q", settings.TLSMode)
	}
	if settings.Database != "movies" || !settings.HasDBName {
		t.Fatalf("expected [mysql] database fallback, got %+v", settings)
	}

	if _, err := parseMyCnf("[client]\nport = 99999\n"); err == nil {
		t.Fatal("expected out of range port to fail")
	}
	if _, err := parseMyCnf("[client]\nssl-mode = SOMETIMES\n"); err == nil {
		t.Fatal("expected unsupported ssl-mode to fail")
	}
}

func TestReadSecretFile_TrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  token-value\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	got, err := readSecretFile(path)
	if err != nil {
		t.Fatalf("readSecretFile: %v", err)
	}
	if got != "token-value" {
		t.Fatalf("got %q", got)
	}
}

func TestParseMyCnf_SpaceSeparatedAndSections(t *testing.T) {
	settings, err := parseMyCnf("[mysqld]\nport 1111\n[client]\nhost db2\ndatabase \"catalog\"\n[mysql]\ndatabase ignored\n")
	if err != nil {
		t.Fatalf("parseMyCnf: %v", err)
	}
	if settings.HasPort {
		t.Fatalf("[mysqld] keys must be ignored: %+v", settings)
	}
	if settings.Host != "db2" || settings.Database != "catalog" {
		t.Fatalf("unexpected settings %+v", settings)
	}

	if _, err := parseMyCnf("[client]\nhost\n"); err == nil {
		t.Fatal("expected a key without value to fail")
	}
}

func TestMyCnfSettingsApply(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	settings := myCnfSettings{Host: "db.internal", Port: 3307, HasPort: true, Database: "catalog", HasDBName: true}

	settings.apply(v, true)
	if v.GetString("database.host") != "db.internal" || v.GetInt("database.port") != 3307 {
		t.Fatalf("host/port not applied")
	}
	if v.GetString("database.user") != "graph_query" {
		t.Fatalf("empty my.cnf values must not clear settings")
	}
	if v.GetString("database.database") != defaultDatabaseName {
		t.Fatalf("explicit database must win over my.cnf")
	}

	settings.apply(v, false)
	if v.GetString("database.database") != "catalog" {
		t.Fatalf("expected my.cnf database, got %q", v.GetString("database.database"))
	}
}

func TestResolveSecrets(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	v := viper.New()
	v.Set("database.password", "inline")
	v.Set("database.password_file", write("password", "from-file\n"))
	v.Set("executor.remote.bearer_token_file", write("bearer", " remote-token "))
	if err := resolveSecrets(v); err != nil {
		t.Fatalf("resolveSecrets: %v", err)
	}
	if v.GetString("database.password") != "inline" {
		t.Fatalf("an inline value must not be replaced by its file")
	}
	if v.GetString("executor.remote.bearer_token") != "remote-token" {
		t.Fatalf("unexpected bearer token %q", v.GetString("executor.remote.bearer_token"))
	}

	v = viper.New()
	v.Set("server.admin.auth_token_file", write("empty", "\n"))
	err := resolveSecrets(v)
	if err == nil || !strings.Contains(err.Error(), "admin auth token file") {
		t.Fatalf("expected empty admin token file error, got %v", err)
	}

	v = viper.New()
	v.Set("database.dsn_file", filepath.Join(dir, "absent"))
	if err := resolveSecrets(v); err == nil || !strings.Contains(err.Error(), "failed to read database DSN file") {
		t.Fatalf("expected missing dsn file error, got %v", err)
	}
}

func TestNormalizeMySQLTarget(t *testing.T) {
	t.Run("dsn replaces default name", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		v.Set("database.dsn", "app:secret@tcp(db:3306)/catalog")
		if err := normalizeMySQLTarget(v, false, nil); err != nil {
			t.Fatalf("normalizeMySQLTarget: %v", err)
		}
		if got := v.GetString("database.database"); got != "catalog" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("explicit name must match dsn", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		v.Set("database.database", "movies")
		v.Set("database.dsn", "app:secret@tcp(db:3306)/catalog")
		err := normalizeMySQLTarget(v, true, nil)
		if err == nil || !strings.Contains(err.Error(), "database mismatch") {
			t.Fatalf("expected mismatch, got %v", err)
		}
	})

	t.Run("my.cnf without database", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		v.Set("database.mycnf_file", "/etc/my.cnf")
		err := normalizeMySQLTarget(v, false, &myCnfSettings{Host: "db"})
		if err == nil || !strings.Contains(err.Error(), "does not provide a database name") {
			t.Fatalf("expected missing database error, got %v", err)
		}
	})
}

func TestCommaSeparatedHook(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("server.cors_allowed_methods", "GET , POST")
	cfg, err := unmarshal(v)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(cfg.Server.CORSAllowedMethods) != 2 || cfg.Server.CORSAllowedMethods[1] != "POST" {
		t.Fatalf("unexpected methods %v", cfg.Server.CORSAllowedMethods)
	}
}

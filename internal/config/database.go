package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// tlsConfigName is the name the custom TLS config is registered under with
// the mysql driver.
const tlsConfigName = "graph-query-connector-custom"

// DSN returns the data source name for the configured driver. For sqlite3
// the connection string wins over the database file path. For mysql the DSN
// always has parseTime enabled and carries the TLS setting unless the
// connection string already names one.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite3 {
		if d.ConnectionString != "" {
			return d.ConnectionString
		}
		return d.Database
	}

	cfg := mysql.NewConfig()
	if d.ConnectionString != "" {
		parsed, err := mysql.ParseDSN(d.ConnectionString)
		if err != nil {
			// Left for the driver to report.
			return d.ConnectionString
		}
		cfg = parsed
	} else {
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.DBName = d.Database
	}
	cfg.ParseTime = true
	if cfg.TLSConfig == "" {
		cfg.TLSConfig = d.tlsParam()
	}
	return cfg.FormatDSN()
}

// tlsParam maps database.tls.mode onto the driver's tls parameter.
func (d *DatabaseConfig) tlsParam() string {
	switch d.TLS.Mode {
	case "":
		return ""
	case "off":
		return "false"
	case "verify-ca", "verify-full":
		return tlsConfigName
	default:
		return d.TLS.Mode
	}
}

// EffectiveDatabaseName returns the mysql database the connector will use
// and which setting supplied it.
func (d *DatabaseConfig) EffectiveDatabaseName() (name string, source string, err error) {
	return resolveEffectiveDatabaseName(d.Database, d.ConnectionString, d.MyCnfFile)
}

// resolveEffectiveDatabaseName reconciles database.database with the
// database named in the DSN. An explicit name must agree with the DSN.
func resolveEffectiveDatabaseName(databaseName, connectionString, myCnfFile string) (string, string, error) {
	explicit := strings.TrimSpace(databaseName)
	dsn := strings.TrimSpace(connectionString)
	fromMyCnf := strings.TrimSpace(myCnfFile) != ""

	var dsnDatabase string
	if dsn != "" {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		dsnDatabase = strings.TrimSpace(parsed.DBName)
	}

	switch {
	case explicit != "" && dsnDatabase != "" && explicit != dsnDatabase:
		return "", "", fmt.Errorf("database mismatch: database.database=%q but database.dsn targets %q", explicit, dsnDatabase)
	case explicit != "" && fromMyCnf && dsn == "":
		return explicit, "mycnf", nil
	case explicit != "":
		return explicit, "database.database", nil
	case dsnDatabase != "":
		return dsnDatabase, "dsn", nil
	case fromMyCnf:
		return "", "", errors.New("database.mycnf_file does not provide a database name and database.database is not set")
	}
	return "", "", errors.New("no effective database name configured: set database.database or include /<database> in database.dsn/database.dsn_file or database.mycnf_file")
}

// RegisterTLS registers the verify-ca/verify-full TLS config with the mysql
// driver. It must run before the DSN is opened and is a no-op otherwise.
func (d *DatabaseConfig) RegisterTLS() error {
	if d.Driver == DriverSQLite3 || d.tlsParam() != tlsConfigName {
		return nil
	}
	tlsCfg, err := d.TLS.clientConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}
	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

func (t *DatabaseTLSConfig) clientConfig() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if t.Mode == "verify-full" && t.ServerName != "" {
		cfg.ServerName = t.ServerName
	}

	if caFile := t.resolveCAFile(); caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", caFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", caFile)
		}
		cfg.RootCAs = pool
	}

	certFile, keyFile := t.resolveCertFile(), t.resolveKeyFile()
	switch {
	case certFile != "" && keyFile != "":
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case certFile != "" || keyFile != "":
		return nil, errors.New("both cert_file and key_file must be specified for client certificate authentication")
	}
	return cfg, nil
}

// fromEnv prefers the path held in the named environment variable.
func fromEnv(envName, path string) string {
	if envName != "" {
		if v := os.Getenv(envName); v != "" {
			return v
		}
	}
	return path
}

func (t *DatabaseTLSConfig) resolveCAFile() string   { return fromEnv(t.CAFileEnv, t.CAFile) }
func (t *DatabaseTLSConfig) resolveCertFile() string { return fromEnv(t.CertFileEnv, t.CertFile) }
func (t *DatabaseTLSConfig) resolveKeyFile() string  { return fromEnv(t.KeyFileEnv, t.KeyFile) }

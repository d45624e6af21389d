// Package tlscert supplies the HTTPS server certificate, either from files on
// disk or from a self-signed certificate generated for local development.
package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Mode selects where the server certificate comes from. The values match the
// server.tls_mode configuration key.
type Mode string

const (
	ModeFile Mode = "file"
	ModeAuto Mode = "auto"
)

// MinTLSVersion is the minimum supported TLS version for the server.
const MinTLSVersion = tls.VersionTLS13

// DefaultHosts are the names a self-signed certificate is issued for when
// Config.Hosts is empty.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// Config holds TLS certificate configuration.
type Config struct {
	Mode Mode

	// File mode.
	CertFile string
	KeyFile  string

	// Auto mode.
	AutoCertDir string
	Hosts       []string
}

// Source hands certificates to the TLS stack. File-backed sources pick up
// rotated certificates on the next handshake after the files change.
type Source struct {
	description string
	certFile    string
	keyFile     string
	logger      *slog.Logger

	mu      sync.Mutex
	cert    *tls.Certificate
	modTime time.Time
}

// New validates cfg and loads the initial certificate.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Mode {
	case ModeFile:
		if err := checkFileConfig(cfg); err != nil {
			return nil, err
		}
	case ModeAuto:
		hosts := cfg.Hosts
		if len(hosts) == 0 {
			hosts = DefaultHosts
		}
		certFile, keyFile, err := ensureSelfSigned(cfg.AutoCertDir, hosts, logger)
		if err != nil {
			return nil, err
		}
		cfg.CertFile, cfg.KeyFile = certFile, keyFile
	default:
		return nil, fmt.Errorf("unsupported TLS certificate mode %q (valid modes: file, auto)", cfg.Mode)
	}

	s := &Source{
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
		logger:   logger,
	}
	if cfg.Mode == ModeAuto {
		s.description = fmt.Sprintf("self-signed (cert=%s) - DEV ONLY", cfg.CertFile)
	} else {
		s.description = fmt.Sprintf("file-based (cert=%s, key=%s)", cfg.CertFile, cfg.KeyFile)
	}
	if _, err := s.certificate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServerConfig returns a tls.Config for http.Server.
func (s *Source) ServerConfig() *tls.Config {
	return &tls.Config{
		MinVersion: MinTLSVersion,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return s.certificate()
		},
	}
}

// String describes the certificate source for logs.
func (s *Source) String() string {
	return s.description
}

// certificate returns the cached pair, reloading it when the certificate file
// has a newer modification time. A failed reload keeps serving the old pair.
func (s *Source) certificate() (*tls.Certificate, error) {
	info, err := os.Stat(s.certFile)
	if err != nil {
		return s.fallback(fmt.Errorf("certificate file not accessible: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cert != nil && !info.ModTime().After(s.modTime) {
		return s.cert, nil
	}
	pair, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		if s.cert != nil {
			s.logger.Error("failed to reload certificate", slog.String("cert_file", s.certFile), slog.String("error", err.Error()))
			return s.cert, nil
		}
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	s.cert = &pair
	s.modTime = info.ModTime()
	return s.cert, nil
}

func (s *Source) fallback(err error) (*tls.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cert == nil {
		return nil, err
	}
	s.logger.Error("serving cached certificate", slog.String("error", err.Error()))
	return s.cert, nil
}

func checkFileConfig(cfg Config) error {
	if cfg.CertFile == "" {
		return fmt.Errorf("tls_cert_file is required when tls_mode=file")
	}
	if cfg.KeyFile == "" {
		return fmt.Errorf("tls_key_file is required when tls_mode=file")
	}
	for _, f := range []struct{ kind, path string }{{"certificate", cfg.CertFile}, {"key", cfg.KeyFile}} {
		info, err := os.Stat(f.path)
		switch {
		case err != nil:
			return fmt.Errorf("invalid %s file: %w", f.kind, err)
		case info.IsDir():
			return fmt.Errorf("invalid %s file: %s is a directory", f.kind, f.path)
		case info.Size() == 0:
			return fmt.Errorf("invalid %s file: %s is empty", f.kind, f.path)
		}
	}
	info, _ := os.Stat(cfg.KeyFile)
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("insecure key file permissions %o (should be 0600 or 0400)", perm)
	}
	return nil
}

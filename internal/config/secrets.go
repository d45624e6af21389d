package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

// stdinPath as a *_file value reads the secret from standard input.
const stdinPath = "@-"

// secretFile fills key from the file named by fileKey when key is unset.
type secretFile struct {
	key      string
	fileKey  string
	what     string
	nonEmpty bool
}

var secretFiles = []secretFile{
	{key: "database.dsn", fileKey: "database.dsn_file", what: "database DSN"},
	{key: "database.password", fileKey: "database.password_file", what: "database password"},
	{key: "server.admin.auth_token", fileKey: "server.admin.auth_token_file", what: "admin auth token", nonEmpty: true},
	{key: "executor.remote.bearer_token", fileKey: "executor.remote.bearer_token_file", what: "remote executor bearer token"},
}

func resolveSecrets(v *viper.Viper) error {
	for _, s := range secretFiles {
		path := v.GetString(s.fileKey)
		if v.GetString(s.key) != "" || path == "" {
			continue
		}
		value, err := readSecretFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s file: %w", s.what, err)
		}
		if value == "" && s.nonEmpty {
			return fmt.Errorf("%s file %q is empty", s.what, path)
		}
		v.Set(s.key, value)
	}

	if v.GetString("database.password") == "" && v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}
	return nil
}

// validateSingleStdinFileSource rejects configurations where more than one
// file setting reads from stdin.
func validateSingleStdinFileSource(v *viper.Viper) error {
	keys := []string{"database.mycnf_file"}
	for _, s := range secretFiles {
		keys = append(keys, s.fileKey)
	}

	var fromStdin []string
	for _, key := range keys {
		if strings.TrimSpace(v.GetString(key)) == stdinPath {
			fromStdin = append(fromStdin, key)
		}
	}
	if len(fromStdin) > 1 {
		return fmt.Errorf("multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(fromStdin, ", "))
	}
	return nil
}

func readRawFile(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(path) == stdinPath {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	return string(data), err
}

// readSecretFile reads a secret and trims surrounding whitespace.
func readSecretFile(path string) (string, error) {
	raw, err := readRawFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	pwd, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

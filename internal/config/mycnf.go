package config

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// myCnfSettings holds what a MySQL option file contributes. Only [client]
// keys are read, plus database from [mysql] as a fallback.
type myCnfSettings struct {
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	TLSMode   string
	HasPort   bool
	HasDBName bool
}

// myCnfSSLModes maps ssl-mode onto database.tls.mode.
var myCnfSSLModes = map[string]string{
	"":                "",
	"DISABLED":        "off",
	"PREFERRED":       "skip-verify",
	"REQUIRED":        "skip-verify",
	"VERIFY_CA":       "verify-ca",
	"VERIFY_IDENTITY": "verify-full",
}

// apply overrides connection settings with the file's values. The database
// name is only taken when the user did not configure one.
func (s myCnfSettings) apply(v *viper.Viper, explicitDatabase bool) {
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("database.host", s.Host)
	set("database.user", s.User)
	set("database.password", s.Password)
	set("database.tls.mode", s.TLSMode)
	if s.HasPort {
		v.Set("database.port", s.Port)
	}
	if s.HasDBName && !explicitDatabase {
		v.Set("database.database", s.Database)
	}
}

func parseMyCnfFile(path string) (myCnfSettings, error) {
	raw, err := readRawFile(path)
	if err != nil {
		return myCnfSettings{}, err
	}
	return parseMyCnf(raw)
}

func parseMyCnf(raw string) (myCnfSettings, error) {
	var (
		s       myCnfSettings
		section string
		lineno  int
	)
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "", line[0] == '#', line[0] == ';':
			continue
		case line[0] == '[' && line[len(line)-1] == ']':
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		key, value, ok := splitOption(line)
		if !ok {
			return myCnfSettings{}, fmt.Errorf("invalid my.cnf syntax on line %d", lineno)
		}
		if section == "mysql" && key == "database" && !s.HasDBName {
			s.Database, s.HasDBName = value, true
		}
		if section != "client" {
			continue
		}

		switch key {
		case "host":
			s.Host = value
		case "user":
			s.User = value
		case "password":
			s.Password = value
		case "database":
			s.Database, s.HasDBName = value, true
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil || port < 1 || port > 65535 {
				return myCnfSettings{}, fmt.Errorf("invalid my.cnf port on line %d: %q is not a port in 1-65535", lineno, value)
			}
			s.Port, s.HasPort = port, true
		case "ssl-mode":
			mode, known := myCnfSSLModes[strings.ToUpper(value)]
			if !known {
				return myCnfSettings{}, fmt.Errorf("invalid my.cnf ssl-mode on line %d: unsupported ssl-mode %q", lineno, value)
			}
			s.TLSMode = mode
		}
	}
	if err := scanner.Err(); err != nil {
		return myCnfSettings{}, err
	}
	return s, nil
}

// splitOption accepts "key = value" and "key value"; matching quotes around
// the value are dropped.
func splitOption(line string) (string, string, bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", "", false
		}
		key, value = fields[0], strings.Join(fields[1:], " ")
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if n := len(value); n >= 2 && (value[0] == '\'' || value[0] == '"') && value[n-1] == value[0] {
		value = value[1 : n-1]
	}
	return key, value, key != ""
}

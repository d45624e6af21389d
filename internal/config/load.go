package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "GQC"

// Load resolves the configuration. Precedence, highest first:
//
//  1. values read from secret files or the password prompt
//  2. command line flags that were set explicitly
//  3. GQC_* environment variables (GQC_DATABASE_POOL_MAX_OPEN)
//  4. the config file
//  5. defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	defineFlags()
	if !pflag.Parsed() {
		pflag.Parse()
	}
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlagsToViper(v)
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	mysqlStore := v.GetString("executor.mode") == ExecutorModeGraphStore && v.GetString("database.driver") == DriverMySQL
	explicitDatabase := databaseNameExplicitlyConfigured(v)
	var myCnf *myCnfSettings
	if path := strings.TrimSpace(v.GetString("database.mycnf_file")); mysqlStore && path != "" {
		settings, err := parseMyCnfFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load database my.cnf file: %w", err)
		}
		settings.apply(v, explicitDatabase)
		myCnf = &settings
	}

	// Secrets come after my.cnf so a password it supplies skips the prompt.
	if err := resolveSecrets(v); err != nil {
		return nil, err
	}
	if mysqlStore {
		if err := normalizeMySQLTarget(v, explicitDatabase, myCnf); err != nil {
			return nil, err
		}
	}
	return unmarshal(v)
}

func readConfigFile(v *viper.Viper) error {
	path, _ := pflag.CommandLine.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("graph-query-connector")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/graph-query-connector/")
		v.AddConfigPath("$HOME/.graph-query-connector")
		v.AddConfigPath(".")
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return nil
	case path != "":
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	case errors.As(err, &notFound):
		return nil
	}
	return fmt.Errorf("failed to read config file: %w", err)
}

// normalizeMySQLTarget settles database.database for the mysql store. The
// built-in default name never overrides a database named by the DSN, and a
// my.cnf file without a database leaves the name unset.
func normalizeMySQLTarget(v *viper.Viper, explicit bool, myCnf *myCnfSettings) error {
	if !explicit && strings.TrimSpace(v.GetString("database.database")) == defaultDatabaseName {
		hasDSN := strings.TrimSpace(v.GetString("database.dsn")) != ""
		if hasDSN || (myCnf != nil && !myCnf.HasDBName) {
			v.Set("database.database", "")
		}
	}

	name, _, err := resolveEffectiveDatabaseName(
		v.GetString("database.database"),
		v.GetString("database.dsn"),
		v.GetString("database.mycnf_file"),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve effective database name: %w", err)
	}
	v.Set("database.database", name)
	return nil
}

func databaseNameExplicitlyConfigured(v *viper.Viper) bool {
	if _, ok := os.LookupEnv(envPrefix + "_DATABASE_DATABASE"); ok {
		return true
	}
	if f := pflag.CommandLine.Lookup("database.database"); f != nil && f.Changed {
		return true
	}
	return v.InConfig("database.database")
}

// unmarshal decodes v strictly: unknown keys are errors.
func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		commaSeparatedHook,
	)
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// commaSeparatedHook lets list settings arrive as "a, b" from env vars.
func commaSeparatedHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))
	if raw == "" {
		return []string{}, nil
	}
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts, nil
}

// bindChangedFlagsToViper copies only explicitly set flags into v so unset
// flags never shadow env, file, or default values.
func bindChangedFlagsToViper(v *viper.Viper) {
	fs := pflag.CommandLine
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" || f.Name == "check-config" {
			return
		}
		var (
			value interface{}
			err   error
		)
		switch f.Value.Type() {
		case "string":
			value, err = fs.GetString(f.Name)
		case "int":
			value, err = fs.GetInt(f.Name)
		case "bool":
			value, err = fs.GetBool(f.Name)
		case "float64":
			value, err = fs.GetFloat64(f.Name)
		case "duration":
			value, err = fs.GetDuration(f.Name)
		case "stringSlice":
			value, err = fs.GetStringSlice(f.Name)
		}
		if value == nil || err != nil {
			value = f.Value.String()
		}
		v.Set(f.Name, value)
	})
}

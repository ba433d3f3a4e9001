// Package config reads connection and engine settings from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nexuscrm/persist/internal/domain/schema"
	"github.com/nexuscrm/persist/internal/infrastructure/database"
	"github.com/nexuscrm/persist/pkg/orm"
)

// Environment variable names
const (
	EnvHost     = "TIDB_HOST"
	EnvPort     = "TIDB_PORT"
	EnvUser     = "TIDB_USER"
	EnvPassword = "TIDB_PASSWORD"
	EnvDatabase = "TIDB_DATABASE"

	EnvTablePrefix       = "PERSIST_TABLE_PREFIX"
	EnvDeleteColumns     = "PERSIST_DELETE_COLUMNS"
	EnvResizeColumns     = "PERSIST_RESIZE_COLUMNS"
	EnvSlowQuerySeconds  = "PERSIST_SLOW_QUERY_SECONDS"
	EnvTotalQuerySeconds = "PERSIST_TOTAL_QUERY_SECONDS"
	EnvHistoryLimit      = "PERSIST_HISTORY_LIMIT"
	EnvLocales           = "PERSIST_LOCALES"
	EnvDeadlockRetries   = "PERSIST_DEADLOCK_RETRIES"

	// EnvConfigFile names an optional YAML file. Environment variables win over it.
	EnvConfigFile = "PERSIST_CONFIG_FILE"
)

// DefaultEnvPaths are the .env locations tried by LoadEnvFile, nearest first
var DefaultEnvPaths = []string{".env", "../.env", "../../.env", "../../../.env"}

// Config holds everything needed to open a connection and build a manager
type Config struct {
	Credentials database.Credentials
	Options     database.Options
	Settings    orm.Settings
}

// LoadEnvFile loads the first .env file found in paths into the process
// environment. Variables already set are kept. It returns the loaded path,
// or an empty string when none was found.
func LoadEnvFile(paths ...string) string {
	if len(paths) == 0 {
		paths = DefaultEnvPaths
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			log.Printf("📁 Loaded .env from %s", p)
			return p
		}
	}
	return ""
}

// Load reads the configuration from .env files, the optional YAML file named
// by PERSIST_CONFIG_FILE and the process environment
func Load() (*Config, error) {
	LoadEnvFile()
	return LoadWithFile(os.Getenv(EnvConfigFile), os.Getenv)
}

// LoadWithFile layers getenv over the YAML file at path. An empty path reads
// getenv alone.
func LoadWithFile(path string, getenv func(string) string) (*Config, error) {
	if path == "" {
		return FromEnv(getenv)
	}
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromEnv(func(name string) string {
		if v := getenv(name); v != "" {
			return v
		}
		return file[name]
	})
}

// fileConfig is the YAML layout of a configuration file
type fileConfig struct {
	TiDB struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"tidb"`
	Persist struct {
		TablePrefix       string   `yaml:"table_prefix"`
		DeleteColumns     string   `yaml:"delete_columns"`
		ResizeColumns     string   `yaml:"resize_columns"`
		SlowQuerySeconds  string   `yaml:"slow_query_seconds"`
		TotalQuerySeconds string   `yaml:"total_query_seconds"`
		HistoryLimit      string   `yaml:"history_limit"`
		Locales           []string `yaml:"locales"`
		DeadlockRetries   string   `yaml:"deadlock_retries"`
	} `yaml:"persist"`
}

// ReadFile parses a YAML configuration file into environment variable form
func ReadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return map[string]string{
		EnvHost:              fc.TiDB.Host,
		EnvPort:              fc.TiDB.Port,
		EnvUser:              fc.TiDB.User,
		EnvPassword:          fc.TiDB.Password,
		EnvDatabase:          fc.TiDB.Database,
		EnvTablePrefix:       fc.Persist.TablePrefix,
		EnvDeleteColumns:     fc.Persist.DeleteColumns,
		EnvResizeColumns:     fc.Persist.ResizeColumns,
		EnvSlowQuerySeconds:  fc.Persist.SlowQuerySeconds,
		EnvTotalQuerySeconds: fc.Persist.TotalQuerySeconds,
		EnvHistoryLimit:      fc.Persist.HistoryLimit,
		EnvLocales:           strings.Join(fc.Persist.Locales, ","),
		EnvDeadlockRetries:   fc.Persist.DeadlockRetries,
	}, nil
}

// FromEnv builds a Config from a variable lookup function. Unset variables
// take their defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Credentials: database.Credentials{
			Host:     getenv(EnvHost),
			Port:     getenv(EnvPort),
			User:     getenv(EnvUser),
			Password: getenv(EnvPassword),
			Database: getenv(EnvDatabase),
		},
		Options:  database.DefaultOptions(),
		Settings: orm.DefaultSettings(),
	}
	if cfg.Credentials.Port == "" {
		cfg.Credentials.Port = "4000"
	}
	cfg.Settings.TablePrefix = getenv(EnvTablePrefix)

	var err error
	if v := getenv(EnvDeleteColumns); v != "" {
		if cfg.Settings.DeleteColumnsPolicy, err = schema.ParsePolicy(v); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvDeleteColumns, err)
		}
	}
	if v := getenv(EnvResizeColumns); v != "" {
		if cfg.Settings.ResizeColumnsPolicy, err = schema.ParsePolicy(v); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvResizeColumns, err)
		}
	}

	if cfg.Options.SlowQueryThreshold, err = seconds(getenv, EnvSlowQuerySeconds, cfg.Options.SlowQueryThreshold); err != nil {
		return nil, err
	}
	if cfg.Options.TotalQueryThreshold, err = seconds(getenv, EnvTotalQuerySeconds, cfg.Options.TotalQueryThreshold); err != nil {
		return nil, err
	}
	if cfg.Options.HistoryLimit, err = positiveInt(getenv, EnvHistoryLimit, cfg.Options.HistoryLimit); err != nil {
		return nil, err
	}
	if cfg.Settings.DeadlockRetries, err = positiveInt(getenv, EnvDeadlockRetries, cfg.Settings.DeadlockRetries); err != nil {
		return nil, err
	}

	if v := getenv(EnvLocales); v != "" {
		locales := make([]string, 0)
		for _, l := range strings.Split(v, ",") {
			locales = append(locales, strings.TrimSpace(l))
		}
		if cfg.Settings.Locales, err = orm.ValidateLocales(locales); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLocales, err)
		}
	}

	return cfg, nil
}

// seconds parses a non-negative number of seconds. Zero disables the threshold.
func seconds(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%s: invalid number of seconds %q", name, v)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func positiveInt(getenv func(string) string, name string, def int) (int, error) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", name, v)
	}
	return n, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dietplan/dietplan/internal/quota"
)

// FileName is the optional overlay read from the config dir.
const FileName = "config.yaml"

// Config holds runtime configuration.
type Config struct {
	// ConfigDir holds config.yaml, the users file and, by default, the database.
	ConfigDir string `yaml:"-"`
	// ListenAddr is the HTTP listen address for the websocket, health and metrics routes.
	ListenAddr string `yaml:"listen_addr"`
	// DBPath is the SQLite file.
	DBPath string `yaml:"db_path"`
	// UsersFile lists the identities profile sync reads.
	UsersFile string `yaml:"users_file"`

	FreeMealsPerWeek int    `yaml:"free_meals_per_week"`
	FreeLimitMode    string `yaml:"free_limit_mode"`

	LogLevel       string `yaml:"log_level"`
	LogDevelopment bool   `yaml:"log_development"`

	// CallerHeader carries the caller's external user id, set by the fronting proxy.
	CallerHeader string `yaml:"caller_header"`
	// SyncOnStart runs a profile sync before serving.
	SyncOnStart        bool `yaml:"sync_on_start"`
	IncludeSystemUsers bool `yaml:"include_system_users"`
}

// DefaultConfigDir returns ./.dietplan if present, else ~/.config/dietplan.
func DefaultConfigDir() string {
	cwd, _ := os.Getwd()
	local := filepath.Join(cwd, ".dietplan")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dietplan")
}

// New builds config from defaults, then DIETPLAN_* env vars, then config.yaml in
// configDir. An empty configDir uses DIETPLAN_CONFIG_DIR or DefaultConfigDir.
// A malformed config file or numeric env var is an error; a missing file is not.
func New(configDir string) (*Config, error) {
	if configDir == "" {
		if d := os.Getenv("DIETPLAN_CONFIG_DIR"); d != "" {
			configDir = d
		} else {
			configDir = DefaultConfigDir()
		}
	}
	cfg := &Config{
		ConfigDir:          configDir,
		ListenAddr:         envOr("DIETPLAN_LISTEN_ADDR", ":8099"),
		DBPath:             envOr("DIETPLAN_DB_PATH", filepath.Join(configDir, "diet.sqlite")),
		UsersFile:          envOr("DIETPLAN_USERS_FILE", filepath.Join(configDir, "users.yaml")),
		FreeMealsPerWeek:   quota.DefaultPerWeek,
		FreeLimitMode:      envOr("DIETPLAN_FREE_LIMIT_MODE", string(quota.DefaultMode)),
		LogLevel:           envOr("DIETPLAN_LOG_LEVEL", "info"),
		LogDevelopment:     envBool("DIETPLAN_LOG_DEV", false),
		CallerHeader:       envOr("DIETPLAN_CALLER_HEADER", "X-Remote-User"),
		SyncOnStart:        envBool("DIETPLAN_SYNC_ON_START", true),
		IncludeSystemUsers: envBool("DIETPLAN_INCLUDE_SYSTEM_USERS", false),
	}
	if v := os.Getenv("DIETPLAN_FREE_MEALS_PER_WEEK"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("DIETPLAN_FREE_MEALS_PER_WEEK: %q is not an integer", v)
		}
		cfg.FreeMealsPerWeek = n
	}

	// Env < config file: keys present in the file overwrite.
	data, err := os.ReadFile(filepath.Join(configDir, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", FileName, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.FreeMealsPerWeek < 0 {
		return fmt.Errorf("free_meals_per_week must not be negative, got %d", c.FreeMealsPerWeek)
	}
	if _, err := quota.ParseMode(c.FreeLimitMode); err != nil {
		return err
	}
	if strings.TrimSpace(c.CallerHeader) == "" {
		return fmt.Errorf("caller_header must be set")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must be set")
	}
	return nil
}

// QuotaPolicy returns the free-meal policy. Call Validate first.
func (c *Config) QuotaPolicy() quota.Policy {
	mode, err := quota.ParseMode(c.FreeLimitMode)
	if err != nil {
		mode = quota.DefaultMode
	}
	return quota.Policy{PerWeek: c.FreeMealsPerWeek, Mode: mode}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

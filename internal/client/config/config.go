// Package config loads client settings from a config file and CALEPIN_*
// environment variables. Machine state (tokens, sync bookkeeping) lives in
// the local store, not here; this covers only what a user would edit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the effective client configuration.
type Config struct {
	// ServerURL is the sync server base URL.
	ServerURL string
	// DataDir holds the local database and rotated logs.
	DataDir string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFile receives rotated JSON logs. Empty disables file logging.
	LogFile string
	// ConflictStrategy is sent with every sync request: keepBoth,
	// keepServer, keepLocal or manualMerge.
	ConflictStrategy string
}

// DBPath is the SQLite database location under DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "calepin.db")
}

// Load reads config.yaml and the environment.
//
// File precedence: $CALEPIN_CONFIG if set, else ~/.config/calepin/config.yaml.
// Environment variables override the file: CALEPIN_SERVER_URL,
// CALEPIN_DATA_DIR, CALEPIN_LOG_LEVEL, CALEPIN_LOG_FILE,
// CALEPIN_CONFLICT_STRATEGY.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	configFileSet := false
	if path := os.Getenv("CALEPIN_CONFIG"); path != "" {
		v.SetConfigFile(path)
		configFileSet = true
	} else if configDir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(configDir, "calepin", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			configFileSet = true
		}
	}

	v.SetEnvPrefix("CALEPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server-url", "http://localhost:8081")
	v.SetDefault("data-dir", defaultDataDir())
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")
	v.SetDefault("conflict-strategy", "keepBoth")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		ServerURL:        v.GetString("server-url"),
		DataDir:          v.GetString("data-dir"),
		LogLevel:         v.GetString("log-level"),
		LogFile:          v.GetString("log-file"),
		ConflictStrategy: v.GetString("conflict-strategy"),
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

// defaultDataDir is ~/.local/share/calepin on Linux, the platform
// equivalent elsewhere, falling back to a dotdir in $HOME.
func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "calepin")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".calepin"
	}
	return filepath.Join(home, ".local", "share", "calepin")
}

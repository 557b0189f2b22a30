package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultHTTPAddr     = ":8080"
	DefaultDatabasePath = "./data/androidmirror.db"

	// Environment overrides
	EnvADBPath  = "ANDROIDMIRROR_ADB_PATH"
	EnvLogLevel = "ANDROIDMIRROR_LOG_LEVEL"
	EnvHTTPAddr = "ANDROIDMIRROR_HTTP_ADDR"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	ADB      ADBConfig      `yaml:"adb"`
	Scrcpy   ScrcpyConfig   `yaml:"scrcpy"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// ScanRatePerSec limits POST /api/devices/scan
	ScanRatePerSec float64 `yaml:"scan_rate_per_sec"`
	ScanBurst      int     `yaml:"scan_burst"`
}

type ADBConfig struct {
	Executable string `yaml:"executable"`
	// SearchPath is where executables are looked up; the ambient PATH is never used
	SearchPath     string            `yaml:"search_path"`
	CommandTimeout time.Duration     `yaml:"command_timeout"`
	Env            map[string]string `yaml:"env,omitempty"`
}

type ScrcpyConfig struct {
	Executable string `yaml:"executable"`
}

type CatalogConfig struct {
	MaxParallel int           `yaml:"max_parallel"`
	AutoRefresh time.Duration `yaml:"auto_refresh"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"` // stdout, stderr or a file path
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:           DefaultHTTPAddr,
			ScanRatePerSec: 1,
			ScanBurst:      3,
		},
		ADB: ADBConfig{
			Executable:     "adb",
			SearchPath:     "/usr/local/bin:/usr/bin:/bin:/opt/homebrew/bin",
			CommandTimeout: 10 * time.Second,
		},
		Scrcpy: ScrcpyConfig{
			Executable: "scrcpy",
		},
		Catalog: CatalogConfig{
			MaxParallel: 4,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		Log: LogConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvADBPath); v != "" {
		c.ADB.Executable = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case c.ADB.Executable == "":
		return fmt.Errorf("%w: adb.executable is empty", ErrInvalidConfig)
	case c.Scrcpy.Executable == "":
		return fmt.Errorf("%w: scrcpy.executable is empty", ErrInvalidConfig)
	case c.ADB.SearchPath == "":
		return fmt.Errorf("%w: adb.search_path is empty", ErrInvalidConfig)
	case c.ADB.CommandTimeout <= 0:
		return fmt.Errorf("%w: adb.command_timeout must be positive", ErrInvalidConfig)
	case c.Catalog.MaxParallel < 1:
		return fmt.Errorf("%w: catalog.max_parallel must be at least 1", ErrInvalidConfig)
	case c.Catalog.AutoRefresh < 0:
		return fmt.Errorf("%w: catalog.auto_refresh cannot be negative", ErrInvalidConfig)
	case c.HTTP.ScanRatePerSec <= 0 || c.HTTP.ScanBurst < 1:
		return fmt.Errorf("%w: http scan rate and burst must be positive", ErrInvalidConfig)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	return nil
}

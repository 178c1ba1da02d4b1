// Package config handles application configuration. Values come from, in
// increasing precedence: built-in defaults, an optional YAML file, a .env
// file and the process environment. It provides a centralized Config struct
// used across the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hostboard/internal/database"
)

// Config holds all application configuration values.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Check    CheckConfig    `yaml:"check"`
	Cache    CacheConfig    `yaml:"cache"`
	Storage  StorageConfig  `yaml:"storage"`
}

// AppConfig holds dashboard-wide settings.
type AppConfig struct {
	Name               string   `yaml:"name"`
	MaxUploadSize      int      `yaml:"max_upload_size"` // MB
	AllowedExtensions  []string `yaml:"allowed_extensions"`
	HealthCheckTimeout int      `yaml:"health_check_timeout"` // seconds
	SeedDemo           bool     `yaml:"seed_demo"`
}

// DatabaseConfig selects the inventory backend.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite3" or "postgres"
	File     string         `yaml:"file"`
	IconsDir string         `yaml:"icons_dir"` // relative to the database file's directory
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Env  string `yaml:"env"` // "development", "production", "testing"
}

// CheckConfig tunes reachability checks.
type CheckConfig struct {
	Workers  int `yaml:"workers"`
	Interval int `yaml:"interval"` // seconds, 0 disables periodic checks
}

// CacheConfig holds Valkey settings. An empty host disables the cache.
type CacheConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds S3 backup settings. An empty endpoint disables
// backups.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:               "Dashboard",
			MaxUploadSize:      5,
			AllowedExtensions:  []string{"png", "jpg", "jpeg", "gif", "svg"},
			HealthCheckTimeout: 5,
		},
		Database: DatabaseConfig{
			Driver:   string(database.SQLite),
			File:     "./dashboard_data/dashboard.db",
			IconsDir: "icons",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     "5432",
				User:     "hostboard",
				Password: "changeme",
				Name:     "hostboard",
			},
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8003,
			Env:  "development",
		},
		Check: CheckConfig{
			Workers: 8,
		},
		Cache: CacheConfig{
			Port: "6379",
		},
		Storage: StorageConfig{
			Region: "us-east-1",
			Prefix: "hostboard",
		},
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it. A .env file in the working directory is loaded if present
// and never overrides variables already set in the environment. Returns an
// error if critical values are invalid or missing in production mode.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.App.Name, "APP_NAME")
	setString(&c.Server.Host, "APP_HOST")
	setString(&c.Server.Env, "APP_ENV")

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.File, "DB_FILE")
	setString(&c.Database.IconsDir, "ICONS_DIR")
	setString(&c.Database.Postgres.Host, "POSTGRES_HOST")
	setString(&c.Database.Postgres.Port, "POSTGRES_PORT")
	setString(&c.Database.Postgres.User, "POSTGRES_USER")
	setString(&c.Database.Postgres.Password, "POSTGRES_PASSWORD")
	setString(&c.Database.Postgres.Name, "POSTGRES_DB")

	setString(&c.Cache.Host, "VALKEY_HOST")
	setString(&c.Cache.Port, "VALKEY_PORT")
	setString(&c.Cache.Password, "VALKEY_PASSWORD")

	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.Region, "S3_REGION")
	setString(&c.Storage.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "S3_SECRET_KEY")
	setString(&c.Storage.Bucket, "S3_BUCKET")
	setString(&c.Storage.Prefix, "S3_PREFIX")

	if v := os.Getenv("ALLOWED_EXTENSIONS"); v != "" {
		c.App.AllowedExtensions = strings.Split(v, ",")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"APP_PORT", &c.Server.Port},
		{"MAX_UPLOAD_SIZE", &c.App.MaxUploadSize},
		{"CHECK_TIMEOUT", &c.App.HealthCheckTimeout},
		{"CHECK_WORKERS", &c.Check.Workers},
		{"CHECK_INTERVAL", &c.Check.Interval},
		{"VALKEY_DB", &c.Cache.DB},
	}
	for _, i := range ints {
		if err := setInt(i.dst, i.key); err != nil {
			return err
		}
	}

	if v := os.Getenv("SEED_DEMO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEED_DEMO: %w", err)
		}
		c.App.SeedDemo = b
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := database.ParseDialect(c.Database.Driver); err != nil {
		return err
	}
	if c.Database.File == "" && c.Dialect() == database.SQLite {
		return fmt.Errorf("database file must be set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.App.HealthCheckTimeout <= 0 {
		return fmt.Errorf("health check timeout must be positive")
	}
	if c.Check.Workers <= 0 {
		return fmt.Errorf("check workers must be positive")
	}
	if c.Check.Interval < 0 {
		return fmt.Errorf("check interval must not be negative")
	}

	exts := c.App.AllowedExtensions[:0]
	for _, e := range c.App.AllowedExtensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			exts = append(exts, e)
		}
	}
	c.App.AllowedExtensions = exts

	if c.Server.Env == "production" && c.Dialect() == database.Postgres {
		if c.Database.Postgres.Password == "changeme" {
			return fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}
	return nil
}

// Dialect returns the configured database backend.
func (c *Config) Dialect() database.Dialect {
	d, _ := database.ParseDialect(c.Database.Driver)
	return d
}

// DSN returns the connection string for the configured backend.
func (c *Config) DSN() string {
	if c.Dialect() == database.Postgres {
		p := c.Database.Postgres
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			p.User, p.Password, p.Host, p.Port, p.Name,
		)
	}
	return database.SQLiteDSN(c.DatabaseFile())
}

// DatabaseFile returns the absolute path of the SQLite file.
func (c *Config) DatabaseFile() string {
	if abs, err := filepath.Abs(c.Database.File); err == nil {
		return abs
	}
	return c.Database.File
}

// IconsPath returns the icon directory. Relative values are resolved next
// to the database file.
func (c *Config) IconsPath() string {
	if filepath.IsAbs(c.Database.IconsDir) {
		return c.Database.IconsDir
	}
	return filepath.Join(filepath.Dir(c.DatabaseFile()), c.Database.IconsDir)
}

// MaxUploadBytes returns the icon upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.App.MaxUploadSize) << 20
}

// CheckTimeout returns the per-request probe timeout.
func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.App.HealthCheckTimeout) * time.Second
}

// CheckInterval returns the periodic check interval; zero disables it.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Check.Interval) * time.Second
}

// CacheEnabled reports whether a Valkey host is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Host != ""
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Server.Env == "development"
}

// setString overwrites *dst with the environment variable key when it is
// set and non-empty.
func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

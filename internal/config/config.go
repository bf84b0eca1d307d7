package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Session   SessionConfig  `mapstructure:"session"`
	Remote    RemoteConfig   `mapstructure:"remote"`
	Trace     TraceConfig    `mapstructure:"trace"`
	JWTSecret string         `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

// SessionConfig controls session persistence and restore behavior.
type SessionConfig struct {
	SaveDebounceMs  int    `mapstructure:"save_debounce_ms"`
	DefaultSolution string `mapstructure:"default_solution"`
}

// RemoteConfig points at the platform services (metadata catalog and
// publish/registration endpoints).
type RemoteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	PackagePath    string `mapstructure:"package_path"`
	PackageVersion string `mapstructure:"package_version"`
}

type TraceConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// SaveDebounce returns the quiet interval for debounced session saves.
func (s SessionConfig) SaveDebounce() time.Duration {
	return time.Duration(s.SaveDebounceMs) * time.Millisecond
}

// Timeout returns the remote call timeout.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "cascade")
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("database.path", "./data")
	viper.SetDefault("session.save_debounce_ms", 2000)
	viper.SetDefault("session.default_solution", "Default")
	viper.SetDefault("remote.base_url", "http://localhost:9090")
	viper.SetDefault("remote.timeout_seconds", 30)
	viper.SetDefault("remote.package_path", "./packages/cascade-automation.zip")
	viper.SetDefault("remote.package_version", "1.0.0")
	viper.SetDefault("trace.enabled", true)
	viper.SetDefault("trace.buffer_size", 2000)
	viper.SetDefault("jwt_secret", "changeme-secret")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// defaults plus environment variables are enough to run
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

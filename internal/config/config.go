// Package config loads runtime configuration for the gridsync-ws server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the collaborative table server.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains network level settings for the WebSocket listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SessionConfig controls table session behaviour: hub buffering, lock
// duration and sweep cadence.
type SessionConfig struct {
	HubBufferSize    int           `mapstructure:"hub_buffer_size"`
	LockSeconds      uint32        `mapstructure:"lock_seconds"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	LockReleaseBelow uint32        `mapstructure:"lock_release_below"`
}

// StorageConfig points at the durable Postgres store backing the storage
// gateway.
type StorageConfig struct {
	DSN            string        `mapstructure:"dsn"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// LoggingConfig controls zap logger level/encoding and log sampling.
type LoggingConfig struct {
	Level              string `mapstructure:"level"`
	Development        bool   `mapstructure:"development"`
	SamplingInitial    int    `mapstructure:"sampling_initial"`
	SamplingThereafter int    `mapstructure:"sampling_thereafter"`
}

// Load reads configuration from environment variables and an optional
// config file, applying sensible defaults (100-event hub buffer,
// 3-second lock window with a 1-second sweep).
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("session.hub_buffer_size", 100)
	v.SetDefault("session.lock_seconds", 3)
	v.SetDefault("session.lock_release_below", 2)
	v.SetDefault("session.sweep_interval", time.Second)

	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.max_conns", 1)
	v.SetDefault("storage.connect_timeout", 5*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9095")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.sampling_initial", 100)
	v.SetDefault("logging.sampling_thereafter", 100)

	v.SetConfigName("gridsync")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("GRIDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; environment variables are the primary
	// deployment mechanism.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Session.HubBufferSize <= 0 {
		cfg.Session.HubBufferSize = 100
	}
	if cfg.Session.LockSeconds == 0 {
		cfg.Session.LockSeconds = 3
	}
	if cfg.Storage.MaxConns <= 0 {
		cfg.Storage.MaxConns = 1
	}

	return cfg, nil
}

// Package config loads fieldgraph settings from fieldgraph.yaml, FIELDGRAPH_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the fieldgraph configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Persisted PersistedConfig `mapstructure:"persisted"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	Pretty       bool          `mapstructure:"pretty"`
}

type GRPCConfig struct {
	// Addr is the gRPC listen address; empty disables the gRPC server.
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Seed   bool   `mapstructure:"seed"`
}

type PersistedConfig struct {
	// Store is "", "memory" or "redis". Empty disables persisted queries.
	Store     string        `mapstructure:"store"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type ExecutorConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// Defaults are applied before the file, environment and flags.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.pretty", false)
	v.SetDefault("grpc.addr", "")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.seed", true)
	v.SetDefault("persisted.store", "memory")
	v.SetDefault("persisted.redis_addr", "localhost:6379")
	v.SetDefault("persisted.redis_db", 0)
	v.SetDefault("persisted.ttl", time.Duration(0))
	v.SetDefault("executor.concurrency", 1)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "fieldgraph")
}

// Load reads the configuration. file overrides the default search for
// fieldgraph.yaml in the working directory; flags, when given, take
// precedence over everything else for the keys they bind.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("fieldgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FIELDGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":        "server.addr",
	"grpc-addr":   "grpc.addr",
	"log-level":   "log.level",
	"dev":         "log.development",
	"db-driver":   "database.driver",
	"db-dsn":      "database.dsn",
	"persisted":   "persisted.store",
	"redis-addr":  "persisted.redis_addr",
	"concurrency": "executor.concurrency",
	"otlp":        "telemetry.otlp_endpoint",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be memory, sqlite or postgres, got: %s", cfg.Database.Driver)
	}
	if cfg.Database.Driver != "memory" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %s", cfg.Database.Driver)
	}
	switch cfg.Persisted.Store {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("persisted.store must be memory or redis, got: %s", cfg.Persisted.Store)
	}
	if cfg.Executor.Concurrency < 1 {
		return fmt.Errorf("executor.concurrency must be at least 1, got: %d", cfg.Executor.Concurrency)
	}
	return nil
}

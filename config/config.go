/*
Package config loads server settings.

PRECEDENCE (highest first):
  1. Command-line flags     -port 9090 -store sqlite
  2. Environment variables  POINT_HTTP_PORT=9090 POINT_STORE_DRIVER=sqlite
  3. Config file            ./point.yaml (optional)
  4. Defaults below

KEYS:
  env                 dev | prod (logger format)
  http.port           HTTP listen port
  store.driver        memory | sqlite | redis
  store.sqlite_path   SQLite file, ":memory:" allowed
  store.redis_addr    host:port
  store.latency       max artificial delay per memory-store call
  shutdown_timeout    grace period for in-flight requests
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type Config struct {
	Env             string
	HTTPPort        int
	StoreDriver     string
	SQLitePath      string
	RedisAddr       string
	StoreLatency    time.Duration
	ShutdownTimeout time.Duration
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Load reads configuration from args (without the program name),
// the environment and an optional point.yaml.
func Load(args []string) (Config, error) {
	v := viper.New()
	v.SetDefault("env", "dev")
	v.SetDefault("http.port", 8080)
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.sqlite_path", "points.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.latency", time.Duration(0))
	v.SetDefault("shutdown_timeout", 30*time.Second)

	v.SetEnvPrefix("POINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("point")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	fs := pflag.NewFlagSet("point-server", pflag.ContinueOnError)
	fs.String("env", "dev", "environment (dev|prod)")
	fs.Int("port", 8080, "HTTP server port")
	fs.String("store", DriverMemory, "storage driver (memory|sqlite|redis)")
	fs.String("db", "points.db", "SQLite database path")
	fs.String("redis", "localhost:6379", "Redis address")
	fs.Duration("latency", 0, "max artificial latency per memory-store call")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	for key, flag := range map[string]string{
		"env":               "env",
		"http.port":         "port",
		"store.driver":      "store",
		"store.sqlite_path": "db",
		"store.redis_addr":  "redis",
		"store.latency":     "latency",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Env:             v.GetString("env"),
		HTTPPort:        v.GetInt("http.port"),
		StoreDriver:     strings.ToLower(v.GetString("store.driver")),
		SQLitePath:      v.GetString("store.sqlite_path"),
		RedisAddr:       v.GetString("store.redis_addr"),
		StoreLatency:    v.GetDuration("store.latency"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTPPort)
	}
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverRedis:
	default:
		return fmt.Errorf("invalid store driver %q, must be memory, sqlite or redis", c.StoreDriver)
	}
	if c.StoreLatency < 0 {
		return fmt.Errorf("store latency must not be negative")
	}
	return nil
}

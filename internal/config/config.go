// Package config reads the arbor command settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "ARBOR_"

// Graph sources.
const (
	SourceFile   = "file"
	SourceLoam   = "loam"
	SourceRedis  = "redis"
	SourceSQLite = "sqlite"
)

// Config holds the settings shared by every command. Flags override them.
type Config struct {
	Source string `env:"SOURCE" envDefault:"file"`
	// Dir is the graph directory of the file and loam sources.
	Dir   string `env:"DIR" envDefault:".arbor/graphs"`
	Graph string `env:"GRAPH" envDefault:"main"`
	Addr  string `env:"ADDR" envDefault:":8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	// DistributedLocks guards sessions with redis locks when serving.
	DistributedLocks bool          `env:"DISTRIBUTED_LOCKS"`
	LockTTL          time.Duration `env:"LOCK_TTL" envDefault:"30s"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"arbor.db"`
}

// Load reads an optional dotenv file and then the process environment.
// Variables already set in the environment win over the file.
func Load(dotenv string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses cfg from the given variables instead of the environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values env tags cannot express.
func (c Config) Validate() error {
	switch c.Source {
	case SourceFile, SourceLoam, SourceRedis, SourceSQLite:
	default:
		return fmt.Errorf("unknown graph source %q", c.Source)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL)
	}
	return nil
}

// Logger builds the logger the settings describe.
func (c Config) Logger() *slog.Logger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.NewWriter(os.Stderr, level, c.LogJSON)
}

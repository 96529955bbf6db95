// Package config loads process configuration from GHOSTWATCH_* environment
// variables and command line flags.
package config

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/juju/errors"
	"golang.org/x/time/rate"

	"ghostwatch/internal/blob"
	"ghostwatch/internal/core"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "GHOSTWATCH_"

// Config holds the ghostwatch command configuration.
type Config struct {
	// SourceURL is the directory serving players.txt and friends. When
	// empty it is derived from World.
	SourceURL string `env:"SOURCE_URL"`
	// World is a game world id such as "de99".
	World     string  `env:"WORLD"`
	UserAgent string  `env:"USER_AGENT"`
	FetchRate float64 `env:"FETCH_RATE" envDefault:"0"`

	// OffsetsPath points at a slot offset table replacing the built-in one.
	OffsetsPath string `env:"OFFSETS_PATH"`

	ListenAddr  string        `env:"LISTEN_ADDR" envDefault:"[::]:10204"`
	MinInterval time.Duration `env:"MIN_INTERVAL" envDefault:"1h"`
	RetryDelay  time.Duration `env:"RETRY_DELAY" envDefault:"60s"`
	ViewLimit   int           `env:"VIEW_LIMIT" envDefault:"200"`

	Storage core.StorageConfig
	Blob    BlobConfig `envPrefix:"BLOB_"`

	LogConfig    string `env:"LOG_CONFIG" envDefault:"<root>=INFO"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// BlobConfig selects where the warm-restart artifact is kept.
type BlobConfig struct {
	Driver blob.Driver   `env:"DRIVER" envDefault:"fs"`
	FSRoot string        `env:"FS_ROOT" envDefault:"./ghostwatch-data"`
	S3     blob.S3Config `envPrefix:"S3_"`
}

// Open returns the configured blob store.
func (b BlobConfig) Open(ctx context.Context) (blob.Store, error) {
	return blob.Open(ctx, blob.Config{Driver: b.Driver, FSRoot: b.FSRoot, S3: b.S3})
}

// ParseConfig reads the environment, then applies flag overrides from args.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.SourceURL, "source-url", cfg.SourceURL, "Base URL of the world data tables")
	fs.StringVar(&cfg.World, "world", cfg.World, "Game world id used to derive the source URL")
	fs.StringVar(&cfg.OffsetsPath, "offsets", cfg.OffsetsPath, "Slot offset table file (type,dx,dy,slot)")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	fs.DurationVar(&cfg.MinInterval, "min-interval", cfg.MinInterval, "Minimum time between snapshot captures")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Delay between failed fetch attempts")
	fs.IntVar(&cfg.ViewLimit, "view-limit", cfg.ViewLimit, "Events per kind kept in the served view")
	fs.StringVar((*string)(&cfg.Storage.Driver), "storage", string(cfg.Storage.Driver), "Event store driver: memory|sqlite|postgres")
	fs.StringVar(&cfg.Storage.SQLitePath, "sqlite-path", cfg.Storage.SQLitePath, "SQLite database file")
	fs.StringVar((*string)(&cfg.Blob.Driver), "blob", string(cfg.Blob.Driver), "Warm-restart blob driver: fs|s3|memory")
	fs.StringVar(&cfg.LogConfig, "log-config", cfg.LogConfig, "loggo logging configuration")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.SourceURL == "" && cfg.World != "" {
		cfg.SourceURL = WorldURL(cfg.World)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WorldURL returns the data directory of a game world.
func WorldURL(world string) string {
	return fmt.Sprintf("https://%s.grepolis.com/data", world)
}

// Limiter returns the fetch rate limiter; a non-positive rate is unlimited.
func (c Config) Limiter() *rate.Limiter {
	if c.FetchRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(c.FetchRate), 1)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SourceURL == "" {
		return errors.NotValidf("empty source URL (set GHOSTWATCH_SOURCE_URL or GHOSTWATCH_WORLD)")
	}
	if c.ListenAddr == "" {
		return errors.NotValidf("empty listen address")
	}
	if c.MinInterval <= 0 {
		return errors.NotValidf("min interval %v", c.MinInterval)
	}
	if c.RetryDelay <= 0 {
		return errors.NotValidf("retry delay %v", c.RetryDelay)
	}
	if c.ViewLimit <= 0 {
		return errors.NotValidf("view limit %d", c.ViewLimit)
	}
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return errors.NotValidf("storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return errors.NotValidf("s3 blob driver without bucket")
		}
	default:
		return errors.NotValidf("blob driver %q", c.Blob.Driver)
	}
	return nil
}

// Package config loads store settings from defaults, an optional YAML file
// and WORLDSTORE_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-worldstore/cache"
	"github.com/goliatone/go-worldstore/store"
	"github.com/goliatone/go-worldstore/world"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "WORLDSTORE_"

type Config struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`

	// DefaultCommit commits after every write. When false writes stay
	// pending until a batch ends or the store closes.
	DefaultCommit bool `yaml:"default_commit" env:"DEFAULT_COMMIT"`

	CreateSchema      bool   `yaml:"create_schema" env:"CREATE_SCHEMA"`
	ReciprocalPortals bool   `yaml:"reciprocal_portals" env:"RECIPROCAL_PORTALS"`
	DefaultDimension  string `yaml:"default_dimension" env:"DEFAULT_DIMENSION"`
	AssetRoot         string `yaml:"asset_root" env:"ASSET_ROOT"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	AssetCache cache.Config `yaml:"asset_cache" envPrefix:"ASSET_CACHE_"`
}

// Default returns an in-memory sqlite configuration.
func Default() Config {
	return Config{
		Driver:           store.DriverSQLite,
		DSN:              ":memory:",
		DefaultCommit:    true,
		CreateSchema:     true,
		DefaultDimension: world.DefaultDimension,
		LogLevel:         "info",
		AssetCache:       cache.DefaultConfig(),
	}
}

// Load returns Default overlaid with the YAML file at path, when path is
// not empty, and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	err := yaml.NewDecoder(r).Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.LogLevel, validation.By(checkLevel)),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.AssetCache.Validate(); err != nil {
		return fmt.Errorf("config: asset_cache: %w", err)
	}
	return nil
}

func checkLevel(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	_, err := level(s)
	return err
}

func level(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New("must be debug, info, warn or error")
	}
	return l, nil
}

// Logger returns a text logger writing to stderr at c.LogLevel.
func (c Config) Logger() *slog.Logger {
	return NewLogger(os.Stderr, c.LogLevel)
}

// NewLogger builds a text logger on w. Unknown levels fall back to info.
func NewLogger(w io.Writer, lvl string) *slog.Logger {
	l, err := level(lvl)
	if err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// Store converts c into the store's own settings.
func (c Config) Store() store.Config {
	return store.Config{
		Driver:            c.Driver,
		DSN:               c.DSN,
		DeferCommits:      !c.DefaultCommit,
		CreateSchema:      c.CreateSchema,
		ReciprocalPortals: c.ReciprocalPortals,
		DefaultDimension:  c.DefaultDimension,
		AssetRoot:         c.AssetRoot,
	}
}

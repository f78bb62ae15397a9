// Package config loads the YAML configuration shared by the treepool tools.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cbehopkins/treepool/pool"
	"github.com/cbehopkins/treepool/records"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level configuration.
type Config struct {
	Pool    PoolConfig    `yaml:"pool"`
	Records RecordsConfig `yaml:"records"`
	Log     LogConfig     `yaml:"log"`
}

// PoolConfig sizes the node arena.
type PoolConfig struct {
	// Capacity is the arena size in bytes.
	Capacity int `yaml:"capacity"`
	// MaxNodes bounds the identifier table; 0 derives it from Capacity.
	MaxNodes int `yaml:"max_nodes"`
}

// RecordsConfig selects where records are kept.
type RecordsConfig struct {
	// Backend is "memory" or "badger".
	Backend string `yaml:"backend"`
	// Dir is the badger directory. Empty keeps badger in memory.
	Dir            string `yaml:"dir"`
	Extension      string `yaml:"extension"`
	MemoizedModels int    `yaml:"memoized_models"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Pool: PoolConfig{Capacity: 32 * 1024},
		Records: RecordsConfig{
			Backend:        BackendMemory,
			Extension:      "exp",
			MemoizedModels: records.DefaultMemoizedModels,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Pool.Capacity < pool.HeaderSize || c.Pool.Capacity > pool.MaxCapacity:
		return fmt.Errorf("%w: pool.capacity %d outside [%d, %d]",
			ErrInvalid, c.Pool.Capacity, pool.HeaderSize, pool.MaxCapacity)
	case c.Pool.MaxNodes < 0:
		return fmt.Errorf("%w: pool.max_nodes %d is negative", ErrInvalid, c.Pool.MaxNodes)
	case c.Records.Backend != BackendMemory && c.Records.Backend != BackendBadger:
		return fmt.Errorf("%w: records.backend %q", ErrInvalid, c.Records.Backend)
	case c.Records.Extension == "":
		return fmt.Errorf("%w: records.extension is empty", ErrInvalid)
	case c.Records.MemoizedModels < 1:
		return fmt.Errorf("%w: records.memoized_models must be positive", ErrInvalid)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// PoolOptions translates the pool section into pool options.
func (c Config) PoolOptions() []pool.Option {
	var opts []pool.Option
	if c.Pool.MaxNodes > 0 {
		opts = append(opts, pool.WithMaxNodes(c.Pool.MaxNodes))
	}
	return opts
}

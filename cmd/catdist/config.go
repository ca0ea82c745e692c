package main

import (
	"errors"
	"io/fs"
	"math/bits"

	"github.com/23skdu/catdist/internal/memory"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is read from CATDIST_* environment variables, optionally seeded
// from a .env file in the working directory.
type Config struct {
	BlockBytes  int    `envconfig:"BLOCK_BYTES" default:"64"`
	Workers     int    `envconfig:"WORKERS" default:"0"` // 0 means GOMAXPROCS
	Presence    bool   `envconfig:"PRESENCE" default:"false"`
	Verify      bool   `envconfig:"VERIFY" default:"false"`
	SlabBytes   int    `envconfig:"SLAB_BYTES" default:"4194304"`
	Element     string `envconfig:"ELEMENT" default:"u8"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""` // empty disables the metrics server
}

// Config validation errors
var (
	ErrInvalidBlockBytes = errors.New("block_bytes must be a positive power of two")
	ErrInvalidWorkers    = errors.New("workers cannot be negative")
	ErrInvalidSlabBytes  = errors.New("slab_bytes must be at least block_bytes")
	ErrInvalidElement    = errors.New("element must be u8, u16, u32, or u64")
	ErrInvalidLogFormat  = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel   = errors.New("log_level must be debug, info, warn, or error")
)

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.BlockBytes <= 0 || bits.OnesCount(uint(cfg.BlockBytes)) != 1 {
		return ErrInvalidBlockBytes
	}
	if cfg.Workers < 0 {
		return ErrInvalidWorkers
	}
	if cfg.SlabBytes < cfg.BlockBytes {
		return ErrInvalidSlabBytes
	}
	switch cfg.Element {
	case "u8", "u16", "u32", "u64":
	default:
		return ErrInvalidElement
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		BlockBytes: 64,
		Workers:    0,
		SlabBytes:  memory.DefaultSlabSize,
		Element:    "u8",
		LogFormat:  "json",
		LogLevel:   "info",
	}
}

// LoadConfig applies .env (if present) and then the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	var cfg Config
	if err := envconfig.Process("CATDIST", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/lexgo"
	"github.com/hupe1980/lexgo/model"
)

// Config holds the defaults shared by every subcommand. Values come from an
// optional YAML file and may be overridden by LEXGO_* environment variables.
type Config struct {
	Profile            string  `yaml:"profile"`
	LogLevel           string  `yaml:"log_level"`
	MaxSegmentDocs     uint32  `yaml:"max_segment_docs"`
	MemoryLimitBytes   uint64  `yaml:"memory_limit_bytes"`
	IngestDocsPerSec   float64 `yaml:"ingest_docs_per_sec"`
	BlockCacheCapacity int     `yaml:"block_cache_capacity"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Profile:  model.ProfileBalanced.String(),
		LogLevel: "info",
	}
}

// LoadConfig reads the YAML file at path on top of the defaults and applies
// environment overrides. A missing file is only an error when the path was
// given explicitly.
func LoadConfig(path string, explicit bool) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file, defaults apply.
	default:
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LEXGO_PROFILE"); v != "" {
		c.Profile = v
	}

	if v := os.Getenv("LEXGO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	if v := os.Getenv("LEXGO_MAX_SEGMENT_DOCS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.MaxSegmentDocs = uint32(n)
		}
	}

	if v := os.Getenv("LEXGO_MEMORY_LIMIT_BYTES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.MemoryLimitBytes = n
		}
	}
}

// Options translates the config into index options.
func (c Config) Options() ([]lexgo.Option, error) {
	level, err := parseLogLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	opts := []lexgo.Option{lexgo.WithLogger(lexgo.NewTextLogger(level))}

	if c.MaxSegmentDocs > 0 {
		opts = append(opts, lexgo.WithMaxSegmentDocs(c.MaxSegmentDocs))
	}

	if c.MemoryLimitBytes > 0 {
		opts = append(opts, lexgo.WithMemoryLimit(c.MemoryLimitBytes))
	}

	if c.IngestDocsPerSec > 0 {
		opts = append(opts, lexgo.WithIngestRateLimit(c.IngestDocsPerSec))
	}

	if c.BlockCacheCapacity > 0 {
		opts = append(opts, lexgo.WithBlockCacheCapacity(c.BlockCacheCapacity))
	}

	return opts, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}

	return level, nil
}

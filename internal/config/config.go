// Package config loads verbsmemctl settings from a YAML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file.
const (
	EnvPageSize = "VERBSMEM_PAGE_SIZE"
	EnvLogLevel = "VERBSMEM_LOG_LEVEL"
	EnvForkSafe = "VERBSMEM_FORK_SAFE"
)

// Size is a byte count written as "4096", "4KiB" or "2 MB".
type Size int

// UnmarshalYAML accepts integers and humanized strings.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	n, err := ParseSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = n
	return nil
}

// MarshalYAML writes the size in IEC units.
func (s Size) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

// ParseSize parses a humanized byte count.
func ParseSize(v string) (Size, error) {
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("config: bad size %q: %w", v, err)
	}
	if n > uint64(^uint(0)>>1) {
		return 0, fmt.Errorf("config: size %q too large", v)
	}
	return Size(n), nil
}

// Log configures internal/logger.
type Log struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	JSON    bool   `yaml:"json"`
	Dir     string `yaml:"dir"`
}

// Config holds the settings for one verbsmemctl run.
type Config struct {
	// PageSize is the rounding granularity for builtin allocations.
	// Default: the system page size (filled by the caller when zero).
	PageSize Size `yaml:"page_size"`

	// ForkSafe overrides forksafe.EnvEnabled when set.
	ForkSafe *bool `yaml:"fork_safe"`

	// Extern routes allocations through the demo external allocator.
	Extern bool `yaml:"extern"`

	Log Log `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{Log: Log{Level: "info"}}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses YAML into cfg, rejecting unknown fields.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays environment overrides using lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPageSize); ok && v != "" {
		n, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPageSize, err)
		}
		c.PageSize = n
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Enabled = true
		c.Log.Level = v
	}
	if v, ok := lookup(EnvForkSafe); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvForkSafe, err)
		}
		c.ForkSafe = &b
	}
	return nil
}

// Validate checks the settings after defaults and overrides are applied.
func (c Config) Validate() error {
	if c.PageSize < 0 {
		return fmt.Errorf("config: negative page size %d", c.PageSize)
	}
	return nil
}
